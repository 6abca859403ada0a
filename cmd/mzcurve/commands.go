package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-spectro/ms/export"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/pipeline"
	"github.com/cwbudde/algo-spectro/ms/strategy"
)

func (a *app) context() (*pipeline.Context, error) {
	cfg := pipeline.DefaultConfig()

	if a.configPath != "" {
		var err error
		if cfg, err = pipeline.LoadConfig(a.configPath); err != nil {
			return nil, err
		}
	}

	return pipeline.New(pipeline.WithConfig(cfg), pipeline.WithLogger(a.log))
}

func (a *app) controller() (*strategy.Controller, error) {
	pc, err := a.context()
	if err != nil {
		return nil, err
	}

	return pc.Controller()
}

func (a *app) componentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components [type ...]",
		Short: "List registered components",
		Long:  "List registered components, optionally restricted to component types such as PeakDetector or FittingMethod.",
		RunE: func(cmd *cobra.Command, args []string) error {
			types, err := componentTypes(args)
			if err != nil {
				return err
			}

			ctrl, err := a.controller()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Type\tName\tVersion\tDescription")
			fmt.Fprintln(tw, "----\t----\t-------\t-----------")

			for _, t := range types {
				list, err := ctrl.ListComponents(t)
				if err != nil {
					return err
				}

				for _, d := range list {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Type, d.Name, d.Version, d.Description)
				}
			}

			return tw.Flush()
		},
	}
}

func componentTypes(args []string) ([]model.ComponentType, error) {
	if len(args) == 0 {
		return model.ComponentTypes(), nil
	}

	var out []model.ComponentType

	for _, arg := range args {
		found := false

		for _, t := range model.ComponentTypes() {
			if strings.EqualFold(string(t), arg) {
				out = append(out, t)
				found = true
			}
		}

		if !found {
			return nil, model.NewUnknownMethod("component_type", arg)
		}
	}

	return out, nil
}

func (a *app) strategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List predefined and configured strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, err := a.controller()
			if err != nil {
				return err
			}

			list, err := ctrl.ListStrategies()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Name\tDetection\tOverlap\tFitting\tOptimizer\tAdvanced\tPost")

			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					s.Name, s.PeakDetection, s.OverlapProcessing, s.FittingMethod,
					s.OptimizationAlgorithm, dash(s.AdvancedAlgorithm), dash(s.PostProcessing))
			}

			return tw.Flush()
		},
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

func (a *app) schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "schema [name]",
		Short:     "Print the JSON Schema of a configuration section",
		Long:      "Print the JSON Schema of a configuration section. Without a name the section names are listed.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: strategy.SchemaNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				for _, name := range strategy.SchemaNames() {
					fmt.Fprintln(a.stdout, name)
				}

				return nil
			}

			s, err := strategy.Schema(args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")

			return enc.Encode(s)
		},
	}
}

// runFlags are the flags shared by extract and analyze.
type runFlags struct {
	extractor string
	mz, rt    string
	level     int
	format    string
	output    string
	precision int
}

func (f *runFlags) bind(cmd *cobra.Command, format string) {
	cmd.Flags().StringVar(&f.extractor, "extractor", "", "curve extractor: total_ion, extracted_ion, drift_time")
	cmd.Flags().StringVar(&f.mz, "mz", "", "m/z window, e.g. 100-200")
	cmd.Flags().StringVar(&f.rt, "rt", "", "retention time window, e.g. 1.5-4")
	cmd.Flags().IntVar(&f.level, "ms-level", -1, "MS level filter (0 = any)")
	cmd.Flags().StringVarP(&f.format, "format", "f", format, "output format: "+strings.Join(export.DefaultManager().Names(), ", "))
	cmd.Flags().StringVarP(&f.output, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&f.precision, "precision", 6, "decimal places of numeric output")
}

func (f *runFlags) extraction() map[string]any {
	payload := make(map[string]any)

	if f.extractor != "" {
		payload["extractor"] = f.extractor
	}

	if f.mz != "" {
		payload["mz_range"] = f.mz
	}

	if f.rt != "" {
		payload["rt_range"] = f.rt
	}

	if f.level >= 0 {
		payload["ms_level"] = f.level
	}

	return payload
}

func (a *app) extractCmd() *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a curve from a spectra table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.context()
			if err != nil {
				return err
			}

			out, err := pc.Process(contextOf(cmd), pipeline.Input{Source: args[0]}, pipeline.OpExtract, f.extraction())
			if err != nil {
				return err
			}

			return a.write(contextOf(cmd), pc, out, &f)
		},
	}

	f.bind(cmd, "curve_tsv")

	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	var (
		f        runFlags
		mode     string
		name     string
		baseline string
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Extract, correct the baseline and analyze peaks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := a.context()
			if err != nil {
				return err
			}

			analysis := make(map[string]any)
			if mode != "" {
				analysis[pipeline.KeyMode] = mode
			}

			if name != "" {
				analysis[pipeline.KeyStrategy] = name
				if mode == "" {
					analysis[pipeline.KeyMode] = strategy.Predefined.String()
				}
			}

			payload := map[string]any{
				pipeline.SectionExtraction: f.extraction(),
				pipeline.SectionAnalysis:   analysis,
			}

			if baseline != "" {
				payload[pipeline.SectionBaseline] = map[string]any{"method": baseline}
			}

			out, err := pc.Process(contextOf(cmd), pipeline.Input{Source: args[0]}, pipeline.OpFull, payload)
			if err != nil {
				return err
			}

			return a.write(contextOf(cmd), pc, out, &f)
		},
	}

	f.bind(cmd, "peak_tsv")
	cmd.Flags().StringVar(&mode, "mode", "", "strategy mode: automatic, manual, hybrid, predefined")
	cmd.Flags().StringVar(&name, "strategy", "", "predefined strategy name")
	cmd.Flags().StringVar(&baseline, "baseline", "", "baseline method: none, linear, polynomial, moving_average, als")

	return cmd
}

// write exports the result of an operation merged into its source
// container.
func (a *app) write(ctx context.Context, pc *pipeline.Context, out pipeline.Output, f *runFlags) error {
	base, err := pc.Container(ctx, out.Source)
	if err != nil {
		return err
	}

	cfg := export.DefaultConfig()
	cfg.Precision = f.precision

	p, err := export.DefaultManager().Export(f.format, out.Container(base), cfg)
	if err != nil {
		return err
	}

	if f.output == "" {
		_, err = a.stdout.Write(p.Data)
		return err
	}

	if err := os.WriteFile(f.output, p.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.output, err)
	}

	a.log.Info("export written", "op", "export", "format", f.format, "path", f.output,
		"size", humanize.Bytes(uint64(len(p.Data))), "curves", len(out.Curves)+len(out.Extracted), "peaks", len(out.Peaks))
	fmt.Fprintf(a.stderr, "wrote %s (%s)\n", f.output, humanize.Bytes(uint64(len(p.Data))))

	return nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}

	return context.Background()
}
