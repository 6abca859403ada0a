// Command mzcurve inspects the spectrometry components and runs one-shot
// extraction and analysis on spectra tables.
//
// Usage:
//
//	mzcurve [command] [flags]
//
// Examples:
//
//	mzcurve components PeakDetector
//	mzcurve strategies
//	mzcurve schema baseline
//	mzcurve extract run.tsv --extractor extracted_ion --mz 100-200
//	mzcurve analyze run.tsv --mode predefined --strategy high_precision --format html -o report.html
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand.
type app struct {
	stdout, stderr io.Writer
	logLevel       string
	configPath     string
	log            *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "mzcurve",
		Short:         "Spectrometry curve extraction and peak analysis",
		Long:          `mzcurve extracts drift-time and chromatogram curves from spectra tables, corrects baselines and detects, fits and scores peaks.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(a.logLevel)
			if err != nil {
				return err
			}

			a.log = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

			return nil
		},
	}

	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML or JSON configuration file")

	root.AddCommand(
		a.componentsCmd(),
		a.strategiesCmd(),
		a.schemaCmd(),
		a.extractCmd(),
		a.analyzeCmd(),
	)

	return root
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}

	return level, nil
}
