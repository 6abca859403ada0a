package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/extract"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/strategy"
)

// Operation selects what Process does.
type Operation int

const (
	OpExtract Operation = iota
	OpBaseline
	OpAnalyze
	// OpFull extracts, corrects the baseline and analyzes in one call.
	OpFull
)

var operationNames = [...]string{"extract", "baseline", "analyze", "full"}

func (o Operation) String() string {
	if o < 0 || int(o) >= len(operationNames) {
		return fmt.Sprintf("Operation(%d)", int(o))
	}

	return operationNames[o]
}

// Operations lists every operation.
func Operations() []Operation { return []Operation{OpExtract, OpBaseline, OpAnalyze, OpFull} }

// ParseOperation returns the operation with the given name.
func ParseOperation(name string) (Operation, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, s := range operationNames {
		if s == n {
			return Operation(i), nil
		}
	}

	return 0, model.NewUnknownMethod("operation", name)
}

// Payload keys of the analyze operation and sections of the full operation.
const (
	KeyMode      = "mode"
	KeyStrategy  = "strategy"
	KeyOverrides = "overrides"
	KeyCustom    = "custom"

	SectionExtraction = "extraction"
	SectionBaseline   = "baseline"
	SectionAnalysis   = "analysis"
)

// Input is what an operation works on. Extraction reads Container, or
// loads Source through the context cache when Container is nil. Baseline
// and analysis read Curves, falling back to the container's curves.
type Input struct {
	Source    string
	Container *model.Container
	Curves    []model.Curve
	Peaks     []model.Peak
}

// Output is the result of an operation. Extracted holds extraction
// results, Curves the curves the following stage works on (the corrected
// ones after baseline correction) and Baselines the estimated baselines.
type Output struct {
	Operation Operation
	Source    string
	Extracted []model.Curve
	Curves    []model.Curve
	Baselines []model.Curve
	Peaks     []model.Peak
	Metadata  map[string]any
}

// Container returns a snapshot of base with every curve and peak of o
// appended. Entries already present by ID are replaced.
func (o Output) Container(base *model.Container) *model.Container {
	var out *model.Container
	if base == nil {
		out = model.NewContainer(o.Source, nil)
	} else {
		out = base.Snapshot()
	}

	curves := slices.Concat(o.Extracted, o.Curves, o.Baselines)
	for _, cv := range curves {
		i := slices.IndexFunc(out.Curves, func(x model.Curve) bool { return x.ID == cv.ID })
		if i >= 0 {
			out.Curves[i] = cv.Clone()
			continue
		}

		out.Curves = append(out.Curves, cv.Clone())
	}

	for _, p := range o.Peaks {
		i := slices.IndexFunc(out.Peaks, func(x model.Peak) bool { return x.ID == p.ID })
		if i >= 0 {
			out.Peaks[i] = p.Clone()
			continue
		}

		out.Peaks = append(out.Peaks, p.Clone())
	}

	if out.Metadata == nil {
		out.Metadata = make(map[string]any, len(o.Metadata))
	}

	maps.Copy(out.Metadata, o.Metadata)

	return out
}

// Process runs op on in. The payload is the open configuration of the
// operation; it is converted into the typed configuration of the stage,
// merged over the context defaults and validated before anything runs.
func (c *Context) Process(ctx context.Context, in Input, op Operation, payload map[string]any) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, model.NewCanceled(err)
	}

	start := time.Now()
	log := c.log.With("op", op.String(), "source", sourceOf(in))

	var (
		out Output
		err error
	)

	switch op {
	case OpExtract:
		out, err = c.extract(ctx, in, payload)
	case OpBaseline:
		out, err = c.baseline(in, payload)
	case OpAnalyze:
		out, err = c.analyze(ctx, in, payload)
	case OpFull:
		out, err = c.full(ctx, in, payload)
	default:
		err = model.NewUnknownMethod("operation", op.String())
	}

	if err != nil {
		log.Error("operation failed", "err", err, "duration", time.Since(start))
		return Output{}, err
	}

	out.Operation = op
	out.Source = sourceOf(in)

	log.Info("operation finished", "curves", len(out.Curves)+len(out.Extracted),
		"peaks", len(out.Peaks), "duration", time.Since(start))

	return out, nil
}

func (c *Context) extract(ctx context.Context, in Input, payload map[string]any) (Output, error) {
	cfg, err := strategy.Decode(payload, c.cfg.Extraction)
	if err != nil {
		return Output{}, err
	}

	ex, f, err := cfg.Build()
	if err != nil {
		return Output{}, err
	}

	ct := in.Container
	if ct == nil {
		if in.Source == "" {
			return Output{}, model.NewInvalidInput("pipeline: extract needs a container or a source")
		}

		if ct, err = c.Container(ctx, in.Source); err != nil {
			return Output{}, err
		}
	}

	res, err := extract.Run(ctx, ex, ct, f)
	if err != nil {
		return Output{}, err
	}

	return Output{
		Extracted: res.Curves,
		Curves:    res.Curves,
		Metadata:  map[string]any{SectionExtraction: res.Metadata},
	}, nil
}

func (c *Context) baseline(in Input, payload map[string]any) (Output, error) {
	cfg, err := strategy.Decode(payload, c.cfg.Baseline)
	if err != nil {
		return Output{}, err
	}

	curves := curvesOf(in)
	if len(curves) == 0 {
		return Output{}, model.NewInvalidInput("pipeline: baseline needs at least one curve")
	}

	out := Output{Metadata: make(map[string]any)}
	diag := make(map[string]baseline.Diagnostics, len(curves))

	for _, cv := range curves {
		res, err := cfg.Apply(cv)
		if err != nil {
			return Output{}, fmt.Errorf("pipeline: baseline %s: %w", cv.ID, err)
		}

		out.Curves = append(out.Curves, res.Corrected)
		out.Baselines = append(out.Baselines, res.Baseline)
		diag[res.Corrected.ID] = res.Diagnostics
	}

	out.Metadata[SectionBaseline] = diag

	return out, nil
}

func (c *Context) analyze(ctx context.Context, in Input, payload map[string]any) (Output, error) {
	req, err := c.request(payload)
	if err != nil {
		return Output{}, err
	}

	curves := curvesOf(in)
	if len(curves) == 0 {
		return Output{}, model.NewInvalidInput("pipeline: analyze needs at least one curve")
	}

	ctrl, err := c.Controller()
	if err != nil {
		return Output{}, err
	}

	peaks := in.Peaks
	if len(peaks) == 0 && in.Container != nil {
		peaks = in.Container.Peaks
	}

	var out Output

	for _, cv := range curves {
		given := slices.DeleteFunc(slices.Clone(peaks), func(p model.Peak) bool { return p.CurveID != cv.ID })

		got, err := ctrl.Process(ctx, given, cv, req)
		if err != nil {
			return Output{}, fmt.Errorf("pipeline: analyze %s: %w", cv.ID, err)
		}

		out.Curves = append(out.Curves, cv)
		out.Peaks = append(out.Peaks, got...)
	}

	return out, nil
}

func (c *Context) full(ctx context.Context, in Input, payload map[string]any) (Output, error) {
	sections := make(map[string]map[string]any, 3)

	for _, k := range slices.Sorted(maps.Keys(payload)) {
		switch k {
		case SectionExtraction, SectionBaseline, SectionAnalysis:
			m, err := cast.ToStringMapE(payload[k])
			if err != nil {
				return Output{}, model.NewConfigValidation(k, "must be an object")
			}

			sections[k] = m
		default:
			return Output{}, model.NewConfigValidation(k, "unknown section")
		}
	}

	ex, err := c.extract(ctx, in, sections[SectionExtraction])
	if err != nil {
		return Output{}, err
	}

	bl, err := c.baseline(Input{Curves: ex.Extracted}, sections[SectionBaseline])
	if err != nil {
		return Output{}, err
	}

	an, err := c.analyze(ctx, Input{Curves: bl.Curves}, sections[SectionAnalysis])
	if err != nil {
		return Output{}, err
	}

	return Output{
		Extracted: ex.Extracted,
		Curves:    bl.Curves,
		Baselines: bl.Baselines,
		Peaks:     an.Peaks,
		Metadata: map[string]any{
			SectionExtraction: ex.Metadata[SectionExtraction],
			SectionBaseline:   bl.Metadata[SectionBaseline],
		},
	}, nil
}

// request converts the analyze payload into a strategy request. Without a
// mode the context default applies; "custom" carries the manual strategy.
func (c *Context) request(payload map[string]any) (strategy.Request, error) {
	modeName := c.cfg.Mode
	name := c.cfg.Strategy

	var req strategy.Request

	for _, k := range slices.Sorted(maps.Keys(payload)) {
		v := payload[k]

		switch k {
		case KeyMode:
			s, err := cast.ToStringE(v)
			if err != nil {
				return strategy.Request{}, model.NewConfigValidation(k, "must be a string")
			}

			modeName = s
		case KeyStrategy:
			s, err := cast.ToStringE(v)
			if err != nil {
				return strategy.Request{}, model.NewConfigValidation(k, "must be a string")
			}

			name = s
		case KeyOverrides:
			m, err := cast.ToStringMapE(v)
			if err != nil {
				return strategy.Request{}, model.NewConfigValidation(k, "must be an object")
			}

			req.Overrides = m
		case KeyCustom:
			s, err := customStrategy(v)
			if err != nil {
				return strategy.Request{}, err
			}

			req.Strategy = s
		default:
			return strategy.Request{}, model.NewConfigValidation(k, "unknown analysis key")
		}
	}

	mode, err := strategy.ParseMode(modeName)
	if err != nil {
		return strategy.Request{}, err
	}

	req.Mode = mode
	req.Name = name

	switch mode {
	case strategy.Predefined:
		if name == "" {
			return strategy.Request{}, model.NewConfigValidation(KeyStrategy, "required in predefined mode")
		}
	case strategy.Manual:
		if req.Strategy.PeakDetection == "" {
			return strategy.Request{}, model.NewConfigValidation(KeyCustom, "required in manual mode")
		}
	}

	return req, nil
}

// customStrategy reads a strategy from an open object. Component keys
// select implementations, "name" names it, and "config" or any other key
// lands in its configuration.
func customStrategy(v any) (model.Strategy, error) {
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return model.Strategy{}, model.NewConfigValidation(KeyCustom, "must be an object")
	}

	s := model.Strategy{Name: "custom", Version: strategy.Version, Config: make(map[string]any)}
	components := model.ComponentKeys()

	for _, k := range slices.Sorted(maps.Keys(m)) {
		switch {
		case k == "name":
			s.Name = cast.ToString(m[k])
		case k == "config":
			cfg, err := cast.ToStringMapE(m[k])
			if err != nil {
				return model.Strategy{}, model.NewConfigValidation("custom.config", "must be an object")
			}

			maps.Copy(s.Config, cfg)
		case slices.Contains(components, k):
			name, err := cast.ToStringE(m[k])
			if err != nil {
				return model.Strategy{}, model.NewConfigValidation("custom."+k, "must be a string")
			}

			s = s.With(k, name)
		default:
			s = s.WithConfig(k, m[k])
		}
	}

	return s, nil
}

func curvesOf(in Input) []model.Curve {
	if len(in.Curves) > 0 {
		return in.Curves
	}

	if in.Container != nil {
		return in.Container.Curves
	}

	return nil
}

func sourceOf(in Input) string {
	if in.Source != "" {
		return in.Source
	}

	if in.Container != nil {
		return in.Container.Source()
	}

	return ""
}
