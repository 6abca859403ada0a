// Package strategy selects and runs peak analysis strategies.
//
// A Registry describes every pluggable component by type and name. A
// Controller holds the registry and the named strategies, picks a strategy
// per request in one of four modes and runs the analyzer plus the
// strategy's advanced and post-processing stages.
package strategy

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/cwbudde/algo-spectro/ms/analyzer"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// Automatic mode thresholds.
const (
	maxDensity = 0.3 // fraction of samples inside a peak's FWHM
	minSNR     = 10
)

// Controller picks strategies and runs them. Every method serializes on one
// mutex; Init must be called before anything else.
type Controller struct {
	mu         sync.Mutex
	registry   *Registry
	strategies *orderedmap.OrderedMap[string, model.Strategy]
	extra      []model.Strategy
	base       analyzer.Config
	log        *slog.Logger
	ready      bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger processing events are written to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.log = l
		}
	}
}

// WithBaseConfig sets the analyzer configuration strategies start from.
func WithBaseConfig(cfg analyzer.Config) Option {
	return func(c *Controller) { c.base = cfg }
}

// WithStrategies adds strategies registered by Init after the predefined
// ones.
func WithStrategies(s ...model.Strategy) Option {
	return func(c *Controller) { c.extra = append(c.extra, s...) }
}

// NewController returns an uninitialized controller over r. A nil registry
// selects DefaultRegistry.
func NewController(r *Registry, opts ...Option) *Controller {
	if r == nil {
		r = DefaultRegistry()
	}

	c := &Controller{
		registry:   r,
		strategies: orderedmap.New[string, model.Strategy](),
		base:       analyzer.DefaultConfig(),
		log:        slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c
}

// Init registers the predefined strategies and marks the controller ready.
// Calling it again is a no-op.
func (c *Controller) Init() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready {
		return nil
	}

	if err := c.base.Validate(); err != nil {
		return err
	}

	for _, s := range append(PredefinedStrategies(), c.extra...) {
		if err := c.add(s); err != nil {
			c.strategies = orderedmap.New[string, model.Strategy]()
			return err
		}
	}

	c.ready = true
	c.log.Info("controller initialized", "op", "init", "strategies", c.strategies.Len())

	return nil
}

// Ready reports whether Init succeeded.
func (c *Controller) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.ready
}

// AddStrategy registers a named strategy after checking it against the
// registry.
func (c *Controller) AddStrategy(s model.Strategy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("add_strategy"); err != nil {
		return err
	}

	return c.add(s)
}

func (c *Controller) add(s model.Strategy) error {
	name := normalize(s.Name)
	if name == "" {
		return model.NewConfigValidation("name", "must not be empty")
	}

	if _, exists := c.strategies.Get(name); exists {
		return model.NewConfigValidation("name", "duplicate strategy "+name)
	}

	if _, err := c.analyzerConfig(s); err != nil {
		return err
	}

	s.Name = name
	c.strategies.Set(name, cloneStrategy(s))

	return nil
}

// ListStrategies returns the registered strategies in registration order.
func (c *Controller) ListStrategies() ([]model.Strategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("list_strategies"); err != nil {
		return nil, err
	}

	out := make([]model.Strategy, 0, c.strategies.Len())
	for pair := c.strategies.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, cloneStrategy(pair.Value))
	}

	return out, nil
}

// Strategy returns the named strategy.
func (c *Controller) Strategy(name string) (model.Strategy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("strategy"); err != nil {
		return model.Strategy{}, err
	}

	s, ok := c.strategies.Get(normalize(name))
	if !ok {
		return model.Strategy{}, model.NewUnknownMethod("strategy", name)
	}

	return cloneStrategy(s), nil
}

// ListComponents returns the descriptors of type t in registration order.
func (c *Controller) ListComponents(t model.ComponentType) ([]model.ComponentDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("list_components"); err != nil {
		return nil, err
	}

	return c.registry.List(t), nil
}

// Descriptor returns the descriptor registered under t and name.
func (c *Controller) Descriptor(t model.ComponentType, name string) (model.ComponentDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("descriptor"); err != nil {
		return model.ComponentDescriptor{}, err
	}

	return c.registry.Descriptor(t, name)
}

// Schema returns the JSON Schema of a named configuration.
func (c *Controller) Schema(name string) (*jsonschema.Schema, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("schema"); err != nil {
		return nil, err
	}

	return Schema(name)
}

// ValidateConfig checks payload against a named configuration and returns
// the decoded typed value.
func (c *Controller) ValidateConfig(name string, payload map[string]any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireReady("validate_config"); err != nil {
		return nil, err
	}

	return ValidateConfig(name, payload)
}

// Process analyzes curve with the strategy req selects. Without peaks the
// analyzer detects them; otherwise the given peaks are fitted, resolved
// and scored again. The strategy is resolved and validated before the
// controller lock is taken for processing.
func (c *Controller) Process(ctx context.Context, peaks []model.Peak, curve model.Curve, req Request) ([]model.Peak, error) {
	if !c.Ready() {
		return nil, model.NewNotInitialized("process")
	}

	p, err := c.plan(curve, peaks, req)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.run(ctx, curve, peaks, p)
}

type plan struct {
	strategy model.Strategy
	config   analyzer.Config
	advanced Stage
	post     Stage
}

func (c *Controller) plan(curve model.Curve, peaks []model.Peak, req Request) (plan, error) {
	var (
		s   model.Strategy
		err error
	)

	switch req.Mode {
	case Automatic, Hybrid:
		s, err = c.Strategy(c.infer(curve, peaks))
		if err == nil && req.Mode == Hybrid {
			s, err = applyOverrides(s, req.Overrides)
		}
	case Manual:
		s = cloneStrategy(req.Strategy)
	case Predefined:
		s, err = c.Strategy(req.Name)
	default:
		err = model.NewUnknownMethod("strategy_mode", req.Mode.String())
	}

	if err != nil {
		return plan{}, err
	}

	p := plan{strategy: s}
	if p.config, err = c.analyzerConfig(s); err != nil {
		return plan{}, err
	}

	if s.AdvancedAlgorithm != "" {
		if p.advanced, err = c.registry.Build(model.AdvancedAlgorithm, s.AdvancedAlgorithm); err != nil {
			return plan{}, err
		}
	}

	if s.PostProcessing != "" {
		if p.post, err = c.registry.Build(model.PostProcessor, s.PostProcessing); err != nil {
			return plan{}, err
		}
	}

	return p, nil
}

func (c *Controller) run(ctx context.Context, curve model.Curve, peaks []model.Peak, p plan) ([]model.Peak, error) {
	log := c.log.With("curve", curve.ID, "strategy", p.strategy.Name)
	start := time.Now()

	a, err := analyzer.New(p.config, analyzer.WithLogger(log))
	if err != nil {
		return nil, err
	}

	res, err := a.AnalyzePeaks(ctx, curve, peaks)
	if err != nil {
		log.Error("analysis failed", "op", "process", "err", err)
		return nil, err
	}

	out := res.Peaks
	cfg := maps.Clone(p.strategy.Config)

	if cfg == nil {
		cfg = make(map[string]any)
	}

	cfg[model.KeyOptimizationAlgorithm] = p.config.Optimizer

	if p.advanced != nil {
		stage := p.advanced
		if cs, ok := stage.(Configurable); ok {
			stage = cs.WithAnalyzerConfig(p.config)
		}

		if out, err = stage.Process(ctx, curve, out, cfg); err != nil {
			log.Error("advanced algorithm failed", "op", "advanced", "err", err)
			return nil, err
		}

		for i := range out {
			out[i].Quality = analyzer.Quality(out[i], p.config.Weights)
		}
	}

	if p.post != nil {
		if out, err = p.post.Process(ctx, curve, out, cfg); err != nil {
			log.Error("post-processing failed", "op", "post", "err", err)
			return nil, err
		}
	}

	for i := range out {
		out[i].Metadata[model.MetaStrategy] = p.strategy.Name
	}

	log.Info("curve processed", "op", "process", "peaks", len(out), "duration", time.Since(start))

	return out, nil
}

// analyzerConfig checks the components of s against the registry and
// overlays them and the config sections of s onto the base configuration.
func (c *Controller) analyzerConfig(s model.Strategy) (analyzer.Config, error) {
	comps := s.Components()
	for _, t := range model.ComponentTypes() {
		name, ok := comps[t]
		if !ok || name == "" {
			continue
		}

		if _, err := c.registry.Descriptor(t, name); err != nil {
			return analyzer.Config{}, err
		}
	}

	ac := c.base
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&ac.Detector, s.PeakDetection},
		{&ac.FittingMethod, s.FittingMethod},
		{&ac.Optimizer, s.OptimizationAlgorithm},
		{&ac.OverlapMethod, s.OverlapProcessing},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}

	if err := applySections(&ac, s.Config); err != nil {
		return analyzer.Config{}, err
	}

	return ac, ac.Validate()
}

// infer picks a predefined strategy for automatic mode. Without peaks the
// simple detector supplies them.
func (c *Controller) infer(curve model.Curve, peaks []model.Peak) string {
	if len(peaks) == 0 && curve.Len() >= 3 {
		d, err := detect.New(detect.Simple)
		if err == nil {
			cands, err := d.Detect(curve, c.base.Detection)
			if err == nil {
				for _, cand := range cands {
					peaks = append(peaks, model.NewPeak(curve.ID, cand.X, cand.Height, cand.Width))
				}
			}
		}
	}

	return Infer(curve, peaks, c.base.Overlap.Tolerance)
}

// Infer applies the automatic-mode rules: dense or noisy peaks select
// complex_peaks, any overlapping pair selects overlapping_peaks and
// anything else simple_peaks.
func Infer(curve model.Curve, peaks []model.Peak, tolerance float64) string {
	if len(peaks) == 0 || curve.Len() < 2 {
		return SimplePeaks
	}

	if Density(curve, peaks) > maxDensity || profile.SNR(curve.Y) < minSNR {
		return ComplexPeaks
	}

	for _, g := range overlap.Groups(peaks, tolerance) {
		if len(g) > 1 {
			return OverlappingPeaks
		}
	}

	return SimplePeaks
}

// Density returns the fraction of samples covered by the peaks' FWHMs.
func Density(curve model.Curve, peaks []model.Peak) float64 {
	step := profile.MedianSpacing(curve.X)
	if len(peaks) == 0 || !(step > 0) {
		return 0
	}

	mean := 0.0
	for _, p := range peaks {
		mean += p.FWHM
	}

	mean /= float64(len(peaks))

	return float64(len(peaks)) * (mean / step) / float64(curve.Len())
}

// applyOverrides applies hybrid overrides in key order. Component keys
// select implementations; other keys go into the config payload.
func applyOverrides(s model.Strategy, overrides map[string]any) (model.Strategy, error) {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	components := model.ComponentKeys()

	for _, k := range keys {
		if !slices.Contains(components, k) {
			s = s.WithConfig(k, overrides[k])
			continue
		}

		name, err := cast.ToStringE(overrides[k])
		if err != nil {
			return model.Strategy{}, model.NewConfigValidation(k, "must be a component name")
		}

		s = s.With(k, name)
	}

	return s, nil
}

func (c *Controller) requireReady(op string) error {
	if !c.ready {
		return model.NewNotInitialized(op)
	}

	return nil
}

func cloneStrategy(s model.Strategy) model.Strategy {
	s.Config = maps.Clone(s.Config)
	return s
}
