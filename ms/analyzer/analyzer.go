// Package analyzer runs peak analysis on a curve: detection, fitting,
// overlap resolution and quality scoring.
//
// A detection error ends the analysis. Fit failures never do: the peaks of
// a group whose fit fails are built from the detection estimate, their
// R-squared halved and the failure recorded in metadata.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
	"github.com/cwbudde/algo-spectro/ms/peak/shape"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// Stage is a step of the analysis.
type Stage int

const (
	StageDetect Stage = iota
	StageFit
	StageResolveOverlaps
	StageScore
)

var stageNames = [...]string{"detect", "fit", "resolve_overlaps", "score"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageReport describes one completed stage.
type StageReport struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Peaks    int           `json:"peaks"`
	Failed   int           `json:"failed,omitempty"` // groups whose fit or resolution failed
	Error    string        `json:"error,omitempty"`
}

// Result is the outcome of Analyze.
type Result struct {
	Peaks   []model.Peak
	Fitted  model.Curve // sum of the fitted peaks over the detection baseline
	Levels  detect.Levels
	Success bool
	Stages  []StageReport
}

// fitSpan is the half width of a fit window in FWHMs.
const fitSpan = 3

// Analyzer is a configured peak analysis. It holds no per-curve state and
// is safe for concurrent use.
type Analyzer struct {
	cfg       Config
	detector  detect.Detector
	method    fit.Method
	model     shape.Model
	optimizer fit.Optimizer
	overlap   overlap.Method
	log       *slog.Logger
}

// New resolves the method names of cfg. Unknown names are reported as
// unknown-method errors; empty names take their defaults.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	def := DefaultConfig()
	if cfg.Detector == "" {
		cfg.Detector = def.Detector
	}
	if cfg.FittingMethod == "" {
		cfg.FittingMethod = def.FittingMethod
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = def.Optimizer
	}
	if cfg.OverlapMethod == "" {
		cfg.OverlapMethod = def.OverlapMethod
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Analyzer{cfg: cfg, log: slog.New(slog.DiscardHandler)}

	dm, err := detect.ParseMethod(cfg.Detector)
	if err != nil {
		return nil, err
	}
	if a.detector, err = detect.New(dm); err != nil {
		return nil, err
	}
	if a.method, err = fit.ParseMethod(cfg.FittingMethod); err != nil {
		return nil, err
	}
	if a.model, err = shape.New(a.method.Shape()); err != nil {
		return nil, err
	}
	if a.optimizer, err = fit.ParseOptimizer(cfg.Optimizer); err != nil {
		return nil, err
	}
	if a.overlap, err = overlap.ParseMethod(cfg.OverlapMethod); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a, nil
}

// Config returns the resolved configuration.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze detects, fits, resolves and scores the peaks of c. The returned
// peaks are sorted by center and reference c by identifier.
func (a *Analyzer) Analyze(ctx context.Context, c model.Curve) (Result, error) {
	if c.Len() < 3 {
		return Result{}, model.NewInvalidInput("curve needs at least 3 points").WithDetail("curve", c.ID)
	}
	log := a.log.With("curve", c.ID)
	res := Result{Peaks: []model.Peak{}}

	// Detect
	if err := canceled(ctx); err != nil {
		return res, err
	}
	start := time.Now()
	cands, err := a.detector.Detect(c, a.cfg.Detection)
	if err != nil {
		res.Stages = append(res.Stages, StageReport{Stage: StageDetect.String(), Duration: time.Since(start), Error: err.Error()})
		log.Error("detection failed", "op", StageDetect.String(), "err", err)
		return res, err
	}
	res.Levels = detect.ComputeLevels(c.Y, a.cfg.Detection)
	res.Stages = append(res.Stages, a.report(log, StageDetect, start, len(cands), 0))

	seeds := make([]seed, len(cands))
	for i, cand := range cands {
		seeds[i] = seed{Candidate: cand, detector: a.detector.Method().String()}
	}
	return a.finish(ctx, log, c, seeds, res)
}

// AnalyzePeaks fits, resolves and scores existing peaks of c instead of
// detecting new ones. Peaks keep their identifiers and detection metadata.
// Without peaks it behaves like Analyze.
func (a *Analyzer) AnalyzePeaks(ctx context.Context, c model.Curve, peaks []model.Peak) (Result, error) {
	if len(peaks) == 0 {
		return a.Analyze(ctx, c)
	}
	if c.Len() < 3 {
		return Result{}, model.NewInvalidInput("curve needs at least 3 points").WithDetail("curve", c.ID)
	}
	seeds, err := a.seedsFrom(c, peaks)
	if err != nil {
		return Result{}, err
	}
	res := Result{Peaks: []model.Peak{}, Levels: detect.ComputeLevels(c.Y, a.cfg.Detection)}
	return a.finish(ctx, a.log.With("curve", c.ID), c, seeds, res)
}

// seedsFrom turns peaks into fit seeds. Peaks that overlap share a group
// and are fitted jointly.
func (a *Analyzer) seedsFrom(c model.Curve, peaks []model.Peak) ([]seed, error) {
	group := make([]int, len(peaks))
	for g, members := range overlap.Groups(peaks, a.cfg.Overlap.Tolerance) {
		for _, i := range members {
			group[i] = g
		}
	}

	seeds := make([]seed, len(peaks))
	for i, p := range peaks {
		if !c.Contains(p.Center) {
			return nil, model.NewInvalidInput("peak center outside curve").
				WithDetail("peak", p.ID).WithDetail("curve", c.ID)
		}
		idx := c.IndexOf(p.Center)
		lo, hi := p.LeftBound, p.RightBound
		if !(hi > lo) {
			lo, hi = p.Center-p.FWHM, p.Center+p.FWHM
		}
		conf := p.Confidence()
		if !(conf > 0) {
			conf = maximumConfidence
		}
		detector, _ := p.Metadata[model.MetaDetector].(string)
		seeds[i] = seed{
			Candidate: detect.Candidate{
				Index:      idx,
				X:          p.Center,
				Height:     c.Y[idx],
				LeftIndex:  c.IndexOf(lo),
				RightIndex: c.IndexOf(hi),
				Width:      p.FWHM,
				Confidence: conf,
				Group:      group[i],
			},
			id:        p.ID,
			detector:  detector,
			amplitude: p.Amplitude,
		}
	}
	return seeds, nil
}

// maximumConfidence is the confidence given to peaks that carry none.
const maximumConfidence = 0.8

// finish runs the Fit, ResolveOverlaps and Score stages on seeds.
func (a *Analyzer) finish(ctx context.Context, log *slog.Logger, c model.Curve, seeds []seed, res Result) (Result, error) {
	work, err := a.workCurve(c, res.Levels.Baseline)
	if err != nil {
		return res, err
	}

	// Fit
	if err := canceled(ctx); err != nil {
		return res, err
	}
	start := time.Now()
	peaks, failed := a.fitAll(c, work, seeds)
	res.Stages = append(res.Stages, a.report(log, StageFit, start, len(peaks), failed))

	// ResolveOverlaps
	if err := canceled(ctx); err != nil {
		return res, err
	}
	start = time.Now()
	peaks, outcome, err := overlap.Apply(work, peaks, a.overlap, a.cfg.Overlap)
	if err != nil {
		return res, err
	}
	res.Stages = append(res.Stages, a.report(log, StageResolveOverlaps, start, outcome.Resolved, outcome.Failed))

	// Score
	start = time.Now()
	for i := range peaks {
		peaks[i].Quality = Quality(peaks[i], a.cfg.Weights)
	}
	res.Stages = append(res.Stages, a.report(log, StageScore, start, len(peaks), 0))

	res.Peaks = peaks
	res.Success = true
	if res.Fitted, err = fittedCurve(c, peaks, res.Levels.Baseline); err != nil {
		return res, err
	}
	return res, nil
}

func (a *Analyzer) report(log *slog.Logger, s Stage, start time.Time, peaks, failed int) StageReport {
	r := StageReport{Stage: s.String(), Duration: time.Since(start), Peaks: peaks, Failed: failed}
	log.Debug("stage finished", "op", r.Stage, "peaks", peaks, "failed", failed, "duration", r.Duration)
	return r
}

// workCurve returns c shifted down by the detection baseline. Fits and
// overlap resolution operate on it.
func (a *Analyzer) workCurve(c model.Curve, baseline float64) (model.Curve, error) {
	y := make([]float64, c.Len())
	for i, v := range c.Y {
		y[i] = v - baseline
	}
	return c.WithY(c.Type, y)
}

// fitAll fits every group of candidates and returns the peaks sorted by
// center together with the number of failed groups.
func (a *Analyzer) fitAll(c, work model.Curve, seeds []seed) ([]model.Peak, int) {
	var (
		peaks  []model.Peak
		failed int
	)
	for _, group := range a.groups(seeds) {
		ps, ok := a.fitGroup(c, work, group)
		if !ok {
			failed++
		}
		peaks = append(peaks, ps...)
	}
	model.SortPeaks(peaks)
	return peaks, failed
}

// seed is a candidate to fit, optionally carrying the identity of the peak
// it came from.
type seed struct {
	detect.Candidate
	id        string
	detector  string
	amplitude float64 // starting height above the baseline; 0 reads it off the curve
}

// groups splits the seeds into jointly fitted runs: seeds of one detected
// hump always share a run, and MultiPeak also joins runs whose fit windows
// intersect.
func (a *Analyzer) groups(seeds []seed) [][]seed {
	seeds = slices.Clone(seeds)
	slices.SortStableFunc(seeds, func(p, q seed) int { return p.Index - q.Index })

	var out [][]seed
	for i, s := range seeds {
		if i > 0 && a.joins(out[len(out)-1], s) {
			out[len(out)-1] = append(out[len(out)-1], s)
			continue
		}
		out = append(out, []seed{s})
	}
	return out
}

func (a *Analyzer) joins(run []seed, cand seed) bool {
	last := run[len(run)-1]
	if last.Group == cand.Group {
		return true
	}
	if a.method != fit.MultiPeak {
		return false
	}
	return last.X+fitSpan*last.Width >= cand.X-fitSpan*cand.Width
}

// fitGroup fits one run of seeds jointly on work. It reports false when the
// fit failed and the peaks carry the detection estimate.
func (a *Analyzer) fitGroup(c, work model.Curve, group []seed) ([]model.Peak, bool) {
	step := profile.MedianSpacing(c.X)
	seeds := make([]fit.Seed, len(group))
	peaks := make([]model.Peak, len(group))
	for i, cand := range group {
		width := cand.Width
		if !(width > 0) {
			width = 4 * step
		}
		height := work.Y[cand.Index]
		if cand.amplitude > 0 {
			height = cand.amplitude
		}
		seeds[i] = fit.Seed{Center: cand.X, Height: height, FWHM: width}

		p := model.NewPeak(c.ID, cand.X, height, width)
		if cand.id != "" {
			p.ID = cand.id
		}
		p.LeftBound = cand.Left(c.X)
		p.RightBound = cand.Right(c.X)
		p.Metadata[model.MetaConfidence] = cand.Confidence
		if cand.detector != "" {
			p.Metadata[model.MetaDetector] = cand.detector
		}
		peaks[i] = p
	}

	j := fit.Joint{Model: a.model, Optimizer: a.optimizer, Options: a.cfg.Fit}
	lo, hi := fit.WindowFor(seeds, fitSpan)
	res, err := j.Fit(work, seeds, lo, hi)
	if err == nil {
		err = a.check(c, res)
	}
	if err != nil {
		return a.estimate(work, peaks, seeds, lo, hi, res, err), false
	}

	for i := range peaks {
		peaks[i] = fit.ApplyParams(peaks[i], a.model, res.Peaks[i])
		fit.Record(&peaks[i], res.Result)
	}
	return peaks, true
}

// check rejects fits that did not converge or moved an apex off the curve.
func (a *Analyzer) check(c model.Curve, res fit.JointResult) error {
	if !res.Converged {
		return model.NewNonConvergence(res.Optimizer.String(), res.Iterations)
	}
	for _, p := range res.Peaks {
		s := shape.Describe(a.model, p)
		if !c.Contains(s.Center) || !(s.FWHM > 0) {
			return model.NewNonConvergence(res.Optimizer.String(), res.Iterations).
				WithDetail("reason", "apex outside curve")
		}
	}
	return nil
}

// estimate describes a failed group by its detection estimate. R-squared is
// that of the fit when one was made, else that of the estimate, halved.
func (a *Analyzer) estimate(work model.Curve, peaks []model.Peak, seeds []fit.Seed, lo, hi float64, res fit.JointResult, cause error) []model.Peak {
	j := fit.Joint{Model: a.model}
	params, r2 := j.Estimate(work, seeds, lo, hi)
	if res.Params != nil {
		r2 = res.RSquared
	}

	for i := range peaks {
		p := &peaks[i]
		p.Shape = a.model.Kind().String()
		p.Params = params[i]
		p.Area = a.model.Area(params[i])
		p.RSquared = min(max(r2, 0), 1) * 0.5
		p.Metadata[model.MetaConverged] = false
		p.Metadata[model.MetaFitError] = cause.Error()
		p.Metadata[model.MetaFittingMethod] = a.optimizer.String()
		if res.Params != nil {
			p.Metadata[model.MetaIterations] = res.Iterations
		}
	}
	return peaks
}

// fittedCurve evaluates the peaks over c's x axis on top of baseline.
func fittedCurve(c model.Curve, peaks []model.Peak, baseline float64) (model.Curve, error) {
	y := make([]float64, c.Len())
	for i := range y {
		y[i] = baseline
	}
	for _, p := range peaks {
		k, err := shape.ParseKind(p.Shape)
		if err != nil {
			continue
		}
		m, err := shape.New(k)
		if err != nil || len(p.Params) != m.NumParams() {
			continue
		}
		for i, x := range c.X {
			y[i] += m.Eval(x, p.Params)
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			y[i] = baseline
		}
	}
	return c.WithY(model.CurveFitted, y)
}

func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return model.NewCanceled(err)
	}
	return nil
}
