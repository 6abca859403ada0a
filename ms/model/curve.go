package model

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/cwbudde/algo-spectro/dsp/interp"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// CurveType is the semantic type of a curve.
type CurveType string

const (
	CurveDriftTime    CurveType = "drift_time"
	CurveTotalIon     CurveType = "total_ion"
	CurveExtractedIon CurveType = "extracted_ion"
	CurveBaseline     CurveType = "baseline"
	CurveCorrected    CurveType = "corrected"
	CurveFitted       CurveType = "fitted"
)

// Curve is a one-dimensional intensity profile. X is ascending and has the
// same length as Y. Curves are immutable: use WithY to obtain a transformed
// copy.
type Curve struct {
	ID       string
	Type     CurveType
	X        []float64
	Y        []float64
	XLabel   string
	YLabel   string
	XUnit    string
	YUnit    string
	XMin     float64
	XMax     float64
	YMin     float64
	YMax     float64
	MZRange  *Range // originating m/z window, if any
	Metadata map[string]any
}

// CurveOption configures a curve under construction.
type CurveOption func(*Curve)

// WithLabels sets the axis labels and units.
func WithLabels(xLabel, xUnit, yLabel, yUnit string) CurveOption {
	return func(c *Curve) {
		c.XLabel, c.XUnit, c.YLabel, c.YUnit = xLabel, xUnit, yLabel, yUnit
	}
}

// WithMZRange records the m/z window the curve was extracted from.
func WithMZRange(r Range) CurveOption {
	return func(c *Curve) {
		rr := r
		c.MZRange = &rr
	}
}

// WithID overrides the generated identifier.
func WithID(id string) CurveOption {
	return func(c *Curve) {
		if id != "" {
			c.ID = id
		}
	}
}

// WithMetadata merges entries into the curve metadata.
func WithMetadata(m map[string]any) CurveOption {
	return func(c *Curve) {
		maps.Copy(c.Metadata, m)
	}
}

// NewCurve validates x and y and returns a curve owning copies of both. x
// must be non-decreasing and every value finite.
func NewCurve(typ CurveType, x, y []float64, opts ...CurveOption) (Curve, error) {
	if len(x) != len(y) {
		return Curve{}, NewInvalidInput(fmt.Sprintf("curve: %d x values but %d y values", len(x), len(y)))
	}
	for i := range x {
		if math.IsNaN(x[i]) || math.IsInf(x[i], 0) || math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return Curve{}, NewInvalidInput(fmt.Sprintf("curve: non-finite sample at index %d", i))
		}
		if i > 0 && x[i] < x[i-1] {
			return Curve{}, NewInvalidInput(fmt.Sprintf("curve: x not ascending at index %d", i))
		}
	}

	c := Curve{
		ID:       NewID("curve"),
		Type:     typ,
		X:        slices.Clone(x),
		Y:        slices.Clone(y),
		YLabel:   "Intensity",
		YUnit:    "counts",
		Metadata: make(map[string]any),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&c)
		}
	}
	c.updateBounds()
	return c, nil
}

func (c *Curve) updateBounds() {
	if len(c.X) == 0 {
		c.XMin, c.XMax, c.YMin, c.YMax = 0, 0, 0, 0
		return
	}
	c.XMin, c.XMax = c.X[0], c.X[len(c.X)-1]
	c.YMin, c.YMax = slices.Min(c.Y), slices.Max(c.Y)
}

// Len returns the number of points.
func (c Curve) Len() int { return len(c.X) }

// Empty reports whether the curve has no points.
func (c Curve) Empty() bool { return len(c.X) == 0 }

// Clone returns a deep copy with the same identifier.
func (c Curve) Clone() Curve {
	out := c
	out.X = slices.Clone(c.X)
	out.Y = slices.Clone(c.Y)
	out.Metadata = maps.Clone(c.Metadata)
	if c.MZRange != nil {
		r := *c.MZRange
		out.MZRange = &r
	}
	return out
}

// WithY returns a new curve of type typ sharing this curve's x axis, labels
// and m/z window, with y replaced. The result gets a fresh identifier and
// records its parent in metadata.
func (c Curve) WithY(typ CurveType, y []float64) (Curve, error) {
	opts := []CurveOption{
		WithLabels(c.XLabel, c.XUnit, c.YLabel, c.YUnit),
		WithMetadata(map[string]any{"parent_curve": c.ID}),
	}
	if c.MZRange != nil {
		opts = append(opts, WithMZRange(*c.MZRange))
	}
	return NewCurve(typ, c.X, y, opts...)
}

// Stats returns the derived statistics of the curve.
func (c Curve) Stats() CurveStats {
	s := profile.Calculate(c.Y)
	return CurveStats{
		PointCount:         s.Length,
		TotalIonCurrent:    s.Sum,
		MeanIntensity:      s.Mean,
		IntensityStd:       s.Std,
		BaselineIntensity:  s.Min,
		NoiseLevel:         s.Noise,
		SignalToNoise:      s.SNR,
		DetectionThreshold: s.Min + 3*s.Std,
	}
}

// CurveStats summarises a curve's intensity distribution.
type CurveStats struct {
	PointCount         int     `json:"point_count"`
	TotalIonCurrent    float64 `json:"total_ion_current"`
	MeanIntensity      float64 `json:"mean_intensity"`
	IntensityStd       float64 `json:"intensity_std"`
	BaselineIntensity  float64 `json:"baseline_intensity"`
	NoiseLevel         float64 `json:"noise_level"`
	SignalToNoise      float64 `json:"signal_to_noise"`
	DetectionThreshold float64 `json:"detection_threshold"`
}

// Area integrates the curve with the trapezoidal rule.
func (c Curve) Area() float64 {
	return profile.Trapezoid(c.X, c.Y)
}

// AreaBetween integrates the curve over [lo, hi], interpolating the edges.
func (c Curve) AreaBetween(lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	lo = math.Max(lo, c.XMin)
	hi = math.Min(hi, c.XMax)
	if c.Len() < 2 || hi <= lo {
		return 0
	}

	xs := []float64{lo}
	ys := []float64{c.IntensityAt(lo)}
	for i, v := range c.X {
		if v > lo && v < hi {
			xs = append(xs, v)
			ys = append(ys, c.Y[i])
		}
	}
	xs = append(xs, hi)
	ys = append(ys, c.IntensityAt(hi))

	return profile.Trapezoid(xs, ys)
}

// IntensityAt returns the linearly interpolated intensity at x, or 0 outside
// the curve's x range.
func (c Curve) IntensityAt(x float64) float64 {
	return interp.Linear(c.X, c.Y, x)
}

// Contains reports whether x lies within [XMin, XMax].
func (c Curve) Contains(x float64) bool {
	return c.Len() > 0 && x >= c.XMin && x <= c.XMax
}

// IndexOf returns the index of the sample closest to x.
func (c Curve) IndexOf(x float64) int {
	if c.Len() == 0 {
		return -1
	}
	i, _ := slices.BinarySearch(c.X, x)
	if i >= c.Len() {
		return c.Len() - 1
	}
	if i > 0 && x-c.X[i-1] < c.X[i]-x {
		return i - 1
	}
	return i
}
