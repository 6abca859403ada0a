// Package detect locates peak candidates on intensity curves.
//
// Detectors share a noise-derived intensity threshold: the median intensity
// plus a multiple of the robust noise sigma, raised to a floor proportional
// to the curve's dynamic range that tightens as sensitivity drops. A flat
// curve has no candidates.
package detect

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// Method enumerates the built-in detectors.
type Method int

const (
	Simple Method = iota
	PeakFinder
	CWT
)

var methodNames = [...]string{"simple", "peak_finder", "cwt"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods lists the built-in detectors.
func Methods() []Method { return []Method{Simple, PeakFinder, CWT} }

// ParseMethod returns the detector with the given name.
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "local_maxima":
		return Simple, nil
	case "prominence", "find_peaks":
		return PeakFinder, nil
	case "wavelet":
		return CWT, nil
	}
	for i, s := range methodNames {
		if s == n {
			return Method(i), nil
		}
	}
	return 0, model.NewUnknownMethod("peak_detection", name)
}

// Params controls detection. Widths are in x units; zero disables the
// corresponding filter.
type Params struct {
	Sensitivity         float64 `json:"sensitivity" yaml:"sensitivity" jsonschema:"minimum=0,maximum=1,default=0.5"`
	ThresholdMultiplier float64 `json:"threshold_multiplier" yaml:"threshold_multiplier" jsonschema:"minimum=0,default=3"`
	MinPeakWidth        float64 `json:"min_peak_width" yaml:"min_peak_width" jsonschema:"minimum=0,default=0"`
	MaxPeakWidth        float64 `json:"max_peak_width" yaml:"max_peak_width" jsonschema:"minimum=0,default=0"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{Sensitivity: 0.5, ThresholdMultiplier: 3}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Sensitivity < 0 || p.Sensitivity > 1:
		return model.NewConfigValidation("sensitivity", "must be in [0, 1]")
	case p.ThresholdMultiplier < 0:
		return model.NewConfigValidation("threshold_multiplier", "must be >= 0")
	case p.MinPeakWidth < 0:
		return model.NewConfigValidation("min_peak_width", "must be >= 0")
	case p.MaxPeakWidth < 0:
		return model.NewConfigValidation("max_peak_width", "must be >= 0")
	case p.MaxPeakWidth > 0 && p.MaxPeakWidth < p.MinPeakWidth:
		return model.NewConfigValidation("max_peak_width", "must be >= min_peak_width")
	}
	return nil
}

// Candidate is a detected peak before fitting.
type Candidate struct {
	Index      int     // sample index of the apex
	X          float64 // apex position
	Height     float64 // intensity at the apex
	LeftIndex  int
	RightIndex int
	Width      float64 // FWHM estimate in x units
	Confidence float64
	Shoulder   bool // resolved from curvature rather than a local maximum
	Group      int  // candidates sharing a hump share a group
}

// Left returns the x position of the left bound.
func (c Candidate) Left(x []float64) float64 { return x[c.LeftIndex] }

// Right returns the x position of the right bound.
func (c Candidate) Right(x []float64) float64 { return x[c.RightIndex] }

// Detector finds candidates on a curve.
type Detector interface {
	Method() Method
	Detect(c model.Curve, p Params) ([]Candidate, error)
}

// New returns the detector for m.
func New(m Method) (Detector, error) {
	switch m {
	case Simple:
		return simple{}, nil
	case PeakFinder:
		return peakFinder{}, nil
	case CWT:
		return cwt{}, nil
	}
	return nil, model.NewUnknownMethod("peak_detection", m.String())
}

// Levels are the intensity levels detection works against.
type Levels struct {
	Baseline  float64 `json:"baseline"`
	Noise     float64 `json:"noise"`
	Threshold float64 `json:"threshold"`
	Range     float64 `json:"range"`
}

// Flat reports whether the curve has no dynamic range.
func (l Levels) Flat() bool { return !(l.Range > 0) }

// ComputeLevels derives the detection threshold for y.
func ComputeLevels(y []float64, p Params) Levels {
	if len(y) == 0 {
		return Levels{}
	}
	l := Levels{
		Baseline: profile.Median(y),
		Noise:    profile.Noise(y),
		Range:    slices.Max(y) - slices.Min(y),
	}
	floor := (1 - p.Sensitivity) * 0.1 * l.Range
	l.Threshold = l.Baseline + max(p.ThresholdMultiplier*l.Noise, floor)
	return l
}

// prepare validates p and returns the levels for c, or ok=false when there
// is nothing to detect.
func prepare(c model.Curve, p Params) (Levels, bool, error) {
	if err := p.Validate(); err != nil {
		return Levels{}, false, err
	}
	if c.Len() < 3 {
		return Levels{}, false, nil
	}
	l := ComputeLevels(c.Y, p)
	return l, !l.Flat(), nil
}

// keepWidth applies the width filters.
func keepWidth(cands []Candidate, p Params) []Candidate {
	return slices.DeleteFunc(cands, func(c Candidate) bool {
		if p.MinPeakWidth > 0 && c.Width < p.MinPeakWidth {
			return true
		}
		return p.MaxPeakWidth > 0 && c.Width > p.MaxPeakWidth
	})
}

// widthAt measures the width of the feature around i at level, searching
// no further than [lo, hi] and interpolating the crossings linearly.
func widthAt(x, y []float64, i int, level float64, lo, hi int) float64 {
	l := i
	for l > lo && y[l] > level {
		l--
	}
	xl := x[l]
	if l < i && y[l] <= level && y[l+1] != y[l] {
		xl = x[l] + (level-y[l])/(y[l+1]-y[l])*(x[l+1]-x[l])
	}

	r := i
	for r < hi && y[r] > level {
		r++
	}
	xr := x[r]
	if r > i && y[r] <= level && y[r-1] != y[r] {
		xr = x[r-1] + (level-y[r-1])/(y[r]-y[r-1])*(x[r]-x[r-1])
	}
	return math.Max(xr-xl, 0)
}

// localMaxima returns the indices of interior samples that are the first
// maximum of the window [i-hw, i+hw] and lie above threshold.
func localMaxima(y []float64, hw int, threshold float64) []int {
	var out []int
	for i := 1; i < len(y)-1; i++ {
		if y[i] <= threshold {
			continue
		}
		ok := true
		for j := max(0, i-hw); j <= min(len(y)-1, i+hw) && ok; j++ {
			switch {
			case j < i:
				ok = y[j] < y[i]
			case j > i:
				ok = y[j] <= y[i]
			}
		}
		if ok && (y[i+1] < y[i] || plateauEnds(y, i)) {
			out = append(out, i)
		}
	}
	return out
}

// plateauEnds reports whether a flat run starting at i eventually falls.
func plateauEnds(y []float64, i int) bool {
	j := i
	for j < len(y)-1 && y[j+1] == y[i] {
		j++
	}
	return j < len(y)-1 && y[j+1] < y[i]
}

// halfWindow converts a width in x units to a half window in samples.
func halfWindow(width, step float64) int {
	if width <= 0 || step <= 0 {
		return 1
	}
	return max(1, int(math.Round(width/step/2)))
}

// humpBounds narrows the prominence bounds [lo, hi] of tops[k] to the
// lowest samples between it and its neighbouring maxima, so the hump of a
// tall peak never spans a separate one.
func humpBounds(y []float64, tops []int, k, lo, hi int) (int, int) {
	if k > 0 && tops[k-1] >= lo {
		lo = argmin(y, tops[k-1], tops[k])
	}
	if k+1 < len(tops) && tops[k+1] <= hi {
		hi = argmin(y, tops[k], tops[k+1])
	}
	return lo, hi
}

// argmin returns the index of the smallest v in [lo, hi].
func argmin(v []float64, lo, hi int) int {
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if v[i] < v[best] {
			best = i
		}
	}
	return best
}

// dedupe sorts the candidates by index and keeps one per index, preferring
// a local maximum over a shoulder.
func dedupe(c []Candidate) []Candidate {
	slices.SortStableFunc(c, func(a, b Candidate) int {
		if a.Index != b.Index {
			return a.Index - b.Index
		}
		switch {
		case !a.Shoulder && b.Shoulder:
			return -1
		case a.Shoulder && !b.Shoulder:
			return 1
		}
		return 0
	})
	return slices.CompactFunc(c, func(a, b Candidate) bool { return a.Index == b.Index })
}

func sortByIndex(c []Candidate) {
	slices.SortFunc(c, func(a, b Candidate) int { return a.Index - b.Index })
}
