package model

import (
	"maps"
	"math"
	"slices"

	"github.com/spf13/cast"
)

// Common peak metadata keys.
const (
	MetaConfidence    = "confidence"
	MetaAsymmetry     = "asymmetry_factor"
	MetaConverged     = "converged"
	MetaIterations    = "iterations"
	MetaRSS           = "rss"
	MetaStdError      = "standard_error"
	MetaFitError      = "fit_error"
	MetaDetector      = "detector"
	MetaFittingMethod = "fitting_method"
	MetaOverlapMethod = "overlap_method"
	MetaRawRSquared   = "raw_rsquared"
	MetaRawArea       = "raw_area"
	MetaOverlapError  = "overlap_error"
	MetaRelativeArea  = "relative_area"
	MetaStrategy      = "strategy"
)

// Peak is a detected and fitted peak on a curve. The curve is referenced by
// identifier only.
type Peak struct {
	ID              string
	CurveID         string
	Center          float64
	Amplitude       float64
	FWHM            float64
	Area            float64
	RSquared        float64 // clamped to [0, 1]
	Quality         float64 // [0, 1]
	OverlapResolved bool
	Shape           string    // shape model name
	Params          []float64 // shape model parameters
	LeftBound       float64
	RightBound      float64
	Metadata        map[string]any
}

// NewPeak returns a peak on curve with a fresh identifier and empty
// metadata.
func NewPeak(curveID string, center, amplitude, fwhm float64) Peak {
	return Peak{
		ID:        NewID("peak"),
		CurveID:   curveID,
		Center:    center,
		Amplitude: amplitude,
		FWHM:      fwhm,
		Metadata:  make(map[string]any),
	}
}

// Clone returns a deep copy with the same identifier.
func (p Peak) Clone() Peak {
	out := p
	out.Params = slices.Clone(p.Params)
	out.Metadata = maps.Clone(p.Metadata)
	if out.Metadata == nil {
		out.Metadata = make(map[string]any)
	}
	return out
}

// Confidence returns the detection confidence recorded in metadata, or 0.
func (p Peak) Confidence() float64 {
	return cast.ToFloat64(p.Metadata[MetaConfidence])
}

// Asymmetry returns the asymmetry factor (right/left half width at half
// maximum), defaulting to 1 for symmetric shapes.
func (p Peak) Asymmetry() float64 {
	v, ok := p.Metadata[MetaAsymmetry]
	if !ok {
		return 1
	}
	a := cast.ToFloat64(v)
	if a <= 0 || math.IsNaN(a) {
		return 1
	}
	return a
}

// Converged reports whether the fit converged; peaks without fit metadata
// count as converged.
func (p Peak) Converged() bool {
	v, ok := p.Metadata[MetaConverged]
	if !ok {
		return true
	}
	return cast.ToBool(v)
}

// Overlaps reports whether the half-maximum windows of p and q intersect by
// more than tolerance times the narrower FWHM.
func (p Peak) Overlaps(q Peak, tolerance float64) bool {
	return OverlapAmount(p, q) > tolerance*math.Min(p.FWHM, q.FWHM)
}

// OverlapAmount returns (fwhm_p + fwhm_q)/2 - |center_p - center_q|, which is
// positive when the half-maximum windows intersect.
func OverlapAmount(p, q Peak) float64 {
	return (p.FWHM+q.FWHM)/2 - math.Abs(p.Center-q.Center)
}

// SortPeaks orders peaks by center.
func SortPeaks(peaks []Peak) {
	slices.SortStableFunc(peaks, func(a, b Peak) int {
		switch {
		case a.Center < b.Center:
			return -1
		case a.Center > b.Center:
			return 1
		}
		return 0
	})
}
