package model

import (
	"maps"
	"math"
	"slices"

	"github.com/spf13/cast"
)

// Metadata keys filled by loaders.
const (
	MetaMZMin  = "mz_min"
	MetaMZMax  = "mz_max"
	MetaRTMin  = "rt_min"
	MetaRTMax  = "rt_max"
	MetaSource = "source"
)

// Container holds one acquisition: metadata, raw spectra and the curves and
// peaks derived from them. A container belongs to the invocation that
// created it; caches hand out snapshots.
type Container struct {
	Metadata map[string]any
	Spectra  []Spectrum
	Curves   []Curve
	Peaks    []Peak
}

// NewContainer builds a container from spectra and fills the four range
// bounds and the spectrum count.
func NewContainer(source string, spectra []Spectrum) *Container {
	c := &Container{
		Metadata: map[string]any{MetaSource: source},
		Spectra:  spectra,
	}
	c.UpdateBounds()
	return c
}

// UpdateBounds recomputes mz_min, mz_max, rt_min, rt_max and spectra_count
// from the spectra.
func (c *Container) UpdateBounds() {
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}

	mzMin, mzMax := math.Inf(1), math.Inf(-1)
	rtMin, rtMax := math.Inf(1), math.Inf(-1)
	for i := range c.Spectra {
		s := &c.Spectra[i]
		rtMin = math.Min(rtMin, s.RT)
		rtMax = math.Max(rtMax, s.RT)
		if lo, hi, ok := s.MZBounds(); ok {
			mzMin = math.Min(mzMin, lo)
			mzMax = math.Max(mzMax, hi)
		}
	}

	if len(c.Spectra) == 0 {
		rtMin, rtMax = 0, 0
	}
	if math.IsInf(mzMin, 1) {
		mzMin, mzMax = 0, 0
	}

	c.Metadata[MetaMZMin] = mzMin
	c.Metadata[MetaMZMax] = mzMax
	c.Metadata[MetaRTMin] = rtMin
	c.Metadata[MetaRTMax] = rtMax
	c.Metadata["spectra_count"] = len(c.Spectra)
}

// MZBounds returns the m/z range recorded in the metadata.
func (c *Container) MZBounds() Range {
	return c.bounds(MetaMZMin, MetaMZMax)
}

// RTBounds returns the retention-time range recorded in the metadata.
func (c *Container) RTBounds() Range {
	return c.bounds(MetaRTMin, MetaRTMax)
}

func (c *Container) bounds(lo, hi string) Range {
	a, errA := cast.ToFloat64E(c.Metadata[lo])
	b, errB := cast.ToFloat64E(c.Metadata[hi])
	if errA != nil || errB != nil || c.Metadata[lo] == nil || c.Metadata[hi] == nil {
		return FullRange()
	}
	return NewRange(a, b)
}

// Source returns the source identity recorded by the loader.
func (c *Container) Source() string {
	return cast.ToString(c.Metadata[MetaSource])
}

// Snapshot returns a copy that shares the immutable spectra with c but owns
// its metadata map and its curve and peak lists. Appending curves or peaks
// to the snapshot never affects c.
func (c *Container) Snapshot() *Container {
	return &Container{
		Metadata: maps.Clone(c.Metadata),
		Spectra:  slices.Clip(c.Spectra),
		Curves:   cloneCurves(c.Curves),
		Peaks:    clonePeaks(c.Peaks),
	}
}

// Clone returns a fully independent deep copy.
func (c *Container) Clone() *Container {
	out := c.Snapshot()
	out.Spectra = make([]Spectrum, len(c.Spectra))
	for i := range c.Spectra {
		s := c.Spectra[i]
		s.MZ = slices.Clone(s.MZ)
		s.Intensity = slices.Clone(s.Intensity)
		if s.DriftTime != nil {
			d := *s.DriftTime
			s.DriftTime = &d
		}
		out.Spectra[i] = s
	}
	return out
}

// CurveByID returns the curve with the given identifier.
func (c *Container) CurveByID(id string) (Curve, bool) {
	for _, cv := range c.Curves {
		if cv.ID == id {
			return cv, true
		}
	}
	return Curve{}, false
}

func cloneCurves(in []Curve) []Curve {
	if in == nil {
		return nil
	}
	out := make([]Curve, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}

func clonePeaks(in []Peak) []Peak {
	if in == nil {
		return nil
	}
	out := make([]Peak, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
