package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewSpectrumSortsAndCopies(t *testing.T) {
	t.Parallel()

	mz := []float64{300, 100, 200}
	in := []float64{3, 1, 2}
	drift := 4.5

	s, err := NewSpectrum(0, 1.5, 1, &drift, mz, in)
	if err != nil {
		t.Fatalf("NewSpectrum returned unexpected error: %v", err)
	}

	for i, want := range []float64{100, 200, 300} {
		if s.MZ[i] != want || s.Intensity[i] != want/100 {
			t.Fatalf("sample %d = (%v,%v)", i, s.MZ[i], s.Intensity[i])
		}
	}

	mz[0], drift = 0, 0
	if s.MZ[2] != 300 || *s.DriftTime != 4.5 {
		t.Fatal("spectrum aliases caller slices")
	}

	if got := s.TotalIntensity(NewRange(150, 300)); got != 5 {
		t.Fatalf("TotalIntensity = %v, want 5", got)
	}
	if got := s.TotalIntensity(FullRange()); got != 6 {
		t.Fatalf("TotalIntensity(full) = %v, want 6", got)
	}

	if _, err := NewSpectrum(1, 0, 1, nil, []float64{1}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestNewCurveValidates(t *testing.T) {
	t.Parallel()

	if _, err := NewCurve(CurveTotalIon, []float64{0, 1}, []float64{1}); !IsCode(err, CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := NewCurve(CurveTotalIon, []float64{1, 0}, []float64{1, 1}); !IsCode(err, CodeInvalidInput) {
		t.Fatalf("expected invalid input for descending x, got %v", err)
	}
	if _, err := NewCurve(CurveTotalIon, []float64{0, 1}, []float64{1, math.NaN()}); !IsCode(err, CodeInvalidInput) {
		t.Fatalf("expected invalid input for NaN, got %v", err)
	}
}

func TestCurveDerivedValues(t *testing.T) {
	t.Parallel()

	x := []float64{0, 1, 2, 3, 4}
	y := []float64{0, 1, 2, 1, 0}

	c, err := NewCurve(CurveDriftTime, x, y, WithMZRange(NewRange(100, 101)))
	if err != nil {
		t.Fatalf("NewCurve returned unexpected error: %v", err)
	}
	if !strings.HasPrefix(c.ID, "curve_") {
		t.Fatalf("unexpected id %q", c.ID)
	}
	if c.XMin != 0 || c.XMax != 4 || c.YMin != 0 || c.YMax != 2 {
		t.Fatalf("unexpected bounds %+v", c)
	}
	if got := c.Area(); got != 4 {
		t.Fatalf("Area = %v, want 4", got)
	}
	if got := c.AreaBetween(1, 3); got != 3 {
		t.Fatalf("AreaBetween = %v, want 3", got)
	}
	if got := c.IntensityAt(2.5); got != 1.5 {
		t.Fatalf("IntensityAt = %v, want 1.5", got)
	}
	if got := c.IndexOf(2.6); got != 3 {
		t.Fatalf("IndexOf = %v, want 3", got)
	}

	st := c.Stats()
	if st.PointCount != 5 || st.TotalIonCurrent != 4 || st.BaselineIntensity != 0 {
		t.Fatalf("unexpected stats %+v", st)
	}

	x[0], y[2] = -1, 10
	if c.X[0] != 0 || c.Y[2] != 2 {
		t.Fatal("curve aliases caller slices")
	}

	d, err := c.WithY(CurveCorrected, []float64{1, 1, 1, 1, 1})
	if err != nil {
		t.Fatalf("WithY returned unexpected error: %v", err)
	}
	if d.ID == c.ID || d.Metadata["parent_curve"] != c.ID || d.MZRange == nil || d.MZRange.Max != 101 {
		t.Fatalf("WithY lost provenance: %+v", d)
	}
	if c.Y[0] != 0 {
		t.Fatal("WithY modified the receiver")
	}
}

func TestContainerSnapshotIsolation(t *testing.T) {
	t.Parallel()

	s0, _ := NewSpectrum(0, 1, 1, nil, []float64{100, 200}, []float64{1, 2})
	s1, _ := NewSpectrum(1, 2, 1, nil, []float64{150}, []float64{5})
	c := NewContainer("mem://a", []Spectrum{s0, s1})

	if r := c.MZBounds(); r.Min != 100 || r.Max != 200 {
		t.Fatalf("MZBounds = %+v", r)
	}
	if r := c.RTBounds(); r.Min != 1 || r.Max != 2 {
		t.Fatalf("RTBounds = %+v", r)
	}
	if c.Source() != "mem://a" {
		t.Fatalf("Source = %q", c.Source())
	}

	snap := c.Snapshot()
	snap.Metadata["extra"] = true
	snap.Spectra = append(snap.Spectra, s0)
	snap.Curves = append(snap.Curves, Curve{ID: "x"})

	if _, ok := c.Metadata["extra"]; ok {
		t.Fatal("snapshot shares metadata")
	}
	if len(c.Spectra) != 2 || len(c.Curves) != 0 {
		t.Fatal("snapshot append leaked into the original")
	}

	deep := c.Clone()
	deep.Spectra[0].Intensity[0] = 99
	if c.Spectra[0].Intensity[0] != 1 {
		t.Fatal("clone shares spectrum samples")
	}
}

func TestErrorCodes(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", NewUnknownMethod("fitting_method", "unknown_method"))
	if !IsCode(err, CodeUnknownMethod) {
		t.Fatalf("IsCode failed for %v", err)
	}
	if !strings.Contains(err.Error(), `"unknown_method"`) {
		t.Fatalf("message does not name the method: %v", err)
	}

	var e *Error
	if !errors.As(err, &e) || e.Details["name"] != "unknown_method" {
		t.Fatalf("missing details: %+v", e)
	}

	ext := NewExtraction("drift_time", FullFilter())
	if ext.Message != "no curve data found" || CodeOf(ext) != CodeExtraction {
		t.Fatalf("unexpected extraction error %v", ext)
	}

	cause := errors.New("disk")
	if load := NewLoad("a.tsv", cause); !errors.Is(load, cause) {
		t.Fatal("load error does not unwrap to its cause")
	}
	if CodeOf(cause) != "" {
		t.Fatal("plain errors have no code")
	}
}

func TestStrategyIsAValue(t *testing.T) {
	t.Parallel()

	base := Strategy{Name: "simple_peaks", Version: "1.0", PeakDetection: "simple", FittingMethod: "multi_peak"}
	mod := base.With(KeyOverlapProcessing, "fbf").With("window", "7")

	if base.OverlapProcessing != "" || len(base.Config) != 0 {
		t.Fatal("With mutated the receiver")
	}
	if mod.OverlapProcessing != "fbf" || mod.Config["window"] != "7" {
		t.Fatalf("With did not apply: %+v", mod)
	}
	if base.Equal(mod) || !mod.Equal(mod.WithConfig("window", "7")) {
		t.Fatal("Equal is not value based")
	}

	comps := mod.Components()
	if comps[OverlapProcessor] != "fbf" {
		t.Fatalf("Components = %v", comps)
	}
	if _, ok := comps[PostProcessor]; ok {
		t.Fatal("empty optional component listed")
	}
}

func TestPeakHelpers(t *testing.T) {
	t.Parallel()

	p := NewPeak("curve_a", 1.9, 1, 0.3)
	q := NewPeak("curve_a", 2.1, 1, 0.3)
	if !p.Overlaps(q, 0.1) {
		t.Fatal("peaks 0.2 apart with fwhm 0.3 should overlap")
	}
	if p.Asymmetry() != 1 || !p.Converged() {
		t.Fatal("unexpected defaults")
	}

	p.Metadata[MetaConfidence] = 0.8
	c := p.Clone()
	c.Metadata[MetaConfidence] = 0.1
	if p.Confidence() != 0.8 {
		t.Fatal("clone shares metadata")
	}

	peaks := []Peak{q, p}
	SortPeaks(peaks)
	if peaks[0].Center != 1.9 {
		t.Fatal("SortPeaks did not order by center")
	}
}
