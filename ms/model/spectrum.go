package model

import (
	"fmt"
	"math"
	"slices"
)

// Spectrum is one scan: a retention time, a scan level, an optional
// ion-mobility drift time and the (m/z, intensity) samples in ascending m/z
// order. Spectra are never modified after load.
type Spectrum struct {
	Index     int       // acquisition order
	RT        float64   // retention time
	MSLevel   uint8     // scan level, 1 for survey scans
	DriftTime *float64  // nil without ion mobility
	MZ        []float64 // ascending
	Intensity []float64 // same length as MZ
}

// NewSpectrum validates and builds a spectrum, sorting samples by m/z when
// needed. The input slices are copied.
func NewSpectrum(index int, rt float64, level uint8, drift *float64, mz, intensity []float64) (Spectrum, error) {
	if len(mz) != len(intensity) {
		return Spectrum{}, fmt.Errorf("spectrum %d: %d m/z values but %d intensities", index, len(mz), len(intensity))
	}
	if math.IsNaN(rt) || math.IsInf(rt, 0) {
		return Spectrum{}, fmt.Errorf("spectrum %d: non-finite retention time", index)
	}

	s := Spectrum{
		Index:     index,
		RT:        rt,
		MSLevel:   level,
		MZ:        slices.Clone(mz),
		Intensity: slices.Clone(intensity),
	}
	if drift != nil {
		d := *drift
		s.DriftTime = &d
	}

	if !slices.IsSorted(s.MZ) {
		idx := make([]int, len(s.MZ))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			switch {
			case mz[a] < mz[b]:
				return -1
			case mz[a] > mz[b]:
				return 1
			}
			return 0
		})
		for i, j := range idx {
			s.MZ[i] = mz[j]
			s.Intensity[i] = intensity[j]
		}
	}

	return s, nil
}

// HasDriftTime reports whether the spectrum carries ion mobility.
func (s *Spectrum) HasDriftTime() bool { return s.DriftTime != nil }

// TotalIntensity sums intensities inside mz, in m/z order.
func (s *Spectrum) TotalIntensity(mz Range) float64 {
	lo, hi := 0, len(s.MZ)
	if !mz.Full {
		lo, _ = slices.BinarySearch(s.MZ, mz.Min)
		hi = lo
		for hi < len(s.MZ) && s.MZ[hi] <= mz.Max {
			hi++
		}
	}

	sum := 0.0
	for i := lo; i < hi; i++ {
		sum += s.Intensity[i]
	}
	return sum
}

// MZBounds returns the smallest and largest m/z, or false for an empty scan.
func (s *Spectrum) MZBounds() (float64, float64, bool) {
	if len(s.MZ) == 0 {
		return 0, 0, false
	}
	return s.MZ[0], s.MZ[len(s.MZ)-1], true
}
