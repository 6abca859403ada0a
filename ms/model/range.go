package model

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Range is an inclusive numeric interval, or the full-range sentinel that
// matches every value.
type Range struct {
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
	Full bool    `json:"full,omitempty" yaml:"full,omitempty"`
}

// FullRange returns the sentinel that matches every value.
func FullRange() Range { return Range{Full: true} }

// NewRange returns the inclusive interval [lo, hi], swapping reversed bounds.
func NewRange(lo, hi float64) Range {
	if lo > hi {
		lo, hi = hi, lo
	}
	return Range{Min: lo, Max: hi}
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool {
	if r.Full {
		return !math.IsNaN(v)
	}
	return v >= r.Min && v <= r.Max
}

// Bounds returns the numeric bounds, using fallback when r is the full-range
// sentinel.
func (r Range) Bounds(fallback Range) (float64, float64) {
	if r.Full {
		return fallback.Min, fallback.Max
	}
	return r.Min, r.Max
}

// String formats the range as "min-max" or "full".
func (r Range) String() string {
	if r.Full {
		return "full"
	}
	return strconv.FormatFloat(r.Min, 'g', -1, 64) + "-" + strconv.FormatFloat(r.Max, 'g', -1, 64)
}

// ParseRange parses "min-max", "min:max" or the literal "full" (also "" and
// "*").
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "*", "full", "all":
		return FullRange(), nil
	}

	sep := strings.IndexAny(s[1:], "-:")
	if sep < 0 {
		return Range{}, fmt.Errorf("range %q: expected min-max", s)
	}
	sep++

	lo, err := strconv.ParseFloat(strings.TrimSpace(s[:sep]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(s[sep+1:]), 64)
	if err != nil {
		return Range{}, fmt.Errorf("range %q: %w", s, err)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return Range{}, fmt.Errorf("range %q: NaN bound", s)
	}
	return NewRange(lo, hi), nil
}

// Filter selects spectra and samples for extraction. MSLevel 0 matches any
// scan level.
type Filter struct {
	MZ      Range `json:"mz_range" yaml:"mz_range"`
	RT      Range `json:"rt_range" yaml:"rt_range"`
	MSLevel uint8 `json:"ms_level" yaml:"ms_level"`
}

// FullFilter matches every spectrum at every level.
func FullFilter() Filter {
	return Filter{MZ: FullRange(), RT: FullRange()}
}

// Matches reports whether s passes the level and retention-time filters.
func (f Filter) Matches(s *Spectrum) bool {
	if f.MSLevel != 0 && s.MSLevel != f.MSLevel {
		return false
	}
	return f.RT.Contains(s.RT)
}
