package detect

import (
	"slices"

	"github.com/cwbudde/algo-spectro/internal/linalg"
	"github.com/cwbudde/algo-spectro/ms/model"
)

// peakFinder keeps local maxima by topographic prominence, measures widths
// at half prominence and suppresses lower peaks closer than the minimum
// width to a taller one.
type peakFinder struct{}

func (peakFinder) Method() Method { return PeakFinder }

func (peakFinder) Detect(c model.Curve, p Params) ([]Candidate, error) {
	l, ok, err := prepare(c, p)
	if err != nil || !ok {
		return nil, err
	}

	x, y := c.X, c.Y
	minProm := l.Threshold - l.Baseline

	var out []Candidate
	for _, i := range localMaxima(y, 1, l.Baseline) {
		prom, lo, hi := prominence(y, i)
		if prom < minProm {
			continue
		}
		out = append(out, Candidate{
			Index:      i,
			X:          x[i],
			Height:     y[i],
			LeftIndex:  lo,
			RightIndex: hi,
			Width:      widthAt(x, y, i, y[i]-prom/2, lo, hi),
			Confidence: linalg.Clamp(0.6+0.3*prom/(y[i]-l.Baseline), 0.6, 0.9),
		})
	}

	out = suppress(out, p.MinPeakWidth)
	for g := range out {
		out[g].Group = g
	}
	return keepWidth(out, p), nil
}

// suppress drops candidates closer than distance to a taller one. The
// result is in ascending x order.
func suppress(cands []Candidate, distance float64) []Candidate {
	if distance <= 0 || len(cands) < 2 {
		return cands
	}

	byHeight := slices.Clone(cands)
	slices.SortStableFunc(byHeight, func(a, b Candidate) int {
		switch {
		case a.Height > b.Height:
			return -1
		case a.Height < b.Height:
			return 1
		}
		return 0
	})

	var kept []Candidate
	for _, c := range byHeight {
		if !slices.ContainsFunc(kept, func(k Candidate) bool {
			d := c.X - k.X
			return d < distance && -d < distance
		}) {
			kept = append(kept, c)
		}
	}

	sortByIndex(kept)
	return kept
}
