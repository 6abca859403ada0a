package detect

import (
	"math"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-spectro/dsp/conv"
	"github.com/cwbudde/algo-spectro/dsp/kernel"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

const (
	maximumConfidence  = 0.8
	shoulderConfidence = 0.6
)

// simple finds local maxima above the threshold and splits humps whose
// smoothed second derivative has several significant minima into shoulder
// candidates.
type simple struct{}

func (simple) Method() Method { return Simple }

func (simple) Detect(c model.Curve, p Params) ([]Candidate, error) {
	l, ok, err := prepare(c, p)
	if err != nil || !ok {
		return nil, err
	}

	x, y := c.X, c.Y
	step := profile.MedianSpacing(x)
	hw := halfWindow(p.MinPeakWidth, step)

	tops := maxima(y, hw, l, p)
	var out []Candidate
	for g, i := range tops {
		prom, lo, hi := prominence(y, i)
		lo, hi = humpBounds(y, tops, g, lo, hi)
		cand := Candidate{
			Index:      i,
			X:          x[i],
			Height:     y[i],
			LeftIndex:  lo,
			RightIndex: hi,
			Width:      widthAt(x, y, i, y[i]-prom/2, lo, hi),
			Confidence: maximumConfidence,
			Group:      g,
		}

		split, err := shoulders(x, y, cand, l, step)
		if err != nil {
			return nil, err
		}
		if len(split) >= 2 {
			out = append(out, split...)
			continue
		}
		out = append(out, cand)
	}
	return keepWidth(dedupe(out), p), nil
}

// maxima returns the local maxima above the threshold whose prominence
// clears the noise, so noise ripples on a peak flank are not reported.
func maxima(y []float64, hw int, l Levels, p Params) []int {
	idx := localMaxima(y, hw, l.Threshold)
	minProm := p.ThresholdMultiplier * l.Noise
	out := idx[:0]
	for _, i := range idx {
		if prom, _, _ := prominence(y, i); prom > minProm {
			out = append(out, i)
		}
	}
	return out
}

// prominence returns the height of the maximum at i above the higher of
// the two minima separating it from taller samples (or the curve ends),
// together with the indices of those minima.
func prominence(y []float64, i int) (float64, int, int) {
	lo, lmin := i, y[i]
	for j := i - 1; j >= 0 && y[j] <= y[i]; j-- {
		if y[j] < lmin {
			lo, lmin = j, y[j]
		}
	}
	hi, rmin := i, y[i]
	for j := i + 1; j < len(y) && y[j] <= y[i]; j++ {
		if y[j] < rmin {
			hi, rmin = j, y[j]
		}
	}
	return y[i] - math.Max(lmin, rmin), lo, hi
}

// shoulders splits the hump of cand at the significant minima of its
// smoothed second derivative. A minimum is significant when its curvature
// reaches a quarter of the deepest one in the hump, the rise separating it
// from its neighbour exceeds five times the filtered noise and the two lie
// at least a quarter of the hump width apart. Fewer than two significant
// minima yield nil.
func shoulders(x, y []float64, cand Candidate, l Levels, step float64) ([]Candidate, error) {
	lo, hi := cand.LeftIndex, cand.RightIndex
	if hi-lo < 5 || step <= 0 {
		return nil, nil
	}

	sigma := math.Max(1, cand.Width/step/20)
	k, err := kernel.GaussianSecondDerivative(sigma)
	if err != nil {
		return nil, err
	}
	d2, err := conv.Smooth(y, k)
	if err != nil {
		return nil, err
	}
	noise := 5 * l.Noise * math.Sqrt(vecmath.DotProduct(k, k))
	minSep := cand.Width / 4

	var mins []int
	deepest := 0.0
	for i := lo + 2; i <= hi-2; i++ {
		if d2[i] >= 0 || y[i] <= l.Threshold {
			continue
		}
		if d2[i] < d2[i-1] && d2[i] < d2[i-2] && d2[i] <= d2[i+1] && d2[i] <= d2[i+2] {
			mins = append(mins, i)
			deepest = math.Max(deepest, -d2[i])
		}
	}

	var kept []int
	for _, m := range mins {
		if -d2[m] < 0.25*deepest {
			continue
		}
		if len(kept) == 0 {
			kept = append(kept, m)
			continue
		}
		last := kept[len(kept)-1]
		top := argmax(d2, last, m)
		if d2[top]-math.Max(d2[last], d2[m]) > noise && x[m]-x[last] >= minSep {
			kept = append(kept, m)
		} else if d2[m] < d2[last] {
			kept[len(kept)-1] = m
		}
	}
	if len(kept) < 2 {
		return nil, nil
	}

	out := make([]Candidate, len(kept))
	left := lo
	for n, m := range kept {
		right := hi
		if n+1 < len(kept) {
			right = argmax(d2, m, kept[n+1])
		}
		out[n] = Candidate{
			Index:      m,
			X:          x[m],
			Height:     y[m],
			LeftIndex:  left,
			RightIndex: right,
			Width:      cand.Width / float64(len(kept)),
			Confidence: shoulderConfidence,
			Shoulder:   true,
			Group:      cand.Group,
		}
		left = right
	}
	return out, nil
}

// argmax returns the index of the largest v in [lo, hi].
func argmax(v []float64, lo, hi int) int {
	best := lo
	for i := lo + 1; i <= hi; i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
