package baseline

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-spectro/internal/linalg"
)

// linear draws a line through two anchors: the mean of the lowest
// anchorFrac of samples in the leading and in the trailing edgeFrac of the
// curve.
func linear(x, y []float64, edgeFrac, anchorFrac float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	edge := max(1, int(math.Round(float64(n)*edgeFrac)))
	x0, y0 := anchor(x[:edge], y[:edge], anchorFrac)
	x1, y1 := anchor(x[n-edge:], y[n-edge:], anchorFrac)

	if x1 == x0 {
		for i := range out {
			out[i] = (y0 + y1) / 2
		}
		return out
	}

	slope := (y1 - y0) / (x1 - x0)
	for i, v := range x {
		out[i] = y0 + slope*(v-x0)
	}
	return out
}

// anchor returns the mean position and value of the lowest fraction of
// samples.
func anchor(x, y []float64, fraction float64) (float64, float64) {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		switch {
		case y[a] < y[b]:
			return -1
		case y[a] > y[b]:
			return 1
		}
		return 0
	})

	k := max(1, int(math.Round(float64(len(y))*fraction)))
	var sx, sy float64
	for _, i := range idx[:k] {
		sx += x[i]
		sy += y[i]
	}
	return sx / float64(k), sy / float64(k)
}

// polynomial fits a least-squares polynomial repeatedly, clipping samples
// above the fit after each pass so the fit settles under the peaks.
func polynomial(x, y []float64, degree, maxIter int) ([]float64, Diagnostics, error) {
	n := len(y)
	diag := Diagnostics{}
	if n == 0 {
		diag.Converged = true
		return []float64{}, diag, nil
	}
	degree = min(degree, n-1)

	t := normalize(x)
	work := slices.Clone(y)
	fit := make([]float64, n)

	for iter := 1; iter <= maxIter; iter++ {
		c, err := linalg.PolyFit(t, work, nil, degree)
		if err != nil {
			return nil, diag, err
		}

		scale := 1.0
		for i, v := range t {
			fit[i] = linalg.PolyEval(c, v)
			scale = max(scale, math.Abs(fit[i]))
		}

		change := 0.0
		for i := range work {
			if work[i] > fit[i] {
				change = max(change, work[i]-fit[i])
				work[i] = fit[i]
			}
		}

		diag.Iterations = iter
		diag.Change = change / scale
		if diag.Change < convergenceEps {
			diag.Converged = true
			break
		}
	}

	return fit, diag, nil
}

// normalize maps x linearly onto [-1, 1].
func normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	if len(x) == 0 {
		return out
	}
	lo, hi := x[0], x[len(x)-1]
	if hi == lo {
		return out
	}
	for i, v := range x {
		out[i] = 2*(v-lo)/(hi-lo) - 1
	}
	return out
}

// movingAverage returns the centred moving average of y. The window is
// forced odd and shrinks symmetrically near the edges.
func movingAverage(y []float64, window int) []float64 {
	n := len(y)
	out := make([]float64, n)
	if window%2 == 0 {
		window++
	}
	half := window / 2

	prefix := make([]float64, n+1)
	for i, v := range y {
		prefix[i+1] = prefix[i] + v
	}

	for i := range n {
		h := min(half, i, n-1-i)
		out[i] = (prefix[i+h+1] - prefix[i-h]) / float64(2*h+1)
	}
	return out
}

// convergenceEps bounds the relative update that counts as converged.
const convergenceEps = 1e-6

// als implements asymmetric least squares smoothing (Eilers and Boelens).
// Each pass solves (W + lambda*D'D) z = W y, where D is the second
// difference operator, then reweights: p above the baseline, 1-p below.
func als(y []float64, lambda, p float64, maxIter int) ([]float64, Diagnostics, error) {
	n := len(y)
	diag := Diagnostics{}
	if n < 3 {
		diag.Converged = true
		return slices.Clone(y), diag, nil
	}

	penalty := secondDifferencePenalty(n, lambda)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	wy := make([]float64, n)

	var z []float64
	for iter := 1; iter <= maxIter; iter++ {
		bands := [][]float64{slices.Clone(penalty[0]), penalty[1], penalty[2]}
		for i := range w {
			bands[0][i] += w[i]
		}
		vecmath.MulBlock(wy, w, y)

		next, err := linalg.SolveBanded(bands, wy)
		if err != nil {
			return nil, diag, err
		}

		change := math.Inf(1)
		if z != nil {
			change = 0
			scale := 1.0
			for i := range next {
				change = max(change, math.Abs(next[i]-z[i]))
				scale = max(scale, math.Abs(next[i]))
			}
			change /= scale
		}
		z = next
		diag.Iterations = iter
		diag.Change = change

		reweighted := false
		for i := range w {
			wi := 1 - p
			if y[i] > z[i] {
				wi = p
			}
			if wi != w[i] {
				reweighted = true
				w[i] = wi
			}
		}

		if change < convergenceEps || (iter > 1 && !reweighted) {
			diag.Converged = true
			break
		}
	}

	return z, diag, nil
}

// secondDifferencePenalty returns lambda*D'D in band storage (diagonal and
// the first two super-diagonals).
func secondDifferencePenalty(n int, lambda float64) [][]float64 {
	bands := [][]float64{make([]float64, n), make([]float64, n-1), make([]float64, n-2)}
	coef := [3]float64{1, -2, 1}

	for r := range n - 2 {
		for a := range 3 {
			for b := a; b < 3; b++ {
				bands[b-a][r+a] += lambda * coef[a] * coef[b]
			}
		}
	}
	return bands
}
