package interp

import (
	"errors"
	"sort"
)

// ErrMismatchedLength is returned when x and y differ in length.
var ErrMismatchedLength = errors.New("interp: x and y must have same length")

// Linear returns y at position v by linear interpolation between the two
// bracketing samples of the ascending grid xs. Positions outside
// [xs[0], xs[n-1]] evaluate to 0.
func Linear(xs, ys []float64, v float64) float64 {
	n := len(xs)
	if n == 0 || len(ys) != n {
		return 0
	}
	if v < xs[0] || v > xs[n-1] {
		return 0
	}

	i := sort.SearchFloat64s(xs, v)
	if i < n && xs[i] == v {
		return ys[i]
	}
	if i == 0 {
		return ys[0]
	}

	x0, x1 := xs[i-1], xs[i]
	if x1 == x0 {
		return ys[i]
	}
	frac := (v - x0) / (x1 - x0)
	return ys[i-1] + frac*(ys[i]-ys[i-1])
}

// Hermite4 computes cubic 4-point interpolation.
// It interpolates from x0 to x1 using neighbor points xm1 and x2.
func Hermite4(t, xm1, x0, x1, x2 float64) float64 {
	c0 := x0
	c1 := 0.5 * (x1 - xm1)
	c2 := xm1 - 2.5*x0 + 2*x1 - 0.5*x2
	c3 := 0.5*(x2-xm1) + 1.5*(x0-x1)
	return ((c3*t+c2)*t+c1)*t + c0
}

// Resample re-grids (xs, ys) onto n uniformly spaced points spanning
// [xs[0], xs[len-1]] by linear interpolation.
func Resample(xs, ys []float64, n int) ([]float64, []float64, error) {
	if len(xs) != len(ys) {
		return nil, nil, ErrMismatchedLength
	}
	if len(xs) == 0 || n <= 0 {
		return []float64{}, []float64{}, nil
	}
	if n == 1 || len(xs) == 1 {
		return []float64{xs[0]}, []float64{ys[0]}, nil
	}

	lo, hi := xs[0], xs[len(xs)-1]
	step := (hi - lo) / float64(n-1)

	gx := make([]float64, n)
	gy := make([]float64, n)
	j := 0
	for i := range n {
		v := lo + float64(i)*step
		if i == n-1 {
			v = hi
		}
		for j < len(xs)-2 && xs[j+1] < v {
			j++
		}
		gx[i] = v
		x0, x1 := xs[j], xs[j+1]
		if x1 == x0 {
			gy[i] = ys[j+1]
			continue
		}
		frac := (v - x0) / (x1 - x0)
		gy[i] = ys[j] + frac*(ys[j+1]-ys[j])
	}
	return gx, gy, nil
}

// Uniform reports whether xs is evenly spaced within a relative tolerance
// of the mean step.
func Uniform(xs []float64, tol float64) bool {
	if len(xs) < 3 {
		return true
	}
	step := (xs[len(xs)-1] - xs[0]) / float64(len(xs)-1)
	if step == 0 {
		return false
	}
	for i := 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if d < step*(1-tol) || d > step*(1+tol) {
			return false
		}
	}
	return true
}
