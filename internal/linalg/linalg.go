// Package linalg provides the small dense and banded solvers shared by the
// baseline and peak fitting packages.
package linalg

import (
	"errors"
	"math"
)

var (
	// ErrSingular is returned when a system has no unique solution.
	ErrSingular = errors.New("linalg: singular matrix")
	// ErrNotPositiveDefinite is returned by the banded Cholesky solver when a
	// pivot is not strictly positive.
	ErrNotPositiveDefinite = errors.New("linalg: matrix not positive definite")
	// ErrDimension is returned when operand shapes disagree.
	ErrDimension = errors.New("linalg: dimension mismatch")
)

const defaultEpsilon = 1e-12

// Solve returns x with a*x = b using Gaussian elimination with partial
// pivoting. a and b are not modified.
func Solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	if len(a) != n {
		return nil, ErrDimension
	}

	m := make([][]float64, n)
	for i := range n {
		if len(a[i]) != n {
			return nil, ErrDimension
		}
		m[i] = make([]float64, n+1)
		copy(m[i], a[i])
		m[i][n] = b[i]
	}

	scale := 0.0
	for i := range n {
		for j := range n {
			scale = math.Max(scale, math.Abs(m[i][j]))
		}
	}
	if scale == 0 {
		return nil, ErrSingular
	}
	tiny := scale * 1e-14

	for col := range n {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(m[row][col]) > math.Abs(m[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(m[pivot][col]) <= tiny {
			return nil, ErrSingular
		}
		m[col], m[pivot] = m[pivot], m[col]

		for row := col + 1; row < n; row++ {
			f := m[row][col] / m[col][col]
			if f == 0 {
				continue
			}
			for k := col; k <= n; k++ {
				m[row][k] -= f * m[col][k]
			}
		}
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := m[i][n]
		for k := i + 1; k < n; k++ {
			sum -= m[i][k] * x[k]
		}
		x[i] = sum / m[i][i]
	}

	return x, nil
}

// SolveBanded solves a symmetric positive definite banded system using a
// banded Cholesky factorisation. bands[k][i] holds A[i][i+k] for
// k = 0..p, so bands[0] is the main diagonal and len(bands[k]) >= n-k.
func SolveBanded(bands [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	if len(bands) == 0 || len(bands[0]) != n {
		return nil, ErrDimension
	}
	p := len(bands) - 1
	for k := 1; k <= p; k++ {
		if len(bands[k]) < n-k {
			return nil, ErrDimension
		}
	}

	// low[k][j] = L[j+k][j]
	low := make([][]float64, p+1)
	for k := range low {
		low[k] = make([]float64, n)
	}
	at := func(i, j int) float64 { // A[i][j], i >= j
		return bands[i-j][j]
	}
	l := func(i, j int) float64 { // L[i][j], i >= j, i-j <= p
		return low[i-j][j]
	}

	for j := range n {
		sum := at(j, j)
		for k := max(0, j-p); k < j; k++ {
			v := l(j, k)
			sum -= v * v
		}
		if sum <= 0 || math.IsNaN(sum) {
			return nil, ErrNotPositiveDefinite
		}
		d := math.Sqrt(sum)
		low[0][j] = d

		for i := j + 1; i <= min(n-1, j+p); i++ {
			s := at(i, j)
			for k := max(0, i-p); k < j; k++ {
				s -= l(i, k) * l(j, k)
			}
			low[i-j][j] = s / d
		}
	}

	y := make([]float64, n)
	for i := range n {
		s := b[i]
		for k := max(0, i-p); k < i; k++ {
			s -= l(i, k) * y[k]
		}
		y[i] = s / low[0][i]
	}

	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		s := y[i]
		for k := i + 1; k <= min(n-1, i+p); k++ {
			s -= l(k, i) * x[k]
		}
		x[i] = s / low[0][i]
	}

	return x, nil
}

// Clamp limits value to the inclusive range [lo, hi].
func Clamp(value, lo, hi float64) float64 {
	if lo > hi {
		lo, hi = hi, lo
	}
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// NearlyEqual reports whether a and b are equal within eps, absolute or
// relative to the larger magnitude.
func NearlyEqual(a, b, eps float64) bool {
	if eps <= 0 {
		eps = defaultEpsilon
	}

	diff := math.Abs(a - b)
	if diff <= eps {
		return true
	}

	largest := math.Max(math.Abs(a), math.Abs(b))
	if largest == 0 {
		return false
	}

	return diff/largest <= eps
}

// Finite reports whether every value is neither NaN nor infinite.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
