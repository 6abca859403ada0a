package linalg

import "fmt"

// PolyFit returns the coefficients c[0..degree] (ascending powers) of the
// weighted least-squares polynomial through (x, y). A nil w means unit
// weights. Callers should normalise x to a small interval first.
func PolyFit(x, y, w []float64, degree int) ([]float64, error) {
	n := len(x)
	if len(y) != n || (w != nil && len(w) != n) {
		return nil, ErrDimension
	}
	if degree < 0 {
		return nil, fmt.Errorf("linalg: negative polynomial degree %d", degree)
	}
	if n <= degree {
		return nil, fmt.Errorf("linalg: %d points cannot determine degree %d: %w", n, degree, ErrSingular)
	}

	m := degree + 1
	// Power sums sum(w*x^k) for k = 0..2*degree.
	pow := make([]float64, 2*degree+1)
	rhs := make([]float64, m)
	for i := range n {
		wi := 1.0
		if w != nil {
			wi = w[i]
		}
		p := wi
		for k := range pow {
			pow[k] += p
			if k < m {
				rhs[k] += p * y[i]
			}
			p *= x[i]
		}
	}

	a := make([][]float64, m)
	for i := range m {
		a[i] = make([]float64, m)
		for j := range m {
			a[i][j] = pow[i+j]
		}
	}

	return Solve(a, rhs)
}

// PolyEval evaluates the ascending-power polynomial c at x (Horner).
func PolyEval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
