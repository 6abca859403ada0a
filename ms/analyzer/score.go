package analyzer

import (
	"math"

	"github.com/cwbudde/algo-spectro/internal/linalg"
	"github.com/cwbudde/algo-spectro/ms/model"
)

// Quality scores a peak in [0, 1] as the weighted sum of its R-squared,
// detection confidence, symmetry 1/(1+|asymmetry-1|) and whether its fit
// converged.
func Quality(p model.Peak, w Weights) float64 {
	fitOK := 0.0
	if p.Converged() {
		fitOK = 1
	}
	symmetry := 1 / (1 + math.Abs(p.Asymmetry()-1))

	q := w.RSquared*linalg.Clamp(p.RSquared, 0, 1) +
		w.Confidence*linalg.Clamp(p.Confidence(), 0, 1) +
		w.Symmetry*symmetry +
		w.FitOK*fitOK
	if math.IsNaN(q) {
		return 0
	}
	return linalg.Clamp(q, 0, 1)
}
