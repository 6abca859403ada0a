package testutil

import (
	"math"
	"math/rand"
)

// FWHMPerSigma is the ratio between the FWHM and sigma of a Gaussian.
var FWHMPerSigma = 2 * math.Sqrt(2*math.Ln2)

// Grid returns n evenly spaced values from start to stop inclusive.
func Grid(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Gaussian samples amp*exp(-(x-center)^2/(2 sigma^2)) on x.
func Gaussian(x []float64, amp, center, sigma float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		d := (v - center) / sigma
		out[i] = amp * math.Exp(-0.5*d*d)
	}
	return out
}

// Sum adds equally long profiles element-wise into a new slice.
func Sum(profiles ...[]float64) []float64 {
	if len(profiles) == 0 {
		return nil
	}
	out := make([]float64, len(profiles[0]))
	for _, p := range profiles {
		for i := range out {
			out[i] += p[i]
		}
	}
	return out
}

// DeterministicNoise generates uniform noise in [-amplitude, amplitude) with
// a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// DC generates a constant-valued profile.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}
	return out
}

// Ramp generates offset + slope*x.
func Ramp(x []float64, offset, slope float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = offset + slope*v
	}
	return out
}
