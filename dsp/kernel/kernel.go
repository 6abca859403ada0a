// Package kernel generates the convolution kernels used on intensity
// profiles: smoothing windows, Gaussian derivative filters and Ricker
// wavelets. Widths are expressed in samples.
package kernel

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

var errZeroSum = errors.New("kernel: coefficients sum to zero")

// defaultTruncate is the half-width of Gaussian kernels in sigmas.
const defaultTruncate = 4.0

func validateWidth(name string, width float64) error {
	if !(width > 0) || math.IsInf(width, 0) {
		return fmt.Errorf("kernel: %s width must be > 0: %v", name, width)
	}
	return nil
}

// halfWidth returns the number of taps on each side for a kernel spanning
// truncate*width samples, at least one.
func halfWidth(width, truncate float64) int {
	return max(1, int(math.Ceil(truncate*width)))
}

// Boxcar returns an odd-length moving-average kernel of size taps (even sizes
// are rounded up) that sums to 1.
func Boxcar(size int) ([]float64, error) {
	if size <= 0 {
		return nil, fmt.Errorf("kernel: boxcar size must be > 0: %d", size)
	}
	if size%2 == 0 {
		size++
	}

	k := make([]float64, size)
	for i := range k {
		k[i] = 1 / float64(size)
	}
	return k, nil
}

// Gaussian returns a normalised Gaussian smoothing kernel with standard
// deviation sigma samples, truncated at four sigma.
func Gaussian(sigma float64) ([]float64, error) {
	if err := validateWidth("gaussian", sigma); err != nil {
		return nil, err
	}

	half := halfWidth(sigma, defaultTruncate)
	k := make([]float64, 2*half+1)
	for i := range k {
		t := float64(i-half) / sigma
		k[i] = math.Exp(-0.5 * t * t)
	}

	if err := normalize(k); err != nil {
		return nil, err
	}
	return k, nil
}

// GaussianSecondDerivative returns the second derivative of the normalised
// Gaussian kernel. Convolving a profile with it yields the smoothed second
// derivative in units of intensity per sample squared.
func GaussianSecondDerivative(sigma float64) ([]float64, error) {
	g, err := Gaussian(sigma)
	if err != nil {
		return nil, err
	}

	half := len(g) / 2
	s2 := sigma * sigma
	k := make([]float64, len(g))
	for i := range k {
		t := float64(i - half)
		k[i] = (t*t/(s2*s2) - 1/s2) * g[i]
	}

	// Zero mean keeps constant offsets out of the derivative.
	mean := vecmath.Sum(k) / float64(len(k))
	for i := range k {
		k[i] -= mean
	}
	return k, nil
}

// Ricker returns the Mexican-hat wavelet at scale a samples, sampled over
// +-5a. Its response peaks where a profile has a peak of matching width.
func Ricker(a float64) ([]float64, error) {
	if err := validateWidth("ricker", a); err != nil {
		return nil, err
	}

	half := halfWidth(a, 5)
	amp := 2 / (math.Sqrt(3*a) * math.Pow(math.Pi, 0.25))
	k := make([]float64, 2*half+1)
	for i := range k {
		t := float64(i-half) / a
		k[i] = amp * (1 - t*t) * math.Exp(-0.5*t*t)
	}
	return k, nil
}

func normalize(k []float64) error {
	sum := vecmath.Sum(k)
	if sum == 0 {
		return errZeroSum
	}
	vecmath.ScaleBlockInPlace(k, 1/sum)
	return nil
}
