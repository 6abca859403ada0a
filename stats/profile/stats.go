// Package profile computes summary statistics of sampled intensity profiles
// such as chromatograms and drift-time curves.
package profile

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-vecmath"
)

// madScale converts a median absolute deviation into a Gaussian sigma.
const madScale = 0.6744897501960817

// Stats holds summary statistics of an intensity profile.
type Stats struct {
	Length   int
	Sum      float64 // total intensity
	Mean     float64
	Variance float64 // population variance
	Std      float64
	Min      float64
	MinPos   int
	Max      float64
	MaxPos   int
	Range    float64 // max - min
	Skewness float64
	Kurtosis float64 // excess kurtosis
	Noise    float64 // robust noise sigma, see Noise
	SNR      float64 // see SNR
}

// Calculate computes all statistics in a single pass using Welford's online
// algorithm for the higher-order moments, followed by the robust noise
// estimate.
func Calculate(y []float64) Stats {
	n := len(y)
	if n == 0 {
		return Stats{}
	}

	var (
		mean, m2, m3, m4 float64
		maxVal           = y[0]
		maxPos           int
		minVal           = y[0]
		minPos           int
	)

	for i, v := range y {
		ni := float64(i + 1)
		delta := v - mean
		deltaN := delta / ni
		deltaN2 := deltaN * deltaN
		term1 := delta * deltaN * float64(i)

		// M4 must be updated before M3, and M3 before M2.
		m4 += term1*deltaN2*(ni*ni-3*ni+3) + 6*deltaN2*m2 - 4*deltaN*m3
		m3 += term1*deltaN*(float64(i)-1) - 3*deltaN*m2
		m2 += term1
		mean += deltaN

		if v > maxVal {
			maxVal = v
			maxPos = i
		}
		if v < minVal {
			minVal = v
			minPos = i
		}
	}

	nf := float64(n)
	variance := m2 / nf

	var skewness, kurtosis float64
	if variance > 0 {
		skewness = (m3 / nf) / (variance * math.Sqrt(variance))
		kurtosis = (m4/nf)/(variance*variance) - 3
	}

	noise := Noise(y)

	return Stats{
		Length:   n,
		Sum:      vecmath.Sum(y),
		Mean:     mean,
		Variance: variance,
		Std:      math.Sqrt(variance),
		Min:      minVal,
		MinPos:   minPos,
		Max:      maxVal,
		MaxPos:   maxPos,
		Range:    maxVal - minVal,
		Skewness: skewness,
		Kurtosis: kurtosis,
		Noise:    noise,
		SNR:      snr(maxVal, Median(y), noise),
	}
}

// Noise returns a robust estimate of the white-noise sigma of y: the median
// absolute second difference scaled to a Gaussian sigma. Second differences
// cancel constant and linear trends, so smooth peaks contribute little.
func Noise(y []float64) float64 {
	if len(y) < 3 {
		return 0
	}

	d := make([]float64, len(y)-2)
	for i := range d {
		d[i] = math.Abs(y[i] - 2*y[i+1] + y[i+2])
	}

	// Var(y[i]-2y[i+1]+y[i+2]) = 6 sigma^2 for white noise.
	return Median(d) / madScale / math.Sqrt(6)
}

// SNR returns the signal-to-noise ratio of y: the height of the maximum above
// the median divided by the robust noise sigma. A noise-free profile uses a
// small floor instead of dividing by zero, so the result is always finite.
func SNR(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	return snr(slices.Max(y), Median(y), Noise(y))
}

func snr(maxVal, median, noise float64) float64 {
	height := maxVal - median
	if height <= 0 {
		return 0
	}
	floor := 1e-9 * (math.Abs(maxVal) + 1)
	return height / math.Max(noise, floor)
}

// Median returns the median of v without modifying it.
func Median(v []float64) float64 {
	return Percentile(v, 50)
}

// Percentile returns the p-th percentile (0..100) of v using linear
// interpolation between order statistics. v is not modified.
func Percentile(v []float64, p float64) float64 {
	n := len(v)
	if n == 0 {
		return 0
	}

	s := slices.Clone(v)
	slices.Sort(s)

	if p <= 0 {
		return s[0]
	}
	if p >= 100 {
		return s[n-1]
	}

	pos := p / 100 * float64(n-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, n-1)
	frac := pos - float64(lo)

	return s[lo] + frac*(s[hi]-s[lo])
}

// Trapezoid integrates y over x with the trapezoidal rule. Mismatched or
// short inputs integrate to zero.
func Trapezoid(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}

	area := 0.0
	for i := 1; i < len(x); i++ {
		area += 0.5 * (y[i] + y[i-1]) * (x[i] - x[i-1])
	}
	return area
}

// MedianSpacing returns the median distance between consecutive x values.
func MedianSpacing(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}

	d := make([]float64, len(x)-1)
	for i := range d {
		d[i] = x[i+1] - x[i]
	}
	return Median(d)
}
