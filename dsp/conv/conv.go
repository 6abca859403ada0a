package conv

import (
	"errors"
	"slices"

	"github.com/cwbudde/algo-vecmath"
)

// Errors returned by convolution functions.
var (
	ErrEmptyInput  = errors.New("conv: empty input")
	ErrEmptyKernel = errors.New("conv: empty kernel")
)

// directThreshold is the kernel length up to which Direct is used.
const directThreshold = 64

// Mode specifies the output extent of a convolution.
type Mode int

const (
	// ModeFull returns the full convolution with length len(a)+len(b)-1.
	ModeFull Mode = iota

	// ModeSame returns output with the same length as a, centred on the kernel.
	ModeSame

	// ModeValid returns only the samples where the kernel fully overlaps a.
	ModeValid
)

// Direct performs time-domain linear convolution of a and b. Each output
// sample is one vecmath dot product against the reversed kernel.
func Direct(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	n, m := len(a), len(b)
	rb := slices.Clone(b)
	slices.Reverse(rb)

	out := make([]float64, n+m-1)
	for k := range out {
		jlo := max(0, k-n+1)
		jhi := min(k, m-1)
		out[k] = vecmath.DotProduct(a[k-jhi:k-jlo+1], rb[m-1-jhi:m-jlo])
	}

	return out, nil
}

// Convolve performs linear convolution, choosing Direct for short kernels and
// FFT otherwise.
func Convolve(a, b []float64) ([]float64, error) {
	if len(a) == 0 {
		return nil, ErrEmptyInput
	}
	if len(b) == 0 {
		return nil, ErrEmptyKernel
	}

	if min(len(a), len(b)) <= directThreshold {
		return Direct(a, b)
	}

	return FFT(a, b)
}

// Apply convolves a with kernel b and trims the result to mode.
func Apply(a, b []float64, mode Mode) ([]float64, error) {
	full, err := Convolve(a, b)
	if err != nil {
		return nil, err
	}

	return trim(full, len(a), len(b), mode), nil
}

// Smooth convolves signal with an odd-length kernel after mirroring
// len(kernel)/2 samples at both ends. The result has len(signal) samples.
func Smooth(signal, kernel []float64) ([]float64, error) {
	if len(signal) == 0 {
		return nil, ErrEmptyInput
	}
	if len(kernel) == 0 {
		return nil, ErrEmptyKernel
	}

	half := len(kernel) / 2
	padded := PadReflect(signal, half)

	full, err := Convolve(padded, kernel)
	if err != nil {
		return nil, err
	}

	// Centre tap of the kernel sits at index half; the first output aligned
	// with signal[0] is therefore full[2*half].
	return slices.Clone(full[2*half : 2*half+len(signal)]), nil
}

// PadReflect returns signal with n mirrored samples prepended and appended
// (edge sample not repeated). Mirroring wraps for n >= len(signal).
func PadReflect(signal []float64, n int) []float64 {
	size := len(signal)
	out := make([]float64, size+2*n)
	copy(out[n:], signal)
	if size == 1 {
		for i := range n {
			out[i] = signal[0]
			out[n+1+i] = signal[0]
		}
		return out
	}

	period := 2 * (size - 1)
	at := func(i int) float64 {
		i %= period
		if i < 0 {
			i += period
		}
		if i >= size {
			i = period - i
		}
		return signal[i]
	}

	for i := range n {
		out[n-1-i] = at(-1 - i)
		out[n+size+i] = at(size + i)
	}
	return out
}

func trim(full []float64, lenA, lenB int, mode Mode) []float64 {
	switch mode {
	case ModeSame:
		start := (lenB - 1) / 2
		return full[start : start+lenA]
	case ModeValid:
		if lenA < lenB {
			return []float64{}
		}
		return full[lenB-1 : lenA]
	default:
		return full
	}
}

// nextPowerOf2 returns the smallest power of 2 >= n.
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
