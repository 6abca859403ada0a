// Package conv provides the linear convolution used by curve smoothing,
// derivative filters and wavelet transforms.
//
// Two strategies are available:
//
//   - Direct convolution: O(N*M) dot products (vecmath), best for short kernels
//   - FFT convolution: a single zero-padded transform (algo-fft), best once the
//     kernel grows beyond a few dozen samples
//
// # Usage
//
//	full, err := conv.Convolve(signal, kernel)          // auto-selects the strategy
//	same, err := conv.Apply(signal, kernel, conv.ModeSame)
//	smooth, err := conv.Smooth(signal, kernel)          // reflect-padded, same length
//
// Smooth is the variant used on intensity profiles: it mirrors the signal at
// both ends before convolving, so edge samples are not pulled towards zero.
package conv
