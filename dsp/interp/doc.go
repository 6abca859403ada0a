// Package interp provides interpolation on sampled profiles.
//
//   - [Linear]:   linear interpolation on a non-uniform, ascending x grid
//   - [Hermite4]: 4-point cubic Hermite between two uniform samples
//   - [Resample]: re-grids a non-uniform profile onto n uniform points
//
// Profiles extracted from real acquisitions are sampled at scan times, which
// are rarely exactly uniform. Algorithms that work in sample space (wavelet
// transforms, derivative filters) resample first.
package interp
