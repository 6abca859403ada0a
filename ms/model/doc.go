// Package model defines the in-memory representation shared by every stage
// of the spectrometry engine: spectra and their container, derived curves,
// fitted peaks, processing strategies, component descriptors and the coded
// error type.
//
// Values in this package are treated as immutable once built. Stages that
// transform a curve or a peak list return new values ([Curve.WithY],
// [Peak.Clone], [Container.Snapshot]) instead of editing their inputs.
//
// # Usage
//
//	c, err := model.NewCurve(model.CurveTotalIon, rt, tic)
//	area := c.Area()
//	s := c.Stats()
package model
