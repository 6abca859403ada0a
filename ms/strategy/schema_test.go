package strategy

import (
	"errors"
	"testing"

	"github.com/spf13/cast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/ms/analyzer"
	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/extract"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
)

func TestSchemaCoversEveryConfig(t *testing.T) {
	t.Parallel()

	for _, name := range SchemaNames() {
		s, err := Schema(name)
		require.NoError(t, err, name)
		assert.Equal(t, "object", s.Type, name)
		assert.Equal(t, name, s.Title)
		require.NotNil(t, s.Properties, name)
		assert.Positive(t, s.Properties.Len(), name)
	}

	_, err := Schema("plotting")
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}

func TestAnalyzerSchemaDocumentsDefaults(t *testing.T) {
	t.Parallel()

	s, err := Schema("analyzer")
	require.NoError(t, err)

	det, ok := s.Properties.Get("detector")
	require.True(t, ok)
	assert.Contains(t, det.Enum, "simple")
	assert.Equal(t, "simple", det.Default)

	weights, ok := s.Properties.Get("weights")
	require.True(t, ok)
	require.NotNil(t, weights.Properties)

	r2, ok := weights.Properties.Get("r_squared")
	require.True(t, ok)
	assert.Equal(t, "number", r2.Type)
	assert.InDelta(t, 0.5, cast.ToFloat64(r2.Default), 1e-12)
}

func TestValidateConfig(t *testing.T) {
	t.Parallel()

	t.Run("coerces and fills defaults", func(t *testing.T) {
		t.Parallel()

		v, err := ValidateConfig("detection", map[string]any{"sensitivity": "0.7", "min_peak_width": 1})
		require.NoError(t, err)

		p, ok := v.(detect.Params)
		require.True(t, ok)
		assert.Equal(t, 0.7, p.Sensitivity)
		assert.Equal(t, 1.0, p.MinPeakWidth)
		assert.Equal(t, detect.DefaultParams().ThresholdMultiplier, p.ThresholdMultiplier)
	})

	t.Run("nested sections", func(t *testing.T) {
		t.Parallel()

		v, err := ValidateConfig("analyzer", map[string]any{
			"fitting_method": "emg",
			"detection":      map[string]any{"sensitivity": 0.2},
			"fit":            map[string]any{"max_iterations": "250"},
		})
		require.NoError(t, err)

		cfg := v.(analyzer.Config)
		assert.Equal(t, "emg", cfg.FittingMethod)
		assert.Equal(t, 0.2, cfg.Detection.Sensitivity)
		assert.Equal(t, 250, cfg.Fit.MaxIterations)
		assert.Equal(t, fit.DefaultOptions().Tolerance, cfg.Fit.Tolerance)
	})

	t.Run("embedded parameters", func(t *testing.T) {
		t.Parallel()

		v, err := ValidateConfig("baseline", map[string]any{"method": "polynomial", "degree": 3})
		require.NoError(t, err)

		cfg := v.(baseline.Config)
		assert.Equal(t, "polynomial", cfg.Method)
		assert.Equal(t, 3, cfg.Degree)
	})

	t.Run("extraction", func(t *testing.T) {
		t.Parallel()

		v, err := ValidateConfig("extraction", map[string]any{"extractor": "extracted_ion", "mz_range": "100-200"})
		require.NoError(t, err)
		assert.Equal(t, "100-200", v.(extract.Config).MZRange)
	})

	rejects := []struct {
		name    string
		schema  string
		payload map[string]any
		field   string
	}{
		{"unknown property", "detection", map[string]any{"speed": 1}, "speed"},
		{"above maximum", "detection", map[string]any{"sensitivity": 2}, "sensitivity"},
		{"exclusive minimum", "fitting", map[string]any{"tolerance": 0}, "tolerance"},
		{"not a number", "overlap", map[string]any{"tolerance": "wide"}, "tolerance"},
		{"fractional integer", "fitting", map[string]any{"max_iterations": 2.5}, "max_iterations"},
		{"enum", "analyzer", map[string]any{"detector": "magic"}, "detector"},
		{"nested unknown", "analyzer", map[string]any{"weights": map[string]any{"speed": 1}}, "weights.speed"},
		{"nested type", "analyzer", map[string]any{"fit": "fast"}, "fit"},
		{"cross-field", "detection", map[string]any{"min_peak_width": 2, "max_peak_width": 1}, "max_peak_width"},
		{"bad range", "extraction", map[string]any{"mz_range": "heavy"}, "mz_range"},
	}
	for _, tt := range rejects {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ValidateConfig(tt.schema, tt.payload)

			var e *model.Error
			require.True(t, errors.As(err, &e), "err = %v", err)
			assert.Equal(t, model.CodeConfigValidation, e.Code)
			assert.Equal(t, tt.field, e.Details["field"])
		})
	}

	_, err := ValidateConfig("plotting", nil)
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}
