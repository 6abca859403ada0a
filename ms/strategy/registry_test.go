package strategy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/ms/model"
)

type stubStage struct{}

func (stubStage) Process(_ context.Context, _ model.Curve, peaks []model.Peak, _ map[string]any) ([]model.Peak, error) {
	return peaks, nil
}

func stubFactory() (Stage, error) { return stubStage{}, nil }

func desc(t model.ComponentType, name string) model.ComponentDescriptor {
	return model.ComponentDescriptor{Type: t, Name: name, Version: "0.1.0"}
}

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	t.Run("registers and looks up", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		require.NoError(t, r.Register(desc(model.PostProcessor, "Smooth"), stubFactory))

		e, ok := r.Lookup(model.PostProcessor, " smooth ")
		require.True(t, ok)
		assert.Equal(t, "smooth", e.Descriptor.Name)
		assert.NotNil(t, e.Build)

		_, ok = r.Lookup(model.PeakDetector, "smooth")
		assert.False(t, ok, "lookup must be scoped by type")
	})

	t.Run("rejects empty name", func(t *testing.T) {
		t.Parallel()

		require.Error(t, NewRegistry().Register(desc(model.PostProcessor, "  "), stubFactory))
	})

	t.Run("rejects empty type", func(t *testing.T) {
		t.Parallel()

		require.Error(t, NewRegistry().Register(desc("", "smooth"), stubFactory))
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		require.NoError(t, r.Register(desc(model.PostProcessor, "smooth"), stubFactory))

		err := r.Register(desc(model.PostProcessor, "SMOOTH"), stubFactory)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errDuplicateComponent))
	})

	t.Run("must register panics on duplicate", func(t *testing.T) {
		t.Parallel()

		r := NewRegistry()
		r.MustRegister(desc(model.PostProcessor, "smooth"), stubFactory)
		assert.Panics(t, func() { r.MustRegister(desc(model.PostProcessor, "smooth"), stubFactory) })
	})
}

func TestRegistryListKeepsRegistrationOrder(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(desc(model.PeakDetector, name), nil)
	}

	var names []string
	for _, d := range r.List(model.PeakDetector) {
		names = append(names, d.Name)
	}

	assert.Equal(t, []string{"zeta", "alpha", "mid"}, names)
	assert.Empty(t, r.List(model.CurveExtractor))
	assert.NotNil(t, r.List(model.CurveExtractor))
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	r.MustRegister(desc(model.PostProcessor, "smooth"), stubFactory)
	r.MustRegister(desc(model.PeakDetector, "simple"), nil)

	s, err := r.Build(model.PostProcessor, "smooth")
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = r.Build(model.PeakDetector, "simple")
	assert.True(t, errors.Is(err, errNoFactory))

	_, err = r.Build(model.AdvancedAlgorithm, "magic")
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}

func TestDefaultRegistry(t *testing.T) {
	t.Parallel()

	r := DefaultRegistry()

	names := func(ct model.ComponentType) []string {
		var out []string
		for _, d := range r.List(ct) {
			assert.Equal(t, ct, d.Type)
			assert.Equal(t, Version, d.Version)
			assert.NotEmpty(t, d.Description, "%s/%s", ct, d.Name)
			out = append(out, d.Name)
		}
		return out
	}

	assert.Equal(t, []string{"simple", "peak_finder", "cwt"}, names(model.PeakDetector))
	assert.Equal(t, []string{"multi_peak", "gaussian", "lorentzian", "pseudo_voigt", "emg", "bi_gaussian"}, names(model.FittingMethod))
	assert.Equal(t, []string{"none", "fbf", "sharpen_cwt", "emg_nlls", "extreme_overlap", "auto"}, names(model.OverlapProcessor))
	assert.Equal(t, []string{"levenberg_marquardt", "gradient_descent", "grid_search", "simulated_annealing"}, names(model.ParameterOptimizer))
	assert.Equal(t, []string{"none", "linear", "polynomial", "moving_average", "als"}, names(model.BaselineCorrector))
	assert.Equal(t, []string{"drift_time", "total_ion", "extracted_ion"}, names(model.CurveExtractor))
	assert.Equal(t, []string{EMGAlgorithm, BiGaussianRefit}, names(model.AdvancedAlgorithm))
	assert.Equal(t, []string{QualityValidation, AreaNormalization}, names(model.PostProcessor))

	for _, ct := range []model.ComponentType{model.AdvancedAlgorithm, model.PostProcessor} {
		for _, d := range r.List(ct) {
			_, err := r.Build(ct, d.Name)
			require.NoError(t, err, "%s/%s", ct, d.Name)
		}
	}

	_, err := r.Descriptor(model.PeakDetector, "magic")
	var e *model.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, model.CodeUnknownMethod, e.Code)
	assert.Equal(t, "peak_detection", e.Details["kind"])
	assert.Equal(t, "magic", e.Details["name"])
}
