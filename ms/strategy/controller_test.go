package strategy

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/ms/model"
)

func TestControllerRequiresInit(t *testing.T) {
	t.Parallel()

	c := NewController(nil)
	sample := separated(t)

	calls := map[string]func() error{
		"list_strategies": func() error { _, err := c.ListStrategies(); return err },
		"strategy":        func() error { _, err := c.Strategy(SimplePeaks); return err },
		"list_components": func() error { _, err := c.ListComponents(model.PeakDetector); return err },
		"descriptor":      func() error { _, err := c.Descriptor(model.PeakDetector, "simple"); return err },
		"schema":          func() error { _, err := c.Schema("detection"); return err },
		"validate_config": func() error { _, err := c.ValidateConfig("detection", nil); return err },
		"add_strategy":    func() error { return c.AddStrategy(model.Strategy{Name: "x"}) },
		"process": func() error {
			_, err := c.Process(context.Background(), nil, sample, Request{Mode: Automatic})
			return err
		},
	}
	for op, call := range calls {
		err := call()
		assert.True(t, model.IsCode(err, model.CodeNotInitialized), "%s: %v", op, err)
	}

	require.NoError(t, c.Init())
	require.NoError(t, c.Init(), "Init must be idempotent")
	assert.True(t, c.Ready())
}

func TestListStrategies(t *testing.T) {
	t.Parallel()

	custom := model.Strategy{Name: "Lorentz", PeakDetection: "peak_finder", FittingMethod: "lorentzian"}
	c := controller(t, WithStrategies(custom))

	list, err := c.ListStrategies()
	require.NoError(t, err)

	var names []string
	for _, s := range list {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{SimplePeaks, OverlappingPeaks, ComplexPeaks, HighPrecision, "lorentz"}, names)

	hp, err := c.Strategy("HIGH_PRECISION")
	require.NoError(t, err)
	assert.Equal(t, QualityValidation, hp.PostProcessing)
	assert.Equal(t, 0.85, hp.Config[KeyQualityThreshold])

	hp.Config[KeyQualityThreshold] = 0.1
	again, err := c.Strategy(HighPrecision)
	require.NoError(t, err)
	assert.Equal(t, 0.85, again.Config[KeyQualityThreshold], "returned strategies must be copies")

	_, err = c.Strategy("fastest")
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}

func TestAddStrategyValidates(t *testing.T) {
	t.Parallel()

	c := controller(t)

	err := c.AddStrategy(model.Strategy{Name: "bad", PeakDetection: "magic"})
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod), "err = %v", err)

	err = c.AddStrategy(model.Strategy{Name: SimplePeaks})
	assert.True(t, model.IsCode(err, model.CodeConfigValidation), "err = %v", err)

	err = c.AddStrategy(model.Strategy{
		Name:   "strict",
		Config: map[string]any{SectionDetection: map[string]any{"sensitivity": 3}},
	})
	assert.True(t, model.IsCode(err, model.CodeConfigValidation), "err = %v", err)

	require.NoError(t, c.AddStrategy(model.Strategy{Name: "strict", Config: map[string]any{
		SectionDetection: map[string]any{"sensitivity": 0.8},
	}}))
}

func TestInitFailsOnInvalidStrategy(t *testing.T) {
	t.Parallel()

	c := NewController(nil, WithStrategies(model.Strategy{Name: "broken", FittingMethod: "spline"}))
	err := c.Init()
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod), "err = %v", err)
	assert.False(t, c.Ready())
}

func TestProcessPredefined(t *testing.T) {
	t.Parallel()

	c := controller(t)
	curve := separated(t)

	peaks, err := c.Process(context.Background(), nil, curve, Request{Mode: Predefined, Name: SimplePeaks})
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	for _, p := range peaks {
		assert.Equal(t, SimplePeaks, p.Metadata[model.MetaStrategy])
		assert.Equal(t, curve.ID, p.CurveID)
		assert.GreaterOrEqual(t, p.Quality, 0.9)
	}
	assert.InDelta(t, 3, peaks[0].Center, 1e-3)
	assert.InDelta(t, 7, peaks[1].Center, 1e-3)

	_, err = c.Process(context.Background(), nil, curve, Request{Mode: Predefined, Name: "fastest"})
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}

func TestEveryPredefinedStrategy(t *testing.T) {
	t.Parallel()

	c := controller(t)
	fixtures := []struct {
		name    string
		curve   func(*testing.T) model.Curve
		centers []float64
		delta   float64
	}{
		{"separated", separated, []float64{3, 7}, 0.01},
		{"overlapping pair", pair, []float64{1.9, 2.1}, 0.05},
	}

	for _, name := range []string{SimplePeaks, OverlappingPeaks, ComplexPeaks, HighPrecision} {
		for _, f := range fixtures {
			t.Run(name+"/"+f.name, func(t *testing.T) {
				t.Parallel()

				curve := f.curve(t)
				peaks, err := c.Process(context.Background(), nil, curve, Request{Mode: Predefined, Name: name})
				require.NoError(t, err)
				require.Len(t, peaks, len(f.centers))

				for i, p := range peaks {
					assert.Equal(t, name, p.Metadata[model.MetaStrategy])
					assert.InDelta(t, f.centers[i], p.Center, f.delta)
					assert.Positive(t, p.FWHM)
					assert.GreaterOrEqual(t, p.Quality, 0.0)
					assert.LessOrEqual(t, p.Quality, 1.0)
				}
			})
		}
	}
}

func TestProcessAutomatic(t *testing.T) {
	t.Parallel()

	c := controller(t)

	t.Run("separated peaks", func(t *testing.T) {
		t.Parallel()

		peaks, err := c.Process(context.Background(), nil, separated(t), Request{Mode: Automatic})
		require.NoError(t, err)
		require.Len(t, peaks, 2)
		assert.Equal(t, SimplePeaks, peaks[0].Metadata[model.MetaStrategy])
	})

	t.Run("overlapping pair", func(t *testing.T) {
		t.Parallel()

		peaks, err := c.Process(context.Background(), nil, pair(t), Request{Mode: Automatic})
		require.NoError(t, err)
		require.Len(t, peaks, 2)

		for _, p := range peaks {
			assert.Equal(t, OverlappingPeaks, p.Metadata[model.MetaStrategy])
			assert.True(t, p.OverlapResolved)
		}
		assert.InDelta(t, 1.9, peaks[0].Center, 0.01)
		assert.InDelta(t, 2.1, peaks[1].Center, 0.01)
	})
}

func TestInfer(t *testing.T) {
	t.Parallel()

	x := testutil.Grid(0, 10, 1001)
	clean := separated(t)
	noisy := curve(t, x, testutil.Sum(
		testutil.Gaussian(x, 1, 5, sigma(0.5)),
		testutil.DeterministicNoise(7, 0.4, len(x)),
	))

	peak := func(center, fwhm float64) model.Peak { return model.NewPeak("c", center, 1, fwhm) }

	tests := []struct {
		name  string
		c     model.Curve
		peaks []model.Peak
		want  string
	}{
		{"no peaks", clean, nil, SimplePeaks},
		{"separated", clean, []model.Peak{peak(3, 0.4), peak(7, 0.6)}, SimplePeaks},
		{"overlap", clean, []model.Peak{peak(3, 0.4), peak(3.2, 0.4)}, OverlappingPeaks},
		{"dense", clean, []model.Peak{peak(2, 2), peak(5, 2), peak(8, 2)}, ComplexPeaks},
		{"noisy", noisy, []model.Peak{peak(5, 0.5)}, ComplexPeaks},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Infer(tt.c, tt.peaks, 0.1))
		})
	}
}

func TestProcessHybridOverrides(t *testing.T) {
	t.Parallel()

	c := controller(t)

	peaks, err := c.Process(context.Background(), nil, separated(t), Request{
		Mode: Hybrid,
		Overrides: map[string]any{
			model.KeyFittingMethod:  "lorentzian",
			model.KeyPostProcessing: AreaNormalization,
			"note":                  "kept in config",
		},
	})
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	total := 0.0
	for _, p := range peaks {
		assert.Equal(t, "lorentzian", p.Shape)
		assert.Equal(t, SimplePeaks, p.Metadata[model.MetaStrategy])
		total += p.Metadata[model.MetaRelativeArea].(float64)
	}
	assert.InDelta(t, 100, total, 1e-9)

	_, err = c.Process(context.Background(), nil, separated(t), Request{
		Mode:      Hybrid,
		Overrides: map[string]any{model.KeyOptimizationAlgorithm: "newton"},
	})
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod), "err = %v", err)
}

func TestProcessManual(t *testing.T) {
	t.Parallel()

	c := controller(t)
	curve := separated(t)

	s := model.Strategy{
		Name:                  "strict",
		PeakDetection:         "simple",
		OverlapProcessing:     "none",
		FittingMethod:         "gaussian",
		OptimizationAlgorithm: "levenberg_marquardt",
		PostProcessing:        QualityValidation,
		Config:                map[string]any{KeyQualityThreshold: 0.5},
	}

	peaks, err := c.Process(context.Background(), nil, curve, Request{Mode: Manual, Strategy: s})
	require.NoError(t, err)
	require.Len(t, peaks, 2)

	strict := s.WithConfig(KeyQualityThreshold, 0.999)
	none, err := c.Process(context.Background(), nil, curve, Request{Mode: Manual, Strategy: strict})
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = c.Process(context.Background(), nil, curve, Request{Mode: Manual, Strategy: s.With(model.KeyPeakDetection, "magic")})
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))

	_, err = c.Process(context.Background(), nil, curve, Request{Mode: Manual, Strategy: s.With(model.KeyAdvancedAlgorithm, QualityValidation)})
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod), "post-processor used as advanced algorithm: %v", err)
}

func TestProcessRefitsGivenPeaks(t *testing.T) {
	t.Parallel()

	c := controller(t)
	curve := separated(t)

	first, err := c.Process(context.Background(), nil, curve, Request{Mode: Predefined, Name: SimplePeaks})
	require.NoError(t, err)

	s, err := c.Strategy(SimplePeaks)
	require.NoError(t, err)
	s = s.With(model.KeyFittingMethod, "bi_gaussian")

	again, err := c.Process(context.Background(), first, curve, Request{Mode: Manual, Strategy: s})
	require.NoError(t, err)
	require.Len(t, again, len(first))

	for i := range first {
		assert.Equal(t, first[i].ID, again[i].ID)
		assert.Equal(t, "bi_gaussian", again[i].Shape)
		assert.InDelta(t, first[i].Center, again[i].Center, 1e-3)
	}
}

func TestProcessConcurrent(t *testing.T) {
	t.Parallel()

	c := controller(t)
	curve := separated(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Process(context.Background(), nil, curve, Request{Mode: Automatic})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := controller(t).Process(ctx, nil, separated(t), Request{Mode: Predefined, Name: SimplePeaks})
	assert.True(t, model.IsCode(err, model.CodeCanceled), "err = %v", err)
}

func TestProcessLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := controller(t, WithLogger(log))
	_, err := c.Process(context.Background(), nil, separated(t), Request{Mode: Predefined, Name: SimplePeaks})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "op=init")
	assert.Contains(t, buf.String(), "op=process")
	assert.Contains(t, buf.String(), "strategy="+SimplePeaks)
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, m := range Modes() {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}

	got, err := ParseMode(" Auto ")
	require.NoError(t, err)
	assert.Equal(t, Automatic, got)

	_, err = ParseMode("random")
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}
