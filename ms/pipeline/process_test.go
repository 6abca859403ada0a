package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/strategy"
)

func TestProcessExtract(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})

	tests := []struct {
		name    string
		payload map[string]any
		typ     model.CurveType
		points  int
	}{
		{"defaults", nil, model.CurveTotalIon, 501},
		{"retention window", map[string]any{"rt_range": "1.99-4.01"}, model.CurveTotalIon, 101},
		{"extracted ion", map[string]any{"extractor": "extracted_ion", "mz_range": "140-160"}, model.CurveExtractedIon, 501},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			out, err := pc.Process(context.Background(), Input{Source: "run"}, OpExtract, tt.payload)
			require.NoError(t, err)
			require.Len(t, out.Extracted, 1)

			assert.Equal(t, OpExtract, out.Operation)
			assert.Equal(t, "run", out.Source)
			assert.Equal(t, tt.typ, out.Extracted[0].Type)
			assert.Equal(t, tt.points, out.Extracted[0].Len())
			assert.Empty(t, out.Peaks)
		})
	}
}

func TestProcessRejectsPayloads(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})
	ctx := context.Background()
	curve := ticCurve(t)

	tests := []struct {
		name    string
		in      Input
		op      Operation
		payload map[string]any
		code    model.ErrorCode
	}{
		{"unknown extraction key", Input{Source: "run"}, OpExtract, map[string]any{"smoothing": 3}, model.CodeConfigValidation},
		{"unknown extractor", Input{Source: "run"}, OpExtract, map[string]any{"extractor": "base_peak"}, model.CodeConfigValidation},
		{"empty window", Input{Source: "run"}, OpExtract, map[string]any{"rt_range": "20-30"}, model.CodeExtraction},
		{"no source", Input{}, OpExtract, nil, model.CodeInvalidInput},
		{"missing source", Input{Source: "missing"}, OpExtract, nil, model.CodeLoad},
		{"baseline without curves", Input{}, OpBaseline, nil, model.CodeInvalidInput},
		{"negative lambda", Input{Curves: []model.Curve{curve}}, OpBaseline, map[string]any{"lambda": -1}, model.CodeConfigValidation},
		{"unknown analysis key", Input{Curves: []model.Curve{curve}}, OpAnalyze, map[string]any{"speed": "fast"}, model.CodeConfigValidation},
		{"unknown mode", Input{Curves: []model.Curve{curve}}, OpAnalyze, map[string]any{"mode": "magic"}, model.CodeUnknownMethod},
		{"predefined without name", Input{Curves: []model.Curve{curve}}, OpAnalyze, map[string]any{"mode": "predefined"}, model.CodeConfigValidation},
		{"manual without strategy", Input{Curves: []model.Curve{curve}}, OpAnalyze, map[string]any{"mode": "manual"}, model.CodeConfigValidation},
		{"unknown section", Input{Source: "run"}, OpFull, map[string]any{"export": map[string]any{}}, model.CodeConfigValidation},
		{"unknown operation", Input{Source: "run"}, Operation(9), nil, model.CodeUnknownMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := pc.Process(ctx, tt.in, tt.op, tt.payload)
			require.Error(t, err)
			assert.Equal(t, tt.code, model.CodeOf(err), "err = %v", err)
		})
	}
}

func TestProcessBaseline(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})
	curve := ticCurve(t)

	out, err := pc.Process(context.Background(), Input{Curves: []model.Curve{curve}}, OpBaseline,
		map[string]any{"method": "linear"})
	require.NoError(t, err)
	require.Len(t, out.Curves, 1)
	require.Len(t, out.Baselines, 1)

	corrected, base := out.Curves[0], out.Baselines[0]
	assert.Equal(t, model.CurveCorrected, corrected.Type)
	assert.Equal(t, model.CurveBaseline, base.Type)
	assert.NotEqual(t, curve.ID, corrected.ID)

	for i := range curve.Y {
		assert.InDelta(t, curve.Y[i], corrected.Y[i]+base.Y[i], 1e-9)
	}

	diag := out.Metadata[SectionBaseline].(map[string]baseline.Diagnostics)
	assert.Equal(t, "linear", diag[corrected.ID].Method)
}

func TestProcessAnalyze(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})
	curve := ticCurve(t)
	in := Input{Curves: []model.Curve{curve}}

	t.Run("predefined", func(t *testing.T) {
		t.Parallel()

		out, err := pc.Process(context.Background(), in, OpAnalyze, map[string]any{
			KeyMode:     "predefined",
			KeyStrategy: strategy.SimplePeaks,
		})
		require.NoError(t, err)
		require.Len(t, out.Peaks, 2)

		for _, p := range out.Peaks {
			assert.Equal(t, curve.ID, p.CurveID)
			assert.Equal(t, strategy.SimplePeaks, p.Metadata[model.MetaStrategy])
		}
		assert.InDelta(t, 3, out.Peaks[0].Center, 0.02)
		assert.InDelta(t, 7, out.Peaks[1].Center, 0.02)
	})

	t.Run("manual", func(t *testing.T) {
		t.Parallel()

		out, err := pc.Process(context.Background(), in, OpAnalyze, map[string]any{
			KeyMode:   "manual",
			KeyCustom: map[string]any{
				"name":                         "lorentz_only",
				model.KeyPeakDetection:         "simple",
				model.KeyOverlapProcessing:     "none",
				model.KeyFittingMethod:         "lorentzian",
				model.KeyOptimizationAlgorithm: "levenberg_marquardt",
			},
		})
		require.NoError(t, err)
		require.Len(t, out.Peaks, 2)

		for _, p := range out.Peaks {
			assert.Equal(t, "lorentzian", p.Shape)
			assert.Equal(t, "lorentz_only", p.Metadata[model.MetaStrategy])
		}
	})

	t.Run("hybrid", func(t *testing.T) {
		t.Parallel()

		out, err := pc.Process(context.Background(), in, OpAnalyze, map[string]any{
			KeyMode:      "hybrid",
			KeyOverrides: map[string]any{model.KeyPostProcessing: strategy.AreaNormalization},
		})
		require.NoError(t, err)
		require.Len(t, out.Peaks, 2)

		total := 0.0
		for _, p := range out.Peaks {
			total += p.Metadata[model.MetaRelativeArea].(float64)
		}
		assert.InDelta(t, 100, total, 1e-9)
	})

	t.Run("given peaks of other curves are ignored", func(t *testing.T) {
		t.Parallel()

		stray := model.NewPeak("elsewhere", 5, 1, 0.5)
		out, err := pc.Process(context.Background(), Input{Curves: in.Curves, Peaks: []model.Peak{stray}}, OpAnalyze, nil)
		require.NoError(t, err)
		require.Len(t, out.Peaks, 2)

		for _, p := range out.Peaks {
			assert.NotEqual(t, stray.ID, p.ID)
		}
	})
}

func TestProcessFull(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(slog.NewJSONHandler(&buf, nil))
	pc := newContext(t, &counter{}, WithLogger(log))

	out, err := pc.Process(context.Background(), Input{Source: "run"}, OpFull, map[string]any{
		SectionBaseline: map[string]any{"method": "linear"},
	})
	require.NoError(t, err)

	require.Len(t, out.Extracted, 1)
	require.Len(t, out.Curves, 1)
	require.Len(t, out.Baselines, 1)
	require.Len(t, out.Peaks, 2)

	corrected := out.Curves[0]
	assert.Equal(t, model.CurveCorrected, corrected.Type)
	assert.Equal(t, out.Extracted[0].ID, corrected.Metadata["parent_curve"])

	for _, p := range out.Peaks {
		assert.Equal(t, corrected.ID, p.CurveID)
		assert.Equal(t, strategy.SimplePeaks, p.Metadata[model.MetaStrategy])
	}
	assert.InDelta(t, 3, out.Peaks[0].Center, 0.02)
	assert.InDelta(t, 5, out.Peaks[0].Amplitude, 0.1)
	assert.InDelta(t, 7, out.Peaks[1].Center, 0.02)

	assert.Contains(t, out.Metadata, SectionExtraction)
	assert.Contains(t, out.Metadata, SectionBaseline)

	assert.Contains(t, buf.String(), `"op":"full"`)
	assert.Contains(t, buf.String(), `"msg":"operation finished"`)
}

func TestProcessCanceled(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pc.Process(ctx, Input{Source: "run"}, OpFull, nil)
	assert.True(t, model.IsCode(err, model.CodeCanceled), "err = %v", err)
}

func TestOutputContainer(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})
	ctx := context.Background()

	base, err := pc.Container(ctx, "run")
	require.NoError(t, err)

	out, err := pc.Process(ctx, Input{Container: base}, OpExtract, nil)
	require.NoError(t, err)

	merged := out.Container(base)
	require.Len(t, merged.Curves, 1)
	assert.Empty(t, base.Curves)
	assert.Equal(t, "run", merged.Source())

	again := out.Container(merged)
	assert.Len(t, again.Curves, 1, "curves are deduplicated by ID")

	standalone := Output{Source: "bare", Peaks: []model.Peak{model.NewPeak("c", 1, 1, 1)}}.Container(nil)
	assert.Equal(t, "bare", standalone.Source())
	assert.Len(t, standalone.Peaks, 1)
}

func TestParseOperation(t *testing.T) {
	t.Parallel()

	for _, op := range Operations() {
		got, err := ParseOperation(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, got)
	}

	_, err := ParseOperation("export")
	assert.True(t, model.IsCode(err, model.CodeUnknownMethod))
}
