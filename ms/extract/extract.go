// Package extract turns the spectra of a container into intensity curves:
// drift-time, total-ion and extracted-ion profiles.
//
// All extractors bin their x coordinate at a fixed resolution (1e-3 by
// default) and accumulate intensities in acquisition order, so extracting
// twice from an unchanged container yields bit-identical curves.
package extract

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Kind enumerates the built-in extractors.
type Kind int

const (
	DriftTime Kind = iota
	TotalIon
	ExtractedIon
)

var kindNames = [...]string{"drift_time", "total_ion", "extracted_ion"}

// String returns the canonical name of k.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds lists the built-in extractors.
func Kinds() []Kind { return []Kind{DriftTime, TotalIon, ExtractedIon} }

// ParseKind maps a name or common alias ("dt", "tic", "xic", "eic") to a
// Kind. Unknown names yield an UnknownMethod error.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "drift_time", "dt", "drift":
		return DriftTime, nil
	case "total_ion", "tic":
		return TotalIon, nil
	case "extracted_ion", "xic", "eic":
		return ExtractedIon, nil
	}
	return 0, model.NewUnknownMethod("extractor", name)
}

// Result is the output of an extraction. Peaks is always empty.
type Result struct {
	Curves   []model.Curve
	Peaks    []model.Peak
	Metadata map[string]any
}

// Extractor produces curves from a container under a filter. Extract never
// modifies the container.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, c *model.Container, f model.Filter) (Result, error)
}

// Option configures an extractor.
type Option func(*config)

type config struct {
	resolution float64
}

func defaultConfig() config {
	return config{resolution: 1e-3}
}

// WithResolution sets the x binning resolution. Non-positive values are
// ignored.
func WithResolution(r float64) Option {
	return func(c *config) {
		if r > 0 && !math.IsInf(r, 0) {
			c.resolution = r
		}
	}
}

// New returns the extractor for k.
func New(k Kind, opts ...Option) (Extractor, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	switch k {
	case DriftTime:
		return &driftTime{cfg: cfg}, nil
	case TotalIon:
		return &retentionTime{kind: TotalIon, cfg: cfg}, nil
	case ExtractedIon:
		return &retentionTime{kind: ExtractedIon, cfg: cfg}, nil
	}
	return nil, model.NewUnknownMethod("extractor", k.String())
}

// Run extracts with ex and reports an empty result as an extraction error
// ("no curve data found") instead of an empty success.
func Run(ctx context.Context, ex Extractor, c *model.Container, f model.Filter) (Result, error) {
	if c == nil {
		return Result{}, model.NewInvalidInput("extract: nil container")
	}

	res, err := ex.Extract(ctx, c, f)
	if err != nil {
		return Result{}, err
	}

	if len(res.Curves) == 0 || slices.ContainsFunc(res.Curves, model.Curve.Empty) {
		return Result{}, model.NewExtraction(ex.Name(), f).WithDetail("source", c.Source())
	}
	return res, nil
}

// binner accumulates intensities per quantised x key.
type binner struct {
	resolution float64
	sums       map[int64]float64
}

func newBinner(resolution float64) *binner {
	return &binner{resolution: resolution, sums: make(map[int64]float64)}
}

func (b *binner) add(x, v float64) {
	b.sums[int64(math.Round(x/b.resolution))] += v
}

// curve returns the bins as ascending x and summed y.
func (b *binner) curve() ([]float64, []float64) {
	keys := make([]int64, 0, len(b.sums))
	for k := range b.sums {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	x := make([]float64, len(keys))
	y := make([]float64, len(keys))
	for i, k := range keys {
		x[i] = float64(k) * b.resolution
		y[i] = b.sums[k]
	}
	return x, y
}

func resultMetadata(name string, f model.Filter, spectra int) map[string]any {
	return map[string]any{
		"extractor":     name,
		"mz_range":      f.MZ.String(),
		"rt_range":      f.RT.String(),
		"ms_level":      f.MSLevel,
		"spectra_count": spectra,
	}
}

// checkEvery is the number of spectra between context checks.
const checkEvery = 256

func canceled(ctx context.Context, i int) error {
	if i%checkEvery != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return model.NewCanceled(err)
	}
	return nil
}
