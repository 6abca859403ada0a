package extract

import (
	"context"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// retentionTime implements the total-ion and extracted-ion extractors, which
// differ only in whether the m/z window applies.
type retentionTime struct {
	kind Kind
	cfg  config
}

func (r *retentionTime) Name() string { return r.kind.String() }

// Extract sums each matching spectrum into its retention-time bin.
func (r *retentionTime) Extract(ctx context.Context, c *model.Container, f model.Filter) (Result, error) {
	mz := f.MZ
	typ := model.CurveExtractedIon
	if r.kind == TotalIon {
		mz = model.FullRange()
		typ = model.CurveTotalIon
	}

	bins := newBinner(r.cfg.resolution)
	used := 0

	for i := range c.Spectra {
		if err := canceled(ctx, i); err != nil {
			return Result{}, err
		}

		s := &c.Spectra[i]
		if !f.Matches(s) {
			continue
		}
		used++
		bins.add(s.RT, s.TotalIntensity(mz))
	}

	res := Result{Peaks: []model.Peak{}, Metadata: resultMetadata(r.Name(), f, used)}
	if used == 0 {
		return res, nil
	}

	x, y := bins.curve()
	opts := []model.CurveOption{
		model.WithLabels("Retention Time", "min", "Intensity", "counts"),
		model.WithMetadata(map[string]any{"data_points": len(x), "spectra_count": used}),
	}
	if !mz.Full {
		opts = append(opts, model.WithMZRange(mz))
	}

	cv, err := model.NewCurve(typ, x, y, opts...)
	if err != nil {
		return Result{}, err
	}
	res.Curves = []model.Curve{cv}
	return res, nil
}
