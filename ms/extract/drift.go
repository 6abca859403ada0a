package extract

import (
	"context"

	"github.com/cwbudde/algo-spectro/ms/model"
)

type driftTime struct {
	cfg config
}

func (d *driftTime) Name() string { return DriftTime.String() }

// Extract sums, per drift-time bin, the intensities inside the m/z window of
// every matching spectrum that carries ion mobility.
func (d *driftTime) Extract(ctx context.Context, c *model.Container, f model.Filter) (Result, error) {
	bins := newBinner(d.cfg.resolution)
	used := 0

	for i := range c.Spectra {
		if err := canceled(ctx, i); err != nil {
			return Result{}, err
		}

		s := &c.Spectra[i]
		if !s.HasDriftTime() || !f.Matches(s) {
			continue
		}
		used++
		bins.add(*s.DriftTime, s.TotalIntensity(f.MZ))
	}

	res := Result{Peaks: []model.Peak{}, Metadata: resultMetadata(d.Name(), f, used)}
	if used == 0 {
		return res, nil
	}

	x, y := bins.curve()
	opts := []model.CurveOption{
		model.WithLabels("Drift Time", "ms", "Intensity", "counts"),
		model.WithMetadata(map[string]any{"data_points": len(x), "spectra_count": used}),
	}
	if !f.MZ.Full {
		opts = append(opts, model.WithMZRange(f.MZ))
	}

	cv, err := model.NewCurve(model.CurveDriftTime, x, y, opts...)
	if err != nil {
		return Result{}, err
	}
	res.Curves = []model.Curve{cv}
	return res, nil
}
