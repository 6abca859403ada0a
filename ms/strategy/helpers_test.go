package strategy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/ms/model"
)

func sigma(fwhm float64) float64 { return fwhm / testutil.FWHMPerSigma }

func curve(t *testing.T, x, y []float64) model.Curve {
	t.Helper()
	c, err := model.NewCurve(model.CurveTotalIon, x, y)
	require.NoError(t, err)
	return c
}

// separated holds two well separated Gaussians on a constant offset.
func separated(t *testing.T) model.Curve {
	t.Helper()
	x := testutil.Grid(0, 10, 1001)
	return curve(t, x, testutil.Sum(
		testutil.Gaussian(x, 5, 3, sigma(0.4)),
		testutil.Gaussian(x, 2, 7, sigma(0.6)),
		testutil.DC(0.5, len(x)),
	))
}

// pair holds two unit Gaussians of FWHM 0.3 at 1.9 and 2.1.
func pair(t *testing.T) model.Curve {
	t.Helper()
	x := testutil.Grid(0, 4, 801)
	return curve(t, x, testutil.Sum(
		testutil.Gaussian(x, 1, 1.9, sigma(0.3)),
		testutil.Gaussian(x, 1, 2.1, sigma(0.3)),
	))
}

func controller(t *testing.T, opts ...Option) *Controller {
	t.Helper()
	c := NewController(nil, opts...)
	require.NoError(t, c.Init())
	return c
}
