package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/internal/testutil"
	"github.com/cwbudde/algo-spectro/ms/load"
	"github.com/cwbudde/algo-spectro/ms/model"
)

func sigma(fwhm float64) float64 { return fwhm / testutil.FWHMPerSigma }

// acquisition is a run of 501 survey scans whose total-ion trace holds two
// separated Gaussians at retention times 3 and 7 on a constant offset.
func acquisition(source string) (*model.Container, error) {
	rt := testutil.Grid(0, 10, 501)
	tic := testutil.Sum(
		testutil.Gaussian(rt, 5, 3, sigma(0.4)),
		testutil.Gaussian(rt, 2, 7, sigma(0.6)),
		testutil.DC(0.5, len(rt)),
	)

	spectra := make([]model.Spectrum, len(rt))
	for i := range rt {
		s, err := model.NewSpectrum(i, rt[i], 1, nil, []float64{100, 150}, []float64{tic[i] / 2, tic[i] / 2})
		if err != nil {
			return nil, err
		}

		spectra[i] = s
	}

	return model.NewContainer(source, spectra), nil
}

// counter is a loader serving acquisition for every source except
// "missing", counting calls.
type counter struct {
	calls atomic.Int64
}

func (c *counter) Load(_ context.Context, source string) (*model.Container, error) {
	c.calls.Add(1)

	if source == "missing" {
		return nil, model.NewLoad(source, fmt.Errorf("no such file"))
	}

	return acquisition(source)
}

func newContext(t *testing.T, l load.Loader, opts ...Option) *Context {
	t.Helper()

	pc, err := New(append([]Option{WithLoader(l)}, opts...)...)
	require.NoError(t, err)

	return pc
}

// ticCurve is the total-ion curve of acquisition.
func ticCurve(t *testing.T) model.Curve {
	t.Helper()

	pc := newContext(t, &counter{})
	out, err := pc.Process(context.Background(), Input{Source: "tic"}, OpExtract, nil)
	require.NoError(t, err)
	require.Len(t, out.Curves, 1)

	return out.Curves[0]
}
