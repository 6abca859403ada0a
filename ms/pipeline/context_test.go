package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-spectro/ms/load"
	"github.com/cwbudde/algo-spectro/ms/model"
)

func TestContainerSnapshotsAreIsolated(t *testing.T) {
	t.Parallel()

	l := &counter{}
	pc := newContext(t, l)
	ctx := context.Background()

	first, err := pc.Container(ctx, "run")
	require.NoError(t, err)

	first.Curves = append(first.Curves, model.Curve{ID: "scratch"})
	first.Metadata["note"] = "local"

	second, err := pc.Container(ctx, "run")
	require.NoError(t, err)

	assert.Empty(t, second.Curves)
	assert.NotContains(t, second.Metadata, "note")
	assert.Equal(t, "run", second.Source())
	assert.Equal(t, int64(1), l.calls.Load())
	assert.Equal(t, 1, pc.Len())
}

func TestConcurrentReadersShareOneLoad(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	var calls atomic.Int64

	l := load.Func(func(_ context.Context, source string) (*model.Container, error) {
		calls.Add(1)
		<-release

		return acquisition(source)
	})
	pc := newContext(t, l)

	var wg sync.WaitGroup

	for range 8 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			ct, err := pc.Container(context.Background(), "shared")
			if assert.NoError(t, err) {
				ct.Peaks = append(ct.Peaks, model.NewPeak("c", 1, 1, 1))
				ct.Metadata["reader"] = true
			}
		}()
	}

	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())

	ct, err := pc.Container(context.Background(), "shared")
	require.NoError(t, err)
	assert.Empty(t, ct.Peaks)
	assert.NotContains(t, ct.Metadata, "reader")
}

func TestCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.CacheSize = 2

	l := &counter{}
	pc := newContext(t, l, WithConfig(cfg))
	ctx := context.Background()

	for _, src := range []string{"a", "b", "c"} {
		_, err := pc.Container(ctx, src)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, pc.Len())

	_, err := pc.Container(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), l.calls.Load())

	_, err = pc.Container(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), l.calls.Load())
}

func TestPutAndInvalidate(t *testing.T) {
	t.Parallel()

	l := &counter{}
	pc := newContext(t, l)
	ctx := context.Background()

	ct, err := acquisition("manual")
	require.NoError(t, err)

	pc.Put("manual", ct)
	ct.Metadata["after"] = 1

	got, err := pc.Container(ctx, "manual")
	require.NoError(t, err)
	assert.NotContains(t, got.Metadata, "after")
	assert.Zero(t, l.calls.Load())

	pc.Invalidate("manual")
	assert.Zero(t, pc.Len())

	_, err = pc.Container(ctx, "manual")
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.calls.Load())
}

func TestLoadFailureIsNotCached(t *testing.T) {
	t.Parallel()

	l := &counter{}
	pc := newContext(t, l)

	for range 2 {
		_, err := pc.Container(context.Background(), "missing")
		require.Error(t, err)
		assert.Equal(t, model.CodeLoad, model.CodeOf(err))
	}

	assert.Equal(t, int64(2), l.calls.Load())
	assert.Zero(t, pc.Len())
}

func TestControllerIsShared(t *testing.T) {
	t.Parallel()

	pc := newContext(t, &counter{})

	a, err := pc.Controller()
	require.NoError(t, err)

	b, err := pc.Controller()
	require.NoError(t, err)

	assert.Same(t, a, b)
	assert.True(t, a.Ready())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Mode = "predefined"

	_, err := New(WithConfig(cfg))
	assert.True(t, model.IsCode(err, model.CodeConfigValidation), "err = %v", err)
}
