// Package pipeline is the processing entry point: a Context owns the
// container cache, the component registry, the strategy controller and the
// logger, and Process runs extraction, baseline correction and analysis on
// open payloads converted to typed configurations.
//
// There is no package-level state; every caller works through an explicit
// Context.
package pipeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/cwbudde/algo-spectro/ms/load"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/strategy"
)

// Context is the explicit processing context. It is safe for concurrent
// use.
type Context struct {
	cfg      Config
	loader   load.Loader
	registry *strategy.Registry
	log      *slog.Logger

	mu    sync.Mutex
	cache map[string]*model.Container // authoritative entries, never handed out
	order []string                    // insertion order for eviction
	loads singleflight.Group

	once    sync.Once
	ctrl    *strategy.Controller
	ctrlErr error
}

// Option configures a Context.
type Option func(*Context)

// WithConfig replaces DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(c *Context) { c.cfg = cfg }
}

// WithLoader sets the loader sources are read with. The default reads
// spectra tables from disk.
func WithLoader(l load.Loader) Option {
	return func(c *Context) {
		if l != nil {
			c.loader = l
		}
	}
}

// WithRegistry sets the component registry. The default is
// strategy.DefaultRegistry.
func WithRegistry(r *strategy.Registry) Option {
	return func(c *Context) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a Context after validating its configuration.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		cfg:    DefaultConfig(),
		loader: load.NewTable(),
		log:    slog.New(slog.DiscardHandler),
		cache:  make(map[string]*model.Container),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.registry == nil {
		c.registry = strategy.DefaultRegistry()
	}

	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

// Config returns the configuration of c.
func (c *Context) Config() Config { return c.cfg }

// Registry returns the component registry.
func (c *Context) Registry() *strategy.Registry { return c.registry }

// Controller returns the strategy controller, creating and initializing it
// on first use.
func (c *Context) Controller() (*strategy.Controller, error) {
	c.once.Do(func() {
		ctrl := strategy.NewController(c.registry,
			strategy.WithLogger(c.log),
			strategy.WithBaseConfig(c.cfg.Analyzer),
		)
		if c.ctrlErr = ctrl.Init(); c.ctrlErr == nil {
			c.ctrl = ctrl
		}
	})

	return c.ctrl, c.ctrlErr
}

// Container returns a snapshot of the container loaded from source.
// Concurrent loads of one source share a single loader call.
func (c *Context) Container(ctx context.Context, source string) (*model.Container, error) {
	if ct, ok := c.cached(source); ok {
		return ct.Snapshot(), nil
	}

	v, err, _ := c.loads.Do(source, func() (any, error) {
		if ct, ok := c.cached(source); ok {
			return ct, nil
		}

		start := time.Now()

		ct, err := c.loader.Load(ctx, source)
		if err != nil {
			c.log.Error("load failed", "op", "load", "source", source, "err", err)
			return nil, err
		}

		c.store(source, ct)
		c.log.Info("container loaded", "op", "load", "source", source,
			"spectra", len(ct.Spectra), "duration", time.Since(start))

		return ct, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*model.Container).Snapshot(), nil
}

// Put caches a snapshot of ct under source, replacing any entry.
func (c *Context) Put(source string, ct *model.Container) {
	if ct == nil {
		return
	}

	c.store(source, ct.Snapshot())
}

// Invalidate drops the entry of source.
func (c *Context) Invalidate(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.cache, source)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == source })
}

// Len returns the number of cached containers.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.cache)
}

func (c *Context) cached(source string) (*model.Container, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ct, ok := c.cache[source]

	return ct, ok
}

func (c *Context) store(source string, ct *model.Container) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[source]; !ok {
		c.order = append(c.order, source)
	}

	c.cache[source] = ct

	for c.cfg.CacheSize > 0 && len(c.order) > c.cfg.CacheSize {
		delete(c.cache, c.order[0])
		c.order = c.order[1:]
	}
}
