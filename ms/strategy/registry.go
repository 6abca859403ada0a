package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Stage post-processes analyzed peaks. Advanced algorithms and
// post-processors are stages; the other component types are resolved by
// the analyzer and only described here.
type Stage interface {
	Process(ctx context.Context, c model.Curve, peaks []model.Peak, cfg map[string]any) ([]model.Peak, error)
}

// Factory builds one Stage instance.
type Factory func() (Stage, error)

// Entry is a registered component.
type Entry struct {
	Descriptor model.ComponentDescriptor
	Build      Factory // nil for components the analyzer resolves by name
}

// Registry maps (component type, name) to descriptors and factories.
// Listings keep registration order. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[model.ComponentType]*orderedmap.OrderedMap[string, Entry]
}

var (
	errDuplicateComponent = errors.New("duplicate component")
	errNoFactory          = errors.New("component has no factory")
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[model.ComponentType]*orderedmap.OrderedMap[string, Entry])}
}

// Register adds a component. Names are case-insensitive.
func (r *Registry) Register(d model.ComponentDescriptor, build Factory) error {
	name := normalize(d.Name)
	if name == "" {
		return errors.New("empty component name")
	}

	if d.Type == "" {
		return errors.New("empty component type")
	}

	d.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.entries[d.Type]
	if !ok {
		m = orderedmap.New[string, Entry]()
		r.entries[d.Type] = m
	}

	if _, exists := m.Get(name); exists {
		return fmt.Errorf("%w: %s/%s", errDuplicateComponent, d.Type, name)
	}

	m.Set(name, Entry{Descriptor: d, Build: build})

	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d model.ComponentDescriptor, build Factory) {
	err := r.Register(d, build)
	if err != nil {
		panic("strategy registry: " + err.Error())
	}
}

// Lookup returns the entry registered under t and name.
func (r *Registry) Lookup(t model.ComponentType, name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entries[t]
	if !ok {
		return Entry{}, false
	}

	return m.Get(normalize(name))
}

// Descriptor returns the descriptor registered under t and name, or an
// unknown-method error.
func (r *Registry) Descriptor(t model.ComponentType, name string) (model.ComponentDescriptor, error) {
	e, ok := r.Lookup(t, name)
	if !ok {
		return model.ComponentDescriptor{}, model.NewUnknownMethod(kindOf(t), name).
			WithDetail("component_type", string(t))
	}

	return e.Descriptor, nil
}

// List returns the descriptors of type t in registration order.
func (r *Registry) List(t model.ComponentType) []model.ComponentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.entries[t]
	if !ok {
		return []model.ComponentDescriptor{}
	}

	out := make([]model.ComponentDescriptor, 0, m.Len())
	for pair := m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value.Descriptor)
	}

	return out
}

// Build instantiates the stage registered under t and name.
func (r *Registry) Build(t model.ComponentType, name string) (Stage, error) {
	e, ok := r.Lookup(t, name)
	if !ok {
		return nil, model.NewUnknownMethod(kindOf(t), name).WithDetail("component_type", string(t))
	}

	if e.Build == nil {
		return nil, fmt.Errorf("%w: %s/%s", errNoFactory, t, e.Descriptor.Name)
	}

	return e.Build()
}

// kindOf names a component type the way unknown-method errors report it.
func kindOf(t model.ComponentType) string {
	switch t {
	case model.PeakDetector:
		return "peak_detection"
	case model.FittingMethod:
		return "fitting_method"
	case model.OverlapProcessor:
		return "overlap_method"
	case model.ParameterOptimizer:
		return "optimization_algorithm"
	case model.AdvancedAlgorithm:
		return "advanced_algorithm"
	case model.PostProcessor:
		return "post_processing"
	case model.BaselineCorrector:
		return "baseline_method"
	case model.CurveExtractor:
		return "extractor"
	}

	return string(t)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
