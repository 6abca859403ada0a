package export

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/cwbudde/algo-spectro/ms/model"
)

var errDuplicateExporter = errors.New("export: exporter already registered")

// Manager holds named exporters in registration order. It is safe for
// concurrent use.
type Manager struct {
	mu        sync.RWMutex
	exporters *orderedmap.OrderedMap[string, Exporter]
}

// NewManager returns a manager with no exporters.
func NewManager() *Manager {
	return &Manager{exporters: orderedmap.New[string, Exporter]()}
}

// DefaultManager returns a manager holding every built-in exporter.
func DefaultManager() *Manager {
	m := NewManager()
	for _, e := range []Exporter{CurveTSV{}, PeakTSV{}, SpectraTSV{}, JSON{}, Markdown{}, HTML{}, SQLite{}} {
		m.MustRegister(e)
	}

	return m
}

// Register adds e under its lower-cased name.
func (m *Manager) Register(e Exporter) error {
	if e == nil {
		return errors.New("export: nil exporter")
	}

	name := strings.ToLower(strings.TrimSpace(e.Name()))
	if name == "" {
		return errors.New("export: empty exporter name")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.exporters.Get(name); ok {
		return fmt.Errorf("%w: %s", errDuplicateExporter, name)
	}

	m.exporters.Set(name, e)

	return nil
}

// MustRegister is like Register but panics on error.
func (m *Manager) MustRegister(e Exporter) {
	if err := m.Register(e); err != nil {
		panic("export manager: " + err.Error())
	}
}

// Lookup returns the exporter with the given name.
func (m *Manager) Lookup(name string) (Exporter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.exporters.Get(strings.ToLower(strings.TrimSpace(name)))
	if !ok {
		return nil, model.NewUnknownMethod("exporter", name)
	}

	return e, nil
}

// Names lists the registered exporters in registration order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, m.exporters.Len())
	for pair := m.exporters.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}

	return out
}

// Export runs the named exporter.
func (m *Manager) Export(name string, c *model.Container, cfg Config) (Payload, error) {
	e, err := m.Lookup(name)
	if err != nil {
		return Payload{}, err
	}

	return e.Export(c, cfg)
}

// ExportAll runs every named exporter, or all of them when names is empty,
// and stops at the first failure.
func (m *Manager) ExportAll(c *model.Container, cfg Config, names ...string) ([]Payload, error) {
	if len(names) == 0 {
		names = m.Names()
	}

	out := make([]Payload, 0, len(names))

	for _, name := range names {
		p, err := m.Export(name, c, cfg)
		if err != nil {
			return nil, fmt.Errorf("export: %s: %w", name, err)
		}

		out = append(out, p)
	}

	return out, nil
}
