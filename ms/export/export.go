// Package export turns containers into named byte payloads: curve, peak and
// spectra tables, a JSON document, a Markdown or HTML report and a SQLite
// database. Exporters never touch the file system; callers decide where a
// payload goes.
package export

import (
	"math"
	"path"
	"slices"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Payload is the output of an exporter.
type Payload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Exporter renders a container into a payload. Export never modifies the
// container.
type Exporter interface {
	Name() string
	Description() string
	Export(c *model.Container, cfg Config) (Payload, error)
}

// Config holds the options shared by every exporter. Options an exporter
// has no use for are ignored.
type Config struct {
	IncludeHeader   bool   `json:"include_header" yaml:"include_header" jsonschema:"default=true"`
	IncludeMetadata bool   `json:"include_metadata" yaml:"include_metadata" jsonschema:"default=true"`
	Precision       int    `json:"decimal_precision" yaml:"decimal_precision" jsonschema:"minimum=0,maximum=15,default=6"`
	Title           string `json:"title,omitempty" yaml:"title,omitempty"`
	// Curves restricts curve and peak output to the listed curve IDs.
	Curves []string `json:"curves,omitempty" yaml:"curves,omitempty"`
	// MZRange, RTRange, MSLevel and MinIntensity filter the raw samples
	// of the spectra table.
	MZRange      string  `json:"mz_range" yaml:"mz_range" jsonschema:"default=full"`
	RTRange      string  `json:"rt_range" yaml:"rt_range" jsonschema:"default=full"`
	MSLevel      int     `json:"ms_level" yaml:"ms_level" jsonschema:"minimum=0,maximum=255,default=0"`
	MinIntensity float64 `json:"min_intensity" yaml:"min_intensity" jsonschema:"minimum=0,default=0"`
}

// DefaultConfig writes headers and metadata with six decimals.
func DefaultConfig() Config {
	return Config{
		IncludeHeader:   true,
		IncludeMetadata: true,
		Precision:       6,
		MZRange:         "full",
		RTRange:         "full",
	}
}

// Validate checks the precision and the sample filter.
func (c Config) Validate() error {
	if c.Precision < 0 || c.Precision > 15 {
		return model.NewConfigValidation("decimal_precision", "must be in [0, 15]")
	}

	if c.MinIntensity < 0 || math.IsNaN(c.MinIntensity) {
		return model.NewConfigValidation("min_intensity", "must be >= 0")
	}

	_, err := c.Filter()

	return err
}

// Filter returns the spectrum filter of the spectra table.
func (c Config) Filter() (model.Filter, error) {
	mz, err := model.ParseRange(c.MZRange)
	if err != nil {
		return model.Filter{}, model.NewConfigValidation("mz_range", err.Error())
	}

	rt, err := model.ParseRange(c.RTRange)
	if err != nil {
		return model.Filter{}, model.NewConfigValidation("rt_range", err.Error())
	}

	if c.MSLevel < 0 || c.MSLevel > math.MaxUint8 {
		return model.Filter{}, model.NewConfigValidation("ms_level", "must be in [0, 255]")
	}

	return model.Filter{MZ: mz, RT: rt, MSLevel: uint8(c.MSLevel)}, nil
}

// curves returns the curves selected by cfg in container order.
func (c Config) curves(ct *model.Container) []model.Curve {
	if len(c.Curves) == 0 {
		return ct.Curves
	}

	var out []model.Curve

	for _, cv := range ct.Curves {
		if slices.Contains(c.Curves, cv.ID) {
			out = append(out, cv)
		}
	}

	return out
}

// peaks returns the peaks selected by cfg in container order.
func (c Config) peaks(ct *model.Container) []model.Peak {
	if len(c.Curves) == 0 {
		return ct.Peaks
	}

	var out []model.Peak

	for _, p := range ct.Peaks {
		if slices.Contains(c.Curves, p.CurveID) {
			out = append(out, p)
		}
	}

	return out
}

// fileName derives a payload name from the container source.
func fileName(c *model.Container, suffix string) string {
	base := path.Base(strings.ReplaceAll(c.Source(), "\\", "/"))
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}

	if base == "" || base == "." || base == "/" {
		base = "container"
	}

	return base + suffix
}

func prepare(c *model.Container, cfg Config) error {
	if c == nil {
		return model.NewInvalidInput("export: nil container")
	}

	return cfg.Validate()
}
