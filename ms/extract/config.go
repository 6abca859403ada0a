package extract

import (
	"math"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Config is the typed form of an extraction request. Ranges use the
// "min-max" syntax of model.ParseRange; an empty range selects everything.
type Config struct {
	Extractor  string  `json:"extractor" yaml:"extractor" jsonschema:"enum=drift_time,enum=total_ion,enum=extracted_ion,default=total_ion"`
	MZRange    string  `json:"mz_range" yaml:"mz_range" jsonschema:"default=full"`
	RTRange    string  `json:"rt_range" yaml:"rt_range" jsonschema:"default=full"`
	MSLevel    int     `json:"ms_level" yaml:"ms_level" jsonschema:"minimum=0,maximum=255,default=0"`
	Resolution float64 `json:"resolution" yaml:"resolution" jsonschema:"exclusiveMinimum=0,default=0.001"`
}

// DefaultConfig extracts the full total-ion curve.
func DefaultConfig() Config {
	return Config{
		Extractor:  TotalIon.String(),
		MZRange:    "full",
		RTRange:    "full",
		Resolution: defaultConfig().resolution,
	}
}

// Validate checks the extractor name, the ranges and the resolution.
func (c Config) Validate() error {
	if _, err := ParseKind(c.Extractor); err != nil {
		return err
	}
	if _, err := c.Filter(); err != nil {
		return err
	}
	if !(c.Resolution > 0) || math.IsInf(c.Resolution, 0) {
		return model.NewConfigValidation("resolution", "must be > 0")
	}
	return nil
}

// Filter returns the spectrum filter described by c.
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

// Build validates c and returns its extractor and filter.
func (c Config) Build() (Extractor, model.Filter, error) {
	if err := c.Validate(); err != nil {
		return nil, model.Filter{}, err
	}
	k, err := ParseKind(c.Extractor)
	if err != nil {
		return nil, model.Filter{}, err
	}
	f, err := c.Filter()
	if err != nil {
		return nil, model.Filter{}, err
	}
	ex, err := New(k, WithResolution(c.Resolution))
	if err != nil {
		return nil, model.Filter{}, err
	}
	return ex, f, nil
}
