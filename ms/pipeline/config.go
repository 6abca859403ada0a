package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-spectro/ms/analyzer"
	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/extract"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/strategy"
)

// Config holds the defaults of a processing context. Payloads passed to
// Process override them per call.
type Config struct {
	// CacheSize bounds the number of cached containers; 0 means unbounded.
	CacheSize int `json:"cache_size" yaml:"cache_size"`
	// Concurrency bounds ProcessAll; 0 means one worker per input.
	Concurrency int             `json:"concurrency" yaml:"concurrency"`
	Mode        string          `json:"mode" yaml:"mode"`
	Strategy    string          `json:"strategy" yaml:"strategy"`
	Analyzer    analyzer.Config `json:"analyzer" yaml:"analyzer"`
	Baseline    baseline.Config `json:"baseline" yaml:"baseline"`
	Extraction  extract.Config  `json:"extraction" yaml:"extraction"`
}

// DefaultConfig returns automatic strategy selection over the documented
// component defaults.
func DefaultConfig() Config {
	return Config{
		CacheSize:   16,
		Concurrency: 4,
		Mode:        strategy.Automatic.String(),
		Analyzer:    analyzer.DefaultConfig(),
		Baseline:    baseline.DefaultConfig(),
		Extraction:  extract.DefaultConfig(),
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if c.CacheSize < 0 {
		return model.NewConfigValidation("cache_size", "must be >= 0")
	}

	if c.Concurrency < 0 {
		return model.NewConfigValidation("concurrency", "must be >= 0")
	}

	mode, err := strategy.ParseMode(c.Mode)
	if err != nil {
		return err
	}

	if mode == strategy.Predefined && c.Strategy == "" {
		return model.NewConfigValidation("strategy", "required in predefined mode")
	}

	if err := c.Analyzer.Validate(); err != nil {
		return err
	}

	if err := c.Baseline.Validate(); err != nil {
		return err
	}

	return c.Extraction.Validate()
}

// LoadConfig reads a YAML or JSON configuration file and merges it over
// DefaultConfig. The format follows the file extension; anything but .json
// is read as YAML.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("pipeline: read config: %w", err)
	}

	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}

	return ParseConfig(data, format)
}

// ParseConfig decodes data in the given format ("yaml" or "json") over
// DefaultConfig and validates the result. Unknown keys are rejected.
func ParseConfig(data []byte, format string) (Config, error) {
	cfg := DefaultConfig()

	switch strings.ToLower(format) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()

		if err := dec.Decode(&cfg); err != nil {
			return Config{}, model.NewConfigValidation("config", err.Error())
		}
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, model.NewConfigValidation("config", err.Error())
		}
	default:
		return Config{}, model.NewUnknownMethod("config_format", format)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
