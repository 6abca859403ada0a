package strategy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cast"

	"github.com/cwbudde/algo-spectro/ms/analyzer"
	"github.com/cwbudde/algo-spectro/ms/baseline"
	"github.com/cwbudde/algo-spectro/ms/extract"
	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/detect"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/ms/peak/overlap"
)

// Validator is implemented by every typed configuration.
type Validator interface {
	Validate() error
}

type typedConfig struct {
	schema func() *jsonschema.Schema
	decode func(payload map[string]any) (any, error)
}

func entry[T Validator](def func() T) typedConfig {
	return typedConfig{
		schema: func() *jsonschema.Schema { return reflector().Reflect(def()) },
		decode: func(payload map[string]any) (any, error) { return Decode(payload, def()) },
	}
}

var schemaNames = []string{"detection", "fitting", "overlap", "baseline", "analyzer", "extraction"}

var typedConfigs = map[string]typedConfig{
	"detection":  entry(detect.DefaultParams),
	"fitting":    entry(fit.DefaultOptions),
	"overlap":    entry(overlap.DefaultParams),
	"baseline":   entry(baseline.DefaultConfig),
	"analyzer":   entry(analyzer.DefaultConfig),
	"extraction": entry(extract.DefaultConfig),
}

// SchemaNames lists the configurations Schema and ValidateConfig accept.
func SchemaNames() []string { return slices.Clone(schemaNames) }

// Schema returns the JSON Schema of the named configuration.
func Schema(name string) (*jsonschema.Schema, error) {
	tc, ok := typedConfigs[normalize(name)]
	if !ok {
		return nil, model.NewUnknownMethod("schema", name)
	}

	s := tc.schema()
	s.Title = normalize(name)

	return s, nil
}

// ValidateConfig checks payload against the named configuration and returns
// the decoded typed value with defaults filled in.
func ValidateConfig(name string, payload map[string]any) (any, error) {
	tc, ok := typedConfigs[normalize(name)]
	if !ok {
		return nil, model.NewUnknownMethod("schema", name)
	}

	return tc.decode(payload)
}

// Decode overlays payload onto def and validates the result. Every payload
// property must exist in the schema of T and is coerced to its declared
// type before a strict decode.
func Decode[T Validator](payload map[string]any, def T) (T, error) {
	return decode(payload, def, "")
}

func decode[T Validator](payload map[string]any, def T, path string) (T, error) {
	norm, err := coerce(reflector().Reflect(def), payload, path)
	if err != nil {
		return def, err
	}

	raw, err := json.Marshal(norm)
	if err != nil {
		return def, model.NewConfigValidation(fieldOr(path), err.Error())
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	out := def
	if err := dec.Decode(&out); err != nil {
		return def, model.NewConfigValidation(fieldOr(path), err.Error())
	}

	if err := out.Validate(); err != nil {
		return def, err
	}

	return out, nil
}

// Strategy config sections decoded onto the analyzer configuration.
const (
	SectionDetection = "detection"
	SectionFit       = "fit"
	SectionOverlap   = "overlap"
	SectionWeights   = "weights"
)

// applySections overlays the analyzer sections of a strategy config onto ac.
func applySections(ac *analyzer.Config, cfg map[string]any) error {
	if err := section(cfg, SectionDetection, &ac.Detection); err != nil {
		return err
	}

	if err := section(cfg, SectionFit, &ac.Fit); err != nil {
		return err
	}

	if err := section(cfg, SectionOverlap, &ac.Overlap); err != nil {
		return err
	}

	return section(cfg, SectionWeights, &ac.Weights)
}

func section[T Validator](cfg map[string]any, key string, dst *T) error {
	v, ok := cfg[key]
	if !ok {
		return nil
	}

	m, err := cast.ToStringMapE(v)
	if err != nil {
		return model.NewConfigValidation(key, "must be an object")
	}

	out, err := decode(m, *dst, key+".")
	if err != nil {
		return err
	}

	*dst = out

	return nil
}

func reflector() *jsonschema.Reflector {
	return &jsonschema.Reflector{
		DoNotReference:             true,
		ExpandedStruct:             true,
		RequiredFromJSONSchemaTags: true,
	}
}

// coerce walks payload against the properties of s, converting every value
// to its declared type and checking enums and numeric bounds.
func coerce(s *jsonschema.Schema, payload map[string]any, path string) (map[string]any, error) {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	out := make(map[string]any, len(payload))

	for _, key := range keys {
		field := path + key

		if s.Properties == nil {
			return nil, model.NewConfigValidation(field, "unknown property")
		}

		prop, ok := s.Properties.Get(key)
		if !ok {
			return nil, model.NewConfigValidation(field, "unknown property")
		}

		v, err := coerceValue(prop, payload[key], field)
		if err != nil {
			return nil, err
		}

		out[key] = v
	}

	return out, nil
}

func coerceValue(s *jsonschema.Schema, v any, field string) (any, error) {
	switch s.Type {
	case "number":
		f, err := cast.ToFloat64E(v)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, model.NewConfigValidation(field, "must be a number")
		}

		return f, checkRange(s, f, field)
	case "integer":
		f, err := cast.ToFloat64E(v)
		if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
			return nil, model.NewConfigValidation(field, "must be an integer")
		}

		return int64(f), checkRange(s, f, field)
	case "string":
		str, err := cast.ToStringE(v)
		if err != nil {
			return nil, model.NewConfigValidation(field, "must be a string")
		}

		if len(s.Enum) > 0 && !slices.ContainsFunc(s.Enum, func(e any) bool { return e == str }) {
			return nil, model.NewConfigValidation(field, fmt.Sprintf("must be one of %v", s.Enum))
		}

		return str, nil
	case "boolean":
		b, err := cast.ToBoolE(v)
		if err != nil {
			return nil, model.NewConfigValidation(field, "must be a boolean")
		}

		return b, nil
	case "object":
		m, err := cast.ToStringMapE(v)
		if err != nil {
			return nil, model.NewConfigValidation(field, "must be an object")
		}

		return coerce(s, m, field+".")
	}

	return v, nil
}

func checkRange(s *jsonschema.Schema, v float64, field string) error {
	if lo, ok := bound(s.Minimum); ok && v < lo {
		return model.NewConfigValidation(field, fmt.Sprintf("must be >= %s", s.Minimum))
	}

	if lo, ok := bound(s.ExclusiveMinimum); ok && v <= lo {
		return model.NewConfigValidation(field, fmt.Sprintf("must be > %s", s.ExclusiveMinimum))
	}

	if hi, ok := bound(s.Maximum); ok && v > hi {
		return model.NewConfigValidation(field, fmt.Sprintf("must be <= %s", s.Maximum))
	}

	if hi, ok := bound(s.ExclusiveMaximum); ok && v >= hi {
		return model.NewConfigValidation(field, fmt.Sprintf("must be < %s", s.ExclusiveMaximum))
	}

	return nil
}

func bound(n json.Number) (float64, bool) {
	if n == "" {
		return 0, false
	}

	f, err := n.Float64()

	return f, err == nil
}

func fieldOr(path string) string {
	if path == "" {
		return "payload"
	}

	return path[:len(path)-1]
}
