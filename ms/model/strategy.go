package model

import (
	"maps"
	"reflect"
	"slices"
)

// ComponentType tags a pluggable implementation.
type ComponentType string

const (
	PeakDetector       ComponentType = "PeakDetector"
	FittingMethod      ComponentType = "FittingMethod"
	OverlapProcessor   ComponentType = "OverlapProcessor"
	ParameterOptimizer ComponentType = "ParameterOptimizer"
	AdvancedAlgorithm  ComponentType = "AdvancedAlgorithm"
	PostProcessor      ComponentType = "PostProcessor"
	BaselineCorrector  ComponentType = "BaselineCorrector"
	CurveExtractor     ComponentType = "CurveExtractor"
)

// ComponentTypes lists every component type in a stable order.
func ComponentTypes() []ComponentType {
	return []ComponentType{
		PeakDetector, FittingMethod, OverlapProcessor, ParameterOptimizer,
		AdvancedAlgorithm, PostProcessor, BaselineCorrector, CurveExtractor,
	}
}

// ComponentDescriptor identifies a pluggable implementation for
// introspection. It carries no behaviour.
type ComponentDescriptor struct {
	Type         ComponentType `json:"type"`
	Name         string        `json:"name"`
	Version      string        `json:"version"`
	Description  string        `json:"description"`
	Capabilities []string      `json:"capabilities,omitempty"`
}

// Strategy keys accepted by Strategy.With and hybrid overrides.
const (
	KeyPeakDetection         = "peak_detection"
	KeyOverlapProcessing     = "overlap_processing"
	KeyFittingMethod         = "fitting_method"
	KeyOptimizationAlgorithm = "optimization_algorithm"
	KeyAdvancedAlgorithm     = "advanced_algorithm"
	KeyPostProcessing        = "post_processing"
)

// Strategy is a named, versioned bundle of component selections plus a free
// configuration payload. Strategies are values: With returns a modified
// copy and the receiver is never changed.
type Strategy struct {
	Name                  string         `json:"name" yaml:"name"`
	Version               string         `json:"version" yaml:"version"`
	PeakDetection         string         `json:"peak_detection" yaml:"peak_detection"`
	OverlapProcessing     string         `json:"overlap_processing" yaml:"overlap_processing"`
	FittingMethod         string         `json:"fitting_method" yaml:"fitting_method"`
	OptimizationAlgorithm string         `json:"optimization_algorithm" yaml:"optimization_algorithm"`
	AdvancedAlgorithm     string         `json:"advanced_algorithm,omitempty" yaml:"advanced_algorithm,omitempty"`
	PostProcessing        string         `json:"post_processing,omitempty" yaml:"post_processing,omitempty"`
	Config                map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// With returns a copy of s with key set. Component keys select
// implementations; any other key is stored in the configuration payload.
func (s Strategy) With(key string, value string) Strategy {
	out := s.clone()
	switch key {
	case KeyPeakDetection:
		out.PeakDetection = value
	case KeyOverlapProcessing:
		out.OverlapProcessing = value
	case KeyFittingMethod:
		out.FittingMethod = value
	case KeyOptimizationAlgorithm:
		out.OptimizationAlgorithm = value
	case KeyAdvancedAlgorithm:
		out.AdvancedAlgorithm = value
	case KeyPostProcessing:
		out.PostProcessing = value
	default:
		out.Config[key] = value
	}
	return out
}

// WithConfig returns a copy of s with a configuration entry set.
func (s Strategy) WithConfig(key string, value any) Strategy {
	out := s.clone()
	out.Config[key] = value
	return out
}

// Equal compares two strategies by value.
func (s Strategy) Equal(o Strategy) bool {
	if s.Name != o.Name || s.Version != o.Version ||
		s.PeakDetection != o.PeakDetection || s.OverlapProcessing != o.OverlapProcessing ||
		s.FittingMethod != o.FittingMethod || s.OptimizationAlgorithm != o.OptimizationAlgorithm ||
		s.AdvancedAlgorithm != o.AdvancedAlgorithm || s.PostProcessing != o.PostProcessing {
		return false
	}
	if len(s.Config) == 0 && len(o.Config) == 0 {
		return true
	}
	return reflect.DeepEqual(s.Config, o.Config)
}

// Components returns the selected component per type, skipping empty
// optional selections.
func (s Strategy) Components() map[ComponentType]string {
	out := map[ComponentType]string{
		PeakDetector:       s.PeakDetection,
		OverlapProcessor:   s.OverlapProcessing,
		FittingMethod:      s.FittingMethod,
		ParameterOptimizer: s.OptimizationAlgorithm,
	}
	if s.AdvancedAlgorithm != "" {
		out[AdvancedAlgorithm] = s.AdvancedAlgorithm
	}
	if s.PostProcessing != "" {
		out[PostProcessor] = s.PostProcessing
	}
	return out
}

// ComponentKeys lists the strategy keys that select components.
func ComponentKeys() []string {
	return slices.Clone(componentKeys)
}

var componentKeys = []string{
	KeyPeakDetection, KeyOverlapProcessing, KeyFittingMethod,
	KeyOptimizationAlgorithm, KeyAdvancedAlgorithm, KeyPostProcessing,
}

func (s Strategy) clone() Strategy {
	out := s
	out.Config = maps.Clone(s.Config)
	if out.Config == nil {
		out.Config = make(map[string]any)
	}
	return out
}
