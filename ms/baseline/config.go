package baseline

import "github.com/cwbudde/algo-spectro/ms/model"

// Config pairs a correction method with its parameters.
type Config struct {
	Method string `json:"method" yaml:"method" jsonschema:"enum=none,enum=linear,enum=polynomial,enum=moving_average,enum=als,default=als"`
	Params `yaml:",inline"`
}

// DefaultConfig selects asymmetric least squares with the default
// parameters.
func DefaultConfig() Config {
	return Config{Method: DefaultMethod.String(), Params: DefaultParams()}
}

// Validate checks the method name and its parameters.
func (c Config) Validate() error {
	m, err := ParseMethod(c.Method)
	if err != nil {
		return err
	}
	return c.Params.Validate(m)
}

// Apply corrects curve c as configured.
func (c Config) Apply(curve model.Curve) (Result, error) {
	m, err := ParseMethod(c.Method)
	if err != nil {
		return Result{}, err
	}
	return Correct(curve, m, c.Params)
}
