package strategy

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Mode selects how the controller chooses a strategy.
type Mode int

const (
	// Automatic infers the strategy from the curve and its peaks.
	Automatic Mode = iota
	// Manual uses the caller's strategy as given.
	Manual
	// Hybrid infers a strategy and applies the caller's overrides.
	Hybrid
	// Predefined uses a registered strategy by name.
	Predefined
)

var modeNames = [...]string{"automatic", "manual", "hybrid", "predefined"}

func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return fmt.Sprintf("Mode(%d)", int(m))
	}

	return modeNames[m]
}

// Modes lists the processing modes.
func Modes() []Mode { return []Mode{Automatic, Manual, Hybrid, Predefined} }

// ParseMode returns the mode with the given name.
func ParseMode(name string) (Mode, error) {
	switch n := normalize(name); n {
	case "auto":
		return Automatic, nil
	case "custom":
		return Manual, nil
	default:
		for i, s := range modeNames {
			if s == n {
				return Mode(i), nil
			}
		}
	}

	return 0, model.NewUnknownMethod("strategy_mode", strings.TrimSpace(name))
}

// Request tells Process how to pick its strategy. Manual mode reads
// Strategy, predefined mode reads Name and hybrid mode reads Overrides.
type Request struct {
	Mode      Mode
	Strategy  model.Strategy
	Name      string
	Overrides map[string]any
}
