// Package overlap groups fitted peaks whose half-maximum windows intersect
// and resolves each group into its components.
//
// Two peaks overlap when (fwhm1+fwhm2)/2 - |c1-c2| exceeds the tolerance
// times the narrower FWHM. Groups are formed transitively. After resolution
// the component areas of a group are renormalized to the trapezoid integral
// of the curve over the group region.
package overlap

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
	"github.com/cwbudde/algo-spectro/ms/peak/fit"
	"github.com/cwbudde/algo-spectro/stats/profile"
)

// Method enumerates the overlap resolvers.
type Method int

const (
	None Method = iota
	FBF
	SharpenCWT
	EMGNLLS
	ExtremeOverlap
	Auto
)

var methodNames = [...]string{"none", "fbf", "sharpen_cwt", "emg_nlls", "extreme_overlap", "auto"}

func (m Method) String() string {
	if m < 0 || int(m) >= len(methodNames) {
		return fmt.Sprintf("Method(%d)", int(m))
	}
	return methodNames[m]
}

// Methods lists every method including None and Auto.
func Methods() []Method { return []Method{None, FBF, SharpenCWT, EMGNLLS, ExtremeOverlap, Auto} }

// ParseMethod returns the method with the given name.
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "", "off":
		return None, nil
	case "forward_backward":
		return FBF, nil
	case "sharpen", "cwt":
		return SharpenCWT, nil
	case "emg":
		return EMGNLLS, nil
	case "extreme":
		return ExtremeOverlap, nil
	}
	for i, s := range methodNames {
		if s == n {
			return Method(i), nil
		}
	}
	return 0, model.NewUnknownMethod("overlap_method", name)
}

// Params controls overlap grouping and resolution.
type Params struct {
	Tolerance     float64 `json:"tolerance" yaml:"tolerance" jsonschema:"minimum=0,default=0.1"`
	MaxIterations int     `json:"max_iterations" yaml:"max_iterations" jsonschema:"minimum=0,default=100"`
	// Sharpening is the factor k in y - k*sigma^2*y'' used by sharpen_cwt.
	Sharpening float64 `json:"sharpening" yaml:"sharpening" jsonschema:"minimum=0,default=10"`
	Seed       uint64  `json:"seed" yaml:"seed" jsonschema:"default=1"`
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{Tolerance: 0.1, MaxIterations: 100, Sharpening: 10, Seed: 1}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Tolerance < 0 || math.IsNaN(p.Tolerance):
		return model.NewConfigValidation("tolerance", "must be >= 0")
	case p.MaxIterations < 0:
		return model.NewConfigValidation("max_iterations", "must be >= 0")
	case p.Sharpening < 0:
		return model.NewConfigValidation("sharpening", "must be >= 0")
	}
	return nil
}

func (p Params) fitOptions() fit.Options {
	o := fit.DefaultOptions()
	if p.MaxIterations > 0 {
		o.MaxIterations = p.MaxIterations
	}
	if p.Seed != 0 {
		o.Seed = p.Seed
	}
	return o
}

// Resolver re-fits one group of overlapping peaks. The returned peaks keep
// the identifiers of the input peaks.
type Resolver interface {
	Method() Method
	Resolve(c model.Curve, peaks []model.Peak, p Params) ([]model.Peak, error)
}

// New returns the resolver for m. Auto has no resolver of its own; Apply
// picks one per group.
func New(m Method) (Resolver, error) {
	switch m {
	case None:
		return none{}, nil
	case FBF:
		return fbf{}, nil
	case SharpenCWT:
		return sharpen{}, nil
	case EMGNLLS:
		return emgNLLS{}, nil
	case ExtremeOverlap:
		return extreme{}, nil
	case Auto:
		return nil, model.NewInvalidInput("auto selects a resolver per group")
	}
	return nil, model.NewUnknownMethod("overlap_method", m.String())
}

// Groups returns the indices of peaks that overlap, transitively, sorted by
// center. Isolated peaks form groups of one.
func Groups(peaks []model.Peak, tolerance float64) [][]int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(peaks[a].Center, peaks[b].Center)
	})

	parent := make([]int, len(peaks))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	for a := range peaks {
		for b := a + 1; b < len(peaks); b++ {
			if peaks[a].Overlaps(peaks[b], tolerance) {
				parent[find(b)] = find(a)
			}
		}
	}

	index := make(map[int]int)
	var out [][]int
	for _, i := range order {
		r := find(i)
		g, ok := index[r]
		if !ok {
			g = len(out)
			index[r] = g
			out = append(out, nil)
		}
		out[g] = append(out[g], i)
	}
	return out
}

// Severity returns the largest pairwise overlap amount in the group divided
// by the mean FWHM of the group.
func Severity(peaks []model.Peak) float64 {
	if len(peaks) < 2 {
		return 0
	}
	worst, sum := math.Inf(-1), 0.0
	for i, p := range peaks {
		sum += p.FWHM
		for _, q := range peaks[i+1:] {
			worst = math.Max(worst, model.OverlapAmount(p, q))
		}
	}
	mean := sum / float64(len(peaks))
	if !(mean > 0) {
		return 0
	}
	return worst / mean
}

// Select picks the resolver for a group: light overlap needs none,
// moderate overlap is peeled off forward and backward, strong overlap is
// sharpened, and heavy overlap on a noisy curve is annealed.
func Select(c model.Curve, peaks []model.Peak) Method {
	s := Severity(peaks)
	switch {
	case s < 0.1:
		return None
	case s < 0.5:
		return FBF
	case s < 1:
		return SharpenCWT
	case profile.SNR(c.Y) < 10:
		return ExtremeOverlap
	}
	return SharpenCWT
}

// Outcome counts what Apply did.
type Outcome struct {
	Groups   int // groups of two or more peaks
	Resolved int
	Failed   int
	Methods  map[string]int // resolver name -> groups resolved with it
}

// regionSpan is the half width of a group region in FWHMs.
const regionSpan = 2

// Apply resolves every group of overlapping peaks with method m. A group
// whose resolver fails keeps its input peaks, annotated with the error. The
// result is sorted by center.
func Apply(c model.Curve, peaks []model.Peak, m Method, p Params) ([]model.Peak, Outcome, error) {
	out := Outcome{Methods: make(map[string]int)}
	if err := p.Validate(); err != nil {
		return nil, out, err
	}
	if m < 0 || m > Auto {
		return nil, out, model.NewUnknownMethod("overlap_method", m.String())
	}

	result := make([]model.Peak, 0, len(peaks))
	for _, idx := range Groups(peaks, p.Tolerance) {
		group := make([]model.Peak, len(idx))
		for j, i := range idx {
			group[j] = peaks[i].Clone()
		}
		if len(group) < 2 || m == None {
			result = append(result, group...)
			continue
		}
		out.Groups++

		method := m
		if method == Auto {
			method = Select(c, group)
		}
		if method == None {
			result = append(result, group...)
			continue
		}

		r, err := New(method)
		if err != nil {
			return nil, out, err
		}
		resolved, err := r.Resolve(c, group, p)
		if err != nil {
			out.Failed++
			for j := range group {
				group[j].Metadata[model.MetaOverlapError] = err.Error()
			}
			result = append(result, group...)
			continue
		}

		normalizeAreas(c, resolved)
		for j := range resolved {
			resolved[j].OverlapResolved = true
			resolved[j].Metadata[model.MetaOverlapMethod] = method.String()
		}
		out.Resolved++
		out.Methods[method.String()]++
		result = append(result, resolved...)
	}

	model.SortPeaks(result)
	return result, out, nil
}

// Region returns the x interval covered by a group: every peak center plus
// or minus two FWHMs.
func Region(peaks []model.Peak) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range peaks {
		lo = math.Min(lo, p.Center-regionSpan*p.FWHM)
		hi = math.Max(hi, p.Center+regionSpan*p.FWHM)
	}
	return lo, hi
}

// normalizeAreas scales the component areas so they sum to the integral of
// c over the group region. The model areas are kept as raw_area.
func normalizeAreas(c model.Curve, peaks []model.Peak) {
	total := 0.0
	for _, p := range peaks {
		total += p.Area
	}
	integral := c.AreaBetween(Region(peaks))
	if !(total > 0) || !(integral > 0) {
		return
	}

	scale := integral / total
	for i := range peaks {
		peaks[i].Metadata[model.MetaRawArea] = peaks[i].Area
		peaks[i].Area *= scale
	}
}
