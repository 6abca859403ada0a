package detect

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-spectro/dsp/conv"
	"github.com/cwbudde/algo-spectro/dsp/kernel"
	"github.com/cwbudde/algo-spectro/ms/model"
)

const (
	cwtScales    = 10
	cwtMinRidge  = 3
	cwtMaxGap    = 1
	cwtMinSignal = 0.05 // response floor relative to the scale maximum
	cwtRadius    = cwtScales / 2
)

// cwt correlates the curve with Ricker wavelets at scales of 1 to 10
// samples and reports ridges of response maxima that persist across at
// least three scales. Each ridge is attributed to the hump whose apex it
// climbs to; a hump carrying two or more long ridges that reach the finest
// scales away from its apex is split into shoulders at those ridges.
type cwt struct{}

func (cwt) Method() Method { return CWT }

type ridge struct {
	index  int // position at the smallest scale reached
	scale  int // last scale step matched
	length int
	gap    int
}

// fine reports whether r reaches the smallest scales.
func (r ridge) fine() bool { return r.scale >= cwtScales-1-cwtMaxGap }

// long reports whether r may mark a shoulder.
func (r ridge) long() bool { return r.length >= cwtRadius }

func (cwt) Detect(c model.Curve, p Params) ([]Candidate, error) {
	l, ok, err := prepare(c, p)
	if err != nil || !ok {
		return nil, err
	}
	x, y := c.X, c.Y

	// Maxima per scale, largest scale first.
	peaks := make([][]int, cwtScales)
	for s := range cwtScales {
		a := float64(cwtScales - s)
		k, err := kernel.Ricker(a)
		if err != nil {
			return nil, err
		}
		resp, err := conv.Smooth(y, k)
		if err != nil {
			return nil, err
		}
		peaks[s] = responseMaxima(resp)
	}

	var active, done []*ridge
	for s, idx := range peaks {
		window := max(1, int(math.Round(float64(cwtScales-s)/2)))
		taken := make([]bool, len(idx))

		for _, r := range active {
			best := -1
			for j, m := range idx {
				if taken[j] || abs(m-r.index) > window {
					continue
				}
				if best < 0 || abs(m-r.index) < abs(idx[best]-r.index) {
					best = j
				}
			}
			if best >= 0 {
				taken[best] = true
				r.index = idx[best]
				r.scale = s
				r.length++
				r.gap = 0
				continue
			}
			r.gap++
		}

		next := active[:0]
		for _, r := range active {
			if r.gap > cwtMaxGap {
				done = append(done, r)
				continue
			}
			next = append(next, r)
		}
		active = next

		for j, m := range idx {
			if !taken[j] {
				active = append(active, &ridge{index: m, scale: s, length: 1})
			}
		}
	}
	done = append(done, active...)

	// Attribute ridges to the apex they climb to.
	humps := make(map[int][]ridge)
	var tops []int
	for _, r := range done {
		if r.length < cwtMinRidge {
			continue
		}
		top := climb(y, refine(y, r.index, cwtRadius))
		if _, ok := humps[top]; !ok {
			tops = append(tops, top)
		}
		humps[top] = append(humps[top], *r)
	}
	slices.Sort(tops)
	tops = slices.DeleteFunc(tops, func(i int) bool {
		prom, _, _ := prominence(y, i)
		return y[i] <= l.Threshold || prom <= p.ThresholdMultiplier*l.Noise
	})

	var out []Candidate
	for g, top := range tops {
		prom, lo, hi := prominence(y, top)
		lo, hi = humpBounds(y, tops, g, lo, hi)
		hump := Candidate{
			Index:      top,
			X:          x[top],
			Height:     y[top],
			LeftIndex:  lo,
			RightIndex: hi,
			Width:      widthAt(x, y, top, y[top]-prom/2, lo, hi),
			Group:      g,
		}
		out = append(out, split(x, y, hump, humps[top], l)...)
	}
	return keepWidth(dedupe(out), p), nil
}

// split returns the candidates of one hump: its apex, or one candidate per
// shoulder ridge when the hump carries two or more.
func split(x, y []float64, hump Candidate, ridges []ridge, l Levels) []Candidate {
	type member struct{ index, length int }
	var members []member
	conf, apex := 0, 0
	for _, r := range ridges {
		near := abs(r.index-hump.Index) <= cwtRadius
		conf = max(conf, r.length)
		switch {
		case near && r.fine():
			apex = max(apex, r.length)
		case near || !r.fine() || !r.long():
		case y[r.index] > l.Threshold && r.index > hump.LeftIndex && r.index < hump.RightIndex:
			members = append(members, member{r.index, r.length})
		}
	}
	if apex > 0 || len(members) == 1 {
		members = append(members, member{hump.Index, max(apex, cwtMinRidge)})
	}
	slices.SortFunc(members, func(a, b member) int { return a.index - b.index })
	members = slices.CompactFunc(members, func(a, b member) bool { return b.index-a.index <= cwtRadius })

	if len(members) < 2 {
		hump.Confidence = float64(max(conf, cwtMinRidge)) / cwtScales
		return []Candidate{hump}
	}

	out := make([]Candidate, len(members))
	left := hump.LeftIndex
	for n, m := range members {
		right := hump.RightIndex
		if n+1 < len(members) {
			right = (m.index + members[n+1].index) / 2
		}
		out[n] = Candidate{
			Index:      m.index,
			X:          x[m.index],
			Height:     y[m.index],
			LeftIndex:  left,
			RightIndex: right,
			Width:      hump.Width / float64(len(members)),
			Confidence: math.Min(float64(m.length)/cwtScales, shoulderConfidence),
			Shoulder:   m.index != hump.Index,
			Group:      hump.Group,
		}
		left = right
	}
	return out
}

// responseMaxima returns strict local maxima of a wavelet response above a
// fraction of its largest value.
func responseMaxima(resp []float64) []int {
	top := 0.0
	for _, v := range resp {
		top = math.Max(top, v)
	}
	if top <= 0 {
		return nil
	}

	var out []int
	for i := 1; i < len(resp)-1; i++ {
		if resp[i] > cwtMinSignal*top && resp[i] > resp[i-1] && resp[i] >= resp[i+1] {
			out = append(out, i)
		}
	}
	return out
}

// refine moves i to the largest sample within radius.
func refine(y []float64, i, radius int) int {
	return argmax(y, max(0, i-radius), min(len(y)-1, i+radius))
}

// climb walks uphill from i to the nearest local maximum.
func climb(y []float64, i int) int {
	for {
		switch {
		case i > 0 && y[i-1] > y[i]:
			i--
		case i < len(y)-1 && y[i+1] > y[i]:
			i++
		default:
			return i
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
