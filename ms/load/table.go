// Package load reads spectra into containers.
//
// The Table loader reads plain-text tables with one sample per line:
//
//	rt  ms_level  drift  mz  intensity
//
// Columns are separated by whitespace or tabs. Lines starting with '#' and
// blank lines are ignored, as is a leading header line. Consecutive lines
// sharing retention time, scan level and drift time form one spectrum. A
// drift time of "-" or "NaN" marks a scan without ion mobility.
package load

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Loader reads one acquisition from a source.
type Loader interface {
	Load(ctx context.Context, source string) (*model.Container, error)
}

// Func adapts a function to Loader.
type Func func(ctx context.Context, source string) (*model.Container, error)

// Load calls f.
func (f Func) Load(ctx context.Context, source string) (*model.Container, error) {
	return f(ctx, source)
}

// ErrNoSpectra is wrapped by load errors for tables without samples.
var ErrNoSpectra = errors.New("load: no spectra")

const (
	columns       = 5
	cancelStride  = 1024
	maxLineLength = 1 << 20
)

// Table loads spectra tables from the file system.
type Table struct {
	open func(name string) (io.ReadCloser, error)
}

// Option configures a Table.
type Option func(*Table)

// WithFS reads sources from fsys instead of the operating system.
func WithFS(fsys fs.FS) Option {
	return func(t *Table) {
		if fsys != nil {
			t.open = func(name string) (io.ReadCloser, error) { return fsys.Open(name) }
		}
	}
}

// NewTable returns a table loader reading from the operating system.
func NewTable(opts ...Option) *Table {
	t := &Table{open: func(name string) (io.ReadCloser, error) { return os.Open(name) }}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}

	return t
}

// Load reads source. Failures are load errors carrying the source.
func (t *Table) Load(ctx context.Context, source string) (*model.Container, error) {
	f, err := t.open(source)
	if err != nil {
		return nil, model.NewLoad(source, err)
	}
	defer f.Close()

	return Parse(ctx, source, f)
}

type scanKey struct {
	rt    float64
	level uint8
	drift float64 // NaN without ion mobility
}

func (k scanKey) equal(o scanKey) bool {
	if k.rt != o.rt || k.level != o.level {
		return false
	}
	if math.IsNaN(k.drift) || math.IsNaN(o.drift) {
		return math.IsNaN(k.drift) && math.IsNaN(o.drift)
	}

	return k.drift == o.drift
}

// Parse reads a spectra table from r. source names the table in the
// container metadata and in errors.
func Parse(ctx context.Context, source string, r io.Reader) (*model.Container, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineLength)

	var (
		spectra   []model.Spectrum
		cur       scanKey
		mz, inten []float64
		open      bool
		line      int
		seenData  bool
	)

	flush := func() error {
		if !open {
			return nil
		}

		var drift *float64
		if !math.IsNaN(cur.drift) {
			d := cur.drift
			drift = &d
		}

		s, err := model.NewSpectrum(len(spectra), cur.rt, cur.level, drift, mz, inten)
		if err != nil {
			return err
		}

		spectra = append(spectra, s)
		mz, inten = mz[:0], inten[:0]

		return nil
	}

	for sc.Scan() {
		line++
		if line%cancelStride == 0 {
			if err := ctx.Err(); err != nil {
				return nil, model.NewCanceled(err)
			}
		}

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if !seenData && isHeader(fields) {
			continue
		}

		seenData = true

		key, m, v, err := parseRow(fields)
		if err != nil {
			return nil, model.NewLoad(source, fmt.Errorf("line %d: %w", line, err)).WithDetail("line", line)
		}

		if !open || !key.equal(cur) {
			if err := flush(); err != nil {
				return nil, model.NewLoad(source, fmt.Errorf("line %d: %w", line, err)).WithDetail("line", line)
			}

			cur, open = key, true
		}

		mz = append(mz, m)
		inten = append(inten, v)
	}

	if err := sc.Err(); err != nil {
		return nil, model.NewLoad(source, err)
	}

	if err := flush(); err != nil {
		return nil, model.NewLoad(source, err)
	}

	if len(spectra) == 0 {
		return nil, model.NewLoad(source, ErrNoSpectra)
	}

	return model.NewContainer(source, spectra), nil
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.EqualFold(fields[0], "rt")
}

func parseRow(fields []string) (scanKey, float64, float64, error) {
	if len(fields) != columns {
		return scanKey{}, 0, 0, fmt.Errorf("expected %d columns, got %d", columns, len(fields))
	}

	rt, err := parseFinite("rt", fields[0])
	if err != nil {
		return scanKey{}, 0, 0, err
	}

	level, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return scanKey{}, 0, 0, fmt.Errorf("ms_level %q: %w", fields[1], err)
	}

	drift := math.NaN()
	if f := fields[2]; f != "-" && !strings.EqualFold(f, "nan") {
		if drift, err = parseFinite("drift", f); err != nil {
			return scanKey{}, 0, 0, err
		}
	}

	mz, err := parseFinite("mz", fields[3])
	if err != nil {
		return scanKey{}, 0, 0, err
	}

	inten, err := parseFinite("intensity", fields[4])
	if err != nil {
		return scanKey{}, 0, 0, err
	}

	return scanKey{rt: rt, level: uint8(level), drift: drift}, mz, inten, nil
}

func parseFinite(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, s, err)
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s %q: not finite", name, s)
	}

	return v, nil
}
