package export

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/cwbudde/algo-spectro/ms/model"
)

const tsvType = "text/tab-separated-values"

// CurveTSV writes every selected curve as rows of
// curve_id, curve_type, x and y.
type CurveTSV struct{}

func (CurveTSV) Name() string        { return "curve_tsv" }
func (CurveTSV) Description() string { return "curve points, one row per sample" }

func (CurveTSV) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	curves := cfg.curves(c)

	var w tsvWriter

	if cfg.IncludeMetadata {
		w.comment("source: %s", c.Source())
		w.comment("curves: %d", len(curves))

		for _, cv := range curves {
			w.comment("curve %s: type=%s points=%d x=%s [%s] y=%s [%s]",
				cv.ID, cv.Type, cv.Len(), cv.XLabel, cv.XUnit, cv.YLabel, cv.YUnit)

			if cv.MZRange != nil {
				w.comment("curve %s: mz_range=%s", cv.ID, cv.MZRange)
			}
		}
	}

	if cfg.IncludeHeader {
		w.row("curve_id", "curve_type", "x", "y")
	}

	for _, cv := range curves {
		for i := range cv.X {
			w.row(cv.ID, string(cv.Type), num(cv.X[i], cfg.Precision), num(cv.Y[i], cfg.Precision))
		}
	}

	return Payload{Name: fileName(c, ".curves.tsv"), ContentType: tsvType, Data: w.Bytes()}, nil
}

// PeakTSV writes one row per selected peak.
type PeakTSV struct{}

func (PeakTSV) Name() string        { return "peak_tsv" }
func (PeakTSV) Description() string { return "peak table with fit statistics" }

var peakColumns = []string{
	"peak_id", "curve_id", "center", "amplitude", "fwhm", "area",
	"r_squared", "quality", "shape", "left_bound", "right_bound",
	"asymmetry", "confidence", "overlap_resolved", "converged",
	"detector", "fitting_method", "overlap_method", "strategy", "relative_area",
}

func (PeakTSV) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	peaks := cfg.peaks(c)
	prec := cfg.Precision

	var w tsvWriter

	if cfg.IncludeMetadata {
		w.comment("source: %s", c.Source())
		w.comment("peaks: %d", len(peaks))
	}

	if cfg.IncludeHeader {
		w.row(peakColumns...)
	}

	for _, p := range peaks {
		w.row(
			p.ID, p.CurveID,
			num(p.Center, prec), num(p.Amplitude, prec), num(p.FWHM, prec), num(p.Area, prec),
			num(p.RSquared, prec), num(p.Quality, prec), p.Shape,
			num(p.LeftBound, prec), num(p.RightBound, prec),
			num(p.Asymmetry(), prec), num(p.Confidence(), prec),
			strconv.FormatBool(p.OverlapResolved), strconv.FormatBool(p.Converged()),
			meta(p, model.MetaDetector), meta(p, model.MetaFittingMethod),
			meta(p, model.MetaOverlapMethod), meta(p, model.MetaStrategy),
			metaNum(p, model.MetaRelativeArea, prec),
		)
	}

	return Payload{Name: fileName(c, ".peaks.tsv"), ContentType: tsvType, Data: w.Bytes()}, nil
}

// SpectraTSV writes the raw samples of the spectra that pass the sample
// filter as mz, drift time and intensity rows. Samples at or below
// MinIntensity are skipped; a missing drift time is written as 0.
type SpectraTSV struct{}

func (SpectraTSV) Name() string        { return "spectra_tsv" }
func (SpectraTSV) Description() string { return "raw spectrum samples (mz, drift time, intensity)" }

func (SpectraTSV) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	f, err := cfg.Filter()
	if err != nil {
		return Payload{}, err
	}

	var (
		body   tsvWriter
		points int
	)

	for i := range c.Spectra {
		s := &c.Spectra[i]
		if !f.Matches(s) {
			continue
		}

		dt := 0.0
		if s.DriftTime != nil {
			dt = *s.DriftTime
		}

		for j, mz := range s.MZ {
			if !f.MZ.Contains(mz) || s.Intensity[j] <= cfg.MinIntensity {
				continue
			}

			body.row(num(mz, cfg.Precision), num(dt, cfg.Precision), num(s.Intensity[j], cfg.Precision))
			points++
		}
	}

	var w tsvWriter

	if cfg.IncludeMetadata {
		w.comment("source: %s", c.Source())
		w.comment("spectra: %d", len(c.Spectra))
		w.comment("points: %d", points)
	}

	if cfg.IncludeHeader {
		w.row("mz", "dt", "intensity")
	}

	w.Write(body.Bytes())

	return Payload{Name: fileName(c, ".spectra.tsv"), ContentType: tsvType, Data: w.Bytes()}, nil
}

type tsvWriter struct {
	bytes.Buffer
}

func (w *tsvWriter) comment(format string, args ...any) {
	w.WriteString("# ")
	fmt.Fprintf(w, format, args...)
	w.WriteByte('\n')
}

func (w *tsvWriter) row(fields ...string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte('\t')
		}

		w.WriteString(escape(f))
	}

	w.WriteByte('\n')
}

// escape quotes fields holding separators, quotes or line breaks.
func escape(s string) string {
	if !strings.ContainsAny(s, "\t\"\n\r") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func num(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func meta(p model.Peak, key string) string {
	v, ok := p.Metadata[key]
	if !ok {
		return ""
	}

	return cast.ToString(v)
}

func metaNum(p model.Peak, key string, prec int) string {
	v, ok := p.Metadata[key]
	if !ok {
		return ""
	}

	f, err := cast.ToFloat64E(v)
	if err != nil {
		return ""
	}

	return num(f, prec)
}
