package export

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// JSON writes the container metadata, curves and peaks as one indented
// document. Spectra are not included. Non-finite numbers are written as 0
// in curve and peak fields and as null in metadata.
type JSON struct{}

func (JSON) Name() string        { return "json" }
func (JSON) Description() string { return "container document with curves and peaks" }

type document struct {
	Source   string         `json:"source"`
	Spectra  int            `json:"spectra_count"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Curves   []curveDoc     `json:"curves"`
	Peaks    []peakDoc      `json:"peaks"`
}

type curveDoc struct {
	ID       string         `json:"id"`
	Type     string         `json:"type"`
	XLabel   string         `json:"x_label,omitempty"`
	XUnit    string         `json:"x_unit,omitempty"`
	YLabel   string         `json:"y_label,omitempty"`
	YUnit    string         `json:"y_unit,omitempty"`
	MZRange  *model.Range   `json:"mz_range,omitempty"`
	X        []float64      `json:"x"`
	Y        []float64      `json:"y"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type peakDoc struct {
	ID              string         `json:"id"`
	CurveID         string         `json:"curve_id"`
	Center          float64        `json:"center"`
	Amplitude       float64        `json:"amplitude"`
	FWHM            float64        `json:"fwhm"`
	Area            float64        `json:"area"`
	RSquared        float64        `json:"r_squared"`
	Quality         float64        `json:"quality"`
	OverlapResolved bool           `json:"overlap_resolved"`
	Shape           string         `json:"shape,omitempty"`
	Params          []float64      `json:"params,omitempty"`
	LeftBound       float64        `json:"left_bound"`
	RightBound      float64        `json:"right_bound"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

func (JSON) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	doc := document{
		Source:  c.Source(),
		Spectra: len(c.Spectra),
		Curves:  []curveDoc{},
		Peaks:   []peakDoc{},
	}

	if cfg.IncludeMetadata {
		doc.Metadata = cleanMap(c.Metadata)
	}

	for _, cv := range cfg.curves(c) {
		d := curveDoc{
			ID:      cv.ID,
			Type:    string(cv.Type),
			XLabel:  cv.XLabel,
			XUnit:   cv.XUnit,
			YLabel:  cv.YLabel,
			YUnit:   cv.YUnit,
			MZRange: cv.MZRange,
			X:       cleanSlice(cv.X),
			Y:       cleanSlice(cv.Y),
		}
		if cfg.IncludeMetadata {
			d.Metadata = cleanMap(cv.Metadata)
		}

		doc.Curves = append(doc.Curves, d)
	}

	for _, p := range cfg.peaks(c) {
		d := peakDoc{
			ID:              p.ID,
			CurveID:         p.CurveID,
			Center:          finite(p.Center),
			Amplitude:       finite(p.Amplitude),
			FWHM:            finite(p.FWHM),
			Area:            finite(p.Area),
			RSquared:        finite(p.RSquared),
			Quality:         finite(p.Quality),
			OverlapResolved: p.OverlapResolved,
			Shape:           p.Shape,
			Params:          cleanSlice(p.Params),
			LeftBound:       finite(p.LeftBound),
			RightBound:      finite(p.RightBound),
		}
		if cfg.IncludeMetadata {
			d.Metadata = cleanMap(p.Metadata)
		}

		doc.Peaks = append(doc.Peaks, d)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Payload{}, fmt.Errorf("export: json: %w", err)
	}

	return Payload{Name: fileName(c, ".json"), ContentType: "application/json", Data: append(data, '\n')}, nil
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return v
}

func cleanSlice(v []float64) []float64 {
	if v == nil {
		return nil
	}

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = finite(x)
	}

	return out
}

func cleanMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = clean(v)
	}

	return out
}

func clean(v any) any {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
	case float32:
		return clean(float64(x))
	case []float64:
		return cleanSlice(x)
	case map[string]any:
		return cleanMap(x)
	}

	return v
}
