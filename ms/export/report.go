package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/cwbudde/algo-spectro/ms/model"
)

// Markdown writes a summary report: acquisition ranges, a curve table and
// a peak table with relative areas.
type Markdown struct{}

func (Markdown) Name() string        { return "markdown" }
func (Markdown) Description() string { return "summary report in Markdown" }

func (Markdown) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	return Payload{
		Name:        fileName(c, ".report.md"),
		ContentType: "text/markdown; charset=utf-8",
		Data:        []byte(report(c, cfg)),
	}, nil
}

// HTML renders the Markdown report to a standalone HTML page.
type HTML struct{}

func (HTML) Name() string        { return "html" }
func (HTML) Description() string { return "summary report rendered to HTML" }

func (HTML) Export(c *model.Container, cfg Config) (Payload, error) {
	if err := prepare(c, cfg); err != nil {
		return Payload{}, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table))

	var body bytes.Buffer
	if err := md.Convert([]byte(report(c, cfg)), &body); err != nil {
		return Payload{}, fmt.Errorf("export: render report: %w", err)
	}

	var page bytes.Buffer

	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&page, "<title>%s</title>\n", html.EscapeString(title(c, cfg)))
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")

	return Payload{
		Name:        fileName(c, ".report.html"),
		ContentType: "text/html; charset=utf-8",
		Data:        page.Bytes(),
	}, nil
}

func title(c *model.Container, cfg Config) string {
	if cfg.Title != "" {
		return cfg.Title
	}

	return "Spectra report: " + c.Source()
}

func report(c *model.Container, cfg Config) string {
	var b strings.Builder

	curves, peaks := cfg.curves(c), cfg.peaks(c)
	digits := cfg.Precision

	fmt.Fprintf(&b, "# %s\n\n", cell(title(c, cfg)))
	fmt.Fprintf(&b, "- Source: `%s`\n", c.Source())
	fmt.Fprintf(&b, "- Spectra: %s\n", humanize.Comma(int64(len(c.Spectra))))
	fmt.Fprintf(&b, "- Samples: %s\n", humanize.Comma(int64(samples(c))))
	fmt.Fprintf(&b, "- m/z range: %s\n", c.MZBounds())
	fmt.Fprintf(&b, "- Retention time range: %s\n", c.RTBounds())
	fmt.Fprintf(&b, "- Curves: %d, peaks: %d\n\n", len(curves), len(peaks))

	b.WriteString("## Curves\n\n")

	if len(curves) == 0 {
		b.WriteString("No curves.\n\n")
	} else {
		b.WriteString("| ID | Type | Points | X range | Max intensity |\n")
		b.WriteString("|---|---|---:|---|---:|\n")

		for _, cv := range curves {
			fmt.Fprintf(&b, "| %s | %s | %s | %s to %s | %s |\n",
				cell(cv.ID), cv.Type, humanize.Comma(int64(cv.Len())),
				humanize.FtoaWithDigits(cv.XMin, digits), humanize.FtoaWithDigits(cv.XMax, digits),
				humanize.FtoaWithDigits(cv.YMax, digits))
		}

		b.WriteString("\n")
	}

	b.WriteString("## Peaks\n\n")

	if len(peaks) == 0 {
		b.WriteString("No peaks.\n")
		return b.String()
	}

	total := 0.0
	for _, p := range peaks {
		if p.Area > 0 {
			total += p.Area
		}
	}

	b.WriteString("| # | Curve | Center | Amplitude | FWHM | Area | Area % | R² | Quality | Shape | Strategy |\n")
	b.WriteString("|---:|---|---:|---:|---:|---:|---:|---:|---:|---|---|\n")

	for i, p := range peaks {
		share := 0.0
		if total > 0 && p.Area > 0 {
			share = 100 * p.Area / total
		}

		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			i+1, cell(p.CurveID),
			humanize.FtoaWithDigits(p.Center, digits),
			humanize.FtoaWithDigits(p.Amplitude, digits),
			humanize.FtoaWithDigits(p.FWHM, digits),
			humanize.FtoaWithDigits(p.Area, digits),
			humanize.FtoaWithDigits(share, 2),
			humanize.FtoaWithDigits(p.RSquared, 4),
			humanize.FtoaWithDigits(p.Quality, 4),
			cell(p.Shape), cell(meta(p, model.MetaStrategy)))
	}

	return b.String()
}

func samples(c *model.Container) int {
	n := 0
	for i := range c.Spectra {
		n += len(c.Spectra[i].MZ)
	}

	return n
}

// cell escapes characters that would break a Markdown table row.
func cell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
