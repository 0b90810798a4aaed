package export

import (
	"bytes"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"
	"time"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/itmstools/itms_console/pkg/model"
	"github.com/itmstools/itms_console/pkg/stats"
)

// Chart geometry shared by both renderers
const (
	chartWidth  = 640
	chartHeight = 300
	chartMargin = 24
	labelWidth  = 110
	barHeight   = 40
	barGap      = 22
	titleHeight = 46
)

// ChartOptions configures a status chart
type ChartOptions struct {
	Path    string
	Format  string // "svg" or "png"; inferred from Path when empty
	Title   string
	Summary stats.Summary
	Now     time.Time
}

// statusColors mirror the dashboard badge palette
var statusColors = map[model.Status]string{
	model.StatusPending:  "#F57C00",
	model.StatusApproved: "#388E3C",
	model.StatusRejected: "#D32F2F",
}

// SaveStatusChart renders a per-status bar chart to SVG or PNG
func SaveStatusChart(opts ChartOptions) error {
	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		format = strings.ToLower(strings.TrimPrefix(filepath.Ext(opts.Path), "."))
	}
	if opts.Title == "" {
		opts.Title = "Reviews by status"
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var data []byte
	var err error
	switch format {
	case "svg":
		data = renderSVG(opts)
	case "png":
		data, err = renderPNG(opts)
	default:
		return fmt.Errorf("unsupported chart format %q (use svg or png)", format)
	}
	if err != nil {
		return err
	}
	return writeAtomic(opts.Path, data)
}

type bar struct {
	label string
	count int
	width int
	color string
}

func layoutBars(s stats.Summary) []bar {
	counts := s.StatusCounts()
	peak := 0
	for _, c := range counts {
		if c.Count > peak {
			peak = c.Count
		}
	}
	span := chartWidth - 2*chartMargin - labelWidth - 50
	bars := make([]bar, 0, len(counts))
	for _, c := range counts {
		w := 0
		if peak > 0 {
			w = c.Count * span / peak
		}
		if c.Count > 0 && w < 2 {
			w = 2
		}
		bars = append(bars, bar{label: string(c.Status), count: c.Count, width: w, color: statusColors[c.Status]})
	}
	return bars
}

func subtitle(opts ChartOptions) string {
	return fmt.Sprintf("%d reviews, %d unassigned, generated %s",
		opts.Summary.Total, opts.Summary.Unassigned, opts.Now.UTC().Format("2006-01-02 15:04 MST"))
}

func renderSVG(opts ChartOptions) []byte {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(chartWidth, chartHeight)
	canvas.Title(opts.Title)
	canvas.Rect(0, 0, chartWidth, chartHeight, "fill:#ffffff")
	canvas.Text(chartMargin, chartMargin+6, opts.Title, "font-family:sans-serif;font-size:18px;font-weight:bold;fill:#222222")
	canvas.Text(chartMargin, chartMargin+26, subtitle(opts), "font-family:sans-serif;font-size:11px;fill:#666666")

	y := chartMargin + titleHeight
	for _, b := range layoutBars(opts.Summary) {
		canvas.Text(chartMargin, y+barHeight/2+5, b.label, "font-family:sans-serif;font-size:13px;fill:#333333")
		x := chartMargin + labelWidth
		canvas.Rect(x, y, b.width, barHeight, "fill:"+b.color)
		canvas.Text(x+b.width+8, y+barHeight/2+5, fmt.Sprintf("%d", b.count), "font-family:sans-serif;font-size:13px;fill:#333333")
		y += barHeight + barGap
	}
	canvas.End()
	return buf.Bytes()
}

func renderPNG(opts ChartOptions) ([]byte, error) {
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetHexColor("#222222")
	dc.DrawString(opts.Title, chartMargin, chartMargin+6)
	dc.SetHexColor("#666666")
	dc.DrawString(subtitle(opts), chartMargin, chartMargin+26)

	y := chartMargin + titleHeight
	for _, b := range layoutBars(opts.Summary) {
		dc.SetHexColor("#333333")
		dc.DrawString(b.label, chartMargin, float64(y+barHeight/2+5))
		x := chartMargin + labelWidth
		dc.SetHexColor(b.color)
		dc.DrawRectangle(float64(x), float64(y), float64(b.width), barHeight)
		dc.Fill()
		dc.SetHexColor("#333333")
		dc.DrawString(fmt.Sprintf("%d", b.count), float64(x+b.width+8), float64(y+barHeight/2+5))
		y += barHeight + barGap
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
