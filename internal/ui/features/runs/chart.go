package runs

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/leapstack-labs/lineagebench/pkg/core"
)

// Series is one line of a chart.
type Series struct {
	Name   string
	Values []float64
}

// ChartData is everything needed to draw one line chart. Every series has
// one value per label.
type ChartData struct {
	ID     string
	Title  string
	Unit   string
	Labels []string
	Series []Series
}

const (
	chartWidth  = 720
	chartHeight = 260
	chartPad    = 48
)

var palette = []string{"#2563eb", "#dc2626", "#16a34a", "#d97706", "#7c3aed", "#0891b2", "#db2777", "#4b5563"}

// DurationChart plots pipeline and lineage time per simulated day.
func DurationChart(run *core.Run) ChartData {
	d := ChartData{ID: "chart-duration", Title: "Time per day", Unit: "ms"}
	pipeline := Series{Name: "pipeline"}
	lineage := Series{Name: "lineage"}
	for _, day := range run.Timings {
		d.Labels = append(d.Labels, day.Date)
		pipeline.Values = append(pipeline.Values, float64(day.DurationMS))
		lineage.Values = append(lineage.Values, float64(day.LineageMS))
	}
	d.Series = []Series{pipeline, lineage}
	return d
}

// RowsChart plots the row count of every table per simulated day. Tables
// appear in the order they were first reported; a table missing from a day
// counts as zero.
func RowsChart(run *core.Run) ChartData {
	d := ChartData{ID: "chart-rows", Title: "Rows per table", Unit: "rows"}

	index := make(map[string]int)
	for i, day := range run.Timings {
		d.Labels = append(d.Labels, day.Date)
		for _, ts := range day.TableStats {
			idx, ok := index[ts.Table]
			if !ok {
				idx = len(d.Series)
				index[ts.Table] = idx
				d.Series = append(d.Series, Series{Name: ts.Table, Values: make([]float64, len(run.Timings))})
			}
			d.Series[idx].Values[i] = float64(ts.TotalRows)
		}
	}
	return d
}

func (d ChartData) maxValue() float64 {
	var m float64
	for _, s := range d.Series {
		for _, v := range s.Values {
			m = max(m, v)
		}
	}
	return m
}

// point maps the i-th value of a series into SVG coordinates.
func (d ChartData) point(i int, v, maxV float64) (x, y float64) {
	plotW := float64(chartWidth - 2*chartPad)
	plotH := float64(chartHeight - 2*chartPad)

	x = chartPad
	if n := len(d.Labels); n > 1 {
		x += float64(i) * plotW / float64(n-1)
	} else {
		x += plotW / 2
	}

	y = chartHeight - chartPad
	if maxV > 0 {
		y -= v / maxV * plotH
	}
	return x, y
}

func (d ChartData) points(s Series, maxV float64) string {
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		x, y := d.point(i, v, maxV)
		parts[i] = num(x) + "," + num(y)
	}
	return strings.Join(parts, " ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Chart renders d as an inline SVG line chart with a legend.
func Chart(d ChartData) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, renderChart(d))
		return err
	})
}

func renderChart(d ChartData) string {
	var b strings.Builder
	esc := templ.EscapeString[string]

	fmt.Fprintf(&b, `<figure class="chart" id="%s">`, esc(d.ID))
	fmt.Fprintf(&b, `<figcaption>%s <small>(%s)</small></figcaption>`, esc(d.Title), esc(d.Unit))

	if len(d.Labels) == 0 {
		b.WriteString(`<p class="empty">No days recorded yet.</p></figure>`)
		return b.String()
	}

	maxV := d.maxValue()
	fmt.Fprintf(&b, `<svg viewBox="0 0 %d %d" role="img" aria-label="%s">`, chartWidth, chartHeight, esc(d.Title))

	// axes
	bottom := chartHeight - chartPad
	fmt.Fprintf(&b, `<line class="axis" x1="%d" y1="%d" x2="%d" y2="%d"/>`, chartPad, chartPad, chartPad, bottom)
	fmt.Fprintf(&b, `<line class="axis" x1="%d" y1="%d" x2="%d" y2="%d"/>`, chartPad, bottom, chartWidth-chartPad, bottom)
	fmt.Fprintf(&b, `<text class="tick" x="%d" y="%d" text-anchor="end">%s</text>`, chartPad-6, chartPad+4, esc(num(maxV)))
	fmt.Fprintf(&b, `<text class="tick" x="%d" y="%d" text-anchor="end">0</text>`, chartPad-6, bottom+4)
	fmt.Fprintf(&b, `<text class="tick" x="%d" y="%d" text-anchor="start">%s</text>`, chartPad, bottom+18, esc(d.Labels[0]))
	if len(d.Labels) > 1 {
		fmt.Fprintf(&b, `<text class="tick" x="%d" y="%d" text-anchor="end">%s</text>`,
			chartWidth-chartPad, bottom+18, esc(d.Labels[len(d.Labels)-1]))
	}

	for i, s := range d.Series {
		color := palette[i%len(palette)]
		fmt.Fprintf(&b, `<polyline class="series" data-series="%s" fill="none" stroke="%s" stroke-width="2" points="%s"/>`,
			esc(s.Name), color, d.points(s, maxV))
		for j, v := range s.Values {
			x, y := d.point(j, v, maxV)
			fmt.Fprintf(&b, `<circle cx="%s" cy="%s" r="2.5" fill="%s"><title>%s %s: %s</title></circle>`,
				num(x), num(y), color, esc(s.Name), esc(d.Labels[j]), esc(strconv.FormatFloat(v, 'f', -1, 64)))
		}
	}
	b.WriteString(`</svg><ul class="legend">`)
	for i, s := range d.Series {
		fmt.Fprintf(&b, `<li><span class="swatch" style="background:%s"></span>%s</li>`, palette[i%len(palette)], esc(s.Name))
	}
	b.WriteString(`</ul></figure>`)
	return b.String()
}
