// Package chart renders chart projections to PNG files.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/projector"
)

// ErrNotEnoughData is returned when a series cannot produce a chart.
var ErrNotEnoughData = errors.New("not enough data to render chart")

const (
	width  = 900
	height = 400
)

var lineColor = drawing.ColorFromHex("2563eb")

// RenderLine renders a line chart of the first dataset, one point per
// label. At least two points are needed.
func RenderLine(series *models.ChartSeries) ([]byte, error) {
	if series.Empty() || len(series.Datasets) == 0 {
		return nil, ErrNotEnoughData
	}
	ys := series.Datasets[0].Values
	if len(ys) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 points, got %d", ErrNotEnoughData, len(ys))
	}

	xs := make([]float64, len(ys))
	ticks := make([]chart.Tick, len(ys))
	for i := range ys {
		xs[i] = float64(i)
		label := ""
		if i < len(series.Labels) {
			label = series.Labels[i]
		}
		ticks[i] = chart.Tick{Value: float64(i), Label: label}
	}

	graph := chart.Chart{
		Title:  series.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{Ticks: thinTicks(ticks, 12)},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return strconv.FormatFloat(f, 'f', 1, 64)
				}
				return ""
			},
		},
		Series: []chart.Series{
			chart.ContinuousSeries{
				Name: series.Datasets[0].Label,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2.5,
					DotColor:    lineColor,
					DotWidth:    3,
				},
				XValues: xs,
				YValues: ys,
			},
		},
	}
	if lo, hi := bounds(ys); lo == hi {
		graph.YAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}
	graph.Elements = []chart.Renderable{chart.LegendLeft(&graph)}

	return render(graph.Render)
}

// RenderBars renders a bar chart with per-bar colours and a base line.
func RenderBars(series *models.ChartSeries) ([]byte, error) {
	if series.Empty() || len(series.Datasets) == 0 || len(series.Datasets[0].Values) == 0 {
		return nil, ErrNotEnoughData
	}
	ds := series.Datasets[0]
	lo, hi := bounds(ds.Values)
	base := 0.0
	if ds.Style.BaseLine != nil {
		base = *ds.Style.BaseLine
	}
	if lo == hi && lo == base {
		return nil, fmt.Errorf("%w: all bars are at the base line", ErrNotEnoughData)
	}

	bars := make([]chart.Value, len(ds.Values))
	for i, v := range ds.Values {
		label := ""
		if i < len(series.Labels) {
			label = series.Labels[i]
		}
		bars[i] = chart.Value{
			Value: v,
			Label: label,
			Style: chart.Style{
				FillColor:   colorAt(ds.Style.Fill, i),
				StrokeColor: colorAt(ds.Style.Border, i),
				StrokeWidth: 1,
			},
		}
	}

	graph := chart.BarChart{
		Title:  series.Title,
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		BarWidth:     barWidth(len(bars)),
		UseBaseValue: true,
		BaseValue:    base,
		Bars:         bars,
	}
	min, max := barRange(lo, hi, base)
	graph.YAxis.Range = &chart.ContinuousRange{Min: min, Max: max}
	return render(graph.Render)
}

// barRange spans the bars and the base line, padded so the line never
// sits on the canvas edge.
func barRange(lo, hi, base float64) (min, max float64) {
	min, max = math.Min(lo, base), math.Max(hi, base)
	pad := (max - min) * 0.05
	if pad == 0 {
		pad = 1
	}
	return min - pad, max + pad
}

// RenderPie renders a pie chart. Non-positive slices are left out.
func RenderPie(series *models.ChartSeries) ([]byte, error) {
	if series.Empty() || len(series.Datasets) == 0 {
		return nil, ErrNotEnoughData
	}
	ds := series.Datasets[0]
	values := make([]chart.Value, 0, len(ds.Values))
	for i, v := range ds.Values {
		if v <= 0 || math.IsNaN(v) {
			continue
		}
		label := ""
		if i < len(series.Labels) {
			label = series.Labels[i]
		}
		values = append(values, chart.Value{
			Value: v,
			Label: label,
			Style: chart.Style{FillColor: colorAt(ds.Style.Fill, i)},
		})
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: no positive slices", ErrNotEnoughData)
	}

	graph := chart.PieChart{
		Title:  series.Title,
		Width:  height,
		Height: height,
		Values: values,
	}
	return render(graph.Render)
}

// Render dispatches on the series kind.
func Render(series *models.ChartSeries) ([]byte, error) {
	if series == nil {
		return nil, ErrNotEnoughData
	}
	switch series.Kind {
	case models.ChartBar:
		return RenderBars(series)
	case models.ChartPie:
		return RenderPie(series)
	default:
		return RenderLine(series)
	}
}

// RenderAll writes every renderable chart of the projection into dir and
// returns the written paths. Charts without enough data are skipped; a
// chart that fails does not stop the others.
func RenderAll(p projector.Projection, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}

	type job struct {
		name   string
		series *models.ChartSeries
	}
	jobs := []job{
		{"durations.png", p.Durations},
		{"profit_by_instrument.png", p.Profit},
	}
	for _, s := range p.Clusters {
		jobs = append(jobs, job{"cluster_" + slug(s.Title) + ".png", s})
	}

	var written []string
	var errs []error
	for _, j := range jobs {
		if j.series.Empty() {
			continue
		}
		data, err := Render(j.series)
		if errors.Is(err, ErrNotEnoughData) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("render %s: %w", j.name, err))
			continue
		}
		path := filepath.Join(dir, j.name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
			continue
		}
		written = append(written, path)
	}
	return written, errors.Join(errs...)
}

func render(fn func(chart.RendererProvider, io.Writer) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func thinTicks(ticks []chart.Tick, max int) []chart.Tick {
	if len(ticks) <= max {
		return ticks
	}
	step := (len(ticks) + max - 1) / max
	out := make([]chart.Tick, 0, max+1)
	for i, t := range ticks {
		if i%step == 0 || i == len(ticks)-1 {
			out = append(out, t)
		}
	}
	return out
}

func barWidth(n int) int {
	w := (width - 100) / (n * 2)
	if w > 60 {
		return 60
	}
	if w < 4 {
		return 4
	}
	return w
}

func slug(title string) string {
	title = strings.TrimSuffix(title, " by Cluster")
	return strings.ToLower(strings.Join(strings.Fields(title), "_"))
}

// colorAt picks the colour for point i: one colour for all points or one
// per point. A zero colour lets go-chart use its default palette.
func colorAt(colors []string, i int) drawing.Color {
	switch {
	case len(colors) == 0:
		return drawing.Color{}
	case len(colors) == 1:
		return parseColor(colors[0])
	case i < len(colors):
		return parseColor(colors[i])
	default:
		return drawing.Color{}
	}
}

// parseColor reads "#rrggbb" and "rgba(r, g, b, a)".
func parseColor(s string) drawing.Color {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
	}
	inner := s
	for _, prefix := range []string{"rgba(", "rgb("} {
		if strings.HasPrefix(inner, prefix) {
			inner = strings.TrimSuffix(strings.TrimPrefix(inner, prefix), ")")
			break
		}
	}
	parts := strings.Split(inner, ",")
	if len(parts) < 3 {
		return drawing.Color{}
	}
	channel := func(p string) uint8 {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		if n > 255 {
			return 255
		}
		return uint8(n)
	}
	c := drawing.Color{R: channel(parts[0]), G: channel(parts[1]), B: channel(parts[2]), A: 255}
	if len(parts) == 4 {
		if a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64); err == nil {
			c.A = uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
		}
	}
	return c
}
