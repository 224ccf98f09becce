package models

// ChartKind tells a renderer how to draw a series.
type ChartKind string

const (
	ChartLine ChartKind = "line"
	ChartBar  ChartKind = "bar"
	ChartPie  ChartKind = "pie"
)

// ChartSeries is a chart-ready projection of an analysis result. It is
// derived and never persisted.
type ChartSeries struct {
	Title    string    `json:"title"`
	Kind     ChartKind `json:"kind"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one named sequence of values aligned with ChartSeries.Labels.
type Dataset struct {
	Label  string     `json:"label"`
	Values []float64  `json:"values"`
	Style  StyleHints `json:"style"`
}

// StyleHints carries per-point colours and an optional horizontal
// reference line. Fill and Border are either empty, one colour for the
// whole dataset, or one colour per value.
type StyleHints struct {
	Fill     []string `json:"fill,omitempty"`
	Border   []string `json:"border,omitempty"`
	BaseLine *float64 `json:"baseLine,omitempty"`
}

// Empty reports whether the series has no labels.
func (s *ChartSeries) Empty() bool {
	return s == nil || len(s.Labels) == 0
}
