// Package presenter holds the display state for an analysis result: the
// collapsible trade table, the chart views and the parsed advice.
package presenter

import (
	"strconv"
	"strings"
	"sync"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/projector"
)

// Placeholder is shown for missing cells.
const Placeholder = "—"

const (
	DefaultPreviewRows = 5
	DefaultCurrency    = money.USD
)

// Options configures the presenter.
type Options struct {
	PreviewRows   int
	Currency      string
	ClusterLabels map[string]string
}

func (o Options) normalized() Options {
	if o.PreviewRows <= 0 {
		o.PreviewRows = DefaultPreviewRows
	}
	o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
	if o.Currency == "" || money.GetCurrency(o.Currency) == nil {
		o.Currency = DefaultCurrency
	}
	if o.ClusterLabels == nil {
		o.ClusterLabels = projector.DefaultClusterLabels()
	}
	return o
}

// Row is one formatted row of the trade table.
type Row struct {
	ID       string
	Symbol   string
	Actions  string
	BuyDate  string
	SellDate string
	Duration string
	Profit   string
	Loss     bool
}

// ChartView is a chart slot. NoData is set when the series is absent or
// empty and the slot should show a "no data" state.
type ChartView struct {
	Title  string
	Series *models.ChartSeries
	NoData bool
}

// Presenter is safe for concurrent use.
type Presenter struct {
	mu         sync.RWMutex
	opts       Options
	result     *models.AnalysisResult
	projection projector.Projection
	advice     []Span
	expanded   bool
}

func New(opts Options) *Presenter {
	return &Presenter{opts: opts.normalized()}
}

// SetResult replaces the presented result. A nil result clears the
// presenter. The table is collapsed on every change.
func (p *Presenter) SetResult(result *models.AnalysisResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = result
	p.expanded = false
	p.recompute()
}

// SetOptions applies new options and re-projects the current result.
func (p *Presenter) SetOptions(opts Options) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts.normalized()
	p.recompute()
}

func (p *Presenter) recompute() {
	if p.result == nil {
		p.projection = projector.Projection{}
		p.advice = nil
		return
	}
	p.projection = projector.Project(p.result, projector.ClusterLabeler{Fallback: p.opts.ClusterLabels})
	p.advice = ParseAdvice(p.result.PersonalizedAdvice)
}

// Result returns the presented result or nil.
func (p *Presenter) Result() *models.AnalysisResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.result
}

// Toggle flips between the preview and the full table.
func (p *Presenter) Toggle() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expanded = !p.expanded
	return p.expanded
}

// SetExpanded sets the table state. It is idempotent.
func (p *Presenter) SetExpanded(expanded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expanded = expanded
}

func (p *Presenter) Expanded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.expanded
}

// TotalRows is the number of trades in the result.
func (p *Presenter) TotalRows() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.trades())
}

// HasMoreRows reports whether the collapsed table hides rows.
func (p *Presenter) HasMoreRows() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.trades()) > p.opts.PreviewRows
}

// Rows returns the visible table rows: the first PreviewRows when
// collapsed, all of them when expanded.
func (p *Presenter) Rows() []Row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	trades := p.trades()
	if !p.expanded && len(trades) > p.opts.PreviewRows {
		trades = trades[:p.opts.PreviewRows]
	}
	rows := make([]Row, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, p.row(t))
	}
	return rows
}

func (p *Presenter) trades() []models.TradeRecord {
	if p.result == nil || p.result.TradePatterns == nil {
		return nil
	}
	return p.result.TradePatterns.TradeData
}

func (p *Presenter) row(t models.TradeRecord) Row {
	r := Row{
		ID:       orPlaceholder(t.TradeID.String()),
		Symbol:   orPlaceholder(t.Symbol),
		Actions:  orPlaceholder(string(t.Actions)),
		BuyDate:  orPlaceholder(t.BuyDate),
		SellDate: orPlaceholder(t.SellDate),
		Duration: Placeholder,
		Profit:   Placeholder,
	}
	if t.Duration != nil {
		r.Duration = strconv.FormatFloat(*t.Duration, 'f', -1, 64)
	}
	if t.Profit != nil {
		r.Profit = FormatMoney(*t.Profit, p.opts.Currency)
		r.Loss = t.Profit.IsNegative()
	}
	return r
}

// FormatMoney renders an amount in the currency's conventional form,
// rounded to the currency's minor unit.
func FormatMoney(amount decimal.Decimal, currency string) string {
	c := money.GetCurrency(currency)
	if c == nil {
		c = money.GetCurrency(DefaultCurrency)
	}
	minor := amount.Shift(int32(c.Fraction)).Round(0).IntPart()
	return money.New(minor, c.Code).Display()
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return Placeholder
	}
	return s
}

// DurationChart is the trade duration line chart slot.
func (p *Presenter) DurationChart() ChartView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return view("Trade Durations", p.projection.Durations)
}

// ProfitChart is the profit by instrument bar chart slot.
func (p *Presenter) ProfitChart() ChartView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return view("Profit by Instrument", p.projection.Profit)
}

// ClusterCharts returns one view per cluster statistic, or a single
// no-data view when there is nothing to show.
func (p *Presenter) ClusterCharts() []ChartView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.projection.Clusters) == 0 {
		return []ChartView{{Title: "Cluster Analysis", NoData: true}}
	}
	views := make([]ChartView, 0, len(p.projection.Clusters))
	for _, s := range p.projection.Clusters {
		views = append(views, view(s.Title, s))
	}
	return views
}

// Projection returns the current chart projection.
func (p *Presenter) Projection() projector.Projection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.projection
}

// Advice returns the parsed advice spans.
func (p *Presenter) Advice() []Span {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.advice
}

func view(title string, s *models.ChartSeries) ChartView {
	v := ChartView{Title: title, Series: s, NoData: s.Empty()}
	if s != nil && s.Title != "" {
		v.Title = s.Title
	}
	return v
}
