package cli

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/presenter"
	"github.com/dyike/TradeLens/internal/report"
)

// UI styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1).
			MarginBottom(1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6"))

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 1).
			Width(80)

	adviceStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(1, 2).
			Width(80)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	strongStyle = lipgloss.NewStyle().Bold(true)

	progressFillStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#10B981"))

	lossStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444"))

	gainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

const (
	progressWidth = 40
	barWidth      = 36
)

// DisplayWelcomeBanner shows the welcome banner
func DisplayWelcomeBanner() {
	fmt.Println(titleStyle.Render("📈 TradeLens - Trade Pattern Analysis"))
	fmt.Println(mutedStyle.Render("Upload your trade history and get pattern insights from the analysis service."))
	fmt.Println()
}

// RenderProgress renders one progress line: bar, percent and caption.
func RenderProgress(state models.ProgressState) string {
	pct := state.Percent
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := pct * progressWidth / 100
	bar := progressFillStyle.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("░", progressWidth-filled))
	return fmt.Sprintf("%s %3d%%  %s", bar, pct, state.Caption)
}

// RenderUploadStatus describes the last upload.
func RenderUploadStatus(status models.UploadStatus) string {
	switch status.Kind {
	case models.UploadSuccess:
		return gainStyle.Render("✅ " + status.Message)
	case models.UploadFailure:
		return errorStyle.Render("❌ Upload failed: " + status.Message)
	default:
		return mutedStyle.Render("No upload yet")
	}
}

// RenderTradeTable renders the visible trade rows.
func RenderTradeTable(p *presenter.Presenter) string {
	rows := p.Rows()
	if len(rows) == 0 {
		return mutedStyle.Render("No trades in this result.")
	}

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		data = append(data, []string{r.ID, r.Symbol, r.Actions, r.BuyDate, r.SellDate, r.Duration, r.Profit})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Trade", "Symbol", "Actions", "Buy Date", "Sell Date", "Days", "Profit").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			if col == 6 && row >= 0 && row < len(rows) && rows[row].Profit != presenter.Placeholder {
				if rows[row].Loss {
					return cellStyle.Inherit(lossStyle)
				}
				return cellStyle.Inherit(gainStyle)
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	total := p.TotalRows()
	switch {
	case p.HasMoreRows() && !p.Expanded():
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Showing %d of %d trades", len(rows), total)))
	case p.HasMoreRows():
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Showing all %d trades", total)))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderBars draws a horizontal bar per label. Bars below the base line are
// drawn in the loss colour.
func RenderBars(view presenter.ChartView) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(view.Title))
	b.WriteString("\n")
	if view.NoData {
		b.WriteString(mutedStyle.Render("  No data available"))
		return b.String()
	}

	ds := view.Series.Datasets[0]
	maxAbs := 0.0
	labelWidth := 0
	for i, v := range ds.Values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
		if i < len(view.Series.Labels) {
			labelWidth = max(labelWidth, lipgloss.Width(view.Series.Labels[i]))
		}
	}
	for i, v := range ds.Values {
		label := ""
		if i < len(view.Series.Labels) {
			label = view.Series.Labels[i]
		}
		n := 0
		if maxAbs > 0 {
			n = int(math.Round(math.Abs(v) / maxAbs * barWidth))
		}
		style := gainStyle
		if ds.Style.BaseLine != nil && v < *ds.Style.BaseLine {
			style = lossStyle
		}
		fmt.Fprintf(&b, "  %-*s %s %s\n", labelWidth, label, style.Render(strings.Repeat("▇", n)), formatValue(v))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderPies lists the slices of every cluster pie with their share.
func RenderPies(views []presenter.ChartView) string {
	var b strings.Builder
	for i, view := range views {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionStyle.Render(view.Title))
		b.WriteString("\n")
		if view.NoData {
			b.WriteString(mutedStyle.Render("  No data available"))
			b.WriteString("\n")
			continue
		}
		ds := view.Series.Datasets[0]
		total := 0.0
		for _, v := range ds.Values {
			if v > 0 {
				total += v
			}
		}
		for j, v := range ds.Values {
			share := 0.0
			if total > 0 && v > 0 {
				share = v / total * 100
			}
			fmt.Fprintf(&b, "  %-12s %8s  %5.1f%%\n", view.Series.Labels[j], formatValue(v), share)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderAdvice renders advice spans. Only bold is ever applied.
func RenderAdvice(spans []presenter.Span) string {
	if len(spans) == 0 {
		return mutedStyle.Render("No advice for this result.")
	}
	var b strings.Builder
	for _, s := range spans {
		if s.Strong {
			b.WriteString(strongStyle.Render(s.Text))
			continue
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

// RenderHistory renders saved runs as a table.
func RenderHistory(runs []report.Summary, currency string) string {
	if len(runs) == 0 {
		return mutedStyle.Render("No saved results yet.")
	}
	data := make([][]string, 0, len(runs))
	for _, r := range runs {
		data = append(data, []string{
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04"),
			strconv.Itoa(r.Trades),
			strings.Join(r.Symbols, ", "),
			presenter.FormatMoney(r.NetProfit, currency),
		})
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("Run", "Saved", "Trades", "Instruments", "Net Profit").
		Rows(data...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		}).
		Render()
}

// DisplayResult prints the full presentation of the current result.
func DisplayResult(p *presenter.Presenter) {
	fmt.Println()
	fmt.Println(titleStyle.Render("🎉 Analysis complete"))

	fmt.Println(sectionStyle.Render("Trades"))
	fmt.Println(RenderTradeTable(p))
	fmt.Println()

	fmt.Println(panelStyle.Render(RenderBars(p.DurationChart())))
	fmt.Println(panelStyle.Render(RenderBars(p.ProfitChart())))
	fmt.Println(panelStyle.Render(RenderPies(p.ClusterCharts())))
	fmt.Println()

	fmt.Println(sectionStyle.Render("💡 Personalized Advice"))
	fmt.Println(adviceStyle.Render(RenderAdvice(p.Advice())))
}

// DisplayError shows an error message
func DisplayError(err error) {
	fmt.Println(errorStyle.Render(fmt.Sprintf("❌ Error: %s", err.Error())))
}

// DisplayInfo shows an info message
func DisplayInfo(message string) {
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")).Render("ℹ️  " + message))
}

// DisplaySuccess shows a success message
func DisplaySuccess(message string) {
	fmt.Println(gainStyle.Render("✅ " + message))
}

func formatValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e12 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
