package projector

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dyike/TradeLens/internal/models"
)

const (
	LossFill     = "rgba(239, 68, 68, 0.6)"
	LossBorder   = "rgba(239, 68, 68, 1)"
	ProfitFill   = "rgba(16, 185, 129, 0.6)"
	ProfitBorder = "rgba(16, 185, 129, 1)"
)

// ProfitByInstrument sums profit per ticker, in order of first appearance.
// Trades without a symbol or a profit do not contribute; when none
// contribute the chart is absent.
func ProfitByInstrument(result *models.AnalysisResult) *models.ChartSeries {
	trades, ok := tradeData(result)
	if !ok {
		return nil
	}

	var order []string
	totals := make(map[string]decimal.Decimal)
	for _, t := range trades {
		symbol := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if symbol == "" || t.Profit == nil {
			continue
		}
		sum, seen := totals[symbol]
		if !seen {
			order = append(order, symbol)
		}
		totals[symbol] = sum.Add(*t.Profit)
	}
	if len(order) == 0 {
		return nil
	}

	values := make([]float64, len(order))
	fill := make([]string, len(order))
	border := make([]string, len(order))
	for i, symbol := range order {
		total := totals[symbol]
		values[i] = total.InexactFloat64()
		if total.IsNegative() {
			fill[i], border[i] = LossFill, LossBorder
		} else {
			fill[i], border[i] = ProfitFill, ProfitBorder
		}
	}

	zero := 0.0
	return &models.ChartSeries{
		Title:  "Profit by Instrument",
		Kind:   models.ChartBar,
		Labels: order,
		Datasets: []models.Dataset{{
			Label:  "Profit",
			Values: values,
			Style: models.StyleHints{
				Fill:     fill,
				Border:   border,
				BaseLine: &zero,
			},
		}},
	}
}
