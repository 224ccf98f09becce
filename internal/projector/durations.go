package projector

import (
	"github.com/dyike/TradeLens/internal/models"
)

const durationColor = "#3B82F6"

// Durations is one point per trade: x is "Trade {id}", y the holding
// duration, 0 when the service omitted it. An empty trade list yields an
// empty but non-nil series.
func Durations(result *models.AnalysisResult) *models.ChartSeries {
	trades, ok := tradeData(result)
	if !ok {
		return nil
	}

	labels := make([]string, 0, len(trades))
	values := make([]float64, 0, len(trades))
	for _, t := range trades {
		labels = append(labels, t.Label())
		values = append(values, t.DurationOrZero())
	}

	return &models.ChartSeries{
		Title:  "Trade Duration",
		Kind:   models.ChartLine,
		Labels: labels,
		Datasets: []models.Dataset{{
			Label:  "Duration (days)",
			Values: values,
			Style: models.StyleHints{
				Border: []string{durationColor},
			},
		}},
	}
}
