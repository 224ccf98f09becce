// Package projector turns an analysis result into chart-ready series.
//
// Every function is pure and total: a missing input yields nil (the chart
// is absent), never placeholder data and never a panic.
package projector

import (
	"github.com/dyike/TradeLens/internal/models"
)

// Projection bundles every chart derived from one result.
type Projection struct {
	Durations *models.ChartSeries
	Profit    *models.ChartSeries
	Clusters  []*models.ChartSeries
}

// Project computes all projections of result.
func Project(result *models.AnalysisResult, labels ClusterLabeler) Projection {
	return Projection{
		Durations: Durations(result),
		Profit:    ProfitByInstrument(result),
		Clusters:  ClusterPies(result, labels),
	}
}

func tradeData(result *models.AnalysisResult) ([]models.TradeRecord, bool) {
	if result == nil || result.TradePatterns == nil || result.TradePatterns.TradeData == nil {
		return nil, false
	}
	return result.TradePatterns.TradeData, true
}
