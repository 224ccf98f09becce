package projector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/TradeLens/internal/models"
)

func resultWith(trades []models.TradeRecord, clusters map[string]map[string]float64) *models.AnalysisResult {
	return &models.AnalysisResult{
		TradePatterns: &models.TradePatterns{
			TradeData: trades,
			Clusters:  clusters,
		},
	}
}

func TestDurationsThreeTrades(t *testing.T) {
	result := resultWith([]models.TradeRecord{
		{TradeID: "1", Duration: models.Float(5)},
		{TradeID: "2", Duration: models.Float(12)},
		{TradeID: "3", Duration: models.Float(3)},
	}, nil)

	series := Durations(result)
	require.NotNil(t, series)
	assert.Equal(t, []string{"Trade 1", "Trade 2", "Trade 3"}, series.Labels)
	require.Len(t, series.Datasets, 1)
	assert.Equal(t, []float64{5, 12, 3}, series.Datasets[0].Values)
	assert.Equal(t, models.ChartLine, series.Kind)
}

func TestDurationsMissingDurationDefaultsToZero(t *testing.T) {
	series := Durations(resultWith([]models.TradeRecord{
		{TradeID: "7"},
		{TradeID: "8", Duration: models.Float(2.5)},
	}, nil))
	require.NotNil(t, series)
	assert.Equal(t, []float64{0, 2.5}, series.Datasets[0].Values)
}

func TestDurationsEmptyTradeDataIsDefined(t *testing.T) {
	series := Durations(resultWith([]models.TradeRecord{}, nil))
	require.NotNil(t, series)
	assert.Empty(t, series.Labels)
	require.Len(t, series.Datasets, 1)
	assert.Empty(t, series.Datasets[0].Values)
}

func TestDurationsAbsentInputs(t *testing.T) {
	assert.Nil(t, Durations(nil))
	assert.Nil(t, Durations(&models.AnalysisResult{}))
	assert.Nil(t, Durations(resultWith(nil, nil)))
}

func TestProfitByInstrumentAggregates(t *testing.T) {
	result := resultWith([]models.TradeRecord{
		{TradeID: "1", Symbol: "AAPL", Profit: models.Decimal("100.10")},
		{TradeID: "2", Symbol: "tsla", Profit: models.Decimal("-40")},
		{TradeID: "3", Symbol: "AAPL", Profit: models.Decimal("-0.10")},
		{TradeID: "4", Symbol: "MSFT"},
		{TradeID: "5", Profit: models.Decimal("999")},
		{TradeID: "6", Symbol: "NVDA", Profit: models.Decimal("0")},
	}, nil)

	series := ProfitByInstrument(result)
	require.NotNil(t, series)
	assert.Equal(t, []string{"AAPL", "TSLA", "NVDA"}, series.Labels)

	ds := series.Datasets[0]
	assert.Equal(t, []float64{100, -40, 0}, ds.Values)
	assert.Equal(t, []string{ProfitFill, LossFill, ProfitFill}, ds.Style.Fill)
	assert.Equal(t, []string{ProfitBorder, LossBorder, ProfitBorder}, ds.Style.Border)
	require.NotNil(t, ds.Style.BaseLine)
	assert.Equal(t, 0.0, *ds.Style.BaseLine)
}

func TestProfitByInstrumentAbsentWithoutProfits(t *testing.T) {
	assert.Nil(t, ProfitByInstrument(nil))
	assert.Nil(t, ProfitByInstrument(resultWith([]models.TradeRecord{}, nil)))
	assert.Nil(t, ProfitByInstrument(resultWith([]models.TradeRecord{
		{TradeID: "1", Symbol: "AAPL"},
	}, nil)))
}

func TestClusterPiesRelabel(t *testing.T) {
	result := resultWith(nil, map[string]map[string]float64{
		"trade_count":   {"1": 30, "0": 12},
		"mean_duration": {"0": 41.5, "1": 3.2},
	})

	pies := ClusterPies(result, ClusterLabeler{Fallback: DefaultClusterLabels()})
	require.Len(t, pies, 2)

	assert.Equal(t, "Mean Duration by Cluster", pies[0].Title)
	assert.Equal(t, []string{"Long Term", "Short Term"}, pies[0].Labels)
	assert.Equal(t, []float64{41.5, 3.2}, pies[0].Datasets[0].Values)

	assert.Equal(t, "Trade Count by Cluster", pies[1].Title)
	assert.Equal(t, []float64{12, 30}, pies[1].Datasets[0].Values)
	assert.Equal(t, models.ChartPie, pies[1].Kind)
}

func TestClusterLabelsFromServiceWin(t *testing.T) {
	result := resultWith(nil, map[string]map[string]float64{
		"count": {"0": 1, "1": 2, "2": 3},
	})
	result.TradePatterns.ClusterLabels = map[string]string{"0": "Swing", "1": "Scalp"}

	pies := ClusterPies(result, ClusterLabeler{Fallback: DefaultClusterLabels()})
	require.Len(t, pies, 1)
	assert.Equal(t, []string{"Swing", "Scalp", "Cluster 2"}, pies[0].Labels)
}

func TestClusterPiesAbsent(t *testing.T) {
	labels := ClusterLabeler{}
	assert.Nil(t, ClusterPies(nil, labels))
	assert.Nil(t, ClusterPies(resultWith([]models.TradeRecord{}, nil), labels))
	assert.Nil(t, ClusterPies(resultWith(nil, map[string]map[string]float64{"count": {}}), labels))
}

func TestSortClusterKeys(t *testing.T) {
	keys := []string{"10", "b", "2", "a", "0"}
	SortClusterKeys(keys)
	assert.Equal(t, []string{"0", "2", "10", "a", "b"}, keys)
}

func TestStatTitle(t *testing.T) {
	cases := map[string]string{
		"mean_duration": "Mean Duration",
		"tradeCount":    "Trade Count",
		"profit":        "Profit",
		"avg-profit.x":  "Avg Profit X",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, StatTitle(in), in)
	}
}

func TestProjectBundles(t *testing.T) {
	p := Project(nil, ClusterLabeler{})
	assert.Nil(t, p.Durations)
	assert.Nil(t, p.Profit)
	assert.Nil(t, p.Clusters)
}
