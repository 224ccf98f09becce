package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/projector"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func sample() *models.AnalysisResult {
	return &models.AnalysisResult{TradePatterns: &models.TradePatterns{
		TradeData: []models.TradeRecord{
			{TradeID: models.IntID(1), Symbol: "AAPL", Duration: models.Float(5), Profit: models.Decimal("120.5")},
			{TradeID: models.IntID(2), Symbol: "TSLA", Duration: models.Float(12), Profit: models.Decimal("-40")},
			{TradeID: models.IntID(3), Symbol: "AAPL", Duration: models.Float(3), Profit: models.Decimal("10")},
		},
		Clusters: map[string]map[string]float64{
			"mean_duration": {"0": 20, "1": 4},
			"count":         {"0": 1, "1": 2},
		},
	}}
}

func TestRenderLine(t *testing.T) {
	data, err := RenderLine(projector.Durations(sample()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func TestRenderLineFlatSeries(t *testing.T) {
	series := &models.ChartSeries{
		Title:    "Trade Duration",
		Labels:   []string{"Trade 1", "Trade 2"},
		Datasets: []models.Dataset{{Label: "Duration (days)", Values: []float64{4, 4}}},
	}
	_, err := RenderLine(series)
	require.NoError(t, err)
}

func TestRenderLineNeedsTwoPoints(t *testing.T) {
	series := &models.ChartSeries{
		Labels:   []string{"Trade 1"},
		Datasets: []models.Dataset{{Values: []float64{4}}},
	}
	_, err := RenderLine(series)
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = RenderLine(&models.ChartSeries{})
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestRenderBars(t *testing.T) {
	data, err := RenderBars(projector.ProfitByInstrument(sample()))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, pngMagic))
}

func trades(profits ...string) *models.AnalysisResult {
	symbols := []string{"AAPL", "MSFT", "TSLA", "NVDA"}
	var data []models.TradeRecord
	for i, p := range profits {
		data = append(data, models.TradeRecord{
			TradeID:  models.IntID(i + 1),
			Symbol:   symbols[i%len(symbols)],
			Duration: models.Float(float64(i + 1)),
			Profit:   models.Decimal(p),
		})
	}
	return &models.AnalysisResult{TradePatterns: &models.TradePatterns{TradeData: data}}
}

func TestRenderBarsFlatAndNegative(t *testing.T) {
	tests := map[string][]string{
		"single instrument": {"-40"},
		"equal totals":      {"40", "40"},
		"all negative":      {"-10", "-40"},
		"all positive":      {"10", "40"},
	}
	for name, profits := range tests {
		t.Run(name, func(t *testing.T) {
			data, err := RenderBars(projector.ProfitByInstrument(trades(profits...)))
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(data, pngMagic))
		})
	}
}

func TestBarRangeIncludesBaseLine(t *testing.T) {
	min, max := barRange(-40, -10, 0)
	assert.Less(t, min, -40.0)
	assert.Greater(t, max, 0.0)

	min, max = barRange(10, 40, 0)
	assert.Less(t, min, 0.0)
	assert.Greater(t, max, 40.0)

	min, max = barRange(40, 40, 40)
	assert.Equal(t, 39.0, min)
	assert.Equal(t, 41.0, max)
}

func TestRenderAllSingleInstrument(t *testing.T) {
	result := trades("-40")
	result.TradePatterns.Clusters = map[string]map[string]float64{"count": {"0": 1, "1": 2}}
	p := projector.Project(result, projector.ClusterLabeler{Fallback: projector.DefaultClusterLabels()})

	paths, err := RenderAll(p, t.TempDir())
	require.NoError(t, err)

	var names []string
	for _, path := range paths {
		names = append(names, filepath.Base(path))
	}
	assert.Equal(t, []string{"profit_by_instrument.png", "cluster_count.png"}, names)
}

func TestRenderPie(t *testing.T) {
	pies := projector.ClusterPies(sample(), projector.ClusterLabeler{Fallback: projector.DefaultClusterLabels()})
	require.Len(t, pies, 2)
	for _, p := range pies {
		data, err := RenderPie(p)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, pngMagic))
	}

	zero := &models.ChartSeries{
		Kind:     models.ChartPie,
		Labels:   []string{"Long Term"},
		Datasets: []models.Dataset{{Values: []float64{0}}},
	}
	_, err := RenderPie(zero)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestRenderAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "charts")
	p := projector.Project(sample(), projector.ClusterLabeler{Fallback: projector.DefaultClusterLabels()})

	paths, err := RenderAll(p, dir)
	require.NoError(t, err)

	var names []string
	for _, path := range paths {
		names = append(names, filepath.Base(path))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
	assert.Equal(t, []string{
		"durations.png",
		"profit_by_instrument.png",
		"cluster_count.png",
		"cluster_mean_duration.png",
	}, names)
}

func TestRenderAllSkipsAbsentCharts(t *testing.T) {
	paths, err := RenderAll(projector.Projection{}, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestParseColor(t *testing.T) {
	assert.Equal(t, drawing.Color{R: 239, G: 68, B: 68, A: 153}, parseColor(projector.LossFill))
	assert.Equal(t, drawing.Color{R: 16, G: 185, B: 129, A: 255}, parseColor(projector.ProfitBorder))
	assert.Equal(t, drawing.ColorFromHex("3B82F6"), parseColor("#3B82F6"))
	assert.Equal(t, drawing.Color{}, parseColor("nonsense"))
}
