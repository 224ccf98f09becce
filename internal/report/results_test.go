package report

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/TradeLens/internal/models"
)

func sample() *models.AnalysisResult {
	return &models.AnalysisResult{
		TradePatterns: &models.TradePatterns{
			TradeData: []models.TradeRecord{
				{TradeID: models.IntID(1), Symbol: "aapl", Actions: "Buy -> Sell", BuyDate: "2024-01-01", SellDate: "2024-01-06", Duration: models.Float(5), Profit: models.Decimal("100.10")},
				{TradeID: models.IntID(2), Symbol: "TSLA", Actions: "Buy -> Sell", BuyDate: "2024-02-01", SellDate: "2024-02-13", Duration: models.Float(12), Profit: models.Decimal("-40.10")},
				{TradeID: models.IntID(3), Symbol: "AAPL", Actions: "Buy -> Sell", BuyDate: "2024-03-01", SellDate: "2024-03-04", Duration: models.Float(3)},
			},
			Clusters: map[string]map[string]float64{"count": {"1": 2, "0": 1}},
		},
		PersonalizedAdvice: "Cut **losers** <b>fast</b>.",
	}
}

func TestSaveWritesRunDirectory(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC))
	m := NewManager(t.TempDir(), WithClock(clock))

	s, err := m.Save(sample())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s.ID, "20240501_093000_"))
	assert.Equal(t, 3, s.Trades)
	assert.Equal(t, []string{"AAPL", "TSLA"}, s.Symbols)
	assert.Equal(t, "60", s.NetProfit.String())

	for _, name := range []string{resultFile, reportFile, tradesFile} {
		_, err := os.Stat(filepath.Join(s.Dir, name))
		assert.NoError(t, err, name)
	}

	loaded, err := m.Load(s.ID)
	require.NoError(t, err)
	require.Len(t, loaded.TradePatterns.TradeData, 3)
	assert.Equal(t, "100.1", loaded.TradePatterns.TradeData[0].Profit.String())
	assert.Nil(t, loaded.TradePatterns.TradeData[2].Profit)

	f, err := os.Open(filepath.Join(s.Dir, tradesFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"3", "AAPL", "Buy -> Sell", "2024-03-01", "2024-03-04", "3", ""}, rows[3])
}

func TestSaveRejectsNil(t *testing.T) {
	_, err := NewManager(t.TempDir()).Save(nil)
	assert.Error(t, err)
}

func TestSaveRemovesIncompleteRun(t *testing.T) {
	orig := writeFile
	t.Cleanup(func() { writeFile = orig })
	writeFile = func(name string, data []byte, perm os.FileMode) error {
		if filepath.Base(name) == reportFile {
			return errors.New("no space left on device")
		}
		return orig(name, data, perm)
	}

	dir := t.TempDir()
	m := NewManager(dir)
	_, err := m.Save(sample())
	require.ErrorContains(t, err, "failed to write report")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	runs, err := m.List(false)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestListNewestFirst(t *testing.T) {
	dir := t.TempDir()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(dir, WithClock(clock))

	first, err := m.Save(sample())
	require.NoError(t, err)
	second, err := m.Save(sample())
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(first.Dir, resultFile), old, old))

	runs, err := m.List(false)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, first.ID, runs[1].ID)

	runs, err = m.List(true)
	require.NoError(t, err)
	assert.Equal(t, first.ID, runs[0].ID)
}

func TestListMissingDirectory(t *testing.T) {
	runs, err := NewManager(filepath.Join(t.TempDir(), "none")).List(false)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadRejectsTraversal(t *testing.T) {
	m := NewManager(t.TempDir())
	for _, id := range []string{"", "..", "../x", "a/b"} {
		_, err := m.Load(id)
		assert.ErrorIs(t, err, ErrNotFound, id)
	}
}

func TestDeleteAndCleanup(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := m.Save(sample())
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	require.NoError(t, m.Delete(ids[0]))
	assert.ErrorIs(t, m.Delete(ids[0]), ErrNotFound)

	removed, err := m.Cleanup(0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	runs, err := m.List(false)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestMarkdown(t *testing.T) {
	s := summarize("run1", "/tmp/run1", time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC), sample())
	md := Markdown(sample(), s, "USD")

	assert.Contains(t, md, "**Trades:** 3")
	assert.Contains(t, md, "**Net Profit:** $60.00")
	assert.Contains(t, md, "| 1 | aapl | Buy -&gt; Sell | 2024-01-01 | 2024-01-06 | 5 | $100.10 |")
	assert.Contains(t, md, "- AAPL: 100.10")
	assert.Contains(t, md, "- TSLA: -40.10")
	assert.Contains(t, md, "### Count")
	assert.Contains(t, md, "- Long Term: 1\n- Short Term: 2")
	assert.Contains(t, md, "Cut **losers** &lt;b&gt;fast&lt;/b&gt;.")
	assert.NotContains(t, md, "<b>")
}
