// Package report saves analysis results to disk and lists saved runs.
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

const (
	resultFile = "result.json"
	reportFile = "report.md"
	tradesFile = "trades.csv"
)

var ErrNotFound = errors.New("saved result not found")

// Manager stores one directory per saved run under dir.
type Manager struct {
	dir      string
	currency string
	clock    clockwork.Clock
	log      *logger.Logger
}

type Option func(*Manager)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Manager) { m.clock = clock }
}

func WithCurrency(code string) Option {
	return func(m *Manager) { m.currency = code }
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.log = log.Component("report") }
}

func NewManager(dir string, opts ...Option) *Manager {
	m := &Manager{
		dir:      dir,
		currency: "USD",
		clock:    clockwork.NewRealClock(),
		log:      logger.NewSilentLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Summary describes a saved run.
type Summary struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Trades    int             `json:"trades"`
	Symbols   []string        `json:"symbols"`
	NetProfit decimal.Decimal `json:"net_profit"`
	Dir       string          `json:"dir"`
}

func summarize(id, dir string, created time.Time, result *models.AnalysisResult) Summary {
	s := Summary{ID: id, Dir: dir, CreatedAt: created}
	if result == nil || result.TradePatterns == nil {
		return s
	}
	seen := map[string]bool{}
	for _, t := range result.TradePatterns.TradeData {
		s.Trades++
		if t.Profit != nil {
			s.NetProfit = s.NetProfit.Add(*t.Profit)
		}
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym != "" && !seen[sym] {
			seen[sym] = true
			s.Symbols = append(s.Symbols, sym)
		}
	}
	return s
}

// Save writes result.json, report.md and trades.csv into a new run
// directory. A run that fails part way is removed again.
func (m *Manager) Save(result *models.AnalysisResult) (*Summary, error) {
	if result == nil {
		return nil, errors.New("no result to save")
	}
	now := m.clock.Now()
	id := fmt.Sprintf("%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
	dir := filepath.Join(m.dir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create results directory: %w", err)
	}

	summary := summarize(id, dir, now, result)
	if err := m.writeRun(dir, result, summary); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			m.log.Warn().Err(rmErr).Str("dir", dir).Msg("failed to remove incomplete run")
		}
		return nil, err
	}

	m.log.Info().Str("id", id).Int("trades", summary.Trades).Msg("result saved")
	return &summary, nil
}

// writeFile is swapped in tests to simulate a full disk.
var writeFile = os.WriteFile

func (m *Manager) writeRun(dir string, result *models.AnalysisResult, summary Summary) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := writeFile(filepath.Join(dir, resultFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	if err := writeFile(filepath.Join(dir, reportFile), []byte(Markdown(result, summary, m.currency)), 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return writeTradesCSV(filepath.Join(dir, tradesFile), result)
}

// List returns saved runs sorted by creation time, newest first unless
// oldestFirst is set.
func (m *Manager) List(oldestFirst bool) ([]Summary, error) {
	if _, err := os.Stat(m.dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var out []Summary
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != resultFile {
			return nil
		}
		dir := filepath.Dir(path)
		info, err := d.Info()
		if err != nil {
			return nil
		}
		result, err := readResult(path)
		if err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable result")
			return nil
		}
		out = append(out, summarize(filepath.Base(dir), dir, info.ModTime(), result))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan results directory: %w", err)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			if oldestFirst {
				return out[i].ID < out[j].ID
			}
			return out[i].ID > out[j].ID
		}
		if oldestFirst {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Load reads a saved result back.
func (m *Manager) Load(id string) (*models.AnalysisResult, error) {
	dir, err := m.runDir(id)
	if err != nil {
		return nil, err
	}
	return readResult(filepath.Join(dir, resultFile))
}

// Delete removes a saved run.
func (m *Manager) Delete(id string) error {
	dir, err := m.runDir(id)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

// Cleanup removes runs older than maxAge and keeps at most maxCount of the
// newest. Zero disables either rule. It returns how many were removed.
func (m *Manager) Cleanup(maxAge time.Duration, maxCount int) (int, error) {
	runs, err := m.List(false)
	if err != nil {
		return 0, err
	}
	now := m.clock.Now()
	removed := 0
	for i, r := range runs {
		tooOld := maxAge > 0 && now.Sub(r.CreatedAt) > maxAge
		tooMany := maxCount > 0 && i >= maxCount
		if !tooOld && !tooMany {
			continue
		}
		if err := os.RemoveAll(r.Dir); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", r.ID, err)
		}
		removed++
	}
	return removed, nil
}

func (m *Manager) runDir(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	dir := filepath.Join(m.dir, id)
	if _, err := os.Stat(filepath.Join(dir, resultFile)); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return dir, nil
}

func readResult(path string) (*models.AnalysisResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result: %w", err)
	}
	var result models.AnalysisResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse result: %w", err)
	}
	return &result, nil
}

func writeTradesCSV(path string, result *models.AnalysisResult) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"trade_id", "symbol", "actions", "buy_date", "sell_date", "duration", "profit"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	if result.TradePatterns != nil {
		for _, t := range result.TradePatterns.TradeData {
			duration, profit := "", ""
			if t.Duration != nil {
				duration = decimal.NewFromFloat(*t.Duration).String()
			}
			if t.Profit != nil {
				profit = t.Profit.String()
			}
			row := []string{t.TradeID.String(), t.Symbol, string(t.Actions), t.BuyDate, t.SellDate, duration, profit}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV row: %w", err)
			}
		}
	}
	w.Flush()
	return w.Error()
}
