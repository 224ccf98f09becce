package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StageBand maps the start of a progress range to its stage and caption.
type StageBand struct {
	Stage   string `json:"stage"`
	From    int    `json:"from"`
	Caption string `json:"caption"`
}

type ProgressConfig struct {
	TickMillis  int         `json:"tick_ms"`
	Increment   int         `json:"increment"`
	Ceiling     int         `json:"ceiling"`
	GraceMillis int         `json:"grace_ms"`
	Bands       []StageBand `json:"bands"`
}

func (p ProgressConfig) Tick() time.Duration {
	return time.Duration(p.TickMillis) * time.Millisecond
}

func (p ProgressConfig) Grace() time.Duration {
	return time.Duration(p.GraceMillis) * time.Millisecond
}

// Endpoints are the service paths, relative to the base URL.
type Endpoints struct {
	Login   string `json:"login"`
	Upload  string `json:"upload"`
	Analyze string `json:"analyze"`
}

type Config struct {
	ProjectDir string `json:"project_dir"`
	ResultsDir string `json:"results_dir"`
	ChartsDir  string `json:"charts_dir"`

	// Analysis service
	BaseURL           string    `json:"base_url"`
	Endpoints         Endpoints `json:"endpoints"`
	LoginTimeoutSec   int       `json:"login_timeout_sec"`
	UploadTimeoutSec  int       `json:"upload_timeout_sec"`
	AnalyzeTimeoutSec int       `json:"analyze_timeout_sec"`
	RequestsPerSecond float64   `json:"requests_per_second"`

	AllowedExtensions []string `json:"allowed_extensions"`

	Progress ProgressConfig `json:"progress"`

	// Presentation
	PreviewRows   int               `json:"preview_rows"`
	Currency      string            `json:"currency"`
	ClusterLabels map[string]string `json:"cluster_labels"`

	LogLevel string `json:"log_level"`
	Debug    bool   `json:"debug"`
}

func DefaultProgress() ProgressConfig {
	return ProgressConfig{
		TickMillis:  500,
		Increment:   5,
		Ceiling:     95,
		GraceMillis: 1000,
		Bands: []StageBand{
			{Stage: "starting", From: 0, Caption: "Starting analysis..."},
			{Stage: "fetching", From: 20, Caption: "Fetching your trade history..."},
			{Stage: "crunching", From: 40, Caption: "Crunching the numbers..."},
			{Stage: "generating", From: 60, Caption: "Generating insights..."},
			{Stage: "finalizing", From: 80, Caption: "Finalizing results..."},
		},
	}
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

// DefaultConfigWithRoot builds the defaults rooted at dir without
// consulting the environment.
func DefaultConfigWithRoot(dir string) *Config {
	return &Config{
		ProjectDir: dir,
		ResultsDir: filepath.Join(dir, "results"),
		ChartsDir:  filepath.Join(dir, "results", "charts"),

		BaseURL:           "http://localhost:8000",
		Endpoints: Endpoints{
			Login:   "/auth/login",
			Upload:  "/upload_trades",
			Analyze: "/analyze",
		},
		LoginTimeoutSec:   30,
		UploadTimeoutSec:  120,
		AnalyzeTimeoutSec: 300,
		RequestsPerSecond: 5,

		AllowedExtensions: []string{".csv", ".xlsx", ".xls"},

		Progress: DefaultProgress(),

		PreviewRows: 5,
		Currency:    "USD",
		ClusterLabels: map[string]string{
			"0": "Long Term",
			"1": "Short Term",
		},

		LogLevel: "warn",
	}
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("TRADELENS_PROJECT_DIR"); val != "" {
		c.ProjectDir = val
	}
	if val := os.Getenv("TRADELENS_RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}
	if val := os.Getenv("TRADELENS_CHARTS_DIR"); val != "" {
		c.ChartsDir = val
	}
	if val := os.Getenv("TRADELENS_BASE_URL"); val != "" {
		c.BaseURL = val
	}

	if val := os.Getenv("TRADELENS_ANALYZE_TIMEOUT"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.AnalyzeTimeoutSec = v
		}
	}
	if val := os.Getenv("TRADELENS_REQUESTS_PER_SECOND"); val != "" {
		if v, err := strconv.ParseFloat(val, 64); err == nil {
			c.RequestsPerSecond = v
		}
	}
	if val := os.Getenv("TRADELENS_PREVIEW_ROWS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.PreviewRows = v
		}
	}
	if val := os.Getenv("TRADELENS_CURRENCY"); val != "" {
		c.Currency = strings.ToUpper(val)
	}
	if val := os.Getenv("TRADELENS_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("TRADELENS_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}
}

// ApplyEnv re-applies TRADELENS_* overrides on top of c.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()
	c.loadFromEnv()
}

func (c *Config) Timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("base_url is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	for _, ep := range [][2]string{
		{"login", c.Endpoints.Login},
		{"upload", c.Endpoints.Upload},
		{"analyze", c.Endpoints.Analyze},
	} {
		if !strings.HasPrefix(ep[1], "/") {
			return fmt.Errorf("endpoints.%s must start with /, got %q", ep[0], ep[1])
		}
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second must not be negative")
	}
	if c.PreviewRows < 1 {
		return fmt.Errorf("preview_rows must be at least 1")
	}
	if err := c.Progress.Validate(); err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	return nil
}

func (p ProgressConfig) Validate() error {
	if p.TickMillis <= 0 {
		return fmt.Errorf("tick_ms must be positive")
	}
	if p.Increment <= 0 {
		return fmt.Errorf("increment must be positive")
	}
	if p.Ceiling <= 0 || p.Ceiling >= 100 {
		return fmt.Errorf("ceiling must be within (0, 100), got %d", p.Ceiling)
	}
	if p.GraceMillis < 0 {
		return fmt.Errorf("grace_ms must not be negative")
	}
	if len(p.Bands) != 5 {
		return fmt.Errorf("exactly 5 stage bands are required, got %d", len(p.Bands))
	}
	if p.Bands[0].From != 0 {
		return fmt.Errorf("first stage band must start at 0")
	}
	for i := 1; i < len(p.Bands); i++ {
		if p.Bands[i].From <= p.Bands[i-1].From || p.Bands[i].From >= 100 {
			return fmt.Errorf("stage band %d start %d is out of order", i, p.Bands[i].From)
		}
	}
	return nil
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.ResultsDir, c.ChartsDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}

// Clone returns a copy of c that shares no slices or maps with it.
func (c Config) Clone() Config {
	out := c
	out.AllowedExtensions = append([]string(nil), c.AllowedExtensions...)
	out.Progress.Bands = append([]StageBand(nil), c.Progress.Bands...)
	if c.ClusterLabels != nil {
		out.ClusterLabels = make(map[string]string, len(c.ClusterLabels))
		for k, v := range c.ClusterLabels {
			out.ClusterLabels[k] = v
		}
	}
	return out
}
