package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"

	"github.com/dyike/TradeLens/internal/logger"
)

const configFileName = "config.json"

// Section identifies a group of related settings.
type Section uint8

const (
	SectionService Section = 1 << iota
	SectionFiles
	SectionProgress
	SectionPresentation
	SectionLogging
)

func (s Section) Has(other Section) bool { return s&other != 0 }

// Change is delivered to subscribers after the stored config changes.
type Change struct {
	Old      Config
	New      Config
	Sections Section
}

func diffSections(a, b Config) Section {
	var s Section
	if a.BaseURL != b.BaseURL || a.Endpoints != b.Endpoints || a.LoginTimeoutSec != b.LoginTimeoutSec ||
		a.UploadTimeoutSec != b.UploadTimeoutSec || a.AnalyzeTimeoutSec != b.AnalyzeTimeoutSec ||
		a.RequestsPerSecond != b.RequestsPerSecond {
		s |= SectionService
	}
	if a.ProjectDir != b.ProjectDir || a.ResultsDir != b.ResultsDir || a.ChartsDir != b.ChartsDir ||
		!reflect.DeepEqual(a.AllowedExtensions, b.AllowedExtensions) {
		s |= SectionFiles
	}
	if !reflect.DeepEqual(a.Progress, b.Progress) {
		s |= SectionProgress
	}
	if a.PreviewRows != b.PreviewRows || a.Currency != b.Currency ||
		!reflect.DeepEqual(a.ClusterLabels, b.ClusterLabels) {
		s |= SectionPresentation
	}
	if a.LogLevel != b.LogLevel || a.Debug != b.Debug {
		s |= SectionLogging
	}
	return s
}

// Manager keeps the JSON config file and the in-memory copy in sync.
type Manager struct {
	path     string
	clock    clockwork.Clock
	debounce time.Duration
	log      *logger.Logger

	mu       sync.RWMutex
	cfg      Config
	written  []byte
	subs     map[int]func(Change)
	nextSub  int
	watching bool
}

type managerOptions struct {
	path     string
	initial  *Config
	clock    clockwork.Clock
	debounce time.Duration
	log      *logger.Logger
}

type ManagerOption func(*managerOptions)

func WithConfigDir(dir string) ManagerOption {
	return func(o *managerOptions) {
		if dir != "" {
			o.path = filepath.Join(dir, configFileName)
		}
	}
}

func WithConfigPath(path string) ManagerOption {
	return func(o *managerOptions) {
		if path != "" {
			o.path = path
		}
	}
}

// WithDebounce sets how long the watcher waits for writes to settle.
func WithDebounce(d time.Duration) ManagerOption {
	return func(o *managerOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithInitialConfig seeds a config file that does not exist yet.
func WithInitialConfig(cfg *Config) ManagerOption {
	return func(o *managerOptions) { o.initial = cfg }
}

func WithClock(clock clockwork.Clock) ManagerOption {
	return func(o *managerOptions) { o.clock = clock }
}

func WithLogger(log *logger.Logger) ManagerOption {
	return func(o *managerOptions) { o.log = log }
}

func NewManager(opts ...ManagerOption) (*Manager, error) {
	o := managerOptions{debounce: 300 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewSilentLogger()
	}
	if o.clock == nil {
		o.clock = clockwork.NewRealClock()
	}
	if o.path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			if dir, err = os.Getwd(); err != nil {
				return nil, err
			}
		}
		o.path = filepath.Join(dir, "TradeLens", configFileName)
	}
	if err := os.MkdirAll(filepath.Dir(o.path), 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	m := &Manager{
		path:     o.path,
		clock:    o.clock,
		debounce: o.debounce,
		log:      o.log.Component("config"),
		subs:     map[int]func(Change){},
	}

	cfg, err := m.readFile()
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		if o.initial != nil {
			cfg = o.initial.Clone()
		} else {
			cfg = *DefaultConfigWithRoot(filepath.Dir(o.path))
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if err := m.persist(cfg); err != nil {
			return nil, fmt.Errorf("write initial config: %w", err)
		}
	default:
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m.cfg = cfg
	return m, nil
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Subscribe registers fn for every applied change. The returned func
// removes it again.
func (m *Manager) Subscribe(fn func(Change)) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Update validates cfg, writes it to disk and notifies subscribers.
func (m *Manager) Update(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if reflect.DeepEqual(m.Get(), cfg) {
		return nil
	}
	if err := m.persist(cfg); err != nil {
		return err
	}
	m.apply(cfg.Clone())
	return nil
}

func (m *Manager) UpdateFromJSON(jsonStr string) error {
	cfg, err := m.decode([]byte(jsonStr))
	if err != nil {
		return err
	}
	return m.Update(cfg)
}

// openKeys hold free-form maps where Set may add new entries.
var openKeys = map[string]bool{"cluster_labels": true}

// Set assigns one value addressed by a dotted JSON path such as
// "progress.tick_ms" or "cluster_labels.2". The value is read as JSON and
// falls back to a plain string.
func (m *Manager) Set(key, value string) error {
	tree, err := toTree(m.Get())
	if err != nil {
		return err
	}
	parts := strings.Split(key, ".")
	node := tree
	for i, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config key %q", strings.Join(parts[:i+1], "."))
		}
		node = child
	}
	leaf := parts[len(parts)-1]
	parent := strings.Join(parts[:len(parts)-1], ".")
	if _, ok := node[leaf]; !ok && !openKeys[parent] {
		return fmt.Errorf("unknown config key %q", key)
	}

	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	node[leaf] = parsed

	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := m.UpdateFromJSON(string(data)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Keys lists every dotted path accepted by Set.
func (m *Manager) Keys() []string {
	tree, err := toTree(m.Get())
	if err != nil {
		return nil
	}
	var keys []string
	var walk func(prefix string, node map[string]any)
	walk = func(prefix string, node map[string]any) {
		for k, v := range node {
			path := k
			if prefix != "" {
				path = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok && !openKeys[path] {
				walk(path, child)
				continue
			}
			keys = append(keys, path)
		}
	}
	walk("", tree)
	sort.Strings(keys)
	return keys
}

func toTree(cfg Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	tree := map[string]any{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return tree, nil
}

// Watch reloads the file after external edits until ctx is done.
// Invalid edits are logged and ignored.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return nil
	}
	m.watching = true
	m.mu.Unlock()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.setWatching(false)
		return err
	}
	// The directory is watched so editors that replace the file are seen.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		watcher.Close()
		m.setWatching(false)
		return fmt.Errorf("watch config dir: %w", err)
	}
	go m.watchLoop(ctx, watcher)
	return nil
}

func (m *Manager) setWatching(v bool) {
	m.mu.Lock()
	m.watching = v
	m.mu.Unlock()
}

func (m *Manager) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer m.setWatching(false)
	defer watcher.Close()

	var pending clockwork.Timer
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	target := filepath.Clean(m.path)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target ||
				evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = m.clock.AfterFunc(m.debounce, m.reload)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (m *Manager) reload() {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, os.ErrNotExist) {
		// Deleted; restore the current settings.
		if err := m.persist(m.Get()); err != nil {
			m.log.Error().Err(err).Msg("config recreate failed")
		}
		return
	}
	if err != nil {
		m.log.Error().Err(err).Msg("config reload failed")
		return
	}

	m.mu.RLock()
	own := bytes.Equal(data, m.written)
	m.mu.RUnlock()
	if own {
		return
	}

	cfg, err := m.decode(data)
	if err != nil {
		m.log.Warn().Err(err).Msg("config parse failed, keeping previous config")
		return
	}
	if err := cfg.Validate(); err != nil {
		m.log.Warn().Err(err).Msg("config validation failed, keeping previous config")
		return
	}
	m.log.Info().Str("path", m.path).Msg("config reloaded")
	m.apply(cfg)
}

func (m *Manager) apply(cfg Config) {
	m.mu.Lock()
	old := m.cfg
	sections := diffSections(old, cfg)
	if sections == 0 {
		m.mu.Unlock()
		return
	}
	m.cfg = cfg
	subs := make([]func(Change), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	change := Change{Old: old, New: cfg.Clone(), Sections: sections}
	for _, fn := range subs {
		fn(change)
	}
}

func (m *Manager) readFile() (Config, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return Config{}, err
	}
	return m.decode(data)
}

// decode layers data over the defaults so fields missing from older
// files keep their default values. A cluster_labels object replaces the
// default labels instead of merging into them.
func (m *Manager) decode(data []byte) (Config, error) {
	cfg := *DefaultConfigWithRoot(filepath.Dir(m.path))
	labels := cfg.ClusterLabels
	cfg.ClusterLabels = nil
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", m.path, err)
	}
	if cfg.ClusterLabels == nil {
		cfg.ClusterLabels = labels
	}
	return cfg, nil
}

func (m *Manager) persist(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')
	if err := writeAtomic(m.path, data); err != nil {
		return err
	}
	m.mu.Lock()
	m.written = data
	m.mu.Unlock()
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	name := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("write config: %w", err)
	}
	return os.Rename(name, path)
}
