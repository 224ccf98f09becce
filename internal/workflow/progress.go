package workflow

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/dyike/TradeLens/config"
	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

var ErrSimulatorBusy = errors.New("progress simulator already running")

// Band is the start of a progress range and what to show inside it.
type Band struct {
	Stage   models.Stage
	From    int
	Caption string
}

// ProgressSettings configures the simulator.
type ProgressSettings struct {
	Tick      time.Duration
	Increment int
	Ceiling   int
	Grace     time.Duration
	Bands     []Band
}

func DefaultProgressSettings() ProgressSettings {
	return SettingsFromConfig(config.DefaultProgress())
}

// SettingsFromConfig converts the persisted progress configuration.
func SettingsFromConfig(c config.ProgressConfig) ProgressSettings {
	s := ProgressSettings{
		Tick:      c.Tick(),
		Increment: c.Increment,
		Ceiling:   c.Ceiling,
		Grace:     c.Grace(),
	}
	for _, b := range c.Bands {
		s.Bands = append(s.Bands, Band{Stage: models.Stage(b.Stage), From: b.From, Caption: b.Caption})
	}
	return s
}

func (s ProgressSettings) normalized() ProgressSettings {
	def := config.DefaultProgress()
	if s.Tick == 0 && s.Increment == 0 && s.Ceiling == 0 && s.Grace == 0 && len(s.Bands) == 0 {
		return SettingsFromConfig(def)
	}
	if s.Tick <= 0 {
		s.Tick = def.Tick()
	}
	if s.Increment <= 0 {
		s.Increment = def.Increment
	}
	if s.Ceiling <= 0 || s.Ceiling >= 100 {
		s.Ceiling = def.Ceiling
	}
	if s.Grace < 0 {
		s.Grace = 0
	}
	if len(s.Bands) == 0 {
		s.Bands = SettingsFromConfig(def).Bands
	}
	bands := append([]Band(nil), s.Bands...)
	sort.SliceStable(bands, func(i, j int) bool { return bands[i].From < bands[j].From })
	s.Bands = bands
	return s
}

// band returns the last band starting at or below percent.
func (s ProgressSettings) band(percent int) Band {
	b := s.Bands[0]
	for _, cand := range s.Bands {
		if cand.From > percent {
			break
		}
		b = cand
	}
	return b
}

type simState int

const (
	simIdle simState = iota
	simRunning
	simCompleting
)

func (s simState) String() string {
	switch s {
	case simRunning:
		return "running"
	case simCompleting:
		return "completing"
	default:
		return "idle"
	}
}

// Simulator produces a synthetic progress estimate while an analysis
// request is outstanding. It moves idle -> running -> completing -> idle.
// While running the percent grows by Increment every Tick and never passes
// Ceiling. Complete jumps to 100, holds for Grace, then resets to 0.
type Simulator struct {
	clock    clockwork.Clock
	settings ProgressSettings
	log      *logger.Logger

	mu        sync.Mutex
	state     simState
	percent   int
	gen       uint64
	stop      chan struct{}
	loopDone  chan struct{}
	grace     clockwork.Timer
	idle      chan struct{}
	observers []func(models.ProgressState)
}

func NewSimulator(clock clockwork.Clock, settings ProgressSettings, log *logger.Logger) *Simulator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	idle := make(chan struct{})
	close(idle)
	return &Simulator{
		clock:    clock,
		settings: settings.normalized(),
		log:      log.Component("progress"),
		idle:     idle,
	}
}

// Observe registers fn to be called on every progress change. Calls are
// made outside the simulator lock, one at a time per run.
func (s *Simulator) Observe(fn func(models.ProgressState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Start begins a run. It only succeeds from idle.
func (s *Simulator) Start() error {
	s.mu.Lock()
	if s.state != simIdle {
		s.mu.Unlock()
		return ErrSimulatorBusy
	}
	s.gen++
	gen := s.gen
	s.state = simRunning
	s.percent = 0
	s.stop = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.idle = make(chan struct{})
	ticker := s.clock.NewTicker(s.settings.Tick)
	stop, done := s.stop, s.loopDone
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug().Uint64("run", gen).Msg("progress started")
	s.notify(snap)
	go s.run(gen, ticker, stop, done)
	return nil
}

func (s *Simulator) run(gen uint64, ticker clockwork.Ticker, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			s.mu.Lock()
			if s.gen != gen || s.state != simRunning {
				s.mu.Unlock()
				return
			}
			next := s.percent + s.settings.Increment
			if next > s.settings.Ceiling {
				next = s.settings.Ceiling
			}
			changed := next != s.percent
			s.percent = next
			snap := s.snapshotLocked()
			s.mu.Unlock()
			if changed {
				s.notify(snap)
			}
		}
	}
}

// Complete stops the ticking, drives the percent to 100 and schedules the
// reset after the grace delay. The returned channel is closed once the
// simulator is idle again.
func (s *Simulator) Complete() <-chan struct{} {
	s.mu.Lock()
	idle := s.idle
	if s.state != simRunning {
		s.mu.Unlock()
		return idle
	}
	gen := s.gen
	s.state = simCompleting
	stop, done := s.stop, s.loopDone
	s.stop = nil
	s.mu.Unlock()

	close(stop)
	<-done

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return idle
	}
	s.percent = 100
	snap := s.snapshotLocked()
	grace := s.settings.Grace
	if grace > 0 {
		s.grace = s.clock.AfterFunc(grace, func() { s.finish(gen) })
	}
	s.mu.Unlock()

	s.notify(snap)
	if grace <= 0 {
		s.finish(gen)
	}
	return idle
}

func (s *Simulator) finish(gen uint64) {
	s.mu.Lock()
	if s.gen != gen || s.state != simCompleting {
		s.mu.Unlock()
		return
	}
	s.state = simIdle
	s.percent = 0
	s.grace = nil
	idle := s.idle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.log.Debug().Uint64("run", gen).Msg("progress reset")
	s.notify(snap)
	close(idle)
}

// Stop abandons the current run from any state and resets to idle. It is
// safe to call when already idle.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.state == simIdle {
		s.mu.Unlock()
		return
	}
	s.gen++
	stop, done := s.stop, s.loopDone
	s.stop = nil
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.state = simIdle
	s.percent = 0
	idle := s.idle
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if done != nil {
		<-done
	}
	s.notify(snap)
	close(idle)
}

// Idle returns a channel closed when the simulator is idle.
func (s *Simulator) Idle() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle
}

func (s *Simulator) Snapshot() models.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Simulator) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.String()
}

func (s *Simulator) snapshotLocked() models.ProgressState {
	b := s.settings.band(s.percent)
	return models.ProgressState{Percent: s.percent, Stage: b.Stage, Caption: b.Caption}
}

func (s *Simulator) notify(state models.ProgressState) {
	s.mu.Lock()
	observers := append(([]func(models.ProgressState))(nil), s.observers...)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(state)
	}
}
