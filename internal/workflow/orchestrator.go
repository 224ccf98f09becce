package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
)

var errEmptyResult = errors.New("service returned no analysis result")

// Analyzer runs the analysis on the file tied to the current session.
type Analyzer interface {
	Analyze(ctx context.Context) (*models.AnalysisResult, error)
}

// Orchestrator runs one analysis at a time and drives the progress
// simulator alongside the request.
type Orchestrator struct {
	analyzer Analyzer
	sim      *Simulator
	log      *logger.Logger

	mu        sync.RWMutex
	analyzing bool
	result    *models.AnalysisResult
	err       *AnalysisError
	settled   chan struct{}
	onResult  func(*models.AnalysisResult)
}

func NewOrchestrator(analyzer Analyzer, sim *Simulator, log *logger.Logger) *Orchestrator {
	settled := make(chan struct{})
	close(settled)
	return &Orchestrator{
		analyzer: analyzer,
		sim:      sim,
		log:      log.Component("analysis"),
		settled:  settled,
	}
}

// OnResult registers fn to receive every result change, including the nil
// that clears the previous result when a run starts.
func (o *Orchestrator) OnResult(fn func(*models.AnalysisResult)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onResult = fn
}

// Analyze clears the previous outcome, starts the simulator and issues the
// request. The call returns once the request settles; the analyzing flag
// stays set through the grace delay and Settled reports when it clears.
// A second call while a run (or its grace delay) is active is rejected.
func (o *Orchestrator) Analyze(ctx context.Context) (*models.AnalysisResult, error) {
	o.mu.Lock()
	if o.analyzing {
		o.mu.Unlock()
		return nil, ErrAnalysisInFlight
	}
	o.analyzing = true
	o.result = nil
	o.err = nil
	settled := make(chan struct{})
	o.settled = settled
	onResult := o.onResult
	o.mu.Unlock()

	if onResult != nil {
		onResult(nil)
	}
	if err := o.sim.Start(); err != nil {
		o.log.Warn().Err(err).Msg("progress simulator not idle")
	}

	o.log.Info().Msg("analysis started")
	result, err := o.analyzer.Analyze(ctx)
	if err == nil && result == nil {
		err = errEmptyResult
	}

	var aerr *AnalysisError
	o.mu.Lock()
	if err != nil {
		aerr = newAnalysisError(err)
		o.err = aerr
	} else {
		o.result = result
	}
	o.mu.Unlock()

	if aerr != nil {
		o.log.Warn().Err(err).Str("message", aerr.Message).Msg("analysis failed")
	} else {
		o.log.Info().Int("trades", tradeCount(result)).Msg("analysis finished")
		if onResult != nil {
			onResult(result)
		}
	}

	idle := o.sim.Complete()
	go func() {
		<-idle
		o.mu.Lock()
		o.analyzing = false
		o.mu.Unlock()
		close(settled)
	}()

	if aerr != nil {
		return nil, aerr
	}
	return result, nil
}

// Outcome returns the flag, result and error together.
func (o *Orchestrator) Outcome() (analyzing bool, result *models.AnalysisResult, err *AnalysisError) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.analyzing, o.result, o.err
}

func (o *Orchestrator) Analyzing() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.analyzing
}

func (o *Orchestrator) Result() *models.AnalysisResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.result
}

func (o *Orchestrator) Err() *AnalysisError {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.err
}

// Settled returns a channel closed when the latest run has fully finished,
// grace delay included.
func (o *Orchestrator) Settled() <-chan struct{} {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.settled
}

// Close stops the simulator so no ticker outlives the workflow.
func (o *Orchestrator) Close() {
	o.sim.Stop()
}

func tradeCount(result *models.AnalysisResult) int {
	if result == nil || result.TradePatterns == nil {
		return 0
	}
	return len(result.TradePatterns.TradeData)
}
