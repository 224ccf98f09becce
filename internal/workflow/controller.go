// Package workflow is the session-gated upload and analysis controller.
package workflow

import (
	"context"

	"github.com/jonboulle/clockwork"

	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/presenter"
)

// Service is the remote analysis service. Authentication establishes a
// session credential that Ingest and Analyze reuse implicitly.
type Service interface {
	Authenticator
	Ingester
	Analyzer
}

type Options struct {
	Clock             clockwork.Clock
	Progress          ProgressSettings
	AllowedExtensions []string
	Presenter         presenter.Options
	Logger            *logger.Logger
}

// Controller ties the session gate, upload pipeline, analysis orchestrator
// and result presenter together. Every operation except Login requires an
// authenticated session.
type Controller struct {
	gate      *Gate
	uploads   *Pipeline
	sim       *Simulator
	orch      *Orchestrator
	presenter *presenter.Presenter
	log       *logger.Logger
}

func NewController(svc Service, opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = logger.NewSilentLogger()
	}
	sim := NewSimulator(opts.Clock, opts.Progress, log)
	c := &Controller{
		gate:      NewGate(svc, log),
		uploads:   NewPipeline(svc, opts.AllowedExtensions, log),
		sim:       sim,
		orch:      NewOrchestrator(svc, sim, log),
		presenter: presenter.New(opts.Presenter),
		log:       log.Component("workflow"),
	}
	c.orch.OnResult(c.presenter.SetResult)
	return c
}

func (c *Controller) Login(ctx context.Context, username, password string) (models.Session, error) {
	return c.gate.Login(ctx, username, password)
}

func (c *Controller) Authenticated() bool {
	return c.gate.Authenticated()
}

func (c *Controller) SelectFile(file models.PendingFile) error {
	if !c.gate.Authenticated() {
		return ErrNotAuthenticated
	}
	return c.uploads.Select(file)
}

func (c *Controller) SelectPath(path string) error {
	if !c.gate.Authenticated() {
		return ErrNotAuthenticated
	}
	return c.uploads.SelectPath(path)
}

func (c *Controller) Upload(ctx context.Context) (models.UploadStatus, error) {
	if !c.gate.Authenticated() {
		return c.uploads.Status(), ErrNotAuthenticated
	}
	return c.uploads.Upload(ctx)
}

func (c *Controller) Analyze(ctx context.Context) (*models.AnalysisResult, error) {
	if !c.gate.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return c.orch.Analyze(ctx)
}

// State reports the workflow as a single tagged value.
func (c *Controller) State() State {
	if !c.gate.Authenticated() {
		s := LoggedOut{}
		if err := c.gate.LastError(); err != nil {
			s.Error = err.Message
		}
		return s
	}
	s := LoggedIn{Pending: c.uploads.Pending(), Upload: c.uploads.Status(), Activity: Idle{}}
	analyzing, result, err := c.orch.Outcome()
	switch {
	case err != nil:
		s.Activity = Failed{Err: err}
	case result != nil:
		s.Activity = ResultReady{Result: result}
	case analyzing:
		s.Activity = Analyzing{Progress: c.sim.Snapshot()}
	case c.uploads.InFlight():
		name := ""
		if s.Pending != nil {
			name = s.Pending.Name
		}
		s.Activity = Uploading{File: name}
	}
	return s
}

func (c *Controller) Progress() models.ProgressState {
	return c.sim.Snapshot()
}

func (c *Controller) ObserveProgress(fn func(models.ProgressState)) {
	c.sim.Observe(fn)
}

func (c *Controller) Presenter() *presenter.Presenter {
	return c.presenter
}

func (c *Controller) Uploads() *Pipeline {
	return c.uploads
}

// Settled returns a channel closed when the latest analysis run has fully
// finished.
func (c *Controller) Settled() <-chan struct{} {
	return c.orch.Settled()
}

// Close releases the progress timer.
func (c *Controller) Close() {
	c.orch.Close()
}
