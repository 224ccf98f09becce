package cli

import (
	"github.com/dyike/TradeLens/config"
	"github.com/dyike/TradeLens/internal/api"
	"github.com/dyike/TradeLens/internal/logger"
	"github.com/dyike/TradeLens/internal/presenter"
	"github.com/dyike/TradeLens/internal/report"
	"github.com/dyike/TradeLens/internal/workflow"
)

// app holds everything one CLI invocation needs.
type app struct {
	cfg     config.Config
	log     *logger.Logger
	client  *api.Client
	ctrl    *workflow.Controller
	results *report.Manager
}

func newApp(cfg config.Config, log *logger.Logger) *app {
	client := api.NewClient(cfg.BaseURL,
		api.WithLogger(log),
		api.WithRateLimit(cfg.RequestsPerSecond),
		api.WithTimeouts(
			cfg.Timeout(cfg.LoginTimeoutSec),
			cfg.Timeout(cfg.UploadTimeoutSec),
			cfg.Timeout(cfg.AnalyzeTimeoutSec),
		),
		api.WithPaths(cfg.Endpoints.Login, cfg.Endpoints.Upload, cfg.Endpoints.Analyze),
	)
	ctrl := workflow.NewController(client, workflow.Options{
		Progress:          workflow.SettingsFromConfig(cfg.Progress),
		AllowedExtensions: cfg.AllowedExtensions,
		Presenter:         presenterOptions(cfg),
		Logger:            log,
	})
	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		ctrl:   ctrl,
		results: report.NewManager(cfg.ResultsDir,
			report.WithCurrency(cfg.Currency),
			report.WithLogger(log),
		),
	}
}

func presenterOptions(cfg config.Config) presenter.Options {
	return presenter.Options{
		PreviewRows:   cfg.PreviewRows,
		Currency:      cfg.Currency,
		ClusterLabels: cfg.ClusterLabels,
	}
}

func (a *app) close() {
	a.ctrl.Close()
}

func newPresenter(cfg config.Config) *presenter.Presenter {
	return presenter.New(presenterOptions(cfg))
}
