package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2/terminal"

	"github.com/dyike/TradeLens/config"
	"github.com/dyike/TradeLens/internal/workflow"
)

// InteractiveSession handles interactive CLI sessions
type InteractiveSession struct {
	opts *rootOptions
	app  *app
	line *progressLine
}

// NewInteractiveSession creates a new interactive session
func NewInteractiveSession(opts *rootOptions) *InteractiveSession {
	s := &InteractiveSession{
		opts: opts,
		app:  newApp(opts.cfg, opts.log),
		line: newProgressLine(os.Stdout),
	}
	s.app.ctrl.ObserveProgress(s.line.update)
	return s
}

// runInteractiveMode starts the interactive mode
func runInteractiveMode(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s := NewInteractiveSession(opts)
	defer s.app.close()
	return s.Start(ctx)
}

// Start logs in and runs the menu loop until the user exits.
func (s *InteractiveSession) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	DisplayWelcomeBanner()
	s.watchConfig(ctx)

	if err := s.login(ctx); err != nil {
		if isInterrupt(err) {
			fmt.Println("👋 Thank you for using TradeLens!")
			return nil
		}
		return err
	}

	for {
		choice, err := PromptForAction(s.menu())
		if err != nil {
			if isInterrupt(err) {
				fmt.Println("👋 Thank you for using TradeLens!")
				return nil
			}
			return err
		}
		if choice == actionExit {
			fmt.Println("👋 Thank you for using TradeLens!")
			return nil
		}
		if err := s.handle(ctx, choice); err != nil {
			if isInterrupt(err) {
				continue
			}
			DisplayError(err)
		}
		fmt.Println()
	}
}

// watchConfig applies presentation settings when the config file changes.
func (s *InteractiveSession) watchConfig(ctx context.Context) {
	if s.opts.mgr == nil {
		return
	}
	unsubscribe := s.opts.mgr.Subscribe(func(change config.Change) {
		if change.Sections.Has(config.SectionPresentation) {
			s.app.ctrl.Presenter().SetOptions(presenterOptions(change.New))
			s.app.log.Info().Str("path", s.opts.mgr.Path()).Msg("presentation settings reloaded")
		}
		if change.Sections.Has(config.SectionService | config.SectionProgress) {
			s.app.log.Info().Msg("service and progress settings apply after restart")
		}
	})
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	if err := s.opts.mgr.Watch(ctx); err != nil {
		s.app.log.Warn().Err(err).Msg("config watch disabled")
	}
}

func (s *InteractiveSession) login(ctx context.Context) error {
	user := os.Getenv("TRADELENS_USERNAME")
	for {
		username, password, err := PromptForCredentials(user)
		if err != nil {
			return err
		}
		if _, err := s.app.ctrl.Login(ctx, username, password); err != nil {
			DisplayError(err)
			user = username
			retry, perr := PromptForConfirmation("Try again?", true)
			if perr != nil {
				return perr
			}
			if !retry {
				return terminal.InterruptErr
			}
			continue
		}
		DisplaySuccess(fmt.Sprintf("Logged in as %s", username))
		return nil
	}
}

// menu lists the actions that make sense in the current state.
func (s *InteractiveSession) menu() []string {
	options := []string{actionSelectFile}
	state, ok := s.app.ctrl.State().(workflow.LoggedIn)
	if !ok {
		return []string{actionExit}
	}
	if state.Pending != nil {
		options = append(options, actionUpload)
	}
	options = append(options, actionAnalyze)
	if _, ok := state.Activity.(workflow.ResultReady); ok {
		p := s.app.ctrl.Presenter()
		options = append(options, actionShowResult)
		if p.HasMoreRows() {
			if p.Expanded() {
				options = append(options, actionShowFewer)
			} else {
				options = append(options, actionShowAll)
			}
		}
		options = append(options, actionCharts, actionSave)
	}
	return append(options, actionHistory, actionExit)
}

func (s *InteractiveSession) handle(ctx context.Context, choice string) error {
	ctrl := s.app.ctrl
	switch choice {
	case actionSelectFile:
		path, err := PromptForFilePath(ctrl.Uploads().AllowedExtensions())
		if err != nil {
			return err
		}
		if err := ctrl.SelectPath(path); err != nil {
			return err
		}
		pending := ctrl.Uploads().Pending()
		DisplaySuccess(fmt.Sprintf("Selected %s (%d bytes)", pending.Name, pending.Size()))

	case actionUpload:
		status, err := ctrl.Upload(ctx)
		fmt.Println(RenderUploadStatus(status))
		return err

	case actionAnalyze:
		DisplayInfo("Analyzing trades...")
		if _, err := runAnalysis(ctx, s.app, s.line); err != nil {
			return err
		}
		DisplayResult(ctrl.Presenter())

	case actionShowResult:
		DisplayResult(ctrl.Presenter())

	case actionShowAll, actionShowFewer:
		ctrl.Presenter().Toggle()
		fmt.Println(RenderTradeTable(ctrl.Presenter()))

	case actionCharts:
		return saveCharts(s.app)

	case actionSave:
		result := ctrl.Presenter().Result()
		if result == nil {
			return errors.New("no result to save")
		}
		summary, err := s.app.results.Save(result)
		if err != nil {
			return err
		}
		DisplaySuccess(fmt.Sprintf("Saved result %s to %s", summary.ID, summary.Dir))

	case actionHistory:
		return s.showHistory()
	}
	return nil
}

func (s *InteractiveSession) showHistory() error {
	runs, err := s.app.results.List(false)
	if err != nil {
		return err
	}
	fmt.Println(RenderHistory(runs, s.opts.cfg.Currency))
	if len(runs) == 0 {
		return nil
	}
	open, err := PromptForConfirmation("Open a saved result?", false)
	if err != nil || !open {
		return err
	}
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	id, err := PromptForRun(ids)
	if err != nil {
		return err
	}
	result, err := s.app.results.Load(id)
	if err != nil {
		return err
	}
	// Saved results are shown in a separate presenter so the live result
	// stays untouched.
	p := newPresenter(s.opts.cfg)
	p.SetResult(result)
	DisplayResult(p)
	return nil
}

func isInterrupt(err error) bool {
	return errors.Is(err, terminal.InterruptErr)
}
