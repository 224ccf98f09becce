package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dyike/TradeLens/internal/models"
	"github.com/dyike/TradeLens/internal/workflow"
)

// progressLine redraws a single terminal line while an analysis runs.
// Once 100% has been drawn the line is frozen, so the reset that follows
// completion never replaces it.
type progressLine struct {
	mu       sync.Mutex
	out      io.Writer
	active   bool
	complete bool
}

func newProgressLine(out io.Writer) *progressLine {
	if out == nil {
		out = os.Stdout
	}
	return &progressLine{out: out}
}

func (p *progressLine) update(state models.ProgressState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active || p.complete {
		return
	}
	fmt.Fprintf(p.out, "\r\033[K%s", RenderProgress(state))
	p.complete = state.Percent >= 100
}

func (p *progressLine) start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.complete = false
}

func (p *progressLine) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.out)
	}
	p.active = false
}

// runAnalysis drives one analysis run with a live progress line and waits
// until the run has fully settled.
func runAnalysis(ctx context.Context, a *app, line *progressLine) (*models.AnalysisResult, error) {
	line.start()
	defer line.stop()

	result, err := a.ctrl.Analyze(ctx)
	if errors.Is(err, workflow.ErrAnalysisInFlight) || errors.Is(err, workflow.ErrNotAuthenticated) {
		return nil, err
	}
	select {
	case <-a.ctrl.Settled():
	case <-ctx.Done():
	}
	return result, err
}
