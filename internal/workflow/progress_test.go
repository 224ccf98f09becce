package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/TradeLens/internal/models"
)

const tick = 500 * time.Millisecond

func testSettings(increment int, grace time.Duration) ProgressSettings {
	s := DefaultProgressSettings()
	s.Tick = tick
	s.Increment = increment
	s.Grace = grace
	return s
}

type recorder struct {
	mu     sync.Mutex
	states []models.ProgressState
}

func (r *recorder) observe(s models.ProgressState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) percents() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, s.Percent)
	}
	return out
}

func advanceTo(t *testing.T, clock *clockwork.FakeClock, sim *Simulator, want int) {
	t.Helper()
	clock.Advance(tick)
	require.Eventually(t, func() bool { return sim.Snapshot().Percent == want }, time.Second, time.Millisecond)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func TestSimulatorClampsBelowCeiling(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(clock, testSettings(30, time.Second), nil)
	rec := &recorder{}
	sim.Observe(rec.observe)

	require.NoError(t, sim.Start())
	assert.Equal(t, "running", sim.State())

	for _, want := range []int{30, 60, 90, 95} {
		advanceTo(t, clock, sim, want)
	}
	clock.Advance(tick)
	clock.Advance(tick)
	assert.Equal(t, 95, sim.Snapshot().Percent)

	got := rec.percents()
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i], got[i-1])
		assert.Less(t, got[i], 100)
	}
	sim.Stop()
}

func TestSimulatorCompleteHoldsThenResets(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(clock, testSettings(5, time.Second), nil)
	rec := &recorder{}
	sim.Observe(rec.observe)

	require.NoError(t, sim.Start())
	advanceTo(t, clock, sim, 5)

	idle := sim.Complete()
	snap := sim.Snapshot()
	assert.Equal(t, 100, snap.Percent)
	assert.Equal(t, models.StageFinalizing, snap.Stage)
	assert.Equal(t, "completing", sim.State())

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, 100, sim.Snapshot().Percent)

	clock.Advance(time.Millisecond)
	waitClosed(t, idle)
	assert.Equal(t, 0, sim.Snapshot().Percent)
	assert.Equal(t, "idle", sim.State())
	assert.Equal(t, []int{0, 5, 100, 0}, rec.percents())
}

func TestSimulatorRestartable(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(clock, testSettings(10, 0), nil)

	for run := 0; run < 2; run++ {
		require.NoError(t, sim.Start())
		assert.ErrorIs(t, sim.Start(), ErrSimulatorBusy)
		advanceTo(t, clock, sim, 10)
		waitClosed(t, sim.Complete())
		assert.Equal(t, 0, sim.Snapshot().Percent)
	}
}

func TestSimulatorStopReleasesTicker(t *testing.T) {
	clock := clockwork.NewFakeClock()
	sim := NewSimulator(clock, testSettings(10, time.Second), nil)

	require.NoError(t, sim.Start())
	idle := sim.Idle()
	sim.Stop()
	waitClosed(t, idle)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))
	assert.Equal(t, "idle", sim.State())

	// Stop while holding at 100 cancels the grace timer.
	require.NoError(t, sim.Start())
	idle = sim.Complete()
	sim.Stop()
	waitClosed(t, idle)
	require.NoError(t, clock.BlockUntilContext(ctx, 0))

	sim.Stop()
}

func TestCompleteWhenIdle(t *testing.T) {
	sim := NewSimulator(clockwork.NewFakeClock(), testSettings(10, time.Second), nil)
	waitClosed(t, sim.Complete())
}

func TestStageBands(t *testing.T) {
	s := DefaultProgressSettings().normalized()
	tests := []struct {
		percent int
		stage   models.Stage
	}{
		{0, models.StageStarting},
		{19, models.StageStarting},
		{20, models.StageFetching},
		{45, models.StageCrunching},
		{60, models.StageGenerating},
		{95, models.StageFinalizing},
		{100, models.StageFinalizing},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.stage, s.band(tt.percent).Stage, "percent %d", tt.percent)
	}
}

func TestZeroSettingsUseDefaults(t *testing.T) {
	s := ProgressSettings{}.normalized()
	assert.Equal(t, 500*time.Millisecond, s.Tick)
	assert.Equal(t, 5, s.Increment)
	assert.Equal(t, 95, s.Ceiling)
	assert.Equal(t, time.Second, s.Grace)
	assert.Len(t, s.Bands, 5)
}
