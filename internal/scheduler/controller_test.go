package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dhkim/bankfeed/internal/ingest"
)

type fakeEngine struct {
	mu     sync.Mutex
	calls  []ingest.SyncOptions
	block  chan struct{}
	result ingest.Result
	err    error
}

func (f *fakeEngine) SyncMail(_ context.Context, opts ingest.SyncOptions) (ingest.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		<-block
	}
	return f.result, f.err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func testState(t *testing.T) *State {
	t.Helper()
	state, _, err := LoadState(filepath.Join(t.TempDir(), "scheduler.json"), Config{
		DailyIntervalMinutes: 30,
		WeeklyIntervalDays:   7,
	})
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	return state
}

func TestStartStopStatus(t *testing.T) {
	ctl := NewController(&fakeEngine{}, testState(t), zerolog.Nop())

	if st := ctl.Status(); st.Running {
		t.Error("fresh controller reports running")
	}

	st := ctl.Start()
	if !st.Running {
		t.Error("Start did not report running")
	}
	// Starting twice is a no-op.
	if st = ctl.Start(); !st.Running {
		t.Error("second Start lost running state")
	}

	if st = ctl.Stop(); st.Running {
		t.Error("Stop still reports running")
	}
}

func TestRunningStateSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.json")
	defaults := Config{DailyIntervalMinutes: 30, WeeklyIntervalDays: 7}

	state, found, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if found {
		t.Fatal("fresh temp dir reported a prior state file")
	}
	ctl := NewController(&fakeEngine{}, state, zerolog.Nop())
	ctl.Start()

	// A new process loads the same file and resumes polling.
	reloaded, found, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState after restart: %v", err)
	}
	if !found {
		t.Fatal("persisted state file not reported")
	}
	if !reloaded.Running {
		t.Fatal("persisted state lost the running flag")
	}
	ctl2 := NewController(&fakeEngine{}, reloaded, zerolog.Nop())
	if st := ctl2.Resume(); !st.Running {
		t.Error("Resume did not restore the running scheduler")
	}
	ctl.Stop()
	ctl2.Stop()
}

func TestExecuteReturnsResultAndStampsExecution(t *testing.T) {
	engine := &fakeEngine{result: ingest.Result{Total: 5, New: 3}}
	ctl := NewController(engine, testState(t), zerolog.Nop())

	result, st, err := ctl.Execute(context.Background(), false)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.New != 3 {
		t.Errorf("result.New = %d, want 3", result.New)
	}
	if st.LastExecutions.Daily.IsZero() {
		t.Error("daily execution time not stamped")
	}
	if !st.LastExecutions.FullResync.IsZero() {
		t.Error("full-resync time stamped by an incremental cycle")
	}

	if _, st, err = ctl.Execute(context.Background(), true); err != nil {
		t.Fatalf("Execute force-full: %v", err)
	} else if st.LastExecutions.FullResync.IsZero() {
		t.Error("full-resync execution time not stamped")
	}

	if got := engine.calls[1]; !got.ForceFull {
		t.Error("force-full flag not passed to the engine")
	}
}

func TestFailedExecuteDoesNotStampExecution(t *testing.T) {
	engine := &fakeEngine{err: errors.New("mailbox unreachable")}
	ctl := NewController(engine, testState(t), zerolog.Nop())

	_, st, err := ctl.Execute(context.Background(), false)
	if err == nil {
		t.Fatal("expected the cycle error to surface")
	}
	if !st.LastExecutions.Daily.IsZero() || !st.LastExecutions.FullResync.IsZero() {
		t.Errorf("failed cycle stamped an execution time: %+v", st.LastExecutions)
	}
}

func TestExecuteRejectsOverlap(t *testing.T) {
	engine := &fakeEngine{block: make(chan struct{})}
	ctl := NewController(engine, testState(t), zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _, _ = ctl.Execute(context.Background(), false)
	}()

	// Wait until the first cycle is inside the engine.
	deadline := time.After(2 * time.Second)
	for engine.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, _, err := ctl.Execute(context.Background(), false); !errors.Is(err, ErrBusy) {
		t.Errorf("overlapping Execute error = %v, want ErrBusy", err)
	}

	close(engine.block)
	<-done
}

func TestReconfigure(t *testing.T) {
	ctl := NewController(&fakeEngine{}, testState(t), zerolog.Nop())
	ctl.Start()
	defer ctl.Stop()

	st, err := ctl.Reconfigure(Config{DailyIntervalMinutes: 10, WeeklyIntervalDays: 14})
	if err != nil {
		t.Fatalf("Reconfigure: %v", err)
	}
	if !st.Running {
		t.Error("reconfigure stopped a running scheduler")
	}
	if st.Config.DailyIntervalMinutes != 10 || st.Config.WeeklyIntervalDays != 14 {
		t.Errorf("config not applied: %+v", st.Config)
	}

	if _, err := ctl.Reconfigure(Config{DailyIntervalMinutes: 0, WeeklyIntervalDays: 7}); err == nil {
		t.Error("zero interval accepted")
	}
}

func TestLoadStateDefaultsAndRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scheduler.json")
	defaults := Config{DailyIntervalMinutes: 30, WeeklyIntervalDays: 7}

	state, found, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState on missing file: %v", err)
	}
	if found {
		t.Error("missing file reported as a prior state")
	}
	if state.Config != defaults {
		t.Errorf("missing file config = %+v, want defaults", state.Config)
	}

	state.Running = true
	state.LastExecutions.Daily = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
	if err := state.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, found, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState round trip: %v", err)
	}
	if !found {
		t.Error("saved file not reported as a prior state")
	}
	if !loaded.Running || !loaded.LastExecutions.Daily.Equal(state.LastExecutions.Daily) {
		t.Errorf("round trip lost data: %+v", loaded)
	}
}

func TestExplicitStopSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.json")
	defaults := Config{DailyIntervalMinutes: 30, WeeklyIntervalDays: 7}

	state, _, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	ctl := NewController(&fakeEngine{}, state, zerolog.Nop())
	ctl.Start()
	ctl.Stop()

	// The operator stopped the scheduler; a restarted daemon must stay
	// stopped rather than treat the state as fresh.
	reloaded, found, err := LoadState(path, defaults)
	if err != nil {
		t.Fatalf("LoadState after restart: %v", err)
	}
	if !found {
		t.Fatal("stopped state file not reported, daemon would auto-start")
	}
	if reloaded.Running {
		t.Fatal("explicit stop not persisted")
	}
	ctl2 := NewController(&fakeEngine{}, reloaded, zerolog.Nop())
	if st := ctl2.Resume(); st.Running {
		t.Error("Resume started a scheduler the operator stopped")
	}
}
