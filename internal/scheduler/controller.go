package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"github.com/rs/zerolog"

	"github.com/dhkim/bankfeed/internal/ingest"
)

// ErrBusy rejects a manual execution while a cycle is already running.
// Timer-driven cycles are silently skipped instead.
var ErrBusy = errors.New("scheduler: a cycle is already in progress")

// cycleTimeout bounds a single ingestion cycle.
const cycleTimeout = 10 * time.Minute

// Engine is the slice of the ingestion service the scheduler drives.
type Engine interface {
	SyncMail(ctx context.Context, opts ingest.SyncOptions) (ingest.Result, error)
}

// Status is the snapshot returned by every control operation.
type Status struct {
	Running        bool       `json:"running"`
	LastExecutions Executions `json:"lastExecutions"`
	Config         Config     `json:"config"`
}

// Controller owns the timers and serializes cycles. Control operations
// are safe for concurrent use; at most one ingestion cycle runs at any
// moment regardless of how it was triggered.
type Controller struct {
	engine Engine
	log    zerolog.Logger

	mu    sync.Mutex // guards state and timers
	state *State
	timer *cron.Cron

	cycleMu sync.Mutex // held for the duration of one cycle
}

// NewController wires a controller over a loaded state. Timers are not
// started here; call Resume to honor a persisted Running flag.
func NewController(engine Engine, state *State, log zerolog.Logger) *Controller {
	return &Controller{engine: engine, state: state, log: log}
}

// Resume restarts the timers when the persisted state says the
// scheduler was running before the process stopped.
func (c *Controller) Resume() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Running {
		c.log.Info().Msg("Resuming scheduler from persisted state")
		c.startTimers()
	}
	return c.snapshot()
}

// Start begins periodic polling. Starting an already-running scheduler
// is a no-op returning the current status.
func (c *Controller) Start() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		c.startTimers()
		c.state.Running = true
		c.persist()
		c.log.Info().
			Int("daily_minutes", c.state.Config.DailyIntervalMinutes).
			Int("weekly_days", c.state.Config.WeeklyIntervalDays).
			Msg("Scheduler started")
	}
	return c.snapshot()
}

// Stop cancels the timers. An in-flight cycle is never aborted; it
// finishes on its own.
func (c *Controller) Stop() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimers()
	c.state.Running = false
	c.persist()
	c.log.Info().Msg("Scheduler stopped")
	return c.snapshot()
}

// Shutdown cancels the timers without touching the persisted Running
// flag: a daemon going down for a restart resumes polling when it
// comes back.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimers()
}

// Restart stops and starts the timers in one operation.
func (c *Controller) Restart() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimers()
	c.startTimers()
	c.state.Running = true
	c.persist()
	c.log.Info().Msg("Scheduler restarted")
	return c.snapshot()
}

// Reconfigure applies new intervals. A running scheduler's timers are
// rebuilt immediately; a stopped one keeps the new config for the next
// Start.
func (c *Controller) Reconfigure(cfg Config) (Status, error) {
	if err := cfg.Validate(); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.snapshot(), err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Config = cfg
	if c.timer != nil {
		c.stopTimers()
		c.startTimers()
	}
	c.persist()
	c.log.Info().
		Int("daily_minutes", cfg.DailyIntervalMinutes).
		Int("weekly_days", cfg.WeeklyIntervalDays).
		Msg("Scheduler reconfigured")
	return c.snapshot(), nil
}

// Execute runs one cycle immediately, outside the timer cadence. It
// runs synchronously so callers get the ingestion result. A cycle
// already in progress is reported as ErrBusy, not queued.
func (c *Controller) Execute(ctx context.Context, forceFull bool) (ingest.Result, Status, error) {
	if !c.cycleMu.TryLock() {
		c.mu.Lock()
		defer c.mu.Unlock()
		return ingest.Result{}, c.snapshot(), ErrBusy
	}
	defer c.cycleMu.Unlock()

	result, err := c.engine.SyncMail(ctx, ingest.SyncOptions{ForceFull: forceFull})
	c.recordExecution(forceFull, err)

	c.mu.Lock()
	defer c.mu.Unlock()
	return result, c.snapshot(), err
}

// Status returns the current snapshot without side effects.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// startTimers builds and starts the cron entries. Caller holds mu.
func (c *Controller) startTimers() {
	timer := cron.New()
	// AddFunc only fails on an invalid spec; @every specs built from
	// validated positive intervals always parse.
	_ = timer.AddFunc(fmt.Sprintf("@every %dm", c.state.Config.DailyIntervalMinutes), func() {
		c.timerCycle(false)
	})
	_ = timer.AddFunc(fmt.Sprintf("@every %dh", c.state.Config.WeeklyIntervalDays*24), func() {
		c.timerCycle(true)
	})
	timer.Start()
	c.timer = timer
}

// stopTimers cancels the cron entries. Caller holds mu.
func (c *Controller) stopTimers() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// timerCycle is the body of a timer-driven cycle. Overlap with any
// other cycle is resolved by skipping this tick.
func (c *Controller) timerCycle(forceFull bool) {
	if !c.cycleMu.TryLock() {
		c.log.Warn().Bool("force_full", forceFull).Msg("Skipping timer tick, a cycle is still running")
		return
	}
	defer c.cycleMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	result, err := c.engine.SyncMail(ctx, ingest.SyncOptions{ForceFull: forceFull})
	c.recordExecution(forceFull, err)
	if err != nil {
		c.log.Error().Err(err).Bool("force_full", forceFull).Msg("Scheduled ingestion cycle failed")
		return
	}
	c.log.Info().
		Bool("force_full", forceFull).
		Int("new", result.New).
		Int("duplicates", result.Duplicates).
		Msg("Scheduled ingestion cycle finished")
}

// recordExecution stamps the cycle kind's last-execution time. Only
// successful cycles are stamped; failures are logged by the caller and
// leave the previous timestamp in place.
func (c *Controller) recordExecution(forceFull bool, err error) {
	if err != nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now().In(time.UTC)
	if forceFull {
		c.state.LastExecutions.FullResync = now
	} else {
		c.state.LastExecutions.Daily = now
	}
	c.persist()
}

// snapshot copies the state into a Status. Caller holds mu.
func (c *Controller) snapshot() Status {
	return Status{
		Running:        c.state.Running,
		LastExecutions: c.state.LastExecutions,
		Config:         c.state.Config,
	}
}

// persist writes the state file, logging instead of failing: losing a
// state write must not break a control operation. Caller holds mu.
func (c *Controller) persist() {
	if err := c.state.Save(); err != nil {
		c.log.Error().Err(err).Msg("Failed to persist scheduler state")
	}
}
