// Package sync reconciles the members of a Plex account with the
// local user store: users present upstream are imported, users gone
// upstream are pruned, and every pass is recorded as a sync run.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/psantana5/usher/pkg/logging"
	"github.com/psantana5/usher/pkg/metrics"
	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/notify"
	"github.com/psantana5/usher/pkg/plex"
	"github.com/psantana5/usher/pkg/retry"
	"github.com/psantana5/usher/pkg/store"
)

var (
	// ErrSyncInProgress is returned when a run is triggered while
	// another one is still in flight.
	ErrSyncInProgress = errors.New("a sync run is already in progress")

	// ErrRunFinished is returned when cancelling a run that already
	// reached a terminal status.
	ErrRunFinished = errors.New("sync run already finished")
)

// Config controls how the engine reconciles
type Config struct {
	Workers int           // concurrent store mutations during a run
	Timeout time.Duration // per-run budget, 0 disables
	Retry   retry.Config  // backoff for transient plex.tv failures
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Workers: 3,
		Timeout: 10 * time.Minute,
		Retry:   retry.DefaultConfig(),
	}
}

// ClientFactory builds a Plex client for one reconciliation pass. The
// default factory reads the stored connection settings, so settings
// changes take effect on the next run without a restart.
type ClientFactory func(ctx context.Context) (*plex.Client, error)

// Deps holds the engine's collaborators. Recorder and Notifier are
// optional.
type Deps struct {
	Store    store.Store
	Clients  ClientFactory
	Logger   *logging.Logger
	Recorder *metrics.Recorder
	Notifier notify.Notifier
}

// Engine runs reconciliation passes. Only one run is in flight at a
// time; concurrent triggers are rejected with ErrSyncInProgress.
type Engine struct {
	cfg      Config
	store    store.Store
	clients  ClientFactory
	log      *logging.Logger
	recorder *metrics.Recorder
	notifier notify.Notifier

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu         sync.Mutex
	busy       bool
	currentID  string
	currentSeq int
	cancelRun  context.CancelFunc
}

// NewEngine creates a sync engine
func NewEngine(cfg Config, deps Deps) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = DefaultConfig().Workers
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewLogger(logging.INFO, false)
	}
	if deps.Clients == nil {
		st := deps.Store
		deps.Clients = func(ctx context.Context) (*plex.Client, error) {
			return plex.FromSettings(st)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:        cfg,
		store:      deps.Store,
		clients:    deps.Clients,
		log:        deps.Logger,
		recorder:   deps.Recorder,
		notifier:   deps.Notifier,
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// Run executes one reconciliation pass synchronously and returns the
// terminal run. The returned error covers failures to start; a run
// that started and then failed is reported through its status.
func (e *Engine) Run(ctx context.Context, trigger string) (*models.SyncRun, error) {
	run, err := e.begin(trigger)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.markStarted(run, cancel)
	defer cancel()

	e.execute(runCtx, run)
	e.release()
	return run, nil
}

// Trigger starts a reconciliation pass in the background and returns
// the created run while it is still pending. The run is detached from
// the caller's request; it stops only on Cancel or engine shutdown.
func (e *Engine) Trigger(trigger string) (*models.SyncRun, error) {
	run, err := e.begin(trigger)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(e.baseCtx)
	e.markStarted(run, cancel)

	// Snapshot before the goroutine starts mutating the run
	out := *run

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		e.execute(runCtx, run)
		e.release()
	}()

	return &out, nil
}

// Cancel stops the given run. The active run is cancelled through its
// context; an orphaned non-terminal run (left behind by an earlier
// process) is moved to cancelled directly.
func (e *Engine) Cancel(id string) (*models.SyncRun, error) {
	e.mu.Lock()
	if e.busy && e.currentID == id {
		if e.cancelRun != nil {
			e.cancelRun()
		}
		e.mu.Unlock()
		// The executing goroutine records the transition
		return e.store.GetSyncRun(id)
	}
	e.mu.Unlock()

	run, err := e.store.GetSyncRun(id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminal(run.Status) {
		return nil, ErrRunFinished
	}

	from := run.Status
	if err := models.Transition(run, models.SyncRunCancelled); err != nil {
		return nil, err
	}
	if err := e.store.UpdateSyncRun(run); err != nil {
		return nil, err
	}
	e.recordEvent(run.ID, from, models.SyncRunCancelled, "cancelled by operator")
	return run, nil
}

// Active reports the run currently in flight, if any
func (e *Engine) Active() (id string, sequence int, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentID, e.currentSeq, e.busy && e.currentID != ""
}

// RecoverStale moves runs left in a non-terminal status by an earlier
// process to cancelled. Called once at startup, before the scheduler
// starts.
func (e *Engine) RecoverStale() (int, error) {
	runs, err := e.store.ListSyncRuns(0)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, run := range runs {
		if models.IsTerminal(run.Status) {
			continue
		}
		from := run.Status
		if err := models.Transition(run, models.SyncRunCancelled); err != nil {
			continue
		}
		if err := e.store.UpdateSyncRun(run); err != nil {
			return recovered, err
		}
		e.recordEvent(run.ID, from, models.SyncRunCancelled, "abandoned by an earlier process")
		recovered++
	}

	if recovered > 0 {
		e.log.Warn("Recovered stale sync runs", map[string]interface{}{"count": recovered})
	}
	return recovered, nil
}

// Close cancels any in-flight run and waits for it to finish, bounded
// by the given context.
func (e *Engine) Close(ctx context.Context) error {
	e.baseCancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("sync engine shutdown timeout: %w", ctx.Err())
	}
}

// begin reserves the single run slot and creates the pending run
func (e *Engine) begin(trigger string) (*models.SyncRun, error) {
	if trigger == "" {
		trigger = models.TriggerManual
	}

	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.busy = true
	e.mu.Unlock()

	run := &models.SyncRun{
		Trigger: trigger,
		Status:  models.SyncRunPending,
	}
	if err := e.store.CreateSyncRun(run); err != nil {
		e.release()
		return nil, fmt.Errorf("creating sync run: %w", err)
	}
	return run, nil
}

func (e *Engine) markStarted(run *models.SyncRun, cancel context.CancelFunc) {
	e.mu.Lock()
	e.currentID = run.ID
	e.currentSeq = run.SequenceNumber
	e.cancelRun = cancel
	e.mu.Unlock()
}

func (e *Engine) release() {
	e.mu.Lock()
	e.busy = false
	e.currentID = ""
	e.currentSeq = 0
	e.cancelRun = nil
	e.mu.Unlock()
}

// execute drives one run from pending to a terminal status
func (e *Engine) execute(ctx context.Context, run *models.SyncRun) {
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	// Cancelled before it started
	if ctx.Err() != nil {
		e.transition(run, models.SyncRunCancelled, "cancelled before start")
		e.record(run)
		return
	}

	e.transition(run, models.SyncRunRunning, "reconciliation started")
	e.log.Info("Sync run started", map[string]interface{}{
		"run_id":   run.ID,
		"sequence": run.SequenceNumber,
		"trigger":  run.Trigger,
	})

	result, err := e.reconcile(ctx, run)
	run.Imported = result.imported
	run.Removed = result.removed
	run.Matched = result.matched

	switch {
	case err == nil:
		note := fmt.Sprintf("imported %d, removed %d, matched %d",
			run.Imported, run.Removed, run.Matched)
		e.transition(run, models.SyncRunCompleted, note)
		e.log.Info("Sync run completed", map[string]interface{}{
			"run_id":   run.ID,
			"imported": run.Imported,
			"removed":  run.Removed,
			"matched":  run.Matched,
			"duration": run.DurationSeconds,
		})
		if run.Imported > 0 || run.Removed > 0 {
			e.emit(notify.Event{
				Severity: notify.SeverityInfo,
				Title:    "Sync run changed membership",
				Message:  note,
				Run:      run,
			})
		}

	case errors.Is(err, context.Canceled):
		e.transition(run, models.SyncRunCancelled, "run cancelled")
		e.log.Warn("Sync run cancelled", map[string]interface{}{
			"run_id": run.ID,
		})

	case errors.Is(err, context.DeadlineExceeded):
		run.Error = fmt.Sprintf("reconciliation exceeded the %s budget", e.cfg.Timeout)
		e.transition(run, models.SyncRunFailed, run.Error)
		e.log.Error("Sync run timed out", map[string]interface{}{
			"run_id":  run.ID,
			"timeout": e.cfg.Timeout.String(),
		})
		e.emit(notify.Event{
			Severity: notify.SeverityCritical,
			Title:    "Sync run failed",
			Message:  run.Error,
			Run:      run,
		})

	default:
		run.Error = err.Error()
		e.transition(run, models.SyncRunFailed, run.Error)
		e.log.Error("Sync run failed", map[string]interface{}{
			"run_id": run.ID,
			"error":  run.Error,
		})
		e.emit(notify.Event{
			Severity: notify.SeverityCritical,
			Title:    "Sync run failed",
			Message:  run.Error,
			Run:      run,
		})
	}

	e.record(run)
}

// counts carries reconciliation results, including partial progress
// when a run fails midway.
type counts struct {
	imported int
	removed  int
	matched  int
}

// reconcile diffs the upstream account against the local store and
// applies the difference through the worker pool.
func (e *Engine) reconcile(ctx context.Context, run *models.SyncRun) (counts, error) {
	client, err := e.clients(ctx)
	if err != nil {
		return counts{}, err
	}

	var upstream []plex.User
	err = retry.Do(ctx, e.cfg.Retry, func() error {
		users, uerr := client.Users(ctx)
		if uerr != nil {
			if retry.IsRetryable(uerr) {
				return uerr
			}
			// A rejected token will not heal by retrying
			return retry.Permanent(uerr)
		}
		upstream = users
		return nil
	})
	if err != nil {
		return counts{}, fmt.Errorf("fetching account members: %w", err)
	}

	local, err := e.store.ListUsers()
	if err != nil {
		return counts{}, fmt.Errorf("listing local users: %w", err)
	}

	upstreamByID := make(map[string]plex.User, len(upstream))
	for _, u := range upstream {
		if u.ID == "" {
			continue
		}
		upstreamByID[u.ID] = u
	}
	localByID := make(map[string]*models.User, len(local))
	for _, u := range local {
		localByID[u.PlexID] = u
	}

	matched := 0
	for id := range upstreamByID {
		if _, ok := localByID[id]; ok {
			matched++
		}
	}

	var imported, removed int64
	pool := NewPool(ctx, e.cfg.Workers)

	for id, u := range upstreamByID {
		if _, ok := localByID[id]; ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		pool.Submit("import "+u.DisplayName(), func(taskCtx context.Context) error {
			if taskCtx.Err() != nil {
				return taskCtx.Err()
			}
			user := &models.User{
				Username: u.DisplayName(),
				Email:    u.Email,
				PlexID:   u.ID,
				Thumb:    u.Thumb,
				Home:     u.Home,
			}
			if err := e.store.CreateUser(user); err != nil {
				if errors.Is(err, store.ErrDuplicatePlexID) {
					// Raced with a concurrent create; the row exists, which
					// is what this task was for
					return nil
				}
				return err
			}
			atomic.AddInt64(&imported, 1)
			e.log.Info("Imported member from Plex", map[string]interface{}{
				"username": user.Username,
				"plex_id":  user.PlexID,
			})
			return nil
		})
	}

	for id, u := range localByID {
		if _, ok := upstreamByID[id]; ok {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		pool.Submit("prune "+u.Username, func(taskCtx context.Context) error {
			if taskCtx.Err() != nil {
				return taskCtx.Err()
			}
			if err := e.store.DeleteUser(u.ID); err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					return nil
				}
				return err
			}
			atomic.AddInt64(&removed, 1)
			e.log.Info("Pruned member no longer on the Plex account", map[string]interface{}{
				"username": u.Username,
				"plex_id":  u.PlexID,
			})
			return nil
		})
	}

	poolErr := pool.Wait()
	result := counts{
		imported: int(atomic.LoadInt64(&imported)),
		removed:  int(atomic.LoadInt64(&removed)),
		matched:  matched,
	}

	if poolErr != nil {
		return result, poolErr
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// transition moves the run to the given status and records the change
// in the store and the event log.
func (e *Engine) transition(run *models.SyncRun, to models.SyncRunStatus, note string) {
	from := run.Status
	if err := models.Transition(run, to); err != nil {
		e.log.Error("Rejected sync run transition", map[string]interface{}{
			"run_id": run.ID,
			"from":   string(from),
			"to":     string(to),
			"error":  err.Error(),
		})
		return
	}
	if err := e.store.UpdateSyncRun(run); err != nil {
		e.log.Error("Persisting sync run failed", map[string]interface{}{
			"run_id": run.ID,
			"error":  err.Error(),
		})
	}
	e.recordEvent(run.ID, from, to, note)
}

// recordEvent appends to the run's audit trail. Best effort: a failed
// event write must not fail the run.
func (e *Engine) recordEvent(runID string, from, to models.SyncRunStatus, note string) {
	event := &models.SyncEvent{
		RunID:     runID,
		From:      from,
		To:        to,
		Note:      note,
		Timestamp: time.Now(),
	}
	if err := e.store.AppendSyncEvent(event); err != nil {
		e.log.Error("Recording sync event failed", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
}

// record publishes the terminal run to the metrics recorder
func (e *Engine) record(run *models.SyncRun) {
	if e.recorder == nil {
		return
	}
	e.recorder.RecordSyncRun(run.Trigger, string(run.Status), run.DurationSeconds)
	e.recorder.RecordSyncCounts(run.Imported, run.Removed, run.Matched)
}

// emit dispatches an event on its own timeout so a slow backend
// cannot stall the engine.
func (e *Engine) emit(event notify.Event) {
	if e.notifier == nil {
		return
	}

	// Snapshot: the caller's run may be reused after we return
	if event.Run != nil {
		snapshot := *event.Run
		event.Run = &snapshot
	}
	event.Timestamp = time.Now().UTC()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := e.notifier.Notify(ctx, event); err != nil {
			e.log.Warn("Notification delivery failed", map[string]interface{}{
				"backend": e.notifier.Name(),
				"error":   err.Error(),
			})
		}
	}()
}
