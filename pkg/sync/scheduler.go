package sync

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/notify"
)

// Scheduler triggers a reconciliation pass on a fixed interval. Passes
// are skipped, not queued, when the engine is busy or the Plex
// connection has not been configured yet.
type Scheduler struct {
	engine   *Engine
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	running    bool
	lastRun    time.Time
	skips      int
	skipStreak int
}

// SchedulerStats is a snapshot of scheduler state for the status API
type SchedulerStats struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"-"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	Skips    int           `json:"skips"`
}

// NewScheduler creates a scheduler around the engine. An interval of
// zero disables it.
func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		engine:   engine,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the scheduler loop
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.engine.log.Info("Sync scheduler disabled")
		return
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.engine.log.Info("Sync scheduler started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	s.wg.Add(1)
	go s.loop()
}

// Stop halts the loop and waits for an in-progress pass to finish
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Stats returns a snapshot of scheduler counters
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		Running:  s.running,
		Interval: s.interval,
		LastRun:  s.lastRun,
		Skips:    s.skips,
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	// The first pass is jittered so a fleet of daemons restarted
	// together does not hit plex.tv in lockstep
	jitter := time.Duration(rand.Int63n(int64(s.interval/10) + 1))
	select {
	case <-s.ctx.Done():
		return
	case <-time.After(jitter):
	}
	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scheduler) tick() {
	if _, _, busy := s.engine.Active(); busy {
		s.skip("previous run still in flight")
		return
	}

	values, err := s.engine.store.GetSettings(models.SettingServerURL, models.SettingServerAPIKey)
	if err == nil && (values[models.SettingServerURL] == "" || values[models.SettingServerAPIKey] == "") {
		s.skip("plex connection not configured")
		return
	}

	run, err := s.engine.Run(s.ctx, models.TriggerScheduled)
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			s.skip("previous run still in flight")
			return
		}
		s.engine.log.Error("Scheduled sync failed to start", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.skipStreak = 0
	s.mu.Unlock()

	if run.Status == models.SyncRunFailed {
		s.engine.log.Warn("Scheduled sync run failed", map[string]interface{}{
			"run_id": run.ID,
			"error":  run.Error,
		})
	}
}

func (s *Scheduler) skip(reason string) {
	s.mu.Lock()
	s.skips++
	s.skipStreak++
	streak := s.skipStreak
	s.mu.Unlock()

	s.engine.log.Warn("Skipping scheduled sync", map[string]interface{}{
		"reason": reason,
		"streak": streak,
	})

	// One alert per streak, once it stops looking like a coincidence
	if streak == 3 {
		s.engine.emit(notify.Event{
			Severity: notify.SeverityWarning,
			Title:    "Scheduled sync keeps getting skipped",
			Message:  fmt.Sprintf("%d consecutive passes skipped, last reason: %s", streak, reason),
		})
	}
}
