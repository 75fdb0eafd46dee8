package cleanup

import (
	"context"
	"log"
	"sync"
	"time"
)

// Config defines retention policy and maintenance intervals
type Config struct {
	Enabled         bool
	RetentionDays   int
	CleanupInterval time.Duration
	VacuumInterval  time.Duration
}

// DefaultConfig returns sensible defaults for cleanup
func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		RetentionDays:   30,
		CleanupInterval: 6 * time.Hour,
		VacuumInterval:  7 * 24 * time.Hour,
	}
}

// Store is the slice of the data store that cleanup needs
type Store interface {
	DeleteSyncRunsBefore(cutoff time.Time) (int64, error)
	Vacuum() error
}

// Manager prunes old sync run history and periodically compacts the
// database.
type Manager struct {
	config Config
	store  Store
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.RWMutex
	stats Stats
}

// Stats tracks cleanup operations
type Stats struct {
	LastCleanupTime     time.Time
	LastVacuumTime      time.Time
	TotalRunsDeleted    int64
	TotalVacuumRuns     int64
	LastCleanupDuration time.Duration
	LastVacuumDuration  time.Duration
}

// NewManager creates a new cleanup manager
func NewManager(config Config, store Store) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		config: config,
		store:  store,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins the background maintenance loops
func (m *Manager) Start() {
	if !m.config.Enabled {
		log.Println("[Cleanup] Cleanup manager disabled")
		return
	}

	log.Printf("[Cleanup] Starting cleanup manager (retention: %d days, interval: %v)",
		m.config.RetentionDays, m.config.CleanupInterval)

	m.wg.Add(2)
	go m.cleanupLoop()
	go m.vacuumLoop()
}

// Stop gracefully stops the cleanup manager
func (m *Manager) Stop() {
	log.Println("[Cleanup] Stopping cleanup manager...")
	m.cancel()
	m.wg.Wait()
	log.Println("[Cleanup] Cleanup manager stopped")
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.pruneOldRuns()
		}
	}
}

func (m *Manager) vacuumLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.VacuumInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.vacuum()
		}
	}
}

// pruneOldRuns deletes finished sync runs older than the retention period.
// Runs still pending or in flight are never touched.
func (m *Manager) pruneOldRuns() {
	startTime := time.Now()
	cutoff := time.Now().Add(-time.Duration(m.config.RetentionDays) * 24 * time.Hour)

	deleted, err := m.store.DeleteSyncRunsBefore(cutoff)
	if err != nil {
		log.Printf("[Cleanup] Error pruning sync runs: %v", err)
		return
	}

	duration := time.Since(startTime)

	m.mu.Lock()
	m.stats.LastCleanupTime = time.Now()
	m.stats.LastCleanupDuration = duration
	m.stats.TotalRunsDeleted += deleted
	m.mu.Unlock()

	log.Printf("[Cleanup] Pruned %d sync runs in %v", deleted, duration)
}

func (m *Manager) vacuum() {
	startTime := time.Now()
	log.Println("[Cleanup] Starting database vacuum...")

	if err := m.store.Vacuum(); err != nil {
		log.Printf("[Cleanup] Database vacuum failed: %v", err)
		return
	}

	duration := time.Since(startTime)

	m.mu.Lock()
	m.stats.LastVacuumTime = time.Now()
	m.stats.LastVacuumDuration = duration
	m.stats.TotalVacuumRuns++
	m.mu.Unlock()

	log.Printf("[Cleanup] Database vacuum complete in %v", duration)
}

// CleanupNow triggers an immediate prune
func (m *Manager) CleanupNow() {
	log.Println("[Cleanup] Manual cleanup triggered")
	m.pruneOldRuns()
}

// VacuumNow triggers an immediate vacuum
func (m *Manager) VacuumNow() {
	log.Println("[Cleanup] Manual vacuum triggered")
	m.vacuum()
}

// GetStats returns current cleanup statistics
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
