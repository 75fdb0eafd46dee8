package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health reports whether the service can answer at all. Stays cheap:
// one store round trip, no Plex traffic.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.store.HealthCheck(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// Status returns an operational snapshot: counts, sync state,
// scheduler counters and host load.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.CountUsers()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to count users: %v", err), http.StatusInternalServerError)
		return
	}

	libraries, err := h.store.ListLibraries()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list libraries: %v", err), http.StatusInternalServerError)
		return
	}

	byStatus, err := h.store.CountSyncRunsByStatus()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to count sync runs: %v", err), http.StatusInternalServerError)
		return
	}

	syncInfo := map[string]interface{}{
		"runs_by_status": byStatus,
	}
	if h.engine != nil {
		if id, seq, ok := h.engine.Active(); ok {
			syncInfo["active_run"] = map[string]interface{}{
				"id":              id,
				"sequence_number": seq,
			}
		}
	}
	if last, lerr := h.store.ListSyncRuns(1); lerr == nil && len(last) > 0 {
		syncInfo["last_run"] = last[0]
	}
	if h.scheduler != nil {
		stats := h.scheduler.Stats()
		scheduler := map[string]interface{}{
			"running":  stats.Running,
			"interval": stats.Interval.String(),
			"skips":    stats.Skips,
		}
		if !stats.LastRun.IsZero() {
			scheduler["last_run"] = stats.LastRun
		}
		syncInfo["scheduler"] = scheduler
	}

	// Host load is best effort; a sampling failure never fails /status
	host := map[string]interface{}{}
	if percents, herr := cpu.Percent(0, false); herr == nil && len(percents) > 0 {
		host["cpu_percent"] = percents[0]
	}
	if vm, herr := mem.VirtualMemory(); herr == nil {
		host["memory_used_bytes"] = vm.Used
		host["memory_total_bytes"] = vm.Total
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"users":          users,
		"libraries":      len(libraries),
		"sync":           syncInfo,
		"host":           host,
	})
}
