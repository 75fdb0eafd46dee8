package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/store"
)

// Exporter serves Prometheus-compatible metrics at /metrics. State
// gauges are computed from the store on each scrape; event counters
// registered by the Recorder are appended from the default registry.
type Exporter struct {
	store     store.Store
	startTime time.Time

	mu          sync.RWMutex
	cpuPercent  float64
	memoryUsed  uint64
	memoryTotal uint64
}

// NewExporter creates a new metrics exporter
func NewExporter(s store.Store) *Exporter {
	return &Exporter{
		store:     s,
		startTime: time.Now(),
	}
}

// StartSampling refreshes the system gauges on the given interval until
// the stop channel closes. Sampling off the scrape path keeps scrapes
// fast because cpu.Percent blocks for its measurement window.
func (e *Exporter) StartSampling(stop <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		e.sample()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.sample()
			}
		}
	}()
}

func (e *Exporter) sample() {
	var cpuPercent float64
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}

	var used, total uint64
	if vmem, err := mem.VirtualMemory(); err == nil {
		used = vmem.Used
		total = vmem.Total
	}

	e.mu.Lock()
	e.cpuPercent = cpuPercent
	e.memoryUsed = used
	e.memoryTotal = total
	e.mu.Unlock()
}

// ServeHTTP serves the metrics endpoint
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	userCount, err := e.store.CountUsers()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error collecting user metrics: %v", err), http.StatusInternalServerError)
		return
	}

	libraries, err := e.store.ListLibraries()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error collecting library metrics: %v", err), http.StatusInternalServerError)
		return
	}

	runCounts, err := e.store.CountSyncRunsByStatus()
	if err != nil {
		http.Error(w, fmt.Sprintf("Error collecting sync run metrics: %v", err), http.StatusInternalServerError)
		return
	}

	fmt.Fprintf(w, "# HELP usher_users_total Number of tracked media server users\n")
	fmt.Fprintf(w, "# TYPE usher_users_total gauge\n")
	fmt.Fprintf(w, "usher_users_total %d\n", userCount)

	fmt.Fprintf(w, "\n# HELP usher_libraries_total Number of cached library sections\n")
	fmt.Fprintf(w, "# TYPE usher_libraries_total gauge\n")
	fmt.Fprintf(w, "usher_libraries_total %d\n", len(libraries))

	// Always export every status so dashboards see zeroes, not gaps
	fmt.Fprintf(w, "\n# HELP usher_sync_runs Sync runs currently stored, by status\n")
	fmt.Fprintf(w, "# TYPE usher_sync_runs gauge\n")
	for _, status := range models.ValidStatuses() {
		fmt.Fprintf(w, "usher_sync_runs{status=\"%s\"} %d\n", status, runCounts[status])
	}

	healthy := 1
	if err := e.store.HealthCheck(); err != nil {
		healthy = 0
	}
	fmt.Fprintf(w, "\n# HELP usher_store_healthy Whether the backing store answers a health check\n")
	fmt.Fprintf(w, "# TYPE usher_store_healthy gauge\n")
	fmt.Fprintf(w, "usher_store_healthy %d\n", healthy)

	fmt.Fprintf(w, "\n# HELP usher_uptime_seconds Daemon uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE usher_uptime_seconds gauge\n")
	fmt.Fprintf(w, "usher_uptime_seconds %.0f\n", time.Since(e.startTime).Seconds())

	e.mu.RLock()
	cpuPercent := e.cpuPercent
	memoryUsed := e.memoryUsed
	memoryTotal := e.memoryTotal
	e.mu.RUnlock()

	fmt.Fprintf(w, "\n# HELP usher_host_cpu_percent Host CPU utilization sampled by the daemon\n")
	fmt.Fprintf(w, "# TYPE usher_host_cpu_percent gauge\n")
	fmt.Fprintf(w, "usher_host_cpu_percent %.2f\n", cpuPercent)

	fmt.Fprintf(w, "\n# HELP usher_host_memory_used_bytes Host memory in use, sampled by the daemon\n")
	fmt.Fprintf(w, "# TYPE usher_host_memory_used_bytes gauge\n")
	fmt.Fprintf(w, "usher_host_memory_used_bytes %d\n", memoryUsed)

	fmt.Fprintf(w, "\n# HELP usher_host_memory_total_bytes Host memory installed\n")
	fmt.Fprintf(w, "# TYPE usher_host_memory_total_bytes gauge\n")
	fmt.Fprintf(w, "usher_host_memory_total_bytes %d\n", memoryTotal)

	// Names the hand-written section above already produced; the
	// gathered registry must not repeat them.
	written := map[string]bool{
		"usher_users_total":             true,
		"usher_libraries_total":         true,
		"usher_sync_runs":               true,
		"usher_store_healthy":           true,
		"usher_uptime_seconds":          true,
		"usher_host_cpu_percent":        true,
		"usher_host_memory_used_bytes":  true,
		"usher_host_memory_total_bytes": true,
	}

	// Append the collectors registered with the default registry
	fmt.Fprintf(w, "\n")

	metricFamilies, err := promclient.DefaultGatherer.Gather()
	if err != nil {
		fmt.Fprintf(w, "# Error gathering Prometheus metrics: %v\n", err)
		return
	}

	var buf bytes.Buffer
	encoder := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range metricFamilies {
		if written[mf.GetName()] {
			continue
		}
		if err := encoder.Encode(mf); err != nil {
			fmt.Fprintf(w, "# Error encoding metric %s: %v\n", mf.GetName(), err)
		}
	}

	w.Write(buf.Bytes())
}
