package metrics

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the registered collectors for sync, Plex and HTTP
// activity.
type Recorder struct {
	syncRunsTotal *prometheus.CounterVec
	syncDuration  *prometheus.HistogramVec
	usersImported prometheus.Counter
	usersRemoved  prometheus.Counter
	usersMatched  prometheus.Counter

	plexRequests *prometheus.CounterVec
	plexDuration *prometheus.HistogramVec

	users     prometheus.Gauge
	libraries prometheus.Gauge

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpBytes    *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with the
// default registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		syncRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usher_sync_runs_total",
				Help: "Completed sync runs by trigger and outcome",
			},
			[]string{"trigger", "status"},
		),
		syncDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usher_sync_run_duration_seconds",
				Help:    "Wall clock duration of sync runs",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"trigger"},
		),
		usersImported: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "usher_sync_users_imported_total",
				Help: "Users imported from the media server by sync runs",
			},
		),
		usersRemoved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "usher_sync_users_removed_total",
				Help: "Local users pruned because they vanished upstream",
			},
		),
		usersMatched: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "usher_sync_users_matched_total",
				Help: "Users already present on both sides during sync runs",
			},
		),
		plexRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usher_plex_requests_total",
				Help: "Requests issued to the Plex APIs by endpoint and status code",
			},
			[]string{"endpoint", "code"},
		),
		plexDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usher_plex_request_duration_seconds",
				Help:    "Plex API request latency by endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		users: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "usher_users",
				Help: "Tracked media server users, updated after each change",
			},
		),
		libraries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "usher_libraries",
				Help: "Cached library sections, updated after each scan",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usher_http_requests_total",
				Help: "HTTP requests served by the API",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "usher_http_request_duration_seconds",
				Help:    "HTTP request latency by endpoint",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "usher_http_request_bytes_total",
				Help: "Bytes moved through the API by direction",
			},
			[]string{"direction"},
		),
	}

	prometheus.MustRegister(r.syncRunsTotal)
	prometheus.MustRegister(r.syncDuration)
	prometheus.MustRegister(r.usersImported)
	prometheus.MustRegister(r.usersRemoved)
	prometheus.MustRegister(r.usersMatched)
	prometheus.MustRegister(r.plexRequests)
	prometheus.MustRegister(r.plexDuration)
	prometheus.MustRegister(r.users)
	prometheus.MustRegister(r.libraries)
	prometheus.MustRegister(r.httpRequests)
	prometheus.MustRegister(r.httpDuration)
	prometheus.MustRegister(r.httpBytes)

	return r
}

// RecordSyncRun records the outcome of a finished sync run
func (r *Recorder) RecordSyncRun(trigger, status string, durationSeconds float64) {
	r.syncRunsTotal.WithLabelValues(trigger, status).Inc()
	r.syncDuration.WithLabelValues(trigger).Observe(durationSeconds)
}

// RecordSyncCounts records the per-run reconciliation counters
func (r *Recorder) RecordSyncCounts(imported, removed, matched int) {
	r.usersImported.Add(float64(imported))
	r.usersRemoved.Add(float64(removed))
	r.usersMatched.Add(float64(matched))
}

// RecordPlexRequest records one request against the Plex APIs. The
// signature matches the observer hook on the Plex client config.
func (r *Recorder) RecordPlexRequest(endpoint string, status int, seconds float64) {
	r.plexRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", status)).Inc()
	r.plexDuration.WithLabelValues(endpoint).Observe(seconds)
}

// SetUserCount updates the user gauge
func (r *Recorder) SetUserCount(n int) {
	r.users.Set(float64(n))
}

// SetLibraryCount updates the library gauge
func (r *Recorder) SetLibraryCount(n int) {
	r.libraries.Set(float64(n))
}

// Middleware returns HTTP middleware that tracks request counts,
// latency and payload sizes.
func (r *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		endpoint := routeLabel(req)
		method := req.Method

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		timer := prometheus.NewTimer(r.httpDuration.WithLabelValues(method, endpoint))
		next.ServeHTTP(rw, req)
		timer.ObserveDuration()

		status := fmt.Sprintf("%d", rw.statusCode)
		r.httpRequests.WithLabelValues(method, endpoint, status).Inc()

		if req.ContentLength > 0 {
			r.httpBytes.WithLabelValues("request").Add(float64(req.ContentLength))
		}
		if rw.bytes > 0 {
			r.httpBytes.WithLabelValues("response").Add(float64(rw.bytes))
		}
	})
}

// routeLabel prefers the route template over the raw path so that
// /sync/runs/{id} stays a single series.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytes += int64(n)
	return n, err
}
