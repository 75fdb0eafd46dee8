package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/psantana5/usher/pkg/models"
	"github.com/psantana5/usher/pkg/store"
)

func TestMetricsEndpoint(t *testing.T) {
	st := store.NewMemoryStore()
	if err := st.CreateUser(&models.User{Username: "alice", PlexID: "p1"}); err != nil {
		t.Fatalf("Failed to seed user: %v", err)
	}
	run := &models.SyncRun{Trigger: models.TriggerManual, Status: models.SyncRunCompleted}
	if err := st.CreateSyncRun(run); err != nil {
		t.Fatalf("Failed to seed run: %v", err)
	}

	// The recorder registers with the default registry, so build it once
	// and scrape it through the exporter.
	recorder := NewRecorder()
	recorder.RecordSyncRun(models.TriggerManual, string(models.SyncRunCompleted), 1.5)
	recorder.RecordSyncCounts(2, 1, 5)
	recorder.RecordPlexRequest("/api/users", 200, 0.05)
	recorder.SetUserCount(1)
	recorder.SetLibraryCount(4)

	handler := recorder.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	req := httptest.NewRequest("GET", "/users", strings.NewReader(`{"probe":true}`))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	exporter := NewExporter(st)

	w := httptest.NewRecorder()
	exporter.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)
	metricsOutput := string(body)

	tests := []struct {
		metric        string
		shouldContain bool
	}{
		{"usher_users_total 1", true},
		{"usher_libraries_total 0", true},
		{`usher_sync_runs{status="completed"} 1`, true},
		{`usher_sync_runs{status="pending"} 0`, true},
		{"usher_store_healthy 1", true},
		{"usher_uptime_seconds", true},
		{"usher_host_cpu_percent", true},
		{"usher_host_memory_used_bytes", true},
		// Registered collectors appended from the default registry
		{"usher_sync_runs_total", true},
		{"usher_sync_run_duration_seconds", true},
		{"usher_sync_users_imported_total 2", true},
		{"usher_users 1", true},
		{"usher_libraries 4", true},
		{"usher_http_requests_total", true},
		{`usher_plex_requests_total{code="200",endpoint="/api/users"} 1`, true},
		{`usher_http_request_bytes_total{direction="request"} 14`, true},
		{`usher_http_request_bytes_total{direction="response"} 15`, true},
	}

	for _, tt := range tests {
		if strings.Contains(metricsOutput, tt.metric) != tt.shouldContain {
			t.Errorf("Expected metric %q present=%v in output", tt.metric, tt.shouldContain)
		}
	}

	if !strings.Contains(metricsOutput, `usher_sync_runs_total{status="completed",trigger="manual"} 1`) {
		t.Error("Sync run counter not labelled correctly")
	}
	if !strings.Contains(metricsOutput, `status="418"`) {
		t.Error("HTTP middleware should record the handler status code")
	}
}
