package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/psantana5/usher/pkg/logging"
	"github.com/psantana5/usher/pkg/models"
)

func sampleEvent() Event {
	return Event{
		Severity: SeverityCritical,
		Title:    "Sync run failed",
		Message:  "plex.tv answered status 503",
		Run: &models.SyncRun{
			ID:             "run-42",
			SequenceNumber: 7,
			Trigger:        models.TriggerManual,
			Status:         models.SyncRunFailed,
			Error:          "plex.tv answered status 503",
		},
	}
}

func TestWebhook_Notify(t *testing.T) {
	var received WebhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL)
	if wh.Name() != "webhook" {
		t.Errorf("expected name webhook, got %s", wh.Name())
	}

	if err := wh.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	if received.Severity != SeverityCritical {
		t.Errorf("expected severity critical, got %s", received.Severity)
	}
	if received.Title != "Sync run failed" {
		t.Errorf("unexpected title: %s", received.Title)
	}
	if received.Run == nil || received.Run.SequenceNumber != 7 {
		t.Errorf("expected run with sequence 7, got %+v", received.Run)
	}
	if received.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestWebhook_NotifyServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	wh := NewWebhook(server.URL)
	err := wh.Notify(context.Background(), sampleEvent())
	if err == nil {
		t.Fatal("expected error on 500 response")
	}
	if !strings.Contains(err.Error(), "500") {
		t.Errorf("expected status in error, got: %v", err)
	}
}

func TestSlack_Notify(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		buf.ReadFrom(r.Body)
		raw = buf.Bytes()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sl := NewSlack(server.URL)
	if sl.Name() != "slack" {
		t.Errorf("expected name slack, got %s", sl.Name())
	}

	if err := sl.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	var msg struct {
		Text   string `json:"text"`
		Blocks []struct {
			Type string `json:"type"`
			Text struct {
				Text string `json:"text"`
			} `json:"text"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decoding slack message: %v", err)
	}

	if !strings.Contains(msg.Text, "Sync run failed") {
		t.Errorf("expected title in fallback text, got %s", msg.Text)
	}
	if len(msg.Blocks) != 3 {
		t.Fatalf("expected 3 blocks (header, message, run), got %d", len(msg.Blocks))
	}
	if !strings.Contains(msg.Blocks[0].Text.Text, ":rotating_light:") {
		t.Errorf("expected critical emoji in header, got %s", msg.Blocks[0].Text.Text)
	}
	if !strings.Contains(msg.Blocks[2].Text.Text, "run-42") {
		t.Errorf("expected run id in details block, got %s", msg.Blocks[2].Text.Text)
	}
}

func TestLog_Notify(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.DEBUG, false)
	logger.SetOutput(&buf)

	l := NewLog(logger)
	if err := l.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "Sync run failed") {
		t.Errorf("expected title in output, got: %s", out)
	}
	if !strings.Contains(out, "run-42") {
		t.Errorf("expected run id in output, got: %s", out)
	}
}

func TestLog_NotifyMinimumSeverity(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.DEBUG, false)
	logger.SetOutput(&buf)

	l := NewLogWithMinimum(logger, SeverityWarning)
	info := Event{Severity: SeverityInfo, Title: "Sync completed"}
	if err := l.Notify(context.Background(), info); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("info event below threshold should be dropped, got: %s", buf.String())
	}

	if err := l.Notify(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Error("critical event should pass the threshold")
	}
}

type countingNotifier struct {
	calls int32
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, e Event) error {
	atomic.AddInt32(&c.calls, 1)
	return c.err
}

func (c *countingNotifier) Name() string { return "counting" }

func TestMulti_NotifyAllBackends(t *testing.T) {
	failing := &countingNotifier{err: errors.New("backend down")}
	ok1 := &countingNotifier{}
	ok2 := &countingNotifier{}

	m := NewMulti(ok1, failing, ok2)
	err := m.Notify(context.Background(), sampleEvent())

	if err == nil {
		t.Fatal("expected error from failing backend")
	}
	// A failing backend must not stop delivery to the others
	for i, c := range []*countingNotifier{ok1, failing, ok2} {
		if got := atomic.LoadInt32(&c.calls); got != 1 {
			t.Errorf("backend %d: expected 1 call, got %d", i, got)
		}
	}
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  string
	}{
		{
			name:     "empty config falls back to log",
			cfg:      Config{},
			wantName: "log",
		},
		{
			name:     "single backend returned unwrapped",
			cfg:      Config{{Type: "webhook", URL: "http://localhost:9999/hook"}},
			wantName: "webhook",
		},
		{
			name: "multiple backends wrapped in multi",
			cfg: Config{
				{Type: "log", Level: "warning"},
				{Type: "slack", URL: "http://localhost:9999/slack"},
			},
			wantName: "multi",
		},
		{
			name:    "webhook without url",
			cfg:     Config{{Type: "webhook"}},
			wantErr: "requires url",
		},
		{
			name:    "unknown backend named in error",
			cfg:     Config{{Type: "pager"}},
			wantErr: "pager",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := Build(tt.cfg, nil)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("expected %q in error, got: %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if n.Name() != tt.wantName {
				t.Errorf("expected %s, got %s", tt.wantName, n.Name())
			}
		})
	}
}

func TestFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notify.yaml")

	content := "- type: log\n  level: warning\n- type: webhook\n  url: http://alerts.internal/hook\n"
	if err := os.WriteFile(path, []byte(content), 0o660); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	n, err := FromConfig(path, nil)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}
	if n.Name() != "multi" {
		t.Errorf("expected multi notifier, got %s", n.Name())
	}

	// Empty path means the default log backend
	n, err = FromConfig("", nil)
	if err != nil {
		t.Fatalf("FromConfig with empty path failed: %v", err)
	}
	if n.Name() != "log" {
		t.Errorf("expected log fallback, got %s", n.Name())
	}

	if _, err := FromConfig(filepath.Join(dir, "missing.yaml"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}
