package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/psantana5/usher/pkg/models"
)

// Webhook POSTs events as JSON to an arbitrary HTTP endpoint
type Webhook struct {
	url    string
	client *http.Client
}

// WebhookPayload is the JSON body sent to the endpoint
type WebhookPayload struct {
	Severity  Severity        `json:"severity"`
	Title     string          `json:"title"`
	Message   string          `json:"message,omitempty"`
	Run       *models.SyncRun `json:"run,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewWebhook creates a webhook notifier for the given URL
func NewWebhook(url string) *Webhook {
	return &Webhook{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewWebhookWithClient creates a webhook notifier with a custom HTTP client (for testing)
func NewWebhookWithClient(url string, client *http.Client) *Webhook {
	return &Webhook{url: url, client: client}
}

func (w *Webhook) Notify(ctx context.Context, e Event) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	payload := WebhookPayload{
		Severity:  e.Severity,
		Title:     e.Title,
		Message:   e.Message,
		Run:       e.Run,
		Timestamp: ts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

func (w *Webhook) Name() string {
	return "webhook"
}
