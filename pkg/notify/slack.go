package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Slack posts events to a Slack incoming webhook using Block Kit
type Slack struct {
	webhookURL string
	client     *http.Client
}

// NewSlack creates a Slack notifier for the given incoming webhook URL
func NewSlack(webhookURL string) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewSlackWithClient creates a Slack notifier with a custom HTTP client (for testing)
func NewSlackWithClient(webhookURL string, client *http.Client) *Slack {
	return &Slack{webhookURL: webhookURL, client: client}
}

type slackMessage struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks,omitempty"`
}

type slackBlock struct {
	Type string     `json:"type"`
	Text *slackText `json:"text,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

var severityEmoji = map[Severity]string{
	SeverityInfo:     ":information_source:",
	SeverityWarning:  ":warning:",
	SeverityCritical: ":rotating_light:",
}

func (s *Slack) Notify(ctx context.Context, e Event) error {
	emoji := severityEmoji[e.Severity]
	if emoji == "" {
		emoji = ":bell:"
	}

	msg := slackMessage{
		Text: fmt.Sprintf("%s %s", emoji, e.Title),
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackText{Type: "mrkdwn", Text: fmt.Sprintf("%s *%s*", emoji, e.Title)},
			},
		},
	}

	if e.Message != "" {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: e.Message},
		})
	}

	if e.Run != nil {
		var details bytes.Buffer
		fmt.Fprintf(&details, "• *run*: %s (#%d)\n", e.Run.ID, e.Run.SequenceNumber)
		fmt.Fprintf(&details, "• *trigger*: %s\n", e.Run.Trigger)
		fmt.Fprintf(&details, "• *status*: %s\n", e.Run.Status)
		fmt.Fprintf(&details, "• *imported*: %d, *removed*: %d, *matched*: %d\n",
			e.Run.Imported, e.Run.Removed, e.Run.Matched)
		if e.Run.Error != "" {
			fmt.Fprintf(&details, "• *error*: %s\n", e.Run.Error)
		}
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type: "section",
			Text: &slackText{Type: "mrkdwn", Text: details.String()},
		})
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending to slack: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return nil
}

func (s *Slack) Name() string {
	return "slack"
}
