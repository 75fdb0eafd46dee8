// Package notify delivers operational alerts raised by the daemon,
// such as failed sync runs, to configured backends.
package notify

import (
	"context"
	"time"

	"github.com/psantana5/usher/pkg/models"
)

// Severity indicates how urgent the event is
type Severity string

const (
	SeverityInfo     Severity = "info"     // FYI, no action needed
	SeverityWarning  Severity = "warning"  // May need attention
	SeverityCritical Severity = "critical" // Requires immediate action
)

// severityRank orders severities for threshold filtering
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// AtLeast reports whether the severity meets the given threshold
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// ParseSeverity maps a config string to a severity, defaulting to info
func ParseSeverity(s string) Severity {
	switch s {
	case string(SeverityWarning), "warn":
		return SeverityWarning
	case string(SeverityCritical):
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// Event represents something an operator should hear about
type Event struct {
	Severity  Severity        // How urgent is this?
	Title     string          // Short summary (one line)
	Message   string          // Detailed explanation
	Run       *models.SyncRun // The sync run involved, if any
	Timestamp time.Time       // When it happened; zero means now
}

// Notifier is the interface for alert backends
type Notifier interface {
	// Notify sends the event. Implementations should respect context
	// cancellation.
	Notify(ctx context.Context, e Event) error

	// Name returns the backend type for logging
	Name() string
}
