package notify

import (
	"context"

	"github.com/psantana5/usher/pkg/logging"
)

// Log writes events through the service logger. It is the fallback
// backend when nothing else is configured, so events are never
// silently dropped.
type Log struct {
	logger *logging.Logger
	min    Severity
}

// NewLog creates a log notifier. A nil logger falls back to a plain
// INFO logger on stdout.
func NewLog(logger *logging.Logger) *Log {
	return NewLogWithMinimum(logger, SeverityInfo)
}

// NewLogWithMinimum creates a log notifier that drops events below
// the given severity.
func NewLogWithMinimum(logger *logging.Logger, min Severity) *Log {
	if logger == nil {
		logger = logging.NewLogger(logging.INFO, false)
	}
	return &Log{logger: logger, min: min}
}

func (l *Log) Notify(ctx context.Context, e Event) error {
	if !e.Severity.AtLeast(l.min) {
		return nil
	}

	fields := map[string]interface{}{
		"severity": string(e.Severity),
	}
	if e.Message != "" {
		fields["detail"] = e.Message
	}
	if e.Run != nil {
		fields["run_id"] = e.Run.ID
		fields["sequence"] = e.Run.SequenceNumber
		fields["trigger"] = e.Run.Trigger
		fields["status"] = string(e.Run.Status)
	}

	switch e.Severity {
	case SeverityCritical:
		l.logger.Error(e.Title, fields)
	case SeverityWarning:
		l.logger.Warn(e.Title, fields)
	default:
		l.logger.Info(e.Title, fields)
	}

	return nil
}

func (l *Log) Name() string {
	return "log"
}
