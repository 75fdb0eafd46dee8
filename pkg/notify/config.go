package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psantana5/usher/pkg/logging"
)

// BackendConfig describes one notifier in the config file
type BackendConfig struct {
	Type  string `yaml:"type"`
	URL   string `yaml:"url,omitempty"`   // webhook and slack
	Level string `yaml:"level,omitempty"` // log: minimum severity
}

// Config is the notification config file: a list of backends.
//
//	- type: webhook
//	  url: https://alerts.internal/hook
//	- type: slack
//	  url: https://hooks.slack.com/services/...
//	- type: log
//	  level: warning
type Config []BackendConfig

// LoadConfig reads a notification config from a YAML file
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading notify config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing notify config: %w", err)
	}
	return cfg, nil
}

// FromConfig builds a notifier from the config file at path. An empty
// path or an empty file falls back to the log backend so events are
// never silently dropped.
func FromConfig(path string, logger *logging.Logger) (Notifier, error) {
	if path == "" {
		return NewLog(logger), nil
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return Build(cfg, logger)
}

// Build assembles a notifier from an already-parsed config
func Build(cfg Config, logger *logging.Logger) (Notifier, error) {
	var notifiers []Notifier

	for _, backend := range cfg {
		switch backend.Type {
		case "log":
			notifiers = append(notifiers, NewLogWithMinimum(logger, ParseSeverity(backend.Level)))
		case "webhook":
			if backend.URL == "" {
				return nil, fmt.Errorf("webhook backend requires url")
			}
			notifiers = append(notifiers, NewWebhook(backend.URL))
		case "slack":
			if backend.URL == "" {
				return nil, fmt.Errorf("slack backend requires url")
			}
			notifiers = append(notifiers, NewSlack(backend.URL))
		default:
			return nil, fmt.Errorf("unknown notify backend: %q", backend.Type)
		}
	}

	if len(notifiers) == 0 {
		return NewLog(logger), nil
	}
	if len(notifiers) == 1 {
		return notifiers[0], nil
	}
	return NewMulti(notifiers...), nil
}
