package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Well-known setting keys
const (
	SettingServerURL    = "server_url"
	SettingServerAPIKey = "server_api_key"
	SettingServerName   = "server_name"
)

// secretSettings lists keys whose values are masked in list responses
var secretSettings = map[string]bool{
	SettingServerAPIKey: true,
}

// Setting represents one configuration row
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsSecret returns true if the setting value must be masked when listed
func (s Setting) IsSecret() bool {
	return secretSettings[s.Key]
}

// Masked returns a copy safe to expose in list responses
func (s Setting) Masked() Setting {
	if !s.IsSecret() || s.Value == "" {
		return s
	}
	out := s
	if len(out.Value) > 4 {
		out.Value = out.Value[:4] + strings.Repeat("*", len(out.Value)-4)
	} else {
		out.Value = "****"
	}
	return out
}

// ValidateSetting checks a key/value pair before it is stored
func ValidateSetting(key, value string) error {
	if key == "" {
		return errors.New("setting key is required")
	}
	switch key {
	case SettingServerURL:
		u, err := url.Parse(value)
		if err != nil {
			return fmt.Errorf("invalid server url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("server url must be http or https, got %q", u.Scheme)
		}
		if u.Host == "" {
			return errors.New("server url is missing a host")
		}
	case SettingServerAPIKey:
		if value == "" {
			return errors.New("server api key cannot be empty")
		}
	}
	return nil
}

// Library represents a cached media library section
type Library struct {
	Key       string    `json:"key"`
	Title     string    `json:"title"`
	Type      string    `json:"type"` // movie, show, artist, photo
	Agent     string    `json:"agent,omitempty"`
	ScannedAt time.Time `json:"scanned_at"`
}
