package models

import (
	"strings"
	"testing"
)

func TestValidateSetting(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr bool
	}{
		{"valid http url", SettingServerURL, "http://plex.local:32400", false},
		{"valid https url", SettingServerURL, "https://plex.example.com", false},
		{"url without scheme", SettingServerURL, "plex.local:32400", true},
		{"url with bad scheme", SettingServerURL, "ftp://plex.local", true},
		{"empty api key", SettingServerAPIKey, "", true},
		{"api key", SettingServerAPIKey, "xyzzy-token", false},
		{"free-form key", SettingServerName, "Living Room Plex", false},
		{"empty key", "", "value", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSetting(tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSetting(%q, %q) error = %v, wantErr %v",
					tt.key, tt.value, err, tt.wantErr)
			}
		})
	}
}

func TestSettingMasked(t *testing.T) {
	s := Setting{Key: SettingServerAPIKey, Value: "supersecrettoken"}
	masked := s.Masked()
	if masked.Value == s.Value {
		t.Error("secret value not masked")
	}
	if !strings.HasPrefix(masked.Value, "supe") {
		t.Errorf("mask should keep a short prefix, got %q", masked.Value)
	}

	plain := Setting{Key: SettingServerURL, Value: "http://plex.local"}
	if plain.Masked().Value != plain.Value {
		t.Error("non-secret value must not be masked")
	}
}

func TestAccountPassword(t *testing.T) {
	var a Account
	if err := a.SetPassword("short"); err == nil {
		t.Error("expected error for short password")
	}
	if err := a.SetPassword("correct horse battery"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if a.PasswordHash == "correct horse battery" {
		t.Error("password stored in plaintext")
	}
	if !a.CheckPassword("correct horse battery") {
		t.Error("CheckPassword rejected the right password")
	}
	if a.CheckPassword("wrong") {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestUserValidate(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", User{Username: "alice", PlexID: "123", Email: "alice@example.com"}, false},
		{"no email is fine", User{Username: "bob", PlexID: "456"}, false},
		{"missing username", User{PlexID: "123"}, true},
		{"missing plex id", User{Username: "carol"}, true},
		{"bad email", User{Username: "dave", PlexID: "789", Email: "not-an-email"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
