package plex

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sectionsXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <Directory key="1" type="movie" title="Movies" agent="tv.plex.agents.movie" />
  <Directory key="2" type="show" title="TV Shows" agent="tv.plex.agents.series" />
</MediaContainer>`

const usersXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="2">
  <User id="101" uuid="aaaa-1111" title="Alice" username="alice" email="alice@example.com" thumb="https://plex.tv/users/101/avatar" home="0" />
  <User id="102" uuid="bbbb-2222" title="Kid" username="" email="" thumb="" home="1" />
</MediaContainer>`

const identityXML = `<?xml version="1.0" encoding="UTF-8"?>
<MediaContainer size="0" claimed="1" machineIdentifier="abc123" version="1.40.0.7998" />`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/library/sections", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Plex-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(sectionsXML))
	})
	mux.HandleFunc("/identity", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(identityXML))
	})
	mux.HandleFunc("/api/users", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.Write([]byte(usersXML))
	})
	mux.HandleFunc("/api/friends/101", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/home/users/102", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	client, err := NewClient(Config{
		ServerURL:  srv.URL + "/",
		AccountURL: srv.URL,
		Token:      "secret",
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client
}

func TestClientValidation(t *testing.T) {
	if _, err := NewClient(Config{Token: "x"}); err == nil {
		t.Error("Expected error for missing server URL")
	}
	if _, err := NewClient(Config{ServerURL: "http://plex.local"}); err == nil {
		t.Error("Expected error for missing token")
	}
}

func TestSections(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := newTestClient(t, srv)
	sections, err := client.Sections(context.Background())
	if err != nil {
		t.Fatalf("Failed to list sections: %v", err)
	}
	if len(sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(sections))
	}
	if sections[0].Key != "1" || sections[0].Title != "Movies" || sections[0].Type != "movie" {
		t.Errorf("Unexpected section: %+v", sections[0])
	}
}

func TestSectionsBadToken(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(Config{ServerURL: srv.URL, AccountURL: srv.URL, Token: "wrong"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	_, err = client.Sections(context.Background())
	if err == nil {
		t.Fatal("Expected error for rejected token")
	}
	if !IsUnauthorized(err) {
		t.Errorf("Expected unauthorized error, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T", err)
	}
	if apiErr.Endpoint != "/library/sections" {
		t.Errorf("Unexpected endpoint in error: %s", apiErr.Endpoint)
	}

	if err := client.Verify(context.Background()); err == nil {
		t.Error("Verify should fail for rejected token")
	}
}

func TestIdentity(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := newTestClient(t, srv)
	identity, err := client.Identity(context.Background())
	if err != nil {
		t.Fatalf("Failed to fetch identity: %v", err)
	}
	if identity.MachineIdentifier != "abc123" {
		t.Errorf("Unexpected machine identifier: %s", identity.MachineIdentifier)
	}
	if !identity.Claimed {
		t.Error("Expected claimed server")
	}
}

func TestAccountUsers(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := newTestClient(t, srv)
	users, err := client.Users(context.Background())
	if err != nil {
		t.Fatalf("Failed to list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].ID != "101" || users[0].DisplayName() != "alice" || users[0].Home {
		t.Errorf("Unexpected user: %+v", users[0])
	}
	if users[1].DisplayName() != "Kid" {
		t.Errorf("Managed user should fall back to title, got %s", users[1].DisplayName())
	}
	if !users[1].Home {
		t.Error("Expected home flag on managed user")
	}
}

func TestRemoveUser(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	client := newTestClient(t, srv)

	// Shared user: friend delete succeeds, home delete answers 404
	if err := client.RemoveUser(context.Background(), "101"); err != nil {
		t.Errorf("RemoveUser for shared user failed: %v", err)
	}

	// Home user: friend delete answers 404, home delete succeeds with 204
	if err := client.RemoveUser(context.Background(), "102"); err != nil {
		t.Errorf("RemoveUser for home user failed: %v", err)
	}

	// Unknown user: both endpoints answer 404, still not an error
	if err := client.RemoveUser(context.Background(), "999"); err != nil {
		t.Errorf("RemoveUser for unknown user failed: %v", err)
	}

	// The individual calls do surface the 404
	if err := client.RemoveFriend(context.Background(), "999"); !IsNotFound(err) {
		t.Errorf("Expected not-found error, got %v", err)
	}
}

func TestObserver(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	type observation struct {
		endpoint string
		status   int
	}
	var seen []observation

	client, err := NewClient(Config{
		ServerURL:  srv.URL,
		AccountURL: srv.URL,
		Token:      "secret",
		Observer: func(endpoint string, status int, seconds float64) {
			if seconds < 0 {
				t.Errorf("Negative duration for %s", endpoint)
			}
			seen = append(seen, observation{endpoint, status})
		},
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	if _, err := client.Sections(context.Background()); err != nil {
		t.Fatalf("Failed to list sections: %v", err)
	}
	if err := client.RemoveFriend(context.Background(), "999"); !IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}

	want := []observation{
		{"/library/sections", http.StatusOK},
		{"/api/friends/{id}", http.StatusNotFound},
	}
	if len(seen) != len(want) {
		t.Fatalf("Expected %d observations, got %d: %+v", len(want), len(seen), seen)
	}
	for i, w := range want {
		if seen[i] != w {
			t.Errorf("Observation %d: got %+v, want %+v", i, seen[i], w)
		}
	}
}

type fakeSettings map[string]string

func (f fakeSettings) GetSettings(keys ...string) (map[string]string, error) {
	out := make(map[string]string)
	for _, k := range keys {
		if v, ok := f[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func TestFromSettings(t *testing.T) {
	if _, err := FromSettings(fakeSettings{}); err != ErrNotConfigured {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
	if _, err := FromSettings(fakeSettings{"server_url": "http://plex.local:32400"}); err != ErrNotConfigured {
		t.Errorf("Expected ErrNotConfigured without token, got %v", err)
	}

	client, err := FromSettings(fakeSettings{
		"server_url":     "http://plex.local:32400/",
		"server_api_key": "secret",
	})
	if err != nil {
		t.Fatalf("FromSettings failed: %v", err)
	}
	if client.serverURL != "http://plex.local:32400" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.serverURL)
	}
}
