// Package plex talks to a Plex Media Server and to the plex.tv account
// API using token authentication.
package plex

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultAccountURL is the public plex.tv endpoint for account operations
const DefaultAccountURL = "https://plex.tv"

// Config holds the connection parameters for a Plex client
type Config struct {
	ServerURL  string
	AccountURL string
	Token      string
	Timeout    time.Duration

	// InsecureSkipVerify disables certificate verification for media
	// servers running with self-signed certificates.
	InsecureSkipVerify bool

	// Observer, when set, is called after every request with the
	// endpoint label, the status code (0 on transport failure) and the
	// elapsed seconds. Used to feed request metrics without coupling
	// this package to a metrics backend.
	Observer func(endpoint string, status int, seconds float64)
}

// Client manages communication with the media server and plex.tv
type Client struct {
	serverURL  string
	accountURL string
	token      string
	httpClient *http.Client
	observe    func(endpoint string, status int, seconds float64)
}

// NewClient creates a new Plex client
func NewClient(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("plex: server URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("plex: token is required")
	}

	accountURL := cfg.AccountURL
	if accountURL == "" {
		accountURL = DefaultAccountURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.InsecureSkipVerify {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		accountURL: strings.TrimRight(accountURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		observe:    cfg.Observer,
	}, nil
}

// SetObserver attaches a request observer to a client built elsewhere,
// such as one from FromSettings.
func (c *Client) SetObserver(fn func(endpoint string, status int, seconds float64)) {
	c.observe = fn
}

// SettingsSource provides the stored connection settings. The data
// store satisfies this interface.
type SettingsSource interface {
	GetSettings(keys ...string) (map[string]string, error)
}

// FromSettings builds a client from the stored server_url and
// server_api_key settings. Returns ErrNotConfigured when either
// is missing.
func FromSettings(src SettingsSource) (*Client, error) {
	values, err := src.GetSettings("server_url", "server_api_key")
	if err != nil {
		return nil, fmt.Errorf("reading plex settings: %w", err)
	}

	serverURL := values["server_url"]
	token := values["server_api_key"]
	if serverURL == "" || token == "" {
		return nil, ErrNotConfigured
	}

	return NewClient(Config{ServerURL: serverURL, Token: token})
}

// do issues a request against base+path with the Plex headers set. The
// label names the endpoint for the observer with path parameters
// collapsed, so per-user URLs do not fan out into separate series.
func (c *Client) do(ctx context.Context, method, base, path, label string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, base+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Token", c.token)
	req.Header.Set("X-Plex-Product", "usher")
	req.Header.Set("X-Plex-Client-Identifier", "usher")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.observe != nil {
		status := 0
		if err == nil {
			status = resp.StatusCode
		}
		c.observe(label, status, time.Since(start).Seconds())
	}
	return resp, err
}

// decodeXML reads and decodes the response body. Non-2xx answers become
// an *APIError carrying the endpoint and body.
func decodeXML(resp *http.Response, endpoint string, v interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	if v == nil {
		return nil
	}
	if err := xml.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("plex: parsing %s response: %w", endpoint, err)
	}
	return nil
}

// Sections lists the library sections of the media server
func (c *Client) Sections(ctx context.Context) ([]Directory, error) {
	resp, err := c.do(ctx, http.MethodGet, c.serverURL, "/library/sections", "/library/sections")
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}

	var container sectionsContainer
	if err := decodeXML(resp, "/library/sections", &container); err != nil {
		return nil, err
	}
	return container.Directories, nil
}

// Identity fetches the media server identity document. The endpoint
// answers without authentication, so this only proves reachability.
func (c *Client) Identity(ctx context.Context) (*ServerIdentity, error) {
	resp, err := c.do(ctx, http.MethodGet, c.serverURL, "/identity", "/identity")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}

	var identity ServerIdentity
	if err := decodeXML(resp, "/identity", &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Verify checks that the server is reachable and the token is accepted
// by hitting an endpoint that requires authentication.
func (c *Client) Verify(ctx context.Context) error {
	_, err := c.Sections(ctx)
	return err
}
