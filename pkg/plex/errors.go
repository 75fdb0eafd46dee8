package plex

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned by FromSettings when the connection
// settings have not been stored yet.
var ErrNotConfigured = errors.New("plex connection is not configured: set server_url and server_api_key")

// APIError reports a non-2xx answer from a Plex endpoint
type APIError struct {
	StatusCode int
	Endpoint   string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("plex: %s failed with status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("plex: %s failed with status %d: %s", e.Endpoint, e.StatusCode, body)
}

// IsNotFound reports whether the error is a 404 from a Plex endpoint
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the error is a 401 from a Plex
// endpoint, which means the token was rejected.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
