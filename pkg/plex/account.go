package plex

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Users lists the shared and home users attached to the Plex account
func (c *Client) Users(ctx context.Context) ([]User, error) {
	resp, err := c.do(ctx, http.MethodGet, c.accountURL, "/api/users", "/api/users")
	if err != nil {
		return nil, fmt.Errorf("failed to list account users: %w", err)
	}

	var container usersContainer
	if err := decodeXML(resp, "/api/users", &container); err != nil {
		return nil, err
	}
	return container.Users, nil
}

// RemoveFriend revokes a shared user's access to the account
func (c *Client) RemoveFriend(ctx context.Context, id string) error {
	endpoint := "/api/friends/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodDelete, c.accountURL, endpoint, "/api/friends/{id}")
	if err != nil {
		return fmt.Errorf("failed to remove friend: %w", err)
	}
	return decodeXML(resp, endpoint, nil)
}

// RemoveHomeUser removes a managed user from the Plex Home
func (c *Client) RemoveHomeUser(ctx context.Context, id string) error {
	endpoint := "/api/home/users/" + url.PathEscape(id)
	resp, err := c.do(ctx, http.MethodDelete, c.accountURL, endpoint, "/api/home/users/{id}")
	if err != nil {
		return fmt.Errorf("failed to remove home user: %w", err)
	}
	return decodeXML(resp, endpoint, nil)
}

// RemoveUser revokes access for a user wherever they appear. A shared
// user is not a home user and vice versa, so one of the two calls is
// expected to answer 404; that is not an error.
func (c *Client) RemoveUser(ctx context.Context, id string) error {
	if err := c.RemoveFriend(ctx, id); err != nil && !IsNotFound(err) {
		return err
	}
	if err := c.RemoveHomeUser(ctx, id); err != nil && !IsNotFound(err) {
		return err
	}
	return nil
}
