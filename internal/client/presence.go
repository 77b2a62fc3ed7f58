package client

import (
	"context"
	"net/http"

	"github.com/dokzlo13/presenced/internal/presence"
)

// GetPresenceSnapshot fetches the latest presence snapshot.
func (c *Client) GetPresenceSnapshot(ctx context.Context) (*presence.PresenceSnapshot, error) {
	var snap presence.PresenceSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/presence", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetOwnerPresence fetches the server-side home/away derivation.
func (c *Client) GetOwnerPresence(ctx context.Context) ([]presence.OwnerPresence, error) {
	var out []presence.OwnerPresence
	if err := c.do(ctx, http.MethodGet, "/api/presence/owners", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Refresh asks the daemon to poll the router immediately.
func (c *Client) Refresh(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/presence/refresh", nil, nil)
}
