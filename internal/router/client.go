// Package router provides the client for the router presence backend,
// the external service that actually scans the network.
package router

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/presence"
)

// Client fetches presence snapshots from the router backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new router client. insecureTLS skips certificate
// verification (router backends commonly sit behind self-signed certs).
func NewClient(baseURL string, timeout time.Duration, insecureTLS bool) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if insecureTLS {
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Snapshot fetches the current presence snapshot.
func (c *Client) Snapshot(ctx context.Context) (*presence.PresenceSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/presence", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch presence snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorFromResponse(resp)
	}

	var snap presence.PresenceSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode presence snapshot: %w", err)
	}

	log.Debug().
		Time("captured_at", snap.CapturedAt).
		Int("home", len(snap.Home)).
		Int("away", len(snap.Away)).
		Int("unclaimed", len(snap.UnclaimedDevicesNeedingLabels)).
		Msg("Fetched presence snapshot")

	return &snap, nil
}

// errorFromResponse extracts a structured {error} body when one exists,
// falling back to a status-based message.
func errorFromResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var payload struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			return fmt.Errorf("router backend: %s", payload.Error)
		}
	}
	return fmt.Errorf("router backend returned status %d", resp.StatusCode)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
