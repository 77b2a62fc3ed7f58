// Package dashboard holds the client-side application state: the three
// fetched inputs (snapshot, stored devices, owners), the merged view
// rebuilt whenever any of them changes, and the edit operations with
// their persistence semantics.
package dashboard

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/presence"
)

// FetchState tracks the top-level fetch lifecycle.
type FetchState string

const (
	StateIdle    FetchState = "idle"
	StateLoading FetchState = "loading"
	StateError   FetchState = "error"
)

// API is the backend surface the controller consumes. *client.Client
// implements it.
type API interface {
	GetPresenceSnapshot(ctx context.Context) (*presence.PresenceSnapshot, error)
	ListDeviceDetails(ctx context.Context) (map[string]presence.DeviceDetails, error)
	ListOwners(ctx context.Context) ([]presence.Owner, error)
	UpsertDevice(ctx context.Context, mac string, patch presence.DevicePatch) (presence.DeviceDetails, error)
	UpsertDeviceLabel(ctx context.Context, mac, label string) (presence.DeviceDetails, error)
	SetDeviceOwner(ctx context.Context, mac string, ownerID *int64) (presence.DeviceDetails, error)
}

// Controller owns the dashboard state. All state transitions happen
// under one mutex via whole-value replacement of the input maps; the
// merged view is always a pure function of the current inputs.
type Controller struct {
	api          API
	considerHome time.Duration

	mu      sync.Mutex
	gen     uint64 // refresh generation, bumped on every Refresh
	state   FetchState
	lastErr string

	snapshot *presence.PresenceSnapshot
	stored   map[string]presence.DeviceDetails
	owners   map[int64]presence.Owner
	merged   map[string]presence.Device
}

// NewController creates a controller with empty state.
func NewController(api API, considerHome time.Duration) *Controller {
	return &Controller{
		api:          api,
		considerHome: considerHome,
		state:        StateIdle,
		stored:       map[string]presence.DeviceDetails{},
		owners:       map[int64]presence.Owner{},
		merged:       map[string]presence.Device{},
	}
}

// Refresh fetches all three inputs and rebuilds the merged view. A
// refresh that finishes after a newer one started is discarded, so
// mashing refresh cannot apply stale data over fresh data. An owner
// list failure is non-fatal: the view degrades to no grouping.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.state = StateLoading
	c.lastErr = ""
	c.mu.Unlock()

	snap, err := c.api.GetPresenceSnapshot(ctx)
	if err != nil {
		return c.failRefresh(gen, err)
	}

	stored, err := c.api.ListDeviceDetails(ctx)
	if err != nil {
		return c.failRefresh(gen, err)
	}

	ownerList, err := c.api.ListOwners(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Owner list unavailable, continuing without grouping")
		ownerList = nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		log.Debug().Uint64("gen", gen).Msg("Discarding stale refresh result")
		return nil
	}
	c.snapshot = snap
	c.stored = stored
	c.owners = presence.OwnerMap(ownerList)
	c.state = StateIdle
	c.remerge()
	return nil
}

func (c *Controller) failRefresh(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.state = StateError
		c.lastErr = err.Error()
	}
	return err
}

// remerge rebuilds the merged view. Callers must hold the mutex.
func (c *Controller) remerge() {
	c.merged = presence.Merge(c.snapshot, c.stored, c.owners)
}

// SetLabel assigns a friendly label. The merged view is updated
// optimistically before persisting; on failure the optimistic value
// stays in place and the error is recorded. The next full refresh
// reconverges on stored truth.
func (c *Controller) SetLabel(ctx context.Context, mac, label string) error {
	c.mu.Lock()
	det := c.stored[mac]
	det.Mac = mac
	det.Label = &label
	c.applyStoredLocked(det)
	c.mu.Unlock()

	if _, err := c.api.UpsertDeviceLabel(ctx, mac, label); err != nil {
		c.recordError(err)
		return err
	}
	return nil
}

// SetOwner assigns (nil clears) a device's owner. Persist first, then
// apply the server's record; on failure the view is left untouched.
func (c *Controller) SetOwner(ctx context.Context, mac string, ownerID *int64) error {
	det, err := c.api.SetDeviceOwner(ctx, mac, ownerID)
	if err != nil {
		c.recordError(err)
		return err
	}

	c.mu.Lock()
	c.applyStoredLocked(det)
	c.mu.Unlock()
	return nil
}

// SetPresenceType classifies a device (nil untracks it). Same
// persist-first semantics as SetOwner.
func (c *Controller) SetPresenceType(ctx context.Context, mac string, pt *presence.PresenceType) error {
	patch := presence.DevicePatch{PresenceType: presence.OptNull[presence.PresenceType]()}
	if pt != nil {
		patch.PresenceType = presence.OptValue(*pt)
	}

	det, err := c.api.UpsertDevice(ctx, mac, patch)
	if err != nil {
		c.recordError(err)
		return err
	}

	c.mu.Lock()
	c.applyStoredLocked(det)
	c.mu.Unlock()
	return nil
}

// applyStoredLocked replaces one stored record via whole-map copy and
// rebuilds the merged view. Callers must hold the mutex.
func (c *Controller) applyStoredLocked(det presence.DeviceDetails) {
	next := make(map[string]presence.DeviceDetails, len(c.stored)+1)
	for mac, d := range c.stored {
		next[mac] = d
	}
	next[det.Mac] = det
	c.stored = next
	c.remerge()
}

func (c *Controller) recordError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastErr = err.Error()
	c.mu.Unlock()
}

// ClearError resets the error banner.
func (c *Controller) ClearError() {
	c.mu.Lock()
	if c.state == StateError {
		c.state = StateIdle
	}
	c.lastErr = ""
	c.mu.Unlock()
}

// State returns the fetch state and the current error banner text.
func (c *Controller) State() (FetchState, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.lastErr
}

// Devices returns a copy of the merged device view.
func (c *Controller) Devices() map[string]presence.Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]presence.Device, len(c.merged))
	for mac, d := range c.merged {
		out[mac] = d
	}
	return out
}

// Snapshot returns the last applied snapshot, or nil before the first
// successful refresh.
func (c *Controller) Snapshot() *presence.PresenceSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// OwnerPresence derives per-owner home/away groupings from the current
// merged view.
func (c *Controller) OwnerPresence(now time.Time) []presence.OwnerPresence {
	c.mu.Lock()
	defer c.mu.Unlock()
	var capturedAt time.Time
	if c.snapshot != nil {
		capturedAt = c.snapshot.CapturedAt
	}
	return presence.Derive(c.merged, c.owners, capturedAt, now, c.considerHome)
}

// Owners returns the current owner registry view.
func (c *Controller) Owners() []presence.Owner {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]presence.Owner, 0, len(c.owners))
	for _, o := range c.owners {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
