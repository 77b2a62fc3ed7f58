package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/presenced/internal/presence"
)

func strPtr(s string) *string { return &s }

// fakeAPI is a scriptable API implementation. Snapshot calls can be
// gated on a channel to exercise interleaved refreshes.
type fakeAPI struct {
	mu        sync.Mutex
	snapshots []*presence.PresenceSnapshot
	snapIdx   int
	snapGate  []chan struct{} // optional per-call gate, nil entries pass through

	stored map[string]presence.DeviceDetails
	owners []presence.Owner

	ownersErr error
	upsertErr error
	setOwnErr error
}

func (f *fakeAPI) GetPresenceSnapshot(ctx context.Context) (*presence.PresenceSnapshot, error) {
	f.mu.Lock()
	i := f.snapIdx
	f.snapIdx++
	f.mu.Unlock()
	if i < len(f.snapGate) && f.snapGate[i] != nil {
		<-f.snapGate[i]
	}
	if i >= len(f.snapshots) {
		i = len(f.snapshots) - 1
	}
	return f.snapshots[i], nil
}

func (f *fakeAPI) snapshotCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapIdx
}

func (f *fakeAPI) ListDeviceDetails(ctx context.Context) (map[string]presence.DeviceDetails, error) {
	out := make(map[string]presence.DeviceDetails, len(f.stored))
	for mac, det := range f.stored {
		out[mac] = det
	}
	return out, nil
}

func (f *fakeAPI) ListOwners(ctx context.Context) ([]presence.Owner, error) {
	if f.ownersErr != nil {
		return nil, f.ownersErr
	}
	return f.owners, nil
}

func (f *fakeAPI) UpsertDevice(ctx context.Context, mac string, patch presence.DevicePatch) (presence.DeviceDetails, error) {
	if f.upsertErr != nil {
		return presence.DeviceDetails{}, f.upsertErr
	}
	det := f.stored[mac]
	det.Mac = mac
	det = patch.Apply(det)
	if f.stored == nil {
		f.stored = map[string]presence.DeviceDetails{}
	}
	// Persist like the real backend so later partial updates see it.
	f.stored[mac] = det
	return det, nil
}

func (f *fakeAPI) UpsertDeviceLabel(ctx context.Context, mac, label string) (presence.DeviceDetails, error) {
	return f.UpsertDevice(ctx, mac, presence.DevicePatch{Label: presence.OptValue(label)})
}

func (f *fakeAPI) SetDeviceOwner(ctx context.Context, mac string, ownerID *int64) (presence.DeviceDetails, error) {
	if f.setOwnErr != nil {
		return presence.DeviceDetails{}, f.setOwnErr
	}
	patch := presence.DevicePatch{OwnerID: presence.OptNull[int64]()}
	if ownerID != nil {
		patch.OwnerID = presence.OptValue(*ownerID)
	}
	return f.UpsertDevice(ctx, mac, patch)
}

func simpleSnapshot(macs ...string) *presence.PresenceSnapshot {
	snap := &presence.PresenceSnapshot{CapturedAt: time.Now()}
	for _, mac := range macs {
		snap.Home = append(snap.Home, presence.Device{Mac: mac, Display: strPtr("dev-" + mac), Connected: true})
	}
	return snap
}

func TestRefresh_BuildsMergedView(t *testing.T) {
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1", "m2")},
		stored: map[string]presence.DeviceDetails{
			"m1": {Mac: "m1", Label: strPtr("phone")},
			"m9": {Mac: "m9", Label: strPtr("offline box")},
		},
		owners: []presence.Owner{{ID: 1, Name: "House", Kind: presence.OwnerKindHome}},
	}
	c := NewController(api, 5*time.Minute)

	require.NoError(t, c.Refresh(context.Background()))

	state, errMsg := c.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, errMsg)

	devices := c.Devices()
	require.Len(t, devices, 3)
	assert.Equal(t, "phone", *devices["m1"].Label)
	assert.False(t, devices["m9"].Connected)
}

func TestRefresh_OwnerFailureDegrades(t *testing.T) {
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
		ownersErr: errors.New("owner backend down"),
	}
	c := NewController(api, 5*time.Minute)

	require.NoError(t, c.Refresh(context.Background()))

	state, _ := c.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, c.Owners())
	assert.Len(t, c.Devices(), 1)
}

func TestRefresh_StaleResultDiscarded(t *testing.T) {
	gate := make(chan struct{})
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{
			simpleSnapshot("stale"),
			simpleSnapshot("fresh"),
		},
		snapGate: []chan struct{}{gate, nil},
		stored:   map[string]presence.DeviceDetails{},
	}
	c := NewController(api, 5*time.Minute)

	// First refresh blocks inside the snapshot fetch.
	first := make(chan error, 1)
	go func() { first <- c.Refresh(context.Background()) }()

	// Wait for the first call to reach the gate, then run a second
	// refresh to completion.
	require.Eventually(t, func() bool { return api.snapshotCalls() >= 1 }, time.Second, time.Millisecond)
	require.NoError(t, c.Refresh(context.Background()))

	// Release the first refresh; its result must be discarded.
	close(gate)
	require.NoError(t, <-first)

	devices := c.Devices()
	_, hasFresh := devices["fresh"]
	_, hasStale := devices["stale"]
	assert.True(t, hasFresh)
	assert.False(t, hasStale)
}

func TestSetLabel_OptimisticKeptOnFailure(t *testing.T) {
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
	}
	c := NewController(api, 5*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	// Successful save: merged view carries the submitted value.
	require.NoError(t, c.SetLabel(context.Background(), "m1", "Alice's phone"))
	assert.Equal(t, "Alice's phone", *c.Devices()["m1"].Label)

	// Failed save: the optimistic value stays and the error is
	// recorded. This is the documented trade-off, not a rollback bug.
	api.upsertErr = errors.New("backend down")
	err := c.SetLabel(context.Background(), "m1", "renamed")
	require.Error(t, err)

	assert.Equal(t, "renamed", *c.Devices()["m1"].Label)
	state, errMsg := c.State()
	assert.Equal(t, StateError, state)
	assert.Contains(t, errMsg, "backend down")
}

func TestSetOwner_FailureLeavesViewUntouched(t *testing.T) {
	aliceID := int64(2)
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
		owners:    []presence.Owner{{ID: aliceID, Name: "Alice", Kind: presence.OwnerKindPerson}},
		setOwnErr: errors.New("backend down"),
	}
	c := NewController(api, 5*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	err := c.SetOwner(context.Background(), "m1", &aliceID)
	require.Error(t, err)

	assert.Nil(t, c.Devices()["m1"].OwnerID)
	state, _ := c.State()
	assert.Equal(t, StateError, state)
}

func TestSetOwner_AppliesServerRecord(t *testing.T) {
	aliceID := int64(2)
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
		owners:    []presence.Owner{{ID: aliceID, Name: "Alice", Kind: presence.OwnerKindPerson}},
	}
	c := NewController(api, 5*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.SetOwner(context.Background(), "m1", &aliceID))

	d := c.Devices()["m1"]
	require.NotNil(t, d.OwnerID)
	assert.Equal(t, aliceID, *d.OwnerID)
	// Denormalized fields are recomputed from the registry, not trusted
	// from any cached value.
	require.NotNil(t, d.OwnerName)
	assert.Equal(t, "Alice", *d.OwnerName)
}

func TestSetPresenceType_DerivesHome(t *testing.T) {
	aliceID := int64(2)
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
		owners:    []presence.Owner{{ID: aliceID, Name: "Alice", Kind: presence.OwnerKindPerson}},
	}
	c := NewController(api, 5*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	require.NoError(t, c.SetOwner(context.Background(), "m1", &aliceID))
	pt := presence.PresencePrimary
	require.NoError(t, c.SetPresenceType(context.Background(), "m1", &pt))

	out := c.OwnerPresence(time.Now())
	require.Len(t, out, 1)
	assert.True(t, out[0].IsHome)
	assert.Len(t, out[0].Primary, 1)

	// Untracking removes the device from the buckets again.
	require.NoError(t, c.SetPresenceType(context.Background(), "m1", nil))
	out = c.OwnerPresence(time.Now())
	assert.False(t, out[0].IsHome)
	assert.Empty(t, out[0].All)
}

func TestClearError(t *testing.T) {
	api := &fakeAPI{
		snapshots: []*presence.PresenceSnapshot{simpleSnapshot("m1")},
		stored:    map[string]presence.DeviceDetails{},
	}
	c := NewController(api, 5*time.Minute)
	require.NoError(t, c.Refresh(context.Background()))

	api.upsertErr = errors.New("boom")
	_ = c.SetLabel(context.Background(), "m1", "x")

	c.ClearError()
	state, errMsg := c.State()
	assert.Equal(t, StateIdle, state)
	assert.Empty(t, errMsg)
}
