package poller

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/presence"
)

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func typePtr(t presence.PresenceType) *presence.PresenceType { return &t }

type fakeSource struct {
	mu   sync.Mutex
	snap *presence.PresenceSnapshot
}

func (f *fakeSource) Snapshot(ctx context.Context) (*presence.PresenceSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Fresh copy per call, the poller owns what it applies.
	cp := *f.snap
	return &cp, nil
}

func (f *fakeSource) set(snap *presence.PresenceSnapshot) {
	f.mu.Lock()
	f.snap = snap
	f.mu.Unlock()
}

type fakeMetadata struct {
	devices []presence.DeviceDetails
	owners  []presence.Owner
}

func (f *fakeMetadata) ListDevices(ctx context.Context) ([]presence.DeviceDetails, error) {
	return f.devices, nil
}

func (f *fakeMetadata) ListOwners(ctx context.Context) ([]presence.Owner, error) {
	return f.owners, nil
}

func aliceSetup() (*fakeSource, *fakeMetadata) {
	src := &fakeSource{snap: &presence.PresenceSnapshot{
		CapturedAt: time.Now(),
		Home: []presence.Device{
			{Mac: "m1", Display: strPtr("phone"), Connected: true},
		},
	}}
	meta := &fakeMetadata{
		devices: []presence.DeviceDetails{
			{Mac: "m1", Label: strPtr("Alice's phone"), OwnerID: int64Ptr(2), PresenceType: typePtr(presence.PresencePrimary)},
		},
		owners: []presence.Owner{
			{ID: presence.SystemOwnerID, Name: "House", Kind: presence.OwnerKindHome},
			{ID: 2, Name: "Alice", Kind: presence.OwnerKindPerson},
		},
	}
	return src, meta
}

func TestPoll_AppliesSnapshotAndUnclaimed(t *testing.T) {
	src, meta := aliceSetup()
	src.set(&presence.PresenceSnapshot{
		CapturedAt: time.Now(),
		Home: []presence.Device{
			{Mac: "m1", Display: strPtr("phone"), Connected: true},
			{Mac: "m2", Display: strPtr("mystery"), Connected: true},
		},
	})
	bus := eventbus.New()
	defer bus.Close(context.Background())

	p := New(src, meta, bus, time.Minute, 5*time.Minute, 10)
	p.poll(context.Background())

	snap := p.Latest()
	require.NotNil(t, snap)
	// m1 has a stored label, m2 does not.
	assert.Equal(t, []string{"m2"}, snap.UnclaimedDevicesNeedingLabels)
}

func TestPoll_PublishesTransitions(t *testing.T) {
	src, meta := aliceSetup()
	bus := eventbus.New()
	defer bus.Close(context.Background())

	var mu sync.Mutex
	var events []eventbus.Event
	record := func(e eventbus.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}
	bus.Subscribe(eventbus.EventTypeArrive, record)
	bus.Subscribe(eventbus.EventTypeDepart, record)

	// Use a zero grace window so a disconnect flips to away immediately.
	p := New(src, meta, bus, time.Minute, 0, 10)

	// First poll establishes the baseline, no transition events.
	p.poll(context.Background())

	// Alice's phone drops off the network.
	src.set(&presence.PresenceSnapshot{
		CapturedAt: time.Now(),
		Away: []presence.Device{
			{Mac: "m1", Display: strPtr("phone"), Connected: false},
		},
	})
	p.poll(context.Background())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, eventbus.EventTypeDepart, events[0].Type)
	assert.Equal(t, "Alice", events[0].Data["owner_name"])
}

func TestRefresh_RateLimited(t *testing.T) {
	src, meta := aliceSetup()
	bus := eventbus.New()
	defer bus.Close(context.Background())

	p := New(src, meta, bus, time.Minute, 5*time.Minute, 1)

	require.NoError(t, p.Refresh())
	// Burst capacity is one; an immediate second refresh is rejected.
	assert.ErrorIs(t, p.Refresh(), ErrRateLimited)
}

func TestLatest_NilBeforeFirstPoll(t *testing.T) {
	src, meta := aliceSetup()
	bus := eventbus.New()
	defer bus.Close(context.Background())

	p := New(src, meta, bus, time.Minute, 5*time.Minute, 1)
	assert.Nil(t, p.Latest())
}
