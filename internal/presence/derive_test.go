package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOwners() map[int64]Owner {
	return map[int64]Owner{
		SystemOwnerID: {ID: SystemOwnerID, Name: "House", Kind: OwnerKindHome},
		2:             {ID: 2, Name: "Alice", Kind: OwnerKindPerson},
		3:             {ID: 3, Name: "Bob", Kind: OwnerKindPerson},
	}
}

func ownedDevice(mac string, ownerID int64, ownerName string, pt *PresenceType, connected bool, display string) Device {
	d := Device{
		Mac:          mac,
		Connected:    connected,
		OwnerID:      int64Ptr(ownerID),
		OwnerName:    strPtr(ownerName),
		PresenceType: pt,
	}
	if display != "" {
		d.Display = strPtr(display)
	}
	return d
}

func findOwner(t *testing.T, out []OwnerPresence, id int64) OwnerPresence {
	t.Helper()
	for _, op := range out {
		if op.Owner.ID == id {
			return op
		}
	}
	t.Fatalf("owner %d not in derivation output", id)
	return OwnerPresence{}
}

func TestDerive_Buckets(t *testing.T) {
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 2, "Alice", typePtr(PresencePrimary), true, "phone"),
		"m2": ownedDevice("m2", 2, "Alice", typePtr(PresenceSecondary), true, "watch"),
		"m3": ownedDevice("m3", 2, "Alice", nil, true, "laptop"),
	}

	out := Derive(merged, testOwners(), now, now, 5*time.Minute)
	alice := findOwner(t, out, 2)

	assert.Len(t, alice.Primary, 1)
	assert.Len(t, alice.Secondary, 1)
	assert.Len(t, alice.All, 2)
	assert.Equal(t, "m1", alice.Primary[0].Mac)
	assert.Equal(t, "m2", alice.Secondary[0].Mac)
}

func TestDerive_SystemOwnerExcluded(t *testing.T) {
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", SystemOwnerID, "House", typePtr(PresencePrimary), true, "router"),
	}

	out := Derive(merged, testOwners(), now, now, 5*time.Minute)
	for _, op := range out {
		assert.NotEqual(t, SystemOwnerID, op.Owner.ID)
		assert.Empty(t, op.All)
	}
}

func TestDerive_UntrackedExcluded(t *testing.T) {
	// An owned but unclassified device stays out of every bucket.
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 2, "Alice", nil, true, "phone"),
	}

	alice := findOwner(t, Derive(merged, testOwners(), now, now, 5*time.Minute), 2)
	assert.Empty(t, alice.Primary)
	assert.Empty(t, alice.Secondary)
	assert.Empty(t, alice.All)
	assert.False(t, alice.IsHome)
}

func TestDerive_UnresolvedOwnerExcluded(t *testing.T) {
	now := time.Now()
	merged := map[string]Device{
		// Dangling owner id: no OwnerName after merge.
		"m1": {Mac: "m1", Connected: true, OwnerID: int64Ptr(9), PresenceType: typePtr(PresencePrimary)},
	}

	out := Derive(merged, testOwners(), now, now, 5*time.Minute)
	for _, op := range out {
		assert.Empty(t, op.All)
	}
}

func TestDerive_GraceWindow(t *testing.T) {
	// Primary device, disconnected, snapshot captured three minutes ago.
	capturedAt := time.Now().Add(-3 * time.Minute)
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 2, "Alice", typePtr(PresencePrimary), false, "phone"),
	}

	tests := []struct {
		name         string
		considerHome time.Duration
		wantHome     bool
	}{
		{"within window", 5 * time.Minute, true},
		{"outside window", 1 * time.Minute, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alice := findOwner(t, Derive(merged, testOwners(), capturedAt, now, tt.considerHome), 2)
			assert.Equal(t, tt.wantHome, alice.IsHome)
		})
	}
}

func TestDerive_SecondaryNeverTriggersHome(t *testing.T) {
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 3, "Bob", typePtr(PresenceSecondary), true, "watch"),
	}

	bob := findOwner(t, Derive(merged, testOwners(), now, now, 5*time.Minute), 3)
	assert.False(t, bob.IsHome)
	assert.Len(t, bob.Secondary, 1)
}

func TestDerive_PrimaryWithoutDisplayNeverTriggersHome(t *testing.T) {
	// A primary device the router has no name for (known only from
	// storage) cannot mark the owner home.
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 2, "Alice", typePtr(PresencePrimary), true, ""),
	}

	alice := findOwner(t, Derive(merged, testOwners(), now, now, 5*time.Minute), 2)
	assert.False(t, alice.IsHome)
	assert.Len(t, alice.Primary, 1)
}

func TestDerive_ConnectedPrimaryIsHome(t *testing.T) {
	// Connected wins even when the snapshot is stale.
	capturedAt := time.Now().Add(-1 * time.Hour)
	now := time.Now()
	merged := map[string]Device{
		"m1": ownedDevice("m1", 2, "Alice", typePtr(PresencePrimary), true, "phone"),
	}

	alice := findOwner(t, Derive(merged, testOwners(), capturedAt, now, time.Minute), 2)
	assert.True(t, alice.IsHome)
}

func TestDerive_EveryOwnerGetsBuckets(t *testing.T) {
	now := time.Now()
	out := Derive(map[string]Device{}, testOwners(), now, now, 5*time.Minute)

	require.Len(t, out, 2)
	assert.Equal(t, int64(2), out[0].Owner.ID)
	assert.Equal(t, int64(3), out[1].Owner.ID)
	for _, op := range out {
		assert.NotNil(t, op.Primary)
		assert.NotNil(t, op.Secondary)
		assert.NotNil(t, op.All)
		assert.False(t, op.IsHome)
	}
}

func TestDerive_DeterministicDeviceOrder(t *testing.T) {
	now := time.Now()
	merged := map[string]Device{
		"cc": ownedDevice("cc", 2, "Alice", typePtr(PresencePrimary), true, "c"),
		"aa": ownedDevice("aa", 2, "Alice", typePtr(PresencePrimary), true, "a"),
		"bb": ownedDevice("bb", 2, "Alice", typePtr(PresencePrimary), true, "b"),
	}

	for range 5 {
		alice := findOwner(t, Derive(merged, testOwners(), now, now, time.Minute), 2)
		require.Len(t, alice.Primary, 3)
		assert.Equal(t, "aa", alice.Primary[0].Mac)
		assert.Equal(t, "bb", alice.Primary[1].Mac)
		assert.Equal(t, "cc", alice.Primary[2].Mac)
	}
}
