// Package presence holds the core domain model: the merged device view
// built from the router's live snapshot plus stored metadata, and the
// per-owner home/away derivation computed from it.
package presence

import "time"

// PresenceType classifies how a device counts toward its owner's
// home/away status. Devices without a type are tracked in the device
// list but never contribute to presence.
type PresenceType int

const (
	// PresencePrimary devices mark their owner as home when seen.
	PresencePrimary PresenceType = 1
	// PresenceSecondary devices are shown with the owner but never
	// confer home status on their own.
	PresenceSecondary PresenceType = 2
)

// OwnerKind affects icons and grouping in clients, not logic.
type OwnerKind string

const (
	OwnerKindPerson OwnerKind = "person"
	OwnerKindHome   OwnerKind = "home"
	OwnerKindGuest  OwnerKind = "guest"
)

// SystemOwnerID is the reserved owner id for house infrastructure
// (routers, bulbs, thermostats). Devices assigned to it are excluded
// from person grouping and from home/away derivation.
const SystemOwnerID int64 = 1

// Owner is a person or household entity that devices can be assigned to.
type Owner struct {
	ID   int64     `json:"id"`
	Name string    `json:"name"`
	Kind OwnerKind `json:"kind"`
}

// IsSystem reports whether this is the reserved house-infrastructure owner.
func (o Owner) IsSystem() bool {
	return o.ID == SystemOwnerID
}

// Device is one entry of the merged view, rebuilt on every
// reconciliation. Router-observed fields (connected, rssi, display) are
// authoritative for liveness; stored fields (label, owner, presence
// type) are authoritative for identity. OwnerName and OwnerType are
// denormalized from the owner registry at merge time and are never
// stored.
type Device struct {
	Mac          string        `json:"mac"`
	Label        *string       `json:"label"`
	Display      *string       `json:"display"`
	Connected    bool          `json:"connected"`
	Band         *string       `json:"band"`
	RSSI         *int          `json:"rssi"`
	IP           *string       `json:"ip"`
	PresenceType *PresenceType `json:"presenceType,omitempty"`
	OwnerID      *int64        `json:"ownerId,omitempty"`
	OwnerName    *string       `json:"ownerName,omitempty"`
	OwnerType    *OwnerKind    `json:"ownerType,omitempty"`
}

// Name returns the friendly label when one is set, otherwise the
// router-provided display name, otherwise the MAC.
func (d Device) Name() string {
	if d.Label != nil && *d.Label != "" {
		return *d.Label
	}
	if d.Display != nil && *d.Display != "" {
		return *d.Display
	}
	return d.Mac
}

// DeviceDetails is the persisted per-MAC metadata record. All fields
// other than the MAC are optional; a partial update touches only the
// fields present.
type DeviceDetails struct {
	Mac          string        `json:"mac"`
	Label        *string       `json:"label,omitempty"`
	OwnerID      *int64        `json:"ownerId,omitempty"`
	PresenceType *PresenceType `json:"presenceType,omitempty"`
	Band         *string       `json:"band,omitempty"`
	IP           *string       `json:"ip,omitempty"`
}

// PresenceSnapshot is the router's point-in-time view of the network.
type PresenceSnapshot struct {
	CapturedAt                    time.Time `json:"capturedAt"`
	Home                          []Device  `json:"home"`
	Away                          []Device  `json:"away"`
	UnclaimedDevicesNeedingLabels []string  `json:"unclaimedDevicesNeedingLabels"`
}

// Devices returns home and away entries as one slice.
func (s *PresenceSnapshot) Devices() []Device {
	all := make([]Device, 0, len(s.Home)+len(s.Away))
	all = append(all, s.Home...)
	all = append(all, s.Away...)
	return all
}
