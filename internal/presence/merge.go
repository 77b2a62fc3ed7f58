package presence

// Merge rebuilds the unified device view from the router snapshot,
// stored metadata and the owner registry. The result is a fresh map
// keyed by MAC; inputs are never mutated.
//
// Router-observed devices win: a MAC seen by the router keeps its
// connectivity and signal fields, with stored metadata only filling
// gaps. MACs known only from storage are synthesized with
// connected=false so powered-off devices stay visible.
func Merge(snap *PresenceSnapshot, stored map[string]DeviceDetails, owners map[int64]Owner) map[string]Device {
	merged := make(map[string]Device)
	if snap != nil {
		for _, d := range snap.Devices() {
			merged[d.Mac] = overlay(d, stored[d.Mac], owners)
		}
	}
	for mac, det := range stored {
		if _, seen := merged[mac]; seen {
			continue
		}
		merged[mac] = overlay(Device{Mac: mac, Connected: false}, det, owners)
	}
	return merged
}

// overlay applies stored metadata onto a router-observed device.
// Identity fields (label, owner, presence type) come from storage;
// band and ip are filled from storage only when the router did not
// report them. Connectivity, rssi and display are left untouched.
func overlay(d Device, det DeviceDetails, owners map[int64]Owner) Device {
	if det.Label != nil {
		d.Label = det.Label
	}
	if det.PresenceType != nil {
		d.PresenceType = det.PresenceType
	}
	if d.Band == nil {
		d.Band = det.Band
	}
	if d.IP == nil {
		d.IP = det.IP
	}
	if det.OwnerID != nil {
		d.OwnerID = det.OwnerID
		// A dangling owner id (owner deleted since assignment) leaves
		// the denormalized fields unset; the device renders as
		// unassigned rather than erroring.
		if owner, ok := owners[*det.OwnerID]; ok {
			d.OwnerName = &owner.Name
			kind := owner.Kind
			d.OwnerType = &kind
		}
	}
	return d
}

// OwnerMap indexes an owner list by id.
func OwnerMap(list []Owner) map[int64]Owner {
	m := make(map[int64]Owner, len(list))
	for _, o := range list {
		m[o.ID] = o
	}
	return m
}

// DetailsMap indexes stored device records by MAC.
func DetailsMap(list []DeviceDetails) map[string]DeviceDetails {
	m := make(map[string]DeviceDetails, len(list))
	for _, d := range list {
		m[d.Mac] = d
	}
	return m
}
