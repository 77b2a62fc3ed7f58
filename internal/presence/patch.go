package presence

import "encoding/json"

// Opt is a tri-state field for partial updates: absent from the JSON
// body (leave unchanged), explicit null (clear), or a value. Absent is
// the zero value, so omitzero round-trips it.
type Opt[T any] struct {
	Set   bool
	Value *T // nil with Set means explicit null
}

// OptValue builds a set Opt carrying v.
func OptValue[T any](v T) Opt[T] {
	return Opt[T]{Set: true, Value: &v}
}

// OptNull builds a set Opt carrying an explicit null.
func OptNull[T any]() Opt[T] {
	return Opt[T]{Set: true}
}

// IsZero reports whether the field was never set, for omitzero.
func (o Opt[T]) IsZero() bool {
	return !o.Set
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked for
// keys present in the body, which is what distinguishes absent from
// null.
func (o *Opt[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// DevicePatch is the partial body of PUT /api/devices/{mac}.
type DevicePatch struct {
	Label        Opt[string]       `json:"label,omitzero"`
	Band         Opt[string]       `json:"band,omitzero"`
	IP           Opt[string]       `json:"ip,omitzero"`
	OwnerID      Opt[int64]        `json:"ownerId,omitzero"`
	PresenceType Opt[PresenceType] `json:"presenceType,omitzero"`
}

// Apply returns det with the patch's set fields applied.
func (p DevicePatch) Apply(det DeviceDetails) DeviceDetails {
	if p.Label.Set {
		det.Label = p.Label.Value
	}
	if p.Band.Set {
		det.Band = p.Band.Value
	}
	if p.IP.Set {
		det.IP = p.IP.Value
	}
	if p.OwnerID.Set {
		det.OwnerID = p.OwnerID.Value
	}
	if p.PresenceType.Set {
		det.PresenceType = p.PresenceType.Value
	}
	return det
}
