package presence

import (
	"sort"
	"time"
)

// OwnerPresence is one owner's slice of the merged view: their
// classified devices bucketed by presence type, and the derived
// home/away verdict.
type OwnerPresence struct {
	Owner     Owner    `json:"owner"`
	Primary   []Device `json:"primary"`
	Secondary []Device `json:"secondary"`
	All       []Device `json:"all"`
	IsHome    bool     `json:"isHome"`
}

// Derive groups the merged view by owner and decides who is home.
//
// The system owner is skipped entirely. A device lands in an owner's
// buckets only when its denormalized owner name resolved at merge time
// and it carries an explicit presence type; untracked devices belong to
// the owner but never count toward presence.
//
// An owner is home iff some primary device with a router-known display
// name is either connected right now, or the snapshot itself is fresher
// than the considerHome window (a brief disconnect, roaming or sleep,
// should not flip a person to away instantly). Secondary devices never
// confer home status.
//
// Output is sorted by owner id, buckets by MAC, so identical inputs
// render identically.
func Derive(merged map[string]Device, owners map[int64]Owner, capturedAt, now time.Time, considerHome time.Duration) []OwnerPresence {
	byOwner := make(map[int64]*OwnerPresence, len(owners))
	for id, o := range owners {
		if o.IsSystem() {
			continue
		}
		byOwner[id] = &OwnerPresence{
			Owner:     o,
			Primary:   []Device{},
			Secondary: []Device{},
			All:       []Device{},
		}
	}

	macs := make([]string, 0, len(merged))
	for mac := range merged {
		macs = append(macs, mac)
	}
	sort.Strings(macs)

	for _, mac := range macs {
		d := merged[mac]
		if d.OwnerID == nil || d.OwnerName == nil || *d.OwnerID == SystemOwnerID {
			continue
		}
		op, ok := byOwner[*d.OwnerID]
		if !ok {
			continue
		}
		if d.PresenceType == nil {
			continue
		}
		op.All = append(op.All, d)
		switch *d.PresenceType {
		case PresencePrimary:
			op.Primary = append(op.Primary, d)
		case PresenceSecondary:
			op.Secondary = append(op.Secondary, d)
		}
	}

	sinceCapture := now.Sub(capturedAt)
	out := make([]OwnerPresence, 0, len(byOwner))
	for _, op := range byOwner {
		op.IsHome = anyPrimaryHome(op.All, sinceCapture, considerHome)
		out = append(out, *op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner.ID < out[j].Owner.ID })
	return out
}

func anyPrimaryHome(devices []Device, sinceCapture, considerHome time.Duration) bool {
	for _, d := range devices {
		if d.PresenceType == nil || *d.PresenceType != PresencePrimary {
			continue
		}
		if d.Display == nil || *d.Display == "" {
			continue
		}
		if d.Connected || sinceCapture < considerHome {
			return true
		}
	}
	return false
}
