// Package poller drives the periodic router polls, holds the latest
// snapshot and publishes owner arrive/depart transitions.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/presence"
)

// ErrRateLimited is returned when manual refreshes arrive faster than
// the configured rate.
var ErrRateLimited = errors.New("refresh rate limited")

// SnapshotSource fetches presence snapshots; *router.Client implements it.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*presence.PresenceSnapshot, error)
}

// MetadataSource provides the stored inputs of a reconciliation.
type MetadataSource interface {
	ListDevices(ctx context.Context) ([]presence.DeviceDetails, error)
	ListOwners(ctx context.Context) ([]presence.Owner, error)
}

// Poller polls the router on an interval and on demand.
type Poller struct {
	source   SnapshotSource
	metadata MetadataSource
	bus      *eventbus.Bus

	interval     time.Duration
	considerHome time.Duration
	limiter      *rate.Limiter

	mu       sync.RWMutex
	latest   *presence.PresenceSnapshot
	lastHome map[int64]bool

	// Channel to trigger an immediate poll
	trigger chan struct{}
}

// New creates a new Poller.
func New(source SnapshotSource, metadata MetadataSource, bus *eventbus.Bus, interval, considerHome time.Duration, refreshRPS float64) *Poller {
	if interval == 0 {
		interval = time.Minute
	}
	if refreshRPS == 0 {
		refreshRPS = 1.0
	}

	return &Poller{
		source:       source,
		metadata:     metadata,
		bus:          bus,
		interval:     interval,
		considerHome: considerHome,
		limiter:      rate.NewLimiter(rate.Limit(refreshRPS), 1),
		lastHome:     make(map[int64]bool),
		trigger:      make(chan struct{}, 1),
	}
}

// Refresh requests an immediate poll. It never blocks; a poll already
// pending coalesces, and callers exceeding the rate limit get
// ErrRateLimited.
func (p *Poller) Refresh() error {
	if !p.limiter.Allow() {
		return ErrRateLimited
	}
	select {
	case p.trigger <- struct{}{}:
	default:
		// Already triggered
	}
	return nil
}

// Latest returns the most recently applied snapshot, or nil before the
// first successful poll.
func (p *Poller) Latest() *presence.PresenceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// Run starts the polling loop. It blocks until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	log.Info().Dur("interval", p.interval).Msg("Poller started")

	// Initial poll so the API has data right after startup.
	p.poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Poller stopping")
			return nil
		case <-p.trigger:
			p.poll(ctx)
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

// poll fetches a snapshot, recomputes the attention queue against
// stored labels, swaps it in whole and publishes transitions. A failed
// poll keeps the previous snapshot.
func (p *Poller) poll(ctx context.Context) {
	snap, err := p.source.Snapshot(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Router poll failed")
		return
	}

	storedList, err := p.metadata.ListDevices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load stored devices")
		return
	}
	stored := presence.DetailsMap(storedList)

	ownerList, ownersErr := p.metadata.ListOwners(ctx)
	if ownersErr != nil {
		// Non-fatal: the snapshot still applies, transitions are skipped.
		log.Warn().Err(ownersErr).Msg("Failed to load owners, skipping transition detection")
	}
	owners := presence.OwnerMap(ownerList)

	snap.UnclaimedDevicesNeedingLabels = unclaimedMacs(snap, stored)

	p.mu.Lock()
	p.latest = snap
	p.mu.Unlock()

	p.bus.Publish(eventbus.Event{
		Type: eventbus.EventTypeSnapshot,
		Data: map[string]interface{}{
			"captured_at": snap.CapturedAt,
			"home":        len(snap.Home),
			"away":        len(snap.Away),
		},
	})

	if ownersErr == nil {
		p.publishTransitions(snap, stored, owners)
	}
}

// publishTransitions derives per-owner presence and emits arrive/depart
// events for owners whose home status flipped since the last poll.
func (p *Poller) publishTransitions(snap *presence.PresenceSnapshot, stored map[string]presence.DeviceDetails, owners map[int64]presence.Owner) {
	merged := presence.Merge(snap, stored, owners)
	derived := presence.Derive(merged, owners, snap.CapturedAt, time.Now(), p.considerHome)

	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[int64]bool, len(derived))
	for _, op := range derived {
		current[op.Owner.ID] = op.IsHome

		prev, known := p.lastHome[op.Owner.ID]
		if !known || prev == op.IsHome {
			continue
		}

		eventType := eventbus.EventTypeDepart
		if op.IsHome {
			eventType = eventbus.EventTypeArrive
		}
		log.Info().
			Str("owner", op.Owner.Name).
			Bool("is_home", op.IsHome).
			Msg("Owner presence changed")
		p.bus.Publish(eventbus.Event{
			Type: eventType,
			Data: map[string]interface{}{
				"owner_id":   op.Owner.ID,
				"owner_name": op.Owner.Name,
				"owner_kind": string(op.Owner.Kind),
				"is_home":    op.IsHome,
			},
		})
	}
	p.lastHome = current
}

// unclaimedMacs lists snapshot MACs with no stored label, the attention
// queue surfaced in the maintenance view.
func unclaimedMacs(snap *presence.PresenceSnapshot, stored map[string]presence.DeviceDetails) []string {
	macs := []string{}
	for _, d := range snap.Devices() {
		det, ok := stored[d.Mac]
		if ok && det.Label != nil && *det.Label != "" {
			continue
		}
		if d.Label != nil && *d.Label != "" {
			continue
		}
		macs = append(macs, d.Mac)
	}
	return macs
}
