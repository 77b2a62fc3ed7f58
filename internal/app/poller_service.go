package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/poller"
)

// PollerService wraps the router polling loop.
type PollerService struct {
	cfg    *config.Config
	Poller *poller.Poller
}

// NewPollerService creates a new PollerService.
func NewPollerService(cfg *config.Config, source poller.SnapshotSource, metadata poller.MetadataSource, bus *eventbus.Bus) *PollerService {
	p := poller.New(
		source,
		metadata,
		bus,
		cfg.Poller.Interval.Duration(),
		cfg.Presence.ConsiderHome.Duration(),
		cfg.Poller.RefreshRateRPS,
	)
	return &PollerService{cfg: cfg, Poller: p}
}

// Start begins the polling loop.
func (s *PollerService) Start(ctx context.Context) {
	go func() {
		if err := s.Poller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Poller error")
		}
	}()
}
