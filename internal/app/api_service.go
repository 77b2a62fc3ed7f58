package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/server"
	"github.com/dokzlo13/presenced/internal/store"
)

// APIService wraps the REST API server.
type APIService struct {
	cfg    *config.Config
	server *server.Server
}

// NewAPIService creates a new APIService.
func NewAPIService(cfg *config.Config, devices *store.DeviceStore, owners *store.OwnerRegistry, snapshots server.Snapshots) *APIService {
	srv := server.New(
		cfg.API.Host,
		cfg.API.Port,
		devices,
		owners,
		snapshots,
		cfg.Presence.ConsiderHome.Duration(),
	)
	return &APIService{cfg: cfg, server: srv}
}

// Start begins the API server.
func (s *APIService) Start(ctx context.Context) {
	go func() {
		if err := s.server.Run(ctx, s.cfg.ShutdownTimeout.Duration()); err != nil {
			log.Error().Err(err).Msg("API server error")
		}
	}()
}
