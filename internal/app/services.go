package app

import (
	"context"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/db"
	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/poller"
	"github.com/dokzlo13/presenced/internal/presence"
	"github.com/dokzlo13/presenced/internal/router"
	"github.com/dokzlo13/presenced/internal/store"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Bus    *eventbus.Bus
	Router *router.Client

	// Stores
	Devices *store.DeviceStore
	Owners  *store.OwnerRegistry

	// High-level services
	Poller *PollerService
	API    *APIService
	Health *HealthService
	Hooks  *HooksService
}

// NewServices creates all services with proper dependency injection.
func NewServices(cfg *config.Config) (*Services, error) {
	s := &Services{cfg: cfg}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database

	// Stores
	s.Devices = store.NewDeviceStore(database.DB)
	s.Owners = store.NewOwnerRegistry(database.DB)

	// Event bus
	s.Bus = eventbus.New()

	// Router backend client
	s.Router = router.NewClient(
		cfg.Router.BaseURL,
		cfg.Router.Timeout.Duration(),
		cfg.Router.InsecureTLS,
	)

	// Poller
	s.Poller = NewPollerService(cfg, s.Router, storeMetadata{devices: s.Devices, owners: s.Owners}, s.Bus)

	// API server
	s.API = NewAPIService(cfg, s.Devices, s.Owners, s.Poller.Poller)

	// Health service
	s.Health = NewHealthService(cfg)

	// Lua hooks
	s.Hooks, err = NewHooksService(cfg, s.Bus)
	if err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Start starts all services in the correct order.
func (s *Services) Start(ctx context.Context) error {
	s.Hooks.Start(ctx)
	s.Poller.Start(ctx)
	s.API.Start(ctx)
	s.Health.Start(ctx)
	return nil
}

// Stop gracefully stops all services.
func (s *Services) Stop() error {
	s.Close()
	return nil
}

// Close releases all resources.
func (s *Services) Close() {
	if s.Bus != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout.Duration())
		defer cancel()
		s.Bus.Close(ctx)
	}
	if s.Hooks != nil {
		s.Hooks.Close()
	}
	if s.Router != nil {
		s.Router.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

// storeMetadata adapts the stores to the poller's metadata surface.
type storeMetadata struct {
	devices *store.DeviceStore
	owners  *store.OwnerRegistry
}

func (m storeMetadata) ListDevices(ctx context.Context) ([]presence.DeviceDetails, error) {
	return m.devices.List(ctx)
}

func (m storeMetadata) ListOwners(ctx context.Context) ([]presence.Owner, error) {
	return m.owners.List(ctx)
}

var _ poller.MetadataSource = storeMetadata{}
