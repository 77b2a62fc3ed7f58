package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/config"
	"github.com/dokzlo13/presenced/internal/eventbus"
	"github.com/dokzlo13/presenced/internal/hooks"
)

// HooksService wraps the Lua hook runtime.
type HooksService struct {
	cfg     *config.Config
	runtime *hooks.Runtime
	enabled bool
}

// NewHooksService creates a new HooksService. When enabled, the script
// is loaded eagerly so a broken script fails startup rather than the
// first arrival.
func NewHooksService(cfg *config.Config, bus *eventbus.Bus) (*HooksService, error) {
	s := &HooksService{cfg: cfg, enabled: cfg.Hooks.Enabled}
	if !s.enabled {
		return s, nil
	}

	s.runtime = hooks.NewRuntime(cfg.Hooks.Script)
	if err := s.runtime.Load(); err != nil {
		return nil, err
	}
	s.runtime.Register(bus)
	return s, nil
}

// Start begins hook execution if enabled.
func (s *HooksService) Start(ctx context.Context) {
	if !s.enabled {
		log.Debug().Msg("Hooks disabled")
		return
	}
	go s.runtime.Run(ctx)
}

// Close releases the Lua VM.
func (s *HooksService) Close() {
	if s.runtime != nil {
		s.runtime.Close()
	}
}
