// Package server implements the presenced REST API: the live presence
// snapshot, the stored device table and the owner registry.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/presenced/internal/presence"
	"github.com/dokzlo13/presenced/internal/store"
)

// Snapshots is the poller surface the server reads from.
type Snapshots interface {
	Latest() *presence.PresenceSnapshot
	Refresh() error
}

// Server is the REST API server.
type Server struct {
	addr         string
	devices      *store.DeviceStore
	owners       *store.OwnerRegistry
	snapshots    Snapshots
	considerHome time.Duration
	httpServer   *http.Server
}

// New creates a new API server.
func New(host string, port int, devices *store.DeviceStore, owners *store.OwnerRegistry, snapshots Snapshots, considerHome time.Duration) *Server {
	return &Server{
		addr:         fmt.Sprintf("%s:%d", host, port),
		devices:      devices,
		owners:       owners,
		snapshots:    snapshots,
		considerHome: considerHome,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/presence", s.handleGetPresence)
	mux.HandleFunc("POST /api/presence/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/presence/owners", s.handleOwnerPresence)

	mux.HandleFunc("GET /api/devices", s.handleListDevices)
	mux.HandleFunc("PUT /api/devices/{mac}", s.handleUpsertDevice)
	mux.HandleFunc("PUT /api/devices/{mac}/owner", s.handleSetDeviceOwner)

	mux.HandleFunc("GET /api/owners", s.handleListOwners)
	mux.HandleFunc("POST /api/owners", s.handleCreateOwner)
	mux.HandleFunc("PUT /api/owners/{id}", s.handleUpdateOwner)
	mux.HandleFunc("DELETE /api/owners/{id}", s.handleDeleteOwner)

	return requestLogger(mux)
}

// Run starts the API server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
