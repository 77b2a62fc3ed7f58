package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dokzlo13/presenced/internal/poller"
	"github.com/dokzlo13/presenced/internal/presence"
	"github.com/dokzlo13/presenced/internal/store"
)

func (s *Server) handleGetPresence(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no presence snapshot available yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.snapshots.Refresh(); err != nil {
		if errors.Is(err, poller.ErrRateLimited) {
			writeError(w, http.StatusTooManyRequests, "refresh rate limited")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (s *Server) handleOwnerPresence(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Latest()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no presence snapshot available yet")
		return
	}

	storedList, err := s.devices.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ownerList, err := s.owners.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	owners := presence.OwnerMap(ownerList)
	merged := presence.Merge(snap, presence.DetailsMap(storedList), owners)
	derived := presence.Derive(merged, owners, snap.CapturedAt, time.Now(), s.considerHome)
	writeJSON(w, http.StatusOK, derived)
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	list, err := s.devices.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []presence.DeviceDetails{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleUpsertDevice(w http.ResponseWriter, r *http.Request) {
	mac := r.PathValue("mac")

	var patch presence.DevicePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.PresenceType.Set && patch.PresenceType.Value != nil {
		switch *patch.PresenceType.Value {
		case presence.PresencePrimary, presence.PresenceSecondary:
		default:
			writeError(w, http.StatusBadRequest, "presenceType must be 1, 2 or null")
			return
		}
	}

	det, err := s.devices.Upsert(r.Context(), mac, patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, det)
}

func (s *Server) handleSetDeviceOwner(w http.ResponseWriter, r *http.Request) {
	mac := r.PathValue("mac")

	var body struct {
		OwnerID *int64 `json:"ownerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.OwnerID != nil {
		if _, err := s.owners.Get(r.Context(), *body.OwnerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusBadRequest, "owner not found")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	det, err := s.devices.SetOwner(r.Context(), mac, body.OwnerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, det)
}

func (s *Server) handleListOwners(w http.ResponseWriter, r *http.Request) {
	list, err := s.owners.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []presence.Owner{}
	}
	writeJSON(w, http.StatusOK, list)
}

type ownerBody struct {
	Name string             `json:"name"`
	Kind presence.OwnerKind `json:"kind"`
}

func (b ownerBody) validate() string {
	if b.Name == "" {
		return "name is required"
	}
	switch b.Kind {
	case "", presence.OwnerKindPerson, presence.OwnerKindHome, presence.OwnerKindGuest:
		return ""
	default:
		return "kind must be person, home or guest"
	}
}

func (s *Server) handleCreateOwner(w http.ResponseWriter, r *http.Request) {
	var body ownerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	owner, err := s.owners.Create(r.Context(), body.Name, body.Kind)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, owner)
}

func (s *Server) handleUpdateOwner(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner id")
		return
	}

	var body ownerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if body.Kind == "" {
		body.Kind = presence.OwnerKindPerson
	}

	owner, err := s.owners.Update(r.Context(), id, body.Name, body.Kind)
	if err != nil {
		writeOwnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, owner)
}

func (s *Server) handleDeleteOwner(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid owner id")
		return
	}

	if err := s.owners.Delete(r.Context(), id); err != nil {
		writeOwnerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeOwnerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "owner not found")
	case errors.Is(err, store.ErrSystemOwner):
		writeError(w, http.StatusBadRequest, "system owner is reserved")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
