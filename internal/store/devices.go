// Package store provides SQLite-backed persistence for device metadata
// and the owner registry.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/presenced/internal/presence"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// DeviceStore persists per-MAC device metadata.
type DeviceStore struct {
	db *sql.DB
}

// NewDeviceStore creates a new DeviceStore.
func NewDeviceStore(db *sql.DB) *DeviceStore {
	return &DeviceStore{db: db}
}

// List returns all stored device records.
func (s *DeviceStore) List(ctx context.Context) ([]presence.DeviceDetails, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT mac, label, owner_id, presence_type, band, ip
		FROM devices ORDER BY mac
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	defer rows.Close()

	var out []presence.DeviceDetails
	for rows.Next() {
		det, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, det)
	}
	return out, rows.Err()
}

// Get returns the stored record for a MAC, or ErrNotFound.
func (s *DeviceStore) Get(ctx context.Context, mac string) (presence.DeviceDetails, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT mac, label, owner_id, presence_type, band, ip
		FROM devices WHERE mac = ?
	`, mac)
	det, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return presence.DeviceDetails{}, ErrNotFound
	}
	return det, err
}

// Upsert applies a partial update to the record for mac, creating it if
// absent, and returns the resulting record.
func (s *DeviceStore) Upsert(ctx context.Context, mac string, patch presence.DevicePatch) (presence.DeviceDetails, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return presence.DeviceDetails{}, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	det := presence.DeviceDetails{Mac: mac}
	row := tx.QueryRowContext(ctx, `
		SELECT mac, label, owner_id, presence_type, band, ip
		FROM devices WHERE mac = ?
	`, mac)
	existing, err := scanDevice(row)
	switch {
	case err == nil:
		det = existing
	case errors.Is(err, sql.ErrNoRows):
		// new record
	default:
		return presence.DeviceDetails{}, err
	}

	det = patch.Apply(det)

	now := time.Now().UTC().Unix()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO devices (mac, label, owner_id, presence_type, band, ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(mac) DO UPDATE SET
			label = excluded.label,
			owner_id = excluded.owner_id,
			presence_type = excluded.presence_type,
			band = excluded.band,
			ip = excluded.ip,
			updated_at = excluded.updated_at
	`, det.Mac, det.Label, det.OwnerID, presenceTypeArg(det.PresenceType), det.Band, det.IP, now, now)
	if err != nil {
		return presence.DeviceDetails{}, fmt.Errorf("failed to upsert device: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return presence.DeviceDetails{}, fmt.Errorf("failed to commit: %w", err)
	}
	return det, nil
}

// SetOwner assigns (or with nil clears) the owner of a device.
func (s *DeviceStore) SetOwner(ctx context.Context, mac string, ownerID *int64) (presence.DeviceDetails, error) {
	patch := presence.DevicePatch{OwnerID: presence.OptNull[int64]()}
	if ownerID != nil {
		patch.OwnerID = presence.OptValue(*ownerID)
	}
	return s.Upsert(ctx, mac, patch)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(r rowScanner) (presence.DeviceDetails, error) {
	var det presence.DeviceDetails
	var label, band, ip sql.NullString
	var ownerID, presenceType sql.NullInt64

	if err := r.Scan(&det.Mac, &label, &ownerID, &presenceType, &band, &ip); err != nil {
		return presence.DeviceDetails{}, err
	}
	if label.Valid {
		det.Label = &label.String
	}
	if band.Valid {
		det.Band = &band.String
	}
	if ip.Valid {
		det.IP = &ip.String
	}
	if ownerID.Valid {
		det.OwnerID = &ownerID.Int64
	}
	if presenceType.Valid {
		pt := presence.PresenceType(presenceType.Int64)
		det.PresenceType = &pt
	}
	return det, nil
}

func presenceTypeArg(pt *presence.PresenceType) any {
	if pt == nil {
		return nil
	}
	return int64(*pt)
}
