package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/presenced/internal/presence"
)

// ErrSystemOwner is returned for attempts to modify or delete the
// reserved house-infrastructure owner.
var ErrSystemOwner = errors.New("system owner is reserved")

// OwnerRegistry persists owner records.
type OwnerRegistry struct {
	db *sql.DB
}

// NewOwnerRegistry creates a new OwnerRegistry.
func NewOwnerRegistry(db *sql.DB) *OwnerRegistry {
	return &OwnerRegistry{db: db}
}

// List returns all owners, system owner included, ordered by id.
func (r *OwnerRegistry) List(ctx context.Context) ([]presence.Owner, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, kind FROM owners ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list owners: %w", err)
	}
	defer rows.Close()

	var out []presence.Owner
	for rows.Next() {
		var o presence.Owner
		if err := rows.Scan(&o.ID, &o.Name, &o.Kind); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Get returns one owner by id, or ErrNotFound.
func (r *OwnerRegistry) Get(ctx context.Context, id int64) (presence.Owner, error) {
	var o presence.Owner
	err := r.db.QueryRowContext(ctx, `SELECT id, name, kind FROM owners WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &o.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return presence.Owner{}, ErrNotFound
	}
	if err != nil {
		return presence.Owner{}, fmt.Errorf("failed to get owner: %w", err)
	}
	return o, nil
}

// Create inserts a new owner and returns it with its assigned id.
func (r *OwnerRegistry) Create(ctx context.Context, name string, kind presence.OwnerKind) (presence.Owner, error) {
	if kind == "" {
		kind = presence.OwnerKindPerson
	}
	now := time.Now().UTC().Unix()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO owners (name, kind, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, name, string(kind), now, now)
	if err != nil {
		return presence.Owner{}, fmt.Errorf("failed to create owner: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return presence.Owner{}, fmt.Errorf("failed to read owner id: %w", err)
	}
	return presence.Owner{ID: id, Name: name, Kind: kind}, nil
}

// Update renames or rekinds an owner and returns the updated record.
func (r *OwnerRegistry) Update(ctx context.Context, id int64, name string, kind presence.OwnerKind) (presence.Owner, error) {
	if id == presence.SystemOwnerID {
		return presence.Owner{}, ErrSystemOwner
	}
	now := time.Now().UTC().Unix()
	res, err := r.db.ExecContext(ctx, `
		UPDATE owners SET name = ?, kind = ?, updated_at = ? WHERE id = ?
	`, name, string(kind), now, id)
	if err != nil {
		return presence.Owner{}, fmt.Errorf("failed to update owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return presence.Owner{}, err
	}
	if n == 0 {
		return presence.Owner{}, ErrNotFound
	}
	return presence.Owner{ID: id, Name: name, Kind: kind}, nil
}

// Delete removes an owner. Device references are intentionally left in
// place; they resolve to "unassigned" on the next reconciliation.
func (r *OwnerRegistry) Delete(ctx context.Context, id int64) error {
	if id == presence.SystemOwnerID {
		return ErrSystemOwner
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM owners WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete owner: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
