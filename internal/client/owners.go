package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dokzlo13/presenced/internal/presence"
)

type ownerBody struct {
	Name string             `json:"name"`
	Kind presence.OwnerKind `json:"kind"`
}

// ListOwners fetches all owner records.
func (c *Client) ListOwners(ctx context.Context) ([]presence.Owner, error) {
	var owners []presence.Owner
	if err := c.do(ctx, http.MethodGet, "/api/owners", nil, &owners); err != nil {
		return nil, err
	}
	return owners, nil
}

// CreateOwner registers a new owner.
func (c *Client) CreateOwner(ctx context.Context, name string, kind presence.OwnerKind) (presence.Owner, error) {
	if kind == "" {
		kind = presence.OwnerKindPerson
	}
	var o presence.Owner
	err := c.do(ctx, http.MethodPost, "/api/owners", ownerBody{Name: name, Kind: kind}, &o)
	return o, err
}

// UpdateOwner renames or rekinds an owner.
func (c *Client) UpdateOwner(ctx context.Context, id int64, name string, kind presence.OwnerKind) (presence.Owner, error) {
	var o presence.Owner
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/owners/%d", id), ownerBody{Name: name, Kind: kind}, &o)
	return o, err
}

// DeleteOwner removes an owner. Devices referencing it are left as-is.
func (c *Client) DeleteOwner(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/owners/%d", id), nil, nil)
}
