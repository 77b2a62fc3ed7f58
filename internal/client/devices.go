package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dokzlo13/presenced/internal/presence"
)

// ListDeviceDetails fetches all stored device records keyed by MAC.
func (c *Client) ListDeviceDetails(ctx context.Context) (map[string]presence.DeviceDetails, error) {
	var rows []presence.DeviceDetails
	if err := c.do(ctx, http.MethodGet, "/api/devices", nil, &rows); err != nil {
		return nil, err
	}
	return presence.DetailsMap(rows), nil
}

// UpsertDevice applies a partial update to a device record.
func (c *Client) UpsertDevice(ctx context.Context, mac string, patch presence.DevicePatch) (presence.DeviceDetails, error) {
	var det presence.DeviceDetails
	err := c.do(ctx, http.MethodPut, "/api/devices/"+url.PathEscape(mac), patch, &det)
	return det, err
}

// UpsertDeviceLabel sets just the friendly label of a device.
func (c *Client) UpsertDeviceLabel(ctx context.Context, mac, label string) (presence.DeviceDetails, error) {
	return c.UpsertDevice(ctx, mac, presence.DevicePatch{Label: presence.OptValue(label)})
}

// SetDeviceOwner assigns (nil clears) the owner of a device.
func (c *Client) SetDeviceOwner(ctx context.Context, mac string, ownerID *int64) (presence.DeviceDetails, error) {
	body := struct {
		OwnerID *int64 `json:"ownerId"`
	}{OwnerID: ownerID}

	var det presence.DeviceDetails
	err := c.do(ctx, http.MethodPut, "/api/devices/"+url.PathEscape(mac)+"/owner", body, &det)
	return det, err
}
