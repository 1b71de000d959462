package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rtauto/dealer-admin/models"
)

// VehicleFilter selects a page of inventory.
type VehicleFilter struct {
	Status   string
	Sort     string
	Asc      bool
	Page     int
	PageSize int
	Query    string
}

func (f VehicleFilter) values() url.Values {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", f.Status)
	}
	if f.Sort != "" {
		v.Set("sort", f.Sort)
	}
	if f.Asc {
		v.Set("asc", "true")
	}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(f.PageSize))
	}
	if f.Query != "" {
		v.Set("q", f.Query)
	}
	return v
}

// VehiclePage is one page of GET /vehicles.
type VehiclePage struct {
	Vehicles   []models.Vehicle `json:"data"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// ListVehicles returns a page of the caller's dealership inventory.
func (c *Client) ListVehicles(ctx context.Context, f VehicleFilter) (*VehiclePage, error) {
	path := "/vehicles"
	if q := f.values().Encode(); q != "" {
		path += "?" + q
	}

	// Pages are not wrapped in a data envelope of their own, so decode the body directly.
	resp, err := c.send(ctx, http.MethodGet, path, c.token(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, body)
	}

	var page VehiclePage
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode vehicle page: %w", err)
	}
	return &page, nil
}

// DeleteVehicle removes a vehicle and its photos.
func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/vehicles/"+url.PathEscape(id), c.token(), nil, nil)
}
