package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
)

// CreateCartParams opens a remote cart at the partner gateway.
type CreateCartParams struct {
	ProviderRestaurantID string     `json:"provider_restaurant_id"`
	TeamID               string     `json:"team_id"`
	ServiceType          string     `json:"service_type"`
	ScheduledAt          *time.Time `json:"scheduled_at,omitempty"`
	Address              *string    `json:"address,omitempty"`
	Lat                  *float64   `json:"lat,omitempty"`
	Lng                  *float64   `json:"lng,omitempty"`
	CartName             string     `json:"cart_name,omitempty"`
}

// RemoteCart is the partner gateway's cart handle plus the raw payload,
// stored locally for debugging.
type RemoteCart struct {
	ID  string          `json:"id"`
	Raw json.RawMessage `json:"-"`
}

// LineItemParams is one remote line item.
type LineItemParams struct {
	ProviderItemID      string         `json:"provider_item_id"`
	Name                string         `json:"name"`
	Quantity            int            `json:"quantity"`
	PriceCents          int64          `json:"price_cents"`
	SpecialInstructions *string        `json:"special_instructions,omitempty"`
	SelectedOptions     map[string]any `json:"selected_options,omitempty"`
}

// AddLineItemParams appends one line to a remote cart.
type AddLineItemParams struct {
	RemoteCartID         string         `json:"remote_cart_id"`
	ProviderRestaurantID string         `json:"provider_restaurant_id"`
	LineItem             LineItemParams `json:"line_item"`
}

// RemoteLine is the gateway's handle for one added line.
type RemoteLine struct {
	ID string `json:"id"`
}

// RemoveLineItemParams removes one line from a remote cart.
type RemoveLineItemParams struct {
	RemoteCartID         string `json:"remote_cart_id"`
	ProviderRestaurantID string `json:"provider_restaurant_id"`
	LineItemID           string `json:"line_item_id"`
}

// CreateCart opens a remote cart and returns its id with the raw response.
func (c *Client) CreateCart(ctx context.Context, params CreateCartParams) (*RemoteCart, error) {
	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/v1/carts",
		Body:   params,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Cart RemoteCart `json:"cart"`
		ID   string     `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider cart decode failed")
	}
	cart := payload.Cart
	if cart.ID == "" {
		cart.ID = payload.ID
	}
	if cart.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider cart response missing id")
	}
	cart.Raw = raw
	return &cart, nil
}

// AddLineItem appends one line item and returns the remote line id.
func (c *Client) AddLineItem(ctx context.Context, params AddLineItemParams) (*RemoteLine, error) {
	raw, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   "/v1/carts/" + params.RemoteCartID + "/lines",
		Body:   params,
	})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Line RemoteLine `json:"line"`
		ID   string     `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provider line decode failed")
	}
	line := payload.Line
	if line.ID == "" {
		line.ID = payload.ID
	}
	if line.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider line response missing id")
	}
	return &line, nil
}

// RemoveLineItem deletes one remote line item.
func (c *Client) RemoveLineItem(ctx context.Context, params RemoveLineItemParams) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodDelete,
		Path:   "/v1/carts/" + params.RemoteCartID + "/lines/" + params.LineItemID,
		Body:   params,
	})
	return err
}
