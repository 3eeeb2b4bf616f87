package providersync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/square"
)

// SquareClient adapts the Square orders wrapper to the remote cart
// contract. A draft Square order stands in for the remote cart; line items
// live on the order.
type SquareClient struct {
	client *square.Client
}

// NewSquareClient wraps the Square client.
func NewSquareClient(client *square.Client) (*SquareClient, error) {
	if client == nil {
		return nil, errNotConfigured
	}
	return &SquareClient{client: client}, nil
}

func (s *SquareClient) CreateRemoteCart(ctx context.Context, cart *models.Cart, _ *time.Time) (string, json.RawMessage, error) {
	order, err := s.client.CreateOrder(ctx, square.OrderCreateParams{
		ReferenceID: cart.ID.String(),
	})
	if err != nil {
		return "", nil, err
	}

	orderID := ""
	if id := order.GetID(); id != nil {
		orderID = *id
	}
	raw, err := json.Marshal(order)
	if err != nil {
		raw = nil
	}
	return orderID, raw, nil
}

func (s *SquareClient) AddRemoteLine(ctx context.Context, cart *models.Cart, line LineInput) (string, error) {
	if cart.ProviderCartID == nil {
		return "", errNotConfigured
	}
	params := square.OrderLineParams{
		Name:            line.Name,
		CatalogObjectID: line.ProviderItemID,
		Quantity:        line.Quantity,
		PriceCents:      line.PriceCents,
	}
	if line.SpecialInstructions != nil {
		params.SpecialInstructions = *line.SpecialInstructions
	}
	return s.client.AddLineItem(ctx, *cart.ProviderCartID, params)
}

func (s *SquareClient) RemoveRemoteLine(ctx context.Context, cart *models.Cart, remoteLineID string) error {
	if cart.ProviderCartID == nil {
		return nil
	}
	return s.client.RemoveLineItem(ctx, *cart.ProviderCartID, remoteLineID)
}

var _ RemoteCartClient = (*SquareClient)(nil)
