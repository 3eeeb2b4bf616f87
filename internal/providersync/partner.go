package providersync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/provider"
)

// PartnerClient adapts the generic gateway proxy to the remote cart
// contract.
type PartnerClient struct {
	client *provider.Client
}

// NewPartnerClient wraps the proxy client.
func NewPartnerClient(client *provider.Client) (*PartnerClient, error) {
	if client == nil {
		return nil, errNotConfigured
	}
	return &PartnerClient{client: client}, nil
}

func (p *PartnerClient) CreateRemoteCart(ctx context.Context, cart *models.Cart, scheduledAt *time.Time) (string, json.RawMessage, error) {
	params := provider.CreateCartParams{
		TeamID:      cart.TeamID.String(),
		ServiceType: cart.FulfillmentService.String(),
		ScheduledAt: scheduledAt,
		Address:     cart.FulfillmentAddress,
		Lat:         cart.FulfillmentLat,
		Lng:         cart.FulfillmentLng,
		CartName:    cart.Title,
	}
	if cart.ProviderRestaurantID != nil {
		params.ProviderRestaurantID = *cart.ProviderRestaurantID
	}

	remote, err := p.client.CreateCart(ctx, params)
	if err != nil {
		return "", nil, err
	}
	return remote.ID, remote.Raw, nil
}

func (p *PartnerClient) AddRemoteLine(ctx context.Context, cart *models.Cart, line LineInput) (string, error) {
	params := provider.AddLineItemParams{
		LineItem: provider.LineItemParams{
			ProviderItemID:      line.ProviderItemID,
			Name:                line.Name,
			Quantity:            line.Quantity,
			PriceCents:          line.PriceCents,
			SpecialInstructions: line.SpecialInstructions,
			SelectedOptions:     line.SelectedOptions,
		},
	}
	if cart.ProviderCartID != nil {
		params.RemoteCartID = *cart.ProviderCartID
	}
	if cart.ProviderRestaurantID != nil {
		params.ProviderRestaurantID = *cart.ProviderRestaurantID
	}

	remote, err := p.client.AddLineItem(ctx, params)
	if err != nil {
		return "", err
	}
	return remote.ID, nil
}

func (p *PartnerClient) RemoveRemoteLine(ctx context.Context, cart *models.Cart, remoteLineID string) error {
	params := provider.RemoveLineItemParams{LineItemID: remoteLineID}
	if cart.ProviderCartID != nil {
		params.RemoteCartID = *cart.ProviderCartID
	}
	if cart.ProviderRestaurantID != nil {
		params.ProviderRestaurantID = *cart.ProviderRestaurantID
	}
	return p.client.RemoveLineItem(ctx, params)
}

var _ RemoteCartClient = (*PartnerClient)(nil)
