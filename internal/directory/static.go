package directory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

// Static serves placeholder directory records when no directory service is
// configured. Restaurants resolve to provider-less placeholders and teams
// to empty rosters, so carts still work with display names degraded.
type Static struct{}

func NewStatic() Static {
	return Static{}
}

func (Static) GetRestaurant(_ context.Context, id uuid.UUID) (*carts.RestaurantInfo, error) {
	return &carts.RestaurantInfo{
		ID:              id,
		Name:            "",
		ProviderType:    enums.ProviderTypeNone,
		PriceMultiplier: decimal.NewFromInt(1),
	}, nil
}

func (Static) ListRoster(context.Context, uuid.UUID) ([]carts.RosterMember, error) {
	return nil, nil
}

var (
	_ carts.RestaurantLoader = Static{}
	_ carts.RosterLoader     = Static{}
)
