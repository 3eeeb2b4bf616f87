package providersync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

// LineInput is one cart item expressed in provider terms.
type LineInput struct {
	ProviderItemID      string
	Name                string
	Quantity            int
	PriceCents          int64
	SpecialInstructions *string
	SelectedOptions     map[string]any
}

// RemoteCartClient talks to one commerce provider. Implementations exist
// for the partner gateway proxy and for Square orders.
type RemoteCartClient interface {
	CreateRemoteCart(ctx context.Context, cart *models.Cart, scheduledAt *time.Time) (id string, raw json.RawMessage, err error)
	AddRemoteLine(ctx context.Context, cart *models.Cart, line LineInput) (string, error)
	RemoveRemoteLine(ctx context.Context, cart *models.Cart, remoteLineID string) error
}

type cartStore interface {
	FindCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	UpdateCartFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	UpdateItemFields(ctx context.Context, cartID, itemID uuid.UUID, fields map[string]any) (int64, error)
}

// Adapter mirrors local cart state to the backing commerce provider. Every
// method is best-effort: callers treat a returned error as a log line, and
// local state is never rolled back on remote failure.
type Adapter struct {
	store       cartStore
	restaurants carts.RestaurantLoader
	clients     map[enums.ProviderType]RemoteCartClient
	log         *logger.Logger
}

// NewAdapter builds the mirror. Clients may be missing for provider types
// that are not configured; carts on those providers are simply not
// mirrored.
func NewAdapter(
	store cartStore,
	restaurants carts.RestaurantLoader,
	clients map[enums.ProviderType]RemoteCartClient,
	log *logger.Logger,
) (*Adapter, error) {
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if restaurants == nil {
		return nil, fmt.Errorf("restaurant loader required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if clients == nil {
		clients = map[enums.ProviderType]RemoteCartClient{}
	}
	return &Adapter{
		store:       store,
		restaurants: restaurants,
		clients:     clients,
		log:         log,
	}, nil
}

// EnsureRemoteCart opens a remote cart for a provider-backed local cart
// that has none yet, persisting the returned id and raw payload.
func (a *Adapter) EnsureRemoteCart(ctx context.Context, cart *models.Cart) error {
	if a == nil || cart == nil {
		return nil
	}
	if !cart.ProviderType.RequiresRemoteCart() || cart.ProviderCartID != nil {
		return nil
	}
	client, ok := a.clients[cart.ProviderType]
	if !ok {
		return nil
	}

	var scheduledAt *time.Time
	if at, ok := types.ScheduleAt(cart.FulfillmentDate, cart.FulfillmentTime, time.UTC); ok {
		scheduledAt = &at
	}

	remoteID, raw, err := client.CreateRemoteCart(ctx, cart, scheduledAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote cart create failed")
	}

	fields := map[string]any{
		"provider_cart_id":  remoteID,
		"provider_cart_raw": json.RawMessage(raw),
	}
	if _, err := a.store.UpdateCartFields(ctx, cart.ID, fields); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote cart id persist failed")
	}
	cart.ProviderCartID = &remoteID
	cart.ProviderCartRaw = raw

	a.log.Info(a.log.WithCartID(ctx, cart.ID.String()), "remote cart created")
	return nil
}

// MirrorAddItem pushes one local item to the remote cart and records the
// returned remote line id on the local row.
func (a *Adapter) MirrorAddItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error {
	if a == nil || cart == nil || item == nil {
		return nil
	}
	if !cart.ProviderType.RequiresRemoteCart() {
		return nil
	}
	if err := a.EnsureRemoteCart(ctx, cart); err != nil {
		return err
	}
	if cart.ProviderCartID == nil {
		return nil
	}
	client, ok := a.clients[cart.ProviderType]
	if !ok {
		return nil
	}

	lineID, err := client.AddRemoteLine(ctx, cart, a.lineInput(ctx, cart, item))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote line add failed")
	}

	if _, err := a.store.UpdateItemFields(ctx, cart.ID, item.ID, map[string]any{"provider_line_id": lineID}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote line id persist failed")
	}
	item.ProviderLineID = &lineID
	return nil
}

// MirrorRemoveItem removes the remote line for a deleted local item. The
// item is a pre-delete snapshot since the row is already gone.
func (a *Adapter) MirrorRemoveItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error {
	if a == nil || cart == nil || item == nil {
		return nil
	}
	if cart.ProviderCartID == nil || item.ProviderLineID == nil {
		return nil
	}
	client, ok := a.clients[cart.ProviderType]
	if !ok {
		return nil
	}
	if err := client.RemoveRemoteLine(ctx, cart, *item.ProviderLineID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remote line remove failed")
	}
	return nil
}

// MirrorUpdateItem realizes a local edit remotely as remove-then-re-add,
// since providers do not support partial line edits. A failure between the
// two steps leaves the sides diverged until the next reconcile pass.
func (a *Adapter) MirrorUpdateItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error {
	if a == nil || cart == nil || item == nil {
		return nil
	}
	if !cart.ProviderType.RequiresRemoteCart() {
		return nil
	}
	if item.ProviderLineID != nil {
		if err := a.MirrorRemoveItem(ctx, cart, item); err != nil {
			return err
		}
		item.ProviderLineID = nil
	}
	return a.MirrorAddItem(ctx, cart, item)
}

// ReconcileRemoteCart re-establishes the remote mirror for one cart: it
// ensures the remote cart exists and pushes every item missing a remote
// line id. Per-item failures are collected, not fatal to the rest.
func (a *Adapter) ReconcileRemoteCart(ctx context.Context, cartID uuid.UUID) error {
	if a == nil {
		return nil
	}
	cart, err := a.store.FindCartByID(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reconcile cart lookup failed")
	}
	if !cart.ProviderType.RequiresRemoteCart() || cart.Status != enums.CartStatusDraft {
		return nil
	}
	if err := a.EnsureRemoteCart(ctx, cart); err != nil {
		return err
	}
	if cart.ProviderCartID == nil {
		return nil
	}

	var failed int
	for i := range cart.Items {
		item := &cart.Items[i]
		if item.ProviderLineID != nil {
			continue
		}
		if err := a.MirrorAddItem(ctx, cart, item); err != nil {
			failed++
			a.log.Error(a.log.WithCartID(ctx, cart.ID.String()), "reconcile line push failed", err)
		}
	}
	if failed > 0 {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("%d line(s) failed to mirror", failed))
	}
	return nil
}

// lineInput converts a local item to provider terms, applying the
// restaurant's price multiplier.
func (a *Adapter) lineInput(ctx context.Context, cart *models.Cart, item *models.CartItem) LineInput {
	multiplier := decimal.NewFromInt(1)
	restaurant, err := a.restaurants.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		a.log.Error(a.log.WithCartID(ctx, cart.ID.String()), "restaurant multiplier lookup failed", err)
	} else if restaurant != nil && !restaurant.PriceMultiplier.IsZero() {
		multiplier = restaurant.PriceMultiplier
	}

	price := decimal.NewFromInt(int64(item.UnitPriceCents)).Mul(multiplier).Round(0).IntPart()
	return LineInput{
		ProviderItemID:      item.MenuItemID,
		Name:                item.ItemName,
		Quantity:            item.Quantity,
		PriceCents:          price,
		SpecialInstructions: item.SpecialInstructions,
		SelectedOptions:     item.SelectedOptions,
	}
}

var _ carts.Mirror = (*Adapter)(nil)

// errNotConfigured is returned by client wrappers when the underlying
// provider client was never configured.
var errNotConfigured = errors.New("provider client not configured")
