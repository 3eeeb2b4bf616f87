package carts

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

// CartRepository is the persistence surface for carts, items, and rosters.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository

	CreateCart(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	SaveCart(ctx context.Context, cart *models.Cart) (*models.Cart, error)
	FindCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	FindActiveCart(ctx context.Context, q ActiveCartQuery) (*models.Cart, error)
	ListOpenCarts(ctx context.Context, teamID uuid.UUID) ([]models.Cart, error)
	UpdateCartFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus) error
	BatchUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.CartStatus) error
	DeleteCart(ctx context.Context, id uuid.UUID) (int64, error)
	TouchCart(ctx context.Context, id uuid.UUID) error

	CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error)
	FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	UpdateItemFields(ctx context.Context, cartID, itemID uuid.UUID, fields map[string]any) (int64, error)
	DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error)

	UpsertMember(ctx context.Context, member models.CartMember) error
	ListMembers(ctx context.Context, cartID uuid.UUID) ([]models.CartMember, error)
	SyncMembers(ctx context.Context, cartID uuid.UUID, desired []models.CartMember) error

	ListScheduledDrafts(ctx context.Context) ([]models.Cart, error)
	ListCartsNeedingRemoteReconcile(ctx context.Context, limit int) ([]models.Cart, error)
}

// Mirror pushes cart mutations to the backing commerce provider. Failures
// are reported for logging only and never veto the local write.
type Mirror interface {
	EnsureRemoteCart(ctx context.Context, cart *models.Cart) error
	MirrorAddItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error
	MirrorUpdateItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error
	MirrorRemoveItem(ctx context.Context, cart *models.Cart, item *models.CartItem) error
}
