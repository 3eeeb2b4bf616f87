package carts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

// ActiveCartQuery narrows the draft-cart lookup used by EnsureCart.
type ActiveCartQuery struct {
	TeamID       uuid.UUID
	RestaurantID uuid.UUID
	ProviderType enums.ProviderType
	MealType     *string
	Date         *string
	Time         *string
}

// Repository persists carts, cart items, and cart roster membership.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx scopes the repository to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// CreateCart inserts a new cart record.
func (r *Repository) CreateCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if cart.ID == uuid.Nil {
		cart.ID = uuid.New()
	}
	if cart.Status == "" {
		cart.Status = enums.CartStatusDraft
	}
	if cart.ProviderType == "" {
		cart.ProviderType = enums.ProviderTypeNone
	}
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// SaveCart persists the full cart record.
func (r *Repository) SaveCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	if err := r.db.WithContext(ctx).Omit("Items", "Members").Save(cart).Error; err != nil {
		return nil, err
	}
	return cart, nil
}

// FindCartByID loads one cart with its items and roster.
func (r *Repository) FindCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Members").
		Where("id = ?", id).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// FindActiveCart returns the most recently updated draft cart matching the
// query. A query without a date prefers unscheduled carts; a query with a
// date matches that date (and time, when given).
func (r *Repository) FindActiveCart(ctx context.Context, q ActiveCartQuery) (*models.Cart, error) {
	tx := r.db.WithContext(ctx).
		Preload("Items").
		Where("team_id = ? AND restaurant_id = ? AND status = ?", q.TeamID, q.RestaurantID, enums.CartStatusDraft)

	if q.ProviderType != "" {
		tx = tx.Where("provider_type = ?", q.ProviderType)
	}
	if q.MealType != nil && *q.MealType != "" {
		tx = tx.Where("meal_type = ?", *q.MealType)
	}
	if q.Date != nil && *q.Date != "" {
		tx = tx.Where("fulfillment_date = ?", *q.Date)
		if q.Time != nil && *q.Time != "" {
			tx = tx.Where("fulfillment_time = ?", *q.Time)
		}
	} else {
		tx = tx.Where("fulfillment_date IS NULL OR fulfillment_date = ''")
	}

	var cart models.Cart
	if err := tx.Order("updated_at DESC").First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// ListOpenCarts returns all non-submitted carts for a team with their items.
func (r *Repository) ListOpenCarts(ctx context.Context, teamID uuid.UUID) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("team_id = ? AND status <> ?", teamID, enums.CartStatusSubmitted).
		Order("updated_at DESC").
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// UpdateCartFields patches the given columns on a cart.
func (r *Repository) UpdateCartFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// UpdateStatus sets the status of one cart.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.CartStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("status", status).Error
}

// BatchUpdateStatus flips the status of many carts in one write.
func (r *Repository) BatchUpdateStatus(ctx context.Context, ids []uuid.UUID, status enums.CartStatus) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id IN ?", ids).
		Update("status", status).Error
}

// DeleteCart removes a cart; items and members cascade. The affected row
// count distinguishes "already gone" from success.
func (r *Repository) DeleteCart(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Cart{})
	return res.RowsAffected, res.Error
}

// CreateItem inserts one cart item row.
func (r *Repository) CreateItem(ctx context.Context, item *models.CartItem) (*models.CartItem, error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindItemByID loads one cart item.
func (r *Repository) FindItemByID(ctx context.Context, cartID, itemID uuid.UUID) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListItems returns the items of a cart in insertion order.
func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var rows []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateItemFields patches the given columns on one item.
func (r *Repository) UpdateItemFields(ctx context.Context, cartID, itemID uuid.UUID, fields map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Updates(fields)
	return res.RowsAffected, res.Error
}

// DeleteItem removes one item row, reporting the affected count.
func (r *Repository) DeleteItem(ctx context.Context, cartID, itemID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Delete(&models.CartItem{})
	return res.RowsAffected, res.Error
}

// UpsertMember registers a member on the cart roster, ignoring duplicates.
func (r *Repository) UpsertMember(ctx context.Context, member models.CartMember) error {
	if member.JoinedVia == "" {
		member.JoinedVia = enums.JoinedViaRoster
	}
	existing := models.CartMember{}
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND member_id = ?", member.CartID, member.MemberID).
		First(&existing).Error
	if err == nil {
		return nil
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	return r.db.WithContext(ctx).Create(&member).Error
}

// ListMembers returns the cart roster.
func (r *Repository) ListMembers(ctx context.Context, cartID uuid.UUID) ([]models.CartMember, error) {
	var rows []models.CartMember
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SyncMembers reconciles stored membership against the desired set by full
// diff: missing rows are inserted, surplus rows removed. Tolerates
// concurrent joins without locking.
func (r *Repository) SyncMembers(ctx context.Context, cartID uuid.UUID, desired []models.CartMember) error {
	existing, err := r.ListMembers(ctx, cartID)
	if err != nil {
		return err
	}

	want := map[uuid.UUID]models.CartMember{}
	for _, member := range desired {
		member.CartID = cartID
		want[member.MemberID] = member
	}

	have := map[uuid.UUID]struct{}{}
	var surplus []uuid.UUID
	for _, member := range existing {
		have[member.MemberID] = struct{}{}
		if _, ok := want[member.MemberID]; !ok {
			surplus = append(surplus, member.MemberID)
		}
	}

	for id, member := range want {
		if _, ok := have[id]; ok {
			continue
		}
		if err := r.db.WithContext(ctx).Create(&member).Error; err != nil {
			return err
		}
	}

	if len(surplus) > 0 {
		if err := r.db.WithContext(ctx).
			Where("cart_id = ? AND member_id IN ?", cartID, surplus).
			Delete(&models.CartMember{}).Error; err != nil {
			return err
		}
	}
	return nil
}

// ListScheduledDrafts returns draft carts that carry a fulfillment date,
// for lifecycle reconciliation.
func (r *Repository) ListScheduledDrafts(ctx context.Context) ([]models.Cart, error) {
	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Where("status = ? AND fulfillment_date IS NOT NULL AND fulfillment_date <> ''", enums.CartStatusDraft).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// ListCartsNeedingRemoteReconcile returns provider-backed carts holding
// items that never received a remote line id.
func (r *Repository) ListCartsNeedingRemoteReconcile(ctx context.Context, limit int) ([]models.Cart, error) {
	if limit <= 0 {
		limit = 50
	}
	sub := r.db.Model(&models.CartItem{}).
		Select("cart_id").
		Where("provider_line_id IS NULL")

	var carts []models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("provider_type <> ? AND provider_cart_id IS NOT NULL", enums.ProviderTypeNone).
		Where("status = ?", enums.CartStatusDraft).
		Where("id IN (?)", sub).
		Limit(limit).
		Find(&carts).Error
	if err != nil {
		return nil, err
	}
	return carts, nil
}

// TouchCart bumps updated_at so list ordering reflects item mutations.
func (r *Repository) TouchCart(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
