package carts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

func setupCartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	carts := `
CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  team_id TEXT NOT NULL,
  restaurant_id TEXT NOT NULL,
  provider_type TEXT NOT NULL DEFAULT 'none',
  provider_restaurant_id TEXT,
  provider_cart_id TEXT,
  provider_cart_raw TEXT,
  title TEXT NOT NULL DEFAULT '',
  meal_type TEXT,
  status TEXT NOT NULL DEFAULT 'draft',
  fulfillment_service TEXT NOT NULL DEFAULT 'delivery',
  fulfillment_address TEXT,
  fulfillment_lat REAL,
  fulfillment_lng REAL,
  fulfillment_date TEXT,
  fulfillment_time TEXT,
  created_by_member_id TEXT,
  assignment_member_ids TEXT,
  submitted_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	items := `
CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  menu_item_id TEXT NOT NULL,
  item_name TEXT NOT NULL,
  quantity INTEGER NOT NULL DEFAULT 1,
  unit_price_cents INTEGER NOT NULL DEFAULT 0,
  special_instructions TEXT,
  selected_options TEXT,
  member_id TEXT,
  is_extra INTEGER NOT NULL DEFAULT 0,
  added_by_member_id TEXT,
  provider_line_id TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	members := `
CREATE TABLE IF NOT EXISTS cart_members (
  cart_id TEXT NOT NULL,
  member_id TEXT NOT NULL,
  joined_via TEXT NOT NULL DEFAULT 'roster',
  created_at DATETIME,
  PRIMARY KEY (cart_id, member_id)
);`
	for _, ddl := range []string{carts, items, members} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

func seedCart(t *testing.T, repo *Repository, mutate func(*models.Cart)) *models.Cart {
	t.Helper()
	cart := &models.Cart{
		TeamID:       uuid.New(),
		RestaurantID: uuid.New(),
		Title:        "Team lunch",
	}
	if mutate != nil {
		mutate(cart)
	}
	created, err := repo.CreateCart(context.Background(), cart)
	require.NoError(t, err)
	return created
}

func TestRepositoryCreateCartDefaults(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))

	cart := seedCart(t, repo, nil)
	assert.NotEqual(t, uuid.Nil, cart.ID)
	assert.Equal(t, enums.CartStatusDraft, cart.Status)
	assert.Equal(t, enums.ProviderTypeNone, cart.ProviderType)
}

func TestRepositoryFindActiveCartPrefersMatchingSchedule(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	teamID := uuid.New()
	restaurantID := uuid.New()
	date := "2026-09-10"

	unscheduled := seedCart(t, repo, func(c *models.Cart) {
		c.TeamID = teamID
		c.RestaurantID = restaurantID
	})
	scheduled := seedCart(t, repo, func(c *models.Cart) {
		c.TeamID = teamID
		c.RestaurantID = restaurantID
		c.FulfillmentDate = &date
	})

	got, err := repo.FindActiveCart(ctx, ActiveCartQuery{TeamID: teamID, RestaurantID: restaurantID})
	require.NoError(t, err)
	assert.Equal(t, unscheduled.ID, got.ID, "query without a date must not match scheduled carts")

	got, err = repo.FindActiveCart(ctx, ActiveCartQuery{TeamID: teamID, RestaurantID: restaurantID, Date: &date})
	require.NoError(t, err)
	assert.Equal(t, scheduled.ID, got.ID)

	otherDate := "2026-09-11"
	_, err = repo.FindActiveCart(ctx, ActiveCartQuery{TeamID: teamID, RestaurantID: restaurantID, Date: &otherDate})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindActiveCartSkipsTerminal(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	require.NoError(t, repo.UpdateStatus(ctx, cart.ID, enums.CartStatusSubmitted))

	_, err := repo.FindActiveCart(ctx, ActiveCartQuery{TeamID: cart.TeamID, RestaurantID: cart.RestaurantID})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindCartByIDPreloads(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	memberID := uuid.New()
	_, err := repo.CreateItem(ctx, &models.CartItem{
		CartID:     cart.ID,
		MenuItemID: "menu-1",
		ItemName:   "Burrito",
		Quantity:   2,
		MemberID:   &memberID,
	})
	require.NoError(t, err)
	require.NoError(t, repo.UpsertMember(ctx, models.CartMember{CartID: cart.ID, MemberID: memberID}))

	got, err := repo.FindCartByID(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Burrito", got.Items[0].ItemName)
	require.Len(t, got.Members, 1)
	assert.Equal(t, memberID, got.Members[0].MemberID)
}

func TestRepositoryItemLifecycle(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	item, err := repo.CreateItem(ctx, &models.CartItem{
		CartID:     cart.ID,
		MenuItemID: "menu-1",
		ItemName:   "Ramen",
		Quantity:   1,
	})
	require.NoError(t, err)

	rows, err := repo.UpdateItemFields(ctx, cart.ID, item.ID, map[string]any{"quantity": 3})
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	reloaded, err := repo.FindItemByID(ctx, cart.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Quantity)

	rows, err = repo.UpdateItemFields(ctx, cart.ID, uuid.New(), map[string]any{"quantity": 2})
	require.NoError(t, err)
	assert.Zero(t, rows, "missing item updates no rows")

	rows, err = repo.DeleteItem(ctx, cart.ID, item.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.DeleteItem(ctx, cart.ID, item.ID)
	require.NoError(t, err)
	assert.Zero(t, rows, "second delete is a no-op")
}

func TestRepositoryUpsertMemberIdempotent(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	member := models.CartMember{CartID: cart.ID, MemberID: uuid.New(), JoinedVia: enums.JoinedViaEmailLink}

	require.NoError(t, repo.UpsertMember(ctx, member))
	require.NoError(t, repo.UpsertMember(ctx, member))

	got, err := repo.ListMembers(ctx, cart.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, enums.JoinedViaEmailLink, got[0].JoinedVia)
}

func TestRepositorySyncMembersDiffs(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	keep := uuid.New()
	drop := uuid.New()
	add := uuid.New()

	require.NoError(t, repo.UpsertMember(ctx, models.CartMember{CartID: cart.ID, MemberID: keep}))
	require.NoError(t, repo.UpsertMember(ctx, models.CartMember{CartID: cart.ID, MemberID: drop}))

	desired := []models.CartMember{
		{MemberID: keep},
		{MemberID: add, JoinedVia: enums.JoinedViaEmailLink},
	}
	require.NoError(t, repo.SyncMembers(ctx, cart.ID, desired))

	got, err := repo.ListMembers(ctx, cart.ID)
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, member := range got {
		ids[member.MemberID] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, ids[keep])
	assert.True(t, ids[add])
	assert.False(t, ids[drop])
}

func TestRepositoryDeleteCartReportsRows(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	rows, err := repo.DeleteCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rows)

	rows, err = repo.DeleteCart(ctx, cart.ID)
	require.NoError(t, err)
	assert.Zero(t, rows)
}

func TestRepositoryListScheduledDrafts(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	date := "2026-09-02"
	scheduled := seedCart(t, repo, func(c *models.Cart) { c.FulfillmentDate = &date })
	seedCart(t, repo, nil)
	submitted := seedCart(t, repo, func(c *models.Cart) { c.FulfillmentDate = &date })
	require.NoError(t, repo.UpdateStatus(ctx, submitted.ID, enums.CartStatusSubmitted))

	got, err := repo.ListScheduledDrafts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, scheduled.ID, got[0].ID)
}

func TestRepositoryListCartsNeedingRemoteReconcile(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	remoteID := "sq-order-1"
	lineID := "line-1"

	needy := seedCart(t, repo, func(c *models.Cart) {
		c.ProviderType = enums.ProviderTypeSquare
		c.ProviderCartID = &remoteID
	})
	_, err := repo.CreateItem(ctx, &models.CartItem{CartID: needy.ID, MenuItemID: "m1", ItemName: "Taco", Quantity: 1})
	require.NoError(t, err)

	mirrored := seedCart(t, repo, func(c *models.Cart) {
		c.ProviderType = enums.ProviderTypeSquare
		c.ProviderCartID = &remoteID
	})
	_, err = repo.CreateItem(ctx, &models.CartItem{CartID: mirrored.ID, MenuItemID: "m1", ItemName: "Taco", Quantity: 1, ProviderLineID: &lineID})
	require.NoError(t, err)

	local := seedCart(t, repo, nil)
	_, err = repo.CreateItem(ctx, &models.CartItem{CartID: local.ID, MenuItemID: "m1", ItemName: "Taco", Quantity: 1})
	require.NoError(t, err)

	got, err := repo.ListCartsNeedingRemoteReconcile(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, needy.ID, got[0].ID)
	require.Len(t, got[0].Items, 1)
}

func TestRepositoryTouchCartBumpsUpdatedAt(t *testing.T) {
	repo := NewRepository(setupCartTestDB(t))
	ctx := context.Background()

	cart := seedCart(t, repo, nil)
	before := cart.UpdatedAt

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, repo.TouchCart(ctx, cart.ID))

	got, err := repo.FindCartByID(ctx, cart.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(before), "updated_at should move forward")
}
