package carts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

type restaurantLoaderFunc func(ctx context.Context, id uuid.UUID) (*RestaurantInfo, error)

func (fn restaurantLoaderFunc) GetRestaurant(ctx context.Context, id uuid.UUID) (*RestaurantInfo, error) {
	return fn(ctx, id)
}

type rosterLoaderFunc func(ctx context.Context, teamID uuid.UUID) ([]RosterMember, error)

func (fn rosterLoaderFunc) ListRoster(ctx context.Context, teamID uuid.UUID) ([]RosterMember, error) {
	return fn(ctx, teamID)
}

type recordingMirror struct {
	mu       sync.Mutex
	err      error
	ensures  int
	adds     int
	updates  int
	removes  int
	lastItem *models.CartItem
}

func (m *recordingMirror) EnsureRemoteCart(context.Context, *models.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensures++
	return m.err
}

func (m *recordingMirror) MirrorAddItem(_ context.Context, _ *models.Cart, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds++
	m.lastItem = item
	return m.err
}

func (m *recordingMirror) MirrorUpdateItem(_ context.Context, _ *models.Cart, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates++
	m.lastItem = item
	return m.err
}

func (m *recordingMirror) MirrorRemoveItem(_ context.Context, _ *models.Cart, item *models.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removes++
	m.lastItem = item
	return m.err
}

type stubTx struct{}

func (stubTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type cartTestEnv struct {
	svc        Service
	repo       *Repository
	mirror     *recordingMirror
	restaurant *RestaurantInfo
	roster     []RosterMember
	restErr    error
}

func newCartTestEnv(t *testing.T) *cartTestEnv {
	t.Helper()

	env := &cartTestEnv{
		repo:   NewRepository(setupCartTestDB(t)),
		mirror: &recordingMirror{},
		restaurant: &RestaurantInfo{
			ID:              uuid.New(),
			Name:            "Taqueria Uno",
			ProviderType:    enums.ProviderTypeNone,
			PriceMultiplier: decimal.NewFromInt(1),
		},
	}

	restaurants := restaurantLoaderFunc(func(_ context.Context, id uuid.UUID) (*RestaurantInfo, error) {
		if env.restErr != nil {
			return nil, env.restErr
		}
		info := *env.restaurant
		info.ID = id
		return &info, nil
	})
	roster := rosterLoaderFunc(func(context.Context, uuid.UUID) ([]RosterMember, error) {
		return env.roster, nil
	})

	svc, err := NewService(env.repo, stubTx{}, restaurants, roster, env.mirror, NewMemoryBus(), logger.New(logger.Options{ServiceName: "test"}), time.Second)
	if err != nil {
		t.Fatalf("service construction failed: %v", err)
	}
	inner := svc.(*service)
	inner.syncMirror = true
	inner.now = func() time.Time { return testNow }
	env.svc = svc
	return env
}

func (env *cartTestEnv) mustEnsureCart(t *testing.T, mutate func(*EnsureCartInput)) *models.Cart {
	t.Helper()
	input := EnsureCartInput{TeamID: uuid.New(), RestaurantID: uuid.New()}
	if mutate != nil {
		mutate(&input)
	}
	cart, err := env.svc.EnsureCart(context.Background(), input)
	if err != nil {
		t.Fatalf("ensure cart failed: %v", err)
	}
	return cart
}

func errCode(t *testing.T, err error, want pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != want {
		t.Fatalf("expected code %s, got %v", want, err)
	}
}

func TestEnsureCartCreatesThenReuses(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()

	creator := uuid.New()
	teamID := uuid.New()
	restaurantID := uuid.New()
	input := EnsureCartInput{TeamID: teamID, RestaurantID: restaurantID, CreatedByMemberID: &creator}

	first, err := env.svc.EnsureCart(ctx, input)
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first.Title != "Taqueria Uno" {
		t.Fatalf("expected restaurant name as default title, got %q", first.Title)
	}

	second, err := env.svc.EnsureCart(ctx, input)
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the existing draft to be reused")
	}

	members, err := env.repo.ListMembers(ctx, first.ID)
	if err != nil {
		t.Fatalf("member list failed: %v", err)
	}
	if len(members) != 1 || members[0].MemberID != creator {
		t.Fatalf("expected creator registered, got %+v", members)
	}
}

func TestEnsureCartRestaurantOutage(t *testing.T) {
	env := newCartTestEnv(t)
	env.restErr = errors.New("directory down")

	_, err := env.svc.EnsureCart(context.Background(), EnsureCartInput{TeamID: uuid.New(), RestaurantID: uuid.New()})
	errCode(t, err, pkgerrors.CodeDependency)
}

func TestEnsureCartProviderBackedOpensRemote(t *testing.T) {
	env := newCartTestEnv(t)
	env.restaurant.ProviderType = enums.ProviderTypeSquare

	env.mustEnsureCart(t, nil)
	if env.mirror.ensures != 1 {
		t.Fatalf("expected one remote cart creation, got %d", env.mirror.ensures)
	}
}

func TestAddItemValidatesAndStripsAssignmentMetadata(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)

	_, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{})
	errCode(t, err, pkgerrors.CodeValidation)

	member := uuid.New()
	item, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{
		MenuItemID:      "menu-1",
		Quantity:        2,
		UnitPriceCents:  950,
		SelectedOptions: types.SelectedOptions{"size": "large", "member_ids": []string{member.String()}},
		Assignment:      PerMemberAssignment([]uuid.UUID{member}, nil),
		AddedByMemberID: &member,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if item.ItemName != "menu-1" {
		t.Fatalf("expected menu id as fallback name, got %q", item.ItemName)
	}
	if _, leaked := item.SelectedOptions["member_ids"]; leaked {
		t.Fatal("assignment metadata must not reach stored options")
	}
	if item.SelectedOptions["size"] != "large" {
		t.Fatal("real options must survive the strip")
	}
	if item.MemberID == nil || *item.MemberID != member {
		t.Fatalf("expected claimed row, got %+v", item)
	}
	if env.mirror.adds != 1 {
		t.Fatalf("expected one mirror add, got %d", env.mirror.adds)
	}

	members, _ := env.repo.ListMembers(ctx, cart.ID)
	if len(members) != 1 {
		t.Fatalf("expected adder registered on roster, got %+v", members)
	}
}

func TestAddItemMirrorFailureIsNonFatal(t *testing.T) {
	env := newCartTestEnv(t)
	env.mirror.err = errors.New("provider down")
	cart := env.mustEnsureCart(t, nil)

	item, err := env.svc.AddItem(context.Background(), cart.ID, AddItemInput{MenuItemID: "menu-1", Quantity: 1})
	if err != nil {
		t.Fatalf("mirror failure must not fail the add: %v", err)
	}
	if item == nil || item.ID == uuid.Nil {
		t.Fatal("expected a persisted item")
	}
}

func TestAddItemRejectsTerminalCart(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)
	if err := env.repo.UpdateStatus(ctx, cart.ID, enums.CartStatusSubmitted); err != nil {
		t.Fatalf("status update failed: %v", err)
	}

	_, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{MenuItemID: "menu-1"})
	errCode(t, err, pkgerrors.CodeStateConflict)
}

func TestUpdateItemPatchesAndReassigns(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)
	item, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{MenuItemID: "menu-1", Quantity: 1})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	qty := 4
	extras := ExtrasAssignment(2)
	updated, err := env.svc.UpdateItem(ctx, cart.ID, item.ID, UpdateItemInput{
		Quantity:   &qty,
		Assignment: &extras,
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	// Extras assignment wins over the requested quantity.
	if !updated.IsExtra || updated.Quantity != 2 {
		t.Fatalf("expected 2 extras, got %+v", updated)
	}
	if env.mirror.updates != 1 {
		t.Fatalf("expected one mirror update, got %d", env.mirror.updates)
	}

	_, err = env.svc.UpdateItem(ctx, cart.ID, uuid.New(), UpdateItemInput{Quantity: &qty})
	errCode(t, err, pkgerrors.CodeNotFound)
}

func TestRemoveItemMirrorsSnapshot(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)
	item, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{MenuItemID: "menu-1", Quantity: 1})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	lineID := "remote-line-9"
	if _, err := env.repo.UpdateItemFields(ctx, cart.ID, item.ID, map[string]any{"provider_line_id": lineID}); err != nil {
		t.Fatalf("line id write failed: %v", err)
	}

	if err := env.svc.RemoveItem(ctx, cart.ID, item.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if env.mirror.removes != 1 {
		t.Fatalf("expected one mirror remove, got %d", env.mirror.removes)
	}
	// The mirror sees the pre-delete snapshot with its remote line id.
	if env.mirror.lastItem == nil || env.mirror.lastItem.ProviderLineID == nil || *env.mirror.lastItem.ProviderLineID != lineID {
		t.Fatalf("expected snapshot with remote line id, got %+v", env.mirror.lastItem)
	}

	err = env.svc.RemoveItem(ctx, cart.ID, item.ID)
	errCode(t, err, pkgerrors.CodeNotFound)
}

func TestUpsertFulfillmentDerivesStatusFromNewSchedule(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)

	past := "2026-08-30"
	updated, err := env.svc.UpsertFulfillment(ctx, cart.ID, types.Fulfillment{
		Service: enums.FulfillmentServicePickup,
		Date:    &past,
	})
	if err != nil {
		t.Fatalf("fulfillment upsert failed: %v", err)
	}
	if updated.Status != enums.CartStatusAbandoned {
		t.Fatalf("expected abandoned for past schedule, got %s", updated.Status)
	}

	// Rescheduling forward resurrects the cart.
	future := "2026-09-05"
	updated, err = env.svc.UpsertFulfillment(ctx, cart.ID, types.Fulfillment{
		Service: enums.FulfillmentServicePickup,
		Date:    &future,
	})
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if updated.Status != enums.CartStatusDraft {
		t.Fatalf("expected draft after reschedule, got %s", updated.Status)
	}
}

func TestUpsertFulfillmentRejectsSubmitted(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)
	if err := env.repo.UpdateStatus(ctx, cart.ID, enums.CartStatusSubmitted); err != nil {
		t.Fatalf("status update failed: %v", err)
	}

	_, err := env.svc.UpsertFulfillment(ctx, cart.ID, types.Fulfillment{Service: enums.FulfillmentServiceDelivery})
	errCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSubmitCartFreezesSnapshotAndRoster(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()

	owner := uuid.New()
	claimer := uuid.New()
	cart := env.mustEnsureCart(t, func(in *EnsureCartInput) { in.CreatedByMemberID = &owner })

	_, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{
		MenuItemID: "menu-1", Quantity: 1,
		Assignment:      PerMemberAssignment([]uuid.UUID{claimer}, nil),
		AddedByMemberID: &owner,
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	actor := uuid.New()
	submitted, err := env.svc.SubmitCart(ctx, cart.ID, &actor)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if submitted.Status != enums.CartStatusSubmitted || submitted.SubmittedAt == nil {
		t.Fatalf("expected submitted cart with timestamp, got %+v", submitted)
	}
	// Snapshot holds claimers except the owner.
	if len(submitted.AssignmentMemberIDs) != 1 || submitted.AssignmentMemberIDs[0] != claimer.String() {
		t.Fatalf("unexpected assignment snapshot: %v", submitted.AssignmentMemberIDs)
	}

	members, err := env.repo.ListMembers(ctx, cart.ID)
	if err != nil {
		t.Fatalf("member list failed: %v", err)
	}
	got := map[uuid.UUID]bool{}
	for _, member := range members {
		got[member.MemberID] = true
	}
	// Union of creator, claimer, and the submitting actor.
	for _, id := range []uuid.UUID{owner, claimer, actor} {
		if !got[id] {
			t.Fatalf("expected member %s on frozen roster, got %+v", id, members)
		}
	}

	_, err = env.svc.SubmitCart(ctx, cart.ID, nil)
	errCode(t, err, pkgerrors.CodeStateConflict)
}

func TestSubmitCartRejectsEmptyAndStale(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()

	empty := env.mustEnsureCart(t, nil)
	_, err := env.svc.SubmitCart(ctx, empty.ID, nil)
	errCode(t, err, pkgerrors.CodeValidation)

	past := "2026-08-30"
	stale := env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.RestaurantID = uuid.New()
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &past}
	})
	if _, err := env.svc.AddItem(ctx, stale.ID, AddItemInput{MenuItemID: "menu-1"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	_, err = env.svc.SubmitCart(ctx, stale.ID, nil)
	errCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListOpenCartsOrdersAndPersistsDerived(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	teamID := uuid.New()

	unscheduled := env.mustEnsureCart(t, func(in *EnsureCartInput) { in.TeamID = teamID })
	soon := "2026-09-02"
	later := "2026-09-05"
	past := "2026-08-30"

	soonCart := env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.TeamID = teamID
		in.RestaurantID = uuid.New()
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &soon}
	})
	laterCart := env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.TeamID = teamID
		in.RestaurantID = uuid.New()
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &later}
	})
	pastCart := env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.TeamID = teamID
		in.RestaurantID = uuid.New()
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &past}
	})

	open, err := env.svc.ListOpenCarts(ctx, teamID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(open) != 4 {
		t.Fatalf("expected 4 open carts, got %d", len(open))
	}
	wantOrder := []uuid.UUID{soonCart.ID, laterCart.ID, pastCart.ID, unscheduled.ID}
	for i, want := range wantOrder {
		if open[i].Cart.ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, open[i].Cart.ID)
		}
	}

	for _, entry := range open {
		if entry.Cart.ID == pastCart.ID && entry.Status != enums.CartStatusAbandoned {
			t.Fatalf("expected derived abandoned, got %s", entry.Status)
		}
	}

	// The derived flip was persisted, not just displayed.
	stored, err := env.repo.FindCartByID(ctx, pastCart.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Status != enums.CartStatusAbandoned {
		t.Fatalf("expected persisted abandoned, got %s", stored.Status)
	}
}

func TestGetSnapshotSurvivesRestaurantOutage(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)

	env.restErr = errors.New("directory down")
	snapshot, err := env.svc.GetSnapshot(ctx, cart.ID)
	if err != nil {
		t.Fatalf("snapshot must tolerate restaurant outage: %v", err)
	}
	if snapshot.Restaurant != nil {
		t.Fatal("expected nil restaurant on outage")
	}
	if snapshot.Cart == nil || snapshot.Cart.ID != cart.ID {
		t.Fatalf("unexpected snapshot cart: %+v", snapshot.Cart)
	}
}

func TestGetProgressUsesRoster(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	waiting := uuid.New()
	env.roster = []RosterMember{{ID: waiting, DisplayName: "Waiting"}}

	cart := env.mustEnsureCart(t, nil)
	progress, err := env.svc.GetProgress(ctx, cart.ID)
	if err != nil {
		t.Fatalf("progress failed: %v", err)
	}
	if len(progress.WaitingMembers) != 1 || progress.WaitingMembers[0].MemberID != waiting {
		t.Fatalf("expected roster member waiting, got %+v", progress.WaitingMembers)
	}
}

func TestDeleteCartNotFound(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)

	if err := env.svc.DeleteCart(ctx, cart.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	err := env.svc.DeleteCart(ctx, cart.ID)
	errCode(t, err, pkgerrors.CodeNotFound)
}

func TestJoinCartAndSubscribe(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()
	cart := env.mustEnsureCart(t, nil)

	member := uuid.New()
	if err := env.svc.JoinCart(ctx, cart.ID, member, enums.JoinedViaEmailLink); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	members, _ := env.repo.ListMembers(ctx, cart.ID)
	if len(members) != 1 || members[0].JoinedVia != enums.JoinedViaEmailLink {
		t.Fatalf("unexpected membership: %+v", members)
	}

	events, cancel, err := env.svc.Subscribe(ctx, cart.ID)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	if _, err := env.svc.AddItem(ctx, cart.ID, AddItemInput{MenuItemID: "menu-1"}); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	deadline := time.After(time.Second)
	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case event := <-events:
			seen[event.Type] = true
		case <-deadline:
			t.Fatalf("timed out waiting for events, saw %v", seen)
		}
	}
	if !seen[EventItemsChanged] || !seen[EventBadgeUpdated] {
		t.Fatalf("expected items and badge events, saw %v", seen)
	}

	_, _, err = env.svc.Subscribe(ctx, uuid.New())
	errCode(t, err, pkgerrors.CodeNotFound)
}

func TestReconcileLifecycle(t *testing.T) {
	env := newCartTestEnv(t)
	ctx := context.Background()

	past := "2026-08-20"
	future := "2026-09-20"
	stale := env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &past}
	})
	env.mustEnsureCart(t, func(in *EnsureCartInput) {
		in.Fulfillment = &types.Fulfillment{Service: enums.FulfillmentServiceDelivery, Date: &future}
	})

	flipped, err := env.svc.ReconcileLifecycle(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if flipped != 1 {
		t.Fatalf("expected 1 flipped cart, got %d", flipped)
	}

	stored, err := env.repo.FindCartByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if stored.Status != enums.CartStatusAbandoned {
		t.Fatalf("expected abandoned, got %s", stored.Status)
	}
}
