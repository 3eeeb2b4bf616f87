package carts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// RestaurantInfo is the slice of the restaurant record this service needs.
type RestaurantInfo struct {
	ID                   uuid.UUID
	Name                 string
	ProviderType         enums.ProviderType
	ProviderRestaurantID *string
	PriceMultiplier      decimal.Decimal
}

// RestaurantLoader resolves restaurant metadata owned by the menu service.
type RestaurantLoader interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (*RestaurantInfo, error)
}

// RosterLoader resolves the member roster owned by the team service.
type RosterLoader interface {
	ListRoster(ctx context.Context, teamID uuid.UUID) ([]RosterMember, error)
}

// FindCartQuery narrows the active-cart lookup at the service boundary.
type FindCartQuery struct {
	TeamID       uuid.UUID
	RestaurantID uuid.UUID
	ProviderType enums.ProviderType
	MealType     *string
	Fulfillment  *types.Fulfillment
}

// EnsureCartInput carries cart creation options.
type EnsureCartInput struct {
	TeamID            uuid.UUID
	RestaurantID      uuid.UUID
	Title             string
	MealType          *string
	Fulfillment       *types.Fulfillment
	CreatedByMemberID *uuid.UUID
}

// AddItemInput carries one resolved-ownership item row to insert.
type AddItemInput struct {
	MenuItemID          string
	ItemName            string
	Quantity            int
	UnitPriceCents      int
	SpecialInstructions *string
	SelectedOptions     types.SelectedOptions
	Assignment          Assignment
	AddedByMemberID     *uuid.UUID
}

// UpdateItemInput is a partial item patch; nil fields are untouched.
type UpdateItemInput struct {
	Quantity            *int
	UnitPriceCents      *int
	SpecialInstructions *string
	SelectedOptions     types.SelectedOptions
	Assignment          *Assignment
	ActorMemberID       *uuid.UUID
}

// OpenCart is one open-cart list entry with aggregated totals.
type OpenCart struct {
	Cart          models.Cart
	Status        enums.CartStatus
	ItemCount     int
	SubtotalCents int
}

// Snapshot is the single consistent cart read used by presentation layers.
type Snapshot struct {
	Cart                *models.Cart
	Restaurant          *RestaurantInfo
	Items               []models.CartItem
	AssignmentMemberIDs []string
}

// Service exposes the collaborative cart operations.
type Service interface {
	FindActiveCart(ctx context.Context, q FindCartQuery) (*models.Cart, error)
	EnsureCart(ctx context.Context, input EnsureCartInput) (*models.Cart, error)
	AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartItem, error)
	UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, patch UpdateItemInput) (*models.CartItem, error)
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	UpsertFulfillment(ctx context.Context, cartID uuid.UUID, fulfillment types.Fulfillment) (*models.Cart, error)
	ListOpenCarts(ctx context.Context, teamID uuid.UUID) ([]OpenCart, error)
	GetSnapshot(ctx context.Context, cartID uuid.UUID) (*Snapshot, error)
	GetProgress(ctx context.Context, cartID uuid.UUID) (*Progress, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
	SubmitCart(ctx context.Context, cartID uuid.UUID, actorMemberID *uuid.UUID) (*models.Cart, error)
	JoinCart(ctx context.Context, cartID, memberID uuid.UUID, via enums.JoinedVia) error
	Subscribe(ctx context.Context, cartID uuid.UUID) (<-chan CartEvent, func(), error)
	ReconcileLifecycle(ctx context.Context) (int, error)
}

type service struct {
	repo          CartRepository
	tx            txRunner
	restaurants   RestaurantLoader
	roster        RosterLoader
	mirror        Mirror
	bus           Bus
	log           *logger.Logger
	mirrorTimeout time.Duration
	syncMirror    bool
	now           func() time.Time
}

// NewService builds the cart service. The mirror may be nil when remote
// mirroring is feature-flagged off.
func NewService(
	repo CartRepository,
	tx txRunner,
	restaurants RestaurantLoader,
	roster RosterLoader,
	mirror Mirror,
	bus Bus,
	log *logger.Logger,
	mirrorTimeout time.Duration,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if restaurants == nil {
		return nil, fmt.Errorf("restaurant loader required")
	}
	if roster == nil {
		return nil, fmt.Errorf("roster loader required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bus == nil {
		bus = NewMemoryBus()
	}
	if mirrorTimeout <= 0 {
		mirrorTimeout = 8 * time.Second
	}
	return &service{
		repo:          repo,
		tx:            tx,
		restaurants:   restaurants,
		roster:        roster,
		mirror:        mirror,
		bus:           bus,
		log:           log,
		mirrorTimeout: mirrorTimeout,
		now:           time.Now,
	}, nil
}

// FindActiveCart returns the matching draft cart, or nil when none exists.
func (s *service) FindActiveCart(ctx context.Context, q FindCartQuery) (*models.Cart, error) {
	if q.TeamID == uuid.Nil || q.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team id and restaurant id are required")
	}

	query := ActiveCartQuery{
		TeamID:       q.TeamID,
		RestaurantID: q.RestaurantID,
		ProviderType: q.ProviderType,
		MealType:     q.MealType,
	}
	if q.Fulfillment != nil {
		query.Date = q.Fulfillment.Date
		query.Time = q.Fulfillment.Time
	}

	cart, err := s.repo.FindActiveCart(ctx, query)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "active cart lookup failed")
	}

	if EffectiveCartStatus(cart, s.now()) != enums.CartStatusDraft {
		s.persistDerivedStatus(ctx, cart)
		return nil, nil
	}
	return cart, nil
}

// EnsureCart returns an existing matching draft cart or creates one. Remote
// cart creation for provider-backed restaurants is attempted off the
// request path and never blocks the local result.
func (s *service) EnsureCart(ctx context.Context, input EnsureCartInput) (*models.Cart, error) {
	if input.TeamID == uuid.Nil || input.RestaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team id and restaurant id are required")
	}

	restaurant, err := s.restaurants.GetRestaurant(ctx, input.RestaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restaurant lookup failed")
	}

	existing, err := s.FindActiveCart(ctx, FindCartQuery{
		TeamID:       input.TeamID,
		RestaurantID: input.RestaurantID,
		ProviderType: restaurant.ProviderType,
		MealType:     input.MealType,
		Fulfillment:  input.Fulfillment,
	})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = restaurant.Name
	}
	cart := &models.Cart{
		TeamID:               input.TeamID,
		RestaurantID:         input.RestaurantID,
		ProviderType:         restaurant.ProviderType,
		ProviderRestaurantID: restaurant.ProviderRestaurantID,
		Title:                title,
		MealType:             input.MealType,
		Status:               enums.CartStatusDraft,
		CreatedByMemberID:    input.CreatedByMemberID,
	}
	applyFulfillment(cart, input.Fulfillment)

	cart, err = s.repo.CreateCart(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart create failed")
	}

	if input.CreatedByMemberID != nil {
		s.registerMember(ctx, cart.ID, *input.CreatedByMemberID, enums.JoinedViaRoster)
	}
	if cart.ProviderType.RequiresRemoteCart() {
		s.runMirror(ctx, cart.ID, func(mctx context.Context) error {
			return s.mirror.EnsureRemoteCart(mctx, cart)
		})
	}
	return cart, nil
}

// AddItem persists one resolved item row. Roster registration and remote
// mirroring are best-effort follow-ups; neither can fail the add.
func (s *service) AddItem(ctx context.Context, cartID uuid.UUID, input AddItemInput) (*models.CartItem, error) {
	if strings.TrimSpace(input.MenuItemID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "menu item is required")
	}
	cart, err := s.loadMutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	resolved := ResolveAssignment(input.Quantity, input.Assignment)
	name := strings.TrimSpace(input.ItemName)
	if name == "" {
		name = input.MenuItemID
	}

	item := &models.CartItem{
		CartID:              cart.ID,
		MenuItemID:          input.MenuItemID,
		ItemName:            name,
		Quantity:            resolved.Quantity,
		UnitPriceCents:      input.UnitPriceCents,
		SpecialInstructions: input.SpecialInstructions,
		SelectedOptions:     input.SelectedOptions.WithoutAssignmentMetadata(),
		MemberID:            resolved.MemberID,
		IsExtra:             resolved.IsExtra,
		AddedByMemberID:     input.AddedByMemberID,
	}
	item, err = s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item create failed")
	}
	if err := s.repo.TouchCart(ctx, cart.ID); err != nil {
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "cart touch failed", err)
	}

	if input.AddedByMemberID != nil {
		s.registerMember(ctx, cart.ID, *input.AddedByMemberID, enums.JoinedViaRoster)
	}
	s.runMirror(ctx, cart.ID, func(mctx context.Context) error {
		return s.mirror.MirrorAddItem(mctx, cart, item)
	})
	s.publishItemChange(ctx, cart, &item.ID, input.AddedByMemberID)
	return item, nil
}

// UpdateItem applies a partial patch. When the item carries a remote line
// id the mirror realizes the edit as remove-then-re-add; a mirror failure
// never rolls the local update back.
func (s *service) UpdateItem(ctx context.Context, cartID, itemID uuid.UUID, patch UpdateItemInput) (*models.CartItem, error) {
	cart, err := s.loadMutableCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	item, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item lookup failed")
	}

	fields := map[string]any{}
	if patch.Quantity != nil {
		fields["quantity"] = clampQuantity(*patch.Quantity)
	}
	if patch.UnitPriceCents != nil {
		fields["unit_price_cents"] = *patch.UnitPriceCents
	}
	if patch.SpecialInstructions != nil {
		fields["special_instructions"] = *patch.SpecialInstructions
	}
	if patch.SelectedOptions != nil {
		fields["selected_options"] = patch.SelectedOptions.WithoutAssignmentMetadata()
	}
	if patch.Assignment != nil {
		qty := item.Quantity
		if patch.Quantity != nil {
			qty = *patch.Quantity
		}
		resolved := ResolveAssignment(qty, *patch.Assignment)
		fields["quantity"] = resolved.Quantity
		fields["member_id"] = resolved.MemberID
		fields["is_extra"] = resolved.IsExtra
	}
	if len(fields) == 0 {
		return item, nil
	}

	rows, err := s.repo.UpdateItemFields(ctx, cartID, itemID, fields)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item update failed")
	}
	if rows == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	updated, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item reload failed")
	}
	if err := s.repo.TouchCart(ctx, cart.ID); err != nil {
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "cart touch failed", err)
	}

	if patch.ActorMemberID != nil {
		s.registerMember(ctx, cart.ID, *patch.ActorMemberID, enums.JoinedViaRoster)
	}
	s.runMirror(ctx, cart.ID, func(mctx context.Context) error {
		return s.mirror.MirrorUpdateItem(mctx, cart, updated)
	})
	s.publishItemChange(ctx, cart, &updated.ID, patch.ActorMemberID)
	return updated, nil
}

// RemoveItem deletes one item row. The remote removal uses a snapshot read
// taken before the delete since the remote line id is gone afterwards.
func (s *service) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	cart, err := s.loadMutableCart(ctx, cartID)
	if err != nil {
		return err
	}
	snapshot, err := s.repo.FindItemByID(ctx, cartID, itemID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item lookup failed")
	}

	rows, err := s.repo.DeleteItem(ctx, cartID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart item delete failed")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	if err := s.repo.TouchCart(ctx, cart.ID); err != nil {
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "cart touch failed", err)
	}

	s.runMirror(ctx, cart.ID, func(mctx context.Context) error {
		return s.mirror.MirrorRemoveItem(mctx, cart, snapshot)
	})
	s.publishItemChange(ctx, cart, &itemID, nil)
	return nil
}

// UpsertFulfillment writes fulfillment fields and recomputes the derived
// status from the new schedule, not the stored one.
func (s *service) UpsertFulfillment(ctx context.Context, cartID uuid.UUID, fulfillment types.Fulfillment) (*models.Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status == enums.CartStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart already submitted")
	}

	hadRemote := cart.ProviderCartID != nil
	applyFulfillment(cart, &fulfillment)
	cart.Status = EffectiveStatus(enums.CartStatusDraft, cart.FulfillmentDate, cart.FulfillmentTime, s.now())

	cart, err = s.repo.SaveCart(ctx, cart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fulfillment save failed")
	}

	if cart.ProviderType.RequiresRemoteCart() && !hadRemote {
		s.runMirror(ctx, cart.ID, func(mctx context.Context) error {
			return s.mirror.EnsureRemoteCart(mctx, cart)
		})
	}
	s.publish(ctx, CartEvent{
		CartID: cart.ID,
		Type:   EventFulfillmentUpdated,
		At:     s.now().UTC(),
	})
	return cart, nil
}

// ListOpenCarts returns all non-submitted carts for a team with derived
// statuses, aggregated totals, and list ordering: scheduled-future soonest
// first, then scheduled-past most recent first, then unscheduled by last
// update. Newly derived abandoned statuses are persisted in one write.
func (s *service) ListOpenCarts(ctx context.Context, teamID uuid.UUID) ([]OpenCart, error) {
	if teamID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "team id is required")
	}
	carts, err := s.repo.ListOpenCarts(ctx, teamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open cart list failed")
	}

	now := s.now()
	var newlyAbandoned []uuid.UUID
	out := make([]OpenCart, 0, len(carts))
	for i := range carts {
		cart := carts[i]
		status := EffectiveCartStatus(&cart, now)
		if status == enums.CartStatusAbandoned && cart.Status != enums.CartStatusAbandoned {
			newlyAbandoned = append(newlyAbandoned, cart.ID)
		}
		entry := OpenCart{Cart: cart, Status: status}
		for _, item := range cart.Items {
			entry.ItemCount += item.Quantity
			entry.SubtotalCents += item.SubtotalCents()
		}
		out = append(out, entry)
	}

	if len(newlyAbandoned) > 0 {
		if err := s.repo.BatchUpdateStatus(ctx, newlyAbandoned, enums.CartStatusAbandoned); err != nil {
			s.log.Error(ctx, "abandoned status batch persist failed", err)
		}
	}

	sortOpenCarts(out, now)
	return out, nil
}

// GetSnapshot returns the cart, its restaurant, and its items in one read,
// persisting any newly derived status as a side effect.
func (s *service) GetSnapshot(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	s.persistDerivedStatus(ctx, cart)

	restaurant, err := s.restaurants.GetRestaurant(ctx, cart.RestaurantID)
	if err != nil {
		// snapshot reads survive a restaurant-service outage
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "restaurant lookup failed", err)
		restaurant = nil
	}

	return &Snapshot{
		Cart:                cart,
		Restaurant:          restaurant,
		Items:               cart.Items,
		AssignmentMemberIDs: cart.AssignmentMemberIDs,
	}, nil
}

// GetProgress computes the team order-progress view for one cart.
func (s *service) GetProgress(ctx context.Context, cartID uuid.UUID) (*Progress, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.ListRoster(ctx, cart.TeamID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "roster lookup failed")
	}

	progress := ComputeProgress(roster, cart.Items, cart.CreatedByMemberID)
	return &progress, nil
}

// DeleteCart removes a cart; zero affected rows surfaces as not found so
// callers can distinguish "already gone" from success.
func (s *service) DeleteCart(ctx context.Context, cartID uuid.UUID) error {
	rows, err := s.repo.DeleteCart(ctx, cartID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart delete failed")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	s.publish(ctx, CartEvent{CartID: cartID, Type: EventCartDeleted, At: s.now().UTC()})
	return nil
}

// SubmitCart transitions a draft to the terminal submitted state, freezing
// the assignment member snapshot and the submission timestamp.
func (s *service) SubmitCart(ctx context.Context, cartID uuid.UUID, actorMemberID *uuid.UUID) (*models.Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status == enums.CartStatusSubmitted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart already submitted")
	}
	if EffectiveCartStatus(cart, s.now()) == enums.CartStatusAbandoned {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart schedule has passed")
	}
	if len(cart.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart has no items")
	}

	progress := ComputeProgress(nil, cart.Items, cart.CreatedByMemberID)
	submittedAt := s.now().UTC()
	cart.Status = enums.CartStatusSubmitted
	cart.SubmittedAt = &submittedAt
	snapshotIDs := make(pq.StringArray, 0, len(progress.AssignmentMemberIDs))
	for _, id := range progress.AssignmentMemberIDs {
		snapshotIDs = append(snapshotIDs, id.String())
	}
	cart.AssignmentMemberIDs = snapshotIDs

	desired := submitRoster(cart, actorMemberID)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.SaveCart(ctx, cart); err != nil {
			return err
		}
		return repo.SyncMembers(ctx, cart.ID, desired)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart submit failed")
	}

	s.publishItemChange(ctx, cart, nil, actorMemberID)
	return cart, nil
}

// submitRoster is the union of the stored roster, every claiming member,
// and the submitting actor; membership is frozen alongside the snapshot.
func submitRoster(cart *models.Cart, actorMemberID *uuid.UUID) []models.CartMember {
	seen := map[uuid.UUID]struct{}{}
	var desired []models.CartMember
	add := func(id uuid.UUID, via enums.JoinedVia) {
		if id == uuid.Nil {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		desired = append(desired, models.CartMember{CartID: cart.ID, MemberID: id, JoinedVia: via})
	}
	for _, member := range cart.Members {
		add(member.MemberID, member.JoinedVia)
	}
	for _, item := range cart.Items {
		if item.MemberID != nil && !item.IsExtra {
			add(*item.MemberID, enums.JoinedViaRoster)
		}
	}
	if actorMemberID != nil {
		add(*actorMemberID, enums.JoinedViaRoster)
	}
	return desired
}

// JoinCart registers a member on the cart roster.
func (s *service) JoinCart(ctx context.Context, cartID, memberID uuid.UUID, via enums.JoinedVia) error {
	if memberID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "member id is required")
	}
	if !via.IsValid() {
		via = enums.JoinedViaRoster
	}
	if _, err := s.loadCart(ctx, cartID); err != nil {
		return err
	}
	if err := s.repo.UpsertMember(ctx, models.CartMember{CartID: cartID, MemberID: memberID, JoinedVia: via}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart join failed")
	}
	return nil
}

// Subscribe registers a change listener for one cart. Consumers re-fetch a
// snapshot per notification; only at-least-once delivery is guaranteed.
func (s *service) Subscribe(ctx context.Context, cartID uuid.UUID) (<-chan CartEvent, func(), error) {
	if _, err := s.loadCart(ctx, cartID); err != nil {
		return nil, nil, err
	}
	return s.bus.Subscribe(ctx, cartID)
}

// ReconcileLifecycle batch-derives abandoned status for stale scheduled
// drafts, returning how many carts were flipped.
func (s *service) ReconcileLifecycle(ctx context.Context) (int, error) {
	drafts, err := s.repo.ListScheduledDrafts(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "scheduled draft list failed")
	}

	now := s.now()
	var stale []uuid.UUID
	for i := range drafts {
		if EffectiveCartStatus(&drafts[i], now) == enums.CartStatusAbandoned {
			stale = append(stale, drafts[i].ID)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.repo.BatchUpdateStatus(ctx, stale, enums.CartStatusAbandoned); err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "abandoned status batch persist failed")
	}
	return len(stale), nil
}

func (s *service) loadCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if cartID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id is required")
	}
	cart, err := s.repo.FindCartByID(ctx, cartID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart lookup failed")
	}
	return cart, nil
}

// loadMutableCart loads a cart and rejects mutations once it is terminal.
func (s *service) loadMutableCart(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, err := s.loadCart(ctx, cartID)
	if err != nil {
		return nil, err
	}
	if cart.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is no longer open")
	}
	return cart, nil
}

// persistDerivedStatus writes a newly derived status back, best-effort.
// Read paths return the derived value even when the write fails.
func (s *service) persistDerivedStatus(ctx context.Context, cart *models.Cart) {
	derived := EffectiveCartStatus(cart, s.now())
	if derived == cart.Status {
		return
	}
	if err := s.repo.UpdateStatus(ctx, cart.ID, derived); err != nil {
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "derived status persist failed", err)
	}
	cart.Status = derived
}

// registerMember adds a member to the cart roster, best-effort. Membership
// is advisory for progress display, not authoritative for ownership.
func (s *service) registerMember(ctx context.Context, cartID, memberID uuid.UUID, via enums.JoinedVia) {
	err := s.repo.UpsertMember(ctx, models.CartMember{CartID: cartID, MemberID: memberID, JoinedVia: via})
	if err != nil {
		ctx = s.log.WithCartID(ctx, cartID.String())
		ctx = s.log.WithMemberID(ctx, memberID.String())
		s.log.Error(ctx, "cart member registration failed", err)
	}
}

// runMirror executes one provider-mirror step off the request path with its
// own bounded timeout. Failures are logged and swallowed.
func (s *service) runMirror(ctx context.Context, cartID uuid.UUID, fn func(ctx context.Context) error) {
	if s.mirror == nil {
		return
	}
	call := func() {
		mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mirrorTimeout)
		defer cancel()
		if err := fn(mctx); err != nil {
			s.log.Error(s.log.WithCartID(mctx, cartID.String()), "provider mirror failed", err)
		}
	}
	if s.syncMirror {
		call()
		return
	}
	go call()
}

// publishItemChange emits the items-changed and badge events for one
// committed mutation. The badge is rebuilt from a fresh item read.
func (s *service) publishItemChange(ctx context.Context, cart *models.Cart, itemID, memberID *uuid.UUID) {
	at := s.now().UTC()
	s.publish(ctx, CartEvent{
		CartID:   cart.ID,
		Type:     EventItemsChanged,
		ItemID:   itemID,
		MemberID: memberID,
		At:       at,
	})

	items, err := s.repo.ListItems(ctx, cart.ID)
	if err != nil {
		s.log.Error(s.log.WithCartID(ctx, cart.ID.String()), "badge item read failed", err)
		return
	}
	badge := Badge{
		CartID:       cart.ID,
		RestaurantID: cart.RestaurantID,
		Title:        cart.Title,
		Fulfillment: types.Fulfillment{
			Service: cart.FulfillmentService,
			Address: cart.FulfillmentAddress,
			Lat:     cart.FulfillmentLat,
			Lng:     cart.FulfillmentLng,
			Date:    cart.FulfillmentDate,
			Time:    cart.FulfillmentTime,
		},
	}
	for _, item := range items {
		badge.ItemCount += item.Quantity
		badge.SubtotalCents += item.SubtotalCents()
	}
	s.publish(ctx, CartEvent{CartID: cart.ID, Type: EventBadgeUpdated, Badge: &badge, At: at})
}

func (s *service) publish(ctx context.Context, event CartEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(ctx, event)
}

func applyFulfillment(cart *models.Cart, f *types.Fulfillment) {
	if f == nil {
		return
	}
	if f.Service.IsValid() {
		cart.FulfillmentService = f.Service
	}
	cart.FulfillmentAddress = f.Address
	cart.FulfillmentLat = f.Lat
	cart.FulfillmentLng = f.Lng
	cart.FulfillmentDate = f.Date
	cart.FulfillmentTime = f.Time
}

// sortOpenCarts orders open carts for display: upcoming scheduled carts by
// soonest schedule, then past scheduled carts by most recent schedule, then
// unscheduled carts by last update.
func sortOpenCarts(carts []OpenCart, now time.Time) {
	rank := func(c OpenCart) (int, time.Time) {
		at, ok := types.ScheduleAt(c.Cart.FulfillmentDate, c.Cart.FulfillmentTime, time.UTC)
		if !ok {
			return 2, c.Cart.UpdatedAt
		}
		if at.After(now) {
			return 0, at
		}
		return 1, at
	}
	sort.SliceStable(carts, func(i, j int) bool {
		ri, ti := rank(carts[i])
		rj, tj := rank(carts[j])
		if ri != rj {
			return ri < rj
		}
		switch ri {
		case 0:
			return ti.Before(tj)
		default:
			return ti.After(tj)
		}
	})
}
