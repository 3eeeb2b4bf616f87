package cartdto

import (
	"time"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

// CartView is the cart record exposed through the API.
type CartView struct {
	ID                  uuid.UUID          `json:"id"`
	TeamID              uuid.UUID          `json:"team_id"`
	RestaurantID        uuid.UUID          `json:"restaurant_id"`
	ProviderType        enums.ProviderType `json:"provider_type"`
	ProviderCartID      *string            `json:"provider_cart_id,omitempty"`
	Title               string             `json:"title"`
	MealType            *string            `json:"meal_type,omitempty"`
	Status              enums.CartStatus   `json:"status"`
	Fulfillment         types.Fulfillment  `json:"fulfillment"`
	CreatedByMemberID   *uuid.UUID         `json:"created_by_member_id,omitempty"`
	AssignmentMemberIDs []string           `json:"assignment_member_ids,omitempty"`
	SubmittedAt         *time.Time         `json:"submitted_at,omitempty"`
	ItemCount           int                `json:"item_count"`
	SubtotalCents       int                `json:"subtotal_cents"`
	Items               []CartItemView     `json:"items,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// CartItemView is one cart line on the wire.
type CartItemView struct {
	ID                  uuid.UUID             `json:"id"`
	MenuItemID          string                `json:"menu_item_id"`
	ItemName            string                `json:"item_name"`
	Quantity            int                   `json:"quantity"`
	UnitPriceCents      int                   `json:"unit_price_cents"`
	LineSubtotalCents   int                   `json:"line_subtotal_cents"`
	SpecialInstructions *string               `json:"special_instructions,omitempty"`
	SelectedOptions     types.SelectedOptions `json:"selected_options,omitempty"`
	MemberID            *uuid.UUID            `json:"member_id,omitempty"`
	IsExtra             bool                  `json:"is_extra"`
	AddedByMemberID     *uuid.UUID            `json:"added_by_member_id,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// RestaurantView is the restaurant summary embedded in cart snapshots.
type RestaurantView struct {
	ID           uuid.UUID          `json:"id"`
	Name         string             `json:"name"`
	ProviderType enums.ProviderType `json:"provider_type"`
}

// CartSnapshotView is the full cart read: the cart with its items, the
// restaurant summary when available, and the derived team-order progress.
type CartSnapshotView struct {
	Cart       CartView        `json:"cart"`
	Restaurant *RestaurantView `json:"restaurant,omitempty"`
	Progress   *ProgressView   `json:"progress,omitempty"`
}

// ProgressView is the derived team-order progress for one cart.
type ProgressView struct {
	OrderedMembers  []ProgressMemberView `json:"ordered_members"`
	WaitingMembers  []ProgressMemberView `json:"waiting_members"`
	ExtrasCount     int                  `json:"extras_count"`
	UnassignedCount int                  `json:"unassigned_count"`
	HasRecipients   bool                 `json:"has_recipients"`
}

// ProgressMemberView is one member's slice of the progress view.
type ProgressMemberView struct {
	MemberID    uuid.UUID `json:"member_id"`
	DisplayName string    `json:"display_name"`
	ClaimOrder  *int      `json:"claim_order,omitempty"`
	Medal       int       `json:"medal,omitempty"`
	Assists     int       `json:"assists,omitempty"`
	Units       int       `json:"units"`
}

// CartItemsCreated is returned from item adds; split assignments produce
// one entry per member.
type CartItemsCreated struct {
	Items []CartItemView `json:"items"`
}
