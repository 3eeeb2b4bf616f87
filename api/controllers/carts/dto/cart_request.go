package cartdto

import "github.com/grubsquad/grubsquad-backend/pkg/types"

// AssignmentRequest is the loose assignment shape clients send alongside
// item payloads. Every field is optional; malformed member ids are
// silently discarded rather than rejected.
type AssignmentRequest struct {
	MemberIDs     []string           `json:"member_ids,omitempty"`
	MemberID      string             `json:"member_id,omitempty"`
	UnitsByMember map[string]float64 `json:"units_by_member,omitempty"`
	ExtraCount    *float64           `json:"extra_count,omitempty"`
	Extras        []string           `json:"extras,omitempty"`
}

// FulfillmentRequest carries the cart's fulfillment details on create and
// fulfillment-upsert calls.
type FulfillmentRequest struct {
	Service string   `json:"service" validate:"omitempty,oneof=delivery pickup"`
	Address *string  `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
	Date    *string  `json:"date,omitempty"`
	Time    *string  `json:"time,omitempty"`
}

// EnsureCartRequest creates the team's active cart for a restaurant, or
// returns the existing one.
type EnsureCartRequest struct {
	TeamID       string              `json:"team_id" validate:"required,uuid"`
	RestaurantID string              `json:"restaurant_id" validate:"required,uuid"`
	Title        string              `json:"title,omitempty" validate:"omitempty,max=200"`
	MealType     *string             `json:"meal_type,omitempty"`
	MemberID     string              `json:"member_id,omitempty" validate:"omitempty,uuid"`
	Fulfillment  *FulfillmentRequest `json:"fulfillment,omitempty"`
}

// AddItemRequest adds one menu item line to a cart.
type AddItemRequest struct {
	MenuItemID          string                `json:"menu_item_id" validate:"required"`
	ItemName            string                `json:"item_name,omitempty" validate:"omitempty,max=300"`
	Quantity            int                   `json:"quantity,omitempty" validate:"omitempty,min=1"`
	UnitPriceCents      int                   `json:"unit_price_cents,omitempty" validate:"omitempty,min=0"`
	SpecialInstructions *string               `json:"special_instructions,omitempty"`
	SelectedOptions     types.SelectedOptions `json:"selected_options,omitempty"`
	Assignment          *AssignmentRequest    `json:"assignment,omitempty"`
	MemberID            string                `json:"member_id,omitempty" validate:"omitempty,uuid"`
}

// UpdateItemRequest is a partial item patch; absent fields are untouched.
type UpdateItemRequest struct {
	Quantity            *int                  `json:"quantity,omitempty" validate:"omitempty,min=1"`
	UnitPriceCents      *int                  `json:"unit_price_cents,omitempty" validate:"omitempty,min=0"`
	SpecialInstructions *string               `json:"special_instructions,omitempty"`
	SelectedOptions     types.SelectedOptions `json:"selected_options,omitempty"`
	Assignment          *AssignmentRequest    `json:"assignment,omitempty"`
	MemberID            string                `json:"member_id,omitempty" validate:"omitempty,uuid"`
}

// JoinCartRequest registers a member on a cart.
type JoinCartRequest struct {
	MemberID string `json:"member_id" validate:"required,uuid"`
	Via      string `json:"via,omitempty" validate:"omitempty,oneof=roster email_link"`
}

// SubmitCartRequest finalizes a cart. The member id, when present, records
// who pressed submit.
type SubmitCartRequest struct {
	MemberID string `json:"member_id,omitempty" validate:"omitempty,uuid"`
}
