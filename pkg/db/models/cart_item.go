package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

// CartItem is one line in a cart: Quantity identical units of a menu item
// with identical customization, owned by one member, the extras bucket, or
// nobody (unassigned).
type CartItem struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CartID              uuid.UUID             `gorm:"column:cart_id;type:uuid;not null"`
	MenuItemID          string                `gorm:"column:menu_item_id;not null"`
	ItemName            string                `gorm:"column:item_name;not null"`
	Quantity            int                   `gorm:"column:quantity;not null;default:1"`
	UnitPriceCents      int                   `gorm:"column:unit_price_cents;not null;default:0"`
	SpecialInstructions *string               `gorm:"column:special_instructions"`
	SelectedOptions     types.SelectedOptions `gorm:"column:selected_options;type:jsonb;serializer:json"`
	MemberID            *uuid.UUID            `gorm:"column:member_id;type:uuid"`
	IsExtra             bool                  `gorm:"column:is_extra;not null;default:false"`
	AddedByMemberID     *uuid.UUID            `gorm:"column:added_by_member_id;type:uuid"`
	ProviderLineID      *string               `gorm:"column:provider_line_id"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ClaimedUnits returns the units attributed to a named member.
func (i CartItem) ClaimedUnits() int {
	if i.MemberID == nil || i.IsExtra {
		return 0
	}
	return i.Quantity
}

// ExtraUnits returns the units in the extras bucket.
func (i CartItem) ExtraUnits() int {
	if !i.IsExtra {
		return 0
	}
	return i.Quantity
}

// UnassignedUnits returns units neither claimed nor extra.
func (i CartItem) UnassignedUnits() int {
	remaining := i.Quantity - i.ClaimedUnits() - i.ExtraUnits()
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SubtotalCents is the line total.
func (i CartItem) SubtotalCents() int {
	return i.Quantity * i.UnitPriceCents
}
