package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

// Cart is one shared group order against one restaurant for one team.
type Cart struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TeamID               uuid.UUID                `gorm:"column:team_id;type:uuid;not null"`
	RestaurantID         uuid.UUID                `gorm:"column:restaurant_id;type:uuid;not null"`
	ProviderType         enums.ProviderType       `gorm:"column:provider_type;not null;default:'none'"`
	ProviderRestaurantID *string                  `gorm:"column:provider_restaurant_id"`
	ProviderCartID       *string                  `gorm:"column:provider_cart_id"`
	ProviderCartRaw      json.RawMessage          `gorm:"column:provider_cart_raw;type:jsonb"`
	Title                string                   `gorm:"column:title;not null;default:''"`
	MealType             *string                  `gorm:"column:meal_type"`
	Status               enums.CartStatus         `gorm:"column:status;not null;default:'draft'"`
	FulfillmentService   enums.FulfillmentService `gorm:"column:fulfillment_service;not null;default:'delivery'"`
	FulfillmentAddress   *string                  `gorm:"column:fulfillment_address"`
	FulfillmentLat       *float64                 `gorm:"column:fulfillment_lat"`
	FulfillmentLng       *float64                 `gorm:"column:fulfillment_lng"`
	FulfillmentDate      *string                  `gorm:"column:fulfillment_date"`
	FulfillmentTime      *string                  `gorm:"column:fulfillment_time"`
	CreatedByMemberID    *uuid.UUID               `gorm:"column:created_by_member_id;type:uuid"`
	AssignmentMemberIDs  pq.StringArray           `gorm:"column:assignment_member_ids;type:text[]"`
	SubmittedAt          *time.Time               `gorm:"column:submitted_at"`
	Items                []CartItem               `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	Members              []CartMember             `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// Scheduled reports whether a fulfillment date is set.
func (c Cart) Scheduled() bool {
	return c.FulfillmentDate != nil && *c.FulfillmentDate != ""
}
