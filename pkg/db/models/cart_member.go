package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

// CartMember associates a team member with a cart for progress tracking,
// independent of whether they have added items yet.
type CartMember struct {
	CartID    uuid.UUID       `gorm:"column:cart_id;type:uuid;primaryKey"`
	MemberID  uuid.UUID       `gorm:"column:member_id;type:uuid;primaryKey"`
	JoinedVia enums.JoinedVia `gorm:"column:joined_via;not null;default:'roster'"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}
