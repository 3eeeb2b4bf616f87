package carts

import (
	"time"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

// EffectiveStatus derives the status a cart should present right now.
// Submitted is terminal and never downgraded. A draft with a scheduled
// fulfillment in the past reads as abandoned; the scheduled time defaults
// to noon when only a date is set. Carts with no schedule stay draft.
func EffectiveStatus(stored enums.CartStatus, date, timeOfDay *string, now time.Time) enums.CartStatus {
	if stored == enums.CartStatusSubmitted {
		return enums.CartStatusSubmitted
	}
	scheduledAt, ok := types.ScheduleAt(date, timeOfDay, now.Location())
	if !ok {
		return enums.CartStatusDraft
	}
	if scheduledAt.Before(now) {
		return enums.CartStatusAbandoned
	}
	return enums.CartStatusDraft
}

// EffectiveCartStatus applies EffectiveStatus to a cart record.
func EffectiveCartStatus(cart *models.Cart, now time.Time) enums.CartStatus {
	if cart == nil {
		return enums.CartStatusDraft
	}
	return EffectiveStatus(cart.Status, cart.FulfillmentDate, cart.FulfillmentTime, now)
}
