package types

import (
	"strings"
	"time"

	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

const (
	FulfillmentDateLayout = "2006-01-02"
	FulfillmentTimeLayout = "15:04:05"

	// DefaultFulfillmentTime is assumed when a cart has a scheduled date
	// but no explicit time.
	DefaultFulfillmentTime = "12:00:00"
)

// Fulfillment captures where and when a shared cart should be fulfilled.
type Fulfillment struct {
	Service enums.FulfillmentService `json:"service"`
	Address *string                  `json:"address,omitempty"`
	Lat     *float64                 `json:"lat,omitempty"`
	Lng     *float64                 `json:"lng,omitempty"`
	Date    *string                  `json:"date,omitempty"`
	Time    *string                  `json:"time,omitempty"`
}

// ScheduledAt resolves the fulfillment date/time into a timestamp in loc.
// Returns false when no date is set or the date cannot be parsed.
func (f Fulfillment) ScheduledAt(loc *time.Location) (time.Time, bool) {
	return ScheduleAt(f.Date, f.Time, loc)
}

// ScheduleAt combines a date and an optional time-of-day string into a
// timestamp. A missing time defaults to noon.
func ScheduleAt(date, timeOfDay *string, loc *time.Location) (time.Time, bool) {
	if date == nil || strings.TrimSpace(*date) == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	clock := DefaultFulfillmentTime
	if timeOfDay != nil && strings.TrimSpace(*timeOfDay) != "" {
		clock = strings.TrimSpace(*timeOfDay)
	}
	ts, err := time.ParseInLocation(FulfillmentDateLayout+" "+FulfillmentTimeLayout, strings.TrimSpace(*date)+" "+clock, loc)
	if err != nil {
		// Retry without seconds; callers sometimes send HH:MM.
		ts, err = time.ParseInLocation(FulfillmentDateLayout+" 15:04", strings.TrimSpace(*date)+" "+clock, loc)
		if err != nil {
			return time.Time{}, false
		}
	}
	return ts, true
}
