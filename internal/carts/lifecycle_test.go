package carts

import (
	"testing"
	"time"

	"github.com/grubsquad/grubsquad-backend/pkg/enums"
)

func strPtr(s string) *string { return &s }

func TestEffectiveStatusSubmittedIsTerminal(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	got := EffectiveStatus(enums.CartStatusSubmitted, strPtr("2020-01-01"), nil, now)
	if got != enums.CartStatusSubmitted {
		t.Fatalf("submitted must never downgrade, got %s", got)
	}
}

func TestEffectiveStatusPastScheduleReadsAbandoned(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

	got := EffectiveStatus(enums.CartStatusDraft, strPtr("2026-08-31"), strPtr("18:30:00"), now)
	if got != enums.CartStatusAbandoned {
		t.Fatalf("expected abandoned for yesterday's schedule, got %s", got)
	}

	got = EffectiveStatus(enums.CartStatusDraft, strPtr("2026-09-02"), strPtr("12:00:00"), now)
	if got != enums.CartStatusDraft {
		t.Fatalf("expected draft for tomorrow's schedule, got %s", got)
	}
}

func TestEffectiveStatusDefaultsToNoon(t *testing.T) {
	t.Parallel()

	// Same-day date with no time: noon is assumed.
	morning := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	if got := EffectiveStatus(enums.CartStatusDraft, strPtr("2026-09-01"), nil, morning); got != enums.CartStatusDraft {
		t.Fatalf("expected draft before noon, got %s", got)
	}

	afternoon := time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC)
	if got := EffectiveStatus(enums.CartStatusDraft, strPtr("2026-09-01"), nil, afternoon); got != enums.CartStatusAbandoned {
		t.Fatalf("expected abandoned after noon, got %s", got)
	}
}

func TestEffectiveStatusNoScheduleStaysDraft(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)
	if got := EffectiveStatus(enums.CartStatusDraft, nil, nil, now); got != enums.CartStatusDraft {
		t.Fatalf("expected draft without a schedule, got %s", got)
	}
	if got := EffectiveStatus(enums.CartStatusDraft, strPtr(""), nil, now); got != enums.CartStatusDraft {
		t.Fatalf("expected draft for empty date, got %s", got)
	}
	// Unparseable dates never abandon a cart.
	if got := EffectiveStatus(enums.CartStatusDraft, strPtr("soon"), nil, now); got != enums.CartStatusDraft {
		t.Fatalf("expected draft for malformed date, got %s", got)
	}
}
