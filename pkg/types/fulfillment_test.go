package types

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestScheduleAtDefaultsToNoon(t *testing.T) {
	ts, ok := ScheduleAt(strPtr("2026-09-01"), nil, time.UTC)
	if !ok {
		t.Fatal("expected a schedule")
	}
	want := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("expected %s, got %s", want, ts)
	}
}

func TestScheduleAtAcceptsBothClockForms(t *testing.T) {
	withSeconds, ok := ScheduleAt(strPtr("2026-09-01"), strPtr("18:30:00"), time.UTC)
	if !ok || withSeconds.Hour() != 18 || withSeconds.Minute() != 30 {
		t.Fatalf("unexpected schedule: %v %v", withSeconds, ok)
	}
	withoutSeconds, ok := ScheduleAt(strPtr("2026-09-01"), strPtr("18:30"), time.UTC)
	if !ok || !withoutSeconds.Equal(withSeconds) {
		t.Fatalf("HH:MM should parse to the same instant, got %v %v", withoutSeconds, ok)
	}
}

func TestScheduleAtRejectsMissingOrMalformedDates(t *testing.T) {
	if _, ok := ScheduleAt(nil, nil, time.UTC); ok {
		t.Fatal("nil date must not schedule")
	}
	if _, ok := ScheduleAt(strPtr("  "), nil, time.UTC); ok {
		t.Fatal("blank date must not schedule")
	}
	if _, ok := ScheduleAt(strPtr("tomorrow"), nil, time.UTC); ok {
		t.Fatal("malformed date must not schedule")
	}
	if _, ok := ScheduleAt(strPtr("2026-09-01"), strPtr("late"), time.UTC); ok {
		t.Fatal("malformed time must not schedule")
	}
}

func TestSelectedOptionsStripAssignmentMetadata(t *testing.T) {
	options := SelectedOptions{
		"size":            "large",
		"toppings":        []string{"onion"},
		"member_ids":      []string{"abc"},
		"units_by_member": map[string]int{"abc": 2},
		"extra_count":     1,
	}
	clean := options.WithoutAssignmentMetadata()
	if len(clean) != 2 {
		t.Fatalf("expected only real options to survive, got %v", clean)
	}
	if clean["size"] != "large" {
		t.Fatalf("real option lost: %v", clean)
	}
	// The original map is untouched.
	if _, ok := options["member_ids"]; !ok {
		t.Fatal("input map must not be mutated")
	}

	var nilOptions SelectedOptions
	if nilOptions.WithoutAssignmentMetadata() != nil {
		t.Fatal("nil options must stay nil")
	}
}
