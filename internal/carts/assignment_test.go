package carts

import (
	"testing"

	"github.com/google/uuid"
)

func TestParseAssignmentDiscardsMalformedIDs(t *testing.T) {
	t.Parallel()

	good := uuid.New()
	a := ParseAssignment(AssignmentRequest{
		MemberIDs: []string{"not-a-uuid", good.String(), "", good.String()},
	})

	members := a.Members()
	if len(members) != 1 || members[0] != good {
		t.Fatalf("expected a single deduplicated member, got %v", members)
	}
}

func TestParseAssignmentLegacyMemberID(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	a := ParseAssignment(AssignmentRequest{LegacyMemberID: id.String()})
	if members := a.Members(); len(members) != 1 || members[0] != id {
		t.Fatalf("expected legacy member id to be picked up, got %v", members)
	}
}

func TestParseAssignmentExtras(t *testing.T) {
	t.Parallel()

	count := 4.0
	a := ParseAssignment(AssignmentRequest{ExtraCount: &count})
	if got := ResolveAssignment(1, a); !got.IsExtra || got.Quantity != 4 {
		t.Fatalf("expected 4 extras, got %+v", got)
	}

	// The list form counts entries when no numeric count is given.
	a = ParseAssignment(AssignmentRequest{Extras: []string{"a", "b"}})
	if got := ResolveAssignment(1, a); !got.IsExtra || got.Quantity != 2 {
		t.Fatalf("expected 2 extras from list, got %+v", got)
	}
}

func TestParseAssignmentMembersWinOverExtras(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	count := 3.0
	a := ParseAssignment(AssignmentRequest{
		MemberIDs:  []string{id.String()},
		ExtraCount: &count,
	})
	got := ResolveAssignment(2, a)
	if got.IsExtra {
		t.Fatal("member assignment should win over extras")
	}
	if got.MemberID == nil || *got.MemberID != id {
		t.Fatalf("expected member %s, got %+v", id, got)
	}
	if got.Quantity != 2 {
		t.Fatalf("expected requested quantity kept, got %d", got.Quantity)
	}
}

func TestResolveAssignmentUnitsReplaceQuantity(t *testing.T) {
	t.Parallel()

	m1 := uuid.New()
	m2 := uuid.New()
	a := ParseAssignment(AssignmentRequest{
		MemberIDs:     []string{m1.String(), m2.String()},
		UnitsByMember: map[string]float64{m1.String(): 2},
	})

	// First member wins when resolving the whole assignment at once.
	got := ResolveAssignment(3, a)
	if got.MemberID == nil || *got.MemberID != m1 || got.Quantity != 2 {
		t.Fatalf("expected first member with 2 units, got %+v", got)
	}

	// A split add resolves per member: m1 keeps its unit count, m2 falls
	// back to the requested quantity.
	got = ResolveAssignment(3, a.ForMember(m2))
	if got.MemberID == nil || *got.MemberID != m2 || got.Quantity != 3 {
		t.Fatalf("expected second member with requested quantity, got %+v", got)
	}
}

func TestResolveAssignmentClampsQuantity(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	a := ParseAssignment(AssignmentRequest{
		MemberIDs:     []string{id.String()},
		UnitsByMember: map[string]float64{id.String(): 0},
	})
	if got := ResolveAssignment(5, a); got.Quantity != 1 {
		t.Fatalf("expected zero units clamped to 1, got %d", got.Quantity)
	}

	if got := ResolveAssignment(0, Unassigned()); got.Quantity != 1 {
		t.Fatalf("expected unassigned quantity clamped to 1, got %d", got.Quantity)
	}
	if got := ResolveAssignment(-2, Unassigned()); got.Quantity != 1 {
		t.Fatalf("expected negative quantity clamped to 1, got %d", got.Quantity)
	}
}

func TestParseAssignmentEmptyIsUnassigned(t *testing.T) {
	t.Parallel()

	a := ParseAssignment(AssignmentRequest{MemberIDs: []string{"bogus"}})
	got := ResolveAssignment(2, a)
	if got.MemberID != nil || got.IsExtra {
		t.Fatalf("expected unassigned fall-through, got %+v", got)
	}
	if got.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", got.Quantity)
	}
}
