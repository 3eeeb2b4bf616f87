package carts

import (
	"math"
	"strings"

	"github.com/google/uuid"
)

type assignmentKind int

const (
	assignmentUnassigned assignmentKind = iota
	assignmentPerMember
	assignmentExtras
)

// Assignment is the strict, parsed form of an assignment request: units
// for specific members (in input order), a count of speculative extras, or
// nothing. Loose wire shapes are normalized into this union once, at the
// API edge, by ParseAssignment.
type Assignment struct {
	kind    assignmentKind
	members []uuid.UUID
	units   map[uuid.UUID]int
	extras  int
}

// PerMemberAssignment builds an assignment for the given members with
// optional per-member unit counts.
func PerMemberAssignment(members []uuid.UUID, units map[uuid.UUID]int) Assignment {
	if len(members) == 0 {
		return Unassigned()
	}
	copied := make([]uuid.UUID, len(members))
	copy(copied, members)
	var unitCopy map[uuid.UUID]int
	if len(units) > 0 {
		unitCopy = make(map[uuid.UUID]int, len(units))
		for k, v := range units {
			unitCopy[k] = v
		}
	}
	return Assignment{kind: assignmentPerMember, members: copied, units: unitCopy}
}

// ExtrasAssignment marks count units as unclaimed extras.
func ExtrasAssignment(count int) Assignment {
	if count <= 0 {
		return Unassigned()
	}
	return Assignment{kind: assignmentExtras, extras: count}
}

// Unassigned leaves the row's units unclaimed.
func Unassigned() Assignment {
	return Assignment{kind: assignmentUnassigned}
}

// Members returns the assigned member ids in input order.
func (a Assignment) Members() []uuid.UUID {
	out := make([]uuid.UUID, len(a.members))
	copy(out, a.members)
	return out
}

// UnitsFor returns the requested unit count for a member, or 0 when the
// request carried none.
func (a Assignment) UnitsFor(memberID uuid.UUID) int {
	if a.units == nil {
		return 0
	}
	return a.units[memberID]
}

// ForMember narrows a per-member assignment to a single member, keeping
// that member's unit count. Used when a split add loops row by row.
func (a Assignment) ForMember(memberID uuid.UUID) Assignment {
	sub := Assignment{kind: assignmentPerMember, members: []uuid.UUID{memberID}}
	if a.units != nil {
		if units, ok := a.units[memberID]; ok {
			sub.units = map[uuid.UUID]int{memberID: units}
		}
	}
	return sub
}

// AssignmentRequest is the loose wire shape accepted at the boundary:
// a list of member ids, a single legacy member id, a per-member unit-count
// map, and an extra count given either as a number or as a list to be
// counted. Member ids that are not well-formed UUIDs are discarded, not
// rejected.
type AssignmentRequest struct {
	MemberIDs      []string           `json:"member_ids,omitempty"`
	LegacyMemberID string             `json:"member_id,omitempty"`
	UnitsByMember  map[string]float64 `json:"units_by_member,omitempty"`
	ExtraCount     *float64           `json:"extra_count,omitempty"`
	Extras         []string           `json:"extras,omitempty"`
}

// ParseAssignment normalizes a loose request into the strict union.
func ParseAssignment(req AssignmentRequest) Assignment {
	seen := map[uuid.UUID]struct{}{}
	var members []uuid.UUID
	appendMember := func(raw string) {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || id == uuid.Nil {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}

	for _, raw := range req.MemberIDs {
		appendMember(raw)
	}
	if req.LegacyMemberID != "" {
		appendMember(req.LegacyMemberID)
	}

	var units map[uuid.UUID]int
	for raw, count := range req.UnitsByMember {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || id == uuid.Nil {
			continue
		}
		if units == nil {
			units = make(map[uuid.UUID]int, len(req.UnitsByMember))
		}
		units[id] = int(math.Floor(count))
	}

	if len(members) > 0 {
		return Assignment{kind: assignmentPerMember, members: members, units: units}
	}

	extras := len(req.Extras)
	if req.ExtraCount != nil {
		extras = int(math.Floor(*req.ExtraCount))
	}
	if extras > 0 {
		return ExtrasAssignment(extras)
	}
	return Unassigned()
}

// Resolved is a normalized cart item ownership triple. Exactly one of
// MemberID or IsExtra is set, or neither (unassigned); Quantity >= 1.
type Resolved struct {
	Quantity int
	MemberID *uuid.UUID
	IsExtra  bool
}

// ResolveAssignment derives the owner-kind and quantity for one cart item
// row. Member assignment wins over extras; the first member id wins within
// a per-member assignment, with its unit count (when given) replacing the
// requested quantity. Splitting units across several members is the
// caller's job: resolve once per member with ForMember.
func ResolveAssignment(quantity int, a Assignment) Resolved {
	switch a.kind {
	case assignmentPerMember:
		if len(a.members) == 0 {
			break
		}
		first := a.members[0]
		qty := quantity
		if a.units != nil {
			if units, ok := a.units[first]; ok {
				qty = units
			}
		}
		return Resolved{Quantity: clampQuantity(qty), MemberID: &first}
	case assignmentExtras:
		return Resolved{Quantity: clampQuantity(a.extras), IsExtra: true}
	}
	return Resolved{Quantity: clampQuantity(quantity)}
}

func clampQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}
