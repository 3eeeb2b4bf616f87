package carts

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
)

// RosterMember is a team member as reported by the roster collaborator.
type RosterMember struct {
	ID          uuid.UUID
	DisplayName string
	Email       string
}

// ProgressMember is one member's slice of the team order progress.
type ProgressMember struct {
	MemberID    uuid.UUID `json:"member_id"`
	DisplayName string    `json:"display_name"`
	ClaimOrder  *int      `json:"claim_order,omitempty"`
	Medal       int       `json:"medal,omitempty"`
	Assists     int       `json:"assists,omitempty"`
	Units       int       `json:"units"`
}

// Progress is the derived team-order view for one cart.
type Progress struct {
	OrderedMembers      []ProgressMember `json:"ordered_members"`
	WaitingMembers      []ProgressMember `json:"waiting_members"`
	ExtrasCount         int              `json:"extras_count"`
	UnassignedCount     int              `json:"unassigned_count"`
	HasRecipients       bool             `json:"has_recipients"`
	AssignmentMemberIDs []uuid.UUID      `json:"assignment_member_ids"`
}

type progressEntry struct {
	id          uuid.UUID
	displayName string
	sortName    string
	claimOrder  *int
	medal       int
	assists     int
	units       int
	insertIndex int
}

// ComputeProgress derives who has ordered, who is still waiting, extras and
// unassigned unit counts, medal ranks, and assist counts for a cart. Output
// ordering is fully determined by the input item order and roster; calling
// twice with identical inputs yields identical output.
func ComputeProgress(roster []RosterMember, items []models.CartItem, owner *uuid.UUID) Progress {
	entries := map[uuid.UUID]*progressEntry{}
	var order []uuid.UUID

	ensure := func(id uuid.UUID, name string) *progressEntry {
		if entry, ok := entries[id]; ok {
			return entry
		}
		if strings.TrimSpace(name) == "" {
			name = fallbackDisplayName(id)
		}
		entry := &progressEntry{
			id:          id,
			displayName: name,
			sortName:    strings.ToLower(name),
			insertIndex: len(order),
		}
		entries[id] = entry
		order = append(order, id)
		return entry
	}

	for _, member := range roster {
		if member.ID == uuid.Nil {
			continue
		}
		ensure(member.ID, member.DisplayName)
	}

	progress := Progress{}
	claimCounter := 0
	ownerAdded := map[uuid.UUID]struct{}{}

	for _, item := range items {
		progress.ExtrasCount += item.ExtraUnits()
		progress.UnassignedCount += item.UnassignedUnits()

		if item.MemberID == nil || item.IsExtra {
			continue
		}
		claimer := ensure(*item.MemberID, "")
		claimer.units += item.Quantity
		if claimer.claimOrder == nil {
			idx := claimCounter
			claimCounter++
			claimer.claimOrder = &idx
		}

		if owner != nil && item.AddedByMemberID != nil && *item.AddedByMemberID == *owner {
			ownerAdded[*item.MemberID] = struct{}{}
		}

		// One assist per item: the adder placed an order whose units were
		// claimed by somebody else.
		if item.AddedByMemberID != nil && *item.AddedByMemberID != *item.MemberID {
			adder := ensure(*item.AddedByMemberID, "")
			adder.assists++
		}
	}

	assignMedals(entries, order, owner, ownerAdded)

	var ordered, waiting []*progressEntry
	for _, id := range order {
		entry := entries[id]
		if entry.claimOrder != nil {
			ordered = append(ordered, entry)
		} else {
			waiting = append(waiting, entry)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		return lessByClaimThenName(ordered[i], ordered[j])
	})
	sort.SliceStable(waiting, func(i, j int) bool {
		return waiting[i].sortName < waiting[j].sortName
	})

	progress.OrderedMembers = toProgressMembers(ordered)
	progress.WaitingMembers = toProgressMembers(waiting)

	for _, entry := range ordered {
		if owner != nil && entry.id == *owner {
			continue
		}
		progress.AssignmentMemberIDs = append(progress.AssignmentMemberIDs, entry.id)
	}
	progress.HasRecipients = len(progress.AssignmentMemberIDs) > 0

	return progress
}

func assignMedals(entries map[uuid.UUID]*progressEntry, order []uuid.UUID, owner *uuid.UUID, ownerAdded map[uuid.UUID]struct{}) {
	var claimed []*progressEntry
	for _, id := range order {
		entry := entries[id]
		if entry.claimOrder == nil {
			continue
		}
		if owner != nil && entry.id == *owner {
			continue
		}
		if _, excluded := ownerAdded[entry.id]; excluded {
			continue
		}
		claimed = append(claimed, entry)
	}
	sort.SliceStable(claimed, func(i, j int) bool {
		return *claimed[i].claimOrder < *claimed[j].claimOrder
	})
	for rank, entry := range claimed {
		if rank >= 3 {
			break
		}
		entry.medal = rank + 1
	}
}

func lessByClaimThenName(a, b *progressEntry) bool {
	switch {
	case a.claimOrder == nil && b.claimOrder == nil:
		return a.sortName < b.sortName
	case a.claimOrder == nil:
		return false
	case b.claimOrder == nil:
		return true
	case *a.claimOrder != *b.claimOrder:
		return *a.claimOrder < *b.claimOrder
	}
	return a.sortName < b.sortName
}

func toProgressMembers(entries []*progressEntry) []ProgressMember {
	out := make([]ProgressMember, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ProgressMember{
			MemberID:    entry.id,
			DisplayName: entry.displayName,
			ClaimOrder:  entry.claimOrder,
			Medal:       entry.medal,
			Assists:     entry.assists,
			Units:       entry.units,
		})
	}
	return out
}

func fallbackDisplayName(id uuid.UUID) string {
	raw := id.String()
	if len(raw) > 8 {
		raw = raw[:8]
	}
	return fmt.Sprintf("Member %s", raw)
}
