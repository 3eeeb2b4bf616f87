package carts

import (
	"reflect"
	"testing"

	"github.com/google/uuid"

	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
)

func claimedItem(member, addedBy uuid.UUID, qty int) models.CartItem {
	item := models.CartItem{
		ID:         uuid.New(),
		MenuItemID: "menu-1",
		ItemName:   "Sandwich",
		Quantity:   qty,
		MemberID:   &member,
	}
	if addedBy != uuid.Nil {
		item.AddedByMemberID = &addedBy
	}
	return item
}

func TestComputeProgressSeparatesOrderedAndWaiting(t *testing.T) {
	t.Parallel()

	alice := uuid.New()
	bob := uuid.New()
	carol := uuid.New()
	roster := []RosterMember{
		{ID: alice, DisplayName: "Alice"},
		{ID: bob, DisplayName: "Bob"},
		{ID: carol, DisplayName: "Carol"},
	}
	items := []models.CartItem{
		claimedItem(bob, bob, 2),
		claimedItem(alice, alice, 1),
	}

	progress := ComputeProgress(roster, items, nil)

	if len(progress.OrderedMembers) != 2 {
		t.Fatalf("expected 2 ordered members, got %d", len(progress.OrderedMembers))
	}
	// Claim order follows item order: Bob claimed first.
	if progress.OrderedMembers[0].MemberID != bob || progress.OrderedMembers[1].MemberID != alice {
		t.Fatalf("unexpected claim ordering: %+v", progress.OrderedMembers)
	}
	if progress.OrderedMembers[0].Units != 2 || progress.OrderedMembers[1].Units != 1 {
		t.Fatalf("unexpected unit totals: %+v", progress.OrderedMembers)
	}

	if len(progress.WaitingMembers) != 1 || progress.WaitingMembers[0].MemberID != carol {
		t.Fatalf("expected Carol waiting, got %+v", progress.WaitingMembers)
	}
}

func TestComputeProgressMedalsSkipOwnerAndOwnerAdded(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	helped := uuid.New()
	second := uuid.New()
	third := uuid.New()
	items := []models.CartItem{
		claimedItem(owner, owner, 1),  // owner claims first, never medals
		claimedItem(helped, owner, 1), // owner ordered on their behalf
		claimedItem(second, second, 1),
		claimedItem(third, third, 1),
	}

	progress := ComputeProgress(nil, items, &owner)

	medals := map[uuid.UUID]int{}
	for _, member := range progress.OrderedMembers {
		medals[member.MemberID] = member.Medal
	}
	if medals[owner] != 0 {
		t.Fatal("owner must not receive a medal")
	}
	if medals[helped] != 0 {
		t.Fatal("member whose units the owner added must not receive a medal")
	}
	if medals[second] != 1 || medals[third] != 2 {
		t.Fatalf("unexpected medal ranks: %v", medals)
	}
}

func TestComputeProgressAssists(t *testing.T) {
	t.Parallel()

	helper := uuid.New()
	eater := uuid.New()
	items := []models.CartItem{
		claimedItem(eater, helper, 2),
		claimedItem(eater, helper, 1),
		claimedItem(helper, helper, 1),
	}

	progress := ComputeProgress(nil, items, nil)

	var helperEntry *ProgressMember
	for i := range progress.OrderedMembers {
		if progress.OrderedMembers[i].MemberID == helper {
			helperEntry = &progress.OrderedMembers[i]
		}
	}
	if helperEntry == nil {
		t.Fatal("helper missing from ordered members")
	}
	// One assist per item added for somebody else, regardless of units.
	if helperEntry.Assists != 2 {
		t.Fatalf("expected 2 assists, got %d", helperEntry.Assists)
	}
}

func TestComputeProgressCountsExtrasAndUnassigned(t *testing.T) {
	t.Parallel()

	items := []models.CartItem{
		{ID: uuid.New(), Quantity: 3, IsExtra: true},
		{ID: uuid.New(), Quantity: 2},
	}

	progress := ComputeProgress(nil, items, nil)
	if progress.ExtrasCount != 3 {
		t.Fatalf("expected 3 extras, got %d", progress.ExtrasCount)
	}
	if progress.UnassignedCount != 2 {
		t.Fatalf("expected 2 unassigned units, got %d", progress.UnassignedCount)
	}
	if progress.HasRecipients {
		t.Fatal("no claimed units means no recipients")
	}
}

func TestComputeProgressAssignmentSnapshotExcludesOwner(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	other := uuid.New()
	items := []models.CartItem{
		claimedItem(owner, owner, 1),
		claimedItem(other, other, 1),
	}

	progress := ComputeProgress(nil, items, &owner)
	if !reflect.DeepEqual(progress.AssignmentMemberIDs, []uuid.UUID{other}) {
		t.Fatalf("expected snapshot of non-owner claimers, got %v", progress.AssignmentMemberIDs)
	}
	if !progress.HasRecipients {
		t.Fatal("expected recipients")
	}
}

func TestComputeProgressDeterministic(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	roster := []RosterMember{
		{ID: uuid.New(), DisplayName: "Zoe"},
		{ID: uuid.New(), DisplayName: "Ann"},
		{ID: owner, DisplayName: "Owner"},
	}
	items := []models.CartItem{
		claimedItem(roster[1].ID, owner, 2),
		claimedItem(roster[0].ID, roster[0].ID, 1),
		{ID: uuid.New(), Quantity: 2, IsExtra: true},
	}

	first := ComputeProgress(roster, items, &owner)
	second := ComputeProgress(roster, items, &owner)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("progress not deterministic:\n%+v\n%+v", first, second)
	}

	// Waiting members sort by display name, not roster order.
	if len(first.WaitingMembers) != 1 || first.WaitingMembers[0].DisplayName != "Owner" {
		t.Fatalf("unexpected waiting members: %+v", first.WaitingMembers)
	}
}
