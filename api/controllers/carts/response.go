package carts

import (
	cartdto "github.com/grubsquad/grubsquad-backend/api/controllers/carts/dto"
	cartsvc "github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/db/models"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

func newCartView(cart *models.Cart) cartdto.CartView {
	items := make([]cartdto.CartItemView, 0, len(cart.Items))
	count := 0
	subtotal := 0
	for i := range cart.Items {
		items = append(items, newCartItemView(&cart.Items[i]))
		count += cart.Items[i].Quantity
		subtotal += cart.Items[i].SubtotalCents()
	}

	return cartdto.CartView{
		ID:             cart.ID,
		TeamID:         cart.TeamID,
		RestaurantID:   cart.RestaurantID,
		ProviderType:   cart.ProviderType,
		ProviderCartID: cart.ProviderCartID,
		Title:          cart.Title,
		MealType:       cart.MealType,
		Status:         cart.Status,
		Fulfillment: types.Fulfillment{
			Service: cart.FulfillmentService,
			Address: cart.FulfillmentAddress,
			Lat:     cart.FulfillmentLat,
			Lng:     cart.FulfillmentLng,
			Date:    cart.FulfillmentDate,
			Time:    cart.FulfillmentTime,
		},
		CreatedByMemberID:   cart.CreatedByMemberID,
		AssignmentMemberIDs: cart.AssignmentMemberIDs,
		SubmittedAt:         cart.SubmittedAt,
		ItemCount:           count,
		SubtotalCents:       subtotal,
		Items:               items,
		CreatedAt:           cart.CreatedAt,
		UpdatedAt:           cart.UpdatedAt,
	}
}

func newCartItemView(item *models.CartItem) cartdto.CartItemView {
	return cartdto.CartItemView{
		ID:                  item.ID,
		MenuItemID:          item.MenuItemID,
		ItemName:            item.ItemName,
		Quantity:            item.Quantity,
		UnitPriceCents:      item.UnitPriceCents,
		LineSubtotalCents:   item.SubtotalCents(),
		SpecialInstructions: item.SpecialInstructions,
		SelectedOptions:     item.SelectedOptions,
		MemberID:            item.MemberID,
		IsExtra:             item.IsExtra,
		AddedByMemberID:     item.AddedByMemberID,
		CreatedAt:           item.CreatedAt,
		UpdatedAt:           item.UpdatedAt,
	}
}

func newOpenCartView(entry cartsvc.OpenCart) cartdto.CartView {
	view := newCartView(&entry.Cart)
	view.Status = entry.Status
	view.ItemCount = entry.ItemCount
	view.SubtotalCents = entry.SubtotalCents
	view.Items = nil
	return view
}

func newSnapshotView(snapshot *cartsvc.Snapshot, progress *cartsvc.Progress) cartdto.CartSnapshotView {
	view := cartdto.CartSnapshotView{Cart: newCartView(snapshot.Cart)}
	view.Cart.AssignmentMemberIDs = snapshot.AssignmentMemberIDs
	if snapshot.Restaurant != nil {
		view.Restaurant = &cartdto.RestaurantView{
			ID:           snapshot.Restaurant.ID,
			Name:         snapshot.Restaurant.Name,
			ProviderType: snapshot.Restaurant.ProviderType,
		}
	}
	if progress != nil {
		view.Progress = newProgressView(progress)
	}
	return view
}

func newProgressView(progress *cartsvc.Progress) *cartdto.ProgressView {
	return &cartdto.ProgressView{
		OrderedMembers:  newProgressMemberViews(progress.OrderedMembers),
		WaitingMembers:  newProgressMemberViews(progress.WaitingMembers),
		ExtrasCount:     progress.ExtrasCount,
		UnassignedCount: progress.UnassignedCount,
		HasRecipients:   progress.HasRecipients,
	}
}

func newProgressMemberViews(members []cartsvc.ProgressMember) []cartdto.ProgressMemberView {
	views := make([]cartdto.ProgressMemberView, 0, len(members))
	for _, member := range members {
		views = append(views, cartdto.ProgressMemberView{
			MemberID:    member.MemberID,
			DisplayName: member.DisplayName,
			ClaimOrder:  member.ClaimOrder,
			Medal:       member.Medal,
			Assists:     member.Assists,
			Units:       member.Units,
		})
	}
	return views
}
