package carts

import (
	"strings"

	"github.com/google/uuid"

	cartdto "github.com/grubsquad/grubsquad-backend/api/controllers/carts/dto"
	cartsvc "github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/enums"
	pkgerrors "github.com/grubsquad/grubsquad-backend/pkg/errors"
	"github.com/grubsquad/grubsquad-backend/pkg/types"
)

func toAssignment(payload *cartdto.AssignmentRequest) cartsvc.Assignment {
	if payload == nil {
		return cartsvc.Unassigned()
	}
	return cartsvc.ParseAssignment(cartsvc.AssignmentRequest{
		MemberIDs:      payload.MemberIDs,
		LegacyMemberID: payload.MemberID,
		UnitsByMember:  payload.UnitsByMember,
		ExtraCount:     payload.ExtraCount,
		Extras:         payload.Extras,
	})
}

func toFulfillment(payload *cartdto.FulfillmentRequest) (*types.Fulfillment, error) {
	if payload == nil {
		return nil, nil
	}
	service := enums.FulfillmentServiceDelivery
	if strings.TrimSpace(payload.Service) != "" {
		parsed, err := enums.ParseFulfillmentService(payload.Service)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid fulfillment service")
		}
		service = parsed
	}
	return &types.Fulfillment{
		Service: service,
		Address: payload.Address,
		Lat:     payload.Lat,
		Lng:     payload.Lng,
		Date:    payload.Date,
		Time:    payload.Time,
	}, nil
}

func toEnsureCartInput(payload cartdto.EnsureCartRequest) (cartsvc.EnsureCartInput, error) {
	teamID, err := uuid.Parse(payload.TeamID)
	if err != nil {
		return cartsvc.EnsureCartInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid team id")
	}
	restaurantID, err := uuid.Parse(payload.RestaurantID)
	if err != nil {
		return cartsvc.EnsureCartInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id")
	}
	fulfillment, err := toFulfillment(payload.Fulfillment)
	if err != nil {
		return cartsvc.EnsureCartInput{}, err
	}
	creator, err := optionalUUID(payload.MemberID, "member id")
	if err != nil {
		return cartsvc.EnsureCartInput{}, err
	}
	return cartsvc.EnsureCartInput{
		TeamID:            teamID,
		RestaurantID:      restaurantID,
		Title:             strings.TrimSpace(payload.Title),
		MealType:          payload.MealType,
		Fulfillment:       fulfillment,
		CreatedByMemberID: creator,
	}, nil
}

func toAddItemInput(payload cartdto.AddItemRequest, assignment cartsvc.Assignment) (cartsvc.AddItemInput, error) {
	addedBy, err := optionalUUID(payload.MemberID, "member id")
	if err != nil {
		return cartsvc.AddItemInput{}, err
	}
	return cartsvc.AddItemInput{
		MenuItemID:          strings.TrimSpace(payload.MenuItemID),
		ItemName:            strings.TrimSpace(payload.ItemName),
		Quantity:            payload.Quantity,
		UnitPriceCents:      payload.UnitPriceCents,
		SpecialInstructions: payload.SpecialInstructions,
		SelectedOptions:     payload.SelectedOptions,
		Assignment:          assignment,
		AddedByMemberID:     addedBy,
	}, nil
}

func toUpdateItemInput(payload cartdto.UpdateItemRequest) (cartsvc.UpdateItemInput, error) {
	actor, err := optionalUUID(payload.MemberID, "member id")
	if err != nil {
		return cartsvc.UpdateItemInput{}, err
	}
	input := cartsvc.UpdateItemInput{
		Quantity:            payload.Quantity,
		UnitPriceCents:      payload.UnitPriceCents,
		SpecialInstructions: payload.SpecialInstructions,
		SelectedOptions:     payload.SelectedOptions,
		ActorMemberID:       actor,
	}
	if payload.Assignment != nil {
		assignment := toAssignment(payload.Assignment)
		input.Assignment = &assignment
	}
	return input, nil
}

func optionalUUID(raw, label string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return &id, nil
}
