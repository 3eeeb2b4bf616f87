package square

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
)

// OrderCreateParams carries the fields needed to open a draft Square order
// mirroring a local cart.
type OrderCreateParams struct {
	ReferenceID    string
	Note           string
	IdempotencyKey string
}

// OrderLineParams describes one line item to append to an order.
type OrderLineParams struct {
	Name                string
	CatalogObjectID     string
	Quantity            int
	PriceCents          int64
	Currency            string
	SpecialInstructions string
	IdempotencyKey      string
}

// CreateOrder opens a draft order at the configured location.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*sq.Order, error) {
	order := &sq.Order{LocationID: c.locationID}
	if trimmed := strings.TrimSpace(params.ReferenceID); trimmed != "" {
		order.ReferenceID = ptrString(trimmed)
	}

	req := &sq.CreateOrderRequest{
		Order:          order,
		IdempotencyKey: ptrString(c.ensureIdempotencyKey("order.create", params.IdempotencyKey)),
	}
	c.log(ctx, "request", "create_order", map[string]any{
		"location_id":  c.locationID,
		"reference_id": params.ReferenceID,
	})

	resp, err := c.sdk.Orders.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create order")
	}

	created := resp.GetOrder()
	c.log(ctx, "response", "create_order", map[string]any{
		"order_id": stringValue(created.GetID()),
	})
	return created, nil
}

// GetOrder fetches one order, used to learn the current version before a
// sparse update.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*sq.Order, error) {
	req := &sq.GetOrdersRequest{OrderID: orderID}
	c.log(ctx, "request", "get_order", map[string]any{"order_id": orderID})

	resp, err := c.sdk.Orders.Get(ctx, req)
	if err != nil {
		c.log(ctx, "error", "get_order", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "get order")
	}
	return resp.GetOrder(), nil
}

// AddLineItem appends one line item to an order via sparse update and
// returns the line uid. The uid is generated locally so callers can track
// the remote line without diffing the response.
func (c *Client) AddLineItem(ctx context.Context, orderID string, params OrderLineParams) (string, error) {
	current, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return "", err
	}

	lineUID := uuid.NewString()
	line := &sq.OrderLineItem{
		UID:            ptrString(lineUID),
		Name:           ptrString(params.Name),
		Quantity:       strconv.Itoa(maxQuantity(params.Quantity)),
		BasePriceMoney: moneyPtr(params.PriceCents, params.Currency),
	}
	if trimmed := strings.TrimSpace(params.CatalogObjectID); trimmed != "" {
		line.CatalogObjectID = ptrString(trimmed)
	}
	if trimmed := strings.TrimSpace(params.SpecialInstructions); trimmed != "" {
		line.Note = ptrString(trimmed)
	}

	req := &sq.UpdateOrderRequest{
		OrderID: orderID,
		Order: &sq.Order{
			LocationID: c.locationID,
			Version:    current.GetVersion(),
			LineItems:  []*sq.OrderLineItem{line},
		},
		IdempotencyKey: ptrString(c.ensureIdempotencyKey("order.line.add", params.IdempotencyKey)),
	}
	c.log(ctx, "request", "add_order_line", map[string]any{
		"order_id": orderID,
		"line_uid": lineUID,
		"quantity": params.Quantity,
		"amount":   params.PriceCents,
	})

	if _, err := c.sdk.Orders.Update(ctx, req); err != nil {
		c.log(ctx, "error", "add_order_line", map[string]any{"error": err.Error()})
		return "", c.mapSquareError(err, "add order line")
	}

	c.log(ctx, "response", "add_order_line", map[string]any{
		"order_id": orderID,
		"line_uid": lineUID,
	})
	return lineUID, nil
}

// RemoveLineItem clears one line item from an order via sparse update.
func (c *Client) RemoveLineItem(ctx context.Context, orderID, lineUID string) error {
	current, err := c.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	req := &sq.UpdateOrderRequest{
		OrderID: orderID,
		Order: &sq.Order{
			LocationID: c.locationID,
			Version:    current.GetVersion(),
		},
		FieldsToClear:  []string{fmt.Sprintf("line_items[%s]", lineUID)},
		IdempotencyKey: ptrString(c.NewIdempotencyKey("order.line.remove")),
	}
	c.log(ctx, "request", "remove_order_line", map[string]any{
		"order_id": orderID,
		"line_uid": lineUID,
	})

	if _, err := c.sdk.Orders.Update(ctx, req); err != nil {
		c.log(ctx, "error", "remove_order_line", map[string]any{"error": err.Error()})
		return c.mapSquareError(err, "remove order line")
	}

	c.log(ctx, "response", "remove_order_line", map[string]any{
		"order_id": orderID,
		"line_uid": lineUID,
	})
	return nil
}

func maxQuantity(qty int) int {
	if qty < 1 {
		return 1
	}
	return qty
}

func ptrString(value string) *string {
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func int64Ptr(value int64) *int64 {
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.TrimSpace(strings.ToUpper(code))
	if trimmed == "" {
		trimmed = "USD"
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	return &sq.Money{
		Amount:   int64Ptr(amount),
		Currency: currencyPtr(currency),
	}
}
