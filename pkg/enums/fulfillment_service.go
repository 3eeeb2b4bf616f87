package enums

import "fmt"

// FulfillmentService distinguishes delivery from pickup orders.
type FulfillmentService string

const (
	FulfillmentServiceDelivery FulfillmentService = "delivery"
	FulfillmentServicePickup   FulfillmentService = "pickup"
)

var validFulfillmentServices = []FulfillmentService{
	FulfillmentServiceDelivery,
	FulfillmentServicePickup,
}

// String implements fmt.Stringer.
func (f FulfillmentService) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FulfillmentService.
func (f FulfillmentService) IsValid() bool {
	for _, candidate := range validFulfillmentServices {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFulfillmentService converts raw input into a FulfillmentService.
func ParseFulfillmentService(value string) (FulfillmentService, error) {
	for _, candidate := range validFulfillmentServices {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid fulfillment service %q", value)
}
