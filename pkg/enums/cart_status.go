package enums

import "fmt"

// CartStatus tracks a shared cart through its lifecycle. Submitted is
// terminal; abandoned is derived from the scheduled fulfillment time.
type CartStatus string

const (
	CartStatusDraft     CartStatus = "draft"
	CartStatusSubmitted CartStatus = "submitted"
	CartStatusAbandoned CartStatus = "abandoned"
)

var validCartStatuses = []CartStatus{
	CartStatusDraft,
	CartStatusSubmitted,
	CartStatusAbandoned,
}

// String implements fmt.Stringer.
func (c CartStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartStatus.
func (c CartStatus) IsValid() bool {
	for _, candidate := range validCartStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status permits no further transitions.
func (c CartStatus) IsTerminal() bool {
	return c == CartStatusSubmitted || c == CartStatusAbandoned
}

// ParseCartStatus converts raw input into a CartStatus.
func ParseCartStatus(value string) (CartStatus, error) {
	for _, candidate := range validCartStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart status %q", value)
}
