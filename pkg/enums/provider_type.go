package enums

import "fmt"

// ProviderType identifies the external commerce provider a cart mirrors to.
type ProviderType string

const (
	ProviderTypeNone    ProviderType = "none"
	ProviderTypeSquare  ProviderType = "square"
	ProviderTypePartner ProviderType = "partner"
)

var validProviderTypes = []ProviderType{
	ProviderTypeNone,
	ProviderTypeSquare,
	ProviderTypePartner,
}

// String implements fmt.Stringer.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderType.
func (p ProviderType) IsValid() bool {
	for _, candidate := range validProviderTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// RequiresRemoteCart reports whether carts for this provider keep a remote mirror.
func (p ProviderType) RequiresRemoteCart() bool {
	return p == ProviderTypeSquare || p == ProviderTypePartner
}

// ParseProviderType converts raw input into a ProviderType.
func ParseProviderType(value string) (ProviderType, error) {
	if value == "" {
		return ProviderTypeNone, nil
	}
	for _, candidate := range validProviderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider type %q", value)
}
