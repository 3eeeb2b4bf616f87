package enums

import "fmt"

// JoinedVia records how a member became part of a cart roster.
type JoinedVia string

const (
	JoinedViaRoster    JoinedVia = "roster"
	JoinedViaEmailLink JoinedVia = "email_link"
)

var validJoinedVia = []JoinedVia{
	JoinedViaRoster,
	JoinedViaEmailLink,
}

// String implements fmt.Stringer.
func (j JoinedVia) String() string {
	return string(j)
}

// IsValid reports whether the value is a known JoinedVia.
func (j JoinedVia) IsValid() bool {
	for _, candidate := range validJoinedVia {
		if candidate == j {
			return true
		}
	}
	return false
}

// ParseJoinedVia converts raw input into a JoinedVia.
func ParseJoinedVia(value string) (JoinedVia, error) {
	if value == "" {
		return JoinedViaRoster, nil
	}
	for _, candidate := range validJoinedVia {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid joined via %q", value)
}
