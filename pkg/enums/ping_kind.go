package enums

import "fmt"

// PingKind classifies a courier location ping within a delivery run.
type PingKind string

const (
	PingKindStart     PingKind = "start"
	PingKindInTransit PingKind = "in_transit"
	PingKindDelivered PingKind = "delivered"
)

var validPingKinds = []PingKind{
	PingKindStart,
	PingKindInTransit,
	PingKindDelivered,
}

// String implements fmt.Stringer.
func (p PingKind) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PingKind.
func (p PingKind) IsValid() bool {
	for _, candidate := range validPingKinds {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePingKind converts raw input into a PingKind.
func ParsePingKind(value string) (PingKind, error) {
	for _, candidate := range validPingKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ping kind %q", value)
}
