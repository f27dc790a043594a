package enums

import "fmt"

// ShippingMethodType separates courier delivery from in-person pickup.
type ShippingMethodType string

const (
	ShippingMethodDelivery ShippingMethodType = "delivery"
	ShippingMethodPickup   ShippingMethodType = "pickup"
)

var validShippingMethodTypes = []ShippingMethodType{
	ShippingMethodDelivery,
	ShippingMethodPickup,
}

// String implements fmt.Stringer.
func (t ShippingMethodType) String() string {
	return string(t)
}

// IsValid reports whether the type is recognized.
func (t ShippingMethodType) IsValid() bool {
	for _, candidate := range validShippingMethodTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseShippingMethodType converts a raw string into a ShippingMethodType.
func ParseShippingMethodType(value string) (ShippingMethodType, error) {
	for _, candidate := range validShippingMethodTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping method type %q", value)
}
