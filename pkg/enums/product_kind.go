package enums

import "fmt"

// ProductKind distinguishes one-off artworks from variant-stocked products.
type ProductKind string

const (
	// ProductKindArt is a unique item with a single unit of inventory.
	ProductKindArt ProductKind = "art"
	// ProductKindOther carries per-variant stock counts.
	ProductKindOther ProductKind = "other"
)

var validProductKinds = []ProductKind{
	ProductKindArt,
	ProductKindOther,
}

// String implements fmt.Stringer.
func (k ProductKind) String() string {
	return string(k)
}

// IsValid reports whether the kind is recognized.
func (k ProductKind) IsValid() bool {
	for _, candidate := range validProductKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseProductKind converts a raw string into a ProductKind.
func ParseProductKind(value string) (ProductKind, error) {
	for _, candidate := range validProductKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid product kind %q", value)
}
