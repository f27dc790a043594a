package types

import "strings"

// AddressSnapshot is an address copied onto an order at creation time. It is
// stored as flat prefixed columns (delivery_*, invoicing_*) and never points
// at a live address record.
type AddressSnapshot struct {
	Line1      string `gorm:"column:address_line1" json:"line1" validate:"omitempty,max=255"`
	Line2      string `gorm:"column:address_line2" json:"line2,omitempty" validate:"omitempty,max=255"`
	PostalCode string `gorm:"column:postal_code" json:"postal_code" validate:"omitempty,max=20"`
	City       string `gorm:"column:city" json:"city" validate:"omitempty,max=120"`
	Province   string `gorm:"column:province" json:"province,omitempty" validate:"omitempty,max=120"`
	// Country is an ISO 3166-1 alpha-2 code.
	Country string `gorm:"column:country" json:"country" validate:"omitempty,len=2"`
}

// IsZero reports whether no address line was captured.
func (a AddressSnapshot) IsZero() bool {
	return strings.TrimSpace(a.Line1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.PostalCode) == ""
}

// Normalize trims every field and upper-cases the country code.
func (a AddressSnapshot) Normalize() AddressSnapshot {
	return AddressSnapshot{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		PostalCode: strings.TrimSpace(a.PostalCode),
		City:       strings.TrimSpace(a.City),
		Province:   strings.TrimSpace(a.Province),
		Country:    strings.ToUpper(strings.TrimSpace(a.Country)),
	}
}
