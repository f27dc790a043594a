package revolut

import (
	"sort"
	"time"
)

// Payment states reported by the Merchant API once the money is captured.
const (
	PaymentStateCaptured  = "captured"
	PaymentStateCompleted = "completed"
)

// OrderRequest is the body of create (POST) and update (PATCH) order calls.
// Every field is optional on update; zero values are omitted.
type OrderRequest struct {
	Amount            int64              `json:"amount,omitempty"`
	Currency          string             `json:"currency,omitempty"`
	Description       string             `json:"description,omitempty"`
	RedirectURL       string             `json:"redirect_url,omitempty"`
	MerchantOrderData *MerchantOrderData `json:"merchant_order_data,omitempty"`
	Customer          *Customer          `json:"customer,omitempty"`
	Shipping          *Shipping          `json:"shipping,omitempty"`
	LineItems         []LineItem         `json:"line_items,omitempty"`
}

type MerchantOrderData struct {
	Reference string `json:"reference,omitempty"`
	URL       string `json:"url,omitempty"`
}

type Customer struct {
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

type Shipping struct {
	Address *ShippingAddress `json:"address,omitempty"`
	Contact *ShippingContact `json:"contact,omitempty"`
}

type ShippingAddress struct {
	StreetLine1 string `json:"street_line_1"`
	StreetLine2 string `json:"street_line_2,omitempty"`
	Region      string `json:"region,omitempty"`
	City        string `json:"city"`
	CountryCode string `json:"country_code"`
	Postcode    string `json:"postcode"`
}

type ShippingContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// LineItem amounts are in minor currency units.
type LineItem struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	Quantity        Quantity `json:"quantity"`
	UnitPriceAmount int64    `json:"unit_price_amount"`
	TotalAmount     int64    `json:"total_amount"`
	ExternalID      string   `json:"external_id,omitempty"`
	Description     string   `json:"description,omitempty"`
	URL             string   `json:"url,omitempty"`
	ImageURLs       []string `json:"image_urls,omitempty"`
}

type Quantity struct {
	Value int    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

const (
	LineItemTypePhysical = "physical"
	LineItemTypeService  = "service"
)

// Order is the gateway's view of a payment order.
type Order struct {
	ID                string    `json:"id"`
	Token             string    `json:"token"`
	Type              string    `json:"type,omitempty"`
	State             string    `json:"state"`
	Amount            int64     `json:"amount"`
	OutstandingAmount int64     `json:"outstanding_amount,omitempty"`
	Currency          string    `json:"currency"`
	CheckoutURL       string    `json:"checkout_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Payments          []Payment `json:"payments,omitempty"`
}

type Payment struct {
	ID            string         `json:"id"`
	State         string         `json:"state"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
}

type PaymentMethod struct {
	Type      string `json:"type"`
	CardBrand string `json:"card_brand,omitempty"`
	CardLast4 string `json:"card_last_four,omitempty"`
}

// Succeeded reports whether the payment has been captured.
func (p Payment) Succeeded() bool {
	switch p.State {
	case PaymentStateCaptured, PaymentStateCompleted:
		return true
	}
	return false
}

// LatestPayment returns the most recently created payment, or nil.
func LatestPayment(payments []Payment) *Payment {
	if len(payments) == 0 {
		return nil
	}
	sorted := make([]Payment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})
	return &sorted[0]
}
