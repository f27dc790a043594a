package payloads

import (
	"time"

	"github.com/google/uuid"
)

// OrderPaidEvent carries everything the purchase-confirmation mailer needs,
// so consumers never read the orders tables.
type OrderPaidEvent struct {
	OrderID          uuid.UUID         `json:"order_id"`
	Token            string            `json:"token"`
	BuyerEmail       string            `json:"buyer_email"`
	BuyerName        *string           `json:"buyer_name,omitempty"`
	BuyerPhone       *string           `json:"buyer_phone,omitempty"`
	TotalPrice       string            `json:"total_price"`
	ShippingTotal    string            `json:"shipping_total"`
	Currency         string            `json:"currency"`
	GatewayPaymentID string            `json:"gateway_payment_id"`
	PaidAt           *time.Time        `json:"paid_at,omitempty"`
	Items            []OrderPaidItem   `json:"items"`
	Sellers          []OrderPaidSeller `json:"sellers"`
}

type OrderPaidItem struct {
	ProductType     string     `json:"product_type"`
	ProductID       uuid.UUID  `json:"product_id"`
	VariantID       *uuid.UUID `json:"variant_id,omitempty"`
	Name            string     `json:"name"`
	SellerID        uuid.UUID  `json:"seller_id"`
	PriceAtPurchase string     `json:"price_at_purchase"`
	ShippingCost    string     `json:"shipping_cost"`
	ShippingMethod  string     `json:"shipping_method"`
	ShippingType    string     `json:"shipping_type"`
}

type OrderPaidSeller struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
}
