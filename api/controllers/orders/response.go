package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	internalorders "github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/payments"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

type createdOrderResponse struct {
	OrderID        uuid.UUID       `json:"order_id"`
	Token          string          `json:"token"`
	Status         string          `json:"status"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	ShippingTotal  decimal.Decimal `json:"shipping_total"`
	AmountMinor    int64           `json:"amount"`
	Currency       string          `json:"currency"`
	GatewayOrderID string          `json:"gateway_order_id"`
	GatewayToken   string          `json:"gateway_token,omitempty"`
	CheckoutURL    string          `json:"checkout_url,omitempty"`
}

func newCreatedOrderResponse(result *internalorders.CheckoutResult) createdOrderResponse {
	if result == nil || result.Order == nil {
		return createdOrderResponse{}
	}
	order := result.Order
	resp := createdOrderResponse{
		OrderID:    order.ID,
		Token:      order.Token,
		Status:     order.Status.String(),
		TotalPrice: order.TotalPrice,
		Currency:   order.Currency.String(),
	}
	if order.GatewayOrderID != nil {
		resp.GatewayOrderID = *order.GatewayOrderID
	}
	if result.Quote != nil {
		resp.ShippingTotal = result.Quote.ShippingTotal
		resp.AmountMinor = result.Quote.GrandMinor
	}
	if gw := result.GatewayOrder; gw != nil {
		resp.GatewayToken = gw.Token
		resp.CheckoutURL = gw.CheckoutURL
	}
	return resp
}

type confirmResponse struct {
	OrderID   uuid.UUID `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Status    string    `json:"status"`
	Result    string    `json:"result"`
}

func newConfirmResponse(c *payments.Confirmation) confirmResponse {
	return confirmResponse{
		OrderID:   c.OrderID,
		PaymentID: c.PaymentID,
		Status:    c.Status.String(),
		Result:    c.Result,
	}
}

// publicOrderResponse is what an unauthenticated token holder may see. Payment
// ids and buyer ids are left out.
type publicOrderResponse struct {
	ID               uuid.UUID                 `json:"id"`
	Status           string                    `json:"status"`
	BuyerEmail       string                    `json:"buyer_email"`
	BuyerPhone       *string                   `json:"buyer_phone,omitempty"`
	BuyerName        *string                   `json:"buyer_name,omitempty"`
	TotalPrice       decimal.Decimal           `json:"total_price"`
	ShippingTotal    decimal.Decimal           `json:"shipping_total"`
	Currency         string                    `json:"currency"`
	DeliveryAddress  *types.AddressSnapshot    `json:"delivery_address,omitempty"`
	InvoicingAddress *types.AddressSnapshot    `json:"invoicing_address,omitempty"`
	Items            []internalorders.ItemView `json:"items"`
	PaidAt           *time.Time                `json:"paid_at,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
}

func newPublicOrderResponse(detail *internalorders.OrderDetail) publicOrderResponse {
	order := detail.Order
	resp := publicOrderResponse{
		ID:            order.ID,
		Status:        order.Status.String(),
		BuyerEmail:    order.BuyerEmail,
		BuyerPhone:    order.BuyerPhone,
		BuyerName:     order.BuyerName,
		TotalPrice:    order.TotalPrice,
		ShippingTotal: detail.ShippingTotal(),
		Currency:      order.Currency.String(),
		Items:         detail.Items,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	}
	if resp.Items == nil {
		resp.Items = []internalorders.ItemView{}
	}
	if !order.Delivery.IsZero() {
		delivery := order.Delivery
		resp.DeliveryAddress = &delivery
	}
	if !order.Invoicing.IsZero() {
		invoicing := order.Invoicing
		resp.InvoicingAddress = &invoicing
	}
	return resp
}
