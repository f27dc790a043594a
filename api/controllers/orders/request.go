package orders

import (
	"github.com/google/uuid"

	internalorders "github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/internal/shipping"
	"github.com/alxgalache/kuadrat-backend/pkg/auth"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

// ShippingSelection is the buyer shipping choice attached to a cart line.
type ShippingSelection struct {
	MethodID   uuid.UUID `json:"method_id" validate:"required"`
	MethodName string    `json:"method_name,omitempty" validate:"omitempty,max=255"`
	MethodType string    `json:"method_type" validate:"required,oneof=delivery pickup"`
}

// CartItem is one purchased unit. Repeating a line raises its quantity.
type CartItem struct {
	Kind      string             `json:"kind" validate:"required,oneof=art other"`
	ProductID uuid.UUID          `json:"product_id" validate:"required"`
	VariantID *uuid.UUID         `json:"variant_id,omitempty"`
	Shipping  *ShippingSelection `json:"shipping"`
}

// checkoutRequest is the body of POST /orders and POST /orders/placeOrder.
// A missing shipping selection is reported by the order service so the
// error names the offending line.
type checkoutRequest struct {
	Email            string                 `json:"email" validate:"omitempty,max=255"`
	Phone            string                 `json:"phone,omitempty" validate:"omitempty,max=40"`
	FullName         string                 `json:"full_name,omitempty" validate:"omitempty,max=255"`
	DeliveryAddress  *types.AddressSnapshot `json:"delivery_address,omitempty"`
	InvoicingAddress *types.AddressSnapshot `json:"invoicing_address,omitempty"`
	Items            []CartItem             `json:"items" validate:"required,min=1,dive"`
	GatewayOrderID   string                 `json:"gateway_order_id,omitempty" validate:"omitempty,max=128"`
}

func (r checkoutRequest) toInput(buyer *auth.Buyer) internalorders.CheckoutInput {
	return internalorders.CheckoutInput{
		Buyer:          buyer,
		Email:          r.Email,
		Phone:          r.Phone,
		FullName:       r.FullName,
		Delivery:       r.DeliveryAddress,
		Invoicing:      r.InvoicingAddress,
		Items:          CartEntries(r.Items),
		GatewayOrderID: r.GatewayOrderID,
	}
}

// CartEntries converts decoded cart lines into pricing entries.
func CartEntries(items []CartItem) []pricing.CartEntry {
	entries := make([]pricing.CartEntry, 0, len(items))
	for _, item := range items {
		entry := pricing.CartEntry{
			Kind:      enums.ProductKind(item.Kind),
			ProductID: item.ProductID,
			VariantID: item.VariantID,
		}
		if item.Shipping != nil {
			entry.Shipping = &shipping.Selection{
				MethodID:   item.Shipping.MethodID,
				MethodName: item.Shipping.MethodName,
				MethodType: enums.ShippingMethodType(item.Shipping.MethodType),
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// CartRequest is the body shared with the minimal remote order endpoint.
type CartRequest struct {
	Items []CartItem `json:"items" validate:"required,min=1,dive"`
}

type confirmRequest struct {
	OrderID   uuid.UUID `json:"order_id" validate:"required"`
	PaymentID string    `json:"payment_id" validate:"required,max=128"`
}
