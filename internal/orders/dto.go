package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alxgalache/kuadrat-backend/internal/pricing"
	"github.com/alxgalache/kuadrat-backend/pkg/auth"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/revolut"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

// CheckoutInput is shared by both order creation flows.
type CheckoutInput struct {
	// Buyer is nil for guest checkout.
	Buyer     *auth.Buyer
	Email     string
	Phone     string
	FullName  string
	Delivery  *types.AddressSnapshot
	Invoicing *types.AddressSnapshot
	Items     []pricing.CartEntry
	// GatewayOrderID is only used by PlaceOrder.
	GatewayOrderID string
}

// CheckoutResult is what a creation flow hands back to the caller.
type CheckoutResult struct {
	Order        *models.Order
	Quote        *pricing.Quote
	GatewayOrder *revolut.Order
}

// ItemView is one purchased unit in the public order read shape.
type ItemView struct {
	ID                 uuid.UUID                `gorm:"column:id" json:"id"`
	ProductType        enums.ProductKind        `gorm:"column:product_type" json:"product_type"`
	ProductID          uuid.UUID                `gorm:"column:product_id" json:"product_id"`
	VariantID          *uuid.UUID               `gorm:"column:variant_id" json:"variant_id,omitempty"`
	SellerID           uuid.UUID                `gorm:"column:seller_id" json:"seller_id"`
	Name               string                   `gorm:"column:name" json:"name"`
	Basename           string                   `gorm:"column:basename" json:"basename,omitempty"`
	PriceAtPurchase    decimal.Decimal          `gorm:"column:price_at_purchase" json:"price_at_purchase"`
	ShippingMethodID   *uuid.UUID               `gorm:"column:shipping_method_id" json:"shipping_method_id,omitempty"`
	ShippingMethodName string                   `gorm:"column:shipping_method_name" json:"shipping_method_name"`
	ShippingMethodType enums.ShippingMethodType `gorm:"column:shipping_method_type" json:"shipping_method_type"`
	ShippingCost       decimal.Decimal          `gorm:"column:shipping_cost" json:"shipping_cost"`
	CreatedAt          time.Time                `gorm:"column:created_at" json:"created_at"`
}

// OrderDetail is an order with the union of its art and other items.
type OrderDetail struct {
	Order models.Order
	Items []ItemView
}

// ShippingTotal sums the shipping snapshots of every item.
func (d *OrderDetail) ShippingTotal() decimal.Decimal {
	total := decimal.Zero
	if d == nil {
		return total
	}
	for _, item := range d.Items {
		total = total.Add(item.ShippingCost)
	}
	return total
}

// SellerIDs returns the distinct sellers in item order.
func (d *OrderDetail) SellerIDs() []uuid.UUID {
	if d == nil {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(d.Items))
	ids := make([]uuid.UUID, 0, len(d.Items))
	for _, item := range d.Items {
		if _, ok := seen[item.SellerID]; ok {
			continue
		}
		seen[item.SellerID] = struct{}{}
		ids = append(ids, item.SellerID)
	}
	return ids
}
