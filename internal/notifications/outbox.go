package notifications

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	EmitOnce(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OutboxNotifier queues an order_paid event for the mailer. At most one event
// is stored per order.
type OutboxNotifier struct {
	tx     txRunner
	outbox emitter
}

// NewOutboxNotifier wires the notifier to the outbox writer.
func NewOutboxNotifier(tx txRunner, out emitter) (*OutboxNotifier, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if out == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	return &OutboxNotifier{tx: tx, outbox: out}, nil
}

func (n *OutboxNotifier) OrderPaid(ctx context.Context, detail *orders.OrderDetail, sellers []models.Seller) error {
	if detail == nil {
		return fmt.Errorf("order detail required")
	}
	event := outbox.DomainEvent{
		EventType:   enums.EventOrderPaid,
		AggregateID: detail.Order.ID,
		Data:        BuildOrderPaidEvent(detail, sellers),
	}
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.EmitOnce(ctx, tx, event)
	})
}

// BuildOrderPaidEvent flattens an order and its sellers into the event payload.
func BuildOrderPaidEvent(detail *orders.OrderDetail, sellers []models.Seller) payloads.OrderPaidEvent {
	order := detail.Order
	event := payloads.OrderPaidEvent{
		OrderID:       order.ID,
		Token:         order.Token,
		BuyerEmail:    order.BuyerEmail,
		BuyerName:     order.BuyerName,
		BuyerPhone:    order.BuyerPhone,
		TotalPrice:    order.TotalPrice.StringFixed(2),
		ShippingTotal: detail.ShippingTotal().StringFixed(2),
		Currency:      order.Currency.String(),
		PaidAt:        order.PaidAt,
		Items:         make([]payloads.OrderPaidItem, 0, len(detail.Items)),
		Sellers:       make([]payloads.OrderPaidSeller, 0, len(sellers)),
	}
	if order.GatewayPaymentID != nil {
		event.GatewayPaymentID = *order.GatewayPaymentID
	}
	for _, item := range detail.Items {
		event.Items = append(event.Items, payloads.OrderPaidItem{
			ProductType:     item.ProductType.String(),
			ProductID:       item.ProductID,
			VariantID:       item.VariantID,
			Name:            item.Name,
			SellerID:        item.SellerID,
			PriceAtPurchase: item.PriceAtPurchase.StringFixed(2),
			ShippingCost:    item.ShippingCost.StringFixed(2),
			ShippingMethod:  item.ShippingMethodName,
			ShippingType:    item.ShippingMethodType.String(),
		})
	}
	for _, seller := range sellers {
		event.Sellers = append(event.Sellers, payloads.OrderPaidSeller{
			ID:       seller.ID,
			FullName: seller.FullName,
			Email:    seller.Email,
		})
	}
	return event
}
