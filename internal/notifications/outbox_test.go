package notifications

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/pkg/db"
	"github.com/alxgalache/kuadrat-backend/pkg/db/dbtest"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox/payloads"
)

func paidDetail() *orders.OrderDetail {
	paymentID := "pay-1"
	paidAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	variantID := uuid.New()
	sellerID := uuid.New()
	return &orders.OrderDetail{
		Order: models.Order{
			ID:               uuid.New(),
			BuyerEmail:       "buyer@example.com",
			TotalPrice:       decimal.RequireFromString("140"),
			Currency:         enums.CurrencyEUR,
			Status:           enums.OrderStatusPaid,
			Token:            "tok",
			GatewayPaymentID: &paymentID,
			PaidAt:           &paidAt,
		},
		Items: []orders.ItemView{
			{
				ProductType:        enums.ProductKindArt,
				ProductID:          uuid.New(),
				SellerID:           sellerID,
				Name:               "Blue Horizon",
				PriceAtPurchase:    decimal.RequireFromString("120"),
				ShippingMethodName: "Courier",
				ShippingMethodType: enums.ShippingMethodDelivery,
				ShippingCost:       decimal.RequireFromString("5"),
			},
			{
				ProductType:        enums.ProductKindOther,
				ProductID:          uuid.New(),
				VariantID:          &variantID,
				SellerID:           sellerID,
				Name:               "Tote",
				PriceAtPurchase:    decimal.RequireFromString("15"),
				ShippingMethodName: "Courier",
				ShippingMethodType: enums.ShippingMethodDelivery,
				ShippingCost:       decimal.Zero,
			},
		},
	}
}

func TestBuildOrderPaidEvent(t *testing.T) {
	detail := paidDetail()
	sellers := []models.Seller{{ID: detail.Items[0].SellerID, FullName: "Marta", Email: "marta@example.com"}}

	event := BuildOrderPaidEvent(detail, sellers)

	assert.Equal(t, detail.Order.ID, event.OrderID)
	assert.Equal(t, "140.00", event.TotalPrice)
	assert.Equal(t, "5.00", event.ShippingTotal)
	assert.Equal(t, "EUR", event.Currency)
	assert.Equal(t, "pay-1", event.GatewayPaymentID)
	require.Len(t, event.Items, 2)
	assert.Equal(t, "art", event.Items[0].ProductType)
	assert.Nil(t, event.Items[0].VariantID)
	assert.Equal(t, "other", event.Items[1].ProductType)
	assert.NotNil(t, event.Items[1].VariantID)
	require.Len(t, event.Sellers, 1)
	assert.Equal(t, "marta@example.com", event.Sellers[0].Email)
}

func TestOutboxNotifierQueuesOneEventPerOrder(t *testing.T) {
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	notifier, err := NewOutboxNotifier(db.NewFromConn(conn), outbox.NewService(outbox.NewRepository(conn), logg))
	require.NoError(t, err)

	detail := paidDetail()
	require.NoError(t, notifier.OrderPaid(context.Background(), detail, nil))
	require.NoError(t, notifier.OrderPaid(context.Background(), detail, nil))

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderPaid, rows[0].EventType)
	assert.Equal(t, detail.Order.ID, rows[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	var payload payloads.OrderPaidEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &payload))
	assert.Equal(t, "buyer@example.com", payload.BuyerEmail)
	assert.Len(t, payload.Items, 2)
}

func TestNewOutboxNotifierRequiresDependencies(t *testing.T) {
	_, err := NewOutboxNotifier(nil, nil)
	require.Error(t, err)
}
