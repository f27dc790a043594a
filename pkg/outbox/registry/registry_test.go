package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/db/models"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox"
	"github.com/alxgalache/kuadrat-backend/pkg/outbox/payloads"
)

func TestResolveOrderPaid(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	data := mustMarshal(t, payloads.OrderPaidEvent{
		OrderID:          orderID,
		BuyerEmail:       "buyer@example.com",
		TotalPrice:       "120.00",
		Currency:         "EUR",
		GatewayPaymentID: "pay_1",
		Items: []payloads.OrderPaidItem{{
			ProductType:     "art",
			ProductID:       uuid.New(),
			PriceAtPurchase: "120.00",
		}},
	})

	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, enums.EventOrderPaid, orderID, data),
	})
	require.NoError(t, err)

	assert.Equal(t, "notification-topic", resolved.Descriptor.Topic)
	assert.Equal(t, enums.AggregateOrder, resolved.Descriptor.AggregateType())
	payload, ok := resolved.Payload.(*payloads.OrderPaidEvent)
	require.True(t, ok, "payload type %T", resolved.Payload)
	assert.Equal(t, orderID, payload.OrderID)
	assert.Equal(t, "pay_1", payload.GatewayPaymentID)
	assert.Len(t, payload.Items, 1)
	assert.NotEmpty(t, resolved.Envelope.EventID)
	assert.False(t, resolved.Envelope.OccurredAt.IsZero())
}

func TestResolveAcceptsEnvelopeWithoutRouting(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	_, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       mustEnvelope(t, "", uuid.Nil, []byte(`{}`)),
	})
	require.NoError(t, err)
}

func TestResolveRejectsBadRows(t *testing.T) {
	reg := newTestEventRegistry(t)
	orderID := uuid.New()

	cases := map[string]models.OutboxEvent{
		"unknown event": {
			EventType:     enums.OutboxEventType("order_shipped"),
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       mustEnvelope(t, "", orderID, []byte(`{}`)),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.OutboxAggregateType("seller"),
			AggregateID:   orderID,
			Payload:       mustEnvelope(t, enums.EventOrderPaid, orderID, []byte(`{}`)),
		},
		"missing aggregate id": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, enums.EventOrderPaid, uuid.Nil, []byte(`{}`)),
		},
		"envelope for another order": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       mustEnvelope(t, enums.EventOrderPaid, uuid.New(), []byte(`{}`)),
		},
		"envelope for another event": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       mustEnvelope(t, enums.OutboxEventType("order_refunded"), orderID, []byte(`{}`)),
		},
		"null payload": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       mustEnvelope(t, enums.EventOrderPaid, orderID, []byte("null")),
		},
		"broken envelope": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       json.RawMessage(`{"data":`),
		},
		"future version": {
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Payload:       json.RawMessage(`{"version":99,"data":{}}`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			require.Error(t, err)
			var nonRetry NonRetryableError
			assert.True(t, errors.As(err, &nonRetry), "got %T", err)
		})
	}
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	require.Error(t, err)
}

func TestTopicsAreUnique(t *testing.T) {
	reg := newTestEventRegistry(t)
	assert.Equal(t, []string{"notification-topic"}, reg.Topics())
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{NotificationTopic: "notification-topic"})
	require.NoError(t, err)
	return reg
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func mustEnvelope(t *testing.T, eventType enums.OutboxEventType, aggregateID uuid.UUID, data []byte) json.RawMessage {
	t.Helper()
	return mustMarshal(t, outbox.PayloadEnvelope{
		Version:     outbox.EnvelopeVersion,
		EventID:     uuid.NewString(),
		EventType:   eventType,
		AggregateID: aggregateID,
		OccurredAt:  time.Now().UTC(),
		Data:        data,
	})
}
