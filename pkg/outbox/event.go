package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/alxgalache/kuadrat-backend/pkg/enums"
)

// EnvelopeVersion is bumped when the envelope shape changes.
const EnvelopeVersion = 1

// DomainEvent is what producers hand to Emit. The aggregate type is implied by
// the event type.
type DomainEvent struct {
	EventType   enums.OutboxEventType
	AggregateID uuid.UUID
	Data        any
	OccurredAt  time.Time
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version     int                   `json:"version"`
	EventID     string                `json:"event_id"`
	EventType   enums.OutboxEventType `json:"event_type"`
	AggregateID uuid.UUID             `json:"aggregate_id"`
	OccurredAt  time.Time             `json:"occurred_at"`
	Data        json.RawMessage       `json:"data"`
}
