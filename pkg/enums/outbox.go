package enums

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder
}

// OutboxEventType names the domain event stored in an outbox row. Each type
// maps to exactly one aggregate type.
type OutboxEventType string

const EventOrderPaid OutboxEventType = "order_paid"

var outboxEventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventOrderPaid: AggregateOrder,
}

func (e OutboxEventType) String() string {
	return string(e)
}

func (e OutboxEventType) IsValid() bool {
	_, ok := outboxEventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event is emitted for.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return outboxEventAggregates[e]
}

// OutboxDLQErrorReason explains why a row was moved to the dead letter table.
type OutboxDLQErrorReason string

const (
	OutboxDLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts"
	OutboxDLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

func (r OutboxDLQErrorReason) IsValid() bool {
	return r == OutboxDLQReasonMaxAttempts || r == OutboxDLQReasonNonRetryable
}
