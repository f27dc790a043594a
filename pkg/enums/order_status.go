package enums

// OrderStatus tracks the lifecycle of a buyer order.
type OrderStatus string

const (
	OrderStatusPendingPayment OrderStatus = "pending_payment"
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusSent           OrderStatus = "sent"
	OrderStatusArrived        OrderStatus = "arrived"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusReimbursed     OrderStatus = "reimbursed"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusSent,
	OrderStatusArrived,
	OrderStatusConfirmed,
	OrderStatusCancelled,
	OrderStatusReimbursed,
}

// AwaitingPaymentStatuses lists the statuses a confirmation may move to paid.
var AwaitingPaymentStatuses = []OrderStatus{
	OrderStatusPendingPayment,
	OrderStatusPending,
}

// SettledStatuses lists the statuses that count as a completed sale.
var SettledStatuses = []OrderStatus{
	OrderStatusPaid,
	OrderStatusSent,
	OrderStatusArrived,
	OrderStatusConfirmed,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// AwaitingPayment reports whether the order has not been paid yet.
func (s OrderStatus) AwaitingPayment() bool {
	for _, candidate := range AwaitingPaymentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsSettled reports whether the order reached paid or any later fulfilment state.
func (s OrderStatus) IsSettled() bool {
	for _, candidate := range SettledStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}
