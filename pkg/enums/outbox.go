package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateVoucher      OutboxAggregateType = "voucher"
	AggregateDelivery     OutboxAggregateType = "delivery"
	AggregateNotification OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateVoucher,
	AggregateDelivery,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderCreated      OutboxEventType = "order_created"
	EventOrderConfirmed    OutboxEventType = "order_confirmed"
	EventOrderClaimed      OutboxEventType = "order_claimed"
	EventOrderDelivered    OutboxEventType = "order_delivered"
	EventOrderCompleted    OutboxEventType = "order_completed"
	EventOrderCancelled    OutboxEventType = "order_cancelled"
	EventOrderDisputed     OutboxEventType = "order_disputed"
	EventOrderPaid         OutboxEventType = "order_paid"
	EventPaymentFailed     OutboxEventType = "payment_failed"
	EventVoucherRedeemed   OutboxEventType = "voucher_redeemed"
	EventLocationPing      OutboxEventType = "location_ping"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderConfirmed,
	EventOrderClaimed,
	EventOrderDelivered,
	EventOrderCompleted,
	EventOrderCancelled,
	EventOrderDisputed,
	EventOrderPaid,
	EventPaymentFailed,
	EventVoucherRedeemed,
	EventLocationPing,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// OutboxDLQErrorReason classifies why a row was parked in the DLQ.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts  OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonNonRetryable OutboxDLQErrorReason = "non_retryable"
)

// IsValid reports whether the value is a known DLQ error reason.
func (r OutboxDLQErrorReason) IsValid() bool {
	return r == DLQReasonMaxAttempts || r == DLQReasonNonRetryable
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
