package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// OrderCreatedEvent signals a new order placed by a customer.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	RestaurantID  uuid.UUID           `json:"restaurant_id"`
	TotalAmount   int64               `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderTransitionEvent is emitted for every state machine transition.
type OrderTransitionEvent struct {
	OrderID      uuid.UUID         `json:"order_id"`
	CustomerID   uuid.UUID         `json:"customer_id"`
	RestaurantID uuid.UUID         `json:"restaurant_id"`
	CourierID    *uuid.UUID        `json:"courier_id,omitempty"`
	FromStatus   enums.OrderStatus `json:"from_status"`
	ToStatus     enums.OrderStatus `json:"to_status"`
	Reason       string            `json:"reason,omitempty"`
}

// OrderClaimedEvent is emitted when a courier wins the claim race.
type OrderClaimedEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	CourierID uuid.UUID `json:"courier_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// OrderPaidEvent is emitted once a gateway payment is confirmed.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	Amount        int64     `json:"amount"`
	PaidAt        time.Time `json:"paid_at"`
}

// PaymentFailedEvent records a declined or aborted gateway payment.
type PaymentFailedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	ResponseCode  string    `json:"response_code"`
}

// VoucherRedeemedEvent is emitted when an order consumes a voucher use.
type VoucherRedeemedEvent struct {
	VoucherID      uuid.UUID `json:"voucher_id"`
	Code           string    `json:"code"`
	OrderID        uuid.UUID `json:"order_id"`
	DiscountAmount int64     `json:"discount_amount"`
}

// LocationPingEvent carries one courier position sample.
type LocationPingEvent struct {
	OrderID   uuid.UUID      `json:"order_id"`
	CourierID uuid.UUID      `json:"courier_id"`
	Kind      enums.PingKind `json:"kind"`
	Latitude  float64        `json:"latitude"`
	Longitude float64        `json:"longitude"`
	PingedAt  time.Time      `json:"pinged_at"`
}
