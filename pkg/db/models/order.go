package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// Order is the per-customer delivery order produced from a cart snapshot.
// Amounts are VND. CourierID stays NULL until a courier wins the claim.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID      uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	RestaurantID    uuid.UUID           `gorm:"column:restaurant_id;type:uuid;not null"`
	CourierID       *uuid.UUID          `gorm:"column:courier_id;type:uuid"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	DeliveryAddress string              `gorm:"column:delivery_address;not null"`
	DeliveryLat     float64             `gorm:"column:delivery_lat;not null"`
	DeliveryLng     float64             `gorm:"column:delivery_lng;not null"`
	DistanceKm      float64             `gorm:"column:distance_km;not null"`
	ProductSubtotal int64               `gorm:"column:product_subtotal;not null"`
	ShippingFee     int64               `gorm:"column:shipping_fee;not null"`
	DiscountAmount  int64               `gorm:"column:discount_amount;not null;default:0"`
	TotalAmount     int64               `gorm:"column:total_amount;not null"`
	VoucherCode     *string             `gorm:"column:voucher_code"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'cash_on_delivery'"`
	PaymentStatus   enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentRef      *string             `gorm:"column:payment_ref"`
	PaidAt          *time.Time          `gorm:"column:paid_at"`
	DisputeReason   *string             `gorm:"column:dispute_reason"`
	ConfirmedAt     *time.Time          `gorm:"column:confirmed_at"`
	ClaimedAt       *time.Time          `gorm:"column:claimed_at"`
	DeliveredAt     *time.Time          `gorm:"column:delivered_at"`
	CompletedAt     *time.Time          `gorm:"column:completed_at"`
	CancelledAt     *time.Time          `gorm:"column:cancelled_at"`
	Lines           []OrderLine         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
