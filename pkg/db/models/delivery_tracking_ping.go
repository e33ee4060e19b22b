package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// DeliveryTrackingPing is one append-only courier position record.
// Current position for an order is the ping with the latest RecordedAt.
type DeliveryTrackingPing struct {
	ID         uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID      `gorm:"column:order_id;type:uuid;not null;index"`
	CourierID  uuid.UUID      `gorm:"column:courier_id;type:uuid;not null"`
	Lat        float64        `gorm:"column:lat;not null"`
	Lng        float64        `gorm:"column:lng;not null"`
	Kind       enums.PingKind `gorm:"column:kind;type:ping_kind;not null"`
	RecordedAt time.Time      `gorm:"column:recorded_at;not null"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}
