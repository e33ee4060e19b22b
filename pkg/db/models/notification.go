package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// Notification stores the durable in-app notification for one recipient.
// Rows are written in the same transaction as the transition that caused them.
type Notification struct {
	ID              uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	RecipientUserID uuid.UUID              `gorm:"column:recipient_user_id;type:uuid;not null;index"`
	OrderID         *uuid.UUID             `gorm:"column:order_id;type:uuid"`
	Type            enums.NotificationType `gorm:"column:type;type:notification_type;not null"`
	Title           string                 `gorm:"column:title;not null"`
	Message         string                 `gorm:"column:message;not null"`
	ReadAt          *time.Time             `gorm:"column:read_at"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
}
