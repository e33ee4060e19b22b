package enums

import "fmt"

// NotificationType tags the durable notification rows written on transitions.
type NotificationType string

const (
	NotificationOrderCreated   NotificationType = "order_created"
	NotificationOrderConfirmed NotificationType = "order_confirmed"
	NotificationOrderClaimed   NotificationType = "order_claimed"
	NotificationOrderDelivered NotificationType = "order_delivered"
	NotificationOrderCompleted NotificationType = "order_completed"
	NotificationOrderCancelled NotificationType = "order_cancelled"
	NotificationOrderDisputed  NotificationType = "order_disputed"
	NotificationPaymentUpdate  NotificationType = "payment_update"
	NotificationCourierUpdate  NotificationType = "courier_update"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderCreated,
	NotificationOrderConfirmed,
	NotificationOrderClaimed,
	NotificationOrderDelivered,
	NotificationOrderCompleted,
	NotificationOrderCancelled,
	NotificationOrderDisputed,
	NotificationPaymentUpdate,
	NotificationCourierUpdate,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
