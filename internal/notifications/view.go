package notifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// View is the API shape of one notification.
type View struct {
	ID        uuid.UUID              `json:"id"`
	OrderID   *uuid.UUID             `json:"orderId,omitempty"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// NewViews maps a page of stored notifications.
func NewViews(rows []models.Notification) []View {
	views := make([]View, 0, len(rows))
	for _, row := range rows {
		views = append(views, View{
			ID:        row.ID,
			OrderID:   row.OrderID,
			Type:      row.Type,
			Title:     row.Title,
			Message:   row.Message,
			ReadAt:    row.ReadAt,
			CreatedAt: row.CreatedAt,
		})
	}
	return views
}
