// Package notifications persists and fans out the in-app notifications
// produced by order transitions. The dispatcher owns the mapping from a
// transition to its recipients so call sites never duplicate that logic.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/realtime"
)

// OrderEvent describes one transition worth notifying about. SellerID is
// the restaurant's owning user, CourierID is nil until a courier claims.
type OrderEvent struct {
	Type       enums.NotificationType
	OrderID    uuid.UUID
	CustomerID uuid.UUID
	SellerID   uuid.UUID
	CourierID  *uuid.UUID
	Reason     string
}

type pusher interface {
	PushToUser(ctx context.Context, userID string, msg realtime.Message)
}

// Dispatcher writes notification rows in the caller's transaction and
// fires best-effort realtime pushes for the same recipients.
type Dispatcher struct {
	repo Repository
	push pusher
	now  func() time.Time
}

// NewDispatcher builds the dispatcher. The pusher may be nil when realtime
// delivery is disabled; rows are still written.
func NewDispatcher(repo Repository, push pusher) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return &Dispatcher{repo: repo, push: push, now: time.Now}, nil
}

// PushFunc delivers the realtime pushes built alongside one dispatch.
type PushFunc func(ctx context.Context)

// DispatchTx persists one notification row per recipient inside tx. The
// rows commit or roll back together with the transition that caused them.
// The returned PushFunc fires the matching realtime pushes; callers invoke
// it only once the transaction has committed, so a rollback never leaks a
// push for a transition that was never recorded. It is nil when realtime
// delivery is disabled.
func (d *Dispatcher) DispatchTx(ctx context.Context, tx *gorm.DB, event OrderEvent) (PushFunc, error) {
	messages := buildMessages(event)
	if len(messages) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "no recipients for notification type "+event.Type.String())
	}

	rows := make([]models.Notification, 0, len(messages))
	orderID := event.OrderID
	for _, msg := range messages {
		rows = append(rows, models.Notification{
			RecipientUserID: msg.recipient,
			OrderID:         &orderID,
			Type:            event.Type,
			Title:           msg.title,
			Message:         msg.body,
		})
	}
	if err := d.repo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write notifications")
	}

	if d.push == nil {
		return nil, nil
	}
	return func(ctx context.Context) {
		sentAt := d.now()
		for _, msg := range messages {
			d.push.PushToUser(ctx, msg.recipient.String(), realtime.Message{
				Type:    event.Type.String(),
				Title:   msg.title,
				Body:    msg.body,
				OrderID: event.OrderID.String(),
				SentAt:  sentAt,
			})
		}
	}, nil
}

type recipientMessage struct {
	recipient uuid.UUID
	title     string
	body      string
}

func buildMessages(event OrderEvent) []recipientMessage {
	short := shortOrderRef(event.OrderID)
	var out []recipientMessage
	add := func(recipient uuid.UUID, title, body string) {
		if recipient == uuid.Nil {
			return
		}
		out = append(out, recipientMessage{recipient: recipient, title: title, body: body})
	}

	switch event.Type {
	case enums.NotificationOrderCreated:
		add(event.SellerID, "New order received",
			fmt.Sprintf("Order %s is waiting for your confirmation.", short))
	case enums.NotificationOrderConfirmed:
		add(event.CustomerID, "Order confirmed",
			fmt.Sprintf("Order %s is being prepared and will be picked up soon.", short))
	case enums.NotificationOrderClaimed:
		add(event.CustomerID, "Courier on the way",
			fmt.Sprintf("A courier has picked up order %s.", short))
		add(event.SellerID, "Order picked up",
			fmt.Sprintf("A courier has claimed order %s for delivery.", short))
	case enums.NotificationOrderDelivered:
		add(event.CustomerID, "Order delivered",
			fmt.Sprintf("Order %s was marked delivered. Please confirm receipt.", short))
	case enums.NotificationOrderCompleted:
		add(event.SellerID, "Order completed",
			fmt.Sprintf("The customer confirmed receipt of order %s.", short))
		if event.CourierID != nil {
			add(*event.CourierID, "Delivery completed",
				fmt.Sprintf("Order %s was confirmed by the customer.", short))
		}
	case enums.NotificationOrderCancelled:
		add(event.SellerID, "Order cancelled",
			fmt.Sprintf("Order %s was cancelled by the customer.", short))
		if event.CourierID != nil {
			add(*event.CourierID, "Delivery cancelled",
				fmt.Sprintf("Order %s was cancelled.", short))
		}
	case enums.NotificationOrderDisputed:
		reason := event.Reason
		if reason == "" {
			reason = "no reason given"
		}
		add(event.SellerID, "Delivery disputed",
			fmt.Sprintf("The customer disputed order %s: %s", short, reason))
		if event.CourierID != nil {
			add(*event.CourierID, "Delivery disputed",
				fmt.Sprintf("The customer disputed order %s: %s", short, reason))
		}
	case enums.NotificationPaymentUpdate:
		body := fmt.Sprintf("Payment for order %s was received.", short)
		if event.Reason != "" {
			body = event.Reason
		}
		add(event.CustomerID, "Payment update", body)
	}
	return out
}

func shortOrderRef(orderID uuid.UUID) string {
	s := orderID.String()
	if len(s) >= 8 {
		return "#" + s[:8]
	}
	return "#" + s
}
