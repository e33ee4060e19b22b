package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/tmnhat/platterly-backend/pkg/enums"
	"github.com/tmnhat/platterly-backend/pkg/logger"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/idempotency"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
	"github.com/tmnhat/platterly-backend/pkg/realtime"
)

const orderFeedConsumer = "order-feed"

type orderPusher interface {
	PushToOrder(ctx context.Context, orderID string, msg realtime.Message)
}

// Consumer relays published order events onto the per-order realtime
// channel so tracking screens update without polling. Durable notification
// rows are written in the originating transaction, not here.
type Consumer struct {
	subscription *pubsub.Subscriber
	push         orderPusher
	idempotency  *idempotency.Manager
	logg         *logger.Logger
}

// NewConsumer builds the order feed consumer.
func NewConsumer(subscription *pubsub.Subscriber, push orderPusher, manager *idempotency.Manager, logg *logger.Logger) (*Consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("orders subscription required")
	}
	if push == nil {
		return nil, fmt.Errorf("realtime publisher required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		subscription: subscription,
		push:         push,
		idempotency:  manager,
		logg:         logg,
	}, nil
}

// Run starts the consumer loop until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process reports whether the message should be acked.
func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) bool {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return true
	}
	if envelope.EventID == "" {
		c.logg.Warn(logCtx, "envelope missing event id")
		return true
	}

	already, err := c.idempotency.CheckAndMark(ctx, orderFeedConsumer, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return false
	}
	if already {
		c.logg.Info(logCtx, "event already relayed")
		return true
	}

	relay, ok := c.buildMessage(logCtx, eventType, envelope)
	if !ok {
		return true
	}

	c.push.PushToOrder(ctx, relay.OrderID, relay)
	c.logg.Info(c.logg.WithField(logCtx, "order_id", relay.OrderID), "order event relayed")
	return true
}

func (c *Consumer) buildMessage(ctx context.Context, eventType string, envelope outbox.PayloadEnvelope) (realtime.Message, bool) {
	switch enums.OutboxEventType(eventType) {
	case enums.EventLocationPing:
		var payload payloads.LocationPingEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Error(ctx, "failed to parse location ping payload", err)
			return realtime.Message{}, false
		}
		return realtime.Message{
			Type:    string(enums.EventLocationPing),
			Title:   "Courier location",
			Body:    fmt.Sprintf("%f,%f", payload.Latitude, payload.Longitude),
			OrderID: payload.OrderID.String(),
			SentAt:  payload.PingedAt,
		}, true
	case enums.EventOrderConfirmed, enums.EventOrderClaimed, enums.EventOrderDelivered,
		enums.EventOrderCompleted, enums.EventOrderCancelled, enums.EventOrderDisputed:
		var payload payloads.OrderTransitionEvent
		if err := json.Unmarshal(envelope.Data, &payload); err != nil {
			c.logg.Error(ctx, "failed to parse transition payload", err)
			return realtime.Message{}, false
		}
		sentAt := envelope.OccurredAt
		if sentAt.IsZero() {
			sentAt = time.Now()
		}
		return realtime.Message{
			Type:    eventType,
			Title:   "Order update",
			Body:    fmt.Sprintf("Order is now %s.", payload.ToStatus),
			OrderID: payload.OrderID.String(),
			SentAt:  sentAt,
		}, true
	default:
		return realtime.Message{}, false
	}
}
