// Package realtime pushes best-effort notifications to connected clients
// over Redis pub/sub channels. Delivery is not guaranteed; durable
// notification rows are the source of truth.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tmnhat/platterly-backend/pkg/logger"
)

type publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Message is the envelope pushed over a channel.
type Message struct {
	Type    string    `json:"type"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	OrderID string    `json:"order_id,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

// Publisher fans messages out to user and order channels.
type Publisher struct {
	pub  publisher
	logg *logger.Logger
}

func NewPublisher(pub publisher, logg *logger.Logger) (*Publisher, error) {
	if pub == nil {
		return nil, fmt.Errorf("realtime publisher requires a pub/sub backend")
	}
	if logg == nil {
		return nil, fmt.Errorf("realtime publisher requires a logger")
	}
	return &Publisher{pub: pub, logg: logg}, nil
}

// PushToUser delivers a message on the user's private channel. Failures are
// logged and swallowed so callers never fail a committed transition on a
// push hiccup.
func (p *Publisher) PushToUser(ctx context.Context, userID string, msg Message) {
	p.push(ctx, UserChannel(userID), msg)
}

// PushToOrder delivers a message on the order's channel, where all parties
// of the order may be subscribed.
func (p *Publisher) PushToOrder(ctx context.Context, orderID string, msg Message) {
	p.push(ctx, OrderChannel(orderID), msg)
}

func (p *Publisher) push(ctx context.Context, channel string, msg Message) {
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		p.logg.Error(ctx, "marshaling realtime message", err)
		return
	}
	if err := p.pub.Publish(ctx, channel, raw); err != nil {
		p.logg.Warn(p.logg.WithField(ctx, "channel", channel), "realtime push failed: "+err.Error())
	}
}

// UserChannel names the pub/sub channel for one user.
func UserChannel(userID string) string {
	return "user:" + userID
}

// OrderChannel names the pub/sub channel for one order.
func OrderChannel(orderID string) string {
	return "order:" + orderID
}
