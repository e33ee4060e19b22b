package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmnhat/platterly-backend/pkg/logger"
)

type capturePub struct {
	channels []string
	payloads [][]byte
	err      error
}

func (c *capturePub) Publish(ctx context.Context, channel string, payload any) error {
	if c.err != nil {
		return c.err
	}
	c.channels = append(c.channels, channel)
	c.payloads = append(c.payloads, payload.([]byte))
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "realtime-test"})
}

func TestPushToUser(t *testing.T) {
	pub := &capturePub{}
	p, err := NewPublisher(pub, testLogger())
	require.NoError(t, err)

	p.PushToUser(context.Background(), "u-1", Message{Type: "order_confirmed", Title: "Order confirmed"})

	require.Equal(t, []string{"user:u-1"}, pub.channels)
	var got Message
	require.NoError(t, json.Unmarshal(pub.payloads[0], &got))
	require.Equal(t, "order_confirmed", got.Type)
	require.False(t, got.SentAt.IsZero())
}

func TestPushSwallowsBackendErrors(t *testing.T) {
	pub := &capturePub{err: errors.New("connection reset")}
	p, err := NewPublisher(pub, testLogger())
	require.NoError(t, err)

	// Must not panic or propagate.
	p.PushToOrder(context.Background(), "o-1", Message{Type: "order_claimed"})
	require.Empty(t, pub.channels)
}

func TestChannelNames(t *testing.T) {
	require.Equal(t, "user:abc", UserChannel("abc"))
	require.Equal(t, "order:xyz", OrderChannel("xyz"))
}
