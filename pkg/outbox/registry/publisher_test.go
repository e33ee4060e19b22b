package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/tmnhat/platterly-backend/pkg/config"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
)

func testRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic: "orders",
		DomainTopic: "domain",
	})
	require.NoError(t, err)
	return reg
}

func makeRow(t *testing.T, eventType enums.OutboxEventType, aggregateType enums.OutboxAggregateType, data any) models.OutboxEvent {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       raw,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}
}

func TestResolveOrderClaimed(t *testing.T) {
	reg := testRegistry(t)
	courierID := uuid.New()
	row := makeRow(t, enums.EventOrderClaimed, enums.AggregateDelivery, payloads.OrderClaimedEvent{
		OrderID:   uuid.New(),
		CourierID: courierID,
		ClaimedAt: time.Now(),
	})

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	require.Equal(t, "orders", resolved.Descriptor.Topic)

	payload, ok := resolved.Payload.(*payloads.OrderClaimedEvent)
	require.True(t, ok)
	require.Equal(t, courierID, payload.CourierID)
}

func TestResolveRoutesVoucherEventsToDomainTopic(t *testing.T) {
	reg := testRegistry(t)
	row := makeRow(t, enums.EventVoucherRedeemed, enums.AggregateVoucher, payloads.VoucherRedeemedEvent{
		VoucherID:      uuid.New(),
		Code:           "WELCOME10",
		OrderID:        uuid.New(),
		DiscountAmount: 20000,
	})

	resolved, err := reg.Resolve(row)
	require.NoError(t, err)
	require.Equal(t, "domain", resolved.Descriptor.Topic)
}

func TestResolveRejectsUnknownEventType(t *testing.T) {
	reg := testRegistry(t)
	row := makeRow(t, enums.OutboxEventType("mystery"), enums.AggregateOrder, map[string]any{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveRejectsAggregateMismatch(t *testing.T) {
	reg := testRegistry(t)
	row := makeRow(t, enums.EventOrderClaimed, enums.AggregateOrder, payloads.OrderClaimedEvent{})

	_, err := reg.Resolve(row)
	var nonRetryable NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}

func TestResolveRejectsEmptyPayload(t *testing.T) {
	reg := testRegistry(t)
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version: 1,
		EventID: uuid.NewString(),
		Data:    json.RawMessage("null"),
	})
	require.NoError(t, err)

	row := models.OutboxEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       envelope,
	}
	_, err = reg.Resolve(row)
	var nonRetryable NonRetryableError
	require.True(t, errors.As(err, &nonRetryable))
}
