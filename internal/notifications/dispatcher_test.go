package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	"github.com/tmnhat/platterly-backend/pkg/pagination"
	"github.com/tmnhat/platterly-backend/pkg/realtime"
)

type recordingRepo struct {
	created []models.Notification
	batchErr error
}

func (r *recordingRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *recordingRepo) Create(ctx context.Context, n *models.Notification) error {
	r.created = append(r.created, *n)
	return nil
}

func (r *recordingRepo) CreateBatch(ctx context.Context, ns []models.Notification) error {
	if r.batchErr != nil {
		return r.batchErr
	}
	r.created = append(r.created, ns...)
	return nil
}

func (r *recordingRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	return nil, nil, nil
}

func (r *recordingRepo) MarkRead(ctx context.Context, recipientID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	return notificationMarkResult{}, nil
}

func (r *recordingRepo) MarkAllRead(ctx context.Context, recipientID uuid.UUID, now time.Time) (int64, error) {
	return 0, nil
}

func (r *recordingRepo) DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	return 0, nil
}

type recordingPusher struct {
	pushed []string
}

func (p *recordingPusher) PushToUser(ctx context.Context, userID string, msg realtime.Message) {
	p.pushed = append(p.pushed, userID)
}

func TestDispatchClaimedNotifiesCustomerAndSeller(t *testing.T) {
	repo := &recordingRepo{}
	push := &recordingPusher{}
	dispatcher, err := NewDispatcher(repo, push)
	require.NoError(t, err)

	event := OrderEvent{
		Type:       enums.NotificationOrderClaimed,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
	}
	pushFn, err := dispatcher.DispatchTx(context.Background(), nil, event)
	require.NoError(t, err)
	require.NotNil(t, pushFn)

	require.Len(t, repo.created, 2)
	require.Equal(t, event.CustomerID, repo.created[0].RecipientUserID)
	require.Equal(t, event.SellerID, repo.created[1].RecipientUserID)
	for _, row := range repo.created {
		require.Equal(t, enums.NotificationOrderClaimed, row.Type)
		require.NotNil(t, row.OrderID)
		require.Equal(t, event.OrderID, *row.OrderID)
	}

	// Nothing goes over the wire until the caller decides the row writes
	// have committed.
	require.Empty(t, push.pushed)
	pushFn(context.Background())
	require.Equal(t, []string{event.CustomerID.String(), event.SellerID.String()}, push.pushed)
}

func TestDispatchReturnsNilPushWhenRealtimeDisabled(t *testing.T) {
	repo := &recordingRepo{}
	dispatcher, err := NewDispatcher(repo, nil)
	require.NoError(t, err)

	pushFn, err := dispatcher.DispatchTx(context.Background(), nil, OrderEvent{
		Type:       enums.NotificationOrderConfirmed,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
	})
	require.NoError(t, err)
	require.Nil(t, pushFn)
	require.Len(t, repo.created, 1)
}

func TestDispatchCreatedNotifiesSellerOnly(t *testing.T) {
	repo := &recordingRepo{}
	dispatcher, err := NewDispatcher(repo, nil)
	require.NoError(t, err)

	event := OrderEvent{
		Type:       enums.NotificationOrderCreated,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
	}
	_, err = dispatcher.DispatchTx(context.Background(), nil, event)
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	require.Equal(t, event.SellerID, repo.created[0].RecipientUserID)
}

func TestDispatchDisputedIncludesReason(t *testing.T) {
	repo := &recordingRepo{}
	dispatcher, err := NewDispatcher(repo, nil)
	require.NoError(t, err)

	courierID := uuid.New()
	event := OrderEvent{
		Type:       enums.NotificationOrderDisputed,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
		CourierID:  &courierID,
		Reason:     "food arrived cold",
	}
	_, err = dispatcher.DispatchTx(context.Background(), nil, event)
	require.NoError(t, err)
	require.Len(t, repo.created, 2)
	require.Contains(t, repo.created[0].Message, "food arrived cold")
	require.Equal(t, courierID, repo.created[1].RecipientUserID)
}

func TestDispatchCompletedWithoutCourier(t *testing.T) {
	repo := &recordingRepo{}
	dispatcher, err := NewDispatcher(repo, nil)
	require.NoError(t, err)

	event := OrderEvent{
		Type:       enums.NotificationOrderCompleted,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
	}
	_, err = dispatcher.DispatchTx(context.Background(), nil, event)
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
}

func TestDispatchFailsWhenWriteFails(t *testing.T) {
	repo := &recordingRepo{batchErr: gorm.ErrInvalidDB}
	push := &recordingPusher{}
	dispatcher, err := NewDispatcher(repo, push)
	require.NoError(t, err)

	event := OrderEvent{
		Type:       enums.NotificationOrderConfirmed,
		OrderID:    uuid.New(),
		CustomerID: uuid.New(),
		SellerID:   uuid.New(),
	}
	pushFn, err := dispatcher.DispatchTx(context.Background(), nil, event)
	require.Error(t, err)
	require.Nil(t, pushFn)
	// No pushes when the durable write failed.
	require.Empty(t, push.pushed)
}
