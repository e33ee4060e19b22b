package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	order   *models.Order
	claimOK bool
	pings   []models.DeliveryTrackingPing
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRepo) ClaimOrder(ctx context.Context, orderID, courierID uuid.UUID, claimedAt time.Time) (bool, error) {
	return s.claimOK, nil
}

func (s *stubRepo) CreatePing(ctx context.Context, ping *models.DeliveryTrackingPing) error {
	s.pings = append(s.pings, *ping)
	return nil
}

type stubSellers struct {
	restaurant *models.Restaurant
}

func (s *stubSellers) FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error) {
	if s.restaurant == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.restaurant, nil
}

type stubNotifier struct {
	events []notifications.OrderEvent
	pushed int
}

func (s *stubNotifier) DispatchTx(ctx context.Context, tx *gorm.DB, event notifications.OrderEvent) (notifications.PushFunc, error) {
	s.events = append(s.events, event)
	return func(context.Context) { s.pushed++ }, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func readyOrder() *models.Order {
	return &models.Order{
		ID:           uuid.New(),
		CustomerID:   uuid.New(),
		RestaurantID: uuid.New(),
		Status:       enums.OrderStatusReadyForDelivery,
	}
}

func newClaimFixture(t *testing.T, repo *stubRepo) (Service, *stubNotifier, *stubOutbox) {
	t.Helper()
	notify := &stubNotifier{}
	outboxStub := &stubOutbox{}
	sellers := &stubSellers{restaurant: &models.Restaurant{ID: uuid.New(), SellerUserID: uuid.New()}}
	svc, err := NewService(repo, fakeTx{}, sellers, notify, outboxStub, nil)
	require.NoError(t, err)
	return svc, notify, outboxStub
}

func TestClaimSuccess(t *testing.T) {
	order := readyOrder()
	repo := &stubRepo{order: order, claimOK: true}
	svc, notify, outboxStub := newClaimFixture(t, repo)

	courier := auth.Actor{UserID: uuid.New(), Role: enums.RoleCourier}
	claimed, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   courier,
		OrderID: order.ID,
		Lat:     10.78,
		Lng:     106.70,
	})
	require.NoError(t, err)
	require.Equal(t, enums.OrderStatusInDelivery, claimed.Status)
	require.NotNil(t, claimed.CourierID)
	require.Equal(t, courier.UserID, *claimed.CourierID)
	require.NotNil(t, claimed.ClaimedAt)

	require.Len(t, repo.pings, 1)
	require.Equal(t, enums.PingKindStart, repo.pings[0].Kind)
	require.Equal(t, courier.UserID, repo.pings[0].CourierID)

	require.Len(t, notify.events, 1)
	require.Equal(t, enums.NotificationOrderClaimed, notify.events[0].Type)
	require.Equal(t, 1, notify.pushed)
	require.Len(t, outboxStub.events, 1)
	require.Equal(t, enums.EventOrderClaimed, outboxStub.events[0].EventType)
}

func TestClaimRejectsNonCourier(t *testing.T) {
	svc, _, _ := newClaimFixture(t, &stubRepo{})

	_, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer},
		OrderID: uuid.New(),
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestClaimRejectsOwnOrder(t *testing.T) {
	order := readyOrder()
	repo := &stubRepo{order: order, claimOK: true}
	svc, _, _ := newClaimFixture(t, repo)

	_, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   auth.Actor{UserID: order.CustomerID, Role: enums.RoleCourier},
		OrderID: order.ID,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
	require.Empty(t, repo.pings)
}

func TestClaimRejectsWrongState(t *testing.T) {
	order := readyOrder()
	order.Status = enums.OrderStatusPending
	repo := &stubRepo{order: order, claimOK: true}
	svc, notify, _ := newClaimFixture(t, repo)

	_, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   auth.Actor{UserID: uuid.New(), Role: enums.RoleCourier},
		OrderID: order.ID,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	require.Empty(t, notify.events)
}

func TestClaimLosesRace(t *testing.T) {
	order := readyOrder()
	repo := &stubRepo{order: order, claimOK: false}
	svc, notify, outboxStub := newClaimFixture(t, repo)

	_, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   auth.Actor{UserID: uuid.New(), Role: enums.RoleCourier},
		OrderID: order.ID,
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.Equal(t, pkgerrors.CodeConflict, typed.Code())
	require.True(t, pkgerrors.IsRetryable(err))
	require.Empty(t, repo.pings)
	require.Empty(t, notify.events)
	require.Empty(t, outboxStub.events)
}

func TestClaimNotFound(t *testing.T) {
	svc, _, _ := newClaimFixture(t, &stubRepo{})

	_, err := svc.Claim(context.Background(), ClaimInput{
		Actor:   auth.Actor{UserID: uuid.New(), Role: enums.RoleCourier},
		OrderID: uuid.New(),
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}
