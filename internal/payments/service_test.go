package payments

import (
	"context"
	"net/url"
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
	"github.com/tmnhat/platterly-backend/pkg/paygate"
)

type fakeTx struct{}

func (fakeTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubRepo struct {
	order       *models.Order
	settled     []map[string]any
	settleOK    bool
	markPending int
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubRepo) MarkPending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	s.markPending++
	return true, nil
}

func (s *stubRepo) SettlePayment(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error) {
	if !s.settleOK {
		return false, nil
	}
	s.settled = append(s.settled, updates)
	return true, nil
}

func (s *stubRepo) FindStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	return nil, nil
}

type stubGateway struct {
	paymentURL string
	result     *paygate.CallbackResult
	verifyErr  error
	status     *paygate.TransactionStatus
}

func (s *stubGateway) BuildPaymentURL(req paygate.PaymentRequest) (string, error) {
	return s.paymentURL, nil
}

func (s *stubGateway) VerifyCallback(params url.Values) (*paygate.CallbackResult, error) {
	return s.result, s.verifyErr
}

func (s *stubGateway) QueryTransaction(ctx context.Context, transactionID string) (*paygate.TransactionStatus, error) {
	return s.status, nil
}

type stubGuard struct {
	already  bool
	marked   []string
	released []string
}

func (s *stubGuard) CheckAndMark(ctx context.Context, consumer, id string) (bool, error) {
	s.marked = append(s.marked, id)
	return s.already, nil
}

func (s *stubGuard) Release(ctx context.Context, consumer, id string) error {
	s.released = append(s.released, id)
	return nil
}

type stubNotifier struct {
	events []notifications.OrderEvent
	err    error
}

func (s *stubNotifier) DispatchTx(ctx context.Context, tx *gorm.DB, event notifications.OrderEvent) (notifications.PushFunc, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.events = append(s.events, event)
	return nil, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func gatewayOrder() *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		RestaurantID:  uuid.New(),
		Status:        enums.OrderStatusPending,
		TotalAmount:   200500,
		PaymentMethod: enums.PaymentMethodGateway,
		PaymentStatus: enums.PaymentStatusUnpaid,
	}
}

type paymentsFixture struct {
	svc     Service
	repo    *stubRepo
	gateway *stubGateway
	guard   *stubGuard
	notify  *stubNotifier
	outbox  *stubOutbox
}

func newPaymentsFixture(t *testing.T, repo *stubRepo, gw *stubGateway, guard *stubGuard) *paymentsFixture {
	t.Helper()
	notify := &stubNotifier{}
	outboxStub := &stubOutbox{}
	svc, err := NewService(repo, fakeTx{}, gw, guard, notify, outboxStub, nil)
	require.NoError(t, err)
	return &paymentsFixture{svc: svc, repo: repo, gateway: gw, guard: guard, notify: notify, outbox: outboxStub}
}

func TestCreatePaymentURL(t *testing.T) {
	order := gatewayOrder()
	repo := &stubRepo{order: order}
	f := newPaymentsFixture(t, repo, &stubGateway{paymentURL: "https://pay.example/redirect"}, &stubGuard{})

	paymentURL, err := f.svc.CreatePaymentURL(context.Background(), CreateURLInput{
		Actor:    auth.Actor{UserID: order.CustomerID, Role: enums.RoleCustomer},
		OrderID:  order.ID,
		ClientIP: "203.0.113.7",
	})
	require.NoError(t, err)
	require.Equal(t, "https://pay.example/redirect", paymentURL)
	require.Equal(t, 1, repo.markPending)
}

func TestCreatePaymentURLRejectsCashOrder(t *testing.T) {
	order := gatewayOrder()
	order.PaymentMethod = enums.PaymentMethodCashOnDelivery
	f := newPaymentsFixture(t, &stubRepo{order: order}, &stubGateway{}, &stubGuard{})

	_, err := f.svc.CreatePaymentURL(context.Background(), CreateURLInput{
		Actor:   auth.Actor{UserID: order.CustomerID, Role: enums.RoleCustomer},
		OrderID: order.ID,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestCreatePaymentURLRejectsOtherCustomer(t *testing.T) {
	order := gatewayOrder()
	f := newPaymentsFixture(t, &stubRepo{order: order}, &stubGateway{}, &stubGuard{})

	_, err := f.svc.CreatePaymentURL(context.Background(), CreateURLInput{
		Actor:   auth.Actor{UserID: uuid.New(), Role: enums.RoleCustomer},
		OrderID: order.ID,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeForbidden, pkgerrors.As(err).Code())
}

func TestCreatePaymentURLRejectsPaidOrder(t *testing.T) {
	order := gatewayOrder()
	order.PaymentStatus = enums.PaymentStatusPaid
	f := newPaymentsFixture(t, &stubRepo{order: order}, &stubGateway{}, &stubGuard{})

	_, err := f.svc.CreatePaymentURL(context.Background(), CreateURLInput{
		Actor:   auth.Actor{UserID: order.CustomerID, Role: enums.RoleCustomer},
		OrderID: order.ID,
	})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestHandleCallbackSuccess(t *testing.T) {
	order := gatewayOrder()
	repo := &stubRepo{order: order, settleOK: true}
	gw := &stubGateway{result: &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: "TXN-1",
		ResponseCode:  paygate.ResponseCodeSuccess,
		Amount:        order.TotalAmount,
	}}
	f := newPaymentsFixture(t, repo, gw, &stubGuard{})

	outcome, err := f.svc.HandleCallback(context.Background(), url.Values{})
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	require.Equal(t, enums.PaymentStatusPaid, outcome.PaymentStatus)

	require.Len(t, repo.settled, 1)
	require.Equal(t, enums.PaymentStatusPaid, repo.settled[0]["payment_status"])
	require.NotNil(t, repo.settled[0]["paid_at"])

	require.Len(t, f.outbox.events, 1)
	require.Equal(t, enums.EventOrderPaid, f.outbox.events[0].EventType)
	require.Len(t, f.notify.events, 1)
	require.Equal(t, enums.NotificationPaymentUpdate, f.notify.events[0].Type)
}

func TestHandleCallbackFailureCode(t *testing.T) {
	order := gatewayOrder()
	repo := &stubRepo{order: order, settleOK: true}
	gw := &stubGateway{result: &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: "TXN-2",
		ResponseCode:  "24",
		Amount:        order.TotalAmount,
	}}
	f := newPaymentsFixture(t, repo, gw, &stubGuard{})

	outcome, err := f.svc.HandleCallback(context.Background(), url.Values{})
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	require.Equal(t, enums.PaymentStatusFailed, outcome.PaymentStatus)
	require.Equal(t, enums.EventPaymentFailed, f.outbox.events[0].EventType)
}

func TestHandleCallbackReplayIsNoOp(t *testing.T) {
	order := gatewayOrder()
	order.PaymentStatus = enums.PaymentStatusPaid
	repo := &stubRepo{order: order, settleOK: true}
	gw := &stubGateway{result: &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: "TXN-1",
		ResponseCode:  paygate.ResponseCodeSuccess,
		Amount:        order.TotalAmount,
	}}
	f := newPaymentsFixture(t, repo, gw, &stubGuard{already: true})

	outcome, err := f.svc.HandleCallback(context.Background(), url.Values{})
	require.NoError(t, err)
	require.False(t, outcome.Applied)
	require.Equal(t, enums.PaymentStatusPaid, outcome.PaymentStatus)
	require.Empty(t, repo.settled)
	require.Empty(t, f.notify.events)
}

func TestHandleCallbackAlreadyPaidRow(t *testing.T) {
	// Guard passes but the conditional update finds the row already paid.
	order := gatewayOrder()
	order.PaymentStatus = enums.PaymentStatusPaid
	repo := &stubRepo{order: order, settleOK: false}
	gw := &stubGateway{result: &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: "TXN-1",
		ResponseCode:  paygate.ResponseCodeSuccess,
		Amount:        order.TotalAmount,
	}}
	f := newPaymentsFixture(t, repo, gw, &stubGuard{})

	outcome, err := f.svc.HandleCallback(context.Background(), url.Values{})
	require.NoError(t, err)
	require.False(t, outcome.Applied)
	require.Empty(t, f.notify.events)
	require.Empty(t, f.outbox.events)
}

func TestHandleCallbackAmountMismatch(t *testing.T) {
	order := gatewayOrder()
	repo := &stubRepo{order: order, settleOK: true}
	gw := &stubGateway{result: &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: "TXN-1",
		ResponseCode:  paygate.ResponseCodeSuccess,
		Amount:        1,
	}}
	guard := &stubGuard{}
	f := newPaymentsFixture(t, repo, gw, guard)

	_, err := f.svc.HandleCallback(context.Background(), url.Values{})
	require.Error(t, err)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
	// Guard released so the gateway retry can land after investigation.
	require.Len(t, guard.released, 1)
}

func TestReconcileAppliesGatewayAnswer(t *testing.T) {
	order := gatewayOrder()
	ref := "TXN-9"
	order.PaymentRef = &ref
	order.PaymentStatus = enums.PaymentStatusPending
	repo := &stubRepo{order: order, settleOK: true}
	gw := &stubGateway{status: &paygate.TransactionStatus{
		TransactionID: ref,
		ResponseCode:  paygate.ResponseCodeSuccess,
		Amount:        order.TotalAmount,
	}}
	f := newPaymentsFixture(t, repo, gw, &stubGuard{})

	outcome, err := f.svc.Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	require.Equal(t, enums.PaymentStatusPaid, outcome.PaymentStatus)
}

func TestReconcilePaidOrderShortCircuits(t *testing.T) {
	order := gatewayOrder()
	order.PaymentStatus = enums.PaymentStatusPaid
	paidAt := time.Now()
	order.PaidAt = &paidAt
	f := newPaymentsFixture(t, &stubRepo{order: order}, &stubGateway{}, &stubGuard{})

	outcome, err := f.svc.Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	require.False(t, outcome.Applied)
}
