// Package payments integrates the redirect payment gateway: issuing signed
// payment URLs and absorbing the asynchronous callbacks that settle them.
// Callback handling is idempotent over (order, response code, transaction),
// so the gateway may retry freely.
package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
	"github.com/tmnhat/platterly-backend/pkg/paygate"
)

const callbackConsumer = "paygate-callback"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gateway interface {
	BuildPaymentURL(req paygate.PaymentRequest) (string, error)
	VerifyCallback(params url.Values) (*paygate.CallbackResult, error)
	QueryTransaction(ctx context.Context, transactionID string) (*paygate.TransactionStatus, error)
}

type idempotencyGuard interface {
	CheckAndMark(ctx context.Context, consumer, id string) (bool, error)
	Release(ctx context.Context, consumer, id string) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	DispatchTx(ctx context.Context, tx *gorm.DB, event notifications.OrderEvent) (notifications.PushFunc, error)
}

// CreateURLInput identifies the order a customer wants to pay online.
type CreateURLInput struct {
	Actor    auth.Actor
	OrderID  uuid.UUID
	ClientIP string
}

// CallbackOutcome reports what the callback did. Replayed callbacks return
// Applied == false with the already-settled status.
type CallbackOutcome struct {
	OrderID       uuid.UUID           `json:"orderId"`
	PaymentStatus enums.PaymentStatus `json:"paymentStatus"`
	Applied       bool                `json:"applied"`
}

type Service interface {
	CreatePaymentURL(ctx context.Context, input CreateURLInput) (string, error)
	HandleCallback(ctx context.Context, params url.Values) (*CallbackOutcome, error)
	// Reconcile re-queries the gateway when a callback may have been lost.
	Reconcile(ctx context.Context, orderID uuid.UUID) (*CallbackOutcome, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	gateway     gateway
	idempotency idempotencyGuard
	notify      notifier
	outbox      outboxPublisher
	metrics     *metrics.FulfillmentMetrics
	now         func() time.Time
}

// NewService wires the payments service. Metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	gw gateway,
	guard idempotencyGuard,
	notify notifier,
	outboxSvc outboxPublisher,
	m *metrics.FulfillmentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if gw == nil {
		return nil, fmt.Errorf("payment gateway client required")
	}
	if guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		gateway:     gw,
		idempotency: guard,
		notify:      notify,
		outbox:      outboxSvc,
		metrics:     m,
		now:         time.Now,
	}, nil
}

func (s *service) CreatePaymentURL(ctx context.Context, input CreateURLInput) (string, error) {
	if input.Actor.UserID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Actor.Role != enums.RoleCustomer {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "only the customer can pay for an order")
	}
	if input.OrderID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.CustomerID != input.Actor.UserID {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order is not payable online")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order is already paid")
	}
	if order.Status == enums.OrderStatusCancelled {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "cancelled orders cannot be paid")
	}

	// An already-pending payment just gets a fresh URL.
	if _, err := s.repo.MarkPending(ctx, order.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment pending")
	}

	paymentURL, err := s.gateway.BuildPaymentURL(paygate.PaymentRequest{
		OrderID:   order.ID.String(),
		Amount:    order.TotalAmount,
		OrderInfo: "Platterly order " + order.ID.String(),
		ClientIP:  input.ClientIP,
		CreatedAt: s.now(),
	})
	if err != nil {
		return "", err
	}
	return paymentURL, nil
}

func (s *service) HandleCallback(ctx context.Context, params url.Values) (*CallbackOutcome, error) {
	result, err := s.gateway.VerifyCallback(params)
	if err != nil {
		s.metrics.IncCallback("invalid")
		return nil, err
	}

	orderID, err := uuid.Parse(result.OrderID)
	if err != nil {
		s.metrics.IncCallback("invalid")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "callback carries a malformed order reference")
	}

	guardKey := strings.Join([]string{result.OrderID, result.ResponseCode, result.TransactionID}, ":")
	already, err := s.idempotency.CheckAndMark(ctx, callbackConsumer, guardKey)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "idempotency check")
	}
	if already {
		s.metrics.IncCallback("replay")
		return s.currentOutcome(ctx, orderID)
	}

	outcome, err := s.applyCallback(ctx, orderID, result)
	if err != nil {
		// Release so the gateway's retry can be processed.
		_ = s.idempotency.Release(ctx, callbackConsumer, guardKey)
		return nil, err
	}
	if outcome.Applied {
		if result.Succeeded() {
			s.metrics.IncCallback("paid")
		} else {
			s.metrics.IncCallback("failed")
		}
	} else {
		s.metrics.IncCallback("replay")
	}
	return outcome, nil
}

func (s *service) applyCallback(ctx context.Context, orderID uuid.UUID, result *paygate.CallbackResult) (*CallbackOutcome, error) {
	var outcome *CallbackOutcome
	var pushNotifs notifications.PushFunc
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if result.Succeeded() && result.Amount != order.TotalAmount {
			return pkgerrors.New(pkgerrors.CodeValidation, "callback amount does not match the order total").
				WithDetails(map[string]any{"expected": order.TotalAmount, "received": result.Amount})
		}

		now := s.now()
		targetStatus := enums.PaymentStatusFailed
		updates := map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"payment_ref":    result.TransactionID,
		}
		if result.Succeeded() {
			targetStatus = enums.PaymentStatusPaid
			updates["payment_status"] = enums.PaymentStatusPaid
			updates["paid_at"] = now
		}

		changed, err := repo.SettlePayment(ctx, order.ID, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
		}
		if !changed {
			// Already paid; the replay leaves paidAt and notifications alone.
			outcome = &CallbackOutcome{OrderID: order.ID, PaymentStatus: order.PaymentStatus, Applied: false}
			return nil
		}

		if result.Succeeded() {
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaid,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:       order.ID,
					TransactionID: result.TransactionID,
					Amount:        result.Amount,
					PaidAt:        now,
				},
			}); err != nil {
				return err
			}
		} else {
			if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.PaymentFailedEvent{
					OrderID:       order.ID,
					TransactionID: result.TransactionID,
					ResponseCode:  result.ResponseCode,
				},
			}); err != nil {
				return err
			}
		}

		message := "Payment for order #" + shortRef(order.ID) + " was received."
		if !result.Succeeded() {
			message = "Payment for order #" + shortRef(order.ID) + " failed (code " + result.ResponseCode + "). Please try again."
		}
		pushNotifs, err = s.notify.DispatchTx(ctx, tx, notifications.OrderEvent{
			Type:       enums.NotificationPaymentUpdate,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			Reason:     message,
		})
		if err != nil {
			return err
		}

		outcome = &CallbackOutcome{OrderID: order.ID, PaymentStatus: targetStatus, Applied: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if pushNotifs != nil {
		pushNotifs(ctx)
	}
	return outcome, nil
}

func (s *service) Reconcile(ctx context.Context, orderID uuid.UUID) (*CallbackOutcome, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.PaymentStatus == enums.PaymentStatusPaid {
		return &CallbackOutcome{OrderID: order.ID, PaymentStatus: order.PaymentStatus, Applied: false}, nil
	}
	if order.PaymentRef == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no gateway transaction to reconcile")
	}

	status, err := s.gateway.QueryTransaction(ctx, *order.PaymentRef)
	if err != nil {
		return nil, err
	}

	return s.applyCallback(ctx, order.ID, &paygate.CallbackResult{
		OrderID:       order.ID.String(),
		TransactionID: status.TransactionID,
		ResponseCode:  status.ResponseCode,
		Amount:        status.Amount,
	})
}

func (s *service) currentOutcome(ctx context.Context, orderID uuid.UUID) (*CallbackOutcome, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &CallbackOutcome{OrderID: order.ID, PaymentStatus: order.PaymentStatus, Applied: false}, nil
}

func shortRef(orderID uuid.UUID) string {
	s := orderID.String()
	if len(s) >= 8 {
		return s[:8]
	}
	return s
}
