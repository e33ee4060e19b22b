// Package delivery coordinates courier assignment. Any courier may claim a
// ready order, but exactly one claim wins: the assignment is a conditional
// update on (status, courier_id), so losers observe zero affected rows and
// get a retryable conflict instead of a lost update.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type notifier interface {
	DispatchTx(ctx context.Context, tx *gorm.DB, event notifications.OrderEvent) (notifications.PushFunc, error)
}

type sellerLookup interface {
	FindRestaurant(ctx context.Context, restaurantID uuid.UUID) (*models.Restaurant, error)
}

// ClaimInput carries the claiming courier and their current position,
// which seeds the order's tracking history.
type ClaimInput struct {
	Actor   auth.Actor
	OrderID uuid.UUID
	Lat     float64
	Lng     float64
}

// Service exposes the claim operation.
type Service interface {
	Claim(ctx context.Context, input ClaimInput) (*models.Order, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	sellers sellerLookup
	notify  notifier
	outbox  outboxPublisher
	metrics *metrics.FulfillmentMetrics
	now     func() time.Time
}

// NewService wires the claim coordinator. Metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	sellers sellerLookup,
	notify notifier,
	outboxSvc outboxPublisher,
	m *metrics.FulfillmentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sellers == nil {
		return nil, fmt.Errorf("restaurant lookup required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		sellers: sellers,
		notify:  notify,
		outbox:  outboxSvc,
		metrics: m,
		now:     time.Now,
	}, nil
}

func (s *service) Claim(ctx context.Context, input ClaimInput) (*models.Order, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Actor.Role != enums.RoleCourier {
		s.metrics.IncClaimAttempt("forbidden")
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only couriers can claim deliveries")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var claimed *models.Order
	var pushNotifs notifications.PushFunc
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CustomerID == input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customers cannot deliver their own orders")
		}
		if order.Status != enums.OrderStatusReadyForDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready for delivery").
				WithDetails(map[string]any{"currentStatus": order.Status})
		}

		claimedAt := s.now()
		won, err := repo.ClaimOrder(ctx, order.ID, input.Actor.UserID, claimedAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was claimed by another courier")
		}

		courierID := input.Actor.UserID
		order.CourierID = &courierID
		order.Status = enums.OrderStatusInDelivery
		order.ClaimedAt = &claimedAt

		if err := repo.CreatePing(ctx, &models.DeliveryTrackingPing{
			OrderID:    order.ID,
			CourierID:  courierID,
			Lat:        input.Lat,
			Lng:        input.Lng,
			Kind:       enums.PingKindStart,
			RecordedAt: claimedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record start ping")
		}

		sellerID := uuid.Nil
		if restaurant, err := s.sellers.FindRestaurant(ctx, order.RestaurantID); err == nil {
			sellerID = restaurant.SellerUserID
		} else if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
		}

		pushNotifs, err = s.notify.DispatchTx(ctx, tx, notifications.OrderEvent{
			Type:       enums.NotificationOrderClaimed,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			SellerID:   sellerID,
			CourierID:  &courierID,
		})
		if err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderClaimed,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: courierID, Role: string(enums.RoleCourier)},
			Data: payloads.OrderClaimedEvent{
				OrderID:   order.ID,
				CourierID: courierID,
				ClaimedAt: claimedAt,
			},
		}); err != nil {
			return err
		}

		claimed = order
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeConflict {
			s.metrics.IncClaimAttempt("lost")
		} else {
			s.metrics.IncClaimAttempt("error")
		}
		return nil, err
	}
	if pushNotifs != nil {
		pushNotifs(ctx)
	}
	s.metrics.IncClaimAttempt("won")
	s.metrics.IncTransition(string(enums.OrderStatusInDelivery))
	return claimed, nil
}
