// Package tracking records courier position pings during a delivery and
// serves the tracking view shown to the customer, courier and seller.
// History is append-only; the current position is simply the newest ping.
package tracking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PingInput is one position sample from the assigned courier.
type PingInput struct {
	Actor   auth.Actor
	OrderID uuid.UUID
	Kind    enums.PingKind
	Lat     float64
	Lng     float64
}

// Point is a coordinate pair in the tracking view.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// View is everything a tracking screen needs for one order.
type View struct {
	OrderID         uuid.UUID                     `json:"orderId"`
	Status          enums.OrderStatus             `json:"status"`
	RestaurantName  string                        `json:"restaurantName"`
	RestaurantPoint Point                         `json:"restaurantPoint"`
	Destination     Point                         `json:"destination"`
	DestinationAddr string                        `json:"destinationAddress"`
	Current         *Point            `json:"current,omitempty"`
	History         []HistoryPoint    `json:"history"`
}

// HistoryPoint is one recorded tracking position.
type HistoryPoint struct {
	Kind       enums.PingKind `json:"kind"`
	Lat        float64        `json:"lat"`
	Lng        float64        `json:"lng"`
	RecordedAt time.Time      `json:"recordedAt"`
}

type Service interface {
	RecordPing(ctx context.Context, input PingInput) error
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*View, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	now    func() time.Time
}

// NewService wires the tracking service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("tracking repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outboxSvc, now: time.Now}, nil
}

func (s *service) RecordPing(ctx context.Context, input PingInput) error {
	if input.Actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Actor.Role != enums.RoleCourier {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only couriers can report positions")
	}
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown ping kind")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.CourierID == nil || *order.CourierID != input.Actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another courier")
		}
		if order.Status != enums.OrderStatusInDelivery {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "tracking is only recorded while the order is in delivery").
				WithDetails(map[string]any{"currentStatus": order.Status})
		}

		// Start and delivered pings are one-shot markers; in-transit
		// samples are unbounded.
		if input.Kind != enums.PingKindInTransit {
			count, err := repo.CountPingsOfKind(ctx, order.ID, input.Kind)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count pings")
			}
			if count > 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("a %s ping was already recorded for this order", input.Kind))
			}
		}

		recordedAt := s.now()
		if err := repo.CreatePing(ctx, &models.DeliveryTrackingPing{
			OrderID:    order.ID,
			CourierID:  input.Actor.UserID,
			Lat:        input.Lat,
			Lng:        input.Lng,
			Kind:       input.Kind,
			RecordedAt: recordedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ping")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLocationPing,
			AggregateType: enums.AggregateDelivery,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.Actor.UserID, Role: string(enums.RoleCourier)},
			Data: payloads.LocationPingEvent{
				OrderID:   order.ID,
				CourierID: input.Actor.UserID,
				Kind:      input.Kind,
				Latitude:  input.Lat,
				Longitude: input.Lng,
				PingedAt:  recordedAt,
			},
		})
	})
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*View, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
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

	restaurant, err := s.repo.FindRestaurant(ctx, order.RestaurantID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
	}

	if err := authorizeView(order, restaurant, actor); err != nil {
		return nil, err
	}

	pings, err := s.repo.FindPings(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tracking history")
	}

	history := make([]HistoryPoint, 0, len(pings))
	for _, ping := range pings {
		history = append(history, HistoryPoint{
			Kind:       ping.Kind,
			Lat:        ping.Lat,
			Lng:        ping.Lng,
			RecordedAt: ping.RecordedAt,
		})
	}

	view := &View{
		OrderID:         order.ID,
		Status:          order.Status,
		Destination:     Point{Lat: order.DeliveryLat, Lng: order.DeliveryLng},
		DestinationAddr: order.DeliveryAddress,
		History:         history,
	}
	if restaurant != nil {
		view.RestaurantName = restaurant.Name
		view.RestaurantPoint = Point{Lat: restaurant.Lat, Lng: restaurant.Lng}
	}
	if len(pings) > 0 {
		latest := pings[len(pings)-1]
		view.Current = &Point{Lat: latest.Lat, Lng: latest.Lng}
	}
	return view, nil
}

func authorizeView(order *models.Order, restaurant *models.Restaurant, actor auth.Actor) error {
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleCustomer:
		if order.CustomerID == actor.UserID {
			return nil
		}
	case enums.RoleCourier:
		if order.CourierID != nil && *order.CourierID == actor.UserID {
			return nil
		}
	case enums.RoleSeller:
		if restaurant != nil && restaurant.SellerUserID == actor.UserID {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "tracking is not visible to this user")
}
