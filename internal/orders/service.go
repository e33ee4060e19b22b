// Package orders implements the order lifecycle: creation from a cart
// snapshot and the role-gated state machine that moves an order from
// pending to completed. Every successful transition commits its status
// change, notification rows and outbox events in one transaction; a failed
// transition changes nothing.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tmnhat/platterly-backend/internal/cart"
	"github.com/tmnhat/platterly-backend/internal/geo"
	"github.com/tmnhat/platterly-backend/internal/notifications"
	"github.com/tmnhat/platterly-backend/internal/pricing"
	"github.com/tmnhat/platterly-backend/internal/vouchers"
	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/metrics"
	"github.com/tmnhat/platterly-backend/pkg/outbox"
	"github.com/tmnhat/platterly-backend/pkg/outbox/payloads"
	"github.com/tmnhat/platterly-backend/pkg/pagination"
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

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Order, error)
	Confirm(ctx context.Context, input TransitionInput) error
	MarkDelivered(ctx context.Context, input TransitionInput) error
	ConfirmReceipt(ctx context.Context, input TransitionInput) error
	Dispute(ctx context.Context, input TransitionInput) error
	Cancel(ctx context.Context, input TransitionInput) error
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	carts    cart.Service
	geo      geo.Service
	pricing  pricing.Calculator
	vouchers vouchers.Service
	notify   notifier
	outbox   outboxPublisher
	metrics  *metrics.FulfillmentMetrics
	now      func() time.Time
}

// NewService wires the order service. Metrics may be nil.
func NewService(
	repo Repository,
	tx txRunner,
	carts cart.Service,
	geoSvc geo.Service,
	calc pricing.Calculator,
	voucherSvc vouchers.Service,
	notify notifier,
	outboxSvc outboxPublisher,
	m *metrics.FulfillmentMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if geoSvc == nil {
		return nil, fmt.Errorf("geo service required")
	}
	if calc == nil {
		return nil, fmt.Errorf("pricing calculator required")
	}
	if voucherSvc == nil {
		return nil, fmt.Errorf("voucher service required")
	}
	if notify == nil {
		return nil, fmt.Errorf("notification dispatcher required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		carts:    carts,
		geo:      geoSvc,
		pricing:  calc,
		vouchers: voucherSvc,
		notify:   notify,
		outbox:   outboxSvc,
		metrics:  m,
		now:      time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Order, error) {
	if input.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if input.Actor.Role != enums.RoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can place orders")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}

	var order *models.Order
	var pushNotifs notifications.PushFunc
	// The snapshot is read in the same transaction that clears the cart,
	// so a line added concurrently is never wiped without being ordered.
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		snapshot, err := s.carts.ResolveTx(ctx, tx, input.Actor.UserID)
		if err != nil {
			return err
		}

		lines := make([]pricing.Line, 0, len(snapshot.Lines))
		productIDs := make([]uuid.UUID, 0, len(snapshot.Lines))
		for _, line := range snapshot.Lines {
			lines = append(lines, pricing.Line{
				ProductID: line.ProductID.String(),
				Quantity:  line.Quantity,
				UnitPrice: line.UnitPrice,
			})
			productIDs = append(productIDs, line.ProductID)
		}
		if err := s.pricing.ValidateQuantities(lines); err != nil {
			return err
		}

		resolved, err := s.geo.ResolveDelivery(ctx, input.DeliveryAddress, geo.Location{
			Address:   snapshot.Restaurant.Address,
			Latitude:  snapshot.Restaurant.Lat,
			Longitude: snapshot.Restaurant.Lng,
		})
		if err != nil {
			return err
		}

		var applied *vouchers.Applied
		if input.VoucherCode != nil && strings.TrimSpace(*input.VoucherCode) != "" {
			applied, err = s.vouchers.Validate(ctx, *input.VoucherCode, vouchers.OrderContext{
				CustomerID:      input.Actor.UserID,
				RestaurantID:    snapshot.Restaurant.ID,
				ProductIDs:      productIDs,
				ProductSubtotal: snapshot.ProductSubtotal,
				TotalQuantity:   snapshot.TotalQuantity,
				PaymentMethod:   input.PaymentMethod,
			})
			if err != nil {
				return err
			}
		}

		pricingStart := s.now()
		var discount int64
		if applied != nil {
			discount = applied.DiscountAmount
		}
		quote, err := s.pricing.BuildQuote(resolved.DistanceKm, lines, discount)
		if err != nil {
			return err
		}
		s.metrics.ObservePricingDuration(s.now().Sub(pricingStart))

		order = &models.Order{
			ID:              uuid.New(),
			CustomerID:      input.Actor.UserID,
			RestaurantID:    snapshot.Restaurant.ID,
			Status:          enums.OrderStatusPending,
			DeliveryAddress: resolved.Location.Address,
			DeliveryLat:     resolved.Location.Latitude,
			DeliveryLng:     resolved.Location.Longitude,
			DistanceKm:      float64(resolved.DistanceKm),
			ProductSubtotal: quote.ProductSubtotal,
			ShippingFee:     quote.ShippingFee,
			DiscountAmount:  quote.DiscountAmount,
			TotalAmount:     quote.TotalAmount,
			PaymentMethod:   input.PaymentMethod,
			PaymentStatus:   enums.PaymentStatusUnpaid,
		}
		if applied != nil {
			code := applied.Voucher.Code
			order.VoucherCode = &code
		}

		orderLines := make([]models.OrderLine, 0, len(snapshot.Lines))
		for _, line := range snapshot.Lines {
			orderLines = append(orderLines, models.OrderLine{
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				ProductName: line.ProductName,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.LineTotal,
			})
		}

		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateLines(ctx, orderLines); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order lines")
		}
		order.Lines = orderLines
		if applied != nil {
			if err := s.vouchers.RedeemTx(ctx, tx, applied.Voucher.Code); err != nil {
				return err
			}
		}
		if err := s.carts.ClearTx(ctx, tx, input.Actor.UserID); err != nil {
			return err
		}
		pushNotifs, err = s.notify.DispatchTx(ctx, tx, notifications.OrderEvent{
			Type:       enums.NotificationOrderCreated,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			SellerID:   snapshot.Restaurant.SellerUserID,
		})
		if err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				CustomerID:    order.CustomerID,
				RestaurantID:  order.RestaurantID,
				TotalAmount:   order.TotalAmount,
				PaymentMethod: order.PaymentMethod,
			},
		}); err != nil {
			return err
		}
		if applied != nil {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVoucherRedeemed,
				AggregateType: enums.AggregateVoucher,
				AggregateID:   applied.Voucher.ID,
				Actor:         buildActor(input.Actor),
				Data: payloads.VoucherRedeemedEvent{
					VoucherID:      applied.Voucher.ID,
					Code:           applied.Voucher.Code,
					OrderID:        order.ID,
					DiscountAmount: applied.DiscountAmount,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if pushNotifs != nil {
		pushNotifs(ctx)
	}
	s.metrics.IncTransition(string(enums.OrderStatusPending))
	return order, nil
}

// transitionSpec declares one edge of the state machine.
type transitionSpec struct {
	from        []enums.OrderStatus
	to          enums.OrderStatus
	conflictMsg string
	authorize   func(order *models.Order, restaurant *models.Restaurant, actor auth.Actor) error
	updates     func(order *models.Order, now time.Time) map[string]any
	// after runs inside the transaction once the status change applied,
	// before notifications and outbox rows are written.
	after        func(ctx context.Context, repo Repository, order *models.Order, now time.Time) error
	eventType    enums.OutboxEventType
	notification enums.NotificationType
	reason       string
}

func (s *service) Confirm(ctx context.Context, input TransitionInput) error {
	if err := requireRole(input.Actor, enums.RoleSeller, "only the seller can confirm an order"); err != nil {
		return err
	}
	return s.transition(ctx, input, transitionSpec{
		from:        []enums.OrderStatus{enums.OrderStatusPending},
		to:          enums.OrderStatusReadyForDelivery,
		conflictMsg: "order can only be confirmed while pending",
		authorize: func(order *models.Order, restaurant *models.Restaurant, actor auth.Actor) error {
			if restaurant == nil || restaurant.SellerUserID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another restaurant")
			}
			return nil
		},
		updates: func(order *models.Order, now time.Time) map[string]any {
			return map[string]any{
				"status":       enums.OrderStatusReadyForDelivery,
				"confirmed_at": now,
			}
		},
		eventType:    enums.EventOrderConfirmed,
		notification: enums.NotificationOrderConfirmed,
	})
}

func (s *service) MarkDelivered(ctx context.Context, input TransitionInput) error {
	if err := requireRole(input.Actor, enums.RoleCourier, "only the assigned courier can mark delivery"); err != nil {
		return err
	}
	return s.transition(ctx, input, transitionSpec{
		from:        []enums.OrderStatus{enums.OrderStatusInDelivery},
		to:          enums.OrderStatusDelivered,
		conflictMsg: "order can only be delivered while in delivery",
		authorize: func(order *models.Order, _ *models.Restaurant, actor auth.Actor) error {
			if order.CourierID == nil || *order.CourierID != actor.UserID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "order is assigned to another courier")
			}
			return nil
		},
		updates: func(order *models.Order, now time.Time) map[string]any {
			return map[string]any{
				"status":       enums.OrderStatusDelivered,
				"delivered_at": now,
			}
		},
		// Delivery confirmation closes the tracking history with the
		// terminal ping at the dropoff point.
		after: func(ctx context.Context, repo Repository, order *models.Order, now time.Time) error {
			if order.CourierID == nil {
				return nil
			}
			if _, err := repo.RecordDeliveredPing(ctx, &models.DeliveryTrackingPing{
				OrderID:    order.ID,
				CourierID:  *order.CourierID,
				Lat:        order.DeliveryLat,
				Lng:        order.DeliveryLng,
				Kind:       enums.PingKindDelivered,
				RecordedAt: now,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record delivered ping")
			}
			return nil
		},
		eventType:    enums.EventOrderDelivered,
		notification: enums.NotificationOrderDelivered,
	})
}

func (s *service) ConfirmReceipt(ctx context.Context, input TransitionInput) error {
	if err := requireRole(input.Actor, enums.RoleCustomer, "only the customer can confirm receipt"); err != nil {
		return err
	}
	return s.transition(ctx, input, transitionSpec{
		from:        []enums.OrderStatus{enums.OrderStatusDelivered},
		to:          enums.OrderStatusCompleted,
		conflictMsg: "receipt can only be confirmed after delivery",
		authorize:   authorizeCustomer,
		updates: func(order *models.Order, now time.Time) map[string]any {
			updates := map[string]any{
				"status":       enums.OrderStatusCompleted,
				"completed_at": now,
			}
			// Cash orders settle on handover, so completion marks them paid.
			if order.PaymentMethod == enums.PaymentMethodCashOnDelivery &&
				order.PaymentStatus != enums.PaymentStatusPaid {
				updates["payment_status"] = enums.PaymentStatusPaid
				updates["paid_at"] = now
			}
			return updates
		},
		eventType:    enums.EventOrderCompleted,
		notification: enums.NotificationOrderCompleted,
	})
}

func (s *service) Dispute(ctx context.Context, input TransitionInput) error {
	if err := requireRole(input.Actor, enums.RoleCustomer, "only the customer can dispute a delivery"); err != nil {
		return err
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "a dispute reason is required")
	}
	return s.transition(ctx, input, transitionSpec{
		from:        []enums.OrderStatus{enums.OrderStatusDelivered},
		to:          enums.OrderStatusDisputed,
		conflictMsg: "delivery can only be disputed after it is marked delivered",
		authorize:   authorizeCustomer,
		updates: func(order *models.Order, now time.Time) map[string]any {
			return map[string]any{
				"status":         enums.OrderStatusDisputed,
				"dispute_reason": reason,
			}
		},
		eventType:    enums.EventOrderDisputed,
		notification: enums.NotificationOrderDisputed,
		reason:       reason,
	})
}

func (s *service) Cancel(ctx context.Context, input TransitionInput) error {
	if err := requireRole(input.Actor, enums.RoleCustomer, "only the customer can cancel an order"); err != nil {
		return err
	}
	return s.transition(ctx, input, transitionSpec{
		from:        []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusReadyForDelivery},
		to:          enums.OrderStatusCancelled,
		conflictMsg: "order can no longer be cancelled",
		authorize:   authorizeCustomer,
		updates: func(order *models.Order, now time.Time) map[string]any {
			return map[string]any{
				"status":       enums.OrderStatusCancelled,
				"cancelled_at": now,
			}
		},
		eventType:    enums.EventOrderCancelled,
		notification: enums.NotificationOrderCancelled,
	})
}

func (s *service) transition(ctx context.Context, input TransitionInput, spec transitionSpec) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var pushNotifs notifications.PushFunc
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		var restaurant *models.Restaurant
		if input.Actor.Role == enums.RoleSeller {
			restaurant, err = repo.FindRestaurant(ctx, order.RestaurantID)
			if err != nil && err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
			}
		}
		if err := spec.authorize(order, restaurant, input.Actor); err != nil {
			return err
		}
		if !statusIn(order.Status, spec.from) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, spec.conflictMsg).
				WithDetails(map[string]any{"currentStatus": order.Status})
		}

		now := s.now()
		changed, err := repo.Transition(ctx, order.ID, spec.from, spec.updates(order, now))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}
		if spec.after != nil {
			if err := spec.after(ctx, repo, order, now); err != nil {
				return err
			}
		}

		sellerID := uuid.Nil
		if restaurant != nil {
			sellerID = restaurant.SellerUserID
		} else {
			loaded, err := repo.FindRestaurant(ctx, order.RestaurantID)
			if err == nil {
				sellerID = loaded.SellerUserID
			} else if err != gorm.ErrRecordNotFound {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
			}
		}

		pushNotifs, err = s.notify.DispatchTx(ctx, tx, notifications.OrderEvent{
			Type:       spec.notification,
			OrderID:    order.ID,
			CustomerID: order.CustomerID,
			SellerID:   sellerID,
			CourierID:  order.CourierID,
			Reason:     spec.reason,
		})
		if err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     spec.eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         buildActor(input.Actor),
			Data: payloads.OrderTransitionEvent{
				OrderID:      order.ID,
				CustomerID:   order.CustomerID,
				RestaurantID: order.RestaurantID,
				CourierID:    order.CourierID,
				FromStatus:   order.Status,
				ToStatus:     spec.to,
				Reason:       spec.reason,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			s.metrics.IncTransitionError(string(typed.Code()))
		}
		return err
	}
	if pushNotifs != nil {
		pushNotifs(ctx)
	}
	s.metrics.IncTransition(string(spec.to))
	return nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if err := s.authorizeView(ctx, order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.Actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	query := ListQuery{Limit: params.Limit}
	if params.Status != nil {
		query.Statuses = []enums.OrderStatus{*params.Status}
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	switch params.Actor.Role {
	case enums.RoleCustomer:
		userID := params.Actor.UserID
		query.CustomerID = &userID
	case enums.RoleCourier:
		// Couriers browse the claimable pool or their own assignments.
		if params.Status != nil && *params.Status == enums.OrderStatusReadyForDelivery {
			break
		}
		userID := params.Actor.UserID
		query.CourierID = &userID
	case enums.RoleSeller:
		if params.RestaurantID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurant id required")
		}
		restaurant, err := s.repo.FindRestaurant(ctx, *params.RestaurantID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
		}
		if restaurant.SellerUserID != params.Actor.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another seller")
		}
		query.RestaurantID = params.RestaurantID
	case enums.RoleAdmin:
		query.RestaurantID = params.RestaurantID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unknown role")
	}

	items, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) authorizeView(ctx context.Context, order *models.Order, actor auth.Actor) error {
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
		// Couriers may inspect unclaimed orders before picking one up.
		if order.Status == enums.OrderStatusReadyForDelivery && order.CourierID == nil {
			return nil
		}
	case enums.RoleSeller:
		restaurant, err := s.repo.FindRestaurant(ctx, order.RestaurantID)
		if err == nil && restaurant.SellerUserID == actor.UserID {
			return nil
		}
		if err != nil && err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order is not visible to this user")
}

func authorizeCustomer(order *models.Order, _ *models.Restaurant, actor auth.Actor) error {
	if order.CustomerID != actor.UserID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another customer")
	}
	return nil
}

func requireRole(actor auth.Actor, role enums.ActorRole, message string) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if actor.Role != role {
		return pkgerrors.New(pkgerrors.CodeForbidden, message)
	}
	return nil
}

func statusIn(status enums.OrderStatus, set []enums.OrderStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func buildActor(actor auth.Actor) *outbox.ActorRef {
	return &outbox.ActorRef{UserID: actor.UserID, Role: string(actor.Role)}
}
