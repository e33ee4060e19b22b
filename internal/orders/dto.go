package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/pkg/auth"
	"github.com/tmnhat/platterly-backend/pkg/db/models"
	"github.com/tmnhat/platterly-backend/pkg/enums"
)

// CreateInput carries everything needed to place an order from the
// customer's current cart.
type CreateInput struct {
	Actor           auth.Actor
	DeliveryAddress string
	PaymentMethod   enums.PaymentMethod
	VoucherCode     *string
}

// TransitionInput identifies the order a state change targets.
type TransitionInput struct {
	Actor   auth.Actor
	OrderID uuid.UUID
	// Reason is required for disputes and ignored elsewhere.
	Reason string
}

// ListParams filters and paginates order listings. The acting role decides
// which column the listing is scoped by.
type ListParams struct {
	Actor        auth.Actor
	RestaurantID *uuid.UUID
	Status       *enums.OrderStatus
	Limit        int
	Cursor       string
}

// ListResult wraps a page of orders and the cursor for the next page.
type ListResult struct {
	Items  []models.Order `json:"items"`
	Cursor string         `json:"cursor"`
}

// OrderLineView is the API shape of one order line.
type OrderLineView struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unitPrice"`
	LineTotal   int64     `json:"lineTotal"`
}

// OrderView is the API shape of an order.
type OrderView struct {
	ID              uuid.UUID           `json:"id"`
	CustomerID      uuid.UUID           `json:"customerId"`
	RestaurantID    uuid.UUID           `json:"restaurantId"`
	CourierID       *uuid.UUID          `json:"courierId,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	DeliveryAddress string              `json:"deliveryAddress"`
	DistanceKm      float64             `json:"distanceKm"`
	ProductSubtotal int64               `json:"productSubtotal"`
	ShippingFee     int64               `json:"shippingFee"`
	DiscountAmount  int64               `json:"discountAmount"`
	TotalAmount     int64               `json:"totalAmount"`
	VoucherCode     *string             `json:"voucherCode,omitempty"`
	PaymentMethod   enums.PaymentMethod `json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus `json:"paymentStatus"`
	PaidAt          *time.Time          `json:"paidAt,omitempty"`
	DisputeReason   *string             `json:"disputeReason,omitempty"`
	ConfirmedAt     *time.Time          `json:"confirmedAt,omitempty"`
	ClaimedAt       *time.Time          `json:"claimedAt,omitempty"`
	DeliveredAt     *time.Time          `json:"deliveredAt,omitempty"`
	CompletedAt     *time.Time          `json:"completedAt,omitempty"`
	CancelledAt     *time.Time          `json:"cancelledAt,omitempty"`
	Lines           []OrderLineView     `json:"lines,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// NewOrderView maps a stored order onto the API shape.
func NewOrderView(order models.Order) OrderView {
	view := OrderView{
		ID:              order.ID,
		CustomerID:      order.CustomerID,
		RestaurantID:    order.RestaurantID,
		CourierID:       order.CourierID,
		Status:          order.Status,
		DeliveryAddress: order.DeliveryAddress,
		DistanceKm:      order.DistanceKm,
		ProductSubtotal: order.ProductSubtotal,
		ShippingFee:     order.ShippingFee,
		DiscountAmount:  order.DiscountAmount,
		TotalAmount:     order.TotalAmount,
		VoucherCode:     order.VoucherCode,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		PaidAt:          order.PaidAt,
		DisputeReason:   order.DisputeReason,
		ConfirmedAt:     order.ConfirmedAt,
		ClaimedAt:       order.ClaimedAt,
		DeliveredAt:     order.DeliveredAt,
		CompletedAt:     order.CompletedAt,
		CancelledAt:     order.CancelledAt,
		CreatedAt:       order.CreatedAt,
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, OrderLineView{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	return view
}

// NewOrderViews maps a page of orders.
func NewOrderViews(orders []models.Order) []OrderView {
	views := make([]OrderView, 0, len(orders))
	for _, order := range orders {
		views = append(views, NewOrderView(order))
	}
	return views
}
