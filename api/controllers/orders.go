package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/api/responses"
	"github.com/tmnhat/platterly-backend/api/validators"
	internalorders "github.com/tmnhat/platterly-backend/internal/orders"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/logger"
	"github.com/tmnhat/platterly-backend/pkg/pagination"
)

type createOrderRequest struct {
	DeliveryAddress string  `json:"delivery_address" validate:"required,min=5"`
	PaymentMethod   string  `json:"payment_method" validate:"required"`
	VoucherCode     *string `json:"voucher_code,omitempty"`
}

type disputeOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

// CreateOrder places an order from the customer's current cart.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), internalorders.CreateInput{
			Actor:           actor,
			DeliveryAddress: validators.SanitizeString(req.DeliveryAddress, 500),
			PaymentMethod:   enums.PaymentMethod(req.PaymentMethod),
			VoucherCode:     req.VoucherCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.NewOrderView(*order))
	}
}

type transitionFunc func(r *http.Request, input internalorders.TransitionInput) error

func transitionHandler(svc internalorders.Service, logg *logger.Logger, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.TransitionInput{Actor: actor, OrderID: orderID}
		if err := fn(r, input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(*order))
	}
}

// ConfirmOrder lets the owning seller accept a pending order.
func ConfirmOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, input internalorders.TransitionInput) error {
		return svc.Confirm(r.Context(), input)
	})
}

// MarkOrderDelivered lets the assigned courier report the handoff.
func MarkOrderDelivered(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, input internalorders.TransitionInput) error {
		return svc.MarkDelivered(r.Context(), input)
	})
}

// ConfirmOrderReceipt lets the customer close out a delivered order.
func ConfirmOrderReceipt(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, input internalorders.TransitionInput) error {
		return svc.ConfirmReceipt(r.Context(), input)
	})
}

// DisputeOrder lets the customer contest a delivered order with a reason.
func DisputeOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, input internalorders.TransitionInput) error {
		var req disputeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			return err
		}
		input.Reason = validators.SanitizeString(req.Reason, 1000)
		return svc.Dispute(r.Context(), input)
	})
}

// CancelOrder lets the customer back out before the order is picked up.
func CancelOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc, logg, func(r *http.Request, input internalorders.TransitionInput) error {
		return svc.Cancel(r.Context(), input)
	})
}

// GetOrder returns one order after the service authorizes the viewer.
func GetOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, internalorders.NewOrderView(*order))
	}
}

type orderPageResponse struct {
	Items  []internalorders.OrderView `json:"items"`
	Cursor string                     `json:"cursor"`
}

// ListOrders returns the role-scoped order page.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := internalorders.ListParams{
			Actor:  actor,
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("restaurantId")); raw != "" {
			restaurantID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid restaurant id"))
				return
			}
			params.RestaurantID = &restaurantID
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status := enums.OrderStatus(raw)
			if !status.IsValid() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown order status"))
				return
			}
			params.Status = &status
		}

		page, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orderPageResponse{
			Items:  internalorders.NewOrderViews(page.Items),
			Cursor: page.Cursor,
		})
	}
}
