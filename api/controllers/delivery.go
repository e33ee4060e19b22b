package controllers

import (
	"net/http"

	"github.com/tmnhat/platterly-backend/api/responses"
	"github.com/tmnhat/platterly-backend/api/validators"
	"github.com/tmnhat/platterly-backend/internal/delivery"
	internalorders "github.com/tmnhat/platterly-backend/internal/orders"
	"github.com/tmnhat/platterly-backend/pkg/logger"
)

type claimOrderRequest struct {
	Lat float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng float64 `json:"lng" validate:"required,min=-180,max=180"`
}

// ClaimOrder lets a courier race for an unassigned ready order. Exactly one
// claimant wins; the rest get a retryable conflict.
func ClaimOrder(svc delivery.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req claimOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Claim(r.Context(), delivery.ClaimInput{
			Actor:   actor,
			OrderID: orderID,
			Lat:     req.Lat,
			Lng:     req.Lng,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalorders.NewOrderView(*order))
	}
}
