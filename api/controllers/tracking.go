package controllers

import (
	"net/http"

	"github.com/tmnhat/platterly-backend/api/responses"
	"github.com/tmnhat/platterly-backend/api/validators"
	"github.com/tmnhat/platterly-backend/internal/tracking"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	"github.com/tmnhat/platterly-backend/pkg/logger"
)

type trackingPingRequest struct {
	Kind string  `json:"kind" validate:"required"`
	Lat  float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lng  float64 `json:"lng" validate:"required,min=-180,max=180"`
}

// RecordTrackingPing accepts a position sample from the assigned courier.
func RecordTrackingPing(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req trackingPingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		err = svc.RecordPing(r.Context(), tracking.PingInput{
			Actor:   actor,
			OrderID: orderID,
			Kind:    enums.PingKind(req.Kind),
			Lat:     req.Lat,
			Lng:     req.Lng,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]string{"status": "recorded"})
	}
}

// GetTracking returns the live tracking view for an order.
func GetTracking(svc tracking.Service, logg *logger.Logger) http.HandlerFunc {
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

		view, err := svc.Get(r.Context(), actor, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
