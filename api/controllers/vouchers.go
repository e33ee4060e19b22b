package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tmnhat/platterly-backend/api/responses"
	"github.com/tmnhat/platterly-backend/api/validators"
	"github.com/tmnhat/platterly-backend/internal/cart"
	"github.com/tmnhat/platterly-backend/internal/vouchers"
	"github.com/tmnhat/platterly-backend/pkg/enums"
	pkgerrors "github.com/tmnhat/platterly-backend/pkg/errors"
	"github.com/tmnhat/platterly-backend/pkg/logger"
)

type previewVoucherRequest struct {
	Code          string `json:"code" validate:"required"`
	PaymentMethod string `json:"payment_method" validate:"required"`
}

type previewVoucherResponse struct {
	Code            string `json:"code"`
	DiscountAmount  int64  `json:"discountAmount"`
	ProductSubtotal int64  `json:"productSubtotal"`
}

// PreviewVoucher validates a voucher against the caller's current cart
// without consuming a use.
func PreviewVoucher(carts cart.Service, voucherSvc vouchers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role != enums.RoleCustomer {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can preview vouchers"))
			return
		}

		var req previewVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method := enums.PaymentMethod(req.PaymentMethod)
		if !method.IsValid() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method"))
			return
		}

		snapshot, err := carts.Resolve(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productIDs := make([]uuid.UUID, 0, len(snapshot.Lines))
		for _, line := range snapshot.Lines {
			productIDs = append(productIDs, line.ProductID)
		}

		applied, err := voucherSvc.Validate(r.Context(), req.Code, vouchers.OrderContext{
			CustomerID:      actor.UserID,
			RestaurantID:    snapshot.Restaurant.ID,
			ProductIDs:      productIDs,
			ProductSubtotal: snapshot.ProductSubtotal,
			TotalQuantity:   snapshot.TotalQuantity,
			PaymentMethod:   method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, previewVoucherResponse{
			Code:            applied.Voucher.Code,
			DiscountAmount:  applied.DiscountAmount,
			ProductSubtotal: snapshot.ProductSubtotal,
		})
	}
}
