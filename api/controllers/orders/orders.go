package orders

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alxgalache/kuadrat-backend/api/middleware"
	"github.com/alxgalache/kuadrat-backend/api/responses"
	"github.com/alxgalache/kuadrat-backend/api/validators"
	internalorders "github.com/alxgalache/kuadrat-backend/internal/orders"
	"github.com/alxgalache/kuadrat-backend/internal/payments"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
)

// Create opens a hosted gateway order and persists the local order against it.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// Flow A always creates its own gateway order.
		payload.GatewayOrderID = ""

		result, err := svc.CreateHostedOrder(r.Context(), payload.toInput(middleware.BuyerFromContext(r.Context())))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCreatedOrderResponse(result))
	}
}

// Place persists the order against a gateway order the client already paid
// into and pushes the full payload to it.
func Place(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(r.Context(), payload.toInput(middleware.BuyerFromContext(r.Context())))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCreatedOrderResponse(result))
	}
}

// Confirm records the gateway payment id against the order and marks it paid.
// Replays of the same pair answer 200 with the stored outcome.
func Confirm(svc payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmation, err := svc.ConfirmPayment(r.Context(), payload.OrderID, payload.PaymentID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newConfirmResponse(confirmation))
	}
}

// GetByToken serves the unauthenticated order view.
func GetByToken(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		detail, err := svc.GetByToken(r.Context(), chi.URLParam(r, "token"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, newPublicOrderResponse(detail))
	}
}
