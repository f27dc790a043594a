package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	ordercontrollers "github.com/alxgalache/kuadrat-backend/api/controllers/orders"
	"github.com/alxgalache/kuadrat-backend/api/responses"
	"github.com/alxgalache/kuadrat-backend/api/validators"
	paymentsvc "github.com/alxgalache/kuadrat-backend/internal/payments"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
)

const maxWebhookBytes = 64 << 10

type gatewayOrderResponse struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Token          string `json:"token"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
}

type latestPaymentResponse struct {
	PaymentID string `json:"payment_id"`
	State     string `json:"state"`
	Succeeded bool   `json:"succeeded"`
}

// CreateGatewayOrder prices the cart and opens a gateway order carrying only
// the amount, for clients that pay before placing the order.
func CreateGatewayOrder(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		var payload ordercontrollers.CartRequest
		if err := validators.DecodeJSONBody(w, r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		for i, item := range payload.Items {
			if item.Shipping == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shipping selection required for every item").
					WithDetails(map[string]any{"index": i}))
				return
			}
		}

		order, err := svc.CreateGatewayOrder(r.Context(), ordercontrollers.CartEntries(payload.Items))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, gatewayOrderResponse{
			GatewayOrderID: order.ID,
			Token:          order.Token,
			Amount:         order.Amount,
			Currency:       order.Currency,
		})
	}
}

// LatestPayment reports the newest payment attempt on a gateway order.
func LatestPayment(svc paymentsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payment, err := svc.LatestPayment(r.Context(), chi.URLParam(r, "gatewayOrderId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, latestPaymentResponse{
			PaymentID: payment.ID,
			State:     payment.State,
			Succeeded: payment.Succeeded(),
		})
	}
}

// Webhook acknowledges gateway notifications. They are logged and never
// change order state; confirmation goes through PUT /orders or the sweep.
func Webhook(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read webhook"))
			return
		}

		var event struct {
			Event          string `json:"event"`
			OrderID        string `json:"order_id"`
			MerchantExtRef string `json:"merchant_order_ext_ref"`
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event); err != nil && logg != nil {
				logg.Warn(logg.WithField(r.Context(), "bytes", len(payload)), "gateway webhook is not json")
			}
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"event":                  event.Event,
				"gateway_order_id":       event.OrderID,
				"merchant_order_ext_ref": event.MerchantExtRef,
			})
			logg.Info(ctx, "gateway webhook received")
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
