package sellers

import (
	"net/http"

	"github.com/alxgalache/kuadrat-backend/api/middleware"
	"github.com/alxgalache/kuadrat-backend/api/responses"
	"github.com/alxgalache/kuadrat-backend/api/validators"
	"github.com/alxgalache/kuadrat-backend/internal/stats"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
)

// Stats returns the sales rollup of a seller. Only that seller or an admin may
// read it.
func Stats(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stats service unavailable"))
			return
		}

		buyer := middleware.BuyerFromContext(r.Context())
		if buyer == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		sellerID, err := validators.ParseUUIDParam(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if buyer.ID != sellerID && buyer.Role != enums.RoleAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "stats belong to another seller"))
			return
		}

		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var window stats.Range
		if from != nil {
			window.From = *from
		}
		if to != nil {
			window.To = *to
		}

		result, err := svc.SellerStats(r.Context(), sellerID, window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
