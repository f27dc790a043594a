package middleware

import (
	"net/http"
	"strings"

	"github.com/alxgalache/kuadrat-backend/api/responses"
	pkgAuth "github.com/alxgalache/kuadrat-backend/pkg/auth"
	"github.com/alxgalache/kuadrat-backend/pkg/config"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
)

// OptionalAuth resolves a bearer token when one is sent. Requests without an
// Authorization header continue as guests; a bad token is rejected.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, false)
}

// RequireAuth rejects requests that do not carry a valid bearer token.
func RequireAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, logg, true)
}

func authenticate(cfg config.JWTConfig, logg *logger.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if BuyerFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				if required {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}
			buyer := pkgAuth.BuyerFromClaims(claims)
			if buyer == nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "token has no subject"))
				return
			}

			ctx := WithBuyer(r.Context(), buyer)
			if logg != nil {
				ctx = logg.WithBuyerID(ctx, buyer.ID.String())
				ctx = logg.WithField(ctx, "actor_role", buyer.Role.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
