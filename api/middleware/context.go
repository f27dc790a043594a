package middleware

import (
	"context"

	"github.com/alxgalache/kuadrat-backend/pkg/auth"
)

type contextKey string

const ctxBuyer contextKey = "buyer"

// BuyerFromContext returns the authenticated caller, or nil for guests.
func BuyerFromContext(ctx context.Context) *auth.Buyer {
	if ctx == nil {
		return nil
	}
	buyer, _ := ctx.Value(ctxBuyer).(*auth.Buyer)
	return buyer
}

// WithBuyer stores the authenticated caller on the context.
func WithBuyer(ctx context.Context, buyer *auth.Buyer) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxBuyer, buyer)
}

func subjectID(ctx context.Context) string {
	if buyer := BuyerFromContext(ctx); buyer != nil {
		return buyer.ID.String()
	}
	return ""
}
