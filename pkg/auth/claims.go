package auth

import (
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued by the auth service.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Buyer is the authenticated caller resolved before checkout. A nil *Buyer
// means guest checkout.
type Buyer struct {
	ID    uuid.UUID
	Email string
	Role  enums.Role
}

// BuyerFromClaims converts verified claims into a Buyer.
func BuyerFromClaims(claims *AccessTokenClaims) *Buyer {
	if claims == nil || claims.UserID == uuid.Nil {
		return nil
	}
	return &Buyer{ID: claims.UserID, Email: claims.Email, Role: claims.Role}
}
