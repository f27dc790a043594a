package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	"github.com/google/uuid"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "kuadrat"}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testCfg, now, 30*time.Minute, AccessTokenPayload{
		UserID: userID,
		Email:  "buyer@example.com",
		Role:   enums.RoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(testCfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Role != enums.RoleBuyer {
		t.Fatalf("unexpected role %s", claims.Role)
	}
	if claims.Issuer != testCfg.Issuer {
		t.Fatalf("unexpected issuer %s", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected jti to be generated")
	}

	buyer := BuyerFromClaims(claims)
	if buyer == nil || buyer.ID != userID || buyer.Email != "buyer@example.com" {
		t.Fatalf("unexpected buyer %+v", buyer)
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-2*time.Hour), time.Hour, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleSeller,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, token); err == nil {
		t.Fatalf("expected expired token to fail")
	}
}

func TestParseAccessTokenRejectsWrongIssuerAndSecret(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), time.Hour, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "secret", Issuer: "other"}, token); err == nil {
		t.Fatalf("expected issuer mismatch")
	}
	if _, err := ParseAccessToken(config.JWTConfig{Secret: "nope", Issuer: "kuadrat"}, token); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := ParseAccessToken(testCfg, token+"x"); err == nil {
		t.Fatalf("expected tampered token to fail")
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleBuyer}
	if _, err := MintAccessToken(config.JWTConfig{Issuer: "x"}, time.Now(), time.Hour, payload); err == nil {
		t.Fatalf("expected missing secret error")
	}
	if _, err := MintAccessToken(testCfg, time.Now(), 0, payload); err == nil {
		t.Fatalf("expected ttl error")
	}
	payload.Role = "root"
	_, err := MintAccessToken(testCfg, time.Now(), time.Hour, payload)
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected invalid role error, got %v", err)
	}
}

func TestParseAccessTokenToleratesSmallSkew(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour-10*time.Second), time.Hour, AccessTokenPayload{
		UserID: uuid.New(),
		Role:   enums.RoleBuyer,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := ParseAccessToken(testCfg, token); err != nil {
		t.Fatalf("expected token within leeway to parse: %v", err)
	}
}

func TestParseAccessTokenRequiresSecret(t *testing.T) {
	if _, err := ParseAccessToken(config.JWTConfig{Issuer: "kuadrat"}, "x.y.z"); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected secret error, got %v", err)
	}
}

func TestBuyerFromClaimsNil(t *testing.T) {
	if BuyerFromClaims(nil) != nil {
		t.Fatalf("expected nil buyer")
	}
	if BuyerFromClaims(&AccessTokenClaims{}) != nil {
		t.Fatalf("expected nil buyer for empty subject")
	}
}
