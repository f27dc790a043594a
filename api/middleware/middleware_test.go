package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alxgalache/kuadrat-backend/pkg/auth"
	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/enums"
	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	kdredis "github.com/alxgalache/kuadrat-backend/pkg/redis"
	"github.com/alxgalache/kuadrat-backend/pkg/types"
)

var jwtCfg = config.JWTConfig{Secret: "secret", Issuer: "kuadrat"}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "mw-test", Output: io.Discard})
}

func newRedis(t *testing.T) (*kdredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	raw := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = raw.Close() })
	return kdredis.NewFromRaw(raw), mr
}

func mintToken(t *testing.T, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(jwtCfg, time.Now().UTC(), time.Hour, auth.AccessTokenPayload{
		UserID: userID,
		Email:  "buyer@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return token
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func captureBuyer(seen **auth.Buyer) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*seen = BuyerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestOptionalAuthGuestPassesThrough(t *testing.T) {
	var seen *auth.Buyer
	handler := OptionalAuth(jwtCfg, quietLogger())(captureBuyer(&seen))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)
}

func TestOptionalAuthResolvesBuyer(t *testing.T) {
	userID := uuid.New()
	var seen *auth.Buyer
	handler := OptionalAuth(jwtCfg, quietLogger())(captureBuyer(&seen))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, userID, enums.RoleBuyer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, userID, seen.ID)
	assert.Equal(t, "buyer@example.com", seen.Email)
}

func TestOptionalAuthRejectsBadToken(t *testing.T) {
	var seen *auth.Buyer
	handler := OptionalAuth(jwtCfg, quietLogger())(captureBuyer(&seen))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorCode(t, rec))
	assert.Nil(t, seen)
}

func TestRequireAuthRejectsGuests(t *testing.T) {
	var seen *auth.Buyer
	handler := RequireAuth(jwtCfg, quietLogger())(captureBuyer(&seen))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sellers/x/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/sellers/x/stats", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, uuid.New(), enums.RoleSeller))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, enums.RoleSeller, seen.Role)
}

func idempotentRouter(store idempotencyStore, calls *int) http.Handler {
	r := chi.NewRouter()
	r.Use(Idempotency(store, time.Hour, quietLogger()))
	r.Post("/orders", func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprintf(w, `{"data":{"call":%d,"echo":%s}}`, *calls, body)
	})
	r.Get("/orders/public/token/{token}", func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func TestIdempotencyReplaysSameKeyAndBody(t *testing.T) {
	store, _ := newRedis(t)
	calls := 0
	router := idempotentRouter(store, &calls)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"a":1}`)
	second := send(`{"a":1}`)

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(replayedHeader))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))

	reused := send(`{"a":2}`)
	assert.Equal(t, http.StatusConflict, reused.Code)
	assert.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, reused))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyWithoutHeaderOrOnOtherRoutesPassesThrough(t *testing.T) {
	store, _ := newRedis(t)
	calls := 0
	router := idempotentRouter(store, &calls)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{}`)))
		assert.Equal(t, http.StatusCreated, rec.Code)
	}
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders/public/token/abc", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 4, calls)
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store, mr := newRedis(t)
	calls := 0
	r := chi.NewRouter()
	r.Use(Idempotency(store, time.Hour, quietLogger()))
	r.Put("/orders", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPut, "/orders", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-me")
		r.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, mr.Keys())
}

func TestIsIdempotentRoute(t *testing.T) {
	assert.True(t, isIdempotentRoute(http.MethodPost, "/orders"))
	assert.True(t, isIdempotentRoute(http.MethodPost, "/orders/placeOrder"))
	assert.True(t, isIdempotentRoute(http.MethodPut, "/orders"))
	assert.False(t, isIdempotentRoute(http.MethodGet, "/orders"))
	assert.False(t, isIdempotentRoute(http.MethodPost, "/payments/orders"))
}

func TestRateLimitByIP(t *testing.T) {
	store, _ := newRedis(t)
	handler := RateLimit(NewRateLimitPolicy("orders", time.Minute, 2, 0), store, quietLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/orders/public/token/abc", nil)
		req.RemoteAddr = "10.0.0.1:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	other := httptest.NewRequest(http.MethodGet, "/orders/public/token/abc", nil)
	other.RemoteAddr = "10.0.0.2:4444"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitRetryAfterUsesRemainingWindow(t *testing.T) {
	store, mr := newRedis(t)
	handler := RateLimit(NewRateLimitPolicy("lookup", time.Minute, 1, 0), store, quietLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/orders/public/token/abc", nil)
		req.RemoteAddr = "10.0.0.9:4444"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send().Code)
	mr.FastForward(45 * time.Second)
	rec := send()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "15", rec.Header().Get("Retry-After"))
	assert.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, rec))
}

func TestRetryAfterRoundsUp(t *testing.T) {
	assert.Equal(t, "1", retryAfter(0))
	assert.Equal(t, "1", retryAfter(200*time.Millisecond))
	assert.Equal(t, "2", retryAfter(1500*time.Millisecond))
	assert.Equal(t, "60", retryAfter(time.Minute))
}

func TestRateLimitByEmailKeepsBody(t *testing.T) {
	store, _ := newRedis(t)
	var bodies []string
	handler := RateLimit(NewRateLimitPolicy("orders", time.Minute, 0, 1), store, quietLogger())(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			bodies = append(bodies, string(body))
			w.WriteHeader(http.StatusOK)
		}))

	send := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"email":"`+email+`"}`))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("Buyer@Example.com"))
	assert.Equal(t, http.StatusTooManyRequests, send("buyer@example.com "))
	assert.Equal(t, http.StatusOK, send("other@example.com"))
	assert.Equal(t, []string{`{"email":"Buyer@Example.com"}`, `{"email":"other@example.com"}`}, bodies)
}

func TestRateLimitDisabledPolicy(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	handler := RateLimit(NewRateLimitPolicy("", 0, 5, 5), nil, nil)(inner)
	assert.NotNil(t, handler)
}

func TestBuyerContextRoundTrip(t *testing.T) {
	buyer := &auth.Buyer{ID: uuid.New()}
	ctx := WithBuyer(context.Background(), buyer)
	assert.Same(t, buyer, BuyerFromContext(ctx))
	assert.Nil(t, BuyerFromContext(context.Background()))
	assert.Equal(t, buyer.ID.String(), subjectID(ctx))
}

func TestRequestIDPropagates(t *testing.T) {
	handler := RequestID(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestRequestIDFallsBackToCorrelationID(t *testing.T) {
	handler := RequestID(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\n")
	req.Header.Set(correlationIDHeader, "corr-7")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "corr-7", rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	_, err := uuid.Parse(rec.Header().Get(requestIDHeader))
	assert.NoError(t, err)
}

func TestRecovererWritesInternalError(t *testing.T) {
	handler := Recoverer(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, string(pkgerrors.CodeInternal), errorCode(t, rec))
}
