package revolut

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/alxgalache/kuadrat-backend/pkg/config"
	"github.com/alxgalache/kuadrat-backend/pkg/logger"
	"github.com/alxgalache/kuadrat-backend/pkg/metrics"
)

const (
	sandboxEnv    = config.RevolutEnvSandbox
	productionEnv = config.RevolutEnvProduction

	apiVersionHeader = "Revolut-Api-Version"
	maxResponseBytes = 1 << 20
)

var (
	errSecretKeyRequired = errors.New("revolut secret key is required")
	errInvalidEnv        = fmt.Errorf("revolut environment must be %q or %q", sandboxEnv, productionEnv)
	errLoggerRequired    = errors.New("revolut logger is required")
)

var baseURLs = map[string]string{
	sandboxEnv:    "https://sandbox-merchant.revolut.com",
	productionEnv: "https://merchant.revolut.com",
}

// Gateway is the set of Merchant API operations the checkout flow depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	UpdateOrder(ctx context.Context, orderID string, req OrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, orderID string) (*Order, error)
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrderPayments(ctx context.Context, orderID string) ([]Payment, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type rawResponse struct {
	status int
	body   []byte
}

// Client calls the Revolut Merchant API with bearer auth, a pinned API version,
// structured logging, metrics and a circuit breaker.
type Client struct {
	http        *http.Client
	baseURL     string
	secretKey   string
	apiVersion  string
	environment string
	redirectURL string
	logger      *logger.Logger
	metrics     *metrics.GatewayMetrics
	breaker     *gobreaker.CircuitBreaker[rawResponse]
}

var _ Gateway = (*Client)(nil)

// NewClient validates the configuration and builds a gateway client.
func NewClient(ctx context.Context, cfg config.RevolutConfig, logg *logger.Logger, gm *metrics.GatewayMetrics) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}
	secret := strings.TrimSpace(cfg.SecretKey)
	if secret == "" {
		return nil, errSecretKeyRequired
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = baseURLs[env]
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &Client{
		http:        &http.Client{Timeout: timeout},
		baseURL:     baseURL,
		secretKey:   secret,
		apiVersion:  strings.TrimSpace(cfg.APIVersion),
		environment: env,
		redirectURL: strings.TrimSpace(cfg.RedirectURL),
		logger:      logg,
		metrics:     gm,
	}
	c.breaker = gobreaker.NewCircuitBreaker[rawResponse](breakerSettings(cfg, func(name string, from, to gobreaker.State) {
		logg.Warn(logg.WithFields(ctx, map[string]any{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}), "revolut circuit breaker state changed")
	}))

	logg.Info(logg.WithField(ctx, "environment", env), "revolut client initialized")
	return c, nil
}

func breakerSettings(cfg config.RevolutConfig, onChange func(string, gobreaker.State, gobreaker.State)) gobreaker.Settings {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	return gobreaker.Settings{
		Name:        "revolut",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 4xx answers are caller mistakes and must not open the circuit.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			status := StatusOf(err)
			return status >= 400 && status < 500 && status != http.StatusTooManyRequests
		},
		OnStateChange: onChange,
	}
}

// RedirectURL is where hosted checkout returns the buyer.
func (c *Client) RedirectURL() string {
	if c == nil {
		return ""
	}
	return c.redirectURL
}

// NewIdempotencyKey returns a unique key for gateway operations.
func (c *Client) NewIdempotencyKey(prefix string) string {
	key := strings.TrimSpace(prefix)
	if key == "" {
		key = "kd"
	}
	return fmt.Sprintf("%s-%s", key, uuid.NewString())
}

// CreateOrder opens a payment order on the gateway.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	c.log(ctx, "request", "create_order", map[string]any{
		"amount":     req.Amount,
		"currency":   req.Currency,
		"line_items": len(req.LineItems),
		"reference":  merchantReference(req),
		"email":      customerEmail(req),
	})
	var out Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/api/orders", req, &out, c.NewIdempotencyKey("order")); err != nil {
		return nil, err
	}
	c.log(ctx, "response", "create_order", map[string]any{"gateway_order_id": out.ID, "state": out.State})
	return &out, nil
}

// UpdateOrder applies a partial update to an existing gateway order.
func (c *Client) UpdateOrder(ctx context.Context, orderID string, req OrderRequest) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, gatewayError("update_order", errors.New("gateway order id is required"))
	}
	c.log(ctx, "request", "update_order", map[string]any{
		"gateway_order_id": orderID,
		"amount":           req.Amount,
		"line_items":       len(req.LineItems),
		"reference":        merchantReference(req),
		"email":            customerEmail(req),
	})
	var out Order
	if err := c.do(ctx, "update_order", http.MethodPatch, "/api/orders/"+url.PathEscape(orderID), req, &out, ""); err != nil {
		return nil, err
	}
	c.log(ctx, "response", "update_order", map[string]any{"gateway_order_id": out.ID, "state": out.State})
	return &out, nil
}

// CancelOrder cancels an uncaptured gateway order.
func (c *Client) CancelOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, gatewayError("cancel_order", errors.New("gateway order id is required"))
	}
	c.log(ctx, "request", "cancel_order", map[string]any{"gateway_order_id": orderID})
	var out Order
	if err := c.do(ctx, "cancel_order", http.MethodPost, "/api/orders/"+url.PathEscape(orderID)+"/cancel", nil, &out, ""); err != nil {
		return nil, err
	}
	c.log(ctx, "response", "cancel_order", map[string]any{"gateway_order_id": out.ID, "state": out.State})
	return &out, nil
}

// GetOrder fetches a gateway order including its embedded payments.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, gatewayError("get_order", errors.New("gateway order id is required"))
	}
	var out Order
	if err := c.do(ctx, "get_order", http.MethodGet, "/api/orders/"+url.PathEscape(orderID), nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListOrderPayments lists the payment attempts of an order. When the list
// endpoint is not available the payments embedded in the order are used.
func (c *Client) ListOrderPayments(ctx context.Context, orderID string) ([]Payment, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, gatewayError("list_order_payments", errors.New("gateway order id is required"))
	}
	var out []Payment
	err := c.do(ctx, "list_order_payments", http.MethodGet, "/api/orders/"+url.PathEscape(orderID)+"/payments", nil, &out, "")
	if err == nil {
		return out, nil
	}

	switch StatusOf(err) {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
	default:
		return nil, err
	}

	c.log(ctx, "fallback", "list_order_payments", map[string]any{"gateway_order_id": orderID})
	order, orderErr := c.GetOrder(ctx, orderID)
	if orderErr != nil {
		return nil, orderErr
	}
	return order.Payments, nil
}

// GetPayment fetches a single payment.
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, gatewayError("get_payment", errors.New("gateway payment id is required"))
	}
	var out Payment
	if err := c.do(ctx, "get_payment", http.MethodGet, "/api/payments/"+url.PathEscape(paymentID), nil, &out, ""); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any, idempotencyKey string) error {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return gatewayError(op, fmt.Errorf("encode request: %w", err))
		}
		payload = encoded
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (rawResponse, error) {
		return c.send(ctx, method, path, payload, idempotencyKey)
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := metrics.OutcomeTransport
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			outcome = metrics.OutcomeOpenCircuit
		case StatusOf(err) != 0:
			outcome = metrics.OutcomeRemoteError
		}
		c.metrics.Observe(op, outcome, elapsed)
		c.log(ctx, "error", op, map[string]any{
			"error":          err.Error(),
			"gateway_status": StatusOf(err),
			"duration_ms":    elapsed.Milliseconds(),
		})
		return gatewayError(op, err)
	}
	c.metrics.Observe(op, metrics.OutcomeSuccess, elapsed)

	if out == nil || len(bytes.TrimSpace(resp.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return gatewayError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, idempotencyKey string) (rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return rawResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if c.apiVersion != "" {
		req.Header.Set(apiVersionHeader, c.apiVersion)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return rawResponse{}, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return rawResponse{}, fmt.Errorf("read response: %w", err)
	}
	resp := rawResponse{status: httpResp.StatusCode, body: body}
	if httpResp.StatusCode >= http.StatusBadRequest {
		return resp, newAPIError(httpResp.StatusCode, body)
	}
	return resp, nil
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("revolut %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("revolut %s", phase))
	}
}

func redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"card", "token", "secret", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func merchantReference(req OrderRequest) string {
	if req.MerchantOrderData == nil {
		return ""
	}
	return req.MerchantOrderData.Reference
}

func customerEmail(req OrderRequest) string {
	if req.Customer == nil {
		return ""
	}
	return req.Customer.Email
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = sandboxEnv
	}
	switch env {
	case sandboxEnv, productionEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}
