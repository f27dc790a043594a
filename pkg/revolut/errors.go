package revolut

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	pkgerrors "github.com/alxgalache/kuadrat-backend/pkg/errors"
)

// APIError is a non-2xx answer from the Merchant API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("revolut status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("revolut status %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var payload struct {
		Code         string `json:"code"`
		Message      string `json:"message"`
		ErrorID      string `json:"errorId"`
		ErrorMessage string `json:"error_message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = firstNonEmpty(payload.Message, payload.ErrorMessage)
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// StatusOf returns the remote HTTP status carried by err, or 0 when the call
// never got an answer.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func gatewayError(op string, cause error) error {
	status := StatusOf(cause)
	message := cause.Error()
	var apiErr *APIError
	if errors.As(cause, &apiErr) {
		message = apiErr.Message
	}
	return pkgerrors.Wrap(pkgerrors.CodeGateway, cause, fmt.Sprintf("revolut %s failed", op)).
		WithDetails(map[string]any{
			"operation":       op,
			"gateway_status":  status,
			"gateway_message": message,
		})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
