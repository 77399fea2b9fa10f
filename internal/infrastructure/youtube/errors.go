package youtube

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrQuotaExceeded means the credential is out of quota or rate limited.
	ErrQuotaExceeded = errors.New("youtube quota exceeded")
	// ErrUnauthorized means the credential was rejected.
	ErrUnauthorized = errors.New("youtube credential rejected")
	// ErrTransient covers network failures and 5xx responses.
	ErrTransient = errors.New("youtube transient failure")
	// ErrMalformedResponse means the response could not be decoded or lacked required fields.
	ErrMalformedResponse = errors.New("youtube malformed response")
)

// APIError carries the HTTP status and the first error reason reported by the API.
type APIError struct {
	Status  int
	Reason  string
	Message string
	kind    error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("youtube api status %d (%s): %s", e.Status, e.Reason, e.Message)
}

// Unwrap lets callers match the error class with errors.Is.
func (e *APIError) Unwrap() error {
	return e.kind
}

type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

// classifyResponse maps a non-2xx response to one of the sentinel error classes.
func classifyResponse(status int, body []byte) error {
	var parsed apiErrorBody
	_ = json.Unmarshal(body, &parsed)

	apiErr := &APIError{Status: status, Message: parsed.Error.Message}
	if len(parsed.Error.Errors) > 0 {
		apiErr.Reason = parsed.Error.Errors[0].Reason
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		apiErr.kind = ErrQuotaExceeded
	case status == http.StatusForbidden && isQuotaReason(apiErr.Reason):
		apiErr.kind = ErrQuotaExceeded
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		apiErr.kind = ErrUnauthorized
	case status == http.StatusBadRequest && isKeyReason(apiErr.Reason):
		apiErr.kind = ErrUnauthorized
	case status >= 500:
		apiErr.kind = ErrTransient
	default:
		apiErr.kind = ErrMalformedResponse
	}
	return apiErr
}

func isQuotaReason(reason string) bool {
	switch reason {
	case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
		return true
	}
	return false
}

func isKeyReason(reason string) bool {
	return reason == "keyInvalid" || reason == "keyExpired"
}

// Kind returns the sentinel class of err, or nil when err is not a classified youtube error.
func Kind(err error) error {
	for _, kind := range []error{ErrQuotaExceeded, ErrUnauthorized, ErrTransient, ErrMalformedResponse} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
