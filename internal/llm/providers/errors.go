package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	llmerrors "github.com/ahrav/go-themis/internal/llm/errors"
)

// ServerErrorStatusThreshold defines the HTTP status code threshold for server errors.
const ServerErrorStatusThreshold = 500

// classifyErrorType determines ErrorType from HTTP status and provider error codes.
// Provider-specific codes win over the status code.
func classifyErrorType(statusCode int, errorCode string) llmerrors.ErrorType {
	lowerCode := strings.ToLower(errorCode)
	if strings.Contains(lowerCode, "rate") || strings.Contains(lowerCode, "limit") {
		return llmerrors.ErrorTypeRateLimit
	}
	if strings.Contains(lowerCode, "overloaded") {
		return llmerrors.ErrorTypeProvider
	}
	if strings.Contains(lowerCode, "timeout") {
		return llmerrors.ErrorTypeTimeout
	}
	if strings.Contains(lowerCode, "auth") || strings.Contains(lowerCode, "unauthorized") {
		return llmerrors.ErrorTypeAuth
	}
	if strings.Contains(lowerCode, "permission") || strings.Contains(lowerCode, "forbidden") {
		return llmerrors.ErrorTypePermission
	}
	if strings.Contains(lowerCode, "quota") {
		return llmerrors.ErrorTypeQuota
	}
	if strings.Contains(lowerCode, "content_filter") || strings.Contains(lowerCode, "content_policy") {
		return llmerrors.ErrorTypeContent
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return llmerrors.ErrorTypeRateLimit
	case http.StatusUnauthorized:
		return llmerrors.ErrorTypeAuth
	case http.StatusForbidden:
		return llmerrors.ErrorTypePermission
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return llmerrors.ErrorTypeTimeout
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return llmerrors.ErrorTypeValidation
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return llmerrors.ErrorTypeProvider
	default:
		if statusCode >= ServerErrorStatusThreshold {
			return llmerrors.ErrorTypeProvider
		}
		return llmerrors.ErrorTypeUnknown
	}
}

// retryAfterSeconds reads a numeric Retry-After header.
func retryAfterSeconds(h http.Header) int {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}

// newStatusError builds a ProviderError for a non-2xx response whose body
// could not be decoded into the vendor's error envelope.
func newStatusError(provider string, resp *http.Response, body []byte) *llmerrors.ProviderError {
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: resp.StatusCode,
		Message:    msg,
		Type:       classifyErrorType(resp.StatusCode, ""),
		RetryAfter: retryAfterSeconds(resp.Header),
	}
}

// wrapTransportError turns an http.Client failure into a ProviderError so
// the retry policy sees a typed, classified error. Caller cancellation is
// passed through untouched.
func wrapTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	typ := llmerrors.ErrorTypeNetwork
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		typ = llmerrors.ErrorTypeTimeout
	}

	return &llmerrors.ProviderError{
		Provider: provider,
		Message:  fmt.Sprintf("request failed: %v", err),
		Type:     typ,
		Cause:    err,
	}
}
