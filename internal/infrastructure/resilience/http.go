package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/raggae/internal/core/domain"
)

// HTTPStatusError is a non-2xx answer from an upstream HTTP API.
type HTTPStatusError struct {
	Provider   string
	Operation  string
	StatusCode int
	Status     string
	Body       string
	// RetryAfter is the parsed Retry-After header, zero when absent.
	RetryAfter time.Duration
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	msg := fmt.Sprintf("%s %s: upstream returned %s", e.Provider, e.Operation, e.Status)
	if body := strings.TrimSpace(e.Body); body != "" {
		msg += ": " + body
	}
	return msg
}

func (e *HTTPStatusError) RetryDelay() time.Duration {
	if e == nil {
		return 0
	}
	return e.RetryAfter
}

// ParseRetryAfter reads the delay-seconds form of a Retry-After header.
func ParseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// ClassifyUpstreamError retries transport failures and throttling or 5xx answers.
func ClassifyUpstreamError(err error) ErrorClassification {
	var (
		statusErr *HTTPStatusError
		netErr    net.Error
	)
	switch {
	case err == nil:
		return Ignored
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Ignored
	case IsCircuitOpen(err):
		return Transient
	case errors.As(err, &statusErr):
		if IsRetryableHTTPStatus(statusErr.StatusCode) {
			return Transient
		}
		// 4xx means the request itself is wrong; the upstream is healthy.
		return Ignored
	case errors.As(err, &netErr):
		return Transient
	default:
		return Permanent
	}
}

// WrapTemporaryIfNeeded tags err as domain.ErrTemporary when classify marks it retryable.
func WrapTemporaryIfNeeded(operation string, err error) error {
	return wrapTemporary(operation, err, ClassifyUpstreamError)
}

// WrapTemporaryWith is WrapTemporaryIfNeeded with a caller-supplied classifier.
func WrapTemporaryWith(operation string, err error, classify ErrorClassifier) error {
	return wrapTemporary(operation, err, classify)
}

func wrapTemporary(operation string, err error, classify ErrorClassifier) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if classify(err).Retryable {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func IsRetryableHTTPStatus(statusCode int) bool {
	if statusCode == http.StatusRequestTimeout || statusCode == http.StatusTooManyRequests {
		return true
	}
	switch statusCode {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
