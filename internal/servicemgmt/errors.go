package servicemgmt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/retry"
)

// ErrNotFound is returned by any lookup whose target does not exist.
var ErrNotFound = errors.New("resource not found")

// APIError represents a non-2xx response from the service-management endpoint.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
	RequestID  string `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("service management API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("service management API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err means the requested resource does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Classify sorts service-management errors into transient and fatal.
// Throttling, server-side failures and network timeouts are transient;
// not-found and every other client error are fatal.
func Classify(err error) retry.Class {
	if err == nil || IsNotFound(err) {
		return retry.Fatal
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return retry.Fatal
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return retry.Transient
		}
		return retry.Fatal
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return retry.Transient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return retry.Transient
	}
	return retry.Fatal
}
