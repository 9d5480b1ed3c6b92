package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	KindOK      ErrorKind = "ok"
	KindAPI     ErrorKind = "api"
	KindTimeout ErrorKind = "timeout"
	KindInvalid ErrorKind = "invalid_response"
	KindOther   ErrorKind = "other"
)

var (
	ErrEmptyResponse = errors.New("empty model response")
	ErrInvalidJSON   = errors.New("model response is not valid JSON")
)

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API request failed with status %d: %s", e.StatusCode, e.Body)
}

// Classify buckets err for logging and metrics.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindOK
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return KindAPI
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	if errors.Is(err, ErrEmptyResponse) || errors.Is(err, ErrInvalidJSON) {
		return KindInvalid
	}
	return KindOther
}
