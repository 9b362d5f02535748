package uptimerobot

import (
	"errors"
	"fmt"

	"github.com/tjfontaine/uptime-bridge/internal/core/domain"
)

// ErrTransport classifies failures where no HTTP response was received,
// including timeouts.
var ErrTransport = errors.New("uptimerobot transport failure")

// TransportError is a failed round trip to the API.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() []error {
	return []error{ErrTransport, e.Err}
}

// StatusError is a response with a non-success status code.
type StatusError struct {
	Code     int
	Response domain.APIResponse
}

func (e *StatusError) Error() string {
	if msg, ok := e.Response["message"].(string); ok && msg != "" {
		return fmt.Sprintf("API error (status %d): %s", e.Code, msg)
	}
	return fmt.Sprintf("API error (status %d)", e.Code)
}
