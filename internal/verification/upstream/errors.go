package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrTimeout is returned when the upstream call exceeds its deadline.
	ErrTimeout = errors.New("upstream timeout")
	// ErrConnection is returned for DNS, TCP or TLS level failures.
	ErrConnection = errors.New("upstream connection error")
)

// Error is a non-2xx upstream response. Body is the decoded JSON object, or
// {"rawText": ...} when the body was not JSON.
type Error struct {
	StatusCode int
	Body       map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("upstream error: %d", e.StatusCode)
}

// classifyTransportError maps an http.Client error onto ErrTimeout or ErrConnection.
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
