package gateway

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the upstream has no document for the requested
// identifier.
var ErrNotFound = errors.New("not found")

// StatusError reports an upstream non-2xx response. It carries only the
// status code: upstream error bodies stay in server-side logs and are never
// surfaced to clients.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}
