package chatapi

import (
	"errors"
	"fmt"
)

var (
	// ErrSchema is returned when a response decodes but fails validation
	// against the strict schema. The store never sees a partial record.
	ErrSchema = errors.New("response schema invalid")

	// ErrConfig is returned for invalid client configuration.
	ErrConfig = errors.New("invalid chatapi config")
)

// StatusError reports a non-2xx response from the chat service.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("chat service returned status %d", e.Status)
	}
	return fmt.Sprintf("chat service returned status %d: %s", e.Status, e.Body)
}
