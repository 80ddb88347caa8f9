package renovasjon

import (
	"errors"
	"fmt"
)

// ErrAddressNotFound is returned when the API reports an unknown address ID
var ErrAddressNotFound = errors.New("address not found")

// ConnectionError indicates the API could not be reached at all
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("failed to connect to renovasjon API: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// APIError indicates the API answered with an unexpected status
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("renovasjon API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("renovasjon API error: status %d: %s", e.StatusCode, e.Message)
}
