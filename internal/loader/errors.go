package loader

import (
	"errors"
	"fmt"
)

// LoadError marks a failed initialization as retryable: a later Get
// call may start a fresh attempt. Network fetches and malformed
// response payloads both land here.
type LoadError struct {
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Retryable reports whether err represents a load failure that may
// succeed on a subsequent attempt.
func Retryable(err error) bool {
	var loadErr *LoadError
	return errors.As(err, &loadErr)
}
