package instance

import (
	"errors"
	"fmt"
)

// ErrInvalidInstance is the sentinel wrapped by every ValidationError.
var ErrInvalidInstance = errors.New("invalid instance")

// ValidationError reports the first violated invariant of an Instance.
// Index is the position of the offending job or staff member, -1 when the
// violation is not tied to a single element.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid instance: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid instance: %s[%d]: %s", e.Field, e.Index, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInstance
}

func invalid(field string, index int, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Index: index, Reason: fmt.Sprintf(format, args...)}
}
