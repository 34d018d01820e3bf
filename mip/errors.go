package mip

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidModel is returned when a model references unknown variables,
	// has empty domains or is otherwise malformed.
	ErrInvalidModel = errors.New("invalid model")

	// ErrNumerical is returned when the LP relaxation fails for reasons other
	// than infeasibility.
	ErrNumerical = errors.New("numerical failure in LP relaxation")
)

func invalidModel(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidModel, fmt.Sprintf(format, args...))
}
