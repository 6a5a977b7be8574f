package interview

import (
	"errors"
	"fmt"
)

// Callers match these with errors.Is. Downstream failures of best-effort
// collaborators never reach callers as errors; they become warnings.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("not found")
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
	ErrConflict              = errors.New("transition not allowed")
	ErrPersistence           = errors.New("session store failure")
)

func validationErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFoundErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func persistenceError(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func downstreamError(service string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrDownstreamUnavailable, service, err)
}
