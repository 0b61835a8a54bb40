package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Publish Errors
// =============================================================================

var (
	// ErrInvalidSlug is returned when no valid slug can be derived from a project name.
	ErrInvalidSlug = errors.New("unable to create a slug from the project name")

	// ErrPackaging is returned when the deployable artifact could not be built.
	ErrPackaging = errors.New("packaging failed")

	// ErrNetwork is returned on transport failures talking to the remote service.
	ErrNetwork = errors.New("network error")

	// ErrService is returned when the remote service answers with a non-success status.
	ErrService = errors.New("service error")

	// ErrTimeout is returned when the user did not confirm the action in time.
	ErrTimeout = errors.New("action timed out")

	// ErrCancelled is returned when the user cancelled during confirmation.
	ErrCancelled = errors.New("action cancelled")

	// ErrConfigCorrupt is returned when the persisted deployment record cannot be parsed.
	ErrConfigCorrupt = errors.New("deployment config is corrupt")

	// ErrBusy is returned when a publish is requested while another one is running.
	ErrBusy = errors.New("a publish is already in progress")

	// ErrInvalidTransition is returned on a publish state change the machine does not allow.
	ErrInvalidTransition = errors.New("invalid publish state transition")
)

// ServiceError describes a non-success HTTP response from the remote service.
// It matches ErrService with errors.Is.
type ServiceError struct {
	Op         string // Operation that failed (e.g., "create token")
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
}

// Is lets errors.Is(err, ErrService) match any ServiceError.
func (e *ServiceError) Is(target error) bool {
	return target == ErrService
}

// NewServiceError creates a new ServiceError.
func NewServiceError(op string, statusCode int, body string) *ServiceError {
	return &ServiceError{
		Op:         op,
		StatusCode: statusCode,
		Body:       body,
	}
}

// NetworkError wraps a transport failure so it matches ErrNetwork.
func NetworkError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}
