package store

import (
	"errors"
	"fmt"

	"contentfactory/internal/services"
)

var (
	// ErrNotFound is returned when a job, event or channel id does not exist.
	ErrNotFound = fmt.Errorf("store: %w", services.ErrNotFound)
	// ErrJobExists is returned by CreateJob when the event already has a job.
	ErrJobExists = errors.New("store: job already exists for event")
	// ErrInvalidEvent is returned when an event fails field validation.
	ErrInvalidEvent = fmt.Errorf("store: invalid event: %w", services.ErrValidation)
)
