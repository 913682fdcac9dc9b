package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrNoRunner is returned when the trigger has nothing to invoke
	ErrNoRunner = errors.New("scheduler: run function is required")
)
