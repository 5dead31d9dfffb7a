package domain

import "errors"

// Domain errors can be checked with errors.Is.
var (
	// ErrAlreadyRunning is returned when Run is called on a pipeline that is not idle.
	ErrAlreadyRunning = errors.New("stamper: already running")

	// ErrNotRunning is returned for transitions that require a running pipeline.
	ErrNotRunning = errors.New("stamper: not running")

	// ErrShutdownTimeout is returned when draining does not finish in time.
	ErrShutdownTimeout = errors.New("stamper: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("stamper: invalid configuration")

	// ErrInvalidEvent marks input that could not be decoded into an event.
	// Sources return errors matching it for records that can be skipped.
	ErrInvalidEvent = errors.New("stamper: invalid event")
)
