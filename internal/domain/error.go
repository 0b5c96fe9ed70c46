package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound         = errors.New("entity not found")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrJobFailed        = errors.New("job is in failed state")
	ErrJobTerminal      = errors.New("job already reached a terminal state")
	ErrMissingAPIKey    = errors.New("sandbox api key is not configured")
	ErrSandboxReleased  = errors.New("sandbox handle already released")
	ErrProvisioning     = errors.New("sandbox provisioning failed")
	ErrEmptyOutput      = errors.New("execution produced no structured output")
	ErrUploadExpired    = errors.New("signed upload target expired or unknown")
	ErrQueueEmpty       = errors.New("no task available")
	ErrInvalidExecution = errors.New("invalid execution context")
)
