package scribeq

import "errors"

var (
	// Not found errors.
	ErrJobNotFound      = errors.New("scribeq: job not found")
	ErrTenantNotFound   = errors.New("scribeq: tenant not found")
	ErrWorkflowNotFound = errors.New("scribeq: workflow not found")
	ErrHandlerNotFound  = errors.New("scribeq: no handler registered for job type")

	// Conflict errors.
	ErrJobAlreadyExists = errors.New("scribeq: job already exists")

	// State errors.
	ErrInvalidTransition = errors.New("scribeq: invalid status transition")
	ErrInvalidPriority   = errors.New("scribeq: priority out of range")
	ErrNotRunning        = errors.New("scribeq: scheduler is not running")

	// Enqueue admission errors.
	ErrQueueFull   = errors.New("scribeq: tenant queue is full")
	ErrRateLimited = errors.New("scribeq: tenant enqueue rate exceeded")

	// Connection errors.
	ErrUnauthorized     = errors.New("scribeq: unauthorized")
	ErrConnectionClosed = errors.New("scribeq: connection closed")
)
