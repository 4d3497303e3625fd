// Package hook defines lifecycle hooks around job scheduling and
// execution. Hooks are notified of lifecycle events and can react to
// them, which is how real-time notifications and usage recording attach
// to the scheduler without the scheduler knowing about either.
//
// Each lifecycle event is a separate interface so a hook opts in only
// to the events it cares about.
package hook

import (
	"context"
	"time"

	"github.com/scribeq/scribeq/job"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// JobQueued is called after a job is accepted into its tenant's queue.
type JobQueued interface {
	OnJobQueued(ctx context.Context, j *job.Job) error
}

// JobStarted is called when a tenant worker begins executing a job.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job's handler returns an error.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// Shutdown is called during graceful scheduler shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
