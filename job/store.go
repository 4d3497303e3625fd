package job

import (
	"context"

	"github.com/scribeq/scribeq/id"
)

// Store persists jobs. Every read is tenant-scoped: a job ID from the
// wrong tenant behaves exactly like a missing one.
type Store interface {
	// CreateJob inserts a new job. It returns scribeq.ErrJobAlreadyExists
	// when a job with the same ID already exists.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob returns the job with the given ID belonging to the given
	// tenant, or scribeq.ErrJobNotFound.
	GetJob(ctx context.Context, jobID id.JobID, tenantID id.TenantID) (*Job, error)

	// UpdateJob persists the job's current fields. It returns
	// scribeq.ErrJobNotFound when the job no longer exists.
	UpdateJob(ctx context.Context, j *Job) error

	// ListJobsByTenant returns the tenant's jobs, newest first. A zero
	// limit means no limit.
	ListJobsByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*Job, error)

	// CountJobs returns the number of jobs for the tenant in the given
	// status, or across all statuses when status is empty.
	CountJobs(ctx context.Context, tenantID id.TenantID, status Status) (int, error)
}
