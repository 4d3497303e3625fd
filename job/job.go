package job

import (
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/workflow"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusQueued means the job is waiting in its tenant's queue.
	StatusQueued Status = "queued"
	// StatusProcessing means the tenant's worker is executing the job.
	StatusProcessing Status = "processing"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job's handler reported an error.
	StatusFailed Status = "failed"
	// StatusCanceled means the job was canceled before completion.
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is one of the known job statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal status. A worker that dequeues
// a job already in a terminal status (or already processing) skips it.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from one status to another.
// The lifecycle is queued → processing → {completed, failed}; failed and
// canceled jobs may be re-queued for retry.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing || to == StatusCanceled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed
	case StatusFailed, StatusCanceled:
		return to == StatusQueued
	}
	return false
}

// Priority bounds for enqueued jobs. Lower values are processed sooner.
const (
	MinPriority     = 1
	MaxPriority     = 10
	DefaultPriority = 1
)

// Job represents one unit of requested work, owned by exactly one tenant
// for its lifetime.
type Job struct {
	scribeq.Entity

	ID         id.JobID      `json:"id"`
	TenantID   id.TenantID   `json:"tenant_id"`
	UserID     id.UserID     `json:"user_id"`
	WorkflowID id.WorkflowID `json:"workflow_id,omitempty"`

	// Type is the explicit job type. When empty, the type is inferred
	// from the associated workflow configuration at dispatch time.
	Type string `json:"type,omitempty"`

	Status   Status `json:"status"`
	Priority int    `json:"priority"`

	FilePath   string `json:"file_path"`
	ResultPath string `json:"result_path,omitempty"`
	Error      string `json:"error,omitempty"`

	// ProcessingTime is the handler wall-clock time in whole seconds,
	// set only on transition into completed.
	ProcessingTime int        `json:"processing_time,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Payload is the snapshot handed to a handler. It is assembled by the
// worker from the job row and its workflow configuration inside a short
// transaction, so handlers never touch storage for their inputs.
type Payload struct {
	JobID          id.JobID         `json:"job_id"`
	TenantID       id.TenantID      `json:"tenant_id"`
	UserID         id.UserID        `json:"user_id"`
	FilePath       string           `json:"file_path"`
	WorkflowConfig *workflow.Config `json:"workflow_config,omitempty"`
}

// Result is a handler's successful outcome.
type Result struct {
	// Path is the location of the produced artifact, persisted as the
	// job's result_path.
	Path string `json:"path,omitempty"`
}
