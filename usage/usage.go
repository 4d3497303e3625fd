// Package usage records per-tenant resource consumption produced by
// completed jobs: processing time in seconds and result storage in
// megabytes.
package usage

import (
	"context"
	"log/slog"
	"os"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// Resource types tracked per tenant.
const (
	ResourceProcessing = "processing"
	ResourceStorage    = "storage"
)

// Units for recorded amounts.
const (
	UnitSeconds = "seconds"
	UnitMB      = "MB"
)

// Record is one usage entry attributed to a tenant, user, and job.
type Record struct {
	scribeq.Entity

	ID           id.UsageID  `json:"id"`
	TenantID     id.TenantID `json:"tenant_id"`
	UserID       id.UserID   `json:"user_id"`
	JobID        id.JobID    `json:"job_id"`
	ResourceType string      `json:"resource_type"`
	Amount       float64     `json:"amount"`
	Unit         string      `json:"unit"`
}

// Store persists usage records.
type Store interface {
	CreateUsageRecord(ctx context.Context, rec *Record) error
	ListUsageByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*Record, error)
	SumUsage(ctx context.Context, tenantID id.TenantID, resourceType string) (float64, error)
}

// Recorder writes usage records for completed jobs. Recording is
// best-effort relative to job completion: a failure here is logged and
// never fails the job.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: store, logger: logger}
}

// RecordCompletion writes the processing-time record for a completed
// job, plus a storage record when resultPath names a readable file. A
// missing or unreadable result file skips the storage record only.
func (r *Recorder) RecordCompletion(ctx context.Context, tenantID id.TenantID, userID id.UserID, jobID id.JobID, processingSeconds int, resultPath string) {
	rec := &Record{
		ID:           id.NewUsageID(),
		TenantID:     tenantID,
		UserID:       userID,
		JobID:        jobID,
		ResourceType: ResourceProcessing,
		Amount:       float64(processingSeconds),
		Unit:         UnitSeconds,
	}
	rec.Touch()
	if err := r.store.CreateUsageRecord(ctx, rec); err != nil {
		r.logger.Error("failed to record processing usage",
			"job_id", jobID, "tenant_id", tenantID, "error", err)
	}

	if resultPath == "" {
		return
	}
	info, err := os.Stat(resultPath)
	if err != nil {
		r.logger.Warn("result file not measurable for storage usage",
			"job_id", jobID, "path", resultPath, "error", err)
		return
	}
	storage := &Record{
		ID:           id.NewUsageID(),
		TenantID:     tenantID,
		UserID:       userID,
		JobID:        jobID,
		ResourceType: ResourceStorage,
		Amount:       float64(info.Size()) / (1024 * 1024),
		Unit:         UnitMB,
	}
	storage.Touch()
	if err := r.store.CreateUsageRecord(ctx, storage); err != nil {
		r.logger.Error("failed to record storage usage",
			"job_id", jobID, "tenant_id", tenantID, "error", err)
	}
}
