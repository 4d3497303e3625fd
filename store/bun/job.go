package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
)

// CreateJob persists a new job.
func (s *Store) CreateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return scribeq.ErrJobAlreadyExists
		}
		return fmt.Errorf("scribeq/bun: create job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID within a tenant.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID, tenantID id.TenantID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, scribeq.ErrJobNotFound
		}
		return nil, fmt.Errorf("scribeq/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// UpdateJob persists changes to an existing job.
func (s *Store) UpdateJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("scribeq/bun: update job: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	if rows == 0 {
		return scribeq.ErrJobNotFound
	}
	return nil
}

// ListJobsByTenant returns the tenant's jobs, newest first.
func (s *Store) ListJobsByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID.String()).
		OrderExpr("created_at DESC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("scribeq/bun: list jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("scribeq/bun: list convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// CountJobs counts the tenant's jobs, optionally filtered by status.
func (s *Store) CountJobs(ctx context.Context, tenantID id.TenantID, status job.Status) (int, error) {
	q := s.db.NewSelect().Model((*jobModel)(nil)).
		Where("tenant_id = ?", tenantID.String())
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("scribeq/bun: count jobs: %w", err)
	}
	return n, nil
}
