// Package memory provides a fully in-memory store. Safe for concurrent
// access; intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	"github.com/scribeq/scribeq/usage"
	"github.com/scribeq/scribeq/workflow"
)

var (
	_ job.Store      = (*Store)(nil)
	_ workflow.Store = (*Store)(nil)
	_ usage.Store    = (*Store)(nil)
)

// Store keeps all entities in maps guarded by one RWMutex. Reads hand
// out copies so callers never share mutable state with the store.
type Store struct {
	mu sync.RWMutex

	jobs      map[string]*job.Job
	workflows map[string]*workflow.Workflow
	usages    []*usage.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		jobs:      make(map[string]*job.Job),
		workflows: make(map[string]*workflow.Workflow),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Job store
// ──────────────────────────────────────────────────

// CreateJob inserts a new job.
func (m *Store) CreateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; ok {
		return scribeq.ErrJobAlreadyExists
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// GetJob returns the tenant's job or scribeq.ErrJobNotFound.
func (m *Store) GetJob(_ context.Context, jobID id.JobID, tenantID id.TenantID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok || j.TenantID != tenantID {
		return nil, scribeq.ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

// UpdateJob replaces the stored job.
func (m *Store) UpdateJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, ok := m.jobs[key]; !ok {
		return scribeq.ErrJobNotFound
	}
	cp := *j
	m.jobs[key] = &cp
	return nil
}

// ListJobsByTenant returns the tenant's jobs, newest first.
func (m *Store) ListJobsByTenant(_ context.Context, tenantID id.TenantID, limit, offset int) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*job.Job
	for _, j := range m.jobs {
		if j.TenantID == tenantID {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return paginate(out, limit, offset), nil
}

// CountJobs counts the tenant's jobs, optionally filtered by status.
func (m *Store) CountJobs(_ context.Context, tenantID id.TenantID, status job.Status) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, j := range m.jobs {
		if j.TenantID != tenantID {
			continue
		}
		if status != "" && j.Status != status {
			continue
		}
		n++
	}
	return n, nil
}

// ──────────────────────────────────────────────────
// Workflow store
// ──────────────────────────────────────────────────

// CreateWorkflow inserts a new workflow.
func (m *Store) CreateWorkflow(_ context.Context, w *workflow.Workflow) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *w
	m.workflows[w.ID.String()] = &cp
	return nil
}

// GetWorkflow returns the tenant's workflow or scribeq.ErrWorkflowNotFound.
func (m *Store) GetWorkflow(_ context.Context, workflowID id.WorkflowID, tenantID id.TenantID) (*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workflows[workflowID.String()]
	if !ok || w.TenantID != tenantID {
		return nil, scribeq.ErrWorkflowNotFound
	}
	cp := *w
	return &cp, nil
}

// ListWorkflowsByTenant returns the tenant's workflows, newest first.
func (m *Store) ListWorkflowsByTenant(_ context.Context, tenantID id.TenantID, limit, offset int) ([]*workflow.Workflow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*workflow.Workflow
	for _, w := range m.workflows {
		if w.TenantID == tenantID {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID.String() < out[k].ID.String()
	})
	return paginate(out, limit, offset), nil
}

// ──────────────────────────────────────────────────
// Usage store
// ──────────────────────────────────────────────────

// CreateUsageRecord appends a usage record.
func (m *Store) CreateUsageRecord(_ context.Context, rec *usage.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *rec
	m.usages = append(m.usages, &cp)
	return nil
}

// ListUsageByTenant returns the tenant's usage records in insertion order.
func (m *Store) ListUsageByTenant(_ context.Context, tenantID id.TenantID, limit, offset int) ([]*usage.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*usage.Record
	for _, rec := range m.usages {
		if rec.TenantID == tenantID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return paginate(out, limit, offset), nil
}

// SumUsage totals the tenant's recorded amounts for one resource type.
func (m *Store) SumUsage(_ context.Context, tenantID id.TenantID, resourceType string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var sum float64
	for _, rec := range m.usages {
		if rec.TenantID == tenantID && rec.ResourceType == resourceType {
			sum += rec.Amount
		}
	}
	return sum, nil
}

func paginate[T any](items []*T, limit, offset int) []*T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
