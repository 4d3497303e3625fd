package bunstore

import (
	"context"
	"fmt"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/workflow"
)

// CreateWorkflow persists a new workflow.
func (s *Store) CreateWorkflow(ctx context.Context, w *workflow.Workflow) error {
	m := toWorkflowModel(w)
	if _, err := s.db.NewInsert().Model(m).Exec(ctx); err != nil {
		return fmt.Errorf("scribeq/bun: create workflow: %w", err)
	}
	return nil
}

// GetWorkflow retrieves a workflow by ID within a tenant.
func (s *Store) GetWorkflow(ctx context.Context, workflowID id.WorkflowID, tenantID id.TenantID) (*workflow.Workflow, error) {
	m := new(workflowModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", workflowID.String()).
		Where("tenant_id = ?", tenantID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, scribeq.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("scribeq/bun: get workflow: %w", err)
	}
	return fromWorkflowModel(m)
}

// ListWorkflowsByTenant returns the tenant's workflows, newest first.
func (s *Store) ListWorkflowsByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*workflow.Workflow, error) {
	var models []workflowModel
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
		return nil, fmt.Errorf("scribeq/bun: list workflows: %w", err)
	}

	workflows := make([]*workflow.Workflow, 0, len(models))
	for i := range models {
		w, convErr := fromWorkflowModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("scribeq/bun: list convert: %w", convErr)
		}
		workflows = append(workflows, w)
	}
	return workflows, nil
}
