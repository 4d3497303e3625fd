// Package workflow defines the workflow configuration entities jobs are
// processed against. A workflow is authored per tenant as a graph of typed
// nodes; the scheduling core only reads the node list to determine job
// types and handler parameters.
package workflow

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// Workflow is a tenant-owned processing pipeline definition.
// RawConfig holds the authored configuration as a JSON document.
type Workflow struct {
	scribeq.Entity

	ID        id.WorkflowID `json:"id"`
	TenantID  id.TenantID   `json:"tenant_id"`
	Name      string        `json:"name"`
	JobType   string        `json:"job_type,omitempty"`
	RawConfig string        `json:"config"`
}

// Config is the parsed form of a workflow's RawConfig.
type Config struct {
	Nodes []Node `json:"nodes"`
}

// Node is a single step in a workflow graph. Type carries the node kind
// (e.g. "transcriptionNode"); Data carries node-specific parameters.
type Node struct {
	ID   string         `json:"id,omitempty"`
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// ParseConfig parses a raw workflow configuration document.
// An empty document yields an empty Config rather than an error.
func ParseConfig(raw string) (*Config, error) {
	if raw == "" {
		return &Config{}, nil
	}

	var cfg Config
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("workflow: parse config: %w", err)
	}
	return &cfg, nil
}

// Config parses the workflow's RawConfig.
func (w *Workflow) Config() (*Config, error) {
	return ParseConfig(w.RawConfig)
}

// Store defines the persistence contract for workflows.
type Store interface {
	// CreateWorkflow persists a new workflow definition.
	CreateWorkflow(ctx context.Context, w *Workflow) error

	// GetWorkflow retrieves a workflow by ID, scoped to the given tenant.
	// Returns scribeq.ErrWorkflowNotFound if no such workflow exists for
	// the tenant.
	GetWorkflow(ctx context.Context, workflowID id.WorkflowID, tenantID id.TenantID) (*Workflow, error)

	// ListWorkflowsByTenant returns the tenant's workflows, newest
	// first. A zero limit means no limit.
	ListWorkflowsByTenant(ctx context.Context, tenantID id.TenantID, limit, offset int) ([]*Workflow, error)
}
