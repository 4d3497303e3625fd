package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	"github.com/scribeq/scribeq/usage"
	"github.com/scribeq/scribeq/workflow"
)

// ── Job model ─────────────────────────────────────────────────────

type jobModel struct {
	bun.BaseModel `bun:"table:scribeq_jobs"`

	ID             string     `bun:"id,pk"`
	TenantID       string     `bun:"tenant_id,notnull"`
	UserID         string     `bun:"user_id,notnull"`
	WorkflowID     string     `bun:"workflow_id"`
	Type           string     `bun:"type"`
	Status         string     `bun:"status,notnull,default:'queued'"`
	Priority       int        `bun:"priority,notnull,default:1"`
	FilePath       string     `bun:"file_path"`
	ResultPath     string     `bun:"result_path"`
	Error          string     `bun:"error"`
	ProcessingTime int        `bun:"processing_time,notnull,default:0"`
	CompletedAt    *time.Time `bun:"completed_at"`
	CreatedAt      time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:             j.ID.String(),
		TenantID:       j.TenantID.String(),
		UserID:         j.UserID.String(),
		Type:           j.Type,
		Status:         string(j.Status),
		Priority:       j.Priority,
		FilePath:       j.FilePath,
		ResultPath:     j.ResultPath,
		Error:          j.Error,
		ProcessingTime: j.ProcessingTime,
		CompletedAt:    j.CompletedAt,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
	if !j.WorkflowID.IsNil() {
		m.WorkflowID = j.WorkflowID.String()
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", m.ID, err)
	}
	tenantID, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", m.TenantID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.UserID, err)
	}

	j := &job.Job{
		ID:             jobID,
		TenantID:       tenantID,
		UserID:         userID,
		Type:           m.Type,
		Status:         job.Status(m.Status),
		Priority:       m.Priority,
		FilePath:       m.FilePath,
		ResultPath:     m.ResultPath,
		Error:          m.Error,
		ProcessingTime: m.ProcessingTime,
		CompletedAt:    m.CompletedAt,
	}
	j.CreatedAt = m.CreatedAt
	j.UpdatedAt = m.UpdatedAt

	if m.WorkflowID != "" {
		workflowID, wfErr := id.ParseWorkflowID(m.WorkflowID)
		if wfErr != nil {
			return nil, fmt.Errorf("parse workflow id %q: %w", m.WorkflowID, wfErr)
		}
		j.WorkflowID = workflowID
	}
	return j, nil
}

// ── Workflow model ────────────────────────────────────────────────

type workflowModel struct {
	bun.BaseModel `bun:"table:scribeq_workflows"`

	ID        string    `bun:"id,pk"`
	TenantID  string    `bun:"tenant_id,notnull"`
	Name      string    `bun:"name,notnull"`
	JobType   string    `bun:"job_type"`
	RawConfig string    `bun:"raw_config,type:jsonb"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toWorkflowModel(w *workflow.Workflow) *workflowModel {
	return &workflowModel{
		ID:        w.ID.String(),
		TenantID:  w.TenantID.String(),
		Name:      w.Name,
		JobType:   w.JobType,
		RawConfig: w.RawConfig,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

func fromWorkflowModel(m *workflowModel) (*workflow.Workflow, error) {
	workflowID, err := id.ParseWorkflowID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse workflow id %q: %w", m.ID, err)
	}
	tenantID, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", m.TenantID, err)
	}

	w := &workflow.Workflow{
		ID:        workflowID,
		TenantID:  tenantID,
		Name:      m.Name,
		JobType:   m.JobType,
		RawConfig: m.RawConfig,
	}
	w.CreatedAt = m.CreatedAt
	w.UpdatedAt = m.UpdatedAt
	return w, nil
}

// ── Usage model ───────────────────────────────────────────────────

type usageModel struct {
	bun.BaseModel `bun:"table:scribeq_usage_records"`

	ID           string    `bun:"id,pk"`
	TenantID     string    `bun:"tenant_id,notnull"`
	UserID       string    `bun:"user_id,notnull"`
	JobID        string    `bun:"job_id,notnull"`
	ResourceType string    `bun:"resource_type,notnull"`
	Amount       float64   `bun:"amount,notnull"`
	Unit         string    `bun:"unit,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

func toUsageModel(rec *usage.Record) *usageModel {
	return &usageModel{
		ID:           rec.ID.String(),
		TenantID:     rec.TenantID.String(),
		UserID:       rec.UserID.String(),
		JobID:        rec.JobID.String(),
		ResourceType: rec.ResourceType,
		Amount:       rec.Amount,
		Unit:         rec.Unit,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func fromUsageModel(m *usageModel) (*usage.Record, error) {
	usageID, err := id.ParseUsageID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse usage id %q: %w", m.ID, err)
	}
	tenantID, err := id.ParseTenantID(m.TenantID)
	if err != nil {
		return nil, fmt.Errorf("parse tenant id %q: %w", m.TenantID, err)
	}
	userID, err := id.ParseUserID(m.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", m.UserID, err)
	}
	jobID, err := id.ParseJobID(m.JobID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", m.JobID, err)
	}

	rec := &usage.Record{
		ID:           usageID,
		TenantID:     tenantID,
		UserID:       userID,
		JobID:        jobID,
		ResourceType: m.ResourceType,
		Amount:       m.Amount,
		Unit:         m.Unit,
	}
	rec.CreatedAt = m.CreatedAt
	rec.UpdatedAt = m.UpdatedAt
	return rec, nil
}
