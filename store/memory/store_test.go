package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	"github.com/scribeq/scribeq/usage"
	"github.com/scribeq/scribeq/workflow"
)

func newJob(tenantID id.TenantID) *job.Job {
	j := &job.Job{
		ID:       id.NewJobID(),
		TenantID: tenantID,
		UserID:   id.NewUserID(),
		Status:   job.StatusQueued,
		Priority: 1,
		FilePath: "in/audio.wav",
	}
	j.Touch()
	return j
}

func TestJobCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenantID := id.NewTenantID()
	j := newJob(tenantID)

	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := s.CreateJob(ctx, j); !errors.Is(err, scribeq.ErrJobAlreadyExists) {
		t.Fatalf("duplicate CreateJob = %v, want ErrJobAlreadyExists", err)
	}

	got, err := s.GetJob(ctx, j.ID, tenantID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.FilePath != j.FilePath || got.Status != job.StatusQueued {
		t.Errorf("got %+v", got)
	}

	got.Status = job.StatusProcessing
	if err := s.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	again, _ := s.GetJob(ctx, j.ID, tenantID)
	if again.Status != job.StatusProcessing {
		t.Errorf("status after update = %s", again.Status)
	}
}

func TestGetJobTenantScoped(t *testing.T) {
	ctx := context.Background()
	s := New()
	j := newJob(id.NewTenantID())
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	// The right ID under the wrong tenant behaves like a missing job.
	_, err := s.GetJob(ctx, j.ID, id.NewTenantID())
	if !errors.Is(err, scribeq.ErrJobNotFound) {
		t.Fatalf("cross-tenant GetJob = %v, want ErrJobNotFound", err)
	}
}

func TestGetJobReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenantID := id.NewTenantID()
	j := newJob(tenantID)
	if err := s.CreateJob(ctx, j); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetJob(ctx, j.ID, tenantID)
	got.Status = job.StatusFailed

	fresh, _ := s.GetJob(ctx, j.ID, tenantID)
	if fresh.Status != job.StatusQueued {
		t.Error("mutating a returned job leaked into the store")
	}
}

func TestListAndCountJobs(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenantID := id.NewTenantID()
	other := id.NewTenantID()

	for range 3 {
		if err := s.CreateJob(ctx, newJob(tenantID)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateJob(ctx, newJob(other)); err != nil {
		t.Fatal(err)
	}

	jobs, err := s.ListJobsByTenant(ctx, tenantID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("list len = %d, want 3", len(jobs))
	}

	n, err := s.CountJobs(ctx, tenantID, job.StatusQueued)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
	n, _ = s.CountJobs(ctx, tenantID, job.StatusCompleted)
	if n != 0 {
		t.Errorf("completed count = %d, want 0", n)
	}

	limited, _ := s.ListJobsByTenant(ctx, tenantID, 2, 0)
	if len(limited) != 2 {
		t.Errorf("limited list len = %d, want 2", len(limited))
	}
	offset, _ := s.ListJobsByTenant(ctx, tenantID, 0, 5)
	if len(offset) != 0 {
		t.Errorf("offset past end len = %d, want 0", len(offset))
	}
}

func TestWorkflowStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenantID := id.NewTenantID()

	w := &workflow.Workflow{
		ID:        id.NewWorkflowID(),
		TenantID:  tenantID,
		Name:      "default pipeline",
		RawConfig: `{"nodes":[{"id":"n1","type":"TranscriptionNode"}]}`,
	}
	w.Touch()
	if err := s.CreateWorkflow(ctx, w); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetWorkflow(ctx, w.ID, tenantID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	cfg, err := got.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if len(cfg.Nodes) != 1 || cfg.Nodes[0].Type != "TranscriptionNode" {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := s.GetWorkflow(ctx, w.ID, id.NewTenantID()); !errors.Is(err, scribeq.ErrWorkflowNotFound) {
		t.Errorf("cross-tenant GetWorkflow = %v, want ErrWorkflowNotFound", err)
	}

	list, _ := s.ListWorkflowsByTenant(ctx, tenantID, 0, 0)
	if len(list) != 1 {
		t.Errorf("list len = %d", len(list))
	}
}

func TestUsageStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	tenantID := id.NewTenantID()

	for _, amount := range []float64{10, 20} {
		rec := &usage.Record{
			ID:           id.NewUsageID(),
			TenantID:     tenantID,
			UserID:       id.NewUserID(),
			JobID:        id.NewJobID(),
			ResourceType: usage.ResourceProcessing,
			Amount:       amount,
			Unit:         usage.UnitSeconds,
		}
		if err := s.CreateUsageRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := s.SumUsage(ctx, tenantID, usage.ResourceProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 30 {
		t.Errorf("sum = %v, want 30", sum)
	}

	if sum, _ := s.SumUsage(ctx, tenantID, usage.ResourceStorage); sum != 0 {
		t.Errorf("storage sum = %v, want 0", sum)
	}

	recs, _ := s.ListUsageByTenant(ctx, tenantID, 0, 0)
	if len(recs) != 2 {
		t.Errorf("records = %d, want 2", len(recs))
	}
}
