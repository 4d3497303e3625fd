//go:build integration

package bunstore_test

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	bunstore "github.com/scribeq/scribeq/store/bun"
	"github.com/scribeq/scribeq/usage"
	"github.com/scribeq/scribeq/workflow"
)

// setupTestStore connects to the Postgres named by SCRIBEQ_TEST_DSN and
// migrates the schema. Tests are skipped when the variable is unset.
func setupTestStore(t *testing.T) *bunstore.Store {
	t.Helper()

	dsn := os.Getenv("SCRIBEQ_TEST_DSN")
	if dsn == "" {
		t.Skip("SCRIBEQ_TEST_DSN not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	store := bunstore.New(db, bunstore.WithLogger(slog.New(slog.DiscardHandler)))
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

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

func TestJobRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	j := newJob(tenantID)
	if err := store.CreateJob(ctx, j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if err := store.CreateJob(ctx, j); !errors.Is(err, scribeq.ErrJobAlreadyExists) {
		t.Fatalf("duplicate CreateJob = %v, want ErrJobAlreadyExists", err)
	}

	got, err := store.GetJob(ctx, j.ID, tenantID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != job.StatusQueued || got.FilePath != j.FilePath {
		t.Errorf("got %+v", got)
	}

	if _, err := store.GetJob(ctx, j.ID, id.NewTenantID()); !errors.Is(err, scribeq.ErrJobNotFound) {
		t.Errorf("cross-tenant GetJob = %v, want ErrJobNotFound", err)
	}

	got.Status = job.StatusProcessing
	got.Type = "transcription"
	if err := store.UpdateJob(ctx, got); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	again, _ := store.GetJob(ctx, j.ID, tenantID)
	if again.Status != job.StatusProcessing || again.Type != "transcription" {
		t.Errorf("after update: %+v", again)
	}

	missing := newJob(tenantID)
	if err := store.UpdateJob(ctx, missing); !errors.Is(err, scribeq.ErrJobNotFound) {
		t.Errorf("UpdateJob missing = %v, want ErrJobNotFound", err)
	}
}

func TestListAndCountJobs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	for range 3 {
		if err := store.CreateJob(ctx, newJob(tenantID)); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := store.ListJobsByTenant(ctx, tenantID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 3 {
		t.Fatalf("list len = %d, want 3", len(jobs))
	}

	n, err := store.CountJobs(ctx, tenantID, job.StatusQueued)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}

	limited, _ := store.ListJobsByTenant(ctx, tenantID, 2, 1)
	if len(limited) != 2 {
		t.Errorf("limited list len = %d, want 2", len(limited))
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	w := &workflow.Workflow{
		ID:        id.NewWorkflowID(),
		TenantID:  tenantID,
		Name:      "default pipeline",
		RawConfig: `{"nodes":[{"id":"n1","type":"TranscriptionNode","data":{"modelSize":"large"}}]}`,
	}
	w.Touch()
	if err := store.CreateWorkflow(ctx, w); err != nil {
		t.Fatalf("CreateWorkflow: %v", err)
	}

	got, err := store.GetWorkflow(ctx, w.ID, tenantID)
	if err != nil {
		t.Fatalf("GetWorkflow: %v", err)
	}
	cfg, err := got.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	if len(cfg.Nodes) != 1 || cfg.Nodes[0].Data["modelSize"] != "large" {
		t.Errorf("config = %+v", cfg)
	}

	if _, err := store.GetWorkflow(ctx, w.ID, id.NewTenantID()); !errors.Is(err, scribeq.ErrWorkflowNotFound) {
		t.Errorf("cross-tenant GetWorkflow = %v, want ErrWorkflowNotFound", err)
	}
}

func TestUsageSum(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tenantID := id.NewTenantID()

	for _, amount := range []float64{12, 30} {
		rec := &usage.Record{
			ID:           id.NewUsageID(),
			TenantID:     tenantID,
			UserID:       id.NewUserID(),
			JobID:        id.NewJobID(),
			ResourceType: usage.ResourceProcessing,
			Amount:       amount,
			Unit:         usage.UnitSeconds,
		}
		rec.Touch()
		if err := store.CreateUsageRecord(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := store.SumUsage(ctx, tenantID, usage.ResourceProcessing)
	if err != nil {
		t.Fatal(err)
	}
	if sum != 42 {
		t.Errorf("sum = %v, want 42", sum)
	}

	if sum, _ := store.SumUsage(ctx, tenantID, usage.ResourceStorage); sum != 0 {
		t.Errorf("storage sum = %v, want 0", sum)
	}
}
