package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	"github.com/scribeq/scribeq/queue"
	"github.com/scribeq/scribeq/workflow"
)

// worker drains one tenant's queue. Exactly one exists per tenant, so
// at most one of the tenant's jobs is ever processing.
type worker struct {
	s        *Scheduler
	tenantID id.TenantID
	queue    *queue.TenantQueue
	logger   *slog.Logger
}

func newWorker(s *Scheduler, tenantID id.TenantID, q *queue.TenantQueue) *worker {
	return &worker{
		s:        s,
		tenantID: tenantID,
		queue:    q,
		logger:   s.logger.With(slog.String("tenant_id", tenantID.String())),
	}
}

// run polls the tenant queue until stopCh closes. Queue waits are
// bounded by the poll timeout so shutdown is noticed promptly. Store
// errors pause the loop per the backoff strategy instead of spinning.
func (w *worker) run(stopCh <-chan struct{}) {
	defer w.s.wg.Done()

	failures := 0
	for {
		select {
		case <-stopCh:
			w.logger.Debug("tenant worker stopping")
			return
		default:
		}

		entry, ok := w.queue.Pop(w.s.pollTimeout)
		if !ok {
			continue
		}

		if err := w.process(context.Background(), entry); err != nil {
			failures++
			w.logger.Error("worker loop error",
				slog.String("job_id", entry.JobID.String()),
				slog.Int("consecutive_failures", failures),
				slog.String("error", err.Error()),
			)
			w.pause(stopCh, failures)
			continue
		}
		failures = 0
	}
}

// process executes one dequeued entry end to end. The returned error
// covers store failures only; handler failures are recorded on the job
// and are not loop errors.
func (w *worker) process(ctx context.Context, entry *queue.Entry) error {
	j, err := w.s.jobs.GetJob(ctx, entry.JobID, w.tenantID)
	if errors.Is(err, scribeq.ErrJobNotFound) {
		// A queue entry without a row is dropped, not retried. This
		// also covers an enqueue whose insert lost the race with us.
		w.logger.Warn("queued job missing from store, dropping",
			slog.String("job_id", entry.JobID.String()),
		)
		return nil
	}
	if err != nil {
		// Transient store error: put the entry back so the job is not
		// lost, and let the loop back off before the next attempt.
		w.queue.Push(entry.JobID, entry.Priority)
		return err
	}

	// Duplicate queue entries and canceled jobs are skipped here:
	// only a job still in queued status may start processing.
	if j.Status != job.StatusQueued {
		w.logger.Debug("skipping job not in queued status",
			slog.String("job_id", j.ID.String()),
			slog.String("status", string(j.Status)),
		)
		return nil
	}

	cfg, wfType := w.loadWorkflowConfig(ctx, j)
	// Explicit job type wins, then the workflow's authored type, then
	// node-keyword inference.
	if j.Type == "" {
		j.Type = wfType
	}
	j.Type = job.InferType(j, cfg)

	j.Status = job.StatusProcessing
	j.Touch()
	if err := w.s.jobs.UpdateJob(ctx, j); err != nil {
		return err
	}
	w.s.hooks.EmitJobStarted(ctx, j)

	payload := job.Payload{
		JobID:          j.ID,
		TenantID:       j.TenantID,
		UserID:         j.UserID,
		FilePath:       j.FilePath,
		WorkflowConfig: cfg,
	}

	var result *job.Result
	terminal := func(ctx context.Context) error {
		var execErr error
		result, execErr = w.s.registry.Dispatch(ctx, j.Type, payload)
		return execErr
	}

	start := time.Now()
	execErr := w.s.mw(ctx, j, terminal)
	elapsed := time.Since(start)

	if execErr != nil {
		return w.fail(ctx, j, execErr)
	}
	return w.complete(ctx, j, result, elapsed)
}

// loadWorkflowConfig fetches and parses the job's workflow config and
// returns it along with the workflow's authored job type. Any problem
// degrades to a nil config so the job still runs with defaults.
func (w *worker) loadWorkflowConfig(ctx context.Context, j *job.Job) (*workflow.Config, string) {
	if j.WorkflowID.IsNil() {
		return nil, ""
	}
	wf, err := w.s.workflows.GetWorkflow(ctx, j.WorkflowID, j.TenantID)
	if err != nil {
		w.logger.Warn("workflow not loadable, using defaults",
			slog.String("job_id", j.ID.String()),
			slog.String("workflow_id", j.WorkflowID.String()),
			slog.String("error", err.Error()),
		)
		return nil, ""
	}
	cfg, err := wf.Config()
	if err != nil {
		w.logger.Warn("workflow config not parseable, using defaults",
			slog.String("workflow_id", j.WorkflowID.String()),
			slog.String("error", err.Error()),
		)
		return nil, wf.JobType
	}
	return cfg, wf.JobType
}

func (w *worker) complete(ctx context.Context, j *job.Job, result *job.Result, elapsed time.Duration) error {
	now := time.Now().UTC()
	j.Status = job.StatusCompleted
	j.ProcessingTime = int(elapsed.Seconds())
	j.CompletedAt = &now
	j.Error = ""
	if result != nil {
		j.ResultPath = result.Path
	}
	j.Touch()
	if err := w.s.jobs.UpdateJob(ctx, j); err != nil {
		return err
	}

	if w.s.usage != nil {
		w.s.usage.RecordCompletion(ctx, j.TenantID, j.UserID, j.ID, j.ProcessingTime, j.ResultPath)
	}
	w.s.hooks.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

func (w *worker) fail(ctx context.Context, j *job.Job, execErr error) error {
	j.Status = job.StatusFailed
	j.Error = execErr.Error()
	j.Touch()
	if err := w.s.jobs.UpdateJob(ctx, j); err != nil {
		return err
	}

	w.s.hooks.EmitJobFailed(ctx, j, execErr)
	return nil
}

// pause sleeps per the backoff strategy, waking early on shutdown.
func (w *worker) pause(stopCh <-chan struct{}, failures int) {
	timer := time.NewTimer(w.s.backoff.Delay(failures))
	defer timer.Stop()
	select {
	case <-stopCh:
	case <-timer.C:
	}
}
