// Package scheduler runs one worker goroutine per tenant, draining that
// tenant's priority queue and executing jobs through registered
// handlers. Tenants never share a worker, so a slow tenant cannot delay
// another tenant's jobs.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/backoff"
	"github.com/scribeq/scribeq/hook"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
	"github.com/scribeq/scribeq/middleware"
	"github.com/scribeq/scribeq/queue"
	"github.com/scribeq/scribeq/usage"
	"github.com/scribeq/scribeq/workflow"
)

// Scheduler owns the per-tenant queues and their workers. Workers are
// spawned lazily on a tenant's first enqueue and torn down on Stop.
type Scheduler struct {
	jobs      job.Store
	workflows workflow.Store
	registry  *job.Registry
	queues    *queue.Manager
	hooks     *hook.Registry
	usage     *usage.Recorder
	backoff   backoff.Strategy
	mw        middleware.Middleware
	logger    *slog.Logger

	pollTimeout time.Duration
	stopTimeout time.Duration

	mu      sync.Mutex
	running bool
	workers map[id.TenantID]*worker
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// WithHandlerRegistry sets the handler registry. By default the
// scheduler creates its own.
func WithHandlerRegistry(r *job.Registry) Option {
	return func(s *Scheduler) { s.registry = r }
}

// WithQueueManager sets the queue manager controlling per-tenant
// admission limits.
func WithQueueManager(m *queue.Manager) Option {
	return func(s *Scheduler) { s.queues = m }
}

// WithNotifier registers a lifecycle hook, typically the realtime
// connection registry that pushes job updates to subscribed clients.
func WithNotifier(h hook.Hook) Option {
	return func(s *Scheduler) { s.hooks.Register(h) }
}

// WithUsageRecorder sets the recorder that writes usage records for
// completed jobs. Without one, no usage is recorded.
func WithUsageRecorder(r *usage.Recorder) Option {
	return func(s *Scheduler) { s.usage = r }
}

// WithBackoff sets the pause strategy workers use after consecutive
// store errors.
func WithBackoff(b backoff.Strategy) Option {
	return func(s *Scheduler) { s.backoff = b }
}

// WithMiddleware sets the middleware chain handlers execute through.
// The default chain is Recover then Logging.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Scheduler) { s.mw = middleware.Chain(mws...) }
}

// WithPollTimeout sets how long a worker waits on its empty queue
// before re-checking the shutdown flag.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.pollTimeout = d }
}

// WithStopTimeout bounds how long Stop waits for workers to finish
// their in-flight job.
func WithStopTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.stopTimeout = d }
}

// New creates a Scheduler over the given job and workflow stores.
func New(jobs job.Store, workflows workflow.Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:        jobs,
		workflows:   workflows,
		logger:      slog.Default(),
		pollTimeout: time.Second,
		stopTimeout: 5 * time.Second,
		workers:     make(map[id.TenantID]*worker),
	}
	s.hooks = hook.NewRegistry(s.logger)
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = job.NewRegistry(s.logger)
	}
	if s.queues == nil {
		s.queues = queue.NewManager(queue.Config{})
	}
	if s.backoff == nil {
		s.backoff = backoff.DefaultStrategy()
	}
	if s.mw == nil {
		s.mw = middleware.Chain(
			middleware.Recover(s.logger),
			middleware.Logging(s.logger),
		)
	}
	return s
}

// RegisterHandler associates a handler with a job type. Later
// registration of the same type wins.
func (s *Scheduler) RegisterHandler(jobType string, h job.HandlerFunc) {
	s.registry.Register(jobType, h)
}

// RegisterHook adds a lifecycle hook after construction.
func (s *Scheduler) RegisterHook(h hook.Hook) {
	s.hooks.Register(h)
}

// Start begins processing. Tenants that already have queued work get
// their worker immediately; others get one on first enqueue. Start is
// idempotent.
func (s *Scheduler) Start(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})

	s.logger.Info("scheduler starting", slog.Duration("poll_timeout", s.pollTimeout))

	for _, tenantID := range s.queues.Tenants() {
		s.spawnWorkerLocked(tenantID)
	}
	return nil
}

// Stop signals all tenant workers and waits up to the stop timeout for
// them to finish their in-flight job. Stop is idempotent; further
// enqueues are rejected until Start is called again.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.workers = make(map[id.TenantID]*worker)
	s.mu.Unlock()

	s.logger.Info("scheduler stopping")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()

	select {
	case <-done:
		s.logger.Info("scheduler stopped gracefully")
	case <-timer.C:
		s.logger.Warn("scheduler shutdown timed out with workers still busy")
	case <-ctx.Done():
		s.logger.Warn("scheduler shutdown cancelled", slog.String("error", ctx.Err().Error()))
	}

	s.hooks.EmitShutdown(ctx)
	return nil
}

// Enqueue accepts a job for processing. A job without an ID gets one; a
// zero priority becomes the default. Re-enqueueing an existing job is
// safe: live jobs are left alone and failed or canceled jobs are moved
// back to queued for another attempt.
func (s *Scheduler) Enqueue(ctx context.Context, j *job.Job) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		return scribeq.ErrNotRunning
	}

	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}
	if j.Priority == 0 {
		j.Priority = job.DefaultPriority
	}
	if j.Priority < job.MinPriority || j.Priority > job.MaxPriority {
		return scribeq.ErrInvalidPriority
	}

	// Persist before queueing so a worker can never pop an entry whose
	// row is still in flight.
	j.Status = job.StatusQueued
	j.Touch()
	err := s.jobs.CreateJob(ctx, j)
	switch {
	case err == nil:
	case errors.Is(err, scribeq.ErrJobAlreadyExists):
		if err := s.requeueExisting(ctx, j); err != nil {
			return err
		}
	default:
		return err
	}

	// An admission rejection leaves the row queued but unscheduled; a
	// later Enqueue of the same job re-admits it.
	if err := s.queues.Admit(j.TenantID, j.ID, j.Priority); err != nil {
		return err
	}

	s.mu.Lock()
	if s.running {
		s.spawnWorkerLocked(j.TenantID)
	}
	s.mu.Unlock()

	s.hooks.EmitJobQueued(ctx, j)
	s.logger.Info("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("tenant_id", j.TenantID.String()),
		slog.Int("priority", j.Priority),
	)
	return nil
}

// requeueExisting handles an Enqueue whose job row already exists.
// Failed and canceled jobs go back to queued; anything else is left
// untouched and the worker's status guard drops the duplicate entry.
func (s *Scheduler) requeueExisting(ctx context.Context, j *job.Job) error {
	existing, err := s.jobs.GetJob(ctx, j.ID, j.TenantID)
	if err != nil {
		return err
	}
	if !job.CanTransition(existing.Status, job.StatusQueued) {
		*j = *existing
		return nil
	}
	existing.Status = job.StatusQueued
	existing.Error = ""
	existing.Priority = j.Priority
	existing.Touch()
	if err := s.jobs.UpdateJob(ctx, existing); err != nil {
		return err
	}
	*j = *existing
	return nil
}

// Cancel marks a queued job canceled and drops it from its tenant's
// queue. Jobs already processing or terminal return ErrInvalidTransition.
func (s *Scheduler) Cancel(ctx context.Context, jobID id.JobID, tenantID id.TenantID) error {
	j, err := s.jobs.GetJob(ctx, jobID, tenantID)
	if err != nil {
		return err
	}
	if !job.CanTransition(j.Status, job.StatusCanceled) {
		return scribeq.ErrInvalidTransition
	}
	j.Status = job.StatusCanceled
	j.Touch()
	if err := s.jobs.UpdateJob(ctx, j); err != nil {
		return err
	}
	if q, ok := s.queues.Lookup(tenantID); ok {
		q.Remove(jobID) //nolint:errcheck // already popped by the worker is fine; the status guard skips it
	}
	s.logger.Info("job canceled",
		slog.String("job_id", jobID.String()),
		slog.String("tenant_id", tenantID.String()),
	)
	return nil
}

// QueueLength returns the number of jobs waiting in a tenant's queue.
func (s *Scheduler) QueueLength(tenantID id.TenantID) int {
	q, ok := s.queues.Lookup(tenantID)
	if !ok {
		return 0
	}
	return q.Len()
}

// ActiveTenants returns the tenants that currently have a worker.
func (s *Scheduler) ActiveTenants() []id.TenantID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]id.TenantID, 0, len(s.workers))
	for t := range s.workers {
		out = append(out, t)
	}
	return out
}

// Running reports whether the scheduler is accepting jobs.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// spawnWorkerLocked starts the tenant's worker if it has none. Callers
// must hold s.mu.
func (s *Scheduler) spawnWorkerLocked(tenantID id.TenantID) {
	if _, ok := s.workers[tenantID]; ok {
		return
	}
	w := newWorker(s, tenantID, s.queues.Get(tenantID))
	s.workers[tenantID] = w
	s.wg.Add(1)
	go w.run(s.stopCh)

	s.logger.Debug("tenant worker started", slog.String("tenant_id", tenantID.String()))
}
