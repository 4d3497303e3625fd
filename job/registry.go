package job

import (
	"context"
	"log/slog"
	"sync"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// HandlerFunc processes a single job payload and returns its result.
// Implementations must honor ctx cancellation on long-running work.
type HandlerFunc func(ctx context.Context, p Payload, tenantID id.TenantID) (*Result, error)

// Registry maps job types to handlers. Registration and dispatch are
// safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   *slog.Logger
}

// NewRegistry creates an empty handler registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}
}

// Register associates a handler with a job type. Registering the same
// type again replaces the previous handler; later registration wins.
func (r *Registry) Register(jobType string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[jobType]; ok {
		r.logger.Warn("replacing registered handler", "job_type", jobType)
	}
	r.handlers[jobType] = h
	r.logger.Debug("handler registered", "job_type", jobType)
}

// Handler returns the handler for a job type, or scribeq.ErrHandlerNotFound.
func (r *Registry) Handler(jobType string) (HandlerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[jobType]
	if !ok {
		return nil, scribeq.ErrHandlerNotFound
	}
	return h, nil
}

// Types returns the registered job types in no particular order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch looks up the handler for jobType and invokes it with the
// payload. A missing handler returns scribeq.ErrHandlerNotFound without
// invoking anything.
func (r *Registry) Dispatch(ctx context.Context, jobType string, p Payload) (*Result, error) {
	h, err := r.Handler(jobType)
	if err != nil {
		return nil, err
	}
	return h(ctx, p, p.TenantID)
}
