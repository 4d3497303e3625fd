// Package queue provides per-tenant priority queues with admission
// control. Each tenant gets its own queue so one tenant's backlog never
// delays another's.
package queue

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// Config bounds a tenant's queue. The zero value disables both limits.
type Config struct {
	// RateLimit caps enqueues per second. Zero means unlimited.
	RateLimit rate.Limit
	// RateBurst is the enqueue burst allowance when RateLimit is set.
	RateBurst int
	// MaxDepth caps queued entries. Zero means unbounded.
	MaxDepth int
}

// Manager owns the per-tenant queues and enforces each tenant's
// admission limits on the way in.
type Manager struct {
	mu       sync.RWMutex
	queues   map[id.TenantID]*TenantQueue
	limiters map[id.TenantID]*rate.Limiter
	configs  map[id.TenantID]Config
	defaults Config
}

// NewManager creates a Manager applying defaults to tenants without an
// explicit config.
func NewManager(defaults Config) *Manager {
	return &Manager{
		queues:   make(map[id.TenantID]*TenantQueue),
		limiters: make(map[id.TenantID]*rate.Limiter),
		configs:  make(map[id.TenantID]Config),
		defaults: defaults,
	}
}

// SetTenantConfig overrides the admission limits for one tenant. It
// resets the tenant's rate limiter.
func (m *Manager) SetTenantConfig(tenantID id.TenantID, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configs[tenantID] = cfg
	delete(m.limiters, tenantID)
}

// Get returns the tenant's queue, creating it on first use.
func (m *Manager) Get(tenantID id.TenantID) *TenantQueue {
	m.mu.RLock()
	q, ok := m.queues[tenantID]
	m.mu.RUnlock()
	if ok {
		return q
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.queues[tenantID]; ok {
		return q
	}
	q = NewTenantQueue(tenantID)
	m.queues[tenantID] = q
	return q
}

// Lookup returns the tenant's queue without creating one.
func (m *Manager) Lookup(tenantID id.TenantID) (*TenantQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[tenantID]
	return q, ok
}

// Admit pushes a job into the tenant's queue after checking the
// tenant's rate limit and depth cap. It returns scribeq.ErrRateLimited
// or scribeq.ErrQueueFull when a limit rejects the job.
func (m *Manager) Admit(tenantID id.TenantID, jobID id.JobID, priority int) error {
	cfg := m.configFor(tenantID)

	if cfg.RateLimit > 0 {
		if !m.limiterFor(tenantID, cfg).Allow() {
			return scribeq.ErrRateLimited
		}
	}

	q := m.Get(tenantID)
	if cfg.MaxDepth > 0 && q.Len() >= cfg.MaxDepth {
		return scribeq.ErrQueueFull
	}
	q.Push(jobID, priority)
	return nil
}

// Tenants returns the tenant IDs with live queues.
func (m *Manager) Tenants() []id.TenantID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]id.TenantID, 0, len(m.queues))
	for t := range m.queues {
		out = append(out, t)
	}
	return out
}

func (m *Manager) configFor(tenantID id.TenantID) Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if cfg, ok := m.configs[tenantID]; ok {
		return cfg
	}
	return m.defaults
}

func (m *Manager) limiterFor(tenantID id.TenantID, cfg Config) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.limiters[tenantID]; ok {
		return l
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}
	l := rate.NewLimiter(cfg.RateLimit, burst)
	m.limiters[tenantID] = l
	return l
}
