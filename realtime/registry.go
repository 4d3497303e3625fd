package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
)

// Registry tracks live connections per tenant and user and fans job
// updates out to them. It plugs into the scheduler as a lifecycle hook,
// so every job status change reaches subscribed clients.
//
// Delivery is best-effort: a connection that fails a write is dropped
// and never blocks job processing or delivery to other connections.
type Registry struct {
	logger *slog.Logger

	mu    sync.RWMutex
	conns map[id.TenantID]map[id.UserID][]*Conn
}

// NewRegistry creates an empty connection registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		conns:  make(map[id.TenantID]map[id.UserID][]*Conn),
	}
}

// Add registers a connection under its tenant and user.
func (r *Registry) Add(c *Conn) {
	ident := c.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.conns[ident.TenantID]
	if !ok {
		users = make(map[id.UserID][]*Conn)
		r.conns[ident.TenantID] = users
	}
	users[ident.UserID] = append(users[ident.UserID], c)

	r.logger.Debug("connection registered",
		slog.String("conn_id", c.ID().String()),
		slog.String("tenant_id", ident.TenantID.String()),
		slog.String("user_id", ident.UserID.String()),
	)
}

// Remove unregisters a connection, pruning empty user and tenant
// buckets so the maps never accumulate dead tenants.
func (r *Registry) Remove(c *Conn) {
	ident := c.Identity()
	r.mu.Lock()
	defer r.mu.Unlock()

	users, ok := r.conns[ident.TenantID]
	if !ok {
		return
	}
	list := users[ident.UserID]
	for i, other := range list {
		if other.ID() == c.ID() {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(users, ident.UserID)
	} else {
		users[ident.UserID] = list
	}
	if len(users) == 0 {
		delete(r.conns, ident.TenantID)
	}

	r.logger.Debug("connection removed", slog.String("conn_id", c.ID().String()))
}

// ConnectionCount returns the number of live connections for a tenant.
func (r *Registry) ConnectionCount(tenantID id.TenantID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, list := range r.conns[tenantID] {
		n += len(list)
	}
	return n
}

// UserConnectionCount returns the number of live connections for one
// user in a tenant.
func (r *Registry) UserConnectionCount(tenantID id.TenantID, userID id.UserID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[tenantID][userID])
}

// SendToUser delivers a message to every connection of one user.
func (r *Registry) SendToUser(tenantID id.TenantID, userID id.UserID, data []byte) {
	r.mu.RLock()
	targets := append([]*Conn(nil), r.conns[tenantID][userID]...)
	r.mu.RUnlock()

	r.deliver(targets, data)
}

// BroadcastToTenant delivers a message to every connection in a tenant.
func (r *Registry) BroadcastToTenant(tenantID id.TenantID, data []byte) {
	r.mu.RLock()
	var targets []*Conn
	for _, list := range r.conns[tenantID] {
		targets = append(targets, list...)
	}
	r.mu.RUnlock()

	r.deliver(targets, data)
}

// BroadcastJobUpdate notifies the job's owner plus every tenant
// connection subscribed to the job. A connection that is both gets the
// update exactly once.
func (r *Registry) BroadcastJobUpdate(j *job.Job) {
	update := JobUpdate{
		Type:       TypeJobUpdate,
		JobID:      j.ID.String(),
		Status:     string(j.Status),
		ResultPath: j.ResultPath,
		Error:      j.Error,
		Timestamp:  time.Now().UTC(),
	}
	data := marshal(update)

	r.mu.RLock()
	seen := make(map[id.ConnID]struct{})
	var targets []*Conn
	for _, c := range r.conns[j.TenantID][j.UserID] {
		seen[c.ID()] = struct{}{}
		targets = append(targets, c)
	}
	for _, list := range r.conns[j.TenantID] {
		for _, c := range list {
			if _, dup := seen[c.ID()]; dup {
				continue
			}
			if c.SubscribedTo(j.ID) {
				seen[c.ID()] = struct{}{}
				targets = append(targets, c)
			}
		}
	}
	r.mu.RUnlock()

	r.deliver(targets, data)
}

// deliver writes outside the registry lock. Failed connections are
// dropped from the registry.
func (r *Registry) deliver(targets []*Conn, data []byte) {
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			r.logger.Warn("dropping unwritable connection",
				slog.String("conn_id", c.ID().String()),
				slog.String("error", err.Error()),
			)
			r.Remove(c)
			c.Close() //nolint:errcheck
		}
	}
}

// CloseAll closes every connection, used during shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var all []*Conn
	for _, users := range r.conns {
		for _, list := range users {
			all = append(all, list...)
		}
	}
	r.conns = make(map[id.TenantID]map[id.UserID][]*Conn)
	r.mu.Unlock()

	for _, c := range all {
		c.Close() //nolint:errcheck
	}
}

// ── Lifecycle hook implementation ───────────────────

// Name identifies the registry as a scheduler hook.
func (r *Registry) Name() string { return "realtime" }

// OnJobQueued pushes the queued status to interested clients.
func (r *Registry) OnJobQueued(_ context.Context, j *job.Job) error {
	r.BroadcastJobUpdate(j)
	return nil
}

// OnJobStarted pushes the processing status to interested clients.
func (r *Registry) OnJobStarted(_ context.Context, j *job.Job) error {
	r.BroadcastJobUpdate(j)
	return nil
}

// OnJobCompleted pushes the completed status, including the result path.
func (r *Registry) OnJobCompleted(_ context.Context, j *job.Job, _ time.Duration) error {
	r.BroadcastJobUpdate(j)
	return nil
}

// OnJobFailed pushes the failed status, including the error message.
func (r *Registry) OnJobFailed(_ context.Context, j *job.Job, _ error) error {
	r.BroadcastJobUpdate(j)
	return nil
}

// OnShutdown closes all client connections.
func (r *Registry) OnShutdown(_ context.Context) error {
	r.CloseAll()
	return nil
}
