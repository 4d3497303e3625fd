package realtime

import (
	"sync"
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// Transport is the write side of one client connection. The WebSocket
// server provides the real implementation; tests substitute their own.
type Transport interface {
	// WriteText sends one text message to the client.
	WriteText(data []byte) error
	// Close tears down the underlying connection.
	Close() error
}

// Conn is one authenticated client connection plus its job
// subscriptions.
type Conn struct {
	id          id.ConnID
	identity    *Identity
	transport   Transport
	connectedAt time.Time

	// writeMu serializes transport writes: the server read loop and the
	// scheduler's hook fan-out both send on the same socket, and a
	// WebSocket frame must not interleave with another.
	writeMu sync.Mutex

	mu        sync.Mutex
	subs      map[string]struct{}
	closed    bool
	closeOnce sync.Once
}

// NewConn wraps a transport with an identity.
func NewConn(identity *Identity, t Transport) *Conn {
	return &Conn{
		id:          id.NewConnID(),
		identity:    identity,
		transport:   t,
		connectedAt: time.Now().UTC(),
		subs:        make(map[string]struct{}),
	}
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() id.ConnID { return c.id }

// Identity returns the identity bound at connect time.
func (c *Conn) Identity() *Identity { return c.identity }

// Subscribe adds a job subscription.
func (c *Conn) Subscribe(jobID id.JobID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[jobID.String()] = struct{}{}
}

// Unsubscribe drops a job subscription.
func (c *Conn) Unsubscribe(jobID id.JobID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, jobID.String())
}

// SubscribedTo reports whether the connection subscribed to the job.
func (c *Conn) SubscribedTo(jobID id.JobID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[jobID.String()]
	return ok
}

// Subscriptions returns the subscribed job IDs.
func (c *Conn) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out
}

// Send writes one message to the client. Writes are serialized, so Send
// is safe to call from any goroutine. Sending on a closed connection
// returns scribeq.ErrConnectionClosed; a failed write marks the
// connection closed for further sends but leaves the transport to Close.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return scribeq.ErrConnectionClosed
	}
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.transport.WriteText(data)
	c.writeMu.Unlock()
	if err != nil {
		c.markClosed()
		return err
	}
	return nil
}

// Close stops further sends and closes the transport. Safe to call more
// than once, including after a failed Send already marked the
// connection closed.
func (c *Conn) Close() error {
	c.markClosed()
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
	})
	return err
}

func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
