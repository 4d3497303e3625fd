// Package client provides a Go client for the job update WebSocket
// protocol.
//
// Usage:
//
//	c, err := client.Dial(ctx, "ws://api.example.com/ws/jobs",
//	    client.WithToken("sk_..."),
//	)
//	defer c.Close()
//
//	if err := c.Subscribe(ctx, jobID); err != nil { ... }
//	for update := range c.Updates() {
//	    fmt.Printf("job %s: %s\n", update.JobID, update.Status)
//	}
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/realtime"
)

// Client is a WebSocket client receiving job updates from a server.
type Client struct {
	url    string
	token  string
	logger *slog.Logger

	conn    net.Conn
	writeMu sync.Mutex
	closed  atomic.Bool

	updates chan realtime.JobUpdate
	control chan controlMessage
	done    chan struct{}
}

type controlMessage struct {
	Type    string `json:"type"`
	JobID   string `json:"job_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the auth token sent as a query parameter.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Dial connects and starts the read loop. The returned client must be
// closed when done.
func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:     url,
		logger:  slog.Default(),
		updates: make(chan realtime.JobUpdate, 64),
		control: make(chan controlMessage, 8),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	dialURL := c.url
	if c.token != "" {
		sep := "?"
		for _, r := range c.url {
			if r == '?' {
				sep = "&"
				break
			}
		}
		dialURL = c.url + sep + "token=" + c.token
	}

	conn, _, _, err := ws.Dial(ctx, dialURL)
	if err != nil {
		return nil, fmt.Errorf("scribeq/client: dial: %w", err)
	}
	c.conn = conn

	go c.readLoop()
	return c, nil
}

// Updates returns the channel of job updates. It is closed when the
// connection ends. Updates include the snapshot sent after each
// successful subscribe.
func (c *Client) Updates() <-chan realtime.JobUpdate { return c.updates }

// Subscribe asks for updates about a job and waits for the server's
// acknowledgement.
func (c *Client) Subscribe(ctx context.Context, jobID id.JobID) error {
	return c.roundTrip(ctx, realtime.Message{
		Type:  realtime.TypeSubscribe,
		JobID: jobID.String(),
	}, realtime.TypeSubscribed)
}

// Unsubscribe stops updates for a job.
func (c *Client) Unsubscribe(ctx context.Context, jobID id.JobID) error {
	return c.roundTrip(ctx, realtime.Message{
		Type:  realtime.TypeUnsubscribe,
		JobID: jobID.String(),
	}, realtime.TypeUnsubscribed)
}

// Ping checks connection liveness.
func (c *Client) Ping(ctx context.Context) error {
	return c.roundTrip(ctx, realtime.Message{Type: realtime.TypePing}, realtime.TypePong)
}

// Close tears down the connection. Safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.conn.Close()
}

// roundTrip sends one message and waits for the expected control
// response. The protocol answers requests in order on one connection,
// so the next control message is the answer.
func (c *Client) roundTrip(ctx context.Context, msg realtime.Message, wantType string) error {
	if err := c.send(msg); err != nil {
		return err
	}
	select {
	case resp, ok := <-c.control:
		if !ok {
			return errors.New("scribeq/client: connection closed")
		}
		if resp.Type == realtime.TypeError {
			return fmt.Errorf("scribeq/client: server error: %s", resp.Message)
		}
		if resp.Type != wantType {
			return fmt.Errorf("scribeq/client: unexpected response %q, want %q", resp.Type, wantType)
		}
		return nil
	case <-c.done:
		return errors.New("scribeq/client: connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) send(msg realtime.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("scribeq/client: marshal: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsutil.WriteClientText(c.conn, data)
}

func (c *Client) readLoop() {
	defer func() {
		close(c.done)
		close(c.updates)
		close(c.control)
	}()

	for {
		data, err := wsutil.ReadServerText(c.conn)
		if err != nil {
			if !c.closed.Load() {
				c.logger.Debug("read loop ended", slog.String("error", err.Error()))
			}
			return
		}

		var probe controlMessage
		if err := json.Unmarshal(data, &probe); err != nil {
			c.logger.Warn("unparseable server message", slog.String("error", err.Error()))
			continue
		}

		if probe.Type == realtime.TypeJobUpdate {
			var update realtime.JobUpdate
			if err := json.Unmarshal(data, &update); err != nil {
				continue
			}
			select {
			case c.updates <- update:
			default:
				// A reader that stops draining loses oldest-first
				// semantics rather than blocking the socket.
				c.logger.Warn("update channel full, dropping update",
					slog.String("job_id", update.JobID))
			}
			continue
		}

		select {
		case c.control <- probe:
		default:
			c.logger.Warn("unsolicited control message dropped",
				slog.String("type", probe.Type))
		}
	}
}
