package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
)

// Server upgrades HTTP requests to WebSocket connections, authenticates
// them, and services the subscribe/unsubscribe/ping protocol. Job
// updates themselves are pushed through the Registry by the scheduler's
// lifecycle hooks.
type Server struct {
	registry *Registry
	jobs     job.Store
	auth     Authenticator
	logger   *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the structured logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = logger }
}

// WithAuthenticator sets the connection authenticator. Connections
// cannot be established without one.
func WithAuthenticator(a Authenticator) ServerOption {
	return func(s *Server) { s.auth = a }
}

// NewServer creates a WebSocket server over the given registry and job
// store. The store is used to validate subscriptions and send the
// current-status snapshot on subscribe.
func NewServer(registry *Registry, jobs job.Store, opts ...ServerOption) *Server {
	s := &Server{
		registry: registry,
		jobs:     jobs,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// wsTransport adapts a raw WebSocket net.Conn to the Transport
// interface. Conn.Send serializes calls to WriteText.
type wsTransport struct {
	conn net.Conn
}

func (t *wsTransport) WriteText(data []byte) error {
	return wsutil.WriteServerText(t.conn, data)
}

func (t *wsTransport) Close() error { return t.conn.Close() }

// ServeHTTP upgrades the request and runs the connection until the
// client disconnects. The token comes from the "token" query parameter
// or an Authorization bearer header; a bad token closes the socket
// with policy-violation status 1008.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	identity, err := s.authenticate(r.Context(), token)
	if err != nil {
		s.closeWithPolicyViolation(conn)
		return
	}

	c := NewConn(identity, &wsTransport{conn: conn})
	s.registry.Add(c)
	s.logger.Info("websocket connected",
		slog.String("conn_id", c.ID().String()),
		slog.String("tenant_id", identity.TenantID.String()),
		slog.String("user_id", identity.UserID.String()),
	)

	defer func() {
		s.registry.Remove(c)
		c.Close() //nolint:errcheck
		s.logger.Info("websocket disconnected", slog.String("conn_id", c.ID().String()))
	}()

	s.readLoop(r.Context(), c, conn)
}

func (s *Server) authenticate(ctx context.Context, token string) (*Identity, error) {
	if s.auth == nil || token == "" {
		return nil, scribeq.ErrUnauthorized
	}
	return s.auth.Authenticate(ctx, token)
}

func (s *Server) closeWithPolicyViolation(conn net.Conn) {
	body := ws.NewCloseFrameBody(ws.StatusPolicyViolation, "authentication failed")
	//nolint:errcheck // best-effort close handshake before disconnect
	ws.WriteFrame(conn, ws.NewCloseFrame(body))
	conn.Close() //nolint:errcheck
}

func (s *Server) readLoop(ctx context.Context, c *Conn, conn net.Conn) {
	for {
		data, err := wsutil.ReadClientText(conn)
		if err != nil {
			var closed wsutil.ClosedError
			if !errors.As(err, &closed) {
				s.logger.Debug("websocket read ended",
					slog.String("conn_id", c.ID().String()),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		s.handleMessage(ctx, c, data)
	}
}

// handleMessage services one protocol message. Protocol errors are
// reported on the connection; only transport errors end it.
func (s *Server) handleMessage(ctx context.Context, c *Conn, data []byte) {
	msg, err := decodeMessage(data)
	if err != nil {
		c.Send(marshal(ErrorMessage{Type: TypeError, Message: "invalid message"})) //nolint:errcheck
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		s.handleSubscribe(ctx, c, msg)
	case TypeUnsubscribe:
		s.handleUnsubscribe(c, msg)
	case TypePing:
		c.Send(marshal(Pong{Type: TypePong, Timestamp: time.Now().UTC()})) //nolint:errcheck
	default:
		c.Send(marshal(ErrorMessage{ //nolint:errcheck
			Type:    TypeError,
			Message: "Unknown message type: " + msg.Type,
		}))
	}
}

// handleSubscribe validates that the job exists in the caller's tenant
// and that the caller owns it or is a tenant admin, then acknowledges
// and snapshots the job's current status so the client never misses a
// transition that happened before the subscribe.
func (s *Server) handleSubscribe(ctx context.Context, c *Conn, msg *Message) {
	ident := c.Identity()

	jobID, err := id.ParseJobID(msg.JobID)
	if err != nil {
		c.Send(marshal(ErrorMessage{Type: TypeError, Message: "invalid job id"})) //nolint:errcheck
		return
	}

	j, err := s.jobs.GetJob(ctx, jobID, ident.TenantID)
	if err != nil {
		c.Send(marshal(ErrorMessage{Type: TypeError, Message: "job not found"})) //nolint:errcheck
		return
	}
	if j.UserID != ident.UserID && !ident.IsAdmin() {
		c.Send(marshal(ErrorMessage{Type: TypeError, Message: "not authorized for this job"})) //nolint:errcheck
		return
	}

	c.Subscribe(jobID)
	c.Send(marshal(Ack{Type: TypeSubscribed, JobID: msg.JobID})) //nolint:errcheck
	c.Send(marshal(JobUpdate{                                   //nolint:errcheck
		Type:       TypeJobUpdate,
		JobID:      msg.JobID,
		Status:     string(j.Status),
		ResultPath: j.ResultPath,
		Error:      j.Error,
		Timestamp:  time.Now().UTC(),
	}))
}

func (s *Server) handleUnsubscribe(c *Conn, msg *Message) {
	jobID, err := id.ParseJobID(msg.JobID)
	if err != nil {
		c.Send(marshal(ErrorMessage{Type: TypeError, Message: "invalid job id"})) //nolint:errcheck
		return
	}
	c.Unsubscribe(jobID)
	c.Send(marshal(Ack{Type: TypeUnsubscribed, JobID: msg.JobID})) //nolint:errcheck
}

func decodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// tokenFromRequest extracts the auth token from the "token" query
// parameter, falling back to an Authorization bearer header.
func tokenFromRequest(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
