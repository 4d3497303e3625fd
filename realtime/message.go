package realtime

import (
	"encoding/json"
	"time"
)

// Client → server message types.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
)

// Server → client message types.
const (
	TypeSubscribed   = "subscribed"
	TypeUnsubscribed = "unsubscribed"
	TypePong         = "pong"
	TypeJobUpdate    = "job_update"
	TypeError        = "error"
)

// Message is a client → server protocol message.
type Message struct {
	Type  string `json:"type"`
	JobID string `json:"job_id,omitempty"`
}

// Ack acknowledges a subscribe or unsubscribe request.
type Ack struct {
	Type  string `json:"type"`
	JobID string `json:"job_id"`
}

// Pong answers a ping.
type Pong struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// JobUpdate is a server → client notification about a job's status.
type JobUpdate struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id"`
	Status     string    `json:"status"`
	ResultPath string    `json:"result_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorMessage reports a protocol-level problem to the client. The
// connection stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All message types marshal cleanly; this is unreachable with
		// well-formed values.
		return []byte(`{"type":"error","message":"internal encoding error"}`)
	}
	return b
}
