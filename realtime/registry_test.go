package realtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/scribeq/scribeq/id"
	"github.com/scribeq/scribeq/job"
)

// fakeTransport records sent messages in memory.
type fakeTransport struct {
	mu     sync.Mutex
	sent   [][]byte
	fail   bool
	closed bool
}

func (t *fakeTransport) WriteText(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fail {
		return errors.New("broken pipe")
	}
	cp := append([]byte(nil), data...)
	t.sent = append(t.sent, cp)
	return nil
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) updates(tb testing.TB) []JobUpdate {
	tb.Helper()
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []JobUpdate
	for _, raw := range t.sent {
		var u JobUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			tb.Fatalf("unmarshal sent message: %v", err)
		}
		if u.Type == TypeJobUpdate {
			out = append(out, u)
		}
	}
	return out
}

func newTestConn(tenantID id.TenantID, userID id.UserID, role string) (*Conn, *fakeTransport) {
	t := &fakeTransport{}
	c := NewConn(&Identity{UserID: userID, TenantID: tenantID, Role: role}, t)
	return c, t
}

func testJob(tenantID id.TenantID, userID id.UserID) *job.Job {
	return &job.Job{
		ID:       id.NewJobID(),
		TenantID: tenantID,
		UserID:   userID,
		Status:   job.StatusProcessing,
	}
}

func TestBroadcastJobUpdateReachesOwner(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID, userID := id.NewTenantID(), id.NewUserID()

	c, tr := newTestConn(tenantID, userID, RoleMember)
	r.Add(c)

	j := testJob(tenantID, userID)
	j.Status = job.StatusCompleted
	j.ResultPath = "out/result.json"
	r.BroadcastJobUpdate(j)

	ups := tr.updates(t)
	if len(ups) != 1 {
		t.Fatalf("owner got %d updates, want 1", len(ups))
	}
	if ups[0].JobID != j.ID.String() || ups[0].Status != "completed" || ups[0].ResultPath != "out/result.json" {
		t.Errorf("update = %+v", ups[0])
	}
}

func TestBroadcastJobUpdateReachesSubscriber(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID := id.NewTenantID()
	owner, watcher := id.NewUserID(), id.NewUserID()

	ownerConn, ownerTr := newTestConn(tenantID, owner, RoleMember)
	watcherConn, watcherTr := newTestConn(tenantID, watcher, RoleAdmin)
	r.Add(ownerConn)
	r.Add(watcherConn)

	j := testJob(tenantID, owner)
	watcherConn.Subscribe(j.ID)

	r.BroadcastJobUpdate(j)

	if got := len(ownerTr.updates(t)); got != 1 {
		t.Errorf("owner updates = %d, want 1", got)
	}
	if got := len(watcherTr.updates(t)); got != 1 {
		t.Errorf("subscribed watcher updates = %d, want 1", got)
	}
}

func TestBroadcastJobUpdateDeduplicates(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID, userID := id.NewTenantID(), id.NewUserID()

	// The owner's connection also subscribes explicitly: one delivery.
	c, tr := newTestConn(tenantID, userID, RoleMember)
	r.Add(c)

	j := testJob(tenantID, userID)
	c.Subscribe(j.ID)

	r.BroadcastJobUpdate(j)

	if got := len(tr.updates(t)); got != 1 {
		t.Fatalf("owner-subscriber got %d updates, want exactly 1", got)
	}
}

func TestBroadcastJobUpdateStaysInTenant(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantA, tenantB := id.NewTenantID(), id.NewTenantID()
	userID := id.NewUserID()

	// Same user ID in another tenant must not receive the update.
	inTenant, trA := newTestConn(tenantA, userID, RoleMember)
	outTenant, trB := newTestConn(tenantB, userID, RoleMember)
	r.Add(inTenant)
	r.Add(outTenant)

	r.BroadcastJobUpdate(testJob(tenantA, userID))

	if got := len(trA.updates(t)); got != 1 {
		t.Errorf("tenant A updates = %d, want 1", got)
	}
	if got := len(trB.updates(t)); got != 0 {
		t.Errorf("tenant B updates = %d, want 0", got)
	}
}

func TestUnsubscribedTenantPeerNotNotified(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID := id.NewTenantID()
	owner, peer := id.NewUserID(), id.NewUserID()

	ownerConn, _ := newTestConn(tenantID, owner, RoleMember)
	peerConn, peerTr := newTestConn(tenantID, peer, RoleMember)
	r.Add(ownerConn)
	r.Add(peerConn)

	r.BroadcastJobUpdate(testJob(tenantID, owner))

	if got := len(peerTr.updates(t)); got != 0 {
		t.Errorf("unsubscribed peer updates = %d, want 0", got)
	}
}

func TestFailedSendDropsConnection(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID, userID := id.NewTenantID(), id.NewUserID()

	bad, badTr := newTestConn(tenantID, userID, RoleMember)
	badTr.fail = true
	good, goodTr := newTestConn(tenantID, userID, RoleMember)
	r.Add(bad)
	r.Add(good)

	r.BroadcastJobUpdate(testJob(tenantID, userID))

	if got := len(goodTr.updates(t)); got != 1 {
		t.Errorf("healthy conn updates = %d, want 1", got)
	}
	if r.UserConnectionCount(tenantID, userID) != 1 {
		t.Errorf("failed conn not pruned: count = %d", r.UserConnectionCount(tenantID, userID))
	}
	badTr.mu.Lock()
	closed := badTr.closed
	badTr.mu.Unlock()
	if !closed {
		t.Error("failed conn transport not closed")
	}
}

func TestRemovePrunesEmptyBuckets(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID, userID := id.NewTenantID(), id.NewUserID()

	c, _ := newTestConn(tenantID, userID, RoleMember)
	r.Add(c)
	if r.ConnectionCount(tenantID) != 1 {
		t.Fatal("connection not registered")
	}

	r.Remove(c)
	if r.ConnectionCount(tenantID) != 0 {
		t.Error("connection not removed")
	}
	// Removing again is harmless.
	r.Remove(c)
}

func TestSendToUserAndBroadcastToTenant(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID := id.NewTenantID()
	u1, u2 := id.NewUserID(), id.NewUserID()

	c1, tr1 := newTestConn(tenantID, u1, RoleMember)
	c2, tr2 := newTestConn(tenantID, u2, RoleMember)
	r.Add(c1)
	r.Add(c2)

	r.SendToUser(tenantID, u1, []byte(`{"type":"pong"}`))
	tr1.mu.Lock()
	n1 := len(tr1.sent)
	tr1.mu.Unlock()
	tr2.mu.Lock()
	n2 := len(tr2.sent)
	tr2.mu.Unlock()
	if n1 != 1 || n2 != 0 {
		t.Errorf("SendToUser delivered to %d/%d, want 1/0", n1, n2)
	}

	r.BroadcastToTenant(tenantID, []byte(`{"type":"pong"}`))
	tr2.mu.Lock()
	n2 = len(tr2.sent)
	tr2.mu.Unlock()
	if n2 != 1 {
		t.Errorf("BroadcastToTenant missed a user: %d", n2)
	}
}

func TestCloseAll(t *testing.T) {
	r := NewRegistry(slog.New(slog.DiscardHandler))
	tenantID := id.NewTenantID()
	c, tr := newTestConn(tenantID, id.NewUserID(), RoleMember)
	r.Add(c)

	r.CloseAll()

	if r.ConnectionCount(tenantID) != 0 {
		t.Error("connections not cleared")
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if !tr.closed {
		t.Error("transport not closed")
	}
}
