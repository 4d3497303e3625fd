package queue

import (
	"errors"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// ─────────────────────────────────────────────────────────────────────────────
// TenantQueue
// ─────────────────────────────────────────────────────────────────────────────

func TestTenantQueuePriorityOrder(t *testing.T) {
	q := NewTenantQueue(id.NewTenantID())

	a, b, c := id.NewJobID(), id.NewJobID(), id.NewJobID()
	q.Push(a, 3)
	q.Push(b, 1)
	q.Push(c, 2)

	want := []id.JobID{b, c, a}
	for i, w := range want {
		e, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("pop %d: queue unexpectedly empty", i)
		}
		if e.JobID != w {
			t.Errorf("pop %d: got %s, want %s", i, e.JobID, w)
		}
	}
	if q.Len() != 0 {
		t.Errorf("queue not drained, len = %d", q.Len())
	}
}

func TestTenantQueueTieBreakDeterministic(t *testing.T) {
	a, b := id.NewJobID(), id.NewJobID()
	lo, hi := a, b
	if hi.String() < lo.String() {
		lo, hi = hi, lo
	}

	// Same priority in both insertion orders must dequeue identically.
	for _, order := range [][]id.JobID{{a, b}, {b, a}} {
		q := NewTenantQueue(id.NewTenantID())
		for _, j := range order {
			q.Push(j, 5)
		}
		first, _ := q.Pop(time.Second)
		second, _ := q.Pop(time.Second)
		if first.JobID != lo || second.JobID != hi {
			t.Errorf("insertion %v: dequeued %s, %s; want %s, %s",
				order, first.JobID, second.JobID, lo, hi)
		}
	}
}

func TestTenantQueuePopTimeout(t *testing.T) {
	q := NewTenantQueue(id.NewTenantID())

	start := time.Now()
	_, ok := q.Pop(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected timeout on empty queue")
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Pop returned after %v, expected to wait near the timeout", elapsed)
	}
}

func TestTenantQueuePopWakesOnPush(t *testing.T) {
	q := NewTenantQueue(id.NewTenantID())
	jobID := id.NewJobID()

	done := make(chan *Entry, 1)
	go func() {
		e, ok := q.Pop(2 * time.Second)
		if !ok {
			done <- nil
			return
		}
		done <- e
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(jobID, 1)

	select {
	case e := <-done:
		if e == nil || e.JobID != jobID {
			t.Fatalf("got %+v, want job %s", e, jobID)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestTenantQueueRemove(t *testing.T) {
	q := NewTenantQueue(id.NewTenantID())
	a, b := id.NewJobID(), id.NewJobID()
	q.Push(a, 1)
	q.Push(b, 2)

	if err := q.Remove(a); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := q.Remove(a); !errors.Is(err, scribeq.ErrJobNotFound) {
		t.Errorf("second Remove = %v, want ErrJobNotFound", err)
	}

	e, ok := q.TryPop()
	if !ok || e.JobID != b {
		t.Errorf("TryPop after Remove = %+v", e)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Manager
// ─────────────────────────────────────────────────────────────────────────────

func TestManagerIsolatesTenants(t *testing.T) {
	m := NewManager(Config{})
	t1, t2 := id.NewTenantID(), id.NewTenantID()

	if err := m.Admit(t1, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(t1, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(t2, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}

	if got := m.Get(t1).Len(); got != 2 {
		t.Errorf("tenant 1 len = %d, want 2", got)
	}
	if got := m.Get(t2).Len(); got != 1 {
		t.Errorf("tenant 2 len = %d, want 1", got)
	}
}

func TestManagerMaxDepth(t *testing.T) {
	m := NewManager(Config{MaxDepth: 2})
	tenant := id.NewTenantID()

	if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(tenant, id.NewJobID(), 1); !errors.Is(err, scribeq.ErrQueueFull) {
		t.Fatalf("third admit = %v, want ErrQueueFull", err)
	}

	// Draining one entry frees a slot.
	m.Get(tenant).TryPop()
	if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
		t.Errorf("admit after drain = %v", err)
	}
}

func TestManagerRateLimit(t *testing.T) {
	m := NewManager(Config{RateLimit: rate.Limit(1), RateBurst: 2})
	tenant := id.NewTenantID()

	if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Admit(tenant, id.NewJobID(), 1); !errors.Is(err, scribeq.ErrRateLimited) {
		t.Fatalf("burst-exceeding admit = %v, want ErrRateLimited", err)
	}

	// Another tenant has its own bucket.
	if err := m.Admit(id.NewTenantID(), id.NewJobID(), 1); err != nil {
		t.Errorf("other tenant admit = %v", err)
	}
}

func TestManagerSetTenantConfig(t *testing.T) {
	m := NewManager(Config{MaxDepth: 1})
	tenant := id.NewTenantID()
	m.SetTenantConfig(tenant, Config{MaxDepth: 3})

	for i := 0; i < 3; i++ {
		if err := m.Admit(tenant, id.NewJobID(), 1); err != nil {
			t.Fatalf("admit %d: %v", i, err)
		}
	}
	if err := m.Admit(tenant, id.NewJobID(), 1); !errors.Is(err, scribeq.ErrQueueFull) {
		t.Fatalf("admit past override = %v, want ErrQueueFull", err)
	}
}
