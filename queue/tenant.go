package queue

import (
	"container/heap"
	"sync"
	"time"

	"github.com/scribeq/scribeq"
	"github.com/scribeq/scribeq/id"
)

// TenantQueue is the priority queue for a single tenant. Push never
// blocks; Pop blocks up to a timeout so a worker can check its shutdown
// flag between waits.
type TenantQueue struct {
	tenantID id.TenantID

	mu      sync.Mutex
	entries entryHeap

	// notify carries one token per pending wakeup. A buffered channel
	// stands in for a condition variable because waiting on it can be
	// bounded with a timer.
	notify chan struct{}
}

// NewTenantQueue creates an empty queue for the tenant.
func NewTenantQueue(tenantID id.TenantID) *TenantQueue {
	return &TenantQueue{
		tenantID: tenantID,
		notify:   make(chan struct{}, 1),
	}
}

// TenantID returns the tenant this queue belongs to.
func (q *TenantQueue) TenantID() id.TenantID { return q.tenantID }

// Push adds a job reference to the queue and wakes a waiting Pop.
func (q *TenantQueue) Push(jobID id.JobID, priority int) {
	q.mu.Lock()
	heap.Push(&q.entries, &Entry{JobID: jobID, Priority: priority})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the highest-priority entry, waiting up to
// timeout for one to arrive. It returns ok=false when the timeout
// elapses with the queue still empty.
func (q *TenantQueue) Pop(timeout time.Duration) (*Entry, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if q.entries.Len() > 0 {
			e := heap.Pop(&q.entries).(*Entry)
			q.mu.Unlock()
			return e, true
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-q.notify:
			timer.Stop()
		case <-timer.C:
			return nil, false
		}
	}
}

// TryPop removes and returns the highest-priority entry without waiting.
func (q *TenantQueue) TryPop() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.entries.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.entries).(*Entry), true
}

// Remove deletes the first entry for the given job, if queued. It
// returns scribeq.ErrJobNotFound when the job is not in the queue.
func (q *TenantQueue) Remove(jobID id.JobID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.JobID == jobID {
			heap.Remove(&q.entries, e.index)
			return nil
		}
	}
	return scribeq.ErrJobNotFound
}

// Len returns the number of queued entries.
func (q *TenantQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}
