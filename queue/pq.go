package queue

import "github.com/scribeq/scribeq/id"

// Entry is one queued job reference. Queues carry references only; the
// job row itself lives in the store and is reloaded at dequeue time.
type Entry struct {
	JobID    id.JobID
	Priority int

	index int
}

// entryHeap orders entries by ascending priority, breaking ties by job
// ID string so dequeue order is deterministic.
type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].Priority != h[j].Priority {
		return h[i].Priority < h[j].Priority
	}
	return h[i].JobID.String() < h[j].JobID.String()
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
