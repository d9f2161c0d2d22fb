package queue

import "sync"

// AdmissionQueue is the in-memory FIFO of session IDs waiting for an
// operator. It holds IDs only; the session records themselves live in the
// session store. All mutations run under one mutex so a Remove can never
// race a DequeueNext into losing or duplicating an ID.
type AdmissionQueue struct {
	mu      sync.Mutex
	ids     []string
	present map[string]struct{}
}

func New() *AdmissionQueue {
	return &AdmissionQueue{
		present: make(map[string]struct{}),
	}
}

// Enqueue appends id unless it is already queued. Idempotent.
func (q *AdmissionQueue) Enqueue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.present[id]; ok {
		return
	}
	q.ids = append(q.ids, id)
	q.present[id] = struct{}{}
}

// DequeueNext removes and returns the oldest queued ID. It never blocks;
// the second return value is false when the queue is empty.
func (q *AdmissionQueue) DequeueNext() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	delete(q.present, id)
	return id, true
}

// Remove drops id from the queue if present. Idempotent; reports whether
// anything was removed.
func (q *AdmissionQueue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.present[id]; !ok {
		return false
	}
	for i, queued := range q.ids {
		if queued == id {
			q.ids = append(q.ids[:i], q.ids[i+1:]...)
			break
		}
	}
	delete(q.present, id)
	return true
}

// Contains reports whether id is currently queued.
func (q *AdmissionQueue) Contains(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	_, ok := q.present[id]
	return ok
}

func (q *AdmissionQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.ids)
}
