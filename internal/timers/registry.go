package timers

import (
	"sync"
	"time"
)

// Registry maps active session IDs to their activation timestamps so expiry
// checks do not have to re-read the session store. An entry exists exactly
// while the session is active: Start on assignment, Stop on end, whichever
// of manual end or the reaper gets there first.
type Registry struct {
	mu      sync.RWMutex
	started map[string]time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		started: make(map[string]time.Time),
	}
}

// Start records the activation time for a session.
func (r *Registry) Start(id string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started[id] = at
}

// Stop removes the entry for a session and returns its activation time.
// Stopping an absent entry is a no-op reported via the second return value.
func (r *Registry) Stop(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	at, ok := r.started[id]
	if ok {
		delete(r.started, id)
	}
	return at, ok
}

// StartedAt returns the activation time for a session, if registered.
func (r *Registry) StartedAt(id string) (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	at, ok := r.started[id]
	return at, ok
}

// Snapshot returns a copy of the registry. The reaper iterates the copy so
// concurrent Start/Stop calls never race the sweep.
func (r *Registry) Snapshot() map[string]time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[string]time.Time, len(r.started))
	for id, at := range r.started {
		snap[id] = at
	}
	return snap
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.started)
}
