package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry maps job IDs to their trackers. Completed jobs linger for a
// retention window so late polls still resolve, then get evicted; the
// history store is the durable record.
type Registry struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Tracker

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[uuid.UUID]*Tracker),
		now:  time.Now,
	}
}

// Add registers a tracker under its ID.
func (r *Registry) Add(t *Tracker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[t.ID()] = t
}

// Get looks a job up, returning ErrNotFound for unknown or evicted IDs.
func (r *Registry) Get(id uuid.UUID) (*Tracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t, nil
}

// ActiveCount reports how many registered jobs are not yet terminal.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := 0
	for _, t := range r.jobs {
		if !t.State().IsTerminal() {
			active++
		}
	}
	return active
}

// Sweep evicts terminal jobs that finished longer than retention ago and
// returns how many were removed.
func (r *Registry) Sweep(retention time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-retention)
	removed := 0
	for id, t := range r.jobs {
		snap := t.Snapshot()
		if snap.State.IsTerminal() && snap.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of registered jobs, terminal ones included.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}
