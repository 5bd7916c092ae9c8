package jobs

import (
	"sync"
	"time"

	"ai_art_description/publisher"
)

// Job states.
const (
	StateQueued   = "queued"
	StateRunning  = "running"
	StateRetrying = "retrying"
	StateDone     = "done"
	StateFailed   = "failed"
)

// Status is the last known state of a job.
type Status struct {
	Job       Job                `json:"job"`
	State     string             `json:"state"`
	Outcome   *publisher.Outcome `json:"outcome,omitempty"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// Tracker keeps job statuses in memory.
type Tracker struct {
	mu       sync.Mutex
	statuses map[string]Status
}

func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]Status)}
}

func (t *Tracker) Set(job Job, state string, out *publisher.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.statuses[job.ID] = Status{Job: job, State: state, Outcome: out, UpdatedAt: time.Now().UTC()}
}

func (t *Tracker) Get(id string) (Status, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.statuses[id]
	return s, ok
}
