package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"ai_art_description/generator"
	"ai_art_description/publisher"
)

// scriptedRunner returns the reasons in order, then succeeds.
type scriptedRunner struct {
	mu      sync.Mutex
	reasons []generator.Reason
	calls   int
	reqs    []publisher.Request
}

func (r *scriptedRunner) GenerateDescription(_ context.Context, req publisher.Request) publisher.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	r.calls++
	if r.calls <= len(r.reasons) {
		return publisher.Outcome{ItemID: req.ItemID, Reason: r.reasons[r.calls-1]}
	}
	return publisher.Outcome{ItemID: req.ItemID, Success: true}
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func runUntil(t *testing.T, w *Worker, job Job, final ...string) Status {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	if err := w.Queue.Enqueue(ctx, job); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := w.Tracker.Get(job.ID); ok {
			for _, s := range final {
				if st.State == s {
					return st
				}
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach %v", job.ID, final)
	return Status{}
}

func TestWorkerRetriesTransportFailures(t *testing.T) {
	runner := &scriptedRunner{reasons: []generator.Reason{generator.ReasonTransport, generator.ReasonTransport}}
	w := &Worker{Queue: NewMemoryQueue(8), Runner: runner, Tracker: NewTracker(), Concurrency: 2, MaxAttempts: 3}

	st := runUntil(t, w, NewJob(4, true, SourceBulk), StateDone, StateFailed)
	if st.State != StateDone {
		t.Fatalf("state = %s", st.State)
	}
	if st.Job.Attempt != 3 || runner.count() != 3 {
		t.Fatalf("attempt = %d, calls = %d", st.Job.Attempt, runner.count())
	}
	if !runner.reqs[0].Override {
		t.Fatal("override not passed through")
	}
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	runner := &scriptedRunner{reasons: []generator.Reason{
		generator.ReasonTransport, generator.ReasonTransport, generator.ReasonTransport,
	}}
	w := &Worker{Queue: NewMemoryQueue(8), Runner: runner, Tracker: NewTracker(), MaxAttempts: 2}

	st := runUntil(t, w, NewJob(4, false, SourcePublish), StateDone, StateFailed)
	if st.State != StateFailed || runner.count() != 2 {
		t.Fatalf("state = %s, calls = %d", st.State, runner.count())
	}
	if st.Outcome == nil || st.Outcome.Reason != generator.ReasonTransport {
		t.Fatalf("outcome = %+v", st.Outcome)
	}
}

func TestWorkerDoesNotRetryPermanentFailures(t *testing.T) {
	runner := &scriptedRunner{reasons: []generator.Reason{generator.ReasonMissingImage}}
	w := &Worker{Queue: NewMemoryQueue(8), Runner: runner, Tracker: NewTracker(), MaxAttempts: 5}

	st := runUntil(t, w, NewJob(4, true, SourceBulk), StateDone, StateFailed)
	if st.State != StateFailed || runner.count() != 1 {
		t.Fatalf("state = %s, calls = %d", st.State, runner.count())
	}
}

func TestWorkerStopsWhenQueueClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	q.Close()
	w := &Worker{Queue: q, Runner: &scriptedRunner{}, Concurrency: 3}
	if err := w.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

// itemRunner fails the listed items once with a transport failure.
type itemRunner struct {
	mu     sync.Mutex
	failed map[int64]bool
	calls  int
}

func (r *itemRunner) GenerateDescription(_ context.Context, req publisher.Request) publisher.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if fail, seen := r.failed[req.ItemID]; seen && fail {
		r.failed[req.ItemID] = false
		return publisher.Outcome{ItemID: req.ItemID, Reason: generator.ReasonTransport}
	}
	return publisher.Outcome{ItemID: req.ItemID, Success: true}
}

func waitState(t *testing.T, tr *Tracker, id string, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if st, ok := tr.Get(id); ok && st.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	st, _ := tr.Get(id)
	t.Fatalf("job %s state = %q, want %q", id, st.State, want)
}

func TestWorkerRetryWithFullQueue(t *testing.T) {
	q := NewMemoryQueue(1)
	tr := NewTracker()
	runner := &itemRunner{failed: map[int64]bool{1: true}}
	w := &Worker{Queue: q, Runner: runner, Tracker: tr, Concurrency: 1, MaxAttempts: 3, RetryDelay: 100 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	a := NewJob(1, true, SourceBulk)
	b := NewJob(2, true, SourceBulk)
	if err := q.Enqueue(ctx, a); err != nil {
		t.Fatal(err)
	}
	waitState(t, tr, a.ID, StateRetrying)

	// b takes the only slot while a waits to be re-enqueued
	if err := q.Enqueue(ctx, b); err != nil {
		t.Fatal(err)
	}
	waitState(t, tr, b.ID, StateDone)
	waitState(t, tr, a.ID, StateDone)

	runner.mu.Lock()
	defer runner.mu.Unlock()
	if runner.calls != 3 {
		t.Fatalf("calls = %d, want 3", runner.calls)
	}
}
