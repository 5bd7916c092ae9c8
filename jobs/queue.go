package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sources that enqueue jobs.
const (
	SourceBulk     = "bulk"
	SourceSchedule = "schedule"
	SourcePublish  = "publish"
)

// ErrQueueClosed is returned by Dequeue once the queue is closed and drained.
var ErrQueueClosed = errors.New("queue closed")

// Job asks a worker to generate descriptions for one item.
type Job struct {
	ID         string    `json:"id"`
	ItemID     int64     `json:"item_id"`
	Override   bool      `json:"override"`
	Source     string    `json:"source"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewJob creates a job with a fresh ID.
func NewJob(itemID int64, override bool, source string) Job {
	return Job{
		ID:         uuid.NewString(),
		ItemID:     itemID,
		Override:   override,
		Source:     source,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue hands jobs from triggers to workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)
}

// MemoryQueue is an in-process queue backed by a buffered channel.
type MemoryQueue struct {
	ch     chan Job
	closed chan struct{}
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan Job, size), closed: make(chan struct{})}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}
	select {
	case q.ch <- job:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.ch:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.closed:
		select {
		case job := <-q.ch:
			return job, nil
		default:
			return Job{}, ErrQueueClosed
		}
	}
}

// Close stops accepting jobs. Queued jobs can still be dequeued.
func (q *MemoryQueue) Close() {
	select {
	case <-q.closed:
	default:
		close(q.closed)
	}
}

// Len reports the number of queued jobs.
func (q *MemoryQueue) Len() int {
	return len(q.ch)
}
