package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"ai_art_description/publisher"
)

const requeueTimeout = 5 * time.Second

// Runner runs the description workflow for one request.
type Runner interface {
	GenerateDescription(ctx context.Context, req publisher.Request) publisher.Outcome
}

// Worker drains a Queue. Transport failures are re-enqueued until
// MaxAttempts; every other outcome is final.
type Worker struct {
	Queue       Queue
	Runner      Runner
	Tracker     *Tracker
	Concurrency int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Run processes jobs until ctx is done or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	n := w.Concurrency
	if n < 1 {
		n = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			for {
				job, err := w.Queue.Dequeue(gctx)
				if err != nil {
					if errors.Is(err, ErrQueueClosed) || gctx.Err() != nil {
						return nil
					}
					log.Error().Err(err).Msg("Dequeue failed")
					if !sleep(gctx, time.Second) {
						return nil
					}
					continue
				}
				w.process(gctx, g, job)
			}
		})
	}
	return g.Wait()
}

func (w *Worker) process(ctx context.Context, g *errgroup.Group, job Job) {
	w.track(job, StateRunning, nil)
	job.Attempt++
	out := w.Runner.GenerateDescription(ctx, publisher.Request{ItemID: job.ItemID, Override: job.Override})

	logger := log.With().Str("job_id", job.ID).Int64("item_id", job.ItemID).Int("attempt", job.Attempt).Logger()
	if out.Success {
		logger.Info().Msg("Job done")
		w.track(job, StateDone, &out)
		return
	}

	if out.Reason.Retryable() && job.Attempt < w.MaxAttempts {
		logger.Warn().Str("reason", string(out.Reason)).Dur("delay", w.RetryDelay).Msg("Job failed, scheduling retry")
		w.track(job, StateRetrying, &out)
		g.Go(func() error {
			w.retry(ctx, job, out)
			return nil
		})
		return
	}

	logger.Error().Str("reason", string(out.Reason)).Str("message", out.Message).Msg("Job failed")
	w.track(job, StateFailed, &out)
}

// retry re-enqueues job after RetryDelay, off the consumer goroutines: Enqueue
// blocks while a bounded queue is full. When ctx ends first the job is pushed
// back once with a short deadline.
func (w *Worker) retry(ctx context.Context, job Job, out publisher.Outcome) {
	enqCtx := ctx
	if !sleep(ctx, w.RetryDelay) {
		var cancel context.CancelFunc
		enqCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
		defer cancel()
	}
	if err := w.Queue.Enqueue(enqCtx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Int64("item_id", job.ItemID).Msg("Re-enqueue failed")
		w.track(job, StateFailed, &out)
	}
}

func (w *Worker) track(job Job, state string, out *publisher.Outcome) {
	if w.Tracker != nil {
		w.Tracker.Set(job, state, out)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
