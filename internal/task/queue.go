package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue runs submitted jobs on a fixed worker pool and retains their
// latest status for polling. Jobs are not cancellable mid-flight: once
// started, a job runs to completion or to a fatal error.
type Queue struct {
	logger *slog.Logger

	jobs chan submission
	wg   sync.WaitGroup

	mu       sync.Mutex
	statuses map[string]*Status

	closeOnce sync.Once
}

type submission struct {
	id  string
	job Job
}

// NewQueue starts a queue with the given number of workers.
func NewQueue(workers int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	q := &Queue{
		logger:   logger,
		jobs:     make(chan submission, 64),
		statuses: make(map[string]*Status),
	}

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Submit enqueues a job and synchronously returns its opaque task
// identifier for progress polling.
func (q *Queue) Submit(job Job) string {
	id := uuid.New().String()
	q.SubmitWithID(id, job)
	return id
}

// SubmitWithID enqueues a job under a caller-chosen identifier. Callers
// use this when the identifier must be recorded elsewhere before the
// job is allowed to start.
func (q *Queue) SubmitWithID(id string, job Job) {
	q.mu.Lock()
	q.statuses[id] = &Status{ID: id, State: StatePending}
	q.mu.Unlock()

	q.jobs <- submission{id: id, job: job}
}

// Status returns the latest known state and last pushed progress
// payload for a task identifier.
func (q *Queue) Status(id string) (Status, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st, ok := q.statuses[id]
	if !ok {
		return Status{}, false
	}
	return *st, true
}

// Wait polls until the task reaches a terminal state or ctx expires.
func (q *Queue) Wait(ctx context.Context, id string) (Status, error) {
	ticker := time.NewTicker(25 * time.Millisecond)
	defer ticker.Stop()

	for {
		st, ok := q.Status(id)
		if ok && st.State.Terminal() {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting jobs and waits for in-flight ones to finish.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.jobs)
	})
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for sub := range q.jobs {
		q.run(sub)
	}
}

func (q *Queue) run(sub submission) {
	started := time.Now()
	err := sub.job(context.Background(), &reporter{q: q, id: sub.id})

	q.mu.Lock()
	st := q.statuses[sub.id]
	if err != nil {
		st.State = StateFailure
		st.Reason = err.Error()
	} else {
		st.State = StateSuccess
	}
	q.mu.Unlock()

	if err != nil {
		q.logger.Error("task failed", "task", sub.id, "duration", time.Since(started), "err", err)
		return
	}
	q.logger.Info("task completed", "task", sub.id, "duration", time.Since(started))
}

// reporter writes a job's progress into the queue's status table.
type reporter struct {
	q  *Queue
	id string
}

func (r *reporter) Report(p Progress) {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	st, ok := r.q.statuses[r.id]
	if !ok || st.State.Terminal() {
		return
	}
	st.State = StateProgress
	st.Progress = p
}
