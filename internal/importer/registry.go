package importer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Registry tracks in-flight ingestion runs and bounds how many execute at
// once. Jobs past the limit wait in line while still pending; an abort while
// waiting cancels the context before the runner ever does real work.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*jobHandle
	sem  *semaphore.Weighted
	log  *slog.Logger
}

type jobHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRegistry(maxConcurrent int) *Registry {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Registry{
		jobs: make(map[string]*jobHandle),
		sem:  semaphore.NewWeighted(int64(maxConcurrent)),
		log:  slog.Default().With("component", "job-registry"),
	}
}

// Start launches run in its own goroutine under an admission slot. run must
// honor its context and is responsible for all job-state bookkeeping,
// including marking the job cancelled when the context dies before a slot is
// acquired.
func (r *Registry) Start(jobID string, run func(ctx context.Context)) error {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	if _, exists := r.jobs[jobID]; exists {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("job %s is already running", jobID)
	}
	handle := &jobHandle{cancel: cancel, done: make(chan struct{})}
	r.jobs[jobID] = handle
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.jobs, jobID)
			r.mu.Unlock()
			cancel()
			close(handle.done)
		}()

		if err := r.sem.Acquire(ctx, 1); err != nil {
			// Aborted while queued; hand the dead context to the
			// runner so it records the cancellation.
			run(ctx)
			return
		}
		defer r.sem.Release(1)
		run(ctx)
	}()

	return nil
}

// Cancel aborts a tracked job. It reports whether the job was known; actual
// teardown happens asynchronously in the runner.
func (r *Registry) Cancel(jobID string) bool {
	r.mu.Lock()
	handle, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	r.log.Info("cancelling job", "job_id", jobID)
	handle.cancel()
	return true
}

// IsRunning reports whether the job is tracked (queued or executing).
func (r *Registry) IsRunning(jobID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[jobID]
	return ok
}

// Running returns the number of tracked jobs.
func (r *Registry) Running() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Wait returns a channel closed when the job's runner has fully exited.
// Waiting on an unknown job returns a closed channel.
func (r *Registry) Wait(jobID string) <-chan struct{} {
	r.mu.Lock()
	handle, ok := r.jobs[jobID]
	r.mu.Unlock()
	if !ok {
		done := make(chan struct{})
		close(done)
		return done
	}
	return handle.done
}
