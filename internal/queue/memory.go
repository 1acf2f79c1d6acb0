package queue

import (
	"context"
	"sync"
)

// Memory is an in-process bounded queue.
type Memory struct {
	jobs      chan Job
	done      chan struct{}
	closeOnce sync.Once
}

var _ Queue = (*Memory)(nil)

// NewMemory creates a queue holding at most size pending jobs.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 256
	}
	return &Memory{
		jobs: make(chan Job, size),
		done: make(chan struct{}),
	}
}

// Enqueue implements Queue. It never blocks; a full queue yields ErrFull.
func (m *Memory) Enqueue(_ context.Context, job Job) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.jobs <- job:
		return nil
	default:
		return ErrFull
	}
}

// Dequeue implements Queue.
func (m *Memory) Dequeue(ctx context.Context) (Job, error) {
	select {
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-m.done:
		return Job{}, ErrClosed
	case job := <-m.jobs:
		return job, nil
	}
}

// Len returns the number of pending jobs.
func (m *Memory) Len() int {
	return len(m.jobs)
}

// Close implements Queue. Pending jobs are discarded.
func (m *Memory) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}
