// Package queue carries background link-resolution jobs from the note save
// path to the resolver workers.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrFull is returned by Enqueue when a bounded queue has no room.
	ErrFull = errors.New("queue: full")
	// ErrClosed is returned once the queue has been closed.
	ErrClosed = errors.New("queue: closed")
)

// Job asks for the links of one note to be resolved.
type Job struct {
	NoteID     string    `json:"note_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is a FIFO of resolution jobs.
type Queue interface {
	// Enqueue adds a job without waiting for a consumer.
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available, ctx is done, or the queue closes.
	Dequeue(ctx context.Context) (Job, error)
	Close() error
}
