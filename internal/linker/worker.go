package linker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/queue"
)

// ResolvedFunc is called after a background resolution pass completes.
type ResolvedFunc func(noteID string, res *Result)

// Worker drains the resolution queue in the background. Each job reloads the
// note so the latest saved content is resolved; jobs for deleted notes are
// dropped.
type Worker struct {
	resolver   *Resolver
	queue      queue.Queue
	workers    int
	timeout    time.Duration
	logger     *slog.Logger
	onResolved ResolvedFunc
}

// WorkerConfig holds Worker tuning.
type WorkerConfig struct {
	Workers int
	Timeout time.Duration
	// OnResolved, if non-nil, observes every successful pass.
	OnResolved ResolvedFunc
}

// NewWorker creates a Worker pulling jobs from q.
func NewWorker(r *Resolver, q queue.Queue, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		resolver:   r,
		queue:      q,
		workers:    cfg.Workers,
		timeout:    cfg.Timeout,
		logger:     logger,
		onResolved: cfg.OnResolved,
	}
}

// Run processes jobs until ctx is cancelled or the queue is closed.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("resolver: workers started", slog.Int("workers", w.workers))
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.workers; i++ {
		g.Go(func() error {
			w.loop(gCtx)
			return nil
		})
	}
	err := g.Wait()
	w.logger.Info("resolver: workers stopped")
	return err
}

func (w *Worker) loop(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Warn("resolver: dequeue failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.Handle(ctx, job)
	}
}

// Handle resolves one job. Failures are logged, never returned.
func (w *Worker) Handle(ctx context.Context, job queue.Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	note, err := w.resolver.store.GetNote(jobCtx, job.NoteID)
	if errors.Is(err, apperr.ErrNotFound) {
		w.logger.Debug("resolver: note gone, skipping", slog.String("note_id", job.NoteID))
		return
	}
	if err != nil {
		w.logger.Warn("resolver: load note failed",
			slog.String("note_id", job.NoteID),
			slog.String("error", err.Error()))
		return
	}

	res, err := w.resolver.Resolve(jobCtx, note.ID, note.Content)
	if err != nil {
		w.logger.Warn("resolver: resolution incomplete",
			slog.String("note_id", note.ID),
			slog.Int("failed", res.Failed),
			slog.String("error", err.Error()))
	}
	if w.onResolved != nil {
		w.onResolved(note.ID, res)
	}
}
