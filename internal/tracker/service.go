package tracker

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/learnlog/internal/models"
)

// Store is the subset of the record store the tracker needs.
type Store interface {
	CreatePaper(ctx context.Context, p models.Paper) (string, error)
	UpdatePaper(ctx context.Context, p models.Paper) error
	DeletePaper(ctx context.Context, id string) error
	GetPaper(ctx context.Context, id string) (*models.Paper, error)
	ListPapers(ctx context.Context, status models.PaperStatus) ([]models.Paper, error)
	LinkPaperNote(ctx context.Context, paperID, noteID string) error
	UnlinkPaperNote(ctx context.Context, paperID, noteID string) error
	NoteIDsForPaper(ctx context.Context, paperID string) ([]string, error)
	PaperIDsForNote(ctx context.Context, noteID string) ([]string, error)

	CreateJournalEntry(ctx context.Context, e models.JournalEntry) (string, error)
	UpdateJournalEntry(ctx context.Context, e models.JournalEntry) error
	DeleteJournalEntry(ctx context.Context, id string) error
	JournalEntryByDate(ctx context.Context, date string) (*models.JournalEntry, error)
	ListJournalEntries(ctx context.Context, from, to string) ([]models.JournalEntry, error)
	LinkJournalPaper(ctx context.Context, journalID, paperID string) error
	UnlinkJournalPaper(ctx context.Context, journalID, paperID string) error
	PaperIDsForJournal(ctx context.Context, journalID string) ([]string, error)

	GetNote(ctx context.Context, id string) (*models.Note, error)
	NotesBySlug(ctx context.Context, slug string) ([]models.Note, error)
}

// Service manages papers and journal entries.
type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to resolve "today".
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a tracker service over st.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
