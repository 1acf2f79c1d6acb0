package store

import (
	"context"

	"github.com/starford/learnlog/internal/models"
)

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Store is the record-store contract: equality lookups on indexed fields
// and single-record transactional writes.
// Consumers should depend on this interface rather than the concrete *DB type.
type Store interface {
	CreateNote(ctx context.Context, n models.Note) (string, error)
	UpdateNote(ctx context.Context, n models.Note, ifChecksum string) error
	DeleteNote(ctx context.Context, id string) error
	GetNote(ctx context.Context, id string) (*models.Note, error)
	NotesBySlug(ctx context.Context, slug string) ([]models.Note, error)
	ListNotes(ctx context.Context, f models.NoteFilter) ([]models.Note, int, error)
	SearchNotes(ctx context.Context, query string, limit int) ([]SearchResult, error)

	CreateLink(ctx context.Context, e models.LinkEdge) (string, error)
	DeleteLink(ctx context.Context, id string) error
	LinksBySource(ctx context.Context, sourceID string) ([]models.LinkEdge, error)
	LinksByTarget(ctx context.Context, targetID string) ([]models.LinkEdge, error)
	AllLinks(ctx context.Context) ([]models.LinkEdge, error)

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
