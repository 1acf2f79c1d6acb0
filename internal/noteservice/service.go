package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/linker"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/parser"
	"github.com/starford/learnlog/internal/queue"
	"github.com/starford/learnlog/internal/slug"
	"github.com/starford/learnlog/internal/store"
)

// maxSlugAttempts bounds the -2, -3, ... suffix search for a derived slug.
const maxSlugAttempts = 100

// fallbackSlug is used when a title has no sluggable characters.
const fallbackSlug = "note"

// Event kinds passed to Publisher.PublishNoteEvent.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// Publisher receives change notifications. Implemented by the SSE broker.
type Publisher interface {
	PublishNoteEvent(kind, id, slug string)
	PublishLinksResolved(noteID string, summary any)
}

// Enqueuer accepts background resolution jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, job queue.Job) error
}

// Service coordinates the record store, link resolution and change events.
type Service struct {
	store    store.Store
	resolver *linker.Resolver
	queue    Enqueuer
	events   Publisher
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithQueue makes saves enqueue resolution jobs instead of resolving inline.
func WithQueue(q Enqueuer) Option {
	return func(s *Service) { s.queue = q }
}

// WithPublisher sets the change-event sink.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a new note service.
func NewService(st store.Store, r *linker.Resolver, opts ...Option) *Service {
	s := &Service{store: st, resolver: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput holds the fields of a new note. Content may be nil.
type CreateInput struct {
	Title   string
	Slug    string
	Content doctree.Node
	Tags    []string
	Folder  string
}

// UpdateInput is a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title   *string
	Content doctree.Node
	Tags    *[]string
	Folder  *string
	// IfMatch, when set, must equal the stored checksum.
	IfMatch string
}

// CreateNote stores a new note and schedules its links for resolution.
// An empty title is taken from the first heading or line of content.
// Without an explicit slug, one is derived from the title and suffixed
// with -2, -3, ... until free.
func (s *Service) CreateNote(ctx context.Context, in CreateInput) (*NoteDetail, error) {
	content := in.Content
	if content == nil {
		content = doctree.Empty()
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = parser.DeriveTitle(content)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", apperr.ErrInvalid)
	}
	explicit := parser.MergeTags(in.Tags, nil)
	n := models.Note{
		Title:        title,
		Content:      content,
		Tags:         parser.MergeTags(explicit, parser.ExtractTags(content)),
		ExplicitTags: explicit,
		Folder:       strings.TrimSpace(in.Folder),
	}

	var (
		id  string
		err error
	)
	if in.Slug != "" {
		n.Slug = slug.Make(in.Slug)
		if n.Slug == "" {
			return nil, fmt.Errorf("%w: slug %q has no usable characters", apperr.ErrInvalid, in.Slug)
		}
		id, err = s.store.CreateNote(ctx, n)
	} else {
		id, err = s.createWithDerivedSlug(ctx, n)
	}
	if err != nil {
		return nil, err
	}

	created, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.scheduleResolve(ctx, created)
	s.publish(EventCreated, created)
	return s.buildNoteDetail(ctx, created)
}

func (s *Service) createWithDerivedSlug(ctx context.Context, n models.Note) (string, error) {
	base := slug.Make(n.Title)
	if base == "" {
		base = fallbackSlug
	}
	for i := 1; i <= maxSlugAttempts; i++ {
		candidate := slug.WithSuffix(base, i)
		ok, err := s.IsSlugAvailable(ctx, candidate, "")
		if err != nil {
			return "", err
		}
		if !ok {
			continue
		}
		n.Slug = candidate
		id, err := s.store.CreateNote(ctx, n)
		if errors.Is(err, apperr.ErrAlreadyExists) {
			// Lost a race for this candidate.
			continue
		}
		return id, err
	}
	return "", fmt.Errorf("noteservice: no free slug for %q: %w", base, apperr.ErrAlreadyExists)
}

// GetNote returns a note by id with its backlinks.
func (s *Service) GetNote(ctx context.Context, id string) (*NoteDetail, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, n)
}

// GetNoteBySlug returns the note with the given slug.
func (s *Service) GetNoteBySlug(ctx context.Context, sl string) (*NoteDetail, error) {
	n, err := s.noteBySlug(ctx, sl)
	if err != nil {
		return nil, err
	}
	return s.buildNoteDetail(ctx, n)
}

func (s *Service) noteBySlug(ctx context.Context, sl string) (*models.Note, error) {
	notes, err := s.store.NotesBySlug(ctx, sl)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, apperr.ErrNotFound
	}
	return &notes[0], nil
}

// UpdateNote applies a partial update with optional optimistic concurrency:
// IfMatch is checked by the store in the same write, so of two updates made
// from one version only the first succeeds. The slug never changes on edit.
func (s *Service) UpdateNote(ctx context.Context, id string, in UpdateInput) (*NoteDetail, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.IfMatch != "" && in.IfMatch != n.Checksum {
		return nil, apperr.ErrConflict
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", apperr.ErrInvalid)
		}
		n.Title = title
	}
	if in.Folder != nil {
		n.Folder = strings.TrimSpace(*in.Folder)
	}
	contentChanged := in.Content != nil
	if contentChanged {
		n.Content = in.Content
	}
	if in.Tags != nil {
		n.ExplicitTags = parser.MergeTags(*in.Tags, nil)
	}
	n.Tags = parser.MergeTags(n.ExplicitTags, parser.ExtractTags(n.Content))

	if err := s.store.UpdateNote(ctx, *n, in.IfMatch); err != nil {
		return nil, err
	}
	updated, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if contentChanged {
		s.scheduleResolve(ctx, updated)
	}
	s.publish(EventUpdated, updated)
	return s.buildNoteDetail(ctx, updated)
}

// DeleteNote removes a note. Edges that reference it are kept and dangle.
func (s *Service) DeleteNote(ctx context.Context, id string) error {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return err
	}
	s.publish(EventDeleted, n)
	return nil
}

// ListNotes returns paginated notes matching f.
func (s *Service) ListNotes(ctx context.Context, f models.NoteFilter) ([]NoteListItem, int, error) {
	notes, total, err := s.store.ListNotes(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	items := make([]NoteListItem, len(notes))
	for i := range notes {
		items[i] = toListItem(&notes[i])
	}
	return items, total, nil
}

// Search runs full-text search over titles and note text.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]store.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	res, err := s.store.SearchNotes(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(res), nil
}

// Graph returns every note and the distinct edges between live notes.
func (s *Service) Graph(ctx context.Context) ([]GraphNode, []GraphEdge, error) {
	notes, _, err := s.store.ListNotes(ctx, models.NoteFilter{Sort: "title"})
	if err != nil {
		return nil, nil, err
	}
	links, err := s.store.AllLinks(ctx)
	if err != nil {
		return nil, nil, err
	}

	nodes := make([]GraphNode, len(notes))
	alive := make(map[string]struct{}, len(notes))
	for i, n := range notes {
		nodes[i] = GraphNode{ID: n.ID, Slug: n.Slug, Title: n.Title}
		alive[n.ID] = struct{}{}
	}

	edges := make([]GraphEdge, 0, len(links))
	seen := make(map[GraphEdge]struct{}, len(links))
	for _, l := range links {
		e := GraphEdge{Source: l.SourceNoteID, Target: l.TargetNoteID}
		if _, ok := alive[e.Source]; !ok {
			continue
		}
		if _, ok := alive[e.Target]; !ok {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		edges = append(edges, e)
	}
	return nodes, edges, nil
}

// Backlinks returns every edge pointing at id, newest first. Entries whose
// source note is gone carry a nil Source.
func (s *Service) Backlinks(ctx context.Context, id string) ([]BacklinkItem, error) {
	bl, err := s.resolver.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	linker.SortByRecency(bl)
	return toBacklinkItems(bl), nil
}

// LinkingNotes returns the live notes that link to id, newest link first,
// one entry per note.
func (s *Service) LinkingNotes(ctx context.Context, id string) ([]NoteRef, error) {
	bl, err := s.resolver.Backlinks(ctx, id)
	if err != nil {
		return nil, err
	}
	bl = linker.ExistingOnly(bl)
	linker.SortByRecency(bl)

	out := []NoteRef{}
	seen := make(map[string]struct{}, len(bl))
	for _, b := range bl {
		if _, dup := seen[b.Source.ID]; dup {
			continue
		}
		seen[b.Source.ID] = struct{}{}
		out = append(out, *toNoteRef(b.Source))
	}
	return out, nil
}

// OutgoingLinks returns every edge leaving id. Entries whose target note is
// gone carry a nil Target.
func (s *Service) OutgoingLinks(ctx context.Context, id string) ([]OutgoingItem, error) {
	ol, err := s.resolver.OutgoingLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	return toOutgoingItems(ol), nil
}

// LinkedNotes returns the live notes id links to, one entry per note.
func (s *Service) LinkedNotes(ctx context.Context, id string) ([]NoteRef, error) {
	ol, err := s.resolver.OutgoingLinks(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []NoteRef{}
	seen := make(map[string]struct{}, len(ol))
	for _, o := range ol {
		if o.Target == nil {
			continue
		}
		if _, dup := seen[o.Target.ID]; dup {
			continue
		}
		seen[o.Target.ID] = struct{}{}
		out = append(out, *toNoteRef(o.Target))
	}
	return out, nil
}

// IsSlugAvailable reports whether no note other than excludeID uses sl.
func (s *Service) IsSlugAvailable(ctx context.Context, sl, excludeID string) (bool, error) {
	notes, err := s.store.NotesBySlug(ctx, sl)
	if err != nil {
		return false, err
	}
	for _, n := range notes {
		if n.ID != excludeID {
			return false, nil
		}
	}
	return true, nil
}

// ResolveNow resolves the stored content of id synchronously.
func (s *Service) ResolveNow(ctx context.Context, id string) (*linker.Result, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := s.resolver.Resolve(ctx, n.ID, n.Content)
	s.NotifyResolved(n.ID, res)
	return res, err
}

// RelinkSummary totals a Relink run.
type RelinkSummary struct {
	Notes   int `json:"notes"`
	Created int `json:"created"`
	Pruned  int `json:"pruned"`
	Failed  int `json:"failed"`
}

// Relink re-resolves every note. Per-note failures are counted and joined;
// the run continues past them.
func (s *Service) Relink(ctx context.Context) (*RelinkSummary, error) {
	notes, _, err := s.store.ListNotes(ctx, models.NoteFilter{Sort: "created_at"})
	if err != nil {
		return nil, err
	}
	sum := &RelinkSummary{}
	var errs []error
	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Notes++
		res, err := s.resolver.Resolve(ctx, n.ID, n.Content)
		if res != nil {
			sum.Created += res.Created
			sum.Pruned += res.Pruned
		}
		if err != nil {
			sum.Failed++
			errs = append(errs, fmt.Errorf("noteservice: relink %s: %w", n.ID, err))
		}
	}
	s.logger.Info("relink finished",
		slog.Int("notes", sum.Notes),
		slog.Int("created", sum.Created),
		slog.Int("pruned", sum.Pruned),
		slog.Int("failed", sum.Failed))
	return sum, errors.Join(errs...)
}

// NotifyResolved publishes the outcome of a resolution pass. It is also the
// background worker's completion hook.
func (s *Service) NotifyResolved(noteID string, res *linker.Result) {
	if s.events == nil || res == nil {
		return
	}
	s.events.PublishLinksResolved(noteID, res)
}

// scheduleResolve hands n to the background queue, or resolves inline when
// no queue is configured. It never fails the save.
func (s *Service) scheduleResolve(ctx context.Context, n *models.Note) {
	if s.queue == nil {
		res, err := s.resolver.Resolve(ctx, n.ID, n.Content)
		if err != nil {
			s.logger.Warn("resolve links failed",
				slog.String("note_id", n.ID),
				slog.String("error", err.Error()))
		}
		s.NotifyResolved(n.ID, res)
		return
	}
	job := queue.Job{NoteID: n.ID, EnqueuedAt: time.Now().UTC()}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("enqueue resolve job failed",
			slog.String("note_id", n.ID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) publish(kind string, n *models.Note) {
	if s.events != nil {
		s.events.PublishNoteEvent(kind, n.ID, n.Slug)
	}
}

func (s *Service) buildNoteDetail(ctx context.Context, n *models.Note) (*NoteDetail, error) {
	bl, err := s.Backlinks(ctx, n.ID)
	if err != nil {
		return nil, err
	}
	return &NoteDetail{
		ID:        n.ID,
		Title:     n.Title,
		Slug:      n.Slug,
		Content:   doctree.Document{Root: n.Content},
		Tags:      nonNilSlice(n.Tags),
		Folder:    n.Folder,
		Checksum:  n.Checksum,
		Backlinks: bl,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
