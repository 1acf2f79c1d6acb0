// Package linker resolves [[wiki-links]] in note content to link edges and
// answers backlink queries over those edges.
package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/parser"
	"github.com/starford/learnlog/internal/slug"
)

// ErrAmbiguousSlug marks a link whose slug matched more than one note.
// Such links are skipped, never linked to an arbitrary match.
var ErrAmbiguousSlug = errors.New("linker: ambiguous slug match")

// LookupError reports a failed slug lookup for one link.
type LookupError struct {
	Link string
	Slug string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("linker: resolve %q (slug %q): %v", e.Link, e.Slug, e.Err)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Store is the subset of the record store the resolver needs.
type Store interface {
	GetNote(ctx context.Context, id string) (*models.Note, error)
	NotesBySlug(ctx context.Context, slug string) ([]models.Note, error)
	CreateLink(ctx context.Context, e models.LinkEdge) (string, error)
	DeleteLink(ctx context.Context, id string) error
	LinksBySource(ctx context.Context, sourceID string) ([]models.LinkEdge, error)
	LinksByTarget(ctx context.Context, targetID string) ([]models.LinkEdge, error)
}

// Policy controls edge bookkeeping across repeated saves.
type Policy struct {
	// Dedupe skips creating an edge when one already exists for the same
	// source and target, and removes surplus duplicates.
	Dedupe bool
	// Prune deletes outgoing edges whose target is no longer referenced.
	Prune bool
}

// DefaultPolicy keeps one edge per referenced target.
func DefaultPolicy() Policy {
	return Policy{Dedupe: true, Prune: true}
}

// AppendOnly never deduplicates or removes edges.
func AppendOnly() Policy {
	return Policy{}
}

// Result summarises one resolution pass.
type Result struct {
	Links      int `json:"links"`
	Created    int `json:"created"`
	Existing   int `json:"existing"`
	Unresolved int `json:"unresolved"`
	Ambiguous  int `json:"ambiguous"`
	Failed     int `json:"failed"`
	Pruned     int `json:"pruned"`
}

// Resolver turns wiki-links into link edges.
type Resolver struct {
	store       Store
	policy      Policy
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithPolicy sets the edge policy.
func WithPolicy(p Policy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithConcurrency bounds the number of concurrent slug lookups.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithClock overrides the edge timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Resolver over store.
func New(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:       store,
		policy:      DefaultPolicy(),
		concurrency: 4,
		logger:      slog.Default(),
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// target is one distinct slug with the raw link text that produced it first.
type target struct {
	link string
	slug string
}

// Resolve scans doc for wiki-links and creates an edge from sourceID to every
// note whose slug matches exactly one link. Lookups of different links are
// independent: a failure is reported as a *LookupError in the joined error
// and never aborts sibling lookups or rolls back created edges.
func (r *Resolver) Resolve(ctx context.Context, sourceID string, doc doctree.Node) (*Result, error) {
	links := parser.ExtractLinks(doc)
	res := &Result{Links: len(links)}
	if len(links) == 0 && !r.policy.Prune {
		return res, nil
	}

	targets := make([]target, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		s := slug.Make(link)
		if s == "" {
			res.Unresolved++
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		targets = append(targets, target{link: link, slug: s})
	}

	var existing []models.LinkEdge
	if r.policy.Dedupe || r.policy.Prune {
		var err error
		existing, err = r.store.LinksBySource(ctx, sourceID)
		if err != nil {
			return res, fmt.Errorf("linker: load outgoing links: %w", err)
		}
	}
	linked := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		linked[e.TargetNoteID] = struct{}{}
	}

	var (
		mu   sync.Mutex
		errs []error
		keep = make(map[string]struct{})
	)
	g := new(errgroup.Group)
	g.SetLimit(r.concurrency)
	for _, t := range targets {
		g.Go(func() error {
			outcome, ids, err := r.resolveOne(ctx, sourceID, t, linked)

			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				keep[id] = struct{}{}
			}
			switch outcome {
			case outcomeCreated:
				res.Created++
			case outcomeExisting:
				res.Existing++
			case outcomeUnresolved:
				res.Unresolved++
			case outcomeAmbiguous:
				res.Ambiguous++
			case outcomeFailed:
				res.Failed++
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	// A failed lookup leaves its target unknown; pruning could drop a live edge.
	if r.policy.Prune && res.Failed == 0 {
		n, err := r.prune(ctx, existing, keep)
		res.Pruned = n
		if err != nil {
			errs = append(errs, err)
		}
	}

	r.logger.Debug("links resolved",
		slog.String("note_id", sourceID),
		slog.Int("links", res.Links),
		slog.Int("created", res.Created),
		slog.Int("existing", res.Existing),
		slog.Int("unresolved", res.Unresolved),
		slog.Int("ambiguous", res.Ambiguous),
		slog.Int("failed", res.Failed),
		slog.Int("pruned", res.Pruned))

	return res, errors.Join(errs...)
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeExisting
	outcomeUnresolved
	outcomeAmbiguous
	outcomeFailed
)

// resolveOne looks up t and creates its edge. It returns the note ids whose
// existing edges must survive pruning.
func (r *Resolver) resolveOne(ctx context.Context, sourceID string, t target, linked map[string]struct{}) (outcome, []string, error) {
	matches, err := r.store.NotesBySlug(ctx, t.slug)
	if err != nil {
		return outcomeFailed, nil, &LookupError{Link: t.link, Slug: t.slug, Err: err}
	}

	switch len(matches) {
	case 0:
		return outcomeUnresolved, nil, nil
	case 1:
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		r.logger.Warn("skipping ambiguous wiki-link",
			slog.String("note_id", sourceID),
			slog.String("link", t.link),
			slog.String("slug", t.slug),
			slog.Int("matches", len(matches)),
			slog.String("error", ErrAmbiguousSlug.Error()))
		return outcomeAmbiguous, ids, nil
	}

	targetID := matches[0].ID
	if r.policy.Dedupe {
		if _, ok := linked[targetID]; ok {
			return outcomeExisting, []string{targetID}, nil
		}
	}

	// The target may be deleted after the lookup; the edge then dangles,
	// which backlink readers tolerate.
	_, err = r.store.CreateLink(ctx, models.LinkEdge{
		SourceNoteID: sourceID,
		TargetNoteID: targetID,
		CreatedAt:    r.now(),
	})
	if err != nil {
		return outcomeFailed, []string{targetID}, fmt.Errorf("linker: create link %s -> %s: %w", sourceID, targetID, err)
	}
	return outcomeCreated, []string{targetID}, nil
}

// prune deletes edges whose target is not in keep and, under Dedupe, every
// edge after the first for a kept target.
func (r *Resolver) prune(ctx context.Context, existing []models.LinkEdge, keep map[string]struct{}) (int, error) {
	var (
		pruned int
		errs   []error
		first  = make(map[string]struct{}, len(existing))
	)
	for _, e := range existing {
		_, kept := keep[e.TargetNoteID]
		if kept {
			if _, dup := first[e.TargetNoteID]; !dup || !r.policy.Dedupe {
				first[e.TargetNoteID] = struct{}{}
				continue
			}
		}
		if err := r.store.DeleteLink(ctx, e.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, fmt.Errorf("linker: prune link %s: %w", e.ID, err))
			continue
		}
		pruned++
	}
	return pruned, errors.Join(errs...)
}

// Backlinks returns every edge pointing at targetID with its source note.
// Source is nil for edges whose source note no longer exists.
func (r *Resolver) Backlinks(ctx context.Context, targetID string) ([]models.Backlink, error) {
	edges, err := r.store.LinksByTarget(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("linker: backlinks: %w", err)
	}
	notes := newNoteCache(r.store)
	out := make([]models.Backlink, 0, len(edges))
	for _, e := range edges {
		src, err := notes.get(ctx, e.SourceNoteID)
		if err != nil {
			return nil, fmt.Errorf("linker: backlink source %s: %w", e.SourceNoteID, err)
		}
		out = append(out, models.Backlink{Edge: e, Source: src})
	}
	return out, nil
}

// OutgoingLinks returns every edge leaving sourceID with its target note.
func (r *Resolver) OutgoingLinks(ctx context.Context, sourceID string) ([]models.OutgoingLink, error) {
	edges, err := r.store.LinksBySource(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("linker: outgoing links: %w", err)
	}
	notes := newNoteCache(r.store)
	out := make([]models.OutgoingLink, 0, len(edges))
	for _, e := range edges {
		dst, err := notes.get(ctx, e.TargetNoteID)
		if err != nil {
			return nil, fmt.Errorf("linker: link target %s: %w", e.TargetNoteID, err)
		}
		out = append(out, models.OutgoingLink{Edge: e, Target: dst})
	}
	return out, nil
}

// ExistingOnly drops backlinks whose source note is gone.
func ExistingOnly(bl []models.Backlink) []models.Backlink {
	out := make([]models.Backlink, 0, len(bl))
	for _, b := range bl {
		if b.Source != nil {
			out = append(out, b)
		}
	}
	return out
}

// SortByRecency orders backlinks by edge creation time, newest first.
func SortByRecency(bl []models.Backlink) {
	slices.SortStableFunc(bl, func(a, b models.Backlink) int {
		return b.Edge.CreatedAt.Compare(a.Edge.CreatedAt)
	})
}

// noteCache memoises note lookups within one query; nil means deleted.
type noteCache struct {
	store Store
	notes map[string]*models.Note
}

func newNoteCache(store Store) *noteCache {
	return &noteCache{store: store, notes: make(map[string]*models.Note)}
}

func (c *noteCache) get(ctx context.Context, id string) (*models.Note, error) {
	if n, ok := c.notes[id]; ok {
		return n, nil
	}
	n, err := c.store.GetNote(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		n, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.notes[id] = n
	return n, nil
}
