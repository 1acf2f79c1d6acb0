package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/parser"
	"github.com/starford/learnlog/internal/slug"
)

// Today is accepted wherever a journal date is expected.
const Today = "today"

// NormalizeDate validates a YYYY-MM-DD date, resolving Today against the
// service clock.
func (s *Service) NormalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	if date == Today {
		return s.now().Format(models.JournalDateLayout), nil
	}
	d, err := time.Parse(models.JournalDateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: date %q is not YYYY-MM-DD", apperr.ErrInvalid, date)
	}
	return d.Format(models.JournalDateLayout), nil
}

// OpenEntry returns the entry for date, creating an empty one if the day
// has none yet. created reports whether this call made it.
func (s *Service) OpenEntry(ctx context.Context, date string) (detail *JournalDetail, created bool, err error) {
	date, err = s.NormalizeDate(date)
	if err != nil {
		return nil, false, err
	}
	e, err := s.store.JournalEntryByDate(ctx, date)
	if errors.Is(err, apperr.ErrNotFound) {
		_, err = s.store.CreateJournalEntry(ctx, models.JournalEntry{Date: date, Content: doctree.Empty()})
		switch {
		case err == nil:
			created = true
		case errors.Is(err, apperr.ErrAlreadyExists):
			// Another writer opened the same day first.
		default:
			return nil, false, err
		}
		e, err = s.store.JournalEntryByDate(ctx, date)
	}
	if err != nil {
		return nil, false, err
	}
	detail, err = s.buildJournalDetail(ctx, e)
	return detail, created, err
}

// CreateEntry stores a new entry. A day that already has one yields
// apperr.ErrAlreadyExists.
func (s *Service) CreateEntry(ctx context.Context, in JournalInput) (*JournalDetail, error) {
	date, err := s.NormalizeDate(in.Date)
	if err != nil {
		return nil, err
	}
	content := in.Content
	if content == nil {
		content = doctree.Empty()
	}
	e := models.JournalEntry{
		Date:      date,
		Content:   content,
		TimeSpent: in.TimeSpent,
		Mood:      strings.TrimSpace(in.Mood),
		Tags:      parser.MergeTags(in.Tags, nil),
	}
	if err := checkEntry(e); err != nil {
		return nil, err
	}
	if _, err := s.store.CreateJournalEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("create entry for %s: %w", date, err)
	}
	s.logger.Debug("journal entry created", slog.String("date", date))
	return s.GetEntry(ctx, date)
}

// GetEntry returns the entry for date.
func (s *Service) GetEntry(ctx context.Context, date string) (*JournalDetail, error) {
	e, err := s.entry(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.buildJournalDetail(ctx, e)
}

// UpdateEntry applies a partial update to the entry for date.
func (s *Service) UpdateEntry(ctx context.Context, date string, in JournalUpdate) (*JournalDetail, error) {
	e, err := s.entry(ctx, date)
	if err != nil {
		return nil, err
	}
	if in.Content != nil {
		e.Content = in.Content
	}
	if in.TimeSpent != nil {
		e.TimeSpent = in.TimeSpent
	}
	if in.Mood != nil {
		e.Mood = strings.TrimSpace(*in.Mood)
	}
	if in.Tags != nil {
		e.Tags = parser.MergeTags(*in.Tags, nil)
	}
	if err := checkEntry(*e); err != nil {
		return nil, err
	}
	e.UpdatedAt = s.now().UTC()
	if err := s.store.UpdateJournalEntry(ctx, *e); err != nil {
		return nil, err
	}
	return s.buildJournalDetail(ctx, e)
}

// DeleteEntry removes the entry for date and its paper relations.
func (s *Service) DeleteEntry(ctx context.Context, date string) error {
	e, err := s.entry(ctx, date)
	if err != nil {
		return err
	}
	return s.store.DeleteJournalEntry(ctx, e.ID)
}

// ListEntries returns the entries between from and to inclusive, oldest
// first. Either bound may be empty. The slice is never nil.
func (s *Service) ListEntries(ctx context.Context, from, to string) ([]JournalDetail, error) {
	var err error
	if from != "" {
		if from, err = s.NormalizeDate(from); err != nil {
			return nil, err
		}
	}
	if to != "" {
		if to, err = s.NormalizeDate(to); err != nil {
			return nil, err
		}
	}
	if from != "" && to != "" && from > to {
		return nil, fmt.Errorf("%w: from %s is after to %s", apperr.ErrInvalid, from, to)
	}
	entries, err := s.store.ListJournalEntries(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]JournalDetail, 0, len(entries))
	for i := range entries {
		d, err := s.buildJournalDetail(ctx, &entries[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

// LinkPaper records that a paper was worked on that day. The entry and the
// paper must exist.
func (s *Service) LinkPaper(ctx context.Context, date, paperID string) error {
	e, err := s.entry(ctx, date)
	if err != nil {
		return err
	}
	if _, err := s.store.GetPaper(ctx, paperID); err != nil {
		return err
	}
	return s.store.LinkJournalPaper(ctx, e.ID, paperID)
}

// UnlinkPaper removes a paper from the entry for date, if linked.
func (s *Service) UnlinkPaper(ctx context.Context, date, paperID string) error {
	e, err := s.entry(ctx, date)
	if err != nil {
		return err
	}
	return s.store.UnlinkJournalPaper(ctx, e.ID, paperID)
}

func (s *Service) entry(ctx context.Context, date string) (*models.JournalEntry, error) {
	date, err := s.NormalizeDate(date)
	if err != nil {
		return nil, err
	}
	return s.store.JournalEntryByDate(ctx, date)
}

func (s *Service) buildJournalDetail(ctx context.Context, e *models.JournalEntry) (*JournalDetail, error) {
	mentions, err := s.mentions(ctx, e.Content)
	if err != nil {
		return nil, err
	}
	ids, err := s.store.PaperIDsForJournal(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	papers, err := s.paperRefs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return &JournalDetail{
		ID:        e.ID,
		Date:      e.Date,
		Content:   doctree.Document{Root: e.Content},
		TimeSpent: e.TimeSpent,
		Mood:      e.Mood,
		Tags:      parser.MergeTags(e.Tags, parser.ExtractTags(e.Content)),
		Mentions:  mentions,
		Papers:    papers,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// mentions resolves the wiki-links of content to notes by slug. Links with
// no match or more than one match are left out; nothing is persisted.
func (s *Service) mentions(ctx context.Context, content doctree.Node) ([]noteservice.NoteRef, error) {
	out := []noteservice.NoteRef{}
	seen := make(map[string]struct{})
	for _, raw := range parser.ExtractLinks(content) {
		sl := slug.Make(raw)
		if sl == "" {
			continue
		}
		notes, err := s.store.NotesBySlug(ctx, sl)
		if err != nil {
			return nil, fmt.Errorf("resolve mention %q: %w", raw, err)
		}
		if len(notes) != 1 {
			continue
		}
		n := notes[0]
		if _, dup := seen[n.ID]; dup {
			continue
		}
		seen[n.ID] = struct{}{}
		out = append(out, noteservice.NoteRef{ID: n.ID, Title: n.Title, Slug: n.Slug})
	}
	return out, nil
}

func checkEntry(e models.JournalEntry) error {
	if e.TimeSpent != nil && *e.TimeSpent < 0 {
		return fmt.Errorf("%w: time spent cannot be negative", apperr.ErrInvalid)
	}
	return nil
}
