package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/parser"
)

const (
	minRating = 1
	maxRating = 5
)

// CreatePaper adds a paper to the reading list. An empty status is queue.
func (s *Service) CreatePaper(ctx context.Context, in PaperInput) (*PaperDetail, error) {
	p := models.Paper{
		Title:           strings.TrimSpace(in.Title),
		Authors:         trimAll(in.Authors),
		Year:            in.Year,
		Venue:           strings.TrimSpace(in.Venue),
		PDFURL:          strings.TrimSpace(in.PDFURL),
		Abstract:        in.Abstract,
		KeyContribution: in.KeyContribution,
		Status:          in.Status,
		Rating:          in.Rating,
		Tags:            parser.MergeTags(in.Tags, nil),
	}
	if p.Status == "" {
		p.Status = models.PaperQueue
	}
	if err := checkPaper(p); err != nil {
		return nil, err
	}
	id, err := s.store.CreatePaper(ctx, p)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("paper created", slog.String("id", id), slog.String("status", string(p.Status)))
	return s.GetPaper(ctx, id)
}

// GetPaper returns a paper with its related notes.
func (s *Service) GetPaper(ctx context.Context, id string) (*PaperDetail, error) {
	p, err := s.store.GetPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.buildPaperDetail(ctx, p)
}

// UpdatePaper applies a partial update.
func (s *Service) UpdatePaper(ctx context.Context, id string, in PaperUpdate) (*PaperDetail, error) {
	p, err := s.store.GetPaper(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Authors != nil {
		p.Authors = trimAll(*in.Authors)
	}
	if in.Year != nil {
		p.Year = in.Year
	}
	if in.Venue != nil {
		p.Venue = strings.TrimSpace(*in.Venue)
	}
	if in.PDFURL != nil {
		p.PDFURL = strings.TrimSpace(*in.PDFURL)
	}
	if in.Abstract != nil {
		p.Abstract = *in.Abstract
	}
	if in.KeyContribution != nil {
		p.KeyContribution = *in.KeyContribution
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Rating != nil {
		p.Rating = in.Rating
	}
	if in.Tags != nil {
		p.Tags = parser.MergeTags(*in.Tags, nil)
	}
	if err := checkPaper(*p); err != nil {
		return nil, err
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.store.UpdatePaper(ctx, *p); err != nil {
		return nil, err
	}
	return s.buildPaperDetail(ctx, p)
}

// DeletePaper removes a paper and its relations. Related notes are kept.
func (s *Service) DeletePaper(ctx context.Context, id string) error {
	return s.store.DeletePaper(ctx, id)
}

// ListPapers returns papers by most recent update, optionally narrowed to
// one status.
func (s *Service) ListPapers(ctx context.Context, status models.PaperStatus) ([]PaperRef, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, status)
	}
	papers, err := s.store.ListPapers(ctx, status)
	if err != nil {
		return nil, err
	}
	out := make([]PaperRef, len(papers))
	for i := range papers {
		out[i] = toPaperRef(&papers[i])
	}
	return out, nil
}

// LinkNote relates a paper to a note. Both must exist.
func (s *Service) LinkNote(ctx context.Context, paperID, noteID string) error {
	if _, err := s.store.GetPaper(ctx, paperID); err != nil {
		return err
	}
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return err
	}
	return s.store.LinkPaperNote(ctx, paperID, noteID)
}

// UnlinkNote removes the relation between a paper and a note, if any.
func (s *Service) UnlinkNote(ctx context.Context, paperID, noteID string) error {
	return s.store.UnlinkPaperNote(ctx, paperID, noteID)
}

// PapersForNote returns the papers related to a note. The slice is never
// nil.
func (s *Service) PapersForNote(ctx context.Context, noteID string) ([]PaperRef, error) {
	if _, err := s.store.GetNote(ctx, noteID); err != nil {
		return nil, err
	}
	ids, err := s.store.PaperIDsForNote(ctx, noteID)
	if err != nil {
		return nil, err
	}
	return s.paperRefs(ctx, ids)
}

func (s *Service) buildPaperDetail(ctx context.Context, p *models.Paper) (*PaperDetail, error) {
	ids, err := s.store.NoteIDsForPaper(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	notes := make([]noteservice.NoteRef, 0, len(ids))
	for _, id := range ids {
		n, err := s.store.GetNote(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		notes = append(notes, noteservice.NoteRef{ID: n.ID, Title: n.Title, Slug: n.Slug})
	}
	return &PaperDetail{
		ID:              p.ID,
		Title:           p.Title,
		Authors:         nonNil(p.Authors),
		Year:            p.Year,
		Venue:           p.Venue,
		PDFURL:          p.PDFURL,
		Abstract:        p.Abstract,
		KeyContribution: p.KeyContribution,
		Status:          p.Status,
		Rating:          p.Rating,
		Tags:            nonNil(p.Tags),
		Notes:           notes,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

// paperRefs looks up ids, skipping papers deleted in the meantime.
func (s *Service) paperRefs(ctx context.Context, ids []string) ([]PaperRef, error) {
	out := make([]PaperRef, 0, len(ids))
	for _, id := range ids {
		p, err := s.store.GetPaper(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, toPaperRef(p))
	}
	return out, nil
}

func checkPaper(p models.Paper) error {
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: title is required", apperr.ErrInvalid)
	case !p.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, p.Status)
	case p.Rating != nil && (*p.Rating < minRating || *p.Rating > maxRating):
		return fmt.Errorf("%w: rating must be between %d and %d", apperr.ErrInvalid, minRating, maxRating)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
