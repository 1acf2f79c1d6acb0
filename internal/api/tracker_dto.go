package api

import (
	"encoding/json"
	"errors"
	"net/url"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/tracker"
)

const (
	maxAuthors     = 100
	maxAuthorLen   = 200
	maxVenueLen    = 200
	maxURLLen      = 2000
	maxAbstractLen = 20000
	maxMoodLen     = 32
	minYear        = 1000
	maxYear        = 3000
	maxTimeSpent   = 24 * 60
)

var paperStatuses = []any{
	models.PaperQueue, models.PaperReading, models.PaperCompleted, models.PaperImplemented,
}

var httpURL = validation.By(func(v any) error {
	v, _ = validation.Indirect(v)
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	u, err := url.ParseRequestURI(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
})

// CreatePaperRequest is the request body for adding a paper.
type CreatePaperRequest struct {
	Title           string             `json:"title" example:"Attention Is All You Need"`
	Authors         []string           `json:"authors,omitempty" example:"Vaswani,Shazeer"`
	Year            *int               `json:"year,omitempty" example:"2017"`
	Venue           string             `json:"venue,omitempty" example:"NeurIPS"`
	PDFURL          string             `json:"pdf_url,omitempty"`
	Abstract        string             `json:"abstract,omitempty"`
	KeyContribution string             `json:"key_contribution,omitempty"`
	Status          models.PaperStatus `json:"status,omitempty" example:"queue"`
	Rating          *int               `json:"rating,omitempty" example:"4"`
	Tags            []string           `json:"tags,omitempty"`
}

// Validate validates the request.
func (r CreatePaperRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, maxTitleLen)),
		validation.Field(&r.Authors, validation.Length(0, maxAuthors), validation.Each(validation.Length(0, maxAuthorLen))),
		validation.Field(&r.Year, validation.NilOrNotEmpty, validation.Min(minYear), validation.Max(maxYear)),
		validation.Field(&r.Venue, validation.Length(0, maxVenueLen)),
		validation.Field(&r.PDFURL, validation.Length(0, maxURLLen), httpURL),
		validation.Field(&r.Abstract, validation.Length(0, maxAbstractLen)),
		validation.Field(&r.KeyContribution, validation.Length(0, maxAbstractLen)),
		validation.Field(&r.Status, validation.In(paperStatuses...)),
		validation.Field(&r.Rating, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
	)
}

func (r CreatePaperRequest) input() tracker.PaperInput {
	return tracker.PaperInput{
		Title:           r.Title,
		Authors:         r.Authors,
		Year:            r.Year,
		Venue:           r.Venue,
		PDFURL:          r.PDFURL,
		Abstract:        r.Abstract,
		KeyContribution: r.KeyContribution,
		Status:          r.Status,
		Rating:          r.Rating,
		Tags:            r.Tags,
	}
}

// UpdatePaperRequest is a partial update. Absent fields are left unchanged.
type UpdatePaperRequest struct {
	Title           *string             `json:"title,omitempty"`
	Authors         []string            `json:"authors,omitempty"`
	Year            *int                `json:"year,omitempty"`
	Venue           *string             `json:"venue,omitempty"`
	PDFURL          *string             `json:"pdf_url,omitempty"`
	Abstract        *string             `json:"abstract,omitempty"`
	KeyContribution *string             `json:"key_contribution,omitempty"`
	Status          *models.PaperStatus `json:"status,omitempty" example:"reading"`
	Rating          *int                `json:"rating,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
}

// Validate validates the request.
func (r UpdatePaperRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, maxTitleLen)),
		validation.Field(&r.Authors, validation.Length(0, maxAuthors), validation.Each(validation.Length(0, maxAuthorLen))),
		validation.Field(&r.Year, validation.Min(minYear), validation.Max(maxYear)),
		validation.Field(&r.Venue, validation.Length(0, maxVenueLen)),
		validation.Field(&r.PDFURL, validation.Length(0, maxURLLen), httpURL),
		validation.Field(&r.Abstract, validation.Length(0, maxAbstractLen)),
		validation.Field(&r.KeyContribution, validation.Length(0, maxAbstractLen)),
		validation.Field(&r.Status, validation.In(paperStatuses...)),
		validation.Field(&r.Rating, validation.Min(1), validation.Max(5)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
	)
}

func (r UpdatePaperRequest) update() tracker.PaperUpdate {
	u := tracker.PaperUpdate{
		Title:           r.Title,
		Year:            r.Year,
		Venue:           r.Venue,
		PDFURL:          r.PDFURL,
		Abstract:        r.Abstract,
		KeyContribution: r.KeyContribution,
		Status:          r.Status,
		Rating:          r.Rating,
	}
	if r.Authors != nil {
		u.Authors = &r.Authors
	}
	if r.Tags != nil {
		u.Tags = &r.Tags
	}
	return u
}

// JournalEntryRequest is the body for creating or updating a journal entry.
// Date is only read on create; absent fields are left unchanged on update.
type JournalEntryRequest struct {
	Date      string          `json:"date,omitempty" example:"2026-03-09"`
	Content   json.RawMessage `json:"content,omitempty"`
	TimeSpent *int            `json:"time_spent,omitempty" example:"90"`
	Mood      *string         `json:"mood,omitempty" example:"focused"`
	Tags      []string        `json:"tags,omitempty"`
}

// Validate validates the request.
func (r JournalEntryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TimeSpent, validation.Min(0), validation.Max(maxTimeSpent)),
		validation.Field(&r.Mood, validation.Length(0, maxMoodLen)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
	)
}

// PaperListResponse wraps a paper listing.
type PaperListResponse struct {
	Papers []tracker.PaperRef `json:"papers"`
}

// JournalListResponse wraps a range of journal entries.
type JournalListResponse struct {
	Entries []tracker.JournalDetail `json:"entries"`
}
