// Package tracker keeps the reading list and the daily journal: papers with
// their related notes, and one journal entry per calendar day whose
// [[wiki-links]] and #tags are read the same way as in notes.
package tracker

import (
	"time"

	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/noteservice"
)

// PaperDetail is the full representation of a paper.
type PaperDetail struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	Authors         []string              `json:"authors"`
	Year            *int                  `json:"year,omitempty"`
	Venue           string                `json:"venue,omitempty"`
	PDFURL          string                `json:"pdf_url,omitempty"`
	Abstract        string                `json:"abstract,omitempty"`
	KeyContribution string                `json:"key_contribution,omitempty"`
	Status          models.PaperStatus    `json:"status"`
	Rating          *int                  `json:"rating,omitempty"`
	Tags            []string              `json:"tags"`
	Notes           []noteservice.NoteRef `json:"notes"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// PaperRef identifies a paper in relation listings.
type PaperRef struct {
	ID     string             `json:"id"`
	Title  string             `json:"title"`
	Status models.PaperStatus `json:"status"`
}

// JournalDetail is one day's entry. Tags merges the explicit tags with the
// inline #tags of Content; Mentions are the notes its wiki-links resolve to.
type JournalDetail struct {
	ID        string                `json:"id"`
	Date      string                `json:"date"`
	Content   doctree.Document      `json:"content"`
	TimeSpent *int                  `json:"time_spent,omitempty"`
	Mood      string                `json:"mood,omitempty"`
	Tags      []string              `json:"tags"`
	Mentions  []noteservice.NoteRef `json:"mentions"`
	Papers    []PaperRef            `json:"papers"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// PaperInput holds the fields of a new paper.
type PaperInput struct {
	Title           string
	Authors         []string
	Year            *int
	Venue           string
	PDFURL          string
	Abstract        string
	KeyContribution string
	Status          models.PaperStatus
	Rating          *int
	Tags            []string
}

// PaperUpdate is a partial update; nil fields are left unchanged.
type PaperUpdate struct {
	Title           *string
	Authors         *[]string
	Year            *int
	Venue           *string
	PDFURL          *string
	Abstract        *string
	KeyContribution *string
	Status          *models.PaperStatus
	Rating          *int
	Tags            *[]string
}

// JournalInput holds the fields of a new entry. Content may be nil.
type JournalInput struct {
	Date      string
	Content   doctree.Node
	TimeSpent *int
	Mood      string
	Tags      []string
}

// JournalUpdate is a partial update; nil fields are left unchanged.
type JournalUpdate struct {
	Content   doctree.Node
	TimeSpent *int
	Mood      *string
	Tags      *[]string
}

func toPaperRef(p *models.Paper) PaperRef {
	return PaperRef{ID: p.ID, Title: p.Title, Status: p.Status}
}
