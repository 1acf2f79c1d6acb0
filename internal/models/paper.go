package models

import "time"

// PaperStatus tracks where a paper sits in the reading pipeline.
type PaperStatus string

const (
	PaperQueue       PaperStatus = "queue"
	PaperReading     PaperStatus = "reading"
	PaperCompleted   PaperStatus = "completed"
	PaperImplemented PaperStatus = "implemented"
)

// Valid reports whether s is a known status.
func (s PaperStatus) Valid() bool {
	switch s {
	case PaperQueue, PaperReading, PaperCompleted, PaperImplemented:
		return true
	}
	return false
}

// Paper is a research paper on the reading list. Year and Rating are nil
// when unknown.
type Paper struct {
	ID              string
	Title           string
	Authors         []string
	Year            *int
	Venue           string
	PDFURL          string
	Abstract        string
	KeyContribution string
	Status          PaperStatus
	Rating          *int
	Tags            []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
