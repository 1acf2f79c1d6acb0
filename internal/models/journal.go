package models

import (
	"time"

	"github.com/starford/learnlog/internal/doctree"
)

// JournalDateLayout is the calendar-day key of a journal entry.
const JournalDateLayout = "2006-01-02"

// JournalEntry is the log for one calendar day. Tags holds the explicit
// tags only; inline #tags are read from Content.
type JournalEntry struct {
	ID        string
	Date      string
	Content   doctree.Node
	TimeSpent *int // minutes
	Mood      string
	Tags      []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
