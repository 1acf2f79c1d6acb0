// Package models defines the domain types for learnlog.
package models

import (
	"time"

	"github.com/starford/learnlog/internal/doctree"
)

// Note is a rich-text note addressable by its slug. Tags is ExplicitTags
// merged with the inline #tags of Content.
type Note struct {
	ID           string
	Title        string
	Slug         string
	Content      doctree.Node
	Tags         []string
	ExplicitTags []string
	Folder       string
	Checksum     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NoteFilter narrows list queries. Zero values mean "no constraint".
type NoteFilter struct {
	Tag    string
	Folder string
	Sort   string // "updated_at" (default), "created_at" or "title"
	Limit  int
	Offset int
}

// LinkEdge is a directed edge meaning "source content references target".
type LinkEdge struct {
	ID           string    `json:"id"`
	SourceNoteID string    `json:"source_note_id"`
	TargetNoteID string    `json:"target_note_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Backlink pairs an edge with its source note. Source is nil when the
// source note has been deleted since the edge was created.
type Backlink struct {
	Edge   LinkEdge
	Source *Note
}

// OutgoingLink pairs an edge with its target note, nil when dangling.
type OutgoingLink struct {
	Edge   LinkEdge
	Target *Note
}
