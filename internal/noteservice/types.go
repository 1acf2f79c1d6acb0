// Package noteservice implements the note save path: CRUD over the record
// store, slug assignment, link resolution scheduling and change events.
package noteservice

import (
	"time"

	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
)

// NoteDetail is the full representation of a note.
type NoteDetail struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Slug      string           `json:"slug"`
	Content   doctree.Document `json:"content"`
	Tags      []string         `json:"tags"`
	Folder    string           `json:"folder,omitempty"`
	Checksum  string           `json:"checksum"`
	Backlinks []BacklinkItem   `json:"backlinks"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Tags      []string  `json:"tags"`
	Folder    string    `json:"folder,omitempty"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteRef identifies a note in link listings.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// BacklinkItem is one incoming edge. Source is nil when the linking note
// has been deleted.
type BacklinkItem struct {
	EdgeID    string    `json:"edge_id"`
	SourceID  string    `json:"source_id"`
	Source    *NoteRef  `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// OutgoingItem is one edge leaving a note. Target is nil when the linked
// note has been deleted.
type OutgoingItem struct {
	EdgeID    string    `json:"edge_id"`
	TargetID  string    `json:"target_id"`
	Target    *NoteRef  `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// GraphNode is a node in the link graph.
type GraphNode struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

// GraphEdge is a directed edge between two live notes.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func toListItem(n *models.Note) NoteListItem {
	return NoteListItem{
		ID:        n.ID,
		Title:     n.Title,
		Slug:      n.Slug,
		Tags:      nonNilSlice(n.Tags),
		Folder:    n.Folder,
		Checksum:  n.Checksum,
		UpdatedAt: n.UpdatedAt,
	}
}

func toNoteRef(n *models.Note) *NoteRef {
	if n == nil {
		return nil
	}
	return &NoteRef{ID: n.ID, Title: n.Title, Slug: n.Slug}
}

func toOutgoingItems(ol []models.OutgoingLink) []OutgoingItem {
	out := make([]OutgoingItem, len(ol))
	for i, o := range ol {
		out[i] = OutgoingItem{
			EdgeID:    o.Edge.ID,
			TargetID:  o.Edge.TargetNoteID,
			Target:    toNoteRef(o.Target),
			CreatedAt: o.Edge.CreatedAt,
		}
	}
	return out
}

func toBacklinkItems(bl []models.Backlink) []BacklinkItem {
	out := make([]BacklinkItem, len(bl))
	for i, b := range bl {
		out[i] = BacklinkItem{
			EdgeID:    b.Edge.ID,
			SourceID:  b.Edge.SourceNoteID,
			Source:    toNoteRef(b.Source),
			CreatedAt: b.Edge.CreatedAt,
		}
	}
	return out
}
