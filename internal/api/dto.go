package api

import (
	"bytes"
	"encoding/json"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/linker"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/store"
)

const (
	maxTitleLen  = 300
	maxSlugLen   = 200
	maxTagLen    = 64
	maxFolderLen = 200
	maxListLimit = 500
)

// CreateNoteRequest is the request body for creating a note.
// Content is the editor document JSON.
type CreateNoteRequest struct {
	Title   string          `json:"title" example:"Attention Is All You Need"`
	Slug    string          `json:"slug,omitempty" example:"attention-is-all-you-need"`
	Content json.RawMessage `json:"content,omitempty"`
	Tags    []string        `json:"tags,omitempty" example:"ml,papers"`
	Folder  string          `json:"folder,omitempty" example:"papers"`
}

// Validate validates the request.
func (r CreateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, maxTitleLen)),
		validation.Field(&r.Slug, validation.Length(0, maxSlugLen)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
		validation.Field(&r.Folder, validation.Length(0, maxFolderLen)),
	)
}

// UpdateNoteRequest is a partial update. Absent fields are left unchanged;
// "tags": [] clears explicit tags.
type UpdateNoteRequest struct {
	Title   *string         `json:"title,omitempty" example:"Renamed"`
	Content json.RawMessage `json:"content,omitempty"`
	Tags    []string        `json:"tags,omitempty"`
	Folder  *string         `json:"folder,omitempty"`
}

// Validate validates the request.
func (r UpdateNoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, maxTitleLen)),
		validation.Field(&r.Tags, validation.Each(validation.Required, validation.Length(1, maxTagLen))),
		validation.Field(&r.Folder, validation.Length(0, maxFolderLen)),
	)
}

// listQuery holds GET /notes query parameters.
type listQuery struct {
	Limit  int
	Offset int
	Tag    string
	Folder string
	Sort   string
}

func (q listQuery) Validate() error {
	return validation.ValidateStruct(&q,
		validation.Field(&q.Limit, validation.Min(0), validation.Max(maxListLimit)),
		validation.Field(&q.Offset, validation.Min(0)),
		validation.Field(&q.Sort, validation.In("updated_at", "created_at", "title")),
	)
}

// decodeContent turns raw editor JSON into a document. ok is false when the
// field was absent or null.
func decodeContent(raw json.RawMessage) (doc doctree.Node, ok bool, err error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, false, nil
	}
	doc, err = doctree.Decode(trimmed)
	if err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

// NoteDetail is the full note response type (aliased from the domain layer).
type NoteDetail = noteservice.NoteDetail

// NoteListItem is a lightweight item in a list response (aliased from the domain layer).
type NoteListItem = noteservice.NoteListItem

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes"`
	Total int            `json:"total" example:"42"`
}

// BacklinksResponse wraps a backlink listing.
type BacklinksResponse struct {
	Backlinks []noteservice.BacklinkItem `json:"backlinks"`
}

// OutgoingLinksResponse wraps the edges leaving a note.
type OutgoingLinksResponse struct {
	Links []noteservice.OutgoingItem `json:"links"`
}

// ResolveResponse reports a synchronous resolution pass.
type ResolveResponse struct {
	Result   *linker.Result `json:"result"`
	Complete bool           `json:"complete"`
}

// SlugResponse answers a slug availability check.
type SlugResponse struct {
	Slug      string `json:"slug" example:"attention-is-all-you-need"`
	Available bool   `json:"available"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []store.SearchResult `json:"results"`
}

// GraphResponse wraps the link graph.
type GraphResponse struct {
	Nodes []noteservice.GraphNode `json:"nodes"`
	Links []noteservice.GraphEdge `json:"links"`
}
