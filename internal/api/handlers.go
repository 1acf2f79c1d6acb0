package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/slug"
	"github.com/starford/learnlog/internal/tracker"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *noteservice.Service
	tracker *tracker.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, tr *tracker.Service) *Handler {
	return &Handler{svc: svc, tracker: tr}
}

// ListNotes handles GET /api/notes.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lq := listQuery{
		Tag:    q.Get("tag"),
		Folder: q.Get("folder"),
		Sort:   q.Get("sort"),
	}
	var err error
	if lq.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("limit must be an integer"))
		return
	}
	if lq.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("offset must be an integer"))
		return
	}
	if err := lq.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	items, total, err := h.svc.ListNotes(r.Context(), models.NoteFilter{
		Tag:    lq.Tag,
		Folder: lq.Folder,
		Sort:   lq.Sort,
		Limit:  lq.Limit,
		Offset: lq.Offset,
	})
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: items, Total: total})
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, "get note", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// GetNoteBySlug handles GET /api/notes/by-slug/{slug}.
func (h *Handler) GetNoteBySlug(w http.ResponseWriter, r *http.Request) {
	s := chi.URLParam(r, "slug")
	note, err := h.svc.GetNoteBySlug(r.Context(), s)
	if err != nil {
		writeError(w, "get note by slug", err, slog.String("slug", s))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// CreateNote handles POST /api/notes.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req CreateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	content, _, err := decodeContent(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid content document"))
		return
	}

	note, err := h.svc.CreateNote(r.Context(), noteservice.CreateInput{
		Title:   req.Title,
		Slug:    req.Slug,
		Content: content,
		Tags:    req.Tags,
		Folder:  req.Folder,
	})
	if err != nil {
		writeError(w, "create note", err, slog.String("title", req.Title))
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// UpdateNote handles PUT /api/notes/{id}. An If-Match header carrying the
// note checksum turns on optimistic concurrency.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	content, _, err := decodeContent(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid content document"))
		return
	}

	in := noteservice.UpdateInput{
		Title:   req.Title,
		Content: content,
		Folder:  req.Folder,
		// Strip surrounding quotes if present (standard ETag format).
		IfMatch: strings.Trim(r.Header.Get("If-Match"), `"`),
	}
	if req.Tags != nil {
		in.Tags = &req.Tags
	}

	note, err := h.svc.UpdateNote(r.Context(), id, in)
	if err != nil {
		writeError(w, "update note", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteNote(r.Context(), id); err != nil {
		writeError(w, "delete note", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Backlinks handles GET /api/notes/{id}/backlinks.
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bl, err := h.svc.Backlinks(r.Context(), id)
	if err != nil {
		writeError(w, "backlinks", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Backlinks: bl})
}

// OutgoingLinks handles GET /api/notes/{id}/links.
func (h *Handler) OutgoingLinks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	links, err := h.svc.OutgoingLinks(r.Context(), id)
	if err != nil {
		writeError(w, "outgoing links", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, OutgoingLinksResponse{Links: links})
}

// Resolve handles POST /api/notes/{id}/resolve. Partial failures still
// return 200 with complete=false; the counts say what happened.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, err := h.svc.ResolveNow(r.Context(), id)
	if res == nil {
		writeError(w, "resolve links", err, slog.String("id", id))
		return
	}
	if err != nil {
		slog.Warn("resolve links incomplete", slog.String("id", id), slog.String("error", err.Error()))
	}
	writeJSON(w, http.StatusOK, ResolveResponse{Result: res, Complete: err == nil})
}

// SlugAvailable handles GET /api/slugs/{slug}. The path value is
// normalised first, so a raw title can be checked too.
func (h *Handler) SlugAvailable(w http.ResponseWriter, r *http.Request) {
	s := slug.Make(chi.URLParam(r, "slug"))
	if s == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("slug has no usable characters"))
		return
	}
	ok, err := h.svc.IsSlugAvailable(r.Context(), s, r.URL.Query().Get("exclude"))
	if err != nil {
		writeError(w, "slug availability", err, slog.String("slug", s))
		return
	}
	writeJSON(w, http.StatusOK, SlugResponse{Slug: s, Available: ok})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Graph handles GET /api/graph.
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Links: links})
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
