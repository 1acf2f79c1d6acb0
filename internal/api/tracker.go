package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/tracker"
)

// ListPapers handles GET /api/papers.
func (h *Handler) ListPapers(w http.ResponseWriter, r *http.Request) {
	status := models.PaperStatus(r.URL.Query().Get("status"))
	papers, err := h.tracker.ListPapers(r.Context(), status)
	if err != nil {
		writeError(w, "list papers", err)
		return
	}
	writeJSON(w, http.StatusOK, PaperListResponse{Papers: papers})
}

// CreatePaper handles POST /api/papers.
func (h *Handler) CreatePaper(w http.ResponseWriter, r *http.Request) {
	var req CreatePaperRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.tracker.CreatePaper(r.Context(), req.input())
	if err != nil {
		writeError(w, "create paper", err, slog.String("title", req.Title))
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetPaper handles GET /api/papers/{id}.
func (h *Handler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.tracker.GetPaper(r.Context(), id)
	if err != nil {
		writeError(w, "get paper", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// UpdatePaper handles PUT /api/papers/{id}.
func (h *Handler) UpdatePaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdatePaperRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.tracker.UpdatePaper(r.Context(), id, req.update())
	if err != nil {
		writeError(w, "update paper", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeletePaper handles DELETE /api/papers/{id}.
func (h *Handler) DeletePaper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.tracker.DeletePaper(r.Context(), id); err != nil {
		writeError(w, "delete paper", err, slog.String("id", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkPaperNote handles PUT /api/papers/{id}/notes/{noteID}.
func (h *Handler) LinkPaperNote(w http.ResponseWriter, r *http.Request) {
	id, noteID := chi.URLParam(r, "id"), chi.URLParam(r, "noteID")
	if err := h.tracker.LinkNote(r.Context(), id, noteID); err != nil {
		writeError(w, "link paper note", err, slog.String("id", id), slog.String("note_id", noteID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkPaperNote handles DELETE /api/papers/{id}/notes/{noteID}.
func (h *Handler) UnlinkPaperNote(w http.ResponseWriter, r *http.Request) {
	id, noteID := chi.URLParam(r, "id"), chi.URLParam(r, "noteID")
	if err := h.tracker.UnlinkNote(r.Context(), id, noteID); err != nil {
		writeError(w, "unlink paper note", err, slog.String("id", id), slog.String("note_id", noteID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NotePapers handles GET /api/notes/{id}/papers.
func (h *Handler) NotePapers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	papers, err := h.tracker.PapersForNote(r.Context(), id)
	if err != nil {
		writeError(w, "note papers", err, slog.String("id", id))
		return
	}
	writeJSON(w, http.StatusOK, PaperListResponse{Papers: papers})
}

// ListJournal handles GET /api/journal?from=&to=.
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := h.tracker.ListEntries(r.Context(), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, "list journal", err)
		return
	}
	writeJSON(w, http.StatusOK, JournalListResponse{Entries: entries})
}

// CreateJournalEntry handles POST /api/journal. A day that already has an
// entry yields 409.
func (h *Handler) CreateJournalEntry(w http.ResponseWriter, r *http.Request) {
	var req JournalEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	content, _, err := decodeContent(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid content document"))
		return
	}
	in := tracker.JournalInput{
		Date:      req.Date,
		Content:   content,
		TimeSpent: req.TimeSpent,
		Tags:      req.Tags,
	}
	if req.Mood != nil {
		in.Mood = *req.Mood
	}
	e, err := h.tracker.CreateEntry(r.Context(), in)
	if err != nil {
		writeError(w, "create journal entry", err, slog.String("date", req.Date))
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// OpenJournalEntry handles POST /api/journal/{date}: it returns the day's
// entry, creating an empty one (201) when there is none. The date may be
// "today".
func (h *Handler) OpenJournalEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	e, created, err := h.tracker.OpenEntry(r.Context(), date)
	if err != nil {
		writeError(w, "open journal entry", err, slog.String("date", date))
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, e)
}

// GetJournalEntry handles GET /api/journal/{date}.
func (h *Handler) GetJournalEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	e, err := h.tracker.GetEntry(r.Context(), date)
	if err != nil {
		writeError(w, "get journal entry", err, slog.String("date", date))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateJournalEntry handles PUT /api/journal/{date}.
func (h *Handler) UpdateJournalEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	var req JournalEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	content, _, err := decodeContent(req.Content)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid content document"))
		return
	}
	in := tracker.JournalUpdate{
		Content:   content,
		TimeSpent: req.TimeSpent,
		Mood:      req.Mood,
	}
	if req.Tags != nil {
		in.Tags = &req.Tags
	}
	e, err := h.tracker.UpdateEntry(r.Context(), date, in)
	if err != nil {
		writeError(w, "update journal entry", err, slog.String("date", date))
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// DeleteJournalEntry handles DELETE /api/journal/{date}.
func (h *Handler) DeleteJournalEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	if err := h.tracker.DeleteEntry(r.Context(), date); err != nil {
		writeError(w, "delete journal entry", err, slog.String("date", date))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LinkJournalPaper handles PUT /api/journal/{date}/papers/{paperID}.
func (h *Handler) LinkJournalPaper(w http.ResponseWriter, r *http.Request) {
	date, paperID := chi.URLParam(r, "date"), chi.URLParam(r, "paperID")
	if err := h.tracker.LinkPaper(r.Context(), date, paperID); err != nil {
		writeError(w, "link journal paper", err, slog.String("date", date), slog.String("paper_id", paperID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlinkJournalPaper handles DELETE /api/journal/{date}/papers/{paperID}.
func (h *Handler) UnlinkJournalPaper(w http.ResponseWriter, r *http.Request) {
	date, paperID := chi.URLParam(r, "date"), chi.URLParam(r, "paperID")
	if err := h.tracker.UnlinkPaper(r.Context(), date, paperID); err != nil {
		writeError(w, "unlink journal paper", err, slog.String("date", date), slog.String("paper_id", paperID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
