package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/tracker"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, tr *tracker.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, tr)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Notes CRUD.
	r.Get("/notes", h.ListNotes)
	r.Post("/notes", h.CreateNote)
	r.Get("/notes/by-slug/{slug}", h.GetNoteBySlug)
	r.Route("/notes/{id}", func(r chi.Router) {
		r.Get("/", h.GetNote)
		r.Put("/", h.UpdateNote)
		r.Delete("/", h.DeleteNote)
		r.Get("/backlinks", h.Backlinks)
		r.Get("/links", h.OutgoingLinks)
		r.Get("/papers", h.NotePapers)
		r.Post("/resolve", h.Resolve)
	})

	// Reading list.
	r.Get("/papers", h.ListPapers)
	r.Post("/papers", h.CreatePaper)
	r.Route("/papers/{id}", func(r chi.Router) {
		r.Get("/", h.GetPaper)
		r.Put("/", h.UpdatePaper)
		r.Delete("/", h.DeletePaper)
		r.Put("/notes/{noteID}", h.LinkPaperNote)
		r.Delete("/notes/{noteID}", h.UnlinkPaperNote)
	})

	// Journal, one entry per day.
	r.Get("/journal", h.ListJournal)
	r.Post("/journal", h.CreateJournalEntry)
	r.Route("/journal/{date}", func(r chi.Router) {
		r.Get("/", h.GetJournalEntry)
		r.Post("/", h.OpenJournalEntry)
		r.Put("/", h.UpdateJournalEntry)
		r.Delete("/", h.DeleteJournalEntry)
		r.Put("/papers/{paperID}", h.LinkJournalPaper)
		r.Delete("/papers/{paperID}", h.UnlinkJournalPaper)
	})

	r.Get("/slugs/{slug}", h.SlugAvailable)
	r.Get("/search", h.Search)
	r.Get("/graph", h.Graph)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
