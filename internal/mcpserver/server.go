// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes learnlog notes, and optionally the reading list and journal,
// to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/parser"
	"github.com/starford/learnlog/internal/tracker"
)

const noteFormatURI = "learnlog://note-format"

// Server wraps the MCP server with learnlog tools.
type Server struct {
	mcp     *server.MCPServer
	svc     *noteservice.Service
	tracker *tracker.Service
}

// Option configures a Server.
type Option func(*Server)

// WithTracker registers the reading-list and journal tools.
func WithTracker(tr *tracker.Service) Option {
	return func(s *Server) { s.tracker = tr }
}

// New creates a new MCP server with all tools registered.
func New(svc *noteservice.Service, version string, opts ...Option) *Server {
	s := &Server{svc: svc}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		"learnlog",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Full-text search through note titles and text."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by slug: title, tags, plain text, backlinks and outgoing links."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Note slug (e.g. attention-is-all-you-need)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a new note. The slug is derived from the title. "+
			"Reference other notes inline with [[Their Title]]. Read the contract first via "+
			"the get_note_contract tool or the "+noteFormatURI+" resource."),
		mcp.WithString("title", mcp.Description("Human-readable title; defaults to the first line of content")),
		mcp.WithString("content", mcp.Description("Plain text body; one paragraph per line")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the learnlog note format contract. "+
			"Call this before creating notes to ensure correct structure."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, optionally filtered by tag or folder."),
		mcp.WithString("tag", mcp.Description("Only notes carrying this tag")),
		mcp.WithString("folder", mcp.Description("Only notes in this folder")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the note to find backlinks for")),
	), s.getBacklinks)

	if s.tracker != nil {
		s.mcp.AddTool(mcp.NewTool("list_papers",
			mcp.WithDescription("List papers on the reading list, most recently updated first."),
			mcp.WithString("status", mcp.Description("Only papers in this status"),
				mcp.Enum(string(models.PaperQueue), string(models.PaperReading),
					string(models.PaperCompleted), string(models.PaperImplemented))),
		), s.listPapers)

		s.mcp.AddTool(mcp.NewTool("read_journal",
			mcp.WithDescription("Read the journal entry for a day, creating an empty one if missing."),
			mcp.WithString("date", mcp.Description("YYYY-MM-DD or \"today\" (default)")),
		), s.readJournal)
	}

	s.mcp.AddResource(
		mcp.NewResource(noteFormatURI, "Note Format Contract",
			mcp.WithResourceDescription("Document structure and wiki-link rules for learnlog notes."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
	)

	return s
}

// Listen serves the MCP protocol over in/out until ctx is done.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, 20)
	if err != nil {
		return toolError(err), nil
	}
	out, _ := json.MarshalIndent(results, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

// noteView is the read_note payload; content is flattened to plain text.
type noteView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	Tags      []string `json:"tags"`
	Folder    string   `json:"folder,omitempty"`
	Text      string   `json:"text"`
	Backlinks []string `json:"backlinks"`
	Links     []string `json:"links"`
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sl, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteBySlug(ctx, sl)
	if err != nil {
		return toolError(err), nil
	}
	linking, err := s.svc.LinkingNotes(ctx, note.ID)
	if err != nil {
		return toolError(err), nil
	}
	linked, err := s.svc.LinkedNotes(ctx, note.ID)
	if err != nil {
		return toolError(err), nil
	}
	view := noteView{
		ID:        note.ID,
		Title:     note.Title,
		Slug:      note.Slug,
		Tags:      note.Tags,
		Folder:    note.Folder,
		Text:      parser.PlainText(note.Content.Root),
		Backlinks: refSlugs(linking),
		Links:     refSlugs(linked),
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var tags []string
	for _, t := range strings.Split(req.GetString("tags", ""), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	note, err := s.svc.CreateNote(ctx, noteservice.CreateInput{
		Title:   req.GetString("title", ""),
		Content: doctree.FromPlainText(req.GetString("content", "")),
		Tags:    tags,
	})
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s", note.Slug)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, _, err := s.svc.ListNotes(ctx, models.NoteFilter{
		Tag:    req.GetString("tag", ""),
		Folder: req.GetString("folder", ""),
		Sort:   "title",
	})
	if err != nil {
		return toolError(err), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = it.Slug + "\t" + it.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

func (s *Server) getNoteContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      noteFormatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sl, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	note, err := s.svc.GetNoteBySlug(ctx, sl)
	if err != nil {
		return toolError(err), nil
	}
	linking, err := s.svc.LinkingNotes(ctx, note.ID)
	if err != nil {
		return toolError(err), nil
	}
	slugs := refSlugs(linking)
	if len(slugs) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(slugs, "\n")), nil
}

func (s *Server) listPapers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	papers, err := s.tracker.ListPapers(ctx, models.PaperStatus(req.GetString("status", "")))
	if err != nil {
		return toolError(err), nil
	}
	if len(papers) == 0 {
		return mcp.NewToolResultText("no papers found"), nil
	}
	lines := make([]string, len(papers))
	for i, p := range papers {
		lines[i] = p.ID + "\t" + string(p.Status) + "\t" + p.Title
	}
	return mcp.NewToolResultText(strings.Join(lines, "\n")), nil
}

// journalView is the read_journal payload; content is flattened to plain text.
type journalView struct {
	Date      string   `json:"date"`
	Text      string   `json:"text"`
	Mood      string   `json:"mood,omitempty"`
	TimeSpent *int     `json:"time_spent,omitempty"`
	Tags      []string `json:"tags"`
	Mentions  []string `json:"mentions"`
	Papers    []string `json:"papers"`
}

func (s *Server) readJournal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	e, _, err := s.tracker.OpenEntry(ctx, req.GetString("date", tracker.Today))
	if err != nil {
		return toolError(err), nil
	}
	view := journalView{
		Date:      e.Date,
		Text:      parser.PlainText(e.Content.Root),
		Mood:      e.Mood,
		TimeSpent: e.TimeSpent,
		Tags:      e.Tags,
		Mentions:  refSlugs(e.Mentions),
		Papers:    make([]string, len(e.Papers)),
	}
	for i, p := range e.Papers {
		view.Papers[i] = p.Title
	}
	out, _ := json.MarshalIndent(view, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func refSlugs(refs []noteservice.NoteRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Slug
	}
	return out
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrAlreadyExists):
		return mcp.NewToolResultError("slug already in use")
	case errors.Is(err, apperr.ErrInvalid):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}
