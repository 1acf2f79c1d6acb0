package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/starford/learnlog/internal/linker"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/store"
	"github.com/starford/learnlog/internal/testutil"
	"github.com/starford/learnlog/internal/tracker"
)

// testEnv sets up a temp SQLite store, service, and router for testing.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*store.DB, http.Handler) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*store.DB, http.Handler) {
	t.Helper()
	db := testutil.TestDB(t)
	svc := noteservice.NewService(db, linker.New(db))
	return db, NewRouter(svc, tracker.NewService(db), authEnabled, token, sseHandler)
}

// docJSON builds editor JSON with one paragraph per argument.
func docJSON(paragraphs ...string) map[string]any {
	content := make([]any, 0, len(paragraphs))
	for _, p := range paragraphs {
		content = append(content, map[string]any{
			"type":    "paragraph",
			"content": []any{map[string]any{"type": "text", "text": p}},
		})
	}
	return map[string]any{"type": "doc", "content": content}
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createNote(t *testing.T, router http.Handler, body map[string]any) NoteDetail {
	t.Helper()
	w := do(t, router, http.MethodPost, "/notes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var note NoteDetail
	if err := json.Unmarshal(w.Body.Bytes(), &note); err != nil {
		t.Fatalf("decode note: %v", err)
	}
	return note
}

func TestCreateAndGetNote(t *testing.T) {
	_, router := testEnv(t, "")

	created := createNote(t, router, map[string]any{
		"title":   "Attention Is All You Need!",
		"content": docJSON("transformers #ml"),
		"tags":    []string{"papers"},
	})
	if created.Slug != "attention-is-all-you-need" {
		t.Errorf("slug = %q", created.Slug)
	}

	w := do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Attention Is All You Need!" {
		t.Errorf("title = %q", note.Title)
	}
	if len(note.Tags) != 2 || note.Tags[0] != "papers" || note.Tags[1] != "ml" {
		t.Errorf("tags = %v, want [papers ml]", note.Tags)
	}
	if note.Content.Root == nil || note.Content.Root.Type() != "doc" {
		t.Errorf("content = %#v", note.Content.Root)
	}

	w = do(t, router, http.MethodGet, "/notes/by-slug/attention-is-all-you-need", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get by slug status = %d", w.Code)
	}
}

func TestCreateNote_Validation(t *testing.T) {
	_, router := testEnv(t, "")

	cases := []struct {
		name string
		body any
	}{
		{"missing title", map[string]any{"content": docJSON("x")}},
		{"empty tag", map[string]any{"title": "T", "tags": []string{""}}},
		{"bad content", map[string]any{"title": "T", "content": map[string]any{"text": "no type"}}},
		{"unsluggable slug", map[string]any{"title": "T", "slug": "!!!"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/notes", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON = %d, want 400", w.Code)
	}
}

func TestCreateDuplicateSlug(t *testing.T) {
	_, router := testEnv(t, "")

	first := createNote(t, router, map[string]any{"title": "Dup"})
	second := createNote(t, router, map[string]any{"title": "Dup"})
	if first.Slug != "dup" || second.Slug != "dup-2" {
		t.Errorf("slugs = %q, %q; want dup, dup-2", first.Slug, second.Slug)
	}

	// An explicit slug that is taken is a conflict, not a suffix.
	w := do(t, router, http.MethodPost, "/notes", map[string]any{"title": "Other", "slug": "dup"})
	if w.Code != http.StatusConflict {
		t.Errorf("explicit duplicate = %d, want 409", w.Code)
	}
}

func TestUpdateWithOptimisticLocking(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, map[string]any{"title": "Lock", "content": docJSON("v1")})

	update := map[string]any{"content": docJSON("v2")}
	w := do(t, router, http.MethodPut, "/notes/"+created.ID, update, "If-Match", `"`+created.Checksum+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update with correct checksum = %d, body = %s", w.Code, w.Body.String())
	}

	// Stale checksum → 409.
	w = do(t, router, http.MethodPut, "/notes/"+created.ID, update, "If-Match", created.Checksum)
	if w.Code != http.StatusConflict {
		t.Errorf("update with stale checksum = %d, want 409", w.Code)
	}
}

func TestUpdateWithoutIfMatch(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, map[string]any{"title": "No Lock"})

	w := do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{"title": "Renamed"})
	if w.Code != http.StatusOK {
		t.Fatalf("update without If-Match = %d, want 200", w.Code)
	}
	var note NoteDetail
	_ = json.Unmarshal(w.Body.Bytes(), &note)
	if note.Title != "Renamed" || note.Slug != "no-lock" {
		t.Errorf("note = %q / %q, slug must not change", note.Title, note.Slug)
	}

	w = do(t, router, http.MethodPut, "/notes/"+created.ID, map[string]any{"title": ""})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty title = %d, want 400", w.Code)
	}
}

func TestDeleteNote(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, map[string]any{"title": "Bye"})

	w := do(t, router, http.MethodDelete, "/notes/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}

	w = do(t, router, http.MethodGet, "/notes/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", w.Code)
	}
	w = do(t, router, http.MethodDelete, "/notes/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", w.Code)
	}
}

func TestListNotes(t *testing.T) {
	_, router := testEnv(t, "")
	for _, title := range []string{"A", "B", "C"} {
		createNote(t, router, map[string]any{"title": title, "tags": []string{"t"}})
	}

	w := do(t, router, http.MethodGet, "/notes?limit=2&sort=title", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d", w.Code)
	}
	var resp NoteListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Notes) != 2 || resp.Total != 3 {
		t.Errorf("notes = %d total = %d, want 2 / 3", len(resp.Notes), resp.Total)
	}
	if resp.Notes[0].Title != "A" {
		t.Errorf("first = %q, want A", resp.Notes[0].Title)
	}

	for _, bad := range []string{"/notes?sort=path", "/notes?limit=-1", "/notes?limit=abc"} {
		if w := do(t, router, http.MethodGet, bad, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s = %d, want 400", bad, w.Code)
		}
	}
}

func TestBacklinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	target := createNote(t, router, map[string]any{"title": "Target"})
	src := createNote(t, router, map[string]any{"title": "Source", "content": docJSON("see [[Target]]")})

	w := do(t, router, http.MethodGet, "/notes/"+target.ID+"/backlinks", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("backlinks = %d", w.Code)
	}
	var resp BacklinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Backlinks) != 1 || resp.Backlinks[0].SourceID != src.ID {
		t.Fatalf("backlinks = %+v", resp.Backlinks)
	}

	do(t, router, http.MethodDelete, "/notes/"+src.ID, nil)

	w = do(t, router, http.MethodGet, "/notes/"+target.ID+"/backlinks", nil)
	var raw map[string][]map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if len(raw["backlinks"]) != 1 {
		t.Fatalf("backlinks after delete = %v", raw)
	}
	if v, ok := raw["backlinks"][0]["source"]; !ok || v != nil {
		t.Errorf("dangling backlink source = %v, want null", v)
	}
}

func TestOutgoingLinksEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	target := createNote(t, router, map[string]any{"title": "Target"})
	src := createNote(t, router, map[string]any{"title": "Source", "content": docJSON("see [[Target]]")})

	w := do(t, router, http.MethodGet, "/notes/"+src.ID+"/links", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("links = %d", w.Code)
	}
	var resp OutgoingLinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Links) != 1 || resp.Links[0].TargetID != target.ID || resp.Links[0].Target == nil {
		t.Fatalf("links = %+v", resp.Links)
	}

	do(t, router, http.MethodDelete, "/notes/"+target.ID, nil)

	w = do(t, router, http.MethodGet, "/notes/"+src.ID+"/links", nil)
	var raw map[string][]map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &raw)
	if len(raw["links"]) != 1 {
		t.Fatalf("links after delete = %v", raw)
	}
	if v, ok := raw["links"][0]["target"]; !ok || v != nil {
		t.Errorf("dangling link target = %v, want null", v)
	}
}

func TestResolveEndpoint(t *testing.T) {
	db, router := testEnv(t, "")
	src := createNote(t, router, map[string]any{"title": "Source", "content": docJSON("[[Later]]")})
	createNote(t, router, map[string]any{"title": "Later"})

	w := do(t, router, http.MethodPost, "/notes/"+src.ID+"/resolve", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("resolve = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ResolveResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Complete || resp.Result == nil || resp.Result.Created != 1 {
		t.Errorf("resolve response = %+v", resp)
	}
	links, _ := db.LinksBySource(context.Background(), src.ID)
	if len(links) != 1 {
		t.Errorf("links = %d, want 1", len(links))
	}

	if w := do(t, router, http.MethodPost, "/notes/missing/resolve", nil); w.Code != http.StatusNotFound {
		t.Errorf("resolve missing = %d, want 404", w.Code)
	}
}

func TestSlugAvailability(t *testing.T) {
	_, router := testEnv(t, "")
	created := createNote(t, router, map[string]any{"title": "Taken Title"})

	check := func(path string) SlugResponse {
		t.Helper()
		w := do(t, router, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, w.Code)
		}
		var resp SlugResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return resp
	}

	if resp := check("/slugs/taken-title"); resp.Available {
		t.Error("taken-title should be unavailable")
	}
	if resp := check("/slugs/Taken%20Title"); resp.Slug != "taken-title" || resp.Available {
		t.Errorf("raw title check = %+v", resp)
	}
	if resp := check("/slugs/taken-title?exclude=" + created.ID); !resp.Available {
		t.Error("slug should be available when excluding its owner")
	}
	if resp := check("/slugs/fresh"); !resp.Available {
		t.Error("fresh should be available")
	}
}

func TestSearchEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, map[string]any{"title": "Find", "content": docJSON("uniquetoken here")})

	w := do(t, router, http.MethodGet, "/search?q=uniquetoken", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("search = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SearchResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Results) != 1 || resp.Results[0].Slug != "find" {
		t.Errorf("search results = %+v", resp.Results)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/search", nil); w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestGraphEndpoint(t *testing.T) {
	_, router := testEnv(t, "")
	createNote(t, router, map[string]any{"title": "A", "content": docJSON("links to [[B]]")})
	createNote(t, router, map[string]any{"title": "B", "content": docJSON("links to [[A]]")})

	w := do(t, router, http.MethodGet, "/graph", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("graph = %d", w.Code)
	}
	var resp GraphResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Nodes) != 2 {
		t.Errorf("nodes = %d, want 2", len(resp.Nodes))
	}
	// A was saved before B existed, so only B -> A resolved.
	if len(resp.Links) != 1 {
		t.Errorf("links = %d, want 1", len(resp.Links))
	}
}

func TestGetNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing note = %d, want 404", w.Code)
	}
	if w := do(t, router, http.MethodGet, "/notes/by-slug/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing slug = %d, want 404", w.Code)
	}
}

func TestUpdateNote_NotFound(t *testing.T) {
	_, router := testEnv(t, "")
	w := do(t, router, http.MethodPut, "/notes/ghost", map[string]any{"content": docJSON("x")})
	if w.Code != http.StatusNotFound {
		t.Errorf("update missing = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	w := do(t, router, http.MethodPost, "/notes", map[string]any{"title": "Auth"}, "Authorization", "Bearer secret123")
	if w.Code != http.StatusCreated {
		t.Errorf("authed create = %d, want 201", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router := testEnv(t, "secret123")
	if w := do(t, router, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	_, router := testEnv(t, "")
	if w := do(t, router, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "secret", blockingSSE)
	if w := do(t, router, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}
