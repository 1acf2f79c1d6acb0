package noteservice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/linker"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/parser"
	"github.com/starford/learnlog/internal/queue"
	"github.com/starford/learnlog/internal/store"
	"github.com/starford/learnlog/internal/testutil"
)

type recordedEvent struct {
	kind, id, slug string
}

type fakePublisher struct {
	mu       sync.Mutex
	events   []recordedEvent
	resolved []string
}

func (p *fakePublisher) PublishNoteEvent(kind, id, slug string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{kind, id, slug})
}

func (p *fakePublisher) PublishLinksResolved(noteID string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resolved = append(p.resolved, noteID)
}

func newService(t *testing.T, opts ...Option) (*Service, *store.DB, *fakePublisher) {
	t.Helper()
	db := testutil.TestDB(t)
	pub := &fakePublisher{}
	opts = append([]Option{WithPublisher(pub)}, opts...)
	return NewService(db, linker.New(db), opts...), db, pub
}

func TestCreateNote_DerivesSlugWithSuffix(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	first, err := svc.CreateNote(ctx, CreateInput{Title: "Same Title"})
	require.NoError(t, err)
	second, err := svc.CreateNote(ctx, CreateInput{Title: "Same  title!"})
	require.NoError(t, err)
	third, err := svc.CreateNote(ctx, CreateInput{Title: "same title"})
	require.NoError(t, err)

	assert.Equal(t, "same-title", first.Slug)
	assert.Equal(t, "same-title-2", second.Slug)
	assert.Equal(t, "same-title-3", third.Slug)
}

func TestCreateNote_Validation(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, CreateInput{Title: "   "})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.CreateNote(ctx, CreateInput{Title: "Ok", Slug: "!!!"})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCreateNote_ExplicitSlugTaken(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, CreateInput{Title: "One", Slug: "shared"})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, CreateInput{Title: "Two", Slug: "shared"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestCreateNote_UnsluggableTitle(t *testing.T) {
	svc, _, _ := newService(t)
	n, err := svc.CreateNote(context.Background(), CreateInput{Title: "?!?"})
	require.NoError(t, err)
	assert.Equal(t, "note", n.Slug)
}

func TestCreateNote_NonLatinTitlesLink(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	ru, err := svc.CreateNote(ctx, CreateInput{Title: "Привет мир"})
	require.NoError(t, err)
	el, err := svc.CreateNote(ctx, CreateInput{Title: "Σύνοψη"})
	require.NoError(t, err)
	assert.Equal(t, "privet-mir", ru.Slug)
	assert.NotEqual(t, ru.Slug, el.Slug)
	assert.NotContains(t, []string{"note", "note-2"}, el.Slug)

	src, err := svc.CreateNote(ctx, CreateInput{Title: "Src", Content: testutil.Doc("see [[Привет мир]]")})
	require.NoError(t, err)

	bl, err := svc.Backlinks(ctx, ru.ID)
	require.NoError(t, err)
	require.Len(t, bl, 1)
	assert.Equal(t, src.ID, bl[0].SourceID)
}

func TestCreateNote_DefaultsAndTags(t *testing.T) {
	svc, _, pub := newService(t)
	n, err := svc.CreateNote(context.Background(), CreateInput{
		Title:   "Tagged",
		Content: testutil.Doc("reading about #ml and #papers"),
		Tags:    []string{"papers", "inbox"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"papers", "inbox", "ml"}, n.Tags)
	assert.NotEmpty(t, n.Checksum)
	assert.Empty(t, n.Backlinks)
	assert.NotNil(t, n.Backlinks)

	empty, err := svc.CreateNote(context.Background(), CreateInput{Title: "Blank"})
	require.NoError(t, err)
	require.NotNil(t, empty.Content.Root)
	assert.Equal(t, "doc", empty.Content.Root.Type())

	require.Len(t, pub.events, 2)
	assert.Equal(t, recordedEvent{EventCreated, n.ID, "tagged"}, pub.events[0])
}

func TestCreateNote_ResolvesInlineWithoutQueue(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	target, err := svc.CreateNote(ctx, CreateInput{Title: "Transformers"})
	require.NoError(t, err)
	src, err := svc.CreateNote(ctx, CreateInput{
		Title:   "Reading log",
		Content: testutil.Doc("today: [[Transformers]] and [[Not Yet Written]]"),
	})
	require.NoError(t, err)

	detail, err := svc.GetNote(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, detail.Backlinks, 1)
	assert.Equal(t, src.ID, detail.Backlinks[0].SourceID)
	require.NotNil(t, detail.Backlinks[0].Source)
	assert.Equal(t, "reading-log", detail.Backlinks[0].Source.Slug)
	assert.Contains(t, pub.resolved, src.ID)
}

func TestCreateNote_EnqueuesWithQueue(t *testing.T) {
	q := queue.NewMemory(8)
	svc, db, _ := newService(t, WithQueue(q))
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, CreateInput{Title: "Target"})
	require.NoError(t, err)
	src, err := svc.CreateNote(ctx, CreateInput{Title: "Src", Content: testutil.Doc("[[Target]]")})
	require.NoError(t, err)

	assert.Equal(t, 2, q.Len())
	edges, err := db.LinksBySource(ctx, src.ID)
	require.NoError(t, err)
	assert.Empty(t, edges, "resolution is deferred to the worker")

	job, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, job.NoteID)
	assert.False(t, job.EnqueuedAt.IsZero())
}

func TestCreateNote_EnqueueFailureDoesNotFailSave(t *testing.T) {
	q := queue.NewMemory(1)
	require.NoError(t, q.Close())
	svc, _, _ := newService(t, WithQueue(q))

	n, err := svc.CreateNote(context.Background(), CreateInput{Title: "Still Saved"})
	require.NoError(t, err)
	assert.Equal(t, "still-saved", n.Slug)
}

func TestUpdateNote(t *testing.T) {
	svc, db, pub := newService(t)
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, CreateInput{Title: "Alpha"})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, CreateInput{Title: "Beta"})
	require.NoError(t, err)
	src, err := svc.CreateNote(ctx, CreateInput{Title: "Src", Content: testutil.Doc("[[Alpha]] [[Beta]]")})
	require.NoError(t, err)

	_, err = svc.UpdateNote(ctx, src.ID, UpdateInput{Content: testutil.Doc("x"), IfMatch: "stale"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	newTitle := "Renamed Source"
	upd, err := svc.UpdateNote(ctx, src.ID, UpdateInput{
		Title:   &newTitle,
		Content: testutil.Doc("only [[Beta]]"),
		IfMatch: src.Checksum,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed Source", upd.Title)
	assert.Equal(t, "src", upd.Slug, "slug is never re-derived on edit")
	assert.NotEqual(t, src.Checksum, upd.Checksum)

	edges, err := db.LinksBySource(ctx, src.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 1)

	empty := "  "
	_, err = svc.UpdateNote(ctx, src.ID, UpdateInput{Title: &empty})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = svc.UpdateNote(ctx, "missing", UpdateInput{Title: &newTitle})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, EventUpdated, pub.events[len(pub.events)-1].kind)
}

// staleReads serves the first snapshot of every note it has read, as a
// concurrent writer that loaded the note before another save would see it.
type staleReads struct {
	store.Store
	mu    sync.Mutex
	first map[string]models.Note
}

func (s *staleReads) GetNote(ctx context.Context, id string) (*models.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.first[id]; ok {
		return &n, nil
	}
	n, err := s.Store.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.first[id] = *n
	return n, nil
}

func TestUpdateNote_IfMatchRejectsSecondWriterOfSameVersion(t *testing.T) {
	db := testutil.TestDB(t)
	ctx := context.Background()
	base, err := NewService(db, linker.New(db)).CreateNote(ctx, CreateInput{Title: "Shared", Content: testutil.Doc("v1")})
	require.NoError(t, err)

	stale := &staleReads{Store: db, first: map[string]models.Note{}}
	svc := NewService(stale, linker.New(db))

	_, err = svc.UpdateNote(ctx, base.ID, UpdateInput{Content: testutil.Doc("from A"), IfMatch: base.Checksum})
	require.NoError(t, err)
	_, err = svc.UpdateNote(ctx, base.ID, UpdateInput{Content: testutil.Doc("from B"), IfMatch: base.Checksum})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	stored, err := db.GetNote(ctx, base.ID)
	require.NoError(t, err)
	assert.Equal(t, "from A", parser.PlainText(stored.Content))
}

func TestUpdateNote_InlineTagsFollowContent(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, CreateInput{
		Title:   "Tags",
		Content: testutil.Doc("about #ml and #draft"),
		Tags:    []string{"reading"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"reading", "ml", "draft"}, n.Tags)

	upd, err := svc.UpdateNote(ctx, n.ID, UpdateInput{Content: testutil.Doc("about #ml only")})
	require.NoError(t, err)
	assert.Equal(t, []string{"reading", "ml"}, upd.Tags, "removed inline tag must not stick")

	tags := []string{"archive"}
	upd, err = svc.UpdateNote(ctx, n.ID, UpdateInput{Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, []string{"archive", "ml"}, upd.Tags)
}

func TestCreateNote_TitleFromContent(t *testing.T) {
	svc, _, _ := newService(t)
	n, err := svc.CreateNote(context.Background(), CreateInput{Content: doctree.FromPlainText("\nFirst line\nsecond")})
	require.NoError(t, err)
	assert.Equal(t, "First line", n.Title)
	assert.Equal(t, "first-line", n.Slug)
}

func TestDeleteNote_LeavesDanglingBacklink(t *testing.T) {
	svc, _, pub := newService(t)
	ctx := context.Background()

	target, err := svc.CreateNote(ctx, CreateInput{Title: "Target"})
	require.NoError(t, err)
	src, err := svc.CreateNote(ctx, CreateInput{Title: "Src", Content: testutil.Doc("[[Target]]")})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteNote(ctx, src.ID))
	assert.ErrorIs(t, svc.DeleteNote(ctx, src.ID), apperr.ErrNotFound)
	assert.Equal(t, recordedEvent{EventDeleted, src.ID, "src"}, pub.events[len(pub.events)-1])

	bl, err := svc.Backlinks(ctx, target.ID)
	require.NoError(t, err)
	require.Len(t, bl, 1)
	assert.Nil(t, bl[0].Source)
	assert.Equal(t, src.ID, bl[0].SourceID)

	nodes, edges, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
	assert.Equal(t, target.ID, nodes[0].ID)
	assert.Empty(t, edges)
}

func TestLinkListings(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()

	a, err := svc.CreateNote(ctx, CreateInput{Title: "A"})
	require.NoError(t, err)
	gone, err := svc.CreateNote(ctx, CreateInput{Title: "Gone"})
	require.NoError(t, err)
	b, err := svc.CreateNote(ctx, CreateInput{Title: "B", Content: testutil.Doc("[[A]] [[Gone]]")})
	require.NoError(t, err)
	_, err = db.CreateLink(ctx, models.LinkEdge{SourceNoteID: b.ID, TargetNoteID: a.ID})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteNote(ctx, gone.ID))

	out, err := svc.OutgoingLinks(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, out, 3)
	var dangling int
	for _, o := range out {
		if o.Target == nil {
			dangling++
			assert.Equal(t, gone.ID, o.TargetID)
		}
	}
	assert.Equal(t, 1, dangling)

	linked, err := svc.LinkedNotes(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []NoteRef{{ID: a.ID, Title: "A", Slug: "a"}}, linked)

	linking, err := svc.LinkingNotes(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []NoteRef{{ID: b.ID, Title: "B", Slug: "b"}}, linking)

	none, err := svc.LinkingNotes(ctx, b.ID)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestGraph_DistinctLiveEdges(t *testing.T) {
	svc, db, _ := newService(t)
	ctx := context.Background()

	a, err := svc.CreateNote(ctx, CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := svc.CreateNote(ctx, CreateInput{Title: "B", Content: testutil.Doc("[[A]]")})
	require.NoError(t, err)
	_, err = db.CreateLink(ctx, models.LinkEdge{SourceNoteID: b.ID, TargetNoteID: a.ID})
	require.NoError(t, err)

	nodes, edges, err := svc.Graph(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)
	assert.Equal(t, []GraphEdge{{Source: b.ID, Target: a.ID}}, edges)
}

func TestGetNoteBySlug(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	n, err := svc.CreateNote(ctx, CreateInput{Title: "Attention Is All You Need!"})
	require.NoError(t, err)

	got, err := svc.GetNoteBySlug(ctx, "attention-is-all-you-need")
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	_, err = svc.GetNoteBySlug(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestIsSlugAvailable(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	n, err := svc.CreateNote(ctx, CreateInput{Title: "Taken"})
	require.NoError(t, err)

	ok, err := svc.IsSlugAvailable(ctx, "taken", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsSlugAvailable(ctx, "taken", n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsSlugAvailable(ctx, "free", "")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSearch(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateNote(ctx, CreateInput{Title: "Findable", Content: testutil.Doc("a zebracorn sighting")})
	require.NoError(t, err)

	_, err = svc.Search(ctx, "  ", 10)
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	res, err := svc.Search(ctx, "zebracorn", 0)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "findable", res[0].Slug)
}

func TestResolveNowAndRelink(t *testing.T) {
	q := queue.NewMemory(16)
	svc, db, _ := newService(t, WithQueue(q))
	ctx := context.Background()

	_, err := svc.CreateNote(ctx, CreateInput{Title: "Target"})
	require.NoError(t, err)
	one, err := svc.CreateNote(ctx, CreateInput{Title: "One", Content: testutil.Doc("[[Target]]")})
	require.NoError(t, err)
	_, err = svc.CreateNote(ctx, CreateInput{Title: "Two", Content: testutil.Doc("[[Target]] [[One]]")})
	require.NoError(t, err)

	res, err := svc.ResolveNow(ctx, one.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)

	_, err = svc.ResolveNow(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	sum, err := svc.Relink(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Notes)
	assert.Equal(t, 2, sum.Created)
	assert.Zero(t, sum.Failed)

	all, err := db.AllLinks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestListNotes(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	for _, title := range []string{"B", "A", "C"} {
		_, err := svc.CreateNote(ctx, CreateInput{Title: title, Tags: []string{"x"}})
		require.NoError(t, err)
	}
	items, total, err := svc.ListNotes(ctx, models.NoteFilter{Sort: "title", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "A", items[0].Title)
	assert.Equal(t, []string{"x"}, items[0].Tags)
}
