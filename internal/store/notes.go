package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
	"github.com/starford/learnlog/internal/parser"
)

const noteColumns = `id, title, slug, content, tags, explicit_tags, folder, checksum, created_at, updated_at`

// CreateNote inserts n and returns its id. An empty ID is assigned a UUID;
// zero timestamps are set to now. A taken slug yields apperr.ErrAlreadyExists.
func (db *DB) CreateNote(ctx context.Context, n models.Note) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	row, err := encodeNote(n)
	if err != nil {
		return "", err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (id, title, slug, content, body, tags, explicit_tags, folder, checksum, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, n.ID, n.Title, n.Slug, row.content, row.body, row.tags, row.explicitTags, n.Folder, row.checksum,
		n.CreatedAt.UnixNano(), n.UpdatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("store: insert note: %w", mapConstraint(err))
	}
	if err := ftsUpsert(tx, n.ID, n.Title, row.body, n.Tags); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("store: commit: %w", err)
	}
	return n.ID, nil
}

// UpdateNote replaces the mutable fields of the note with n.ID. A zero
// UpdatedAt is set to now. The checksum is always recomputed from content.
//
// A non-empty ifChecksum makes the write conditional on the stored checksum
// in the same statement; a mismatch yields apperr.ErrConflict.
func (db *DB) UpdateNote(ctx context.Context, n models.Note, ifChecksum string) error {
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = time.Now().UTC()
	}
	row, err := encodeNote(n)
	if err != nil {
		return err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		UPDATE notes SET
			title         = ?,
			slug          = ?,
			content       = ?,
			body          = ?,
			tags          = ?,
			explicit_tags = ?,
			folder        = ?,
			checksum      = ?,
			updated_at    = ?
		WHERE id = ?`
	args := []any{n.Title, n.Slug, row.content, row.body, row.tags, row.explicitTags, n.Folder, row.checksum, n.UpdatedAt.UnixNano(), n.ID}
	if ifChecksum != "" {
		query += ` AND checksum = ?`
		args = append(args, ifChecksum)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("store: update note: %w", mapConstraint(err))
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return missOrConflict(ctx, tx, n.ID, ifChecksum)
	}
	if err := ftsUpsert(tx, n.ID, n.Title, row.body, n.Tags); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// missOrConflict explains an UPDATE that touched no rows.
func missOrConflict(ctx context.Context, tx *sql.Tx, id, ifChecksum string) error {
	if ifChecksum == "" {
		return apperr.ErrNotFound
	}
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM notes WHERE id = ?`, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apperr.ErrNotFound
	case err != nil:
		return fmt.Errorf("store: check note: %w", err)
	}
	return apperr.ErrConflict
}

// DeleteNote removes a note and its search entry. Link edges are left alone.
func (db *DB) DeleteNote(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete note: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	ftsDelete(tx, id)
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetNote returns the note with the given id or apperr.ErrNotFound.
func (db *DB) GetNote(ctx context.Context, id string) (*models.Note, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)
	n, err := scanNote(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get note: %w", err)
	}
	return n, nil
}

// NotesBySlug returns every note whose slug equals slug. The unique index
// keeps this at most one, but callers must not assume it.
func (db *DB) NotesBySlug(ctx context.Context, slug string) ([]models.Note, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE slug = ? ORDER BY rowid`, slug)
	if err != nil {
		return nil, fmt.Errorf("store: notes by slug: %w", err)
	}
	return collectNotes(rows)
}

// ListNotes returns a page of notes matching f and the total match count.
func (db *DB) ListNotes(ctx context.Context, f models.NoteFilter) ([]models.Note, int, error) {
	var (
		where []string
		args  []any
	)
	if f.Tag != "" {
		where = append(where, `EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}
	if f.Folder != "" {
		where = append(where, `folder = ?`)
		args = append(args, f.Folder)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM notes`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count notes: %w", err)
	}

	order := "updated_at DESC"
	switch f.Sort {
	case "created_at":
		order = "created_at DESC"
	case "title":
		order = "title COLLATE NOCASE ASC"
	}

	query := `SELECT ` + noteColumns + ` FROM notes` + clause + ` ORDER BY ` + order + `, rowid`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, max(f.Offset, 0))
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list notes: %w", err)
	}
	notes, err := collectNotes(rows)
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

type encodedNote struct {
	content      string
	body         string
	tags         string
	explicitTags string
	checksum     string
}

func encodeNote(n models.Note) (encodedNote, error) {
	content, err := doctree.Encode(n.Content)
	if err != nil {
		return encodedNote{}, fmt.Errorf("store: encode content: %w", err)
	}
	tagsJSON, err := encodeTags(n.Tags)
	if err != nil {
		return encodedNote{}, err
	}
	explicitJSON, err := encodeTags(n.ExplicitTags)
	if err != nil {
		return encodedNote{}, err
	}
	return encodedNote{
		content:      string(content),
		body:         parser.PlainText(n.Content),
		tags:         tagsJSON,
		explicitTags: explicitJSON,
		checksum:     doctree.Checksum(n.Content),
	}, nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("store: encode tags: %w", err)
	}
	return string(b), nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNote(s scanner) (*models.Note, error) {
	var (
		n                models.Note
		content, tags    string
		explicit         string
		created, updated int64
	)
	if err := s.Scan(&n.ID, &n.Title, &n.Slug, &content, &tags, &explicit, &n.Folder, &n.Checksum, &created, &updated); err != nil {
		return nil, err
	}
	root, err := doctree.Decode([]byte(content))
	if err != nil {
		return nil, err
	}
	n.Content = root
	if err := json.Unmarshal([]byte(tags), &n.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(explicit), &n.ExplicitTags); err != nil {
		return nil, fmt.Errorf("decode explicit tags: %w", err)
	}
	n.CreatedAt = time.Unix(0, created).UTC()
	n.UpdatedAt = time.Unix(0, updated).UTC()
	return &n, nil
}

func collectNotes(rows *sql.Rows) ([]models.Note, error) {
	defer rows.Close()
	var out []models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// mapConstraint turns a uniqueness violation (note slug, journal date) into
// apperr.ErrAlreadyExists.
func mapConstraint(err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%w: %s", apperr.ErrAlreadyExists, se.Error())
	}
	return err
}
