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

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/doctree"
	"github.com/starford/learnlog/internal/models"
)

const journalColumns = `id, date, content, time_spent, mood, tags, created_at, updated_at`

// CreateJournalEntry inserts e and returns its id. There is at most one
// entry per date; a second one yields apperr.ErrAlreadyExists.
func (db *DB) CreateJournalEntry(ctx context.Context, e models.JournalEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = e.CreatedAt
	}
	content, tags, err := encodeJournal(e)
	if err != nil {
		return "", err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO journal_entries (`+journalColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Date, content, nullInt(e.TimeSpent), e.Mood, tags, e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("store: insert journal entry: %w", mapConstraint(err))
	}
	return e.ID, nil
}

// UpdateJournalEntry replaces the mutable fields of the entry with e.ID.
// The date is fixed once created.
func (db *DB) UpdateJournalEntry(ctx context.Context, e models.JournalEntry) error {
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now().UTC()
	}
	content, tags, err := encodeJournal(e)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE journal_entries SET
			content    = ?,
			time_spent = ?,
			mood       = ?,
			tags       = ?,
			updated_at = ?
		WHERE id = ?
	`, content, nullInt(e.TimeSpent), e.Mood, tags, e.UpdatedAt.UnixNano(), e.ID)
	if err != nil {
		return fmt.Errorf("store: update journal entry: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeleteJournalEntry removes an entry and its paper relations.
func (db *DB) DeleteJournalEntry(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete journal entry: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_papers WHERE journal_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete journal papers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// JournalEntryByDate returns the entry for date (YYYY-MM-DD) or
// apperr.ErrNotFound.
func (db *DB) JournalEntryByDate(ctx context.Context, date string) (*models.JournalEntry, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journal_entries WHERE date = ?`, date)
	e, err := scanJournal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: journal entry by date: %w", err)
	}
	return e, nil
}

// ListJournalEntries returns entries with from <= date <= to, oldest first.
// An empty bound is open. Dates compare as strings, which orders correctly
// for the YYYY-MM-DD layout.
func (db *DB) ListJournalEntries(ctx context.Context, from, to string) ([]models.JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if from != "" {
		where = append(where, `date >= ?`)
		args = append(args, from)
	}
	if to != "" {
		where = append(where, `date <= ?`)
		args = append(args, to)
	}
	query := `SELECT ` + journalColumns + ` FROM journal_entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	rows, err := db.conn.QueryContext(ctx, query+` ORDER BY date`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list journal entries: %w", err)
	}
	defer rows.Close()
	var out []models.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan journal entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// LinkJournalPaper records that a paper was worked on in an entry. A
// repeated link does nothing.
func (db *DB) LinkJournalPaper(ctx context.Context, journalID, paperID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO journal_papers (journal_id, paper_id, created_at) VALUES (?, ?, ?)
	`, journalID, paperID, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: link journal paper: %w", err)
	}
	return nil
}

// UnlinkJournalPaper removes the relation if present.
func (db *DB) UnlinkJournalPaper(ctx context.Context, journalID, paperID string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM journal_papers WHERE journal_id = ? AND paper_id = ?`, journalID, paperID)
	if err != nil {
		return fmt.Errorf("store: unlink journal paper: %w", err)
	}
	return nil
}

// PaperIDsForJournal returns the ids of papers linked to an entry, oldest
// relation first.
func (db *DB) PaperIDsForJournal(ctx context.Context, journalID string) ([]string, error) {
	return db.ids(ctx, `SELECT paper_id FROM journal_papers WHERE journal_id = ? ORDER BY created_at, rowid`, journalID)
}

func encodeJournal(e models.JournalEntry) (content, tags string, err error) {
	raw, err := doctree.Encode(e.Content)
	if err != nil {
		return "", "", fmt.Errorf("store: encode content: %w", err)
	}
	if tags, err = encodeTags(e.Tags); err != nil {
		return "", "", err
	}
	return string(raw), tags, nil
}

func scanJournal(s scanner) (*models.JournalEntry, error) {
	var (
		e                models.JournalEntry
		content, tags    string
		timeSpent        sql.NullInt64
		created, updated int64
	)
	if err := s.Scan(&e.ID, &e.Date, &content, &timeSpent, &e.Mood, &tags, &created, &updated); err != nil {
		return nil, err
	}
	root, err := doctree.Decode([]byte(content))
	if err != nil {
		return nil, err
	}
	e.Content = root
	if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	e.TimeSpent = intPtr(timeSpent)
	e.CreatedAt = time.Unix(0, created).UTC()
	e.UpdatedAt = time.Unix(0, updated).UTC()
	return &e, nil
}
