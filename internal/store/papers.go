package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/models"
)

const paperColumns = `id, title, authors, year, venue, pdf_url, abstract, key_contribution, status, rating, tags, created_at, updated_at`

// CreatePaper inserts p and returns its id. An empty ID is assigned a UUID,
// an empty status becomes queue and zero timestamps are set to now.
func (db *DB) CreatePaper(ctx context.Context, p models.Paper) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.PaperQueue
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	authors, tags, err := encodePaperLists(p)
	if err != nil {
		return "", err
	}
	_, err = db.conn.ExecContext(ctx, `
		INSERT INTO papers (`+paperColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, authors, nullInt(p.Year), p.Venue, p.PDFURL, p.Abstract, p.KeyContribution,
		string(p.Status), nullInt(p.Rating), tags, p.CreatedAt.UnixNano(), p.UpdatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("store: insert paper: %w", mapConstraint(err))
	}
	return p.ID, nil
}

// UpdatePaper replaces the mutable fields of the paper with p.ID. A zero
// UpdatedAt is set to now.
func (db *DB) UpdatePaper(ctx context.Context, p models.Paper) error {
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}
	authors, tags, err := encodePaperLists(p)
	if err != nil {
		return err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE papers SET
			title            = ?,
			authors          = ?,
			year             = ?,
			venue            = ?,
			pdf_url          = ?,
			abstract         = ?,
			key_contribution = ?,
			status           = ?,
			rating           = ?,
			tags             = ?,
			updated_at       = ?
		WHERE id = ?
	`, p.Title, authors, nullInt(p.Year), p.Venue, p.PDFURL, p.Abstract, p.KeyContribution,
		string(p.Status), nullInt(p.Rating), tags, p.UpdatedAt.UnixNano(), p.ID)
	if err != nil {
		return fmt.Errorf("store: update paper: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// DeletePaper removes a paper together with its note and journal relations.
func (db *DB) DeletePaper(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `DELETE FROM papers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete paper: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM paper_notes WHERE paper_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete paper notes: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_papers WHERE paper_id = ?`, id); err != nil {
		return fmt.Errorf("store: delete journal papers: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// GetPaper returns the paper with the given id or apperr.ErrNotFound.
func (db *DB) GetPaper(ctx context.Context, id string) (*models.Paper, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+paperColumns+` FROM papers WHERE id = ?`, id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get paper: %w", err)
	}
	return p, nil
}

// ListPapers returns papers by most recent update. An empty status lists all.
func (db *DB) ListPapers(ctx context.Context, status models.PaperStatus) ([]models.Paper, error) {
	query := `SELECT ` + paperColumns + ` FROM papers`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	rows, err := db.conn.QueryContext(ctx, query+` ORDER BY updated_at DESC, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list papers: %w", err)
	}
	defer rows.Close()
	var out []models.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan paper: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// LinkPaperNote relates a paper to a note. Linking an already related pair
// does nothing. Existence of either side is the caller's concern.
func (db *DB) LinkPaperNote(ctx context.Context, paperID, noteID string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO paper_notes (paper_id, note_id, created_at) VALUES (?, ?, ?)
	`, paperID, noteID, time.Now().UTC().UnixNano())
	if err != nil {
		return fmt.Errorf("store: link paper note: %w", err)
	}
	return nil
}

// UnlinkPaperNote removes the relation between a paper and a note. Removing
// a relation that does not exist is not an error.
func (db *DB) UnlinkPaperNote(ctx context.Context, paperID, noteID string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM paper_notes WHERE paper_id = ? AND note_id = ?`, paperID, noteID)
	if err != nil {
		return fmt.Errorf("store: unlink paper note: %w", err)
	}
	return nil
}

// NoteIDsForPaper returns the ids of notes related to a paper, oldest
// relation first. Ids of deleted notes are included.
func (db *DB) NoteIDsForPaper(ctx context.Context, paperID string) ([]string, error) {
	return db.ids(ctx, `SELECT note_id FROM paper_notes WHERE paper_id = ? ORDER BY created_at, rowid`, paperID)
}

// PaperIDsForNote returns the ids of papers related to a note, oldest
// relation first.
func (db *DB) PaperIDsForNote(ctx context.Context, noteID string) ([]string, error) {
	return db.ids(ctx, `SELECT paper_id FROM paper_notes WHERE note_id = ? ORDER BY created_at, rowid`, noteID)
}

func (db *DB) ids(ctx context.Context, query string, arg string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("store: query ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func encodePaperLists(p models.Paper) (authors, tags string, err error) {
	if authors, err = encodeTags(p.Authors); err != nil {
		return "", "", err
	}
	if tags, err = encodeTags(p.Tags); err != nil {
		return "", "", err
	}
	return authors, tags, nil
}

func scanPaper(s scanner) (*models.Paper, error) {
	var (
		p                models.Paper
		authors, tags    string
		status           string
		year, rating     sql.NullInt64
		created, updated int64
	)
	if err := s.Scan(&p.ID, &p.Title, &authors, &year, &p.Venue, &p.PDFURL, &p.Abstract,
		&p.KeyContribution, &status, &rating, &tags, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(authors), &p.Authors); err != nil {
		return nil, fmt.Errorf("decode authors: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	p.Status = models.PaperStatus(status)
	p.Year = intPtr(year)
	p.Rating = intPtr(rating)
	p.CreatedAt = time.Unix(0, created).UTC()
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
