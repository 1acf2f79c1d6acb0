package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/learnlog/internal/apperr"
	"github.com/starford/learnlog/internal/models"
)

// CreateLink inserts an edge and returns its id. Endpoints are not checked
// and duplicate pairs are accepted.
func (db *DB) CreateLink(ctx context.Context, e models.LinkEdge) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO note_links (id, source_note_id, target_note_id, created_at)
		VALUES (?, ?, ?, ?)
	`, e.ID, e.SourceNoteID, e.TargetNoteID, e.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("store: insert link: %w", err)
	}
	return e.ID, nil
}

// DeleteLink removes one edge by id.
func (db *DB) DeleteLink(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM note_links WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete link: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// LinksBySource returns the outgoing edges of a note in insertion order.
func (db *DB) LinksBySource(ctx context.Context, sourceID string) ([]models.LinkEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source_note_id, target_note_id, created_at
		FROM note_links WHERE source_note_id = ? ORDER BY rowid
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("store: links by source: %w", err)
	}
	return collectLinks(rows)
}

// LinksByTarget returns the incoming edges of a note in insertion order.
func (db *DB) LinksByTarget(ctx context.Context, targetID string) ([]models.LinkEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source_note_id, target_note_id, created_at
		FROM note_links WHERE target_note_id = ? ORDER BY rowid
	`, targetID)
	if err != nil {
		return nil, fmt.Errorf("store: links by target: %w", err)
	}
	return collectLinks(rows)
}

// AllLinks returns every edge, including dangling ones.
func (db *DB) AllLinks(ctx context.Context) ([]models.LinkEdge, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, source_note_id, target_note_id, created_at
		FROM note_links ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("store: all links: %w", err)
	}
	return collectLinks(rows)
}

func collectLinks(rows *sql.Rows) ([]models.LinkEdge, error) {
	defer rows.Close()
	var out []models.LinkEdge
	for rows.Next() {
		var (
			e       models.LinkEdge
			created int64
		)
		if err := rows.Scan(&e.ID, &e.SourceNoteID, &e.TargetNoteID, &created); err != nil {
			return nil, fmt.Errorf("store: scan link: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
