package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jask/overlayhost/internal/database"
)

// EventRepo handles the overlay event journal.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Insert(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO overlay_events(id, layer, link_id, kind, detail, created_at)
	VALUES (?, ?, ?, ?, ?, ?);
	`, e.ID, e.Layer, e.LinkID, e.Kind, e.Detail, e.CreatedAt)
	return err
}

// InsertBatch writes events in a single transaction.
func (r *EventRepo) InsertBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	return database.WithTx(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO overlay_events(id, layer, link_id, kind, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?);
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range events {
			if _, err := stmt.ExecContext(ctx, e.ID, e.Layer, e.LinkID, e.Kind, e.Detail, e.CreatedAt); err != nil {
				return fmt.Errorf("insert event %s: %w", e.ID, err)
			}
		}
		return nil
	})
}

// Recent returns the newest events first.
func (r *EventRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.query(ctx, `
	SELECT id, layer, link_id, kind, detail, created_at
	FROM overlay_events
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?`, limit)
}

// ForLink returns the lifecycle of one presented instance, oldest first.
func (r *EventRepo) ForLink(ctx context.Context, layer, linkID string) ([]Event, error) {
	return r.query(ctx, `
	SELECT id, layer, link_id, kind, detail, created_at
	FROM overlay_events
	WHERE layer = ? AND link_id = ?
	ORDER BY created_at, rowid`, layer, linkID)
}

// CountByKind returns how many events of each kind were recorded.
func (r *EventRepo) CountByKind(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM overlay_events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// PruneBefore deletes events older than cutoff and reports how many went.
func (r *EventRepo) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM overlay_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *EventRepo) query(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Layer, &e.LinkID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
