package persistence

import (
	"context"
	"fmt"
	"time"
)

// AddHistoryItem appends a history entry. A zero Time is set to now.
func (s *Store) AddHistoryItem(ctx context.Context, h *HistoryItem) error {
	if h.Description == "" {
		return fmt.Errorf("%w: history item needs a description", ErrInvalid)
	}
	return s.write(ctx, "adding history item", func(w *writeTx) error {
		if h.Time.IsZero() {
			set(w, &h.Time, time.Now().UTC())
		}
		result, err := w.ExecContext(ctx,
			"INSERT INTO history (time, description, long_description) VALUES (?, ?, ?)",
			formatTime(h.Time), h.Description, h.LongDescription)
		if err != nil {
			return fmt.Errorf("inserting history item: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading history id: %w", err)
		}
		set(w, &h.ID, id)
		w.history = append(w.history, *h)
		return nil
	})
}

// ListHistory returns history entries newest first.
// A limit of zero or less returns all of them.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]HistoryItem, error) {
	query := "SELECT id, time, description, long_description FROM history ORDER BY time DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var items []HistoryItem
	err := s.read(ctx, "listing history", func(q dbtx) error {
		rows, err := q.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var h HistoryItem
			var at string
			if err := rows.Scan(&h.ID, &at, &h.Description, &h.LongDescription); err != nil {
				return fmt.Errorf("scanning history item: %w", err)
			}
			if h.Time, err = parseTime(at); err != nil {
				return fmt.Errorf("history item %d: %w", h.ID, err)
			}
			items = append(items, h)
		}
		return rows.Err()
	})
	return items, err
}

// ClearHistory deletes all history entries and returns how many were removed.
func (s *Store) ClearHistory(ctx context.Context) (int64, error) {
	var n int64
	err := s.write(ctx, "clearing history", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "DELETE FROM history")
		if err != nil {
			return fmt.Errorf("deleting history: %w", err)
		}
		n, _ = result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
		w.changed(EntityHistory, OpDelete, 0)
		return nil
	})
	return n, err
}
