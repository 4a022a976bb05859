package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddWidget binds a host widget id to a receiver, room or scene.
// Re-adding an id rebinds it. The target must exist.
func (s *Store) AddWidget(ctx context.Context, wg Widget) error {
	if err := validateWidget(wg); err != nil {
		return err
	}
	target, notFound := widgetTarget(wg.Kind)
	return s.write(ctx, "adding widget", func(w *writeTx) error {
		if err := mustExist(ctx, w, target, wg.TargetID, notFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx, `INSERT INTO widgets (id, kind, target_id) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET kind = excluded.kind, target_id = excluded.target_id`,
			wg.ID, string(wg.Kind), wg.TargetID); err != nil {
			return fmt.Errorf("inserting widget %d: %w", wg.ID, err)
		}
		w.changed(EntityWidget, OpAdd, wg.ID)
		return nil
	})
}

// GetWidget returns the widget with the given host id.
func (s *Store) GetWidget(ctx context.Context, id int64) (*Widget, error) {
	var wg *Widget
	err := s.read(ctx, "getting widget", func(q dbtx) error {
		var kind string
		w := Widget{}
		err := q.QueryRowContext(ctx, "SELECT id, kind, target_id FROM widgets WHERE id = ?", id).
			Scan(&w.ID, &kind, &w.TargetID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrWidgetNotFound
		}
		if err != nil {
			return fmt.Errorf("scanning widget: %w", err)
		}
		w.Kind = WidgetKind(kind)
		wg = &w
		return nil
	})
	return wg, err
}

// DeleteWidget removes the widget with the given host id.
func (s *Store) DeleteWidget(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting widget", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "DELETE FROM widgets WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting widget %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrWidgetNotFound); err != nil {
			return err
		}
		w.changed(EntityWidget, OpDelete, id)
		return nil
	})
}

// widgetTarget returns the table a widget kind points into.
func widgetTarget(kind WidgetKind) (table string, notFound error) {
	switch kind {
	case WidgetReceiver:
		return "receivers", ErrReceiverNotFound
	case WidgetRoom:
		return "rooms", ErrRoomNotFound
	default:
		return "scenes", ErrSceneNotFound
	}
}
