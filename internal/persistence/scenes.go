package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddScene stores a scene with its items. The apartment must exist.
func (s *Store) AddScene(ctx context.Context, sc *Scene) error {
	if err := validateScene(sc); err != nil {
		return err
	}
	return s.write(ctx, "adding scene", func(w *writeTx) error {
		if err := mustExist(ctx, w, "apartments", sc.ApartmentID, ErrApartmentNotFound); err != nil {
			return err
		}
		result, err := w.ExecContext(ctx,
			"INSERT INTO scenes (apartment_id, name, position) VALUES (?, ?, ?)",
			sc.ApartmentID, sc.Name, sc.Position)
		if err != nil {
			return fmt.Errorf("inserting scene %q: %w", sc.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading scene id: %w", err)
		}
		if err := insertSceneItems(ctx, w, id, sc.Items); err != nil {
			return err
		}
		set(w, &sc.ID, id)
		w.changed(EntityScene, OpAdd, id)
		return nil
	})
}

// GetScene returns the scene with its items in order.
func (s *Store) GetScene(ctx context.Context, id int64) (*Scene, error) {
	var sc *Scene
	err := s.read(ctx, "getting scene", func(q dbtx) error {
		row := q.QueryRowContext(ctx,
			"SELECT id, apartment_id, name, position FROM scenes WHERE id = ?", id)
		var err error
		sc, err = scanScene(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSceneNotFound
		}
		if err != nil {
			return err
		}
		sc.Items, err = listSceneItems(ctx, q, id)
		return err
	})
	return sc, err
}

// ListScenes returns the scenes of an apartment ordered by position.
func (s *Store) ListScenes(ctx context.Context, apartmentID int64) ([]Scene, error) {
	var scenes []Scene
	err := s.read(ctx, "listing scenes", func(q dbtx) error {
		rows, err := q.QueryContext(ctx, `SELECT id, apartment_id, name, position FROM scenes
			WHERE apartment_id = ? ORDER BY position, id`, apartmentID)
		if err != nil {
			return fmt.Errorf("querying scenes: %w", err)
		}
		for rows.Next() {
			sc, err := scanScene(rows)
			if err != nil {
				rows.Close()
				return err
			}
			scenes = append(scenes, *sc)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return fmt.Errorf("iterating scenes: %w", err)
		}

		for i := range scenes {
			if scenes[i].Items, err = listSceneItems(ctx, q, scenes[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	return scenes, err
}

// UpdateScene overwrites the scene and replaces its items.
func (s *Store) UpdateScene(ctx context.Context, sc *Scene) error {
	if err := validateScene(sc); err != nil {
		return err
	}
	return s.write(ctx, "updating scene", func(w *writeTx) error {
		if err := mustExist(ctx, w, "apartments", sc.ApartmentID, ErrApartmentNotFound); err != nil {
			return err
		}
		result, err := w.ExecContext(ctx,
			"UPDATE scenes SET apartment_id = ?, name = ?, position = ? WHERE id = ?",
			sc.ApartmentID, sc.Name, sc.Position, sc.ID)
		if err != nil {
			return fmt.Errorf("updating scene %d: %w", sc.ID, err)
		}
		if err := affectedOrNotFound(result, ErrSceneNotFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx,
			"UPDATE action_scene SET apartment_id = ? WHERE scene_id = ?", sc.ApartmentID, sc.ID); err != nil {
			return fmt.Errorf("moving actions of scene %d: %w", sc.ID, err)
		}
		if _, err := w.ExecContext(ctx, "DELETE FROM scene_items WHERE scene_id = ?", sc.ID); err != nil {
			return fmt.Errorf("clearing items of scene %d: %w", sc.ID, err)
		}
		if err := insertSceneItems(ctx, w, sc.ID, sc.Items); err != nil {
			return err
		}
		w.changed(EntityScene, OpUpdate, sc.ID)
		return nil
	})
}

// DeleteScene removes the scene with its items, actions and widgets.
func (s *Store) DeleteScene(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting scene", func(w *writeTx) error {
		if err := mustExist(ctx, w, "scenes", id, ErrSceneNotFound); err != nil {
			return err
		}
		if err := deleteSceneRows(ctx, w, id); err != nil {
			return err
		}
		w.changed(EntityScene, OpDelete, id)
		return nil
	})
}

// insertSceneItems writes items in order. Each item's button must belong
// to its receiver.
func insertSceneItems(ctx context.Context, q dbtx, sceneID int64, items []SceneItem) error {
	for i, item := range items {
		if err := mustExist(ctx, q, "receivers", item.ReceiverID, ErrReceiverNotFound); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if err := mustBelong(ctx, q, "buttons", item.ButtonID, "receiver_id", item.ReceiverID, ErrButtonNotFound); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
		if _, err := q.ExecContext(ctx,
			"INSERT INTO scene_items (scene_id, position, receiver_id, button_id) VALUES (?, ?, ?, ?)",
			sceneID, i, item.ReceiverID, item.ButtonID); err != nil {
			return fmt.Errorf("inserting item %d of scene %d: %w", i, sceneID, err)
		}
	}
	return nil
}

func deleteSceneRows(ctx context.Context, q dbtx, id int64) error {
	if err := deleteActionsReferencing(ctx, q, actionsByScene, id); err != nil {
		return err
	}
	if err := execWithID(ctx, q, id,
		"DELETE FROM scene_items WHERE scene_id = ?",
		"DELETE FROM widgets WHERE kind = 'scene' AND target_id = ?",
		"DELETE FROM scenes WHERE id = ?",
	); err != nil {
		return fmt.Errorf("deleting scene %d: %w", id, err)
	}
	return nil
}

func scanScene(row rowScanner) (*Scene, error) {
	var sc Scene
	if err := row.Scan(&sc.ID, &sc.ApartmentID, &sc.Name, &sc.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning scene: %w", err)
	}
	return &sc, nil
}

func listSceneItems(ctx context.Context, q dbtx, sceneID int64) ([]SceneItem, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT receiver_id, button_id FROM scene_items WHERE scene_id = ? ORDER BY position", sceneID)
	if err != nil {
		return nil, fmt.Errorf("querying items of scene %d: %w", sceneID, err)
	}
	defer rows.Close()

	var items []SceneItem
	for rows.Next() {
		var item SceneItem
		if err := rows.Scan(&item.ReceiverID, &item.ButtonID); err != nil {
			return nil, fmt.Errorf("scanning scene item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating scene items: %w", err)
	}
	return items, nil
}
