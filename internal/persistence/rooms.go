package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddRoom stores a room together with its receivers. The apartment must exist.
func (s *Store) AddRoom(ctx context.Context, r *Room) error {
	if err := validateRoom(r); err != nil {
		return err
	}
	return s.write(ctx, "adding room", func(w *writeTx) error {
		if err := mustExist(ctx, w, "apartments", r.ApartmentID, ErrApartmentNotFound); err != nil {
			return err
		}
		if err := insertRoom(ctx, w, r); err != nil {
			return err
		}
		w.changed(EntityRoom, OpAdd, r.ID)
		return nil
	})
}

// GetRoom returns the room with its receivers.
func (s *Store) GetRoom(ctx context.Context, id int64) (*Room, error) {
	var r *Room
	err := s.read(ctx, "getting room", func(q dbtx) error {
		var err error
		r, err = getRoom(ctx, q, "id = ?", id)
		return err
	})
	return r, err
}

// GetRoomByName returns the room named name inside an apartment.
func (s *Store) GetRoomByName(ctx context.Context, apartmentID int64, name string) (*Room, error) {
	var r *Room
	err := s.read(ctx, "getting room by name", func(q dbtx) error {
		var err error
		r, err = getRoom(ctx, q, "apartment_id = ? AND name = ?", apartmentID, name)
		return err
	})
	return r, err
}

// ListRooms returns the rooms of an apartment ordered by position.
func (s *Store) ListRooms(ctx context.Context, apartmentID int64) ([]Room, error) {
	var out []Room
	err := s.read(ctx, "listing rooms", func(q dbtx) error {
		var err error
		out, err = listRooms(ctx, q, apartmentID)
		return err
	})
	return out, err
}

// UpdateRoom overwrites the room's fields and gateway links.
// Actions addressing the room or its receivers follow it to a new apartment.
// Receivers are managed through the receiver methods and are left as they are.
func (s *Store) UpdateRoom(ctx context.Context, r *Room) error {
	if err := validateRoom(r); err != nil {
		return err
	}
	return s.write(ctx, "updating room", func(w *writeTx) error {
		if err := mustExist(ctx, w, "apartments", r.ApartmentID, ErrApartmentNotFound); err != nil {
			return err
		}
		result, err := w.ExecContext(ctx,
			"UPDATE rooms SET apartment_id = ?, name = ?, position = ?, collapsed = ? WHERE id = ?",
			r.ApartmentID, r.Name, r.Position, boolToInt(r.Collapsed), r.ID)
		if err != nil {
			return fmt.Errorf("updating room %d: %w", r.ID, err)
		}
		if err := affectedOrNotFound(result, ErrRoomNotFound); err != nil {
			return err
		}
		for _, table := range []string{"action_receiver", "action_room"} {
			if _, err := w.ExecContext(ctx,
				"UPDATE "+table+" SET apartment_id = ? WHERE room_id = ?", r.ApartmentID, r.ID); err != nil {
				return fmt.Errorf("moving actions of room %d: %w", r.ID, err)
			}
		}
		if _, err := w.ExecContext(ctx, "DELETE FROM room_gateways WHERE room_id = ?", r.ID); err != nil {
			return fmt.Errorf("clearing gateways of room %d: %w", r.ID, err)
		}
		if err := linkGateways(ctx, w, "room_gateways", "room_id", r.ID, r.GatewayIDs); err != nil {
			return err
		}
		w.changed(EntityRoom, OpUpdate, r.ID)
		return nil
	})
}

// SetRoomCollapsed stores whether the room is shown collapsed.
func (s *Store) SetRoomCollapsed(ctx context.Context, id int64, collapsed bool) error {
	return s.write(ctx, "collapsing room", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "UPDATE rooms SET collapsed = ? WHERE id = ?", boolToInt(collapsed), id)
		if err != nil {
			return fmt.Errorf("updating room %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrRoomNotFound); err != nil {
			return err
		}
		w.changed(EntityRoom, OpUpdate, id)
		return nil
	})
}

// DeleteRoom removes the room, its receivers and everything pointing at them.
func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting room", func(w *writeTx) error {
		if err := mustExist(ctx, w, "rooms", id, ErrRoomNotFound); err != nil {
			return err
		}
		if err := deleteRoomRows(ctx, w, id); err != nil {
			return err
		}
		w.changed(EntityRoom, OpDelete, id)
		return nil
	})
}

func insertRoom(ctx context.Context, w *writeTx, r *Room) error {
	result, err := w.ExecContext(ctx,
		"INSERT INTO rooms (apartment_id, name, position, collapsed) VALUES (?, ?, ?, ?)",
		r.ApartmentID, r.Name, r.Position, boolToInt(r.Collapsed))
	if err != nil {
		return fmt.Errorf("inserting room %s: %w", r.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading room id: %w", err)
	}

	if err := linkGateways(ctx, w, "room_gateways", "room_id", id, r.GatewayIDs); err != nil {
		return err
	}
	for i := range r.Receivers {
		set(w, &r.Receivers[i].RoomID, id)
		if err := insertReceiver(ctx, w, &r.Receivers[i]); err != nil {
			return err
		}
	}

	set(w, &r.ID, id)
	return nil
}

// deleteRoomRows removes a room and all rows depending on it.
func deleteRoomRows(ctx context.Context, q dbtx, id int64) error {
	receiverIDs, err := queryIDs(ctx, q, "SELECT id FROM receivers WHERE room_id = ?", id)
	if err != nil {
		return fmt.Errorf("listing receivers of room %d: %w", id, err)
	}
	for _, receiverID := range receiverIDs {
		if err := deleteReceiverRows(ctx, q, receiverID); err != nil {
			return err
		}
	}

	if err := deleteActionsReferencing(ctx, q, actionsByRoom, id); err != nil {
		return err
	}
	if err := execWithID(ctx, q, id,
		"DELETE FROM room_gateways WHERE room_id = ?",
		"DELETE FROM widgets WHERE kind = 'room' AND target_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	); err != nil {
		return fmt.Errorf("deleting room %d: %w", id, err)
	}
	return nil
}

func getRoom(ctx context.Context, q dbtx, where string, args ...any) (*Room, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, apartment_id, name, position, collapsed FROM rooms WHERE "+where, args...)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadRoomRelations(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func listRooms(ctx context.Context, q dbtx, apartmentID int64) ([]Room, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, apartment_id, name, position, collapsed FROM rooms
		WHERE apartment_id = ? ORDER BY position, id`, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("querying rooms: %w", err)
	}
	var rooms []Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating rooms: %w", err)
	}

	for i := range rooms {
		if err := loadRoomRelations(ctx, q, &rooms[i]); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

func scanRoom(row rowScanner) (*Room, error) {
	var r Room
	var collapsed int
	if err := row.Scan(&r.ID, &r.ApartmentID, &r.Name, &r.Position, &collapsed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning room: %w", err)
	}
	r.Collapsed = collapsed != 0
	return &r, nil
}

func loadRoomRelations(ctx context.Context, q dbtx, r *Room) error {
	ids, err := queryIDs(ctx, q,
		"SELECT gateway_id FROM room_gateways WHERE room_id = ? ORDER BY gateway_id", r.ID)
	if err != nil {
		return fmt.Errorf("loading gateways of room %d: %w", r.ID, err)
	}
	r.GatewayIDs = ids

	receivers, err := listReceivers(ctx, q, r.ID)
	if err != nil {
		return err
	}
	r.Receivers = receivers
	return nil
}
