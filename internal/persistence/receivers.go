package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const receiverColumns = `id, room_id, name, model, type, position, repetition_amount, last_activated_button_id`

// AddReceiver stores a receiver with its buttons and type settings.
// The room must exist.
func (s *Store) AddReceiver(ctx context.Context, r *Receiver) error {
	if err := validateReceiver(r); err != nil {
		return err
	}
	return s.write(ctx, "adding receiver", func(w *writeTx) error {
		if err := mustExist(ctx, w, "rooms", r.RoomID, ErrRoomNotFound); err != nil {
			return err
		}
		if err := insertReceiver(ctx, w, r); err != nil {
			return err
		}
		w.changed(EntityReceiver, OpAdd, r.ID)
		return nil
	})
}

// GetReceiver returns the receiver with its buttons.
func (s *Store) GetReceiver(ctx context.Context, id int64) (*Receiver, error) {
	var r *Receiver
	err := s.read(ctx, "getting receiver", func(q dbtx) error {
		var err error
		r, err = getReceiver(ctx, q, "id = ?", id)
		return err
	})
	return r, err
}

// GetReceiverByName returns the receiver named name inside a room.
func (s *Store) GetReceiverByName(ctx context.Context, roomID int64, name string) (*Receiver, error) {
	var r *Receiver
	err := s.read(ctx, "getting receiver by name", func(q dbtx) error {
		var err error
		r, err = getReceiver(ctx, q, "room_id = ? AND name = ?", roomID, name)
		return err
	})
	return r, err
}

// ListReceivers returns the receivers of a room ordered by position.
func (s *Store) ListReceivers(ctx context.Context, roomID int64) ([]Receiver, error) {
	var out []Receiver
	err := s.read(ctx, "listing receivers", func(q dbtx) error {
		var err error
		out, err = listReceivers(ctx, q, roomID)
		return err
	})
	return out, err
}

// UpdateReceiver overwrites the receiver.
//
// Buttons are matched by ID: known buttons are updated, buttons with a zero
// ID are added, and stored buttons missing from r are removed together with
// scene items and actions that press them. Type settings are rewritten.
// Actions pressing the receiver's buttons follow it into its new room.
func (s *Store) UpdateReceiver(ctx context.Context, r *Receiver) error {
	if err := validateReceiver(r); err != nil {
		return err
	}
	return s.write(ctx, "updating receiver", func(w *writeTx) error {
		if err := mustExist(ctx, w, "rooms", r.RoomID, ErrRoomNotFound); err != nil {
			return err
		}
		if err := updateReceiver(ctx, w, r); err != nil {
			return err
		}
		w.changed(EntityReceiver, OpUpdate, r.ID)
		return nil
	})
}

// SetLastActivatedButton remembers the button last used on a receiver.
// The button must belong to the receiver.
func (s *Store) SetLastActivatedButton(ctx context.Context, receiverID, buttonID int64) error {
	return s.write(ctx, "setting last activated button", func(w *writeTx) error {
		if err := mustExist(ctx, w, "receivers", receiverID, ErrReceiverNotFound); err != nil {
			return err
		}
		if err := mustBelong(ctx, w, "buttons", buttonID, "receiver_id", receiverID, ErrButtonNotFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx,
			"UPDATE receivers SET last_activated_button_id = ? WHERE id = ?", buttonID, receiverID); err != nil {
			return fmt.Errorf("updating receiver %d: %w", receiverID, err)
		}
		w.changed(EntityReceiver, OpUpdate, receiverID)
		return nil
	})
}

// DeleteReceiver removes the receiver with its buttons, scene items,
// actions and widgets.
func (s *Store) DeleteReceiver(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting receiver", func(w *writeTx) error {
		if err := mustExist(ctx, w, "receivers", id, ErrReceiverNotFound); err != nil {
			return err
		}
		if err := deleteReceiverRows(ctx, w, id); err != nil {
			return err
		}
		w.changed(EntityReceiver, OpDelete, id)
		return nil
	})
}

func insertReceiver(ctx context.Context, w *writeTx, r *Receiver) error {
	result, err := w.ExecContext(ctx, `INSERT INTO receivers
		(room_id, name, model, type, position, repetition_amount, last_activated_button_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.RoomID, r.Name, r.Model, string(r.Type), r.Position, r.RepetitionAmount,
		nullInt64(r.LastActivatedButtonID))
	if err != nil {
		return fmt.Errorf("inserting receiver %s: %w", r.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading receiver id: %w", err)
	}

	for i := range r.Buttons {
		set(w, &r.Buttons[i].ReceiverID, id)
		if err := insertButton(ctx, w, &r.Buttons[i]); err != nil {
			return err
		}
	}
	if err := insertReceiverSettings(ctx, w, id, r); err != nil {
		return err
	}
	if err := checkLastActivatedButton(ctx, w, id, r.LastActivatedButtonID); err != nil {
		return err
	}

	set(w, &r.ID, id)
	return nil
}

func updateReceiver(ctx context.Context, w *writeTx, r *Receiver) error {
	if err := checkLastActivatedButton(ctx, w, r.ID, r.LastActivatedButtonID); err != nil {
		return err
	}
	result, err := w.ExecContext(ctx, `UPDATE receivers SET room_id = ?, name = ?, model = ?, type = ?,
		position = ?, repetition_amount = ?, last_activated_button_id = ? WHERE id = ?`,
		r.RoomID, r.Name, r.Model, string(r.Type), r.Position, r.RepetitionAmount,
		nullInt64(r.LastActivatedButtonID), r.ID)
	if err != nil {
		return fmt.Errorf("updating receiver %d: %w", r.ID, err)
	}
	if err := affectedOrNotFound(result, ErrReceiverNotFound); err != nil {
		return err
	}
	// Actions carry the receiver's room and apartment for cascades.
	if _, err := w.ExecContext(ctx, `UPDATE action_receiver SET room_id = ?,
		apartment_id = (SELECT apartment_id FROM rooms WHERE id = ?) WHERE receiver_id = ?`,
		r.RoomID, r.RoomID, r.ID); err != nil {
		return fmt.Errorf("moving actions of receiver %d: %w", r.ID, err)
	}

	stored, err := queryIDs(ctx, w, "SELECT id FROM buttons WHERE receiver_id = ?", r.ID)
	if err != nil {
		return fmt.Errorf("listing buttons of receiver %d: %w", r.ID, err)
	}
	keep := make(map[int64]bool, len(r.Buttons))
	for i := range r.Buttons {
		b := &r.Buttons[i]
		set(w, &b.ReceiverID, r.ID)
		if b.ID == 0 {
			if err := insertButton(ctx, w, b); err != nil {
				return err
			}
			keep[b.ID] = true
			continue
		}
		result, err := w.ExecContext(ctx,
			"UPDATE buttons SET name = ?, position = ?, signal = ? WHERE id = ? AND receiver_id = ?",
			b.Name, b.Position, nullStr(b.Signal), b.ID, r.ID)
		if err != nil {
			return fmt.Errorf("updating button %d: %w", b.ID, err)
		}
		if err := affectedOrNotFound(result, ErrButtonNotFound); err != nil {
			return fmt.Errorf("button %d of receiver %d: %w", b.ID, r.ID, err)
		}
		keep[b.ID] = true
	}
	for _, id := range stored {
		if !keep[id] {
			if err := deleteButton(ctx, w, r.ID, id); err != nil {
				return err
			}
		}
	}

	if err := execWithID(ctx, w, r.ID,
		"DELETE FROM receiver_dips WHERE receiver_id = ?",
		"DELETE FROM receiver_master_slave WHERE receiver_id = ?",
		"DELETE FROM receiver_autopair WHERE receiver_id = ?",
	); err != nil {
		return fmt.Errorf("clearing settings of receiver %d: %w", r.ID, err)
	}
	return insertReceiverSettings(ctx, w, r.ID, r)
}

func insertButton(ctx context.Context, w *writeTx, b *Button) error {
	result, err := w.ExecContext(ctx,
		"INSERT INTO buttons (receiver_id, name, position, signal) VALUES (?, ?, ?, ?)",
		b.ReceiverID, b.Name, b.Position, nullStr(b.Signal))
	if err != nil {
		return fmt.Errorf("inserting button %s: %w", b.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading button id: %w", err)
	}
	set(w, &b.ID, id)
	return nil
}

// deleteButton removes a button and everything that presses it.
func deleteButton(ctx context.Context, q dbtx, receiverID, buttonID int64) error {
	actionIDs, err := queryIDs(ctx, q,
		"SELECT action_id FROM action_receiver WHERE receiver_id = ? AND button_id = ?", receiverID, buttonID)
	if err != nil {
		return fmt.Errorf("finding actions of button %d: %w", buttonID, err)
	}
	if err := deleteActions(ctx, q, actionIDs); err != nil {
		return err
	}
	if err := execWithID(ctx, q, buttonID,
		"DELETE FROM scene_items WHERE button_id = ?",
		"UPDATE receivers SET last_activated_button_id = NULL WHERE last_activated_button_id = ?",
		"DELETE FROM buttons WHERE id = ?",
	); err != nil {
		return fmt.Errorf("deleting button %d: %w", buttonID, err)
	}
	return nil
}

// checkLastActivatedButton requires a remembered button to be one of the
// receiver's stored buttons.
func checkLastActivatedButton(ctx context.Context, q dbtx, receiverID int64, buttonID *int64) error {
	if buttonID == nil {
		return nil
	}
	return mustBelong(ctx, q, "buttons", *buttonID, "receiver_id", receiverID, ErrButtonNotFound)
}

// insertReceiverSettings writes the satellite row of the receiver's type.
func insertReceiverSettings(ctx context.Context, q dbtx, id int64, r *Receiver) error {
	var err error
	switch r.Type {
	case ReceiverDips:
		for i, on := range r.Dips {
			if _, err = q.ExecContext(ctx,
				"INSERT INTO receiver_dips (receiver_id, position, value) VALUES (?, ?, ?)",
				id, i, boolToInt(on)); err != nil {
				break
			}
		}
	case ReceiverMasterSlave:
		_, err = q.ExecContext(ctx,
			"INSERT INTO receiver_master_slave (receiver_id, master, slave) VALUES (?, ?, ?)",
			id, r.MasterSlave.Master, r.MasterSlave.Slave)
	case ReceiverAutoPair:
		_, err = q.ExecContext(ctx,
			"INSERT INTO receiver_autopair (receiver_id, seed) VALUES (?, ?)", id, *r.AutoPairSeed)
	}
	if err != nil {
		return fmt.Errorf("inserting %s settings of receiver %d: %w", r.Type, id, err)
	}
	return nil
}

// deleteReceiverRows removes a receiver and all rows depending on it.
func deleteReceiverRows(ctx context.Context, q dbtx, id int64) error {
	if err := deleteActionsReferencing(ctx, q, actionsByReceiver, id); err != nil {
		return err
	}
	if err := execWithID(ctx, q, id,
		"DELETE FROM buttons WHERE receiver_id = ?",
		"DELETE FROM receiver_dips WHERE receiver_id = ?",
		"DELETE FROM receiver_master_slave WHERE receiver_id = ?",
		"DELETE FROM receiver_autopair WHERE receiver_id = ?",
		"DELETE FROM scene_items WHERE receiver_id = ?",
		"DELETE FROM widgets WHERE kind = 'receiver' AND target_id = ?",
		"DELETE FROM receivers WHERE id = ?",
	); err != nil {
		return fmt.Errorf("deleting receiver %d: %w", id, err)
	}
	return nil
}

func getReceiver(ctx context.Context, q dbtx, where string, args ...any) (*Receiver, error) {
	row := q.QueryRowContext(ctx, "SELECT "+receiverColumns+" FROM receivers WHERE "+where, args...)
	r, err := scanReceiver(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiverNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadReceiverDetails(ctx, q, r); err != nil {
		return nil, err
	}
	return r, nil
}

func listReceivers(ctx context.Context, q dbtx, roomID int64) ([]Receiver, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+receiverColumns+" FROM receivers WHERE room_id = ? ORDER BY position, id", roomID)
	if err != nil {
		return nil, fmt.Errorf("querying receivers: %w", err)
	}
	var receivers []Receiver
	for rows.Next() {
		r, err := scanReceiver(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		receivers = append(receivers, *r)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating receivers: %w", err)
	}

	for i := range receivers {
		if err := loadReceiverDetails(ctx, q, &receivers[i]); err != nil {
			return nil, err
		}
	}
	return receivers, nil
}

func scanReceiver(row rowScanner) (*Receiver, error) {
	var r Receiver
	var typ string
	var lastButton sql.NullInt64
	err := row.Scan(&r.ID, &r.RoomID, &r.Name, &r.Model, &typ, &r.Position,
		&r.RepetitionAmount, &lastButton)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning receiver: %w", err)
	}
	r.Type = ReceiverType(typ)
	if lastButton.Valid {
		r.LastActivatedButtonID = &lastButton.Int64
	}
	return &r, nil
}

// loadReceiverDetails reads buttons and the type satellite of r.
func loadReceiverDetails(ctx context.Context, q dbtx, r *Receiver) error {
	buttons, err := listButtons(ctx, q, r.ID)
	if err != nil {
		return err
	}
	r.Buttons = buttons

	switch r.Type {
	case ReceiverDips:
		values, err := queryIDs(ctx, q,
			"SELECT value FROM receiver_dips WHERE receiver_id = ? ORDER BY position", r.ID)
		if err != nil {
			return fmt.Errorf("loading dips of receiver %d: %w", r.ID, err)
		}
		r.Dips = make([]bool, len(values))
		for i, v := range values {
			r.Dips[i] = v != 0
		}
	case ReceiverMasterSlave:
		var ms MasterSlave
		if err := q.QueryRowContext(ctx,
			"SELECT master, slave FROM receiver_master_slave WHERE receiver_id = ?", r.ID,
		).Scan(&ms.Master, &ms.Slave); err != nil {
			return fmt.Errorf("loading master/slave of receiver %d: %w", r.ID, err)
		}
		r.MasterSlave = &ms
	case ReceiverAutoPair:
		var seed int64
		if err := q.QueryRowContext(ctx,
			"SELECT seed FROM receiver_autopair WHERE receiver_id = ?", r.ID,
		).Scan(&seed); err != nil {
			return fmt.Errorf("loading seed of receiver %d: %w", r.ID, err)
		}
		r.AutoPairSeed = &seed
	}
	return nil
}

func listButtons(ctx context.Context, q dbtx, receiverID int64) ([]Button, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, receiver_id, name, position, signal
		FROM buttons WHERE receiver_id = ? ORDER BY position, id`, receiverID)
	if err != nil {
		return nil, fmt.Errorf("querying buttons of receiver %d: %w", receiverID, err)
	}
	defer rows.Close()

	var buttons []Button
	for rows.Next() {
		var b Button
		var signal sql.NullString
		if err := rows.Scan(&b.ID, &b.ReceiverID, &b.Name, &b.Position, &signal); err != nil {
			return nil, fmt.Errorf("scanning button: %w", err)
		}
		b.Signal = signal.String
		buttons = append(buttons, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating buttons: %w", err)
	}
	return buttons, nil
}
