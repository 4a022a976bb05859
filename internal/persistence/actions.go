package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// actionSatellites lists the per-kind payload tables.
var actionSatellites = []string{"action_receiver", "action_room", "action_scene", "action_pause"}

// actionLinkTables lists every table that owns actions.
var actionLinkTables = []string{"geofence_actions", "timer_actions", "call_event_actions", "alarm_actions"}

// insertAction stores a validated action and sets a.ID.
// Every entity the payload names must exist and sit where the payload says.
func insertAction(ctx context.Context, w *writeTx, a *Action) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := checkActionTargets(ctx, w, a); err != nil {
		return err
	}

	result, err := w.ExecContext(ctx, "INSERT INTO actions (kind) VALUES (?)", string(a.Kind))
	if err != nil {
		return fmt.Errorf("inserting %s action: %w", a.Kind, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading action id: %w", err)
	}

	switch a.Kind {
	case ActionReceiver:
		p := a.Receiver
		_, err = w.ExecContext(ctx, `INSERT INTO action_receiver
			(action_id, apartment_id, room_id, receiver_id, button_id) VALUES (?, ?, ?, ?, ?)`,
			id, p.ApartmentID, p.RoomID, p.ReceiverID, p.ButtonID)
	case ActionRoom:
		p := a.Room
		_, err = w.ExecContext(ctx, `INSERT INTO action_room
			(action_id, apartment_id, room_id, button_name) VALUES (?, ?, ?, ?)`,
			id, p.ApartmentID, p.RoomID, p.ButtonName)
	case ActionScene:
		p := a.Scene
		_, err = w.ExecContext(ctx, `INSERT INTO action_scene
			(action_id, apartment_id, scene_id) VALUES (?, ?, ?)`,
			id, p.ApartmentID, p.SceneID)
	case ActionPause:
		_, err = w.ExecContext(ctx, `INSERT INTO action_pause (action_id, duration_ms) VALUES (?, ?)`,
			id, a.Pause.Duration.Milliseconds())
	}
	if err != nil {
		return fmt.Errorf("inserting %s payload of action %d: %w", a.Kind, id, err)
	}

	set(w, &a.ID, id)
	return nil
}

// checkActionTargets resolves the ids of a payload from the apartment down.
func checkActionTargets(ctx context.Context, q dbtx, a *Action) error {
	var apartmentID int64
	switch a.Kind {
	case ActionReceiver:
		apartmentID = a.Receiver.ApartmentID
	case ActionRoom:
		apartmentID = a.Room.ApartmentID
	case ActionScene:
		apartmentID = a.Scene.ApartmentID
	default:
		return nil
	}
	if err := mustExist(ctx, q, "apartments", apartmentID, ErrApartmentNotFound); err != nil {
		return err
	}

	switch a.Kind {
	case ActionReceiver:
		p := a.Receiver
		if err := mustBelong(ctx, q, "rooms", p.RoomID, "apartment_id", p.ApartmentID, ErrRoomNotFound); err != nil {
			return err
		}
		if err := mustBelong(ctx, q, "receivers", p.ReceiverID, "room_id", p.RoomID, ErrReceiverNotFound); err != nil {
			return err
		}
		return mustBelong(ctx, q, "buttons", p.ButtonID, "receiver_id", p.ReceiverID, ErrButtonNotFound)
	case ActionRoom:
		return mustBelong(ctx, q, "rooms", a.Room.RoomID, "apartment_id", apartmentID, ErrRoomNotFound)
	default:
		return mustBelong(ctx, q, "scenes", a.Scene.SceneID, "apartment_id", apartmentID, ErrSceneNotFound)
	}
}

// getAction loads an action and resolves its payload from the satellite
// table named by the kind column.
func getAction(ctx context.Context, q dbtx, id int64) (Action, error) {
	a := Action{ID: id}
	var kind string
	err := q.QueryRowContext(ctx, "SELECT kind FROM actions WHERE id = ?", id).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return Action{}, ErrActionNotFound
	}
	if err != nil {
		return Action{}, fmt.Errorf("reading action %d: %w", id, err)
	}
	a.Kind = ActionKind(kind)

	switch a.Kind {
	case ActionReceiver:
		var p ReceiverAction
		err = q.QueryRowContext(ctx, `SELECT apartment_id, room_id, receiver_id, button_id
			FROM action_receiver WHERE action_id = ?`, id).
			Scan(&p.ApartmentID, &p.RoomID, &p.ReceiverID, &p.ButtonID)
		a.Receiver = &p
	case ActionRoom:
		var p RoomAction
		err = q.QueryRowContext(ctx, `SELECT apartment_id, room_id, button_name
			FROM action_room WHERE action_id = ?`, id).
			Scan(&p.ApartmentID, &p.RoomID, &p.ButtonName)
		a.Room = &p
	case ActionScene:
		var p SceneAction
		err = q.QueryRowContext(ctx, `SELECT apartment_id, scene_id
			FROM action_scene WHERE action_id = ?`, id).
			Scan(&p.ApartmentID, &p.SceneID)
		a.Scene = &p
	case ActionPause:
		var ms int64
		err = q.QueryRowContext(ctx, "SELECT duration_ms FROM action_pause WHERE action_id = ?", id).Scan(&ms)
		a.Pause = &PauseAction{Duration: time.Duration(ms) * time.Millisecond}
	default:
		return Action{}, fmt.Errorf("action %d has unknown kind %q", id, kind)
	}
	if err != nil {
		return Action{}, fmt.Errorf("reading %s payload of action %d: %w", kind, id, err)
	}
	return a, nil
}

// deleteActions removes actions with their payloads and owner links.
func deleteActions(ctx context.Context, q dbtx, ids []int64) error {
	for _, id := range ids {
		if _, err := q.ExecContext(ctx, "DELETE FROM actions WHERE id = ?", id); err != nil {
			return fmt.Errorf("deleting action %d: %w", id, err)
		}
		for _, table := range actionSatellites {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE action_id = ?", id); err != nil {
				return fmt.Errorf("deleting %s of action %d: %w", table, id, err)
			}
		}
		for _, table := range actionLinkTables {
			if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE action_id = ?", id); err != nil {
				return fmt.Errorf("unlinking action %d from %s: %w", id, table, err)
			}
		}
	}
	return nil
}

// Queries for actions that point at an entity about to be deleted.
const (
	actionsByApartment = `SELECT action_id FROM action_receiver WHERE apartment_id = ?
		UNION SELECT action_id FROM action_room WHERE apartment_id = ?
		UNION SELECT action_id FROM action_scene WHERE apartment_id = ?`
	actionsByRoom = `SELECT action_id FROM action_receiver WHERE room_id = ?
		UNION SELECT action_id FROM action_room WHERE room_id = ?`
	actionsByReceiver = `SELECT action_id FROM action_receiver WHERE receiver_id = ?`
	actionsByScene    = `SELECT action_id FROM action_scene WHERE scene_id = ?`
)

// deleteActionsReferencing removes every action selected by query.
// query takes id once per placeholder.
func deleteActionsReferencing(ctx context.Context, q dbtx, query string, id int64) error {
	args := make([]any, strings.Count(query, "?"))
	for i := range args {
		args[i] = id
	}
	ids, err := queryIDs(ctx, q, query, args...)
	if err != nil {
		return fmt.Errorf("finding actions referencing %d: %w", id, err)
	}
	return deleteActions(ctx, q, ids)
}

// actionList addresses the ordered actions of one owner, e.g. the exit
// actions of geofence 4: {table: "geofence_actions", keys: {"geofence_id", "event"}, args: {4, "exit"}}.
type actionList struct {
	table string
	keys  []string
	args  []any
}

func (l actionList) where() string {
	conds := make([]string, len(l.keys))
	for i, k := range l.keys {
		conds[i] = k + " = ?"
	}
	return strings.Join(conds, " AND ")
}

func (l actionList) ids(ctx context.Context, q dbtx) ([]int64, error) {
	ids, err := queryIDs(ctx, q,
		"SELECT action_id FROM "+l.table+" WHERE "+l.where()+" ORDER BY position", l.args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", l.table, err)
	}
	return ids, nil
}

// load returns the owner's actions in order.
func (l actionList) load(ctx context.Context, q dbtx) ([]Action, error) {
	ids, err := l.ids(ctx, q)
	if err != nil {
		return nil, err
	}
	actions := make([]Action, 0, len(ids))
	for _, id := range ids {
		a, err := getAction(ctx, q, id)
		if err != nil {
			return nil, err
		}
		actions = append(actions, a)
	}
	return actions, nil
}

// clear deletes the owner's actions.
func (l actionList) clear(ctx context.Context, q dbtx) error {
	ids, err := l.ids(ctx, q)
	if err != nil {
		return err
	}
	return deleteActions(ctx, q, ids)
}

// replace deletes the owner's actions and stores actions in their place,
// setting the new ids on the slice elements.
func (l actionList) replace(ctx context.Context, w *writeTx, actions []Action) error {
	if err := l.clear(ctx, w); err != nil {
		return err
	}

	cols := strings.Join(l.keys, ", ")
	placeholders := strings.Repeat("?, ", len(l.keys))
	query := "INSERT INTO " + l.table + " (" + cols + ", position, action_id) VALUES (" + placeholders + "?, ?)"

	for i := range actions {
		if err := insertAction(ctx, w, &actions[i]); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		args := append(append([]any{}, l.args...), i, actions[i].ID)
		if _, err := w.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("linking action %d in %s: %w", actions[i].ID, l.table, err)
		}
	}
	return nil
}
