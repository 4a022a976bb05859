package persistence

import (
	"context"
	"fmt"
)

// AddCallEvent stores a call event with its phone numbers and actions.
func (s *Store) AddCallEvent(ctx context.Context, e *CallEvent) error {
	if err := validateCallEvent(e); err != nil {
		return err
	}
	return s.write(ctx, "adding call event", func(w *writeTx) error {
		result, err := w.ExecContext(ctx,
			"INSERT INTO call_events (name, active) VALUES (?, ?)", e.Name, boolToInt(e.Active))
		if err != nil {
			return fmt.Errorf("inserting call event %q: %w", e.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading call event id: %w", err)
		}
		if err := writeCallEventRelations(ctx, w, id, e); err != nil {
			return err
		}
		set(w, &e.ID, id)
		w.changed(EntityCallEvent, OpAdd, id)
		return nil
	})
}

// GetCallEvent returns the call event with its numbers and actions.
func (s *Store) GetCallEvent(ctx context.Context, id int64) (*CallEvent, error) {
	var e *CallEvent
	err := s.read(ctx, "getting call event", func(q dbtx) error {
		events, err := listCallEvents(ctx, q, "WHERE id = ?", id)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return ErrCallEventNotFound
		}
		e = &events[0]
		return nil
	})
	return e, err
}

// ListCallEvents returns all call events ordered by id.
func (s *Store) ListCallEvents(ctx context.Context) ([]CallEvent, error) {
	var out []CallEvent
	err := s.read(ctx, "listing call events", func(q dbtx) error {
		var err error
		out, err = listCallEvents(ctx, q, "")
		return err
	})
	return out, err
}

// CallEventsForNumber returns the active call events that react to number.
func (s *Store) CallEventsForNumber(ctx context.Context, number string) ([]CallEvent, error) {
	var out []CallEvent
	err := s.read(ctx, "listing call events for number", func(q dbtx) error {
		var err error
		out, err = listCallEvents(ctx, q,
			"WHERE active = 1 AND id IN (SELECT call_event_id FROM call_event_numbers WHERE number = ?)", number)
		return err
	})
	return out, err
}

// UpdateCallEvent overwrites the call event and replaces its numbers and actions.
func (s *Store) UpdateCallEvent(ctx context.Context, e *CallEvent) error {
	if err := validateCallEvent(e); err != nil {
		return err
	}
	return s.write(ctx, "updating call event", func(w *writeTx) error {
		result, err := w.ExecContext(ctx,
			"UPDATE call_events SET name = ?, active = ? WHERE id = ?", e.Name, boolToInt(e.Active), e.ID)
		if err != nil {
			return fmt.Errorf("updating call event %d: %w", e.ID, err)
		}
		if err := affectedOrNotFound(result, ErrCallEventNotFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx, "DELETE FROM call_event_numbers WHERE call_event_id = ?", e.ID); err != nil {
			return fmt.Errorf("clearing numbers of call event %d: %w", e.ID, err)
		}
		if err := writeCallEventRelations(ctx, w, e.ID, e); err != nil {
			return err
		}
		w.changed(EntityCallEvent, OpUpdate, e.ID)
		return nil
	})
}

// DeleteCallEvent removes the call event with its numbers and actions.
func (s *Store) DeleteCallEvent(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting call event", func(w *writeTx) error {
		if err := mustExist(ctx, w, "call_events", id, ErrCallEventNotFound); err != nil {
			return err
		}
		if err := callEventActions(id).clear(ctx, w); err != nil {
			return err
		}
		if err := execWithID(ctx, w, id,
			"DELETE FROM call_event_numbers WHERE call_event_id = ?",
			"DELETE FROM call_events WHERE id = ?",
		); err != nil {
			return fmt.Errorf("deleting call event %d: %w", id, err)
		}
		w.changed(EntityCallEvent, OpDelete, id)
		return nil
	})
}

func callEventActions(id int64) actionList {
	return actionList{table: "call_event_actions", keys: []string{"call_event_id"}, args: []any{id}}
}

func writeCallEventRelations(ctx context.Context, w *writeTx, id int64, e *CallEvent) error {
	for _, number := range e.PhoneNumbers {
		if _, err := w.ExecContext(ctx,
			"INSERT OR IGNORE INTO call_event_numbers (call_event_id, number) VALUES (?, ?)", id, number); err != nil {
			return fmt.Errorf("inserting number of call event %d: %w", id, err)
		}
	}
	return callEventActions(id).replace(ctx, w, e.Actions)
}

func listCallEvents(ctx context.Context, q dbtx, where string, args ...any) ([]CallEvent, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, active FROM call_events "+where+" ORDER BY id", args...)
	if err != nil {
		return nil, fmt.Errorf("querying call events: %w", err)
	}
	var events []CallEvent
	for rows.Next() {
		var e CallEvent
		var active int
		if err := rows.Scan(&e.ID, &e.Name, &active); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning call event: %w", err)
		}
		e.Active = active != 0
		events = append(events, e)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating call events: %w", err)
	}

	for i := range events {
		e := &events[i]
		if e.PhoneNumbers, err = queryStrings(ctx, q,
			"SELECT number FROM call_event_numbers WHERE call_event_id = ? ORDER BY number", e.ID); err != nil {
			return nil, fmt.Errorf("loading numbers of call event %d: %w", e.ID, err)
		}
		if e.Actions, err = callEventActions(e.ID).load(ctx, q); err != nil {
			return nil, err
		}
	}
	return events, nil
}
