package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timerColumns = `id, name, active, execution_time, type, interval_ms, last_execution`

// AddTimer stores a timer with its weekdays and actions.
func (s *Store) AddTimer(ctx context.Context, t *Timer) error {
	if err := validateTimer(t); err != nil {
		return err
	}
	return s.write(ctx, "adding timer", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, `INSERT INTO timers
			(name, active, execution_time, type, interval_ms, last_execution)
			VALUES (?, ?, ?, ?, ?, ?)`,
			t.Name, boolToInt(t.Active), formatTime(t.ExecutionTime), string(t.Type),
			t.Interval.Milliseconds(), nullTime(t.LastExecution))
		if err != nil {
			return fmt.Errorf("inserting timer %q: %w", t.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading timer id: %w", err)
		}
		if err := writeTimerRelations(ctx, w, id, t); err != nil {
			return err
		}
		set(w, &t.ID, id)
		w.changed(EntityTimer, OpAdd, id)
		return nil
	})
}

// GetTimer returns the timer with its weekdays and actions.
func (s *Store) GetTimer(ctx context.Context, id int64) (*Timer, error) {
	var t *Timer
	err := s.read(ctx, "getting timer", func(q dbtx) error {
		row := q.QueryRowContext(ctx, "SELECT "+timerColumns+" FROM timers WHERE id = ?", id)
		var err error
		t, err = scanTimer(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTimerNotFound
		}
		if err != nil {
			return err
		}
		return loadTimerRelations(ctx, q, t)
	})
	return t, err
}

// ListTimers returns all timers ordered by id.
func (s *Store) ListTimers(ctx context.Context) ([]Timer, error) {
	var out []Timer
	err := s.read(ctx, "listing timers", func(q dbtx) error {
		var err error
		out, err = listTimers(ctx, q, "")
		return err
	})
	return out, err
}

// ListActiveTimers returns the timers that are switched on.
func (s *Store) ListActiveTimers(ctx context.Context) ([]Timer, error) {
	var out []Timer
	err := s.read(ctx, "listing active timers", func(q dbtx) error {
		var err error
		out, err = listTimers(ctx, q, "WHERE active = 1")
		return err
	})
	return out, err
}

// UpdateTimer overwrites the timer and replaces its weekdays and actions.
func (s *Store) UpdateTimer(ctx context.Context, t *Timer) error {
	if err := validateTimer(t); err != nil {
		return err
	}
	return s.write(ctx, "updating timer", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, `UPDATE timers SET name = ?, active = ?, execution_time = ?,
			type = ?, interval_ms = ?, last_execution = ? WHERE id = ?`,
			t.Name, boolToInt(t.Active), formatTime(t.ExecutionTime), string(t.Type),
			t.Interval.Milliseconds(), nullTime(t.LastExecution), t.ID)
		if err != nil {
			return fmt.Errorf("updating timer %d: %w", t.ID, err)
		}
		if err := affectedOrNotFound(result, ErrTimerNotFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx, "DELETE FROM timer_weekdays WHERE timer_id = ?", t.ID); err != nil {
			return fmt.Errorf("clearing weekdays of timer %d: %w", t.ID, err)
		}
		if err := writeTimerRelations(ctx, w, t.ID, t); err != nil {
			return err
		}
		w.changed(EntityTimer, OpUpdate, t.ID)
		return nil
	})
}

// EnableTimer switches a timer on or off.
func (s *Store) EnableTimer(ctx context.Context, id int64, active bool) error {
	return s.write(ctx, "enabling timer", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "UPDATE timers SET active = ? WHERE id = ?", boolToInt(active), id)
		if err != nil {
			return fmt.Errorf("updating timer %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrTimerNotFound); err != nil {
			return err
		}
		w.changed(EntityTimer, OpUpdate, id)
		return nil
	})
}

// MarkTimerExecuted records when the timer last ran.
func (s *Store) MarkTimerExecuted(ctx context.Context, id int64, at time.Time) error {
	return s.write(ctx, "marking timer executed", func(w *writeTx) error {
		result, err := w.ExecContext(ctx,
			"UPDATE timers SET last_execution = ? WHERE id = ?", formatTime(at), id)
		if err != nil {
			return fmt.Errorf("updating timer %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrTimerNotFound); err != nil {
			return err
		}
		w.changed(EntityTimer, OpUpdate, id)
		return nil
	})
}

// DeleteTimer removes the timer with its weekdays and actions.
func (s *Store) DeleteTimer(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting timer", func(w *writeTx) error {
		if err := mustExist(ctx, w, "timers", id, ErrTimerNotFound); err != nil {
			return err
		}
		if err := timerActions(id).clear(ctx, w); err != nil {
			return err
		}
		if err := execWithID(ctx, w, id,
			"DELETE FROM timer_weekdays WHERE timer_id = ?",
			"DELETE FROM timers WHERE id = ?",
		); err != nil {
			return fmt.Errorf("deleting timer %d: %w", id, err)
		}
		w.changed(EntityTimer, OpDelete, id)
		return nil
	})
}

func timerActions(id int64) actionList {
	return actionList{table: "timer_actions", keys: []string{"timer_id"}, args: []any{id}}
}

func writeTimerRelations(ctx context.Context, w *writeTx, id int64, t *Timer) error {
	for _, day := range t.Weekdays {
		if _, err := w.ExecContext(ctx,
			"INSERT OR IGNORE INTO timer_weekdays (timer_id, weekday) VALUES (?, ?)", id, int(day)); err != nil {
			return fmt.Errorf("inserting weekday %s of timer %d: %w", day, id, err)
		}
	}
	return timerActions(id).replace(ctx, w, t.Actions)
}

func listTimers(ctx context.Context, q dbtx, where string) ([]Timer, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+timerColumns+" FROM timers "+where+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying timers: %w", err)
	}
	var timers []Timer
	for rows.Next() {
		t, err := scanTimer(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		timers = append(timers, *t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating timers: %w", err)
	}

	for i := range timers {
		if err := loadTimerRelations(ctx, q, &timers[i]); err != nil {
			return nil, err
		}
	}
	return timers, nil
}

func scanTimer(row rowScanner) (*Timer, error) {
	var t Timer
	var active int
	var execTime, typ string
	var intervalMS int64
	var lastExec sql.NullString
	err := row.Scan(&t.ID, &t.Name, &active, &execTime, &typ, &intervalMS, &lastExec)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning timer: %w", err)
	}
	t.Active = active != 0
	t.Type = TimerType(typ)
	t.Interval = time.Duration(intervalMS) * time.Millisecond
	if t.ExecutionTime, err = parseTime(execTime); err != nil {
		return nil, fmt.Errorf("timer %d: %w", t.ID, err)
	}
	if lastExec.Valid {
		last, err := parseTime(lastExec.String)
		if err != nil {
			return nil, fmt.Errorf("timer %d: %w", t.ID, err)
		}
		t.LastExecution = &last
	}
	return &t, nil
}

func loadTimerRelations(ctx context.Context, q dbtx, t *Timer) error {
	days, err := queryIDs(ctx, q,
		"SELECT weekday FROM timer_weekdays WHERE timer_id = ? ORDER BY weekday", t.ID)
	if err != nil {
		return fmt.Errorf("loading weekdays of timer %d: %w", t.ID, err)
	}
	t.Weekdays = nil
	for _, d := range days {
		t.Weekdays = append(t.Weekdays, time.Weekday(d))
	}

	t.Actions, err = timerActions(t.ID).load(ctx, q)
	return err
}
