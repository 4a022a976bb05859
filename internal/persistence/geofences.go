package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const geofenceColumns = `id, name, active, latitude, longitude, radius, snapshot, state`

// AddGeofence stores a custom geofence, one not owned by an apartment.
// Apartment geofences are written through AddApartment and UpdateApartment.
func (s *Store) AddGeofence(ctx context.Context, g *Geofence) error {
	if err := validateGeofence(g); err != nil {
		return err
	}
	return s.write(ctx, "adding geofence", func(w *writeTx) error {
		if err := insertGeofence(ctx, w, g); err != nil {
			return err
		}
		w.changed(EntityGeofence, OpAdd, g.ID)
		return nil
	})
}

// GetGeofence returns the geofence with its enter and exit actions.
func (s *Store) GetGeofence(ctx context.Context, id int64) (*Geofence, error) {
	var g *Geofence
	err := s.read(ctx, "getting geofence", func(q dbtx) error {
		var err error
		g, err = getGeofence(ctx, q, id)
		return err
	})
	return g, err
}

// ListGeofences returns every geofence, apartment-owned ones included.
func (s *Store) ListGeofences(ctx context.Context) ([]Geofence, error) {
	var out []Geofence
	err := s.read(ctx, "listing geofences", func(q dbtx) error {
		var err error
		out, err = listGeofences(ctx, q, "")
		return err
	})
	return out, err
}

// ListCustomGeofences returns the geofences that belong to no apartment.
func (s *Store) ListCustomGeofences(ctx context.Context) ([]Geofence, error) {
	var out []Geofence
	err := s.read(ctx, "listing custom geofences", func(q dbtx) error {
		var err error
		out, err = listGeofences(ctx, q,
			"WHERE id NOT IN (SELECT geofence_id FROM apartment_geofences)")
		return err
	})
	return out, err
}

// UpdateGeofence overwrites the geofence and replaces its actions.
func (s *Store) UpdateGeofence(ctx context.Context, g *Geofence) error {
	if err := validateGeofence(g); err != nil {
		return err
	}
	return s.write(ctx, "updating geofence", func(w *writeTx) error {
		if err := updateGeofence(ctx, w, g); err != nil {
			return err
		}
		w.changed(EntityGeofence, OpUpdate, g.ID)
		return nil
	})
}

// SetGeofenceState records the last known position relative to the geofence.
func (s *Store) SetGeofenceState(ctx context.Context, id int64, state GeofenceState) error {
	if err := validateGeofenceState(state); err != nil {
		return err
	}
	return s.write(ctx, "setting geofence state", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "UPDATE geofences SET state = ? WHERE id = ?", string(state), id)
		if err != nil {
			return fmt.Errorf("updating geofence %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrGeofenceNotFound); err != nil {
			return err
		}
		w.changed(EntityGeofence, OpUpdate, id)
		return nil
	})
}

// EnableGeofence switches a geofence on or off.
func (s *Store) EnableGeofence(ctx context.Context, id int64, active bool) error {
	return s.write(ctx, "enabling geofence", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "UPDATE geofences SET active = ? WHERE id = ?", boolToInt(active), id)
		if err != nil {
			return fmt.Errorf("updating geofence %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrGeofenceNotFound); err != nil {
			return err
		}
		w.changed(EntityGeofence, OpUpdate, id)
		return nil
	})
}

// DeleteGeofence removes the geofence, its actions and any apartment link.
func (s *Store) DeleteGeofence(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting geofence", func(w *writeTx) error {
		if err := mustExist(ctx, w, "geofences", id, ErrGeofenceNotFound); err != nil {
			return err
		}
		if err := deleteGeofence(ctx, w, id); err != nil {
			return err
		}
		w.changed(EntityGeofence, OpDelete, id)
		return nil
	})
}

func geofenceActions(id int64, event string) actionList {
	return actionList{
		table: "geofence_actions",
		keys:  []string{"geofence_id", "event"},
		args:  []any{id, event},
	}
}

func insertGeofence(ctx context.Context, w *writeTx, g *Geofence) error {
	result, err := w.ExecContext(ctx, `INSERT INTO geofences
		(name, active, latitude, longitude, radius, snapshot, state)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		g.Name, boolToInt(g.Active), g.Latitude, g.Longitude, g.Radius, g.Snapshot, string(geofenceState(g.State)))
	if err != nil {
		return fmt.Errorf("inserting geofence %s: %w", g.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading geofence id: %w", err)
	}
	if err := geofenceActions(id, "enter").replace(ctx, w, g.EnterActions); err != nil {
		return err
	}
	if err := geofenceActions(id, "exit").replace(ctx, w, g.ExitActions); err != nil {
		return err
	}
	set(w, &g.ID, id)
	set(w, &g.State, geofenceState(g.State))
	return nil
}

func updateGeofence(ctx context.Context, w *writeTx, g *Geofence) error {
	result, err := w.ExecContext(ctx, `UPDATE geofences SET name = ?, active = ?, latitude = ?,
		longitude = ?, radius = ?, snapshot = ?, state = ? WHERE id = ?`,
		g.Name, boolToInt(g.Active), g.Latitude, g.Longitude, g.Radius, g.Snapshot,
		string(geofenceState(g.State)), g.ID)
	if err != nil {
		return fmt.Errorf("updating geofence %d: %w", g.ID, err)
	}
	if err := affectedOrNotFound(result, ErrGeofenceNotFound); err != nil {
		return err
	}
	if err := geofenceActions(g.ID, "enter").replace(ctx, w, g.EnterActions); err != nil {
		return err
	}
	if err := geofenceActions(g.ID, "exit").replace(ctx, w, g.ExitActions); err != nil {
		return err
	}
	set(w, &g.State, geofenceState(g.State))
	return nil
}

func deleteGeofence(ctx context.Context, q dbtx, id int64) error {
	if err := geofenceActions(id, "enter").clear(ctx, q); err != nil {
		return err
	}
	if err := geofenceActions(id, "exit").clear(ctx, q); err != nil {
		return err
	}
	if err := execWithID(ctx, q, id,
		"DELETE FROM apartment_geofences WHERE geofence_id = ?",
		"DELETE FROM geofences WHERE id = ?",
	); err != nil {
		return fmt.Errorf("deleting geofence %d: %w", id, err)
	}
	return nil
}

func getGeofence(ctx context.Context, q dbtx, id int64) (*Geofence, error) {
	row := q.QueryRowContext(ctx, "SELECT "+geofenceColumns+" FROM geofences WHERE id = ?", id)
	g, err := scanGeofence(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGeofenceNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadGeofenceActions(ctx, q, g); err != nil {
		return nil, err
	}
	return g, nil
}

func listGeofences(ctx context.Context, q dbtx, where string) ([]Geofence, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+geofenceColumns+" FROM geofences "+where+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying geofences: %w", err)
	}
	var geofences []Geofence
	for rows.Next() {
		g, err := scanGeofence(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		geofences = append(geofences, *g)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating geofences: %w", err)
	}

	for i := range geofences {
		if err := loadGeofenceActions(ctx, q, &geofences[i]); err != nil {
			return nil, err
		}
	}
	return geofences, nil
}

func scanGeofence(row rowScanner) (*Geofence, error) {
	var g Geofence
	var active int
	var state string
	err := row.Scan(&g.ID, &g.Name, &active, &g.Latitude, &g.Longitude, &g.Radius, &g.Snapshot, &state)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning geofence: %w", err)
	}
	g.Active = active != 0
	g.State = GeofenceState(state)
	return &g, nil
}

func loadGeofenceActions(ctx context.Context, q dbtx, g *Geofence) error {
	var err error
	if g.EnterActions, err = geofenceActions(g.ID, "enter").load(ctx, q); err != nil {
		return err
	}
	if g.ExitActions, err = geofenceActions(g.ID, "exit").load(ctx, q); err != nil {
		return err
	}
	return nil
}

// geofenceState defaults an unset state to GeofenceUnknown.
func geofenceState(s GeofenceState) GeofenceState {
	if s == "" {
		return GeofenceUnknown
	}
	return s
}
