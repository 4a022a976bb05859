package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AddApartment stores a new apartment with its gateway links and geofence.
// IDs are written back into a, including a.Geofence and its actions.
// Adding an active apartment deactivates all others.
func (s *Store) AddApartment(ctx context.Context, a *Apartment) error {
	if err := validateApartment(a); err != nil {
		return err
	}
	return s.write(ctx, "adding apartment", func(w *writeTx) error {
		if err := insertApartment(ctx, w, a); err != nil {
			return err
		}
		w.changed(EntityApartment, OpAdd, a.ID)
		return nil
	})
}

// GetApartment returns the apartment with the given id.
func (s *Store) GetApartment(ctx context.Context, id int64) (*Apartment, error) {
	var a *Apartment
	err := s.read(ctx, "getting apartment", func(q dbtx) error {
		var err error
		a, err = getApartment(ctx, q, "id = ?", id)
		return err
	})
	return a, err
}

// GetApartmentByName returns the apartment with the given name.
func (s *Store) GetApartmentByName(ctx context.Context, name string) (*Apartment, error) {
	var a *Apartment
	err := s.read(ctx, "getting apartment by name", func(q dbtx) error {
		var err error
		a, err = getApartment(ctx, q, "name = ?", name)
		return err
	})
	return a, err
}

// ListApartments returns all apartments ordered by position.
func (s *Store) ListApartments(ctx context.Context) ([]Apartment, error) {
	var out []Apartment
	err := s.read(ctx, "listing apartments", func(q dbtx) error {
		var err error
		out, err = listApartments(ctx, q)
		return err
	})
	return out, err
}

// UpdateApartment overwrites the apartment's fields, gateway links and geofence.
//
// A geofence whose ID matches the stored one is updated in place. Any other
// geofence replaces the stored one; a nil geofence removes it.
func (s *Store) UpdateApartment(ctx context.Context, a *Apartment) error {
	if err := validateApartment(a); err != nil {
		return err
	}
	return s.write(ctx, "updating apartment", func(w *writeTx) error {
		if err := updateApartment(ctx, w, a); err != nil {
			return err
		}
		w.changed(EntityApartment, OpUpdate, a.ID)
		return nil
	})
}

// SetActiveApartment marks id as the active apartment and all others inactive.
func (s *Store) SetActiveApartment(ctx context.Context, id int64) error {
	return s.write(ctx, "activating apartment", func(w *writeTx) error {
		if err := mustExist(ctx, w, "apartments", id, ErrApartmentNotFound); err != nil {
			return err
		}
		if _, err := w.ExecContext(ctx,
			"UPDATE apartments SET active = CASE WHEN id = ? THEN 1 ELSE 0 END", id); err != nil {
			return fmt.Errorf("activating apartment %d: %w", id, err)
		}
		w.changed(EntityApartment, OpUpdate, id)
		return nil
	})
}

// DeleteApartment removes the apartment with everything it owns: rooms and
// their receivers, scenes, its geofence, gateway links and every action or
// widget pointing into it.
func (s *Store) DeleteApartment(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting apartment", func(w *writeTx) error {
		if err := deleteApartment(ctx, w, id); err != nil {
			return err
		}
		w.changed(EntityApartment, OpDelete, id)
		return nil
	})
}

func insertApartment(ctx context.Context, w *writeTx, a *Apartment) error {
	if a.Active {
		if _, err := w.ExecContext(ctx, "UPDATE apartments SET active = 0"); err != nil {
			return fmt.Errorf("deactivating apartments: %w", err)
		}
	}

	result, err := w.ExecContext(ctx,
		"INSERT INTO apartments (name, active, position) VALUES (?, ?, ?)",
		a.Name, boolToInt(a.Active), a.Position)
	if err != nil {
		return fmt.Errorf("inserting apartment %s: %w", a.Name, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading apartment id: %w", err)
	}

	if err := linkGateways(ctx, w, "apartment_gateways", "apartment_id", id, a.GatewayIDs); err != nil {
		return err
	}
	if a.Geofence != nil {
		if err := insertGeofence(ctx, w, a.Geofence); err != nil {
			return err
		}
		if err := linkApartmentGeofence(ctx, w, id, a.Geofence.ID); err != nil {
			return err
		}
	}

	set(w, &a.ID, id)
	return nil
}

func updateApartment(ctx context.Context, w *writeTx, a *Apartment) error {
	if a.Active {
		if _, err := w.ExecContext(ctx, "UPDATE apartments SET active = 0 WHERE id != ?", a.ID); err != nil {
			return fmt.Errorf("deactivating apartments: %w", err)
		}
	}

	result, err := w.ExecContext(ctx,
		"UPDATE apartments SET name = ?, active = ?, position = ? WHERE id = ?",
		a.Name, boolToInt(a.Active), a.Position, a.ID)
	if err != nil {
		return fmt.Errorf("updating apartment %d: %w", a.ID, err)
	}
	if err := affectedOrNotFound(result, ErrApartmentNotFound); err != nil {
		return err
	}

	if _, err := w.ExecContext(ctx, "DELETE FROM apartment_gateways WHERE apartment_id = ?", a.ID); err != nil {
		return fmt.Errorf("clearing gateways of apartment %d: %w", a.ID, err)
	}
	if err := linkGateways(ctx, w, "apartment_gateways", "apartment_id", a.ID, a.GatewayIDs); err != nil {
		return err
	}

	current, err := apartmentGeofenceID(ctx, w, a.ID)
	if err != nil {
		return err
	}
	switch {
	case a.Geofence == nil:
		if current != 0 {
			return deleteGeofence(ctx, w, current)
		}
		return nil
	case current != 0 && a.Geofence.ID == current:
		return updateGeofence(ctx, w, a.Geofence)
	default:
		if current != 0 {
			if err := deleteGeofence(ctx, w, current); err != nil {
				return err
			}
		}
		if err := insertGeofence(ctx, w, a.Geofence); err != nil {
			return err
		}
		return linkApartmentGeofence(ctx, w, a.ID, a.Geofence.ID)
	}
}

func deleteApartment(ctx context.Context, q dbtx, id int64) error {
	if err := mustExist(ctx, q, "apartments", id, ErrApartmentNotFound); err != nil {
		return err
	}

	roomIDs, err := queryIDs(ctx, q, "SELECT id FROM rooms WHERE apartment_id = ?", id)
	if err != nil {
		return fmt.Errorf("listing rooms of apartment %d: %w", id, err)
	}
	for _, roomID := range roomIDs {
		if err := deleteRoomRows(ctx, q, roomID); err != nil {
			return err
		}
	}

	sceneIDs, err := queryIDs(ctx, q, "SELECT id FROM scenes WHERE apartment_id = ?", id)
	if err != nil {
		return fmt.Errorf("listing scenes of apartment %d: %w", id, err)
	}
	for _, sceneID := range sceneIDs {
		if err := deleteSceneRows(ctx, q, sceneID); err != nil {
			return err
		}
	}

	if err := deleteActionsReferencing(ctx, q, actionsByApartment, id); err != nil {
		return err
	}

	geofenceID, err := apartmentGeofenceID(ctx, q, id)
	if err != nil {
		return err
	}
	if geofenceID != 0 {
		if err := deleteGeofence(ctx, q, geofenceID); err != nil {
			return err
		}
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM apartment_gateways WHERE apartment_id = ?", id); err != nil {
		return fmt.Errorf("unlinking gateways of apartment %d: %w", id, err)
	}
	if _, err := q.ExecContext(ctx, "DELETE FROM apartments WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting apartment %d: %w", id, err)
	}
	return nil
}

// getApartment loads one apartment matching where (a single-parameter condition).
func getApartment(ctx context.Context, q dbtx, where string, arg any) (*Apartment, error) {
	row := q.QueryRowContext(ctx,
		"SELECT id, name, active, position FROM apartments WHERE "+where, arg)
	a, err := scanApartment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApartmentNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := loadApartmentRelations(ctx, q, a); err != nil {
		return nil, err
	}
	return a, nil
}

func listApartments(ctx context.Context, q dbtx) ([]Apartment, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name, active, position FROM apartments ORDER BY position, id")
	if err != nil {
		return nil, fmt.Errorf("querying apartments: %w", err)
	}
	var apartments []Apartment
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		apartments = append(apartments, *a)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating apartments: %w", err)
	}

	for i := range apartments {
		if err := loadApartmentRelations(ctx, q, &apartments[i]); err != nil {
			return nil, err
		}
	}
	return apartments, nil
}

func scanApartment(row rowScanner) (*Apartment, error) {
	var a Apartment
	var active int
	if err := row.Scan(&a.ID, &a.Name, &active, &a.Position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning apartment: %w", err)
	}
	a.Active = active != 0
	return &a, nil
}

func loadApartmentRelations(ctx context.Context, q dbtx, a *Apartment) error {
	ids, err := queryIDs(ctx, q,
		"SELECT gateway_id FROM apartment_gateways WHERE apartment_id = ? ORDER BY gateway_id", a.ID)
	if err != nil {
		return fmt.Errorf("loading gateways of apartment %d: %w", a.ID, err)
	}
	a.GatewayIDs = ids

	geofenceID, err := apartmentGeofenceID(ctx, q, a.ID)
	if err != nil {
		return err
	}
	if geofenceID != 0 {
		g, err := getGeofence(ctx, q, geofenceID)
		if err != nil {
			return fmt.Errorf("loading geofence of apartment %d: %w", a.ID, err)
		}
		a.Geofence = g
	}
	return nil
}

// apartmentGeofenceID returns the id of the apartment's geofence, or 0.
func apartmentGeofenceID(ctx context.Context, q dbtx, apartmentID int64) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		"SELECT geofence_id FROM apartment_geofences WHERE apartment_id = ?", apartmentID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading geofence of apartment %d: %w", apartmentID, err)
	}
	return id, nil
}

func linkApartmentGeofence(ctx context.Context, q dbtx, apartmentID, geofenceID int64) error {
	if _, err := q.ExecContext(ctx,
		"INSERT INTO apartment_geofences (apartment_id, geofence_id) VALUES (?, ?)",
		apartmentID, geofenceID); err != nil {
		return fmt.Errorf("linking geofence %d to apartment %d: %w", geofenceID, apartmentID, err)
	}
	return nil
}

// linkGateways inserts (owner, gateway) rows into one of the gateway link tables.
// Every gateway must exist.
func linkGateways(ctx context.Context, q dbtx, table, ownerCol string, ownerID int64, gatewayIDs []int64) error {
	query := "INSERT OR IGNORE INTO " + table + " (" + ownerCol + ", gateway_id) VALUES (?, ?)"
	for _, gid := range gatewayIDs {
		if err := mustExist(ctx, q, "gateways", gid, ErrGatewayNotFound); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, query, ownerID, gid); err != nil {
			return fmt.Errorf("linking gateway %d to %s %d: %w", gid, ownerCol, ownerID, err)
		}
	}
	return nil
}
