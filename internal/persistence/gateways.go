package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const gatewayColumns = `id, model, name, firmware, active, local_host, local_port, wan_host, wan_port`

// AddGateway stores a gateway with its SSIDs and apartment links.
//
// If another gateway already uses the same local or WAN address, nothing is
// written and the error is a *GatewayExistsError naming that gateway.
func (s *Store) AddGateway(ctx context.Context, g *Gateway) error {
	if err := validateGateway(g); err != nil {
		return err
	}
	return s.write(ctx, "adding gateway", func(w *writeTx) error {
		if err := checkGatewayAddress(ctx, w, g, 0); err != nil {
			return err
		}
		result, err := w.ExecContext(ctx, `INSERT INTO gateways
			(model, name, firmware, active, local_host, local_port, wan_host, wan_port)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			g.Model, g.Name, g.Firmware, boolToInt(g.Active),
			g.LocalHost, g.LocalPort, g.WANHost, g.WANPort)
		if err != nil {
			return fmt.Errorf("inserting gateway %q: %w", g.Name, err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading gateway id: %w", err)
		}
		if err := writeGatewayRelations(ctx, w, id, g); err != nil {
			return err
		}
		set(w, &g.ID, id)
		w.changed(EntityGateway, OpAdd, id)
		return nil
	})
}

// GetGateway returns the gateway with the given id.
func (s *Store) GetGateway(ctx context.Context, id int64) (*Gateway, error) {
	var g *Gateway
	err := s.read(ctx, "getting gateway", func(q dbtx) error {
		row := q.QueryRowContext(ctx, "SELECT "+gatewayColumns+" FROM gateways WHERE id = ?", id)
		var err error
		g, err = scanGateway(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrGatewayNotFound
		}
		if err != nil {
			return err
		}
		return loadGatewayRelations(ctx, q, g)
	})
	return g, err
}

// ListGateways returns all gateways ordered by id.
func (s *Store) ListGateways(ctx context.Context) ([]Gateway, error) {
	var out []Gateway
	err := s.read(ctx, "listing gateways", func(q dbtx) error {
		var err error
		out, err = listGateways(ctx, q, "")
		return err
	})
	return out, err
}

// ListActiveGateways returns the gateways that are switched on.
func (s *Store) ListActiveGateways(ctx context.Context) ([]Gateway, error) {
	var out []Gateway
	err := s.read(ctx, "listing active gateways", func(q dbtx) error {
		var err error
		out, err = listGateways(ctx, q, "WHERE active = 1")
		return err
	})
	return out, err
}

// UpdateGateway overwrites the gateway, its SSIDs and apartment links.
// The address must not collide with another gateway.
func (s *Store) UpdateGateway(ctx context.Context, g *Gateway) error {
	if err := validateGateway(g); err != nil {
		return err
	}
	return s.write(ctx, "updating gateway", func(w *writeTx) error {
		if err := checkGatewayAddress(ctx, w, g, g.ID); err != nil {
			return err
		}
		result, err := w.ExecContext(ctx, `UPDATE gateways SET model = ?, name = ?, firmware = ?,
			active = ?, local_host = ?, local_port = ?, wan_host = ?, wan_port = ? WHERE id = ?`,
			g.Model, g.Name, g.Firmware, boolToInt(g.Active),
			g.LocalHost, g.LocalPort, g.WANHost, g.WANPort, g.ID)
		if err != nil {
			return fmt.Errorf("updating gateway %d: %w", g.ID, err)
		}
		if err := affectedOrNotFound(result, ErrGatewayNotFound); err != nil {
			return err
		}
		if err := execWithID(ctx, w, g.ID,
			"DELETE FROM gateway_ssids WHERE gateway_id = ?",
			"DELETE FROM apartment_gateways WHERE gateway_id = ?",
		); err != nil {
			return fmt.Errorf("clearing relations of gateway %d: %w", g.ID, err)
		}
		if err := writeGatewayRelations(ctx, w, g.ID, g); err != nil {
			return err
		}
		w.changed(EntityGateway, OpUpdate, g.ID)
		return nil
	})
}

// EnableGateway switches a gateway on or off.
func (s *Store) EnableGateway(ctx context.Context, id int64, active bool) error {
	return s.write(ctx, "enabling gateway", func(w *writeTx) error {
		result, err := w.ExecContext(ctx, "UPDATE gateways SET active = ? WHERE id = ?", boolToInt(active), id)
		if err != nil {
			return fmt.Errorf("updating gateway %d: %w", id, err)
		}
		if err := affectedOrNotFound(result, ErrGatewayNotFound); err != nil {
			return err
		}
		w.changed(EntityGateway, OpUpdate, id)
		return nil
	})
}

// DeleteGateway removes the gateway with its SSIDs and all links to it.
func (s *Store) DeleteGateway(ctx context.Context, id int64) error {
	return s.write(ctx, "deleting gateway", func(w *writeTx) error {
		if err := mustExist(ctx, w, "gateways", id, ErrGatewayNotFound); err != nil {
			return err
		}
		if err := execWithID(ctx, w, id,
			"DELETE FROM gateway_ssids WHERE gateway_id = ?",
			"DELETE FROM apartment_gateways WHERE gateway_id = ?",
			"DELETE FROM room_gateways WHERE gateway_id = ?",
			"DELETE FROM gateways WHERE id = ?",
		); err != nil {
			return fmt.Errorf("deleting gateway %d: %w", id, err)
		}
		w.changed(EntityGateway, OpDelete, id)
		return nil
	})
}

// checkGatewayAddress returns a *GatewayExistsError if a gateway other than
// self has the same non-empty local host and port, or the same non-empty
// WAN host and port.
func checkGatewayAddress(ctx context.Context, q dbtx, g *Gateway, self int64) error {
	var existing GatewayExistsError
	var active int
	err := q.QueryRowContext(ctx, `SELECT id, active FROM gateways
		WHERE id != ? AND (
			(? != '' AND local_host = ? AND local_port = ?) OR
			(? != '' AND wan_host = ? AND wan_port = ?))
		ORDER BY id LIMIT 1`,
		self,
		g.LocalHost, g.LocalHost, g.LocalPort,
		g.WANHost, g.WANHost, g.WANPort,
	).Scan(&existing.ID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking gateway address: %w", err)
	}
	existing.Active = active != 0
	return &existing
}

func writeGatewayRelations(ctx context.Context, q dbtx, id int64, g *Gateway) error {
	for _, ssid := range g.SSIDs {
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO gateway_ssids (gateway_id, ssid) VALUES (?, ?)", id, ssid); err != nil {
			return fmt.Errorf("inserting ssid %q of gateway %d: %w", ssid, id, err)
		}
	}
	for _, apartmentID := range g.ApartmentIDs {
		if err := mustExist(ctx, q, "apartments", apartmentID, ErrApartmentNotFound); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx,
			"INSERT OR IGNORE INTO apartment_gateways (apartment_id, gateway_id) VALUES (?, ?)",
			apartmentID, id); err != nil {
			return fmt.Errorf("linking gateway %d to apartment %d: %w", id, apartmentID, err)
		}
	}
	return nil
}

func listGateways(ctx context.Context, q dbtx, where string) ([]Gateway, error) {
	rows, err := q.QueryContext(ctx, "SELECT "+gatewayColumns+" FROM gateways "+where+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying gateways: %w", err)
	}
	var gateways []Gateway
	for rows.Next() {
		g, err := scanGateway(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		gateways = append(gateways, *g)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, fmt.Errorf("iterating gateways: %w", err)
	}

	for i := range gateways {
		if err := loadGatewayRelations(ctx, q, &gateways[i]); err != nil {
			return nil, err
		}
	}
	return gateways, nil
}

func scanGateway(row rowScanner) (*Gateway, error) {
	var g Gateway
	var active int
	err := row.Scan(&g.ID, &g.Model, &g.Name, &g.Firmware, &active,
		&g.LocalHost, &g.LocalPort, &g.WANHost, &g.WANPort)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning gateway: %w", err)
	}
	g.Active = active != 0
	return &g, nil
}

func loadGatewayRelations(ctx context.Context, q dbtx, g *Gateway) error {
	ssids, err := queryStrings(ctx, q,
		"SELECT ssid FROM gateway_ssids WHERE gateway_id = ? ORDER BY ssid", g.ID)
	if err != nil {
		return fmt.Errorf("loading ssids of gateway %d: %w", g.ID, err)
	}
	g.SSIDs = ssids

	ids, err := queryIDs(ctx, q,
		"SELECT apartment_id FROM apartment_gateways WHERE gateway_id = ? ORDER BY apartment_id", g.ID)
	if err != nil {
		return fmt.Errorf("loading apartments of gateway %d: %w", g.ID, err)
	}
	g.ApartmentIDs = ids
	return nil
}
