package persistence

import (
	"context"
	"fmt"
)

// Backup writes a consistent copy of the database to path.
// path must not exist yet. The copy is taken under the store lock, so
// writes wait until it finishes.
func (s *Store) Backup(ctx context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// VACUUM cannot run inside a transaction.
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return s.fail("backing up database", fmt.Errorf("writing %s: %w", path, err))
	}
	s.logger.Info("database backup written", "path", path)
	return nil
}

// Counts returns the number of stored rows per entity.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.read(ctx, "counting rows", func(q dbtx) error {
		targets := []struct {
			table string
			dst   *int
		}{
			{"apartments", &c.Apartments},
			{"rooms", &c.Rooms},
			{"receivers", &c.Receivers},
			{"scenes", &c.Scenes},
			{"gateways", &c.Gateways},
			{"actions", &c.Actions},
			{"geofences", &c.Geofences},
			{"timers", &c.Timers},
			{"call_events", &c.CallEvents},
			{"history", &c.History},
			{"widgets", &c.Widgets},
		}
		for _, t := range targets {
			if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.table).Scan(t.dst); err != nil {
				return fmt.Errorf("counting %s: %w", t.table, err)
			}
		}
		return nil
	})
	return c, err
}
