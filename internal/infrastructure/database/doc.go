// Package database provides SQLite connectivity for PowerSwitch Core.
//
// This package manages:
//   - The database file and its single pooled connection
//   - Schema migrations (additive, one transaction per migration)
//   - Health checks and lifecycle management
//
// The pool is capped at one open connection. Callers that need
// serialization across several statements (the persistence store) hold
// their own lock and run their statements in one transaction.
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.Source()); err != nil {
//	    log.Fatal(err)
//	}
package database
