// Package database provides SQLite connectivity for the lighthouse service.
//
// The database holds the command log (see the audit package): every command
// the engine executes, where it came from and how it ended. Device state is
// never persisted; it is always rediscovered over the radio.
//
// This package manages:
//   - Connection setup with WAL mode and a busy timeout
//   - Schema migrations embedded from the top-level migrations package
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(database.ConfigFrom(cfg.Database))
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are additive: new columns must be NULLABLE or have a DEFAULT,
// and every .up.sql has a matching .down.sql.
package database
