// Package database opens the SQLite file backing the durable message
// store and applies embedded schema migrations.
//
// The connection runs in WAL mode with a busy timeout and a pool
// capped at one open connection, matching SQLite's single-writer
// model. Migrations are forward-only files named
// VERSION_description.sql, registered by the migrations package at
// init and recorded in schema_migrations.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: "./data/ramses.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
