// Package database provides the SQLite state store for Canopy Core.
//
// It manages the connection (WAL mode, busy timeout, single-writer
// pool), embedded schema migrations, and health checks. Every record
// collection the engine owns, from schedules and rules through
// analysis history and notifications, lives in this one file-backed
// store, in STRICT tables with RFC3339 TEXT timestamps.
//
// Migrations are additive: new columns are nullable or carry
// defaults, and each version ships an .up.sql/.down.sql pair so test
// tooling can roll back.
package database
