// Package store provides SQLite-backed durability for livecoll databases.
//
// The store is an append-only commit log. Each committed version is one row
// in versions plus its ordered mutations (put or delete of one object).
// Opening a database replays the log to rebuild the latest version in
// memory; the log is never queried for reads.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Two drivers are supported: "sqlite3" (mattn/go-sqlite3, cgo) and
// "sqlite" (modernc.org/sqlite, pure Go).
//
// Object keys and rows are stored as canonical JSON (see internal/ir), so
// replaying the log reproduces byte-identical rows.
package store
