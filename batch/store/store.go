// Package store provides persistence backends for batch.Repository.
//
// Three implementations are provided:
//   - MemoryRepository: thread-safe in-memory store, for tests and small jobs.
//   - SQLiteRepository: modernc.org/sqlite-backed store for single-node deployments.
//   - MySQLRepository: go-sql-driver/mysql-backed store for multi-node deployments.
//
// All three satisfy batch.Repository; package batch depends only on that
// interface, never on this package, so new backends can be added here
// without touching the engine.
package store
