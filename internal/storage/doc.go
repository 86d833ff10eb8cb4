// Package storage persists per-entity quiz statistics and finished game results.
//
// Drivers:
//   - "memory": process-local maps (tests, throwaway runs)
//   - "file": dependency-free snapshot + jsonl journal
//   - "sqlite": SQLite database file (modernc.org/sqlite, no cgo)
//   - "valkey": Valkey/Redis hashes, shared between bot instances
package storage
