// Package store provides SQLite-backed persistence files for table entries.
//
// A persistence file holds a snapshot of entries: name, kind, JSON-encoded
// value and entry flags, plus snapshot_meta attributes such as the identity
// of the instance that saved it. The sync engine
// writes one snapshot per SavePersistent or SaveEntries call and reads it
// back on LoadPersistent, LoadEntries and server start.
//
// # Snapshot Semantics
//
//   - WriteEntries replaces the whole file content in one transaction
//   - ReadEntries filters by name prefix and returns rows ORDER BY name
//   - Rows that fail to decode become warnings, never hard errors
//   - Files stamped with a newer user_version are refused
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// IO failures opening, reading or writing a file are reported as
// *PersistentError.
package store
