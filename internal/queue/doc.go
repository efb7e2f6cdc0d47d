// Package queue persists validation requests in SQLite and enforces their
// status lifecycle.
//
// The Store manages database connections, schema initialization, entry and
// audit-trail persistence, metrics rollups, and the status transitions that
// make up the queue state machine. Every mutating operation runs inside one
// transaction and carries an optimistic version check, so concurrent writers
// resolve to a single winner instead of silently clobbering each other.
//
// Treat this package as the single source of truth for queue semantics; when
// you add new statuses or columns, update schema.sql and bump schemaVersion.
package queue
