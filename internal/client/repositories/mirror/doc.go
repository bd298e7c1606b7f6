// Package mirror keeps a local copy of records the CRM acknowledged.
//
// # Overview
//
// After every reconciled batch chunk the service layer hands the saved
// models to a Repository, which upserts them keyed by account, entity and
// id. The copy is used by the CLI export command and for offline lookups.
//
// Two implementations share the same schema (see internal/client/migrations):
// SQLiteRepository over modernc.org/sqlite and PostgresRepository over the
// pgx stdlib driver. Open picks one by driver name and applies migrations.
//
// Key Types
//
//   - type Repository: interface used by services and the CLI
//   - type SQLiteRepository: SQLite implementation
//   - type PostgresRepository: PostgreSQL implementation
package mirror
