// Package database provides the PostgreSQL connection pool and schema used by
// the outbound command journal.
package database
