package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// CommandsTable is the journal table name.
const CommandsTable = "outbound_commands"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS outbound_commands (
		id             UUID PRIMARY KEY,
		opcode         TEXT NOT NULL,
		role           TEXT NOT NULL,
		correlation_id TEXT,
		order_id       TEXT,
		account        TEXT,
		payload        JSONB NOT NULL,
		sent_at        BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbound_commands_order_id_idx ON outbound_commands (order_id)`,
	`CREATE INDEX IF NOT EXISTS outbound_commands_sent_at_idx ON outbound_commands (sent_at)`,
}

// EnsureSchema creates the journal table and its indexes if missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
