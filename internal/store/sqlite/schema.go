package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS sagas (
		instance_id TEXT PRIMARY KEY,
		saga_ref    TEXT NOT NULL,
		avatar_id   TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		CONSTRAINT uq_saga_avatar UNIQUE (avatar_id, saga_ref)
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id           TEXT PRIMARY KEY,
		instance_id  TEXT NOT NULL REFERENCES sagas(instance_id),
		seq          INTEGER NOT NULL,
		kind         TEXT NOT NULL,
		avatar_id    TEXT NOT NULL,
		ts           TEXT NOT NULL,
		payload_json TEXT NOT NULL DEFAULT '{}',
		CONSTRAINT uq_transaction_seq UNIQUE (instance_id, seq)
	);

	-- kind filters back the audit and export commands
	CREATE INDEX IF NOT EXISTS idx_transactions_kind ON transactions (instance_id, kind);
	CREATE INDEX IF NOT EXISTS idx_transactions_avatar ON transactions (avatar_id);
	CREATE INDEX IF NOT EXISTS idx_sagas_avatar ON sagas (avatar_id);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")

		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
