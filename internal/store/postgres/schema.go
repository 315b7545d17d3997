package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	// All statements run in one implicit transaction; IF NOT EXISTS keeps
	// repeated runs harmless.
	ddl := `
CREATE TABLE IF NOT EXISTS sagas (
    instance_id TEXT PRIMARY KEY,
    saga_ref    TEXT NOT NULL,
    avatar_id   TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    CONSTRAINT uq_saga_avatar UNIQUE (avatar_id, saga_ref)
);

CREATE TABLE IF NOT EXISTS transactions (
    id           TEXT PRIMARY KEY,
    instance_id  TEXT NOT NULL REFERENCES sagas(instance_id),
    seq          BIGINT NOT NULL,
    kind         TEXT NOT NULL,
    avatar_id    TEXT NOT NULL,
    ts           TIMESTAMPTZ NOT NULL,
    payload_json TEXT NOT NULL DEFAULT '{}',
    CONSTRAINT uq_transaction_seq UNIQUE (instance_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_transactions_kind ON transactions (instance_id, kind);
CREATE INDEX IF NOT EXISTS idx_transactions_avatar ON transactions (avatar_id);
CREATE INDEX IF NOT EXISTS idx_sagas_avatar ON sagas (avatar_id);
`
	if _, err := c.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
