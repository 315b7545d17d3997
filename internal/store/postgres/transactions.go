package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

func (c *Client) Append(ctx context.Context, instanceID string, expectedPrevSeq uint64, txs ...txn.Transaction) ([]txn.Transaction, error) {
	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock on the instance serializes writers across connections.
	var locked string
	err = tx.QueryRow(ctx, `SELECT instance_id FROM sagas WHERE instance_id = $1 FOR UPDATE`, instanceID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.InstanceNotFound(instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("locking instance: %w", err)
	}

	var tail int64
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE instance_id = $1`, instanceID,
	).Scan(&tail); err != nil {
		return nil, fmt.Errorf("reading tail: %w", err)
	}
	if uint64(tail) != expectedPrevSeq {
		return nil, store.ConflictError(instanceID, expectedPrevSeq, uint64(tail))
	}

	stamped, err := store.PrepareBatch(instanceID, uint64(tail), c.now(), txs)
	if err != nil {
		return nil, err
	}
	for i := range stamped {
		stamped[i].Timestamp = storedTime(stamped[i].Timestamp)
	}

	batch := &pgx.Batch{}
	for _, t := range stamped {
		payload, err := txn.EncodePayload(t.Payload)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
			INSERT INTO transactions (id, instance_id, seq, kind, avatar_id, ts, payload_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			t.ID, t.InstanceID, int64(t.Seq), string(t.Kind), t.AvatarID, t.Timestamp, string(payload))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isUniqueViolation(err) {
			return nil, conflictFromUnique(instanceID, err)
		}
		return nil, fmt.Errorf("inserting transactions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing append: %w", err)
	}
	return stamped, nil
}

func (c *Client) ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error) {
	var found string
	err := c.pool.QueryRow(ctx, `SELECT instance_id FROM sagas WHERE instance_id = $1`, instanceID).Scan(&found)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.InstanceNotFound(instanceID)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up instance: %w", err)
	}

	rows, err := c.pool.Query(ctx, `
		SELECT id, instance_id, seq, kind, avatar_id, ts, payload_json
		FROM transactions
		WHERE instance_id = $1
		ORDER BY seq`, instanceID)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func (c *Client) ReadAllForAvatar(ctx context.Context, avatarID string) (map[string][]txn.Transaction, error) {
	instances, err := c.ListInstances(ctx, avatarID)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx, `
		SELECT t.id, t.instance_id, t.seq, t.kind, t.avatar_id, t.ts, t.payload_json
		FROM transactions t
		JOIN sagas s ON s.instance_id = t.instance_id
		WHERE s.avatar_id = $1
		ORDER BY t.instance_id, t.seq`, avatarID)
	if err != nil {
		return nil, fmt.Errorf("querying avatar transactions: %w", err)
	}
	defer rows.Close()

	txs, err := scanTransactions(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]txn.Transaction, len(instances))
	for _, inst := range instances {
		out[inst.InstanceID] = []txn.Transaction{}
	}
	for _, t := range txs {
		out[t.InstanceID] = append(out[t.InstanceID], t)
	}
	return out, nil
}

func scanTransactions(rows pgx.Rows) ([]txn.Transaction, error) {
	out := make([]txn.Transaction, 0)
	for rows.Next() {
		var (
			t       txn.Transaction
			seq     int64
			kind    string
			ts      time.Time
			payload string
		)
		if err := rows.Scan(&t.ID, &t.InstanceID, &seq, &kind, &t.AvatarID, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Seq = uint64(seq)
		t.Kind = txn.Kind(kind)
		t.Timestamp = ts.UTC()

		var err error
		t.Payload, err = txn.DecodePayload([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", seq, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return out, nil
}
