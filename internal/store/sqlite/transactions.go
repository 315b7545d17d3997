package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

const timeLayout = time.RFC3339Nano

func (c *Client) Append(ctx context.Context, instanceID string, expectedPrevSeq uint64, txs ...txn.Transaction) ([]txn.Transaction, error) {
	c.appendMu.Lock()
	defer c.appendMu.Unlock()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning append: %w", err)
	}
	defer tx.Rollback()

	if err := instanceExists(ctx, tx, instanceID); err != nil {
		return nil, err
	}

	var tail int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM transactions WHERE instance_id = ?`, instanceID,
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (id, instance_id, seq, kind, avatar_id, ts, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range stamped {
		payload, err := txn.EncodePayload(t.Payload)
		if err != nil {
			return nil, err
		}
		_, err = stmt.ExecContext(ctx, t.ID, t.InstanceID, int64(t.Seq), string(t.Kind), t.AvatarID,
			t.Timestamp.Format(timeLayout), string(payload))
		if err != nil {
			if isConstraintError(err) {
				return nil, conflictFromConstraint(instanceID, err)
			}
			return nil, fmt.Errorf("inserting transaction %d: %w", t.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		if isConstraintError(err) {
			return nil, conflictFromConstraint(instanceID, err)
		}
		return nil, fmt.Errorf("committing append: %w", err)
	}
	return stamped, nil
}

func (c *Client) ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error) {
	if err := instanceExists(ctx, c.db, instanceID); err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT id, instance_id, seq, kind, avatar_id, ts, payload_json
		FROM transactions
		WHERE instance_id = ?
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

	rows, err := c.db.QueryContext(ctx, `
		SELECT t.id, t.instance_id, t.seq, t.kind, t.avatar_id, t.ts, t.payload_json
		FROM transactions t
		JOIN sagas s ON s.instance_id = t.instance_id
		WHERE s.avatar_id = ?
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

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func instanceExists(ctx context.Context, q queryer, instanceID string) error {
	var found string
	err := q.QueryRowContext(ctx, `SELECT instance_id FROM sagas WHERE instance_id = ?`, instanceID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return store.InstanceNotFound(instanceID)
	}
	if err != nil {
		return fmt.Errorf("looking up instance: %w", err)
	}
	return nil
}

func scanTransactions(rows *sql.Rows) ([]txn.Transaction, error) {
	out := make([]txn.Transaction, 0)
	for rows.Next() {
		var (
			t       txn.Transaction
			seq     int64
			kind    string
			ts      string
			payload string
		)
		if err := rows.Scan(&t.ID, &t.InstanceID, &seq, &kind, &t.AvatarID, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Seq = uint64(seq)
		t.Kind = txn.Kind(kind)

		parsed, err := time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp of seq %d: %w", seq, err)
		}
		t.Timestamp = parsed.UTC()

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
