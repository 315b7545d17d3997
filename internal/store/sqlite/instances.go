package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ambientsaga/internal/store"
)

func (c *Client) ResolveInstance(ctx context.Context, avatarID, sagaRef string, create bool) (store.Instance, error) {
	if err := store.CheckResolve(avatarID, sagaRef); err != nil {
		return store.Instance{}, err
	}

	inst, err := c.findInstance(ctx, avatarID, sagaRef)
	switch {
	case err == nil:
		return inst, nil
	case !errors.Is(err, sql.ErrNoRows):
		return store.Instance{}, fmt.Errorf("looking up saga instance: %w", err)
	case !create:
		return store.Instance{}, store.InstanceNotFound(avatarID + "/" + sagaRef)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO sagas (instance_id, saga_ref, avatar_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (avatar_id, saga_ref) DO NOTHING`,
		uuid.NewString(), sagaRef, avatarID, c.now().UTC().Format(timeLayout))
	if err != nil {
		return store.Instance{}, fmt.Errorf("creating saga instance: %w", err)
	}

	inst, err = c.findInstance(ctx, avatarID, sagaRef)
	if err != nil {
		return store.Instance{}, fmt.Errorf("reading created saga instance: %w", err)
	}
	return inst, nil
}

func (c *Client) findInstance(ctx context.Context, avatarID, sagaRef string) (store.Instance, error) {
	var (
		inst    store.Instance
		created string
	)
	err := c.db.QueryRowContext(ctx, `
		SELECT instance_id, saga_ref, avatar_id, created_at
		FROM sagas WHERE avatar_id = ? AND saga_ref = ?`, avatarID, sagaRef,
	).Scan(&inst.InstanceID, &inst.SagaRef, &inst.AvatarID, &created)
	if err != nil {
		return store.Instance{}, err
	}
	inst.CreatedAt, err = time.Parse(timeLayout, created)
	if err != nil {
		return store.Instance{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return inst, nil
}

func (c *Client) ListInstances(ctx context.Context, avatarID string) ([]store.Instance, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT instance_id, saga_ref, avatar_id, created_at
		FROM sagas WHERE avatar_id = ?
		ORDER BY saga_ref`, avatarID)
	if err != nil {
		return nil, fmt.Errorf("listing saga instances: %w", err)
	}
	defer rows.Close()

	var out []store.Instance
	for rows.Next() {
		var (
			inst    store.Instance
			created string
		)
		if err := rows.Scan(&inst.InstanceID, &inst.SagaRef, &inst.AvatarID, &created); err != nil {
			return nil, fmt.Errorf("scanning saga instance: %w", err)
		}
		inst.CreatedAt, err = time.Parse(timeLayout, created)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saga instances: %w", err)
	}
	return out, nil
}
