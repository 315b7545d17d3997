package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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
	case !errors.Is(err, pgx.ErrNoRows):
		return store.Instance{}, fmt.Errorf("looking up saga instance: %w", err)
	case !create:
		return store.Instance{}, store.InstanceNotFound(avatarID + "/" + sagaRef)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO sagas (instance_id, saga_ref, avatar_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (avatar_id, saga_ref) DO NOTHING`,
		uuid.NewString(), sagaRef, avatarID, c.now().UTC())
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
	var inst store.Instance
	err := c.pool.QueryRow(ctx, `
		SELECT instance_id, saga_ref, avatar_id, created_at
		FROM sagas WHERE avatar_id = $1 AND saga_ref = $2`, avatarID, sagaRef,
	).Scan(&inst.InstanceID, &inst.SagaRef, &inst.AvatarID, &inst.CreatedAt)
	if err != nil {
		return store.Instance{}, err
	}
	inst.CreatedAt = inst.CreatedAt.UTC()
	return inst, nil
}

func (c *Client) ListInstances(ctx context.Context, avatarID string) ([]store.Instance, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT instance_id, saga_ref, avatar_id, created_at
		FROM sagas WHERE avatar_id = $1
		ORDER BY saga_ref`, avatarID)
	if err != nil {
		return nil, fmt.Errorf("listing saga instances: %w", err)
	}
	defer rows.Close()

	var out []store.Instance
	for rows.Next() {
		var inst store.Instance
		if err := rows.Scan(&inst.InstanceID, &inst.SagaRef, &inst.AvatarID, &inst.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning saga instance: %w", err)
		}
		inst.CreatedAt = inst.CreatedAt.UTC()
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating saga instances: %w", err)
	}
	return out, nil
}
