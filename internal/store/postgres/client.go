package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store"
)

var (
	_ store.Store     = (*Client)(nil)
	_ store.SQLRunner = (*Client)(nil)
)

const uniqueViolation = "23505"

type Client struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{pool: pool, now: func() time.Time { return storedTime(time.Now()) }}, nil
}

// storedTime is t at TIMESTAMPTZ precision, so values handed back by a
// write compare equal to what a later read scans.
func storedTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func (c *Client) Close(ctx context.Context) error {
	c.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func conflictFromUnique(instanceID string, err error) error {
	return sagaerr.Wrap(sagaerr.CodeConcurrencyConflict,
		fmt.Sprintf("instance %s: sequence already taken", instanceID), err)
}
