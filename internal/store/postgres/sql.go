package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"ambientsaga/internal/store"
)

// RunSQL executes a read-only query. Parameters keyed "1", "2", ... bind to
// $1, $2, ...; any other key binds to @key. At most store.MaxSQLRows rows are
// returned.
func (c *Client) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := store.CheckReadOnly(query); err != nil {
		return nil, err
	}
	args, named, err := store.SplitSQLParams(params)
	if err != nil {
		return nil, err
	}
	if len(named) > 0 {
		args = []any{pgx.NamedArgs(named)}
	}

	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running sql: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := make([]map[string]any, 0)
	for rows.Next() && len(results) < store.MaxSQLRows {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("getting row values: %w", err)
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = store.SQLValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sql rows: %w", err)
	}
	return results, nil
}
