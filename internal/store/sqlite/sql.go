package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"ambientsaga/internal/store"
)

// RunSQL executes a read-only query. Parameters keyed "1", "2", ... bind to
// ? placeholders; any other key binds to :key. At most store.MaxSQLRows rows
// are returned.
func (c *Client) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	if err := store.CheckReadOnly(query); err != nil {
		return nil, err
	}
	args, named, err := store.SplitSQLParams(params)
	if err != nil {
		return nil, err
	}
	for key, val := range named {
		args = append(args, sql.Named(key, val))
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("running sql: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("getting columns: %w", err)
	}

	results := make([]map[string]any, 0)
	for rows.Next() && len(results) < store.MaxSQLRows {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = store.SQLValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sql rows: %w", err)
	}
	return results, nil
}
