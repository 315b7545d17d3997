package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

// Store is the append-only transaction log plus the (avatar, saga) index.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	// Append stamps txs with the sequence numbers following expectedPrevSeq
	// and stores them atomically. It fails with a concurrency conflict when
	// another writer moved the tail first.
	Append(ctx context.Context, instanceID string, expectedPrevSeq uint64, txs ...txn.Transaction) ([]txn.Transaction, error)
	ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error)
	ReadAllForAvatar(ctx context.Context, avatarID string) (map[string][]txn.Transaction, error)

	ResolveInstance(ctx context.Context, avatarID, sagaRef string, create bool) (Instance, error)
	ListInstances(ctx context.Context, avatarID string) ([]Instance, error)
}

// SQLRunner is implemented by backends that accept ad-hoc read queries.
type SQLRunner interface {
	RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// PrepareBatch validates txs and stamps them for storage after tail.
func PrepareBatch(instanceID string, tail uint64, now time.Time, txs []txn.Transaction) ([]txn.Transaction, error) {
	if len(txs) == 0 {
		return nil, sagaerr.New(sagaerr.CodeValidation, "append requires at least one transaction")
	}
	out := make([]txn.Transaction, len(txs))
	for i, tx := range txs {
		if err := tx.Validate(); err != nil {
			return nil, sagaerr.Wrap(sagaerr.CodeValidation, "invalid transaction", err)
		}
		stamped := tx.Clone()
		if stamped.Payload == nil {
			stamped.Payload = txn.Payload{}
		}
		stamped.InstanceID = instanceID
		stamped.Seq = tail + uint64(i) + 1
		if stamped.Timestamp.IsZero() {
			stamped.Timestamp = now
		}
		stamped.Timestamp = stamped.Timestamp.UTC()
		out[i] = stamped
	}
	return out, nil
}

// ConflictError builds the error returned when expectedPrevSeq is stale.
func ConflictError(instanceID string, expected, actual uint64) error {
	return sagaerr.Newf(sagaerr.CodeConcurrencyConflict,
		"instance %s: expected tail %d, found %d", instanceID, expected, actual).
		WithMetadata("instance_id", instanceID)
}

// InstanceNotFound builds the error returned for an unknown instance.
func InstanceNotFound(instanceID string) error {
	return sagaerr.Newf(sagaerr.CodeNotFound, "saga instance %s not found", instanceID)
}

// CheckResolve validates ResolveInstance arguments.
func CheckResolve(avatarID, sagaRef string) error {
	if avatarID == "" || sagaRef == "" {
		return fmt.Errorf("%w: avatar id and saga ref are required", sagaerr.ErrValidation)
	}
	return nil
}

// CheckReadOnly rejects statements other than SELECT, WITH, and EXPLAIN so
// ad-hoc queries cannot rewrite the log.
func CheckReadOnly(query string) error {
	trimmed := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "WITH", "EXPLAIN"} {
		if strings.HasPrefix(trimmed, prefix) {
			if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
				return fmt.Errorf("%w: multiple statements are not allowed", sagaerr.ErrValidation)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: only read queries are allowed", sagaerr.ErrValidation)
}

// MaxSQLRows caps the rows an ad-hoc query returns.
const MaxSQLRows = 1000

// SplitSQLParams separates positional parameters, keyed "1", "2", ..., from
// named ones. Positional keys must be contiguous from 1.
func SplitSQLParams(params map[string]any) (positional []any, named map[string]any, err error) {
	named = map[string]any{}
	for i := 1; ; i++ {
		val, ok := params[strconv.Itoa(i)]
		if !ok {
			break
		}
		positional = append(positional, val)
	}
	for key, val := range params {
		if n, err := strconv.Atoi(key); err == nil {
			if n < 1 || n > len(positional) {
				return nil, nil, fmt.Errorf("%w: positional parameter %d out of sequence", sagaerr.ErrValidation, n)
			}
			continue
		}
		named[key] = val
	}
	if len(positional) > 0 && len(named) > 0 {
		return nil, nil, fmt.Errorf("%w: mixing positional and named parameters", sagaerr.ErrValidation)
	}
	return positional, named, nil
}

// SQLValue converts driver values for JSON output. Byte slices hold text
// columns such as payload_json.
func SQLValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
