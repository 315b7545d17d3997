package ingest

import (
	"context"
	"encoding/json"

	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

const (
	lineInstance    = "instance"
	lineTransaction = "transaction"
)

// Line is one JSONL record. An instance line opens the block of
// transaction lines that follows it.
type Line struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Reader is what Export reads from.
type Reader interface {
	ListInstances(ctx context.Context, avatarID string) ([]store.Instance, error)
	ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error)
}

// Writer is what Import writes to.
type Writer interface {
	ResolveInstance(ctx context.Context, avatarID, sagaRef string, create bool) (store.Instance, error)
	ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error)
	Append(ctx context.Context, instanceID string, expectedPrevSeq uint64, txs ...txn.Transaction) ([]txn.Transaction, error)
}
