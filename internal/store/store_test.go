package store

import (
	"errors"
	"testing"
	"time"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

func TestPrepareBatchStampsSequence(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))
	txs := []txn.Transaction{
		txn.New(txn.KindTriggerActivated, "a1", txn.Payload{txn.KeyTrigger: "gate"}),
		txn.New(txn.KindCharacterSpawned, "a1", nil),
	}

	out, err := PrepareBatch("inst-1", 7, now, txs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out[0].Seq != 8 || out[1].Seq != 9 {
		t.Fatalf("expected seqs 8,9 got %d,%d", out[0].Seq, out[1].Seq)
	}
	for _, tx := range out {
		if tx.InstanceID != "inst-1" {
			t.Fatalf("instance not stamped: %q", tx.InstanceID)
		}
		if tx.Timestamp.Location() != time.UTC {
			t.Fatalf("expected UTC timestamp")
		}
		if tx.Payload == nil {
			t.Fatalf("expected non-nil payload")
		}
	}
	if txs[0].Seq != 0 {
		t.Fatalf("input was mutated")
	}
}

func TestPrepareBatchRejectsUnknownKind(t *testing.T) {
	bad := txn.New("Teleported", "a1", nil)
	_, err := PrepareBatch("inst-1", 0, time.Now(), []txn.Transaction{bad})
	if !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := PrepareBatch("inst-1", 0, time.Now(), nil); !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error for empty batch, got %v", err)
	}
}

func TestConflictError(t *testing.T) {
	err := ConflictError("inst-1", 3, 5)
	if !errors.Is(err, sagaerr.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCheckReadOnly(t *testing.T) {
	tests := []struct {
		query string
		ok    bool
	}{
		{"SELECT * FROM transactions", true},
		{"  with t as (select 1) select * from t;", true},
		{"EXPLAIN SELECT 1", true},
		{"DELETE FROM transactions", false},
		{"SELECT 1; DROP TABLE sagas", false},
		{"UPDATE sagas SET saga_ref = 'x'", false},
	}
	for _, tt := range tests {
		err := CheckReadOnly(tt.query)
		if (err == nil) != tt.ok {
			t.Errorf("CheckReadOnly(%q) = %v, want ok=%v", tt.query, err, tt.ok)
		}
	}
}

func TestSplitSQLParams(t *testing.T) {
	positional, named, err := SplitSQLParams(map[string]any{"1": "a", "2": "b"})
	if err != nil || len(positional) != 2 || positional[1] != "b" || len(named) != 0 {
		t.Fatalf("positional split: %v %v %v", positional, named, err)
	}
	positional, named, err = SplitSQLParams(map[string]any{"avatar": "a1"})
	if err != nil || len(positional) != 0 || named["avatar"] != "a1" {
		t.Fatalf("named split: %v %v %v", positional, named, err)
	}
	for _, params := range []map[string]any{
		{"2": "gap"},
		{"1": "a", "avatar": "a1"},
	} {
		if _, _, err := SplitSQLParams(params); !errors.Is(err, sagaerr.ErrValidation) {
			t.Errorf("expected validation error for %v, got %v", params, err)
		}
	}
}
