package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store"
	"ambientsaga/internal/store/storetest"
	"ambientsaga/internal/txn"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "saga.db")
	c, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	return c
}

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestClient(t) })
}

func TestEnsureSchemaIdempotent(t *testing.T) {
	c := newTestClient(t)
	if err := c.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second ensure schema: %v", err)
	}
}

func TestPayloadRoundTripsCanonically(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	inst, err := c.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	payload := txn.Payload{txn.KeyCharacter: "elder", txn.KeyNode: "greet", txn.KeyRewardKey: "k"}
	if _, err := c.Append(ctx, inst.InstanceID, 0, txn.New(txn.KindDialogueNodeVisited, "avatar-1", payload)); err != nil {
		t.Fatalf("append: %v", err)
	}

	rows, err := c.RunSQL(ctx, "SELECT payload_json FROM transactions WHERE instance_id = ?", map[string]any{"1": inst.InstanceID})
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := `{"character":"elder","node":"greet","reward_key":"k"}`
	if rows[0]["payload_json"] != want {
		t.Fatalf("expected %s, got %v", want, rows[0]["payload_json"])
	}
}

func TestRunSQLNamedParams(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	if _, err := c.ResolveInstance(ctx, "avatar-1", "prologue", true); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rows, err := c.RunSQL(ctx, "SELECT saga_ref FROM sagas WHERE avatar_id = :avatar", map[string]any{"avatar": "avatar-1"})
	if err != nil {
		t.Fatalf("run sql: %v", err)
	}
	if len(rows) != 1 || rows[0]["saga_ref"] != "prologue" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestRunSQLRejectsWrites(t *testing.T) {
	c := newTestClient(t)
	_, err := c.RunSQL(context.Background(), "DELETE FROM transactions", nil)
	if !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseDSN(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"sqlite://:memory:", ":memory:", false},
		{"sqlite:///var/lib/saga.db", "/var/lib/saga.db", false},
		{"sqlite://./saga.db", "./saga.db", false},
		{"sqlite://saga.db", "./saga.db", false},
		{"sqlite://saga%20log.db?_txlock=immediate", "./saga log.db?_txlock=immediate", false},
		{"postgres://localhost/saga", "", true},
		{"sqlite://", "", true},
	}
	for _, tt := range tests {
		got, err := parseDSN(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDSN(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitStatementsSkipsComments(t *testing.T) {
	stmts := splitStatements("-- note\nCREATE TABLE a (x INT);\n\nCREATE TABLE b (y INT);\n")
	if len(stmts) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(stmts), stmts)
	}
}
