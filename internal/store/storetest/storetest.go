// Package storetest holds the behavior every store backend must share.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

// Factory returns a fresh, schema-initialized store for one subtest.
type Factory func(t *testing.T) store.Store

// Run exercises the Store contract against a backend.
func Run(t *testing.T, newStore Factory) {
	t.Run("append and read in order", func(t *testing.T) { testAppendRead(t, newStore(t)) })
	t.Run("stale tail conflicts", func(t *testing.T) { testConflict(t, newStore(t)) })
	t.Run("unknown instance", func(t *testing.T) { testUnknownInstance(t, newStore(t)) })
	t.Run("resolve instance index", func(t *testing.T) { testResolve(t, newStore(t)) })
	t.Run("read all for avatar", func(t *testing.T) { testReadAllForAvatar(t, newStore(t)) })
	t.Run("concurrent appends stay contiguous", func(t *testing.T) { testConcurrentAppend(t, newStore(t)) })
}

func trigger(avatar, name string) txn.Transaction {
	return txn.New(txn.KindTriggerActivated, avatar, txn.Payload{txn.KeyTrigger: name})
}

func testAppendRead(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst, err := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	stored, err := s.Append(ctx, inst.InstanceID, 0, trigger("avatar-1", "gate"), trigger("avatar-1", "well"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(stored) != 2 || stored[0].Seq != 1 || stored[1].Seq != 2 {
		t.Fatalf("unexpected stored seqs: %+v", stored)
	}
	if _, err := s.Append(ctx, inst.InstanceID, 2, trigger("avatar-1", "tower")); err != nil {
		t.Fatalf("second append: %v", err)
	}

	txs, err := s.ReadAll(ctx, inst.InstanceID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(txs))
	}
	wantTriggers := []string{"gate", "well", "tower"}
	for i, tx := range txs {
		if tx.Seq != uint64(i+1) {
			t.Fatalf("expected seq %d, got %d", i+1, tx.Seq)
		}
		if tx.Payload[txn.KeyTrigger] != wantTriggers[i] {
			t.Fatalf("expected trigger %s at %d, got %s", wantTriggers[i], i, tx.Payload[txn.KeyTrigger])
		}
		if tx.InstanceID != inst.InstanceID {
			t.Fatalf("unexpected instance %q", tx.InstanceID)
		}
		if i < len(stored) && tx.ID != stored[i].ID {
			t.Fatalf("expected id %s at %d, got %s", stored[i].ID, i, tx.ID)
		}
		if tx.Timestamp.IsZero() {
			t.Fatalf("timestamp not stamped")
		}
	}
}

func testConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst, err := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := s.Append(ctx, inst.InstanceID, 0, trigger("avatar-1", "gate")); err != nil {
		t.Fatalf("append: %v", err)
	}
	_, err = s.Append(ctx, inst.InstanceID, 0, trigger("avatar-1", "well"))
	if !errors.Is(err, sagaerr.ErrConcurrencyConflict) {
		t.Fatalf("expected concurrency conflict, got %v", err)
	}
	txs, err := s.ReadAll(ctx, inst.InstanceID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("conflicting append was stored: %d transactions", len(txs))
	}
}

func testUnknownInstance(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.ReadAll(ctx, "missing"); !errors.Is(err, sagaerr.ErrNotFound) {
		t.Fatalf("expected not found on read, got %v", err)
	}
	if _, err := s.Append(ctx, "missing", 0, trigger("a", "gate")); !errors.Is(err, sagaerr.ErrNotFound) {
		t.Fatalf("expected not found on append, got %v", err)
	}
}

func testResolve(t *testing.T, s store.Store) {
	ctx := context.Background()
	if _, err := s.ResolveInstance(ctx, "avatar-1", "prologue", false); !errors.Is(err, sagaerr.ErrNotFound) {
		t.Fatalf("expected not found without create, got %v", err)
	}
	first, err := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	again, err := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if first.InstanceID != again.InstanceID {
		t.Fatalf("expected stable instance id, got %s and %s", first.InstanceID, again.InstanceID)
	}
	other, err := s.ResolveInstance(ctx, "avatar-2", "prologue", true)
	if err != nil {
		t.Fatalf("resolve other: %v", err)
	}
	if other.InstanceID == first.InstanceID {
		t.Fatalf("expected distinct instance per avatar")
	}
	if first.SagaRef != "prologue" || first.AvatarID != "avatar-1" {
		t.Fatalf("unexpected instance %+v", first)
	}
}

func testReadAllForAvatar(t *testing.T, s store.Store) {
	ctx := context.Background()
	a, _ := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	b, _ := s.ResolveInstance(ctx, "avatar-1", "epilogue", true)
	c, _ := s.ResolveInstance(ctx, "avatar-2", "prologue", true)
	for _, inst := range []store.Instance{a, b, c} {
		if _, err := s.Append(ctx, inst.InstanceID, 0, trigger(inst.AvatarID, "gate")); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	logs, err := s.ReadAllForAvatar(ctx, "avatar-1")
	if err != nil {
		t.Fatalf("read for avatar: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(logs))
	}
	if len(logs[a.InstanceID]) != 1 || len(logs[b.InstanceID]) != 1 {
		t.Fatalf("unexpected logs %v", logs)
	}

	instances, err := s.ListInstances(ctx, "avatar-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(instances) != 2 || instances[0].SagaRef != "epilogue" {
		t.Fatalf("expected instances sorted by saga ref, got %+v", instances)
	}
}

func testConcurrentAppend(t *testing.T, s store.Store) {
	ctx := context.Background()
	inst, err := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	const writers = 8
	const perWriter = 5
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for appended := 0; appended < perWriter; {
				txs, err := s.ReadAll(ctx, inst.InstanceID)
				if err != nil {
					errs <- err
					return
				}
				_, err = s.Append(ctx, inst.InstanceID, uint64(len(txs)), trigger("avatar-1", "pulse"))
				if errors.Is(err, sagaerr.ErrConcurrencyConflict) {
					continue
				}
				if err != nil {
					errs <- err
					return
				}
				appended++
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("writer failed: %v", err)
	}

	txs, err := s.ReadAll(ctx, inst.InstanceID)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(txs) != writers*perWriter {
		t.Fatalf("expected %d transactions, got %d", writers*perWriter, len(txs))
	}
	for i, tx := range txs {
		if tx.Seq != uint64(i+1) {
			t.Fatalf("sequence gap at %d: got %d", i, tx.Seq)
		}
	}
}
