// Package memory is an in-process Store used by tests and the memory driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

var _ store.Store = (*Store)(nil)

type instanceLog struct {
	mu   sync.Mutex
	meta store.Instance
	txs  []txn.Transaction
}

type Store struct {
	mu        sync.RWMutex
	instances map[string]*instanceLog
	index     map[indexKey]string
	now       func() time.Time
}

type indexKey struct {
	avatarID string
	sagaRef  string
}

func New() *Store {
	return &Store{
		instances: make(map[string]*instanceLog),
		index:     make(map[indexKey]string),
		now:       time.Now,
	}
}

func (s *Store) Close(ctx context.Context) error { return nil }

func (s *Store) EnsureSchema(ctx context.Context) error { return nil }

func (s *Store) lookup(instanceID string) (*instanceLog, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.instances[instanceID]
	return l, ok
}

func (s *Store) Append(ctx context.Context, instanceID string, expectedPrevSeq uint64, txs ...txn.Transaction) ([]txn.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, ok := s.lookup(instanceID)
	if !ok {
		return nil, store.InstanceNotFound(instanceID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tail := uint64(len(l.txs))
	if tail != expectedPrevSeq {
		return nil, store.ConflictError(instanceID, expectedPrevSeq, tail)
	}
	stamped, err := store.PrepareBatch(instanceID, tail, s.now(), txs)
	if err != nil {
		return nil, err
	}
	for _, tx := range stamped {
		l.txs = append(l.txs, tx.Clone())
	}
	return stamped, nil
}

func (s *Store) ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error) {
	l, ok := s.lookup(instanceID)
	if !ok {
		return nil, store.InstanceNotFound(instanceID)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]txn.Transaction, len(l.txs))
	for i, tx := range l.txs {
		out[i] = tx.Clone()
	}
	return out, nil
}

func (s *Store) ReadAllForAvatar(ctx context.Context, avatarID string) (map[string][]txn.Transaction, error) {
	instances, err := s.ListInstances(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]txn.Transaction, len(instances))
	for _, inst := range instances {
		txs, err := s.ReadAll(ctx, inst.InstanceID)
		if err != nil {
			return nil, err
		}
		out[inst.InstanceID] = txs
	}
	return out, nil
}

func (s *Store) ResolveInstance(ctx context.Context, avatarID, sagaRef string, create bool) (store.Instance, error) {
	if err := store.CheckResolve(avatarID, sagaRef); err != nil {
		return store.Instance{}, err
	}
	key := indexKey{avatarID: avatarID, sagaRef: sagaRef}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.index[key]; ok {
		return s.instances[id].meta, nil
	}
	if !create {
		return store.Instance{}, store.InstanceNotFound(avatarID + "/" + sagaRef)
	}
	meta := store.Instance{
		InstanceID: uuid.NewString(),
		SagaRef:    sagaRef,
		AvatarID:   avatarID,
		CreatedAt:  s.now().UTC(),
	}
	s.instances[meta.InstanceID] = &instanceLog{meta: meta}
	s.index[key] = meta.InstanceID
	return meta, nil
}

func (s *Store) ListInstances(ctx context.Context, avatarID string) ([]store.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Instance
	for _, l := range s.instances {
		if l.meta.AvatarID == avatarID {
			out = append(out, l.meta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SagaRef < out[j].SagaRef })
	return out, nil
}
