package replay

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"ambientsaga/internal/txn"
)

// Cache remembers the last folded state per instance so a longer log only
// needs its new suffix replayed. A nil *Cache folds from scratch.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry

	full        atomic.Int64
	incremental atomic.Int64
}

type cacheEntry struct {
	state  State
	lastID string
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Fold modes reported by FoldMode.
const (
	ModeFull        = "full"
	ModeIncremental = "incremental"
)

// Fold returns the state of instanceID for txs, the instance's complete log
// in sequence order.
func (c *Cache) Fold(instanceID string, txs []txn.Transaction) (State, error) {
	s, _, err := c.FoldMode(instanceID, txs)
	return s, err
}

// FoldMode is Fold that also reports whether the whole log was replayed.
func (c *Cache) FoldMode(instanceID string, txs []txn.Transaction) (State, string, error) {
	if c == nil {
		s, err := Fold(txs)
		return s, ModeFull, err
	}

	c.mu.Lock()
	entry, ok := c.entries[instanceID]
	c.mu.Unlock()

	var (
		s    State
		err  error
		mode = ModeFull
	)
	if ok && entry.reusable(txs) {
		c.incremental.Add(1)
		mode = ModeIncremental
		s, err = FoldFrom(entry.state, txs[entry.state.LastSeq:])
	} else {
		c.full.Add(1)
		s, err = Fold(txs)
	}
	if err != nil {
		c.Invalidate(instanceID)
		return State{}, mode, err
	}

	if len(txs) > 0 {
		c.mu.Lock()
		if cur, ok := c.entries[instanceID]; !ok || cur.state.LastSeq <= s.LastSeq {
			c.entries[instanceID] = cacheEntry{state: s, lastID: txs[len(txs)-1].ID}
		}
		c.mu.Unlock()
	}
	return s.Clone(), mode, nil
}

// reusable reports whether the cached state is a prefix of txs.
func (e cacheEntry) reusable(txs []txn.Transaction) bool {
	n := e.state.LastSeq
	if n == 0 || n > uint64(len(txs)) {
		return false
	}
	last := txs[n-1]
	return last.Seq == n && last.ID == e.lastID
}

func (c *Cache) Invalidate(instanceID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, instanceID)
	c.mu.Unlock()
}

// Stats reports how many folds replayed the whole log and how many only a
// suffix.
func (c *Cache) Stats() (full, incremental int64) {
	if c == nil {
		return 0, 0
	}
	return c.full.Load(), c.incremental.Load()
}

// AvatarReader loads every instance log of an avatar.
type AvatarReader interface {
	ReadAllForAvatar(ctx context.Context, avatarID string) (map[string][]txn.Transaction, error)
}

// FoldAvatar folds every saga instance of an avatar concurrently. States
// are ordered by instance id.
func FoldAvatar(ctx context.Context, r AvatarReader, cache *Cache, avatarID string) ([]State, error) {
	logs, err := r.ReadAllForAvatar(ctx, avatarID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(logs))
	for id := range logs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]State, len(ids))
	g, _ := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			s, err := cache.Fold(id, logs[id])
			if err != nil {
				return err
			}
			if s.InstanceID == "" {
				s.InstanceID = id
			}
			states[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}
