// Package achievement derives unlocked achievements from folded saga
// states. Evaluation is pure; the Tracker only caches what was last seen.
package achievement

import (
	"sort"
	"sync"

	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
)

// Set holds unlocked achievement refs.
type Set map[string]struct{}

func NewSet(refs ...string) Set {
	s := make(Set, len(refs))
	for _, r := range refs {
		s[r] = struct{}{}
	}
	return s
}

func (s Set) Has(ref string) bool {
	_, ok := s[ref]
	return ok
}

// Sorted lists the set in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Progress sums every criterion across an avatar's saga states.
func Progress(states []replay.State) map[string]int {
	p := map[string]int{}
	for _, s := range states {
		p[config.CriterionBattlesWon] += s.BattlesWon
		p[config.CriterionQuestsCompleted] += s.QuestsCompleted()
		p[config.CriterionTriggersActivated] += len(s.Triggers)
		p[config.CriterionBlocksMined] += s.Claims.BlocksMined
		p[config.CriterionBlocksPlaced] += s.Claims.BlocksPlaced
		p[config.CriterionDialogueNodesVisited] += s.NodesVisited
		p[config.CriterionCurrencyEarned] += s.CurrencyEarned
		p[config.CriterionPartySize] = max(p[config.CriterionPartySize], len(s.Party))
	}
	return p
}

// Evaluate returns every achievement whose threshold the states meet.
func Evaluate(states []replay.State, catalog []config.Achievement) Set {
	progress := Progress(states)
	out := Set{}
	for _, a := range catalog {
		if progress[a.Criterion] >= a.Threshold {
			out[a.Name] = struct{}{}
		}
	}
	return out
}

// Recorded collects achievements already written to the logs.
func Recorded(states []replay.State) Set {
	out := Set{}
	for _, s := range states {
		for ref := range s.Achievements {
			out[ref] = struct{}{}
		}
	}
	return out
}

// Diff lists refs in after that are missing from before, sorted.
func Diff(before, after Set) []string {
	var out []string
	for ref := range after {
		if !before.Has(ref) {
			out = append(out, ref)
		}
	}
	sort.Strings(out)
	return out
}

// Instance is the cached achievement view of one avatar.
type Instance struct {
	AvatarID string
	Unlocked Set
	Progress map[string]int
}

// Tracker caches the last evaluated Instance per avatar.
type Tracker struct {
	mu        sync.Mutex
	instances map[string]Instance
}

func NewTracker() *Tracker {
	return &Tracker{instances: make(map[string]Instance)}
}

func (t *Tracker) Get(avatarID string) (Instance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.instances[avatarID]
	return inst, ok
}

func (t *Tracker) Put(inst Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instances[inst.AvatarID] = inst
}

// Forget drops the cached view of an avatar, forcing the next evaluation to
// rely on the logs alone.
func (t *Tracker) Forget(avatarID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.instances, avatarID)
}

// Newly evaluates states and returns the achievements that are neither
// cached nor recorded in the logs, updating the cache.
func (t *Tracker) Newly(avatarID string, states []replay.State, catalog []config.Achievement) []string {
	after := Evaluate(states, catalog)
	before := Recorded(states)
	if cached, ok := t.Get(avatarID); ok {
		for ref := range cached.Unlocked {
			before[ref] = struct{}{}
		}
	}
	newly := Diff(before, after)

	unlocked := NewSet(before.Sorted()...)
	for ref := range after {
		unlocked[ref] = struct{}{}
	}
	t.Put(Instance{AvatarID: avatarID, Unlocked: unlocked, Progress: Progress(states)})
	return newly
}
