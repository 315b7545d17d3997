// Package replay folds a saga instance's transaction log into its current
// state. Folding is pure: the same log always yields the same State.
package replay

import (
	"sort"

	"ambientsaga/internal/combat"
)

// State is the folded view of one saga instance's log.
type State struct {
	InstanceID string
	SagaRef    string
	AvatarID   string
	LastSeq    uint64

	Characters   map[string]CharacterState
	Dialogue     map[string]DialogueCursor
	Quests       map[string]QuestState
	Triggers     map[string]uint64
	Inventory    map[string]int
	Currency     int
	Traits       map[string][]string
	Party        []PartyMember
	MerchantSold map[string]map[string]int

	Battle      *combat.Battle
	BattlesWon  int
	BattlesLost int
	BattlesFled int

	Claims       ClaimTotals
	Achievements map[string]uint64

	// CurrencyEarned sums positive currency transfers only.
	CurrencyEarned int
	NodesVisited   int
}

type CharacterState struct {
	Ref       string
	Health    int
	MaxHealth int
	Position  string
	Spawned   bool
	Defeated  bool
}

type DialogueCursor struct {
	Node      string
	Visited   []string
	Completed bool
}

// HasVisited reports whether the node was ever visited.
func (d DialogueCursor) HasVisited(node string) bool {
	for _, v := range d.Visited {
		if v == node {
			return true
		}
	}
	return false
}

type QuestState struct {
	Ref        string
	Accepted   bool
	Completed  bool
	Objectives map[string]int
}

type PartyMember struct {
	Character  string
	Slot       int
	Reputation int
}

type ClaimTotals struct {
	BlocksMined  int
	BlocksPlaced int
	ToolWear     int
	Distance     float64
	Claims       int
}

// NewState returns an empty State with every map allocated.
func NewState() State {
	return State{
		Characters:   map[string]CharacterState{},
		Dialogue:     map[string]DialogueCursor{},
		Quests:       map[string]QuestState{},
		Triggers:     map[string]uint64{},
		Inventory:    map[string]int{},
		Traits:       map[string][]string{},
		MerchantSold: map[string]map[string]int{},
		Achievements: map[string]uint64{},
	}
}

// Clone returns a deep copy, so a cached state can be extended without
// affecting readers of the original.
func (s State) Clone() State {
	out := s
	out.Characters = make(map[string]CharacterState, len(s.Characters))
	for k, v := range s.Characters {
		out.Characters[k] = v
	}
	out.Dialogue = make(map[string]DialogueCursor, len(s.Dialogue))
	for k, v := range s.Dialogue {
		v.Visited = append([]string(nil), v.Visited...)
		out.Dialogue[k] = v
	}
	out.Quests = make(map[string]QuestState, len(s.Quests))
	for k, v := range s.Quests {
		objectives := make(map[string]int, len(v.Objectives))
		for ok, ov := range v.Objectives {
			objectives[ok] = ov
		}
		v.Objectives = objectives
		out.Quests[k] = v
	}
	out.Triggers = make(map[string]uint64, len(s.Triggers))
	for k, v := range s.Triggers {
		out.Triggers[k] = v
	}
	out.Inventory = make(map[string]int, len(s.Inventory))
	for k, v := range s.Inventory {
		out.Inventory[k] = v
	}
	out.Traits = make(map[string][]string, len(s.Traits))
	for k, v := range s.Traits {
		out.Traits[k] = append([]string(nil), v...)
	}
	out.Party = append([]PartyMember(nil), s.Party...)
	out.MerchantSold = make(map[string]map[string]int, len(s.MerchantSold))
	for m, items := range s.MerchantSold {
		cp := make(map[string]int, len(items))
		for k, v := range items {
			cp[k] = v
		}
		out.MerchantSold[m] = cp
	}
	if s.Battle != nil {
		b := s.Battle.Clone()
		out.Battle = &b
	}
	out.Achievements = make(map[string]uint64, len(s.Achievements))
	for k, v := range s.Achievements {
		out.Achievements[k] = v
	}
	return out
}

// InParty reports the slot held by character, if any.
func (s State) InParty(character string) (int, bool) {
	for _, m := range s.Party {
		if m.Character == character {
			return m.Slot, true
		}
	}
	return 0, false
}

// QuestsCompleted counts completed quests.
func (s State) QuestsCompleted() int {
	n := 0
	for _, q := range s.Quests {
		if q.Completed {
			n++
		}
	}
	return n
}

// UnlockedAchievements lists recorded achievements in sorted order.
func (s State) UnlockedAchievements() []string {
	out := make([]string, 0, len(s.Achievements))
	for k := range s.Achievements {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
