// Package command turns player intents into transactions. Every handler
// replays the target saga instance, checks its preconditions against the
// folded state and the loaded catalog, and appends the resulting
// transactions with a compare-and-append on the replayed tail.
package command

import (
	"ambientsaga/internal/txn"
)

// Command is an intent addressed to one avatar's saga instance.
type Command interface {
	Name() string
	Avatar() string
	Saga() string
}

// Validator is implemented by commands that can check their own fields
// before any state is read.
type Validator interface {
	Validate() error
}

// Target addresses a command. Embed it to satisfy Avatar and Saga.
type Target struct {
	AvatarID string `json:"avatar_id"`
	SagaRef  string `json:"saga_ref"`
}

func (t Target) Avatar() string { return t.AvatarID }
func (t Target) Saga() string   { return t.SagaRef }

// Result reports the outcome of one command.
type Result struct {
	Successful        bool     `json:"successful"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	SagaInstanceID    string   `json:"saga_instance_id,omitempty"`
	TransactionIDs    []string `json:"transaction_ids,omitempty"`
	NewSequenceNumber uint64   `json:"new_sequence_number"`

	// Slot is set by AddPartyMember; nil means no slot was free.
	Slot *int `json:"slot,omitempty"`

	// UnlockedAchievements lists achievements unlocked as a consequence of
	// the command.
	UnlockedAchievements []string `json:"unlocked_achievements,omitempty"`
}

// RewardKey identifies one reward grant of an avatar.
func RewardKey(avatarID string, parts ...string) string {
	key := avatarID
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// RewardGranted scans txs for a reward transaction of avatarID carrying key.
// The log is the only record of whether a reward was applied.
func RewardGranted(txs []txn.Transaction, avatarID, key string) bool {
	for _, tx := range txs {
		if !tx.Kind.GrantsReward() || tx.AvatarID != avatarID {
			continue
		}
		if tx.Payload[txn.KeyRewardKey] == key {
			return true
		}
	}
	return false
}
