package combat

import (
	"fmt"

	"ambientsaga/internal/txn"
)

// Script is a full battle played from a list of player actions.
type Script struct {
	Initial Battle
	Battle  Battle
	Records []TurnRecord
	// Unused holds the actions left over once the battle ended.
	Unused []Action
}

// ResolveBattle plays a scripted battle. Actions are consumed one per
// player turn; the battle stops early once it ends.
func ResolveBattle(seed uint64, setup Setup, actions []Action) (Script, error) {
	b, err := NewBattle(seed, setup)
	if err != nil {
		return Script{}, err
	}
	initial := b.Clone()
	records, err := b.Begin()
	if err != nil {
		return Script{}, err
	}

	i := 0
	for ; i < len(actions) && b.Phase == PhasePlayerTurn; i++ {
		recs, err := b.Act(actions[i], "", 0)
		if err != nil {
			return Script{}, fmt.Errorf("action %d: %w", i, err)
		}
		records = append(records, recs...)
	}
	return Script{Initial: initial, Battle: b, Records: records, Unused: actions[i:]}, nil
}

// Payloads renders the whole script as the transaction payloads a live
// battle would have recorded: BattleStarted, each BattleTurnResolved, and
// BattleEnded when the battle finished.
func (s Script) Payloads() ([]txn.Payload, error) {
	started, err := StartedPayload(s.Initial)
	if err != nil {
		return nil, err
	}
	turns, err := TurnPayloads(s.Battle.ID, s.Records)
	if err != nil {
		return nil, err
	}
	out := append([]txn.Payload{started}, turns...)
	if s.Battle.Phase.Terminal() {
		ended, err := EndedPayload(s.Battle)
		if err != nil {
			return nil, err
		}
		out = append(out, ended)
	}
	return out, nil
}
