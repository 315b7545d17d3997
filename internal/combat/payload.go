package combat

import (
	"encoding/json"
	"fmt"

	"ambientsaga/internal/txn"
)

func encodeJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StartedPayload records the battle's seed and its starting snapshots.
func StartedPayload(b Battle) (txn.Payload, error) {
	combatants, err := encodeJSON(b.Combatants())
	if err != nil {
		return nil, fmt.Errorf("encoding combatants: %w", err)
	}
	return txn.Payload{
		txn.KeyBattle:     b.ID,
		txn.KeySeed:       txn.Utoa(b.Seed),
		txn.KeyEnemy:      b.Enemy.Ref,
		txn.KeyCombatants: combatants,
	}, nil
}

// DecodeStarted rebuilds a not-yet-started battle from its payload.
func DecodeStarted(p txn.Payload) (Battle, error) {
	id, err := p.String(txn.KeyBattle)
	if err != nil {
		return Battle{}, err
	}
	seed, err := p.Uint64(txn.KeySeed)
	if err != nil {
		return Battle{}, err
	}
	raw, err := p.String(txn.KeyCombatants)
	if err != nil {
		return Battle{}, err
	}
	var combatants []Combatant
	if err := json.Unmarshal([]byte(raw), &combatants); err != nil {
		return Battle{}, &txn.FieldError{Key: txn.KeyCombatants, Reason: err.Error()}
	}

	setup := Setup{ID: id}
	for _, c := range combatants {
		switch c.Side {
		case SidePlayer:
			setup.Player = c
		case SideCompanion:
			setup.Companions = append(setup.Companions, c)
		case SideEnemy:
			setup.Enemy = c
		default:
			return Battle{}, &txn.FieldError{Key: txn.KeyCombatants, Reason: fmt.Sprintf("unknown side %q", c.Side)}
		}
	}
	return NewBattle(seed, setup)
}

// Payload renders the record as a BattleTurnResolved payload.
func (r TurnRecord) Payload(battleID string) (txn.Payload, error) {
	snapshot, err := encodeJSON(r.Snapshot)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	p := txn.Payload{
		txn.KeyBattle:    battleID,
		txn.KeyTurn:      txn.Itoa(r.Turn),
		txn.KeyPhase:     string(r.Phase),
		txn.KeyNextPhase: string(r.Next),
		txn.KeyCursor:    txn.Itoa(r.Cursor),
		txn.KeyActor:     r.Actor,
		txn.KeyAction:    string(r.Action),
		txn.KeyDamage:    txn.Itoa(r.Damage),
		txn.KeyHealing:   txn.Itoa(r.Healing),
		txn.KeySnapshot:  snapshot,
	}
	if r.Target != "" {
		p[txn.KeyTarget] = r.Target
		p[txn.KeyTargetHP] = txn.Itoa(r.TargetHealth)
	}
	if r.TargetSnapshot != nil {
		target, err := encodeJSON(r.TargetSnapshot)
		if err != nil {
			return nil, fmt.Errorf("encoding target snapshot: %w", err)
		}
		p[txn.KeyTargetSnap] = target
	}
	return p, nil
}

func DecodeTurn(p txn.Payload) (TurnRecord, error) {
	var (
		r   TurnRecord
		err error
	)
	if r.Turn, err = p.Int(txn.KeyTurn); err != nil {
		return r, err
	}
	if r.Cursor, err = p.Int(txn.KeyCursor); err != nil {
		return r, err
	}
	if r.Damage, err = p.Int(txn.KeyDamage); err != nil {
		return r, err
	}
	if r.Healing, err = p.Int(txn.KeyHealing); err != nil {
		return r, err
	}
	phase, err := p.String(txn.KeyPhase)
	if err != nil {
		return r, err
	}
	next, err := p.String(txn.KeyNextPhase)
	if err != nil {
		return r, err
	}
	r.Phase, r.Next = Phase(phase), Phase(next)
	if r.Actor, err = p.String(txn.KeyActor); err != nil {
		return r, err
	}
	action, err := p.String(txn.KeyAction)
	if err != nil {
		return r, err
	}
	if r.Action, err = ParseAction(action); err != nil {
		return r, &txn.FieldError{Key: txn.KeyAction, Reason: err.Error()}
	}

	r.Target = p.Optional(txn.KeyTarget)
	if r.Target != "" {
		if r.TargetHealth, err = p.Int(txn.KeyTargetHP); err != nil {
			return r, err
		}
	}

	raw, err := p.String(txn.KeySnapshot)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal([]byte(raw), &r.Snapshot); err != nil {
		return r, &txn.FieldError{Key: txn.KeySnapshot, Reason: err.Error()}
	}
	if raw := p.Optional(txn.KeyTargetSnap); raw != "" {
		var target Combatant
		if err := json.Unmarshal([]byte(raw), &target); err != nil {
			return r, &txn.FieldError{Key: txn.KeyTargetSnap, Reason: err.Error()}
		}
		r.TargetSnapshot = &target
	}
	return r, nil
}

// EndedPayload records the outcome of a finished battle.
func EndedPayload(b Battle) (txn.Payload, error) {
	victor, ok := b.Victor()
	if !ok {
		return nil, fmt.Errorf("battle %s has not ended", b.ID)
	}
	return txn.Payload{
		txn.KeyBattle: b.ID,
		txn.KeyVictor: string(victor),
		txn.KeyEnemy:  b.Enemy.Ref,
		txn.KeyTurn:   txn.Itoa(b.Turn),
	}, nil
}

// TurnPayloads renders records in order.
func TurnPayloads(battleID string, records []TurnRecord) ([]txn.Payload, error) {
	out := make([]txn.Payload, 0, len(records))
	for _, r := range records {
		p, err := r.Payload(battleID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
