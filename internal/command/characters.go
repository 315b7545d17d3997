package command

import (
	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/txn"
)

func spawnPayload(ch *config.Character) txn.Payload {
	p := txn.Payload{
		txn.KeyCharacter: ch.Name,
		txn.KeyHealth:    txn.Itoa(ch.Health),
		txn.KeyMaxHealth: txn.Itoa(ch.Health),
	}
	if ch.Position != "" {
		p[txn.KeyPosition] = ch.Position
	}
	return p
}

// present reports whether a character is spawned and still standing.
func present(state replay.State, ref string) bool {
	ch, ok := state.Characters[ref]
	return ok && ch.Spawned && !ch.Defeated
}

func (s *Service) activateTrigger(sess *session, c ActivateTrigger) error {
	tr, ok := sess.catalog.TriggerByName(c.Trigger)
	if !ok {
		return notFound("trigger", c.Trigger)
	}
	if seq, done := sess.state.Triggers[tr.Name]; done {
		return invalid("trigger %s already activated at seq %d", tr.Name, seq)
	}
	sess.emit(txn.KindTriggerActivated, txn.Payload{txn.KeyTrigger: tr.Name})
	for _, ref := range tr.Spawns {
		ch, _ := sess.catalog.CharacterByName(ref)
		if present(sess.state, ch.Name) {
			continue
		}
		sess.emit(txn.KindCharacterSpawned, spawnPayload(ch))
	}
	return nil
}

func (s *Service) spawnCharacter(sess *session, c SpawnCharacter) error {
	ch, ok := sess.catalog.CharacterByName(c.Character)
	if !ok {
		return notFound("character", c.Character)
	}
	if present(sess.state, ch.Name) {
		return invalid("character %s is already spawned", ch.Name)
	}
	sess.emit(txn.KindCharacterSpawned, spawnPayload(ch))
	return nil
}

// living returns the state of a spawned, undefeated character that is not
// fighting in the current battle.
func living(sess *session, name string) (replay.CharacterState, error) {
	def, ok := sess.catalog.CharacterByName(name)
	if !ok {
		return replay.CharacterState{}, notFound("character", name)
	}
	ch, ok := sess.state.Characters[def.Name]
	if !ok || !ch.Spawned {
		return replay.CharacterState{}, notFound("spawned character", def.Name)
	}
	if ch.Defeated {
		return replay.CharacterState{}, invalid("character %s is defeated", def.Name)
	}
	if b := sess.state.Battle; b != nil {
		for _, cb := range b.Combatants() {
			if cb.Ref == def.Name {
				return replay.CharacterState{}, invalid("character %s is fighting in battle %s", def.Name, b.ID)
			}
		}
	}
	return ch, nil
}

func (s *Service) damageCharacter(sess *session, c DamageCharacter) error {
	ch, err := living(sess, c.Character)
	if err != nil {
		return err
	}
	health := max(0, ch.Health-c.Amount)
	sess.emit(txn.KindCharacterDamaged, txn.Payload{
		txn.KeyCharacter: ch.Ref,
		txn.KeyAmount:    txn.Itoa(c.Amount),
		txn.KeyHealth:    txn.Itoa(health),
	})
	if health == 0 {
		sess.emit(txn.KindCharacterDefeated, txn.Payload{txn.KeyCharacter: ch.Ref})
	}
	return nil
}

func (s *Service) healCharacter(sess *session, c HealCharacter) error {
	ch, err := living(sess, c.Character)
	if err != nil {
		return err
	}
	health := min(ch.MaxHealth, ch.Health+c.Amount)
	sess.emit(txn.KindCharacterHealed, txn.Payload{
		txn.KeyCharacter: ch.Ref,
		txn.KeyAmount:    txn.Itoa(health - ch.Health),
		txn.KeyHealth:    txn.Itoa(health),
	})
	return nil
}

// replaySpawn is the state a CharacterSpawned emitted in this command
// produces once folded.
func replaySpawn(ch *config.Character) replay.CharacterState {
	return replay.CharacterState{
		Ref:       ch.Name,
		Health:    ch.Health,
		MaxHealth: ch.Health,
		Position:  ch.Position,
		Spawned:   true,
	}
}
