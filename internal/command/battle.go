package command

import (
	"ambientsaga/internal/combat"
	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/txn"
)

func combatant(ref, name string, p config.CombatProfile, health, maxHealth int) combat.Combatant {
	return combat.Combatant{
		Ref:       ref,
		Name:      name,
		Health:    health,
		MaxHealth: maxHealth,
		Stats: combat.Stats{
			Attack:   p.Attack,
			Defense:  p.Defense,
			Speed:    p.Speed,
			Variance: p.Variance,
		},
		Equipment: combat.Equipment{
			Weapon:      p.Weapon,
			WeaponPower: p.WeaponPower,
			Armor:       p.Armor,
			ArmorRating: p.ArmorRating,
			Accessory:   p.Accessory,
		},
		Affinity: p.Affinity,
	}
}

// fighter builds the snapshot of a catalog character, taking its health from
// the replayed state when it is spawned.
func fighter(sess *session, ch *config.Character) combat.Combatant {
	health, maxHealth := ch.Combat.Health, ch.Combat.Health
	if health <= 0 {
		health, maxHealth = ch.Health, ch.Health
	}
	if st, ok := sess.state.Characters[ch.Name]; ok && st.Spawned {
		health, maxHealth = st.Health, st.MaxHealth
	}
	return combatant(ch.Name, ch.Name, *ch.Combat, health, maxHealth)
}

// startBattle spawns the enemy if needed, records the starting snapshots,
// and resolves the opening turns up to the player's first decision.
func (s *Service) startBattle(sess *session, c StartBattle) error {
	if b := sess.state.Battle; b != nil {
		return invalid("battle %s is still in progress", b.ID)
	}
	enemy, ok := sess.catalog.CharacterByName(c.Enemy)
	if !ok {
		return notFound("character", c.Enemy)
	}
	if enemy.Combat == nil {
		return invalid("%s cannot fight", enemy.Name)
	}
	if st, ok := sess.state.Characters[enemy.Name]; ok && st.Defeated {
		return invalid("%s is already defeated", enemy.Name)
	}
	if _, in := sess.state.InParty(enemy.Name); in {
		return invalid("%s is a party member", enemy.Name)
	}
	if !present(sess.state, enemy.Name) {
		sess.emit(txn.KindCharacterSpawned, spawnPayload(enemy))
		sess.state.Characters[enemy.Name] = replaySpawn(enemy)
	}

	avatar := sess.catalog.Avatar
	setup := combat.Setup{
		ID:     s.newID(),
		Player: combatant(sess.avatarID, "avatar", avatar, avatar.Health, avatar.Health),
		Enemy:  fighter(sess, enemy),
	}
	for _, m := range sess.state.Party {
		ch, ok := sess.catalog.CharacterByName(m.Character)
		if !ok || ch.Combat == nil {
			continue
		}
		if st, ok := sess.state.Characters[ch.Name]; ok && st.Defeated {
			continue
		}
		cb := fighter(sess, ch)
		cb.Slot = m.Slot
		setup.Companions = append(setup.Companions, cb)
	}

	b, err := combat.NewBattle(c.Seed, setup)
	if err != nil {
		return err
	}
	started, err := combat.StartedPayload(b)
	if err != nil {
		return err
	}
	records, err := b.Begin()
	if err != nil {
		return err
	}
	sess.emit(txn.KindBattleStarted, started)
	return emitTurns(sess, b, records)
}

func (s *Service) battleAction(sess *session, c BattleAction) error {
	if sess.state.Battle == nil {
		return invalid("no battle in progress")
	}
	action, err := combat.ParseAction(c.Action)
	if err != nil {
		return err
	}
	b := sess.state.Battle.Clone()
	records, err := b.Act(action, c.TargetRef, c.Power)
	if err != nil {
		return err
	}
	return emitTurns(sess, b, records)
}

func emitTurns(sess *session, b combat.Battle, records []combat.TurnRecord) error {
	turns, err := combat.TurnPayloads(b.ID, records)
	if err != nil {
		return err
	}
	for _, p := range turns {
		sess.emit(txn.KindBattleTurnResolved, p)
	}
	if !b.Phase.Terminal() {
		return nil
	}
	ended, err := combat.EndedPayload(b)
	if err != nil {
		return err
	}
	sess.emit(txn.KindBattleEnded, ended)
	return nil
}

// SimulateBattle plays a scripted battle between the catalog avatar, its
// companions in slot order, and enemy. Nothing is read from or written to a
// log, so every character starts at full health.
func SimulateBattle(catalog *config.Catalog, seed uint64, enemy string, companions []string, actions []combat.Action) (combat.Script, error) {
	foe, ok := catalog.CharacterByName(enemy)
	if !ok {
		return combat.Script{}, notFound("character", enemy)
	}
	if foe.Combat == nil {
		return combat.Script{}, invalid("%s cannot fight", foe.Name)
	}
	sess := &session{state: replay.NewState()}
	setup := combat.Setup{
		ID:     "simulation",
		Player: combatant("avatar", "avatar", catalog.Avatar, catalog.Avatar.Health, catalog.Avatar.Health),
		Enemy:  fighter(sess, foe),
	}
	for i, name := range companions {
		ch, ok := catalog.CharacterByName(name)
		if !ok {
			return combat.Script{}, notFound("character", name)
		}
		if ch.Combat == nil {
			return combat.Script{}, invalid("%s cannot fight", ch.Name)
		}
		cb := fighter(sess, ch)
		cb.Slot = i
		setup.Companions = append(setup.Companions, cb)
	}
	return combat.ResolveBattle(seed, setup, actions)
}
