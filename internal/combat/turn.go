package combat

import (
	"fmt"

	"ambientsaga/internal/sagaerr"
)

// TurnRecord is the outcome of one resolved action. Applying the records
// of a battle in order rebuilds its state without touching the RNG.
type TurnRecord struct {
	Turn           int
	Phase          Phase
	Actor          string
	Action         Action
	Target         string
	Damage         int
	Healing        int
	TargetHealth   int
	Next           Phase
	Cursor         int
	Snapshot       Combatant
	TargetSnapshot *Combatant
}

// Begin starts the battle and resolves turns until the player must act or
// the battle ends.
func (b *Battle) Begin() ([]TurnRecord, error) {
	if b.Phase != PhaseNotStarted {
		return nil, sagaerr.Newf(sagaerr.CodeValidation, "battle %s already started", b.ID)
	}
	b.MarkStarted()
	return b.runAutomatic(), nil
}

// Act resolves the player's action, then every automatic turn that follows
// until the player must act again or the battle ends. power overrides the
// computed attack damage when positive.
func (b *Battle) Act(action Action, target string, power int) ([]TurnRecord, error) {
	if b.Phase != PhasePlayerTurn {
		return nil, sagaerr.Newf(sagaerr.CodeValidation, "battle %s is in %s, not the player's turn", b.ID, b.Phase)
	}

	patient, err := b.checkAction(action, target)
	if err != nil {
		return nil, err
	}

	b.Turn++
	b.Player.Defending = false
	rec := TurnRecord{Turn: b.Turn, Phase: PhasePlayerTurn, Actor: b.Player.Ref, Action: action}

	switch action {
	case ActionAttack:
		dmg := b.damage(b.Player, b.Enemy, power)
		b.Enemy.Health = max(0, b.Enemy.Health-dmg)
		b.Enemy.Defending = false
		rec.Target = b.Enemy.Ref
		rec.Damage = dmg
		rec.TargetHealth = b.Enemy.Health
	case ActionDefend:
		b.Player.Defending = true
	case ActionHeal:
		amount := min(b.Player.Stats.Attack/2, patient.MaxHealth-patient.Health)
		amount = max(amount, 0)
		patient.Health += amount
		rec.Target = patient.Ref
		rec.Healing = amount
		rec.TargetHealth = patient.Health
	case ActionFlee:
		chance := 50 + (b.Player.Stats.Speed-b.Enemy.Stats.Speed)*5
		if roll(b.Seed, b.Turn, saltFlee, 100) < chance {
			b.Phase = PhaseFled
		}
	}

	if b.Phase != PhaseFled {
		b.afterPlayer()
	}
	records := []TurnRecord{b.finish(rec)}
	return append(records, b.runAutomatic()...), nil
}

// checkAction validates a player action before any state changes and
// returns the combatant a heal would land on.
func (b *Battle) checkAction(action Action, target string) (*Combatant, error) {
	switch action {
	case ActionAttack:
		if target != "" && target != b.Enemy.Ref {
			return nil, sagaerr.Newf(sagaerr.CodeValidation, "cannot attack %s", target)
		}
	case ActionHeal:
		if target == "" || target == b.Player.Ref {
			return &b.Player, nil
		}
		patient := b.combatant(target)
		if patient == nil || patient.Side != SideCompanion || !patient.Alive() {
			return nil, sagaerr.Newf(sagaerr.CodeValidation, "cannot heal %s", target)
		}
		return patient, nil
	case ActionDefend, ActionFlee:
	default:
		return nil, sagaerr.Newf(sagaerr.CodeValidation, "unknown battle action %q", action)
	}
	return nil, nil
}

func (b *Battle) runAutomatic() []TurnRecord {
	var records []TurnRecord
	for {
		switch b.Phase {
		case PhaseEnemyTurn:
			records = append(records, b.enemyTurn())
		case PhaseCompanionTurn:
			records = append(records, b.companionTurn())
		default:
			return records
		}
	}
}

func (b *Battle) enemyTurn() TurnRecord {
	b.Turn++
	b.Enemy.Defending = false

	targets := []*Combatant{}
	if b.Player.Alive() {
		targets = append(targets, &b.Player)
	}
	for i := range b.Companions {
		if b.Companions[i].Alive() {
			targets = append(targets, &b.Companions[i])
		}
	}
	target := targets[roll(b.Seed, b.Turn, saltTarget, len(targets))]

	dmg := b.damage(b.Enemy, *target, 0)
	target.Health = max(0, target.Health-dmg)
	target.Defending = false

	rec := TurnRecord{
		Turn:         b.Turn,
		Phase:        PhaseEnemyTurn,
		Actor:        b.Enemy.Ref,
		Action:       ActionAttack,
		Target:       target.Ref,
		Damage:       dmg,
		TargetHealth: target.Health,
	}
	b.afterEnemy()
	return b.finish(rec)
}

func (b *Battle) companionTurn() TurnRecord {
	b.Turn++
	actor := &b.Companions[b.Cursor]
	dmg := b.damage(*actor, b.Enemy, 0)
	b.Enemy.Health = max(0, b.Enemy.Health-dmg)
	b.Enemy.Defending = false

	rec := TurnRecord{
		Turn:         b.Turn,
		Phase:        PhaseCompanionTurn,
		Actor:        actor.Ref,
		Action:       ActionAttack,
		Target:       b.Enemy.Ref,
		Damage:       dmg,
		TargetHealth: b.Enemy.Health,
	}
	b.afterCompanion()
	return b.finish(rec)
}

// finish stamps the post-transition phase and the snapshots.
func (b *Battle) finish(rec TurnRecord) TurnRecord {
	rec.Next = b.Phase
	rec.Cursor = b.Cursor
	rec.Snapshot = CopyCombatant(*b.combatant(rec.Actor))
	if rec.Target != "" && rec.Target != rec.Actor {
		snap := CopyCombatant(*b.combatant(rec.Target))
		rec.TargetSnapshot = &snap
	}
	return rec
}

// Apply replays a recorded turn onto b.
func (b *Battle) Apply(rec TurnRecord) error {
	if rec.Turn != b.Turn+1 {
		return fmt.Errorf("battle %s: expected turn %d, got %d", b.ID, b.Turn+1, rec.Turn)
	}
	actor := b.combatant(rec.Snapshot.Ref)
	if actor == nil {
		return fmt.Errorf("battle %s: unknown actor %s", b.ID, rec.Snapshot.Ref)
	}
	*actor = CopyCombatant(rec.Snapshot)
	if rec.TargetSnapshot != nil {
		target := b.combatant(rec.TargetSnapshot.Ref)
		if target == nil {
			return fmt.Errorf("battle %s: unknown target %s", b.ID, rec.TargetSnapshot.Ref)
		}
		*target = CopyCombatant(*rec.TargetSnapshot)
	}
	b.Turn = rec.Turn
	b.Phase = rec.Next
	b.Cursor = rec.Cursor
	return nil
}
