package combat

import (
	"math/rand/v2"
	"sort"

	"ambientsaga/internal/sagaerr"
)

type Phase string

const (
	PhaseNotStarted    Phase = "NotStarted"
	PhaseEnemyTurn     Phase = "EnemyTurn"
	PhasePlayerTurn    Phase = "PlayerTurn"
	PhaseCompanionTurn Phase = "CompanionTurn"
	PhaseVictory       Phase = "Victory"
	PhaseDefeat        Phase = "Defeat"
	PhaseFled          Phase = "Fled"
)

func (p Phase) Terminal() bool {
	return p == PhaseVictory || p == PhaseDefeat || p == PhaseFled
}

type Action string

const (
	ActionAttack Action = "Attack"
	ActionDefend Action = "Defend"
	ActionHeal   Action = "Heal"
	ActionFlee   Action = "Flee"
)

func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionAttack, ActionDefend, ActionHeal, ActionFlee:
		return a, nil
	}
	return "", sagaerr.Newf(sagaerr.CodeValidation, "unknown battle action %q", s)
}

// Victor names the winning side of a finished battle.
type Victor string

const (
	VictorPlayer Victor = "Player"
	VictorEnemy  Victor = "Enemy"
	VictorFled   Victor = "Fled"
)

// Salts keep the draws made within one turn independent of each other.
const (
	saltVariance uint64 = 1
	saltTarget   uint64 = 2
	saltFlee     uint64 = 3
)

// Battle is the live state of one fight.
type Battle struct {
	ID         string
	Seed       uint64
	Phase      Phase
	Turn       int
	Cursor     int
	Player     Combatant
	Companions []Combatant
	Enemy      Combatant
}

// Setup describes the participants of a new battle.
type Setup struct {
	ID         string
	Player     Combatant
	Companions []Combatant
	Enemy      Combatant
}

// NewBattle validates the participants and returns a battle that has not
// started yet. Companions are ordered by party slot.
func NewBattle(seed uint64, setup Setup) (Battle, error) {
	if setup.ID == "" {
		return Battle{}, sagaerr.New(sagaerr.CodeValidation, "battle id is required")
	}
	if !setup.Player.Alive() {
		return Battle{}, sagaerr.New(sagaerr.CodeValidation, "player cannot start a battle at zero health")
	}
	if !setup.Enemy.Alive() {
		return Battle{}, sagaerr.Newf(sagaerr.CodeValidation, "enemy %s is already defeated", setup.Enemy.Ref)
	}

	b := Battle{
		ID:     setup.ID,
		Seed:   seed,
		Phase:  PhaseNotStarted,
		Player: CopyCombatant(setup.Player),
		Enemy:  CopyCombatant(setup.Enemy),
	}
	b.Player.Side = SidePlayer
	b.Enemy.Side = SideEnemy
	for _, c := range setup.Companions {
		cp := CopyCombatant(c)
		cp.Side = SideCompanion
		b.Companions = append(b.Companions, cp)
	}
	sort.SliceStable(b.Companions, func(i, j int) bool { return b.Companions[i].Slot < b.Companions[j].Slot })

	seen := map[string]struct{}{}
	for _, c := range b.Combatants() {
		if c.Ref == "" {
			return Battle{}, sagaerr.New(sagaerr.CodeValidation, "combatant ref is required")
		}
		if _, dup := seen[c.Ref]; dup {
			return Battle{}, sagaerr.Newf(sagaerr.CodeValidation, "combatant %s appears twice", c.Ref)
		}
		seen[c.Ref] = struct{}{}
	}
	return b, nil
}

// Clone returns a copy that shares no slices with b.
func (b Battle) Clone() Battle {
	out := b
	out.Player = CopyCombatant(b.Player)
	out.Enemy = CopyCombatant(b.Enemy)
	out.Companions = make([]Combatant, len(b.Companions))
	for i, c := range b.Companions {
		out.Companions[i] = CopyCombatant(c)
	}
	return out
}

// Combatants lists the player, companions in slot order, then the enemy.
func (b Battle) Combatants() []Combatant {
	out := make([]Combatant, 0, len(b.Companions)+2)
	out = append(out, CopyCombatant(b.Player))
	for _, c := range b.Companions {
		out = append(out, CopyCombatant(c))
	}
	return append(out, CopyCombatant(b.Enemy))
}

func (b *Battle) combatant(ref string) *Combatant {
	if b.Player.Ref == ref {
		return &b.Player
	}
	if b.Enemy.Ref == ref {
		return &b.Enemy
	}
	for i := range b.Companions {
		if b.Companions[i].Ref == ref {
			return &b.Companions[i]
		}
	}
	return nil
}

// Victor reports the outcome once the battle is over.
func (b Battle) Victor() (Victor, bool) {
	switch b.Phase {
	case PhaseVictory:
		return VictorPlayer, true
	case PhaseDefeat:
		return VictorEnemy, true
	case PhaseFled:
		return VictorFled, true
	}
	return "", false
}

// MarkStarted moves a new battle into the enemy's opening turn.
func (b *Battle) MarkStarted() {
	if b.Phase == PhaseNotStarted {
		b.Phase = PhaseEnemyTurn
	}
}

func roll(seed uint64, turn int, salt uint64, n int) int {
	if n <= 1 {
		return 0
	}
	r := rand.New(rand.NewPCG(seed, uint64(turn)<<8|salt))
	return r.IntN(n)
}

func (b *Battle) damage(attacker, target Combatant, power int) int {
	dmg := power
	if dmg <= 0 {
		offense := attacker.Stats.Attack + attacker.Equipment.WeaponPower
		defense := target.Stats.Defense + target.Equipment.ArmorRating
		dmg = offense - defense/2 + roll(b.Seed, b.Turn, saltVariance, attacker.Stats.Variance+1)
		if hasAdvantage(attacker.Affinity, target.Affinity) {
			dmg += dmg / 4
		}
	}
	if dmg < 1 {
		dmg = 1
	}
	if target.Defending {
		dmg = max(1, dmg/2)
	}
	return dmg
}

func (b *Battle) partyAlive() bool {
	if b.Player.Alive() {
		return true
	}
	return b.nextCompanion(0) >= 0
}

func (b *Battle) nextCompanion(from int) int {
	for i := from; i < len(b.Companions); i++ {
		if b.Companions[i].Alive() {
			return i
		}
	}
	return -1
}

func (b *Battle) afterPlayer() {
	if !b.Enemy.Alive() {
		b.Phase = PhaseVictory
		return
	}
	if i := b.nextCompanion(0); i >= 0 {
		b.Phase = PhaseCompanionTurn
		b.Cursor = i
		return
	}
	b.Phase = PhaseEnemyTurn
}

func (b *Battle) afterCompanion() {
	if !b.Enemy.Alive() {
		b.Phase = PhaseVictory
		return
	}
	if i := b.nextCompanion(b.Cursor + 1); i >= 0 {
		b.Cursor = i
		return
	}
	b.Phase = PhaseEnemyTurn
	b.Cursor = 0
}

func (b *Battle) afterEnemy() {
	switch {
	case !b.partyAlive():
		b.Phase = PhaseDefeat
	case b.Player.Alive():
		b.Phase = PhasePlayerTurn
	default:
		b.Phase = PhaseCompanionTurn
		b.Cursor = b.nextCompanion(0)
	}
}
