package combat

import (
	"errors"
	"reflect"
	"testing"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

func player(attack, defense, health int) Combatant {
	return Combatant{
		Ref: "avatar-1", Name: "Hero", Side: SidePlayer,
		Health: health, MaxHealth: health,
		Stats:     Stats{Attack: attack, Defense: defense, Speed: 5},
		Equipment: Equipment{Weapon: "iron_sword", Armor: "leather"},
	}
}

func goblin(health, attack int) Combatant {
	return Combatant{
		Ref: "goblin", Name: "Goblin", Side: SideEnemy,
		Health: health, MaxHealth: health,
		Stats:    Stats{Attack: attack, Speed: 3},
		Affinity: "earth",
	}
}

func ranger(slot int) Combatant {
	return Combatant{
		Ref: "ranger", Name: "Ranger", Side: SideCompanion, Slot: slot,
		Health: 60, MaxHealth: 60,
		Stats: Stats{Attack: 10, Defense: 2, Speed: 6},
	}
}

func TestVictoryAfterTwoPlayerTurns(t *testing.T) {
	setup := Setup{
		ID:         "battle-1",
		Player:     player(20, 4, 100),
		Companions: []Combatant{ranger(0)},
		Enemy:      goblin(50, 6),
	}
	script, err := ResolveBattle(1, setup, []Action{ActionAttack, ActionAttack, ActionAttack})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if script.Battle.Phase != PhaseVictory {
		t.Fatalf("expected victory, got %s", script.Battle.Phase)
	}
	if victor, ok := script.Battle.Victor(); !ok || victor != VictorPlayer {
		t.Fatalf("expected player victor, got %q", victor)
	}
	if len(script.Unused) != 1 {
		t.Fatalf("expected exactly 2 player turns, %d actions unused", len(script.Unused))
	}

	playerTurns := 0
	for _, r := range script.Records {
		if r.Phase == PhasePlayerTurn {
			playerTurns++
			if r.Damage != 20 {
				t.Fatalf("expected player damage 20, got %d", r.Damage)
			}
		}
	}
	if playerTurns != 2 {
		t.Fatalf("expected 2 player turns, got %d", playerTurns)
	}
	if script.Records[0].Phase != PhaseEnemyTurn {
		t.Fatalf("expected enemy to act first, got %s", script.Records[0].Phase)
	}
	if script.Battle.Enemy.Health != 0 {
		t.Fatalf("expected enemy at 0, got %d", script.Battle.Enemy.Health)
	}
}

func TestResolveBattleDeterministic(t *testing.T) {
	setup := Setup{
		ID:     "battle-42",
		Player: player(14, 3, 80),
		Companions: []Combatant{
			{Ref: "mage", Name: "Mage", Slot: 1, Health: 30, MaxHealth: 30, Stats: Stats{Attack: 9, Variance: 4}, Affinity: "fire"},
			ranger(0),
		},
		Enemy: Combatant{Ref: "troll", Name: "Troll", Health: 200, MaxHealth: 200, Stats: Stats{Attack: 12, Defense: 4, Speed: 4, Variance: 6}, Affinity: "nature"},
	}
	setup.Player.Stats.Variance = 5

	run := func() [][]byte {
		script, err := ResolveBattle(42, setup, []Action{ActionAttack, ActionAttack, ActionFlee})
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		payloads, err := script.Payloads()
		if err != nil {
			t.Fatalf("payloads: %v", err)
		}
		var out [][]byte
		for _, p := range payloads {
			data, err := txn.EncodePayload(p)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			out = append(out, data)
		}
		return out
	}

	first := run()
	for i := 0; i < 5; i++ {
		again := run()
		if len(again) != len(first) {
			t.Fatalf("run %d produced %d payloads, want %d", i, len(again), len(first))
		}
		for j := range first {
			if string(first[j]) != string(again[j]) {
				t.Fatalf("run %d payload %d differs:\n%s\n%s", i, j, first[j], again[j])
			}
		}
	}
}

func TestReplayRecordsRebuildsBattle(t *testing.T) {
	setup := Setup{
		ID:         "battle-7",
		Player:     player(12, 2, 60),
		Companions: []Combatant{ranger(0)},
		Enemy:      Combatant{Ref: "wolf", Name: "Wolf", Health: 90, MaxHealth: 90, Stats: Stats{Attack: 9, Defense: 2, Speed: 7, Variance: 3}},
	}
	script, err := ResolveBattle(7, setup, []Action{ActionDefend, ActionAttack, ActionHeal, ActionAttack})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	started, err := StartedPayload(script.Initial)
	if err != nil {
		t.Fatalf("started payload: %v", err)
	}
	rebuilt, err := DecodeStarted(started)
	if err != nil {
		t.Fatalf("decode started: %v", err)
	}
	rebuilt.MarkStarted()

	turns, err := TurnPayloads(script.Battle.ID, script.Records)
	if err != nil {
		t.Fatalf("turn payloads: %v", err)
	}
	for i, p := range turns {
		rec, err := DecodeTurn(p)
		if err != nil {
			t.Fatalf("decode turn %d: %v", i, err)
		}
		if err := rebuilt.Apply(rec); err != nil {
			t.Fatalf("apply turn %d: %v", i, err)
		}
	}

	if !reflect.DeepEqual(rebuilt, script.Battle) {
		t.Fatalf("replayed battle differs:\n got %+v\nwant %+v", rebuilt, script.Battle)
	}
}

func TestDefendHalvesNextHit(t *testing.T) {
	b, err := NewBattle(3, Setup{ID: "b", Player: player(5, 0, 100), Enemy: goblin(100, 10)})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	opening, err := b.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if opening[0].Damage != 10 {
		t.Fatalf("expected undefended hit of 10, got %d", opening[0].Damage)
	}

	records, err := b.Act(ActionDefend, "", 0)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected defend and enemy records, got %d", len(records))
	}
	if !records[0].Snapshot.Defending {
		t.Fatalf("expected defending snapshot")
	}
	if records[1].Damage != 5 {
		t.Fatalf("expected halved hit of 5, got %d", records[1].Damage)
	}
	if b.Player.Defending {
		t.Fatalf("defend should clear after absorbing a hit")
	}
}

func TestHealClampsToMax(t *testing.T) {
	b, err := NewBattle(3, Setup{ID: "b", Player: player(40, 0, 100), Enemy: goblin(100, 4)})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	if _, err := b.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	records, err := b.Act(ActionHeal, "", 0)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if records[0].Healing != 4 || records[0].TargetHealth != 100 {
		t.Fatalf("expected heal clamped to 4, got %+v", records[0])
	}
}

func TestFlee(t *testing.T) {
	fast := player(5, 0, 100)
	fast.Stats.Speed = 100
	b, err := NewBattle(9, Setup{ID: "b", Player: fast, Enemy: goblin(100, 1)})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	if _, err := b.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	records, err := b.Act(ActionFlee, "", 0)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if b.Phase != PhaseFled || len(records) != 1 || records[0].Next != PhaseFled {
		t.Fatalf("expected guaranteed flight, got phase %s", b.Phase)
	}

	slow := player(5, 0, 100)
	slow.Stats.Speed = 0
	enemy := goblin(100, 1)
	enemy.Stats.Speed = 100
	b, err = NewBattle(9, Setup{ID: "b", Player: slow, Enemy: enemy})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	if _, err := b.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := b.Act(ActionFlee, "", 0); err != nil {
		t.Fatalf("act: %v", err)
	}
	if b.Phase != PhasePlayerTurn {
		t.Fatalf("expected failed flight to pass the turn back, got %s", b.Phase)
	}
}

func TestDefeatEndsBattle(t *testing.T) {
	b, err := NewBattle(1, Setup{ID: "b", Player: player(5, 0, 1), Enemy: goblin(100, 50)})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	records, err := b.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if b.Phase != PhaseDefeat || records[0].Next != PhaseDefeat {
		t.Fatalf("expected defeat, got %s", b.Phase)
	}
	if _, err := b.Act(ActionAttack, "", 0); !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error after battle end, got %v", err)
	}
	payload, err := EndedPayload(b)
	if err != nil {
		t.Fatalf("ended payload: %v", err)
	}
	if payload[txn.KeyVictor] != string(VictorEnemy) {
		t.Fatalf("unexpected victor %q", payload[txn.KeyVictor])
	}
}

func TestCompanionsActInSlotOrderSkippingDead(t *testing.T) {
	dead := Combatant{Ref: "bard", Name: "Bard", Slot: 0, Health: 0, MaxHealth: 20, Stats: Stats{Attack: 3}}
	setup := Setup{
		ID:         "b",
		Player:     player(1, 0, 100),
		Companions: []Combatant{ranger(2), dead, {Ref: "cleric", Name: "Cleric", Slot: 1, Health: 20, MaxHealth: 20, Stats: Stats{Attack: 2}}},
		Enemy:      goblin(500, 1),
	}
	b, err := NewBattle(5, setup)
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	if _, err := b.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	records, err := b.Act(ActionAttack, "", 0)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	var actors []string
	for _, r := range records {
		actors = append(actors, r.Actor)
	}
	want := []string{"avatar-1", "cleric", "ranger", "goblin"}
	if !reflect.DeepEqual(actors, want) {
		t.Fatalf("expected order %v, got %v", want, actors)
	}
}

func TestPowerOverride(t *testing.T) {
	b, err := NewBattle(1, Setup{ID: "b", Player: player(5, 0, 100), Enemy: goblin(100, 1)})
	if err != nil {
		t.Fatalf("new battle: %v", err)
	}
	if _, err := b.Begin(); err != nil {
		t.Fatalf("begin: %v", err)
	}
	records, err := b.Act(ActionAttack, "goblin", 33)
	if err != nil {
		t.Fatalf("act: %v", err)
	}
	if records[0].Damage != 33 {
		t.Fatalf("expected override damage 33, got %d", records[0].Damage)
	}
}

func TestNewBattleValidation(t *testing.T) {
	tests := []struct {
		name  string
		setup Setup
	}{
		{"missing id", Setup{Player: player(1, 0, 1), Enemy: goblin(1, 1)}},
		{"dead player", Setup{ID: "b", Player: player(1, 0, 0), Enemy: goblin(1, 1)}},
		{"dead enemy", Setup{ID: "b", Player: player(1, 0, 1), Enemy: goblin(0, 1)}},
		{"duplicate ref", Setup{ID: "b", Player: player(1, 0, 1), Companions: []Combatant{{Ref: "goblin", Health: 1}}, Enemy: goblin(1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewBattle(1, tt.setup); !errors.Is(err, sagaerr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCopyCombatantIsIndependent(t *testing.T) {
	orig := ranger(0)
	cp := CopyCombatant(orig)
	cp.Stats.Attack = 99
	cp.Equipment.Weapon = "bow"
	if orig.Stats.Attack != 10 || orig.Equipment.Weapon != "" {
		t.Fatalf("copy shares state with original")
	}
	if !reflect.DeepEqual(CopyCombatant(orig), orig) {
		t.Fatalf("copy dropped fields")
	}
}

func TestAffinityAdvantage(t *testing.T) {
	if !hasAdvantage("fire", "nature") || hasAdvantage("nature", "fire") || hasAdvantage("", "fire") {
		t.Fatalf("unexpected affinity wheel")
	}
}
