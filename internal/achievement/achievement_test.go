package achievement

import (
	"reflect"
	"testing"

	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
)

var catalog = []config.Achievement{
	{Name: "first_blood", Criterion: config.CriterionBattlesWon, Threshold: 1},
	{Name: "miner", Criterion: config.CriterionBlocksMined, Threshold: 100},
	{Name: "chatterbox", Criterion: config.CriterionDialogueNodesVisited, Threshold: 3},
	{Name: "company", Criterion: config.CriterionPartySize, Threshold: 2},
}

func states() []replay.State {
	a := replay.NewState()
	a.BattlesWon = 1
	a.Claims.BlocksMined = 60
	a.NodesVisited = 2
	a.Party = []replay.PartyMember{{Character: "ranger", Slot: 0}}

	b := replay.NewState()
	b.Claims.BlocksMined = 40
	b.NodesVisited = 0
	b.Party = []replay.PartyMember{{Character: "mage", Slot: 0}}
	return []replay.State{a, b}
}

func TestEvaluateSumsAcrossInstances(t *testing.T) {
	got := Evaluate(states(), catalog).Sorted()
	want := []string{"first_blood", "miner"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	p := Progress(states())
	if p[config.CriterionPartySize] != 1 {
		t.Fatalf("party size is the largest party, not a sum: got %d", p[config.CriterionPartySize])
	}
}

func TestDiff(t *testing.T) {
	before := NewSet("first_blood")
	after := NewSet("first_blood", "miner", "chatterbox")
	if got := Diff(before, after); !reflect.DeepEqual(got, []string{"chatterbox", "miner"}) {
		t.Fatalf("unexpected diff %v", got)
	}
	if got := Diff(after, before); len(got) != 0 {
		t.Fatalf("expected empty diff, got %v", got)
	}
}

func TestTrackerNewlyIsIdempotent(t *testing.T) {
	tracker := NewTracker()
	first := tracker.Newly("avatar-1", states(), catalog)
	if !reflect.DeepEqual(first, []string{"first_blood", "miner"}) {
		t.Fatalf("unexpected first unlocks %v", first)
	}
	if again := tracker.Newly("avatar-1", states(), catalog); len(again) != 0 {
		t.Fatalf("expected no repeat unlocks, got %v", again)
	}
	inst, ok := tracker.Get("avatar-1")
	if !ok || !inst.Unlocked.Has("miner") || inst.Progress[config.CriterionBlocksMined] != 100 {
		t.Fatalf("unexpected cached instance %+v", inst)
	}
}

func TestTrackerHonorsRecordedUnlocks(t *testing.T) {
	st := states()
	st[0].Achievements["first_blood"] = 9
	got := NewTracker().Newly("avatar-1", st, catalog)
	if !reflect.DeepEqual(got, []string{"miner"}) {
		t.Fatalf("expected only miner, got %v", got)
	}
}
