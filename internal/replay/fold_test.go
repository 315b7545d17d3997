package replay

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"ambientsaga/internal/combat"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store/memory"
	"ambientsaga/internal/txn"
)

// sequenced stamps txs as instance "inst-1" would store them.
func sequenced(txs ...txn.Transaction) []txn.Transaction {
	out := make([]txn.Transaction, len(txs))
	for i, tx := range txs {
		tx.InstanceID = "inst-1"
		tx.Seq = uint64(i + 1)
		out[i] = tx
	}
	return out
}

func tx(kind txn.Kind, kv ...string) txn.Transaction {
	p := txn.Payload{}
	for i := 0; i+1 < len(kv); i += 2 {
		p[kv[i]] = kv[i+1]
	}
	return txn.New(kind, "avatar-1", p)
}

func sampleLog() []txn.Transaction {
	return sequenced(
		tx(txn.KindSagaStarted, txn.KeySaga, "prologue"),
		tx(txn.KindTriggerActivated, txn.KeyTrigger, "mountain_gate"),
		tx(txn.KindCharacterSpawned, txn.KeyCharacter, "elder", txn.KeyHealth, "30", txn.KeyMaxHealth, "30", txn.KeyPosition, "12,0,4"),
		tx(txn.KindCharacterDamaged, txn.KeyCharacter, "elder", txn.KeyAmount, "12", txn.KeyHealth, "18"),
		tx(txn.KindCharacterHealed, txn.KeyCharacter, "elder", txn.KeyAmount, "5", txn.KeyHealth, "23"),
		tx(txn.KindDialogueNodeVisited, txn.KeyCharacter, "elder", txn.KeyNode, "greet"),
		tx(txn.KindItemGranted, txn.KeyItem, "potion", txn.KeyQuantity, "1", txn.KeyRewardKey, "k1"),
		tx(txn.KindCurrencyTransferred, txn.KeyAmount, "25", txn.KeyReason, "dialogue_reward"),
		tx(txn.KindTraitAssigned, txn.KeyCharacter, "elder", txn.KeyTrait, "trusted"),
		tx(txn.KindDialogueNodeVisited, txn.KeyCharacter, "elder", txn.KeyNode, "greet"),
		tx(txn.KindDialogueNodeVisited, txn.KeyCharacter, "elder", txn.KeyNode, "farewell"),
		tx(txn.KindDialogueCompleted, txn.KeyCharacter, "elder"),
		tx(txn.KindItemTraded, txn.KeyMerchant, "merchant", txn.KeyItem, "potion", txn.KeyQuantity, "2", txn.KeyPrice, "10", txn.KeyDirection, txn.DirectionBuy),
		tx(txn.KindCurrencyTransferred, txn.KeyAmount, "-20", txn.KeyReason, "trade"),
		tx(txn.KindQuestAccepted, txn.KeyQuest, "clear_the_road"),
		tx(txn.KindQuestObjectiveAdvanced, txn.KeyQuest, "clear_the_road", txn.KeyObjective, "goblins", txn.KeyProgress, "2"),
		tx(txn.KindQuestCompleted, txn.KeyQuest, "clear_the_road"),
		tx(txn.KindPartyMemberJoined, txn.KeyCharacter, "ranger", txn.KeySlot, "0", txn.KeyReputation, "10"),
		tx(txn.KindActivityClaimed, txn.KeyClaimKind, "mining", txn.KeyCount, "10", txn.KeyElapsedMS, "2000", txn.KeyDistrib, "plank=4,stone=6", txn.KeyRarePct, "0.00", txn.KeyDistance, "3.00"),
		tx(txn.KindActivityClaimed, txn.KeyClaimKind, "building", txn.KeyCount, "4", txn.KeyElapsedMS, "2000", txn.KeyMaterials, "plank=4", txn.KeyRarePct, "0.00", txn.KeyDistance, "1.50"),
		tx(txn.KindAchievementUnlocked, txn.KeyAchievement, "chatterbox"),
	)
}

func TestFoldDerivesState(t *testing.T) {
	s, err := Fold(sampleLog())
	if err != nil {
		t.Fatalf("fold: %v", err)
	}

	if s.SagaRef != "prologue" || s.InstanceID != "inst-1" || s.AvatarID != "avatar-1" || s.LastSeq != 21 {
		t.Fatalf("unexpected identity %+v", s)
	}
	if elder := s.Characters["elder"]; elder.Health != 23 || elder.MaxHealth != 30 || elder.Defeated {
		t.Fatalf("unexpected elder %+v", elder)
	}
	cursor := s.Dialogue["elder"]
	if cursor.Node != "farewell" || !cursor.Completed || !reflect.DeepEqual(cursor.Visited, []string{"greet", "farewell"}) {
		t.Fatalf("unexpected dialogue cursor %+v", cursor)
	}
	if s.NodesVisited != 2 {
		t.Fatalf("expected 2 distinct nodes, got %d", s.NodesVisited)
	}
	if s.Inventory["potion"] != 3 || s.Inventory["stone"] != 6 {
		t.Fatalf("unexpected inventory %v", s.Inventory)
	}
	if _, ok := s.Inventory["plank"]; ok {
		t.Fatalf("planks should be consumed by building, got %v", s.Inventory)
	}
	if s.Currency != 5 || s.CurrencyEarned != 25 {
		t.Fatalf("expected currency 5 earned 25, got %d/%d", s.Currency, s.CurrencyEarned)
	}
	if s.MerchantSold["merchant"]["potion"] != 2 {
		t.Fatalf("unexpected merchant ledger %v", s.MerchantSold)
	}
	if !reflect.DeepEqual(s.Traits["elder"], []string{"trusted"}) {
		t.Fatalf("unexpected traits %v", s.Traits)
	}
	if q := s.Quests["clear_the_road"]; !q.Completed || q.Objectives["goblins"] != 2 || s.QuestsCompleted() != 1 {
		t.Fatalf("unexpected quest %+v", q)
	}
	if slot, ok := s.InParty("ranger"); !ok || slot != 0 {
		t.Fatalf("expected ranger in slot 0")
	}
	if s.Claims.BlocksMined != 10 || s.Claims.BlocksPlaced != 4 || s.Claims.Distance != 4.5 {
		t.Fatalf("unexpected claim totals %+v", s.Claims)
	}
	if s.Triggers["mountain_gate"] != 2 {
		t.Fatalf("unexpected triggers %v", s.Triggers)
	}
	if !reflect.DeepEqual(s.UnlockedAchievements(), []string{"chatterbox"}) {
		t.Fatalf("unexpected achievements %v", s.Achievements)
	}
}

func TestFoldDeterministic(t *testing.T) {
	log := sampleLog()
	first, err := Fold(log)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Fold(log)
		if err != nil {
			t.Fatalf("fold: %v", err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("fold %d differs", i)
		}
	}
}

func TestFoldCorruption(t *testing.T) {
	gap := sampleLog()[:4]
	gap[3].Seq = 5

	unknown := sampleLog()[:3]
	unknown[2].Kind = "Teleported"

	malformed := sampleLog()[:4]
	malformed[3].Payload = txn.Payload{txn.KeyCharacter: "elder", txn.KeyHealth: "lots"}

	unspawned := sequenced(tx(txn.KindCharacterDamaged, txn.KeyCharacter, "ghost", txn.KeyHealth, "1"))

	foreign := sampleLog()[:2]
	foreign[1].InstanceID = "inst-2"

	tests := map[string]struct {
		log []txn.Transaction
		seq string
	}{
		"sequence gap":      {gap, "5"},
		"unknown kind":      {unknown, "3"},
		"malformed payload": {malformed, "4"},
		"unspawned":         {unspawned, "1"},
		"foreign instance":  {foreign, "2"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Fold(tt.log)
			if !errors.Is(err, sagaerr.ErrReplayCorruption) {
				t.Fatalf("expected replay corruption, got %v", err)
			}
			if got := sagaerr.Metadata(err)["seq"]; got != tt.seq {
				t.Fatalf("expected corruption at seq %s, got %s", tt.seq, got)
			}
		})
	}
}

func TestFoldFromLeavesBaseUntouched(t *testing.T) {
	log := sampleLog()
	base, err := Fold(log[:5])
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if _, err := FoldFrom(base, log[5:]); err != nil {
		t.Fatalf("fold from: %v", err)
	}
	if base.LastSeq != 5 || len(base.Dialogue) != 0 || len(base.Inventory) != 0 {
		t.Fatalf("base was mutated: %+v", base)
	}
}

func TestCacheIncrementalMatchesFull(t *testing.T) {
	log := sampleLog()
	cache := NewCache()

	if _, err := cache.Fold("inst-1", log[:8]); err != nil {
		t.Fatalf("fold prefix: %v", err)
	}
	got, err := cache.Fold("inst-1", log)
	if err != nil {
		t.Fatalf("fold full: %v", err)
	}
	want, err := Fold(log)
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("incremental fold differs from full fold")
	}
	full, incremental := cache.Stats()
	if full != 1 || incremental != 1 {
		t.Fatalf("expected 1 full and 1 incremental fold, got %d/%d", full, incremental)
	}

	got.Inventory["potion"] = 99
	again, err := cache.Fold("inst-1", log)
	if err != nil {
		t.Fatalf("fold again: %v", err)
	}
	if again.Inventory["potion"] != 3 {
		t.Fatalf("cached state leaked to caller")
	}
}

func TestCacheRejectsDivergentPrefix(t *testing.T) {
	log := sampleLog()
	cache := NewCache()
	if _, err := cache.Fold("inst-1", log[:8]); err != nil {
		t.Fatalf("fold prefix: %v", err)
	}

	rewritten := sampleLog()
	if _, err := cache.Fold("inst-1", rewritten); err != nil {
		t.Fatalf("fold rewritten: %v", err)
	}
	full, incremental := cache.Stats()
	if full != 2 || incremental != 0 {
		t.Fatalf("expected divergent log to refold, got %d/%d", full, incremental)
	}
}

func TestNilCacheFolds(t *testing.T) {
	var cache *Cache
	s, err := cache.Fold("inst-1", sampleLog())
	if err != nil || s.LastSeq != 21 {
		t.Fatalf("nil cache fold: %v %d", err, s.LastSeq)
	}
}

func TestFoldBattle(t *testing.T) {
	setup := combat.Setup{
		ID:         "battle-1",
		Player:     combat.Combatant{Ref: "avatar-1", Health: 100, MaxHealth: 100, Stats: combat.Stats{Attack: 20, Defense: 4}},
		Companions: []combat.Combatant{{Ref: "ranger", Health: 60, MaxHealth: 60, Stats: combat.Stats{Attack: 10, Defense: 2}}},
		Enemy:      combat.Combatant{Ref: "goblin", Health: 50, MaxHealth: 50, Stats: combat.Stats{Attack: 6}},
	}
	script, err := combat.ResolveBattle(1, setup, []combat.Action{combat.ActionAttack, combat.ActionAttack})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	payloads, err := script.Payloads()
	if err != nil {
		t.Fatalf("payloads: %v", err)
	}

	txs := []txn.Transaction{tx(txn.KindCharacterSpawned, txn.KeyCharacter, "goblin", txn.KeyHealth, "50", txn.KeyMaxHealth, "50")}
	txs = append(txs, txn.New(txn.KindBattleStarted, "avatar-1", payloads[0]))
	for _, p := range payloads[1 : len(payloads)-1] {
		txs = append(txs, txn.New(txn.KindBattleTurnResolved, "avatar-1", p))
	}

	mid, err := Fold(sequenced(txs[:3]...))
	if err != nil {
		t.Fatalf("fold mid-battle: %v", err)
	}
	if mid.Battle == nil || mid.Battle.Turn != 1 || mid.Battle.Phase != combat.PhasePlayerTurn {
		t.Fatalf("unexpected mid-battle state %+v", mid.Battle)
	}

	txs = append(txs, txn.New(txn.KindBattleEnded, "avatar-1", payloads[len(payloads)-1]))
	s, err := Fold(sequenced(txs...))
	if err != nil {
		t.Fatalf("fold: %v", err)
	}
	if s.Battle != nil {
		t.Fatalf("expected battle to be closed")
	}
	if s.BattlesWon != 1 {
		t.Fatalf("expected one battle won, got %d", s.BattlesWon)
	}
	if goblin := s.Characters["goblin"]; !goblin.Defeated || goblin.Health != 0 {
		t.Fatalf("expected defeated goblin, got %+v", goblin)
	}
}

func TestFoldAvatar(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, _ := s.ResolveInstance(ctx, "avatar-1", "prologue", true)
	b, _ := s.ResolveInstance(ctx, "avatar-1", "epilogue", true)
	if _, err := s.Append(ctx, a.InstanceID, 0, tx(txn.KindTriggerActivated, txn.KeyTrigger, "gate")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := s.Append(ctx, b.InstanceID, 0,
		tx(txn.KindTriggerActivated, txn.KeyTrigger, "well"),
		tx(txn.KindTriggerActivated, txn.KeyTrigger, "tower"),
	); err != nil {
		t.Fatalf("append: %v", err)
	}

	states, err := FoldAvatar(ctx, s, NewCache(), "avatar-1")
	if err != nil {
		t.Fatalf("fold avatar: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
	total := 0
	for _, st := range states {
		total += len(st.Triggers)
	}
	if total != 3 {
		t.Fatalf("expected 3 triggers across instances, got %d", total)
	}
}
