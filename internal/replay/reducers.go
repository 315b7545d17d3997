package replay

import (
	"fmt"
	"sort"

	"ambientsaga/internal/claims"
	"ambientsaga/internal/combat"
	"ambientsaga/internal/txn"
)

type reducer func(s *State, tx txn.Transaction) error

var reducers = map[txn.Kind]reducer{
	txn.KindSagaStarted:            reduceSagaStarted,
	txn.KindTriggerActivated:       reduceTriggerActivated,
	txn.KindCharacterSpawned:       reduceCharacterSpawned,
	txn.KindCharacterDamaged:       reduceCharacterHealth,
	txn.KindCharacterHealed:        reduceCharacterHealth,
	txn.KindCharacterDefeated:      reduceCharacterDefeated,
	txn.KindDialogueNodeVisited:    reduceDialogueNodeVisited,
	txn.KindDialogueCompleted:      reduceDialogueCompleted,
	txn.KindItemGranted:            reduceItemGranted,
	txn.KindCurrencyTransferred:    reduceCurrencyTransferred,
	txn.KindTraitAssigned:          reduceTraitAssigned,
	txn.KindItemTraded:             reduceItemTraded,
	txn.KindQuestAccepted:          reduceQuestAccepted,
	txn.KindQuestObjectiveAdvanced: reduceQuestObjectiveAdvanced,
	txn.KindQuestCompleted:         reduceQuestCompleted,
	txn.KindPartyMemberJoined:      reducePartyMemberJoined,
	txn.KindPartyMemberLeft:        reducePartyMemberLeft,
	txn.KindBattleStarted:          reduceBattleStarted,
	txn.KindBattleTurnResolved:     reduceBattleTurnResolved,
	txn.KindBattleEnded:            reduceBattleEnded,
	txn.KindActivityClaimed:        reduceActivityClaimed,
	txn.KindAchievementUnlocked:    reduceAchievementUnlocked,
}

func reduceSagaStarted(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeySaga)
	if err != nil {
		return err
	}
	s.SagaRef = ref
	return nil
}

func reduceTriggerActivated(s *State, tx txn.Transaction) error {
	trigger, err := tx.Payload.String(txn.KeyTrigger)
	if err != nil {
		return err
	}
	if _, done := s.Triggers[trigger]; !done {
		s.Triggers[trigger] = tx.Seq
	}
	return nil
}

func reduceCharacterSpawned(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	health, err := tx.Payload.Int(txn.KeyHealth)
	if err != nil {
		return err
	}
	maxHealth, err := tx.Payload.Int(txn.KeyMaxHealth)
	if err != nil {
		return err
	}
	s.Characters[ref] = CharacterState{
		Ref:       ref,
		Health:    health,
		MaxHealth: maxHealth,
		Position:  tx.Payload.Optional(txn.KeyPosition),
		Spawned:   true,
	}
	return nil
}

func spawned(s *State, ref string) (CharacterState, error) {
	ch, ok := s.Characters[ref]
	if !ok || !ch.Spawned {
		return CharacterState{}, fmt.Errorf("character %s was never spawned", ref)
	}
	return ch, nil
}

// reduceCharacterHealth handles damage and healing; both record the
// resulting health.
func reduceCharacterHealth(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	health, err := tx.Payload.Int(txn.KeyHealth)
	if err != nil {
		return err
	}
	ch, err := spawned(s, ref)
	if err != nil {
		return err
	}
	ch.Health = health
	s.Characters[ref] = ch
	return nil
}

func reduceCharacterDefeated(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	ch, err := spawned(s, ref)
	if err != nil {
		return err
	}
	ch.Health = 0
	ch.Defeated = true
	s.Characters[ref] = ch
	return nil
}

func reduceDialogueNodeVisited(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	node, err := tx.Payload.String(txn.KeyNode)
	if err != nil {
		return err
	}
	cursor := s.Dialogue[ref]
	if !cursor.HasVisited(node) {
		cursor.Visited = append(cursor.Visited, node)
		s.NodesVisited++
	}
	cursor.Node = node
	cursor.Completed = false
	s.Dialogue[ref] = cursor
	return nil
}

func reduceDialogueCompleted(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	cursor, ok := s.Dialogue[ref]
	if !ok {
		return fmt.Errorf("dialogue with %s completed before it started", ref)
	}
	cursor.Completed = true
	s.Dialogue[ref] = cursor
	return nil
}

func reduceItemGranted(s *State, tx txn.Transaction) error {
	item, err := tx.Payload.String(txn.KeyItem)
	if err != nil {
		return err
	}
	qty, err := tx.Payload.Int(txn.KeyQuantity)
	if err != nil {
		return err
	}
	s.Inventory[item] += qty
	return nil
}

func reduceCurrencyTransferred(s *State, tx txn.Transaction) error {
	amount, err := tx.Payload.Int(txn.KeyAmount)
	if err != nil {
		return err
	}
	s.Currency += amount
	if amount > 0 {
		s.CurrencyEarned += amount
	}
	return nil
}

func reduceTraitAssigned(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	trait, err := tx.Payload.String(txn.KeyTrait)
	if err != nil {
		return err
	}
	for _, existing := range s.Traits[ref] {
		if existing == trait {
			return nil
		}
	}
	s.Traits[ref] = append(s.Traits[ref], trait)
	return nil
}

func reduceItemTraded(s *State, tx txn.Transaction) error {
	merchant, err := tx.Payload.String(txn.KeyMerchant)
	if err != nil {
		return err
	}
	item, err := tx.Payload.String(txn.KeyItem)
	if err != nil {
		return err
	}
	qty, err := tx.Payload.Int(txn.KeyQuantity)
	if err != nil {
		return err
	}
	direction, err := tx.Payload.String(txn.KeyDirection)
	if err != nil {
		return err
	}
	if s.MerchantSold[merchant] == nil {
		s.MerchantSold[merchant] = map[string]int{}
	}
	switch direction {
	case txn.DirectionBuy:
		s.Inventory[item] += qty
		s.MerchantSold[merchant][item] += qty
	case txn.DirectionSell:
		s.Inventory[item] -= qty
		s.MerchantSold[merchant][item] -= qty
	default:
		return &txn.FieldError{Key: txn.KeyDirection, Reason: fmt.Sprintf("unknown direction %q", direction)}
	}
	if s.Inventory[item] == 0 {
		delete(s.Inventory, item)
	}
	return nil
}

func reduceQuestAccepted(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyQuest)
	if err != nil {
		return err
	}
	s.Quests[ref] = QuestState{Ref: ref, Accepted: true, Objectives: map[string]int{}}
	return nil
}

func acceptedQuest(s *State, tx txn.Transaction) (QuestState, error) {
	ref, err := tx.Payload.String(txn.KeyQuest)
	if err != nil {
		return QuestState{}, err
	}
	q, ok := s.Quests[ref]
	if !ok || !q.Accepted {
		return QuestState{}, fmt.Errorf("quest %s was never accepted", ref)
	}
	return q, nil
}

func reduceQuestObjectiveAdvanced(s *State, tx txn.Transaction) error {
	q, err := acceptedQuest(s, tx)
	if err != nil {
		return err
	}
	objective, err := tx.Payload.String(txn.KeyObjective)
	if err != nil {
		return err
	}
	progress, err := tx.Payload.Int(txn.KeyProgress)
	if err != nil {
		return err
	}
	q.Objectives[objective] = progress
	s.Quests[q.Ref] = q
	return nil
}

func reduceQuestCompleted(s *State, tx txn.Transaction) error {
	q, err := acceptedQuest(s, tx)
	if err != nil {
		return err
	}
	q.Completed = true
	s.Quests[q.Ref] = q
	return nil
}

func reducePartyMemberJoined(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	slot, err := tx.Payload.Int(txn.KeySlot)
	if err != nil {
		return err
	}
	reputation, err := tx.Payload.Int(txn.KeyReputation)
	if err != nil {
		return err
	}
	for _, m := range s.Party {
		if m.Slot == slot {
			return fmt.Errorf("party slot %d already held by %s", slot, m.Character)
		}
	}
	s.Party = append(s.Party, PartyMember{Character: ref, Slot: slot, Reputation: reputation})
	sort.Slice(s.Party, func(i, j int) bool { return s.Party[i].Slot < s.Party[j].Slot })
	return nil
}

func reducePartyMemberLeft(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyCharacter)
	if err != nil {
		return err
	}
	for i, m := range s.Party {
		if m.Character == ref {
			s.Party = append(s.Party[:i], s.Party[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%s is not in the party", ref)
}

func reduceBattleStarted(s *State, tx txn.Transaction) error {
	if s.Battle != nil {
		return fmt.Errorf("battle %s is still in progress", s.Battle.ID)
	}
	b, err := combat.DecodeStarted(tx.Payload)
	if err != nil {
		return err
	}
	b.MarkStarted()
	s.Battle = &b
	return nil
}

func activeBattle(s *State, tx txn.Transaction) (*combat.Battle, error) {
	id, err := tx.Payload.String(txn.KeyBattle)
	if err != nil {
		return nil, err
	}
	if s.Battle == nil || s.Battle.ID != id {
		return nil, fmt.Errorf("battle %s is not in progress", id)
	}
	return s.Battle, nil
}

func reduceBattleTurnResolved(s *State, tx txn.Transaction) error {
	b, err := activeBattle(s, tx)
	if err != nil {
		return err
	}
	rec, err := combat.DecodeTurn(tx.Payload)
	if err != nil {
		return err
	}
	if err := b.Apply(rec); err != nil {
		return err
	}
	if rec.Target == "" {
		return nil
	}
	if ch, ok := s.Characters[rec.Target]; ok && ch.Spawned {
		ch.Health = rec.TargetHealth
		s.Characters[rec.Target] = ch
	}
	return nil
}

func reduceBattleEnded(s *State, tx txn.Transaction) error {
	b, err := activeBattle(s, tx)
	if err != nil {
		return err
	}
	victor, err := tx.Payload.String(txn.KeyVictor)
	if err != nil {
		return err
	}
	switch combat.Victor(victor) {
	case combat.VictorPlayer:
		s.BattlesWon++
		if ch, ok := s.Characters[b.Enemy.Ref]; ok {
			ch.Health = 0
			ch.Defeated = true
			s.Characters[b.Enemy.Ref] = ch
		}
	case combat.VictorEnemy:
		s.BattlesLost++
	case combat.VictorFled:
		s.BattlesFled++
	default:
		return &txn.FieldError{Key: txn.KeyVictor, Reason: fmt.Sprintf("unknown victor %q", victor)}
	}
	s.Battle = nil
	return nil
}

func reduceActivityClaimed(s *State, tx txn.Transaction) error {
	kind, err := tx.Payload.String(txn.KeyClaimKind)
	if err != nil {
		return err
	}
	count, err := tx.Payload.Int(txn.KeyCount)
	if err != nil {
		return err
	}
	distance, err := tx.Payload.Float(txn.KeyDistance)
	if err != nil {
		return err
	}
	distribution, err := tx.Payload.Counts(txn.KeyDistrib)
	if err != nil {
		return err
	}
	materials, err := tx.Payload.Counts(txn.KeyMaterials)
	if err != nil {
		return err
	}

	switch claims.Kind(kind) {
	case claims.KindMining:
		s.Claims.BlocksMined += count
		for item, n := range distribution {
			s.Inventory[item] += n
		}
	case claims.KindBuilding:
		s.Claims.BlocksPlaced += count
		for item, n := range materials {
			s.Inventory[item] -= n
			if s.Inventory[item] <= 0 {
				delete(s.Inventory, item)
			}
		}
	case claims.KindToolWear:
		s.Claims.ToolWear += count
	case claims.KindMovement:
	default:
		return &txn.FieldError{Key: txn.KeyClaimKind, Reason: fmt.Sprintf("unknown claim kind %q", kind)}
	}
	s.Claims.Distance += distance
	s.Claims.Claims++
	return nil
}

func reduceAchievementUnlocked(s *State, tx txn.Transaction) error {
	ref, err := tx.Payload.String(txn.KeyAchievement)
	if err != nil {
		return err
	}
	if _, ok := s.Achievements[ref]; !ok {
		s.Achievements[ref] = tx.Seq
	}
	return nil
}
