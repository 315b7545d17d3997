package txn

// Kind names the fact a Transaction records.
type Kind string

const (
	KindSagaStarted            Kind = "SagaStarted"
	KindTriggerActivated       Kind = "TriggerActivated"
	KindCharacterSpawned       Kind = "CharacterSpawned"
	KindCharacterDamaged       Kind = "CharacterDamaged"
	KindCharacterHealed        Kind = "CharacterHealed"
	KindCharacterDefeated      Kind = "CharacterDefeated"
	KindDialogueNodeVisited    Kind = "DialogueNodeVisited"
	KindDialogueCompleted      Kind = "DialogueCompleted"
	KindItemGranted            Kind = "ItemGranted"
	KindCurrencyTransferred    Kind = "CurrencyTransferred"
	KindTraitAssigned          Kind = "TraitAssigned"
	KindItemTraded             Kind = "ItemTraded"
	KindQuestAccepted          Kind = "QuestAccepted"
	KindQuestObjectiveAdvanced Kind = "QuestObjectiveAdvanced"
	KindQuestCompleted         Kind = "QuestCompleted"
	KindPartyMemberJoined      Kind = "PartyMemberJoined"
	KindPartyMemberLeft        Kind = "PartyMemberLeft"
	KindBattleStarted          Kind = "BattleStarted"
	KindBattleTurnResolved     Kind = "BattleTurnResolved"
	KindBattleEnded            Kind = "BattleEnded"
	KindActivityClaimed        Kind = "ActivityClaimed"
	KindAchievementUnlocked    Kind = "AchievementUnlocked"
)

var knownKinds = map[Kind]struct{}{
	KindSagaStarted:            {},
	KindTriggerActivated:       {},
	KindCharacterSpawned:       {},
	KindCharacterDamaged:       {},
	KindCharacterHealed:        {},
	KindCharacterDefeated:      {},
	KindDialogueNodeVisited:    {},
	KindDialogueCompleted:      {},
	KindItemGranted:            {},
	KindCurrencyTransferred:    {},
	KindTraitAssigned:          {},
	KindItemTraded:             {},
	KindQuestAccepted:          {},
	KindQuestObjectiveAdvanced: {},
	KindQuestCompleted:         {},
	KindPartyMemberJoined:      {},
	KindPartyMemberLeft:        {},
	KindBattleStarted:          {},
	KindBattleTurnResolved:     {},
	KindBattleEnded:            {},
	KindActivityClaimed:        {},
	KindAchievementUnlocked:    {},
}

// Known reports whether k is part of the taxonomy.
func (k Kind) Known() bool {
	_, ok := knownKinds[k]
	return ok
}

// GrantsReward reports whether transactions of this kind may carry a
// reward key and therefore take part in the reward gate.
func (k Kind) GrantsReward() bool {
	switch k {
	case KindItemGranted, KindCurrencyTransferred, KindTraitAssigned:
		return true
	default:
		return false
	}
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindSagaStarted,
		KindTriggerActivated,
		KindCharacterSpawned,
		KindCharacterDamaged,
		KindCharacterHealed,
		KindCharacterDefeated,
		KindDialogueNodeVisited,
		KindDialogueCompleted,
		KindItemGranted,
		KindCurrencyTransferred,
		KindTraitAssigned,
		KindItemTraded,
		KindQuestAccepted,
		KindQuestObjectiveAdvanced,
		KindQuestCompleted,
		KindPartyMemberJoined,
		KindPartyMemberLeft,
		KindBattleStarted,
		KindBattleTurnResolved,
		KindBattleEnded,
		KindActivityClaimed,
		KindAchievementUnlocked,
	}
}
