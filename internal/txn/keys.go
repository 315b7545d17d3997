package txn

// Payload keys shared by producers and reducers.
const (
	KeySaga        = "saga"
	KeyTrigger     = "trigger"
	KeyCharacter   = "character"
	KeyHealth      = "health"
	KeyMaxHealth   = "max_health"
	KeyPosition    = "position"
	KeyAmount      = "amount"
	KeyNode        = "node"
	KeyItem        = "item"
	KeyQuantity    = "quantity"
	KeyReason      = "reason"
	KeyTrait       = "trait"
	KeyMerchant    = "merchant"
	KeyPrice       = "price"
	KeyDirection   = "direction"
	KeyQuest       = "quest"
	KeyObjective   = "objective"
	KeyProgress    = "progress"
	KeySlot        = "slot"
	KeyReputation  = "reputation"
	KeyRewardKey   = "reward_key"
	KeyBattle      = "battle"
	KeySeed        = "seed"
	KeyEnemy       = "enemy"
	KeyCombatants  = "combatants"
	KeyTurn        = "turn"
	KeyPhase       = "phase"
	KeyNextPhase   = "next_phase"
	KeyCursor      = "cursor"
	KeyActor       = "actor"
	KeyAction      = "action"
	KeyTarget      = "target"
	KeyDamage      = "damage"
	KeyHealing     = "healing"
	KeyTargetHP    = "target_health"
	KeySnapshot    = "snapshot"
	KeyTargetSnap  = "target_snapshot"
	KeyVictor      = "victor"
	KeyClaimKind   = "kind"
	KeyCount       = "count"
	KeyElapsedMS   = "elapsed_ms"
	KeyDistrib     = "distribution"
	KeyMaterials   = "materials"
	KeyRarePct     = "rare_pct"
	KeyDistance    = "distance"
	KeyAchievement = "achievement"
)

// Trade directions.
const (
	DirectionBuy  = "buy"
	DirectionSell = "sell"
)
