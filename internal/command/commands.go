package command

import (
	"strings"

	"ambientsaga/internal/claims"
	"ambientsaga/internal/combat"
	"ambientsaga/internal/sagaerr"
)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return sagaerr.Newf(sagaerr.CodeValidation, "%s is required", field)
	}
	return nil
}

func positive(field string, n int) error {
	if n <= 0 {
		return sagaerr.Newf(sagaerr.CodeValidation, "%s must be positive, got %d", field, n)
	}
	return nil
}

type ActivateTrigger struct {
	Target
	Trigger string `json:"trigger"`
}

func (ActivateTrigger) Name() string      { return "activate_trigger" }
func (c ActivateTrigger) Validate() error { return required("trigger", c.Trigger) }

type SpawnCharacter struct {
	Target
	Character string `json:"character"`
}

func (SpawnCharacter) Name() string      { return "spawn_character" }
func (c SpawnCharacter) Validate() error { return required("character", c.Character) }

type DamageCharacter struct {
	Target
	Character string `json:"character"`
	Amount    int    `json:"amount"`
}

func (DamageCharacter) Name() string { return "damage_character" }
func (c DamageCharacter) Validate() error {
	if err := required("character", c.Character); err != nil {
		return err
	}
	return positive("amount", c.Amount)
}

type HealCharacter struct {
	Target
	Character string `json:"character"`
	Amount    int    `json:"amount"`
}

func (HealCharacter) Name() string { return "heal_character" }
func (c HealCharacter) Validate() error {
	if err := required("character", c.Character); err != nil {
		return err
	}
	return positive("amount", c.Amount)
}

type VisitDialogueNode struct {
	Target
	Character string `json:"character"`
	Node      string `json:"node"`
}

func (VisitDialogueNode) Name() string { return "visit_dialogue_node" }
func (c VisitDialogueNode) Validate() error {
	if err := required("character", c.Character); err != nil {
		return err
	}
	return required("node", c.Node)
}

type TradeItem struct {
	Target
	Merchant string `json:"merchant"`
	Item     string `json:"item"`
	Quantity int    `json:"quantity"`
	Buy      bool   `json:"buy"`
}

func (TradeItem) Name() string { return "trade_item" }
func (c TradeItem) Validate() error {
	if err := required("merchant", c.Merchant); err != nil {
		return err
	}
	if err := required("item", c.Item); err != nil {
		return err
	}
	return positive("quantity", c.Quantity)
}

type AcceptQuest struct {
	Target
	Quest string `json:"quest"`
}

func (AcceptQuest) Name() string      { return "accept_quest" }
func (c AcceptQuest) Validate() error { return required("quest", c.Quest) }

type AdvanceObjective struct {
	Target
	Quest     string `json:"quest"`
	Objective string `json:"objective"`
	Amount    int    `json:"amount"`
}

func (AdvanceObjective) Name() string { return "advance_objective" }
func (c AdvanceObjective) Validate() error {
	if err := required("quest", c.Quest); err != nil {
		return err
	}
	if err := required("objective", c.Objective); err != nil {
		return err
	}
	return positive("amount", c.Amount)
}

type AddPartyMember struct {
	Target
	Character  string `json:"character"`
	Reputation int    `json:"reputation"`
}

func (AddPartyMember) Name() string      { return "add_party_member" }
func (c AddPartyMember) Validate() error { return required("character", c.Character) }

type RemovePartyMember struct {
	Target
	Character string `json:"character"`
}

func (RemovePartyMember) Name() string      { return "remove_party_member" }
func (c RemovePartyMember) Validate() error { return required("character", c.Character) }

type StartBattle struct {
	Target
	Enemy string `json:"enemy"`
	Seed  uint64 `json:"seed"`
}

func (StartBattle) Name() string      { return "start_battle" }
func (c StartBattle) Validate() error { return required("enemy", c.Enemy) }

type BattleAction struct {
	Target
	Action string `json:"action"`
	// TargetRef is the combatant the action is aimed at; empty picks the
	// default (the enemy for attacks, the player for heals).
	TargetRef string `json:"target,omitempty"`
	// Power overrides the computed attack damage when positive.
	Power int `json:"power,omitempty"`
}

func (BattleAction) Name() string { return "battle_action" }
func (c BattleAction) Validate() error {
	if c.Power < 0 {
		return sagaerr.Newf(sagaerr.CodeValidation, "power must not be negative, got %d", c.Power)
	}
	_, err := combat.ParseAction(c.Action)
	return err
}

type SubmitClaim struct {
	Target
	Claim claims.Claim `json:"claim"`
}

func (SubmitClaim) Name() string { return "submit_claim" }
func (c SubmitClaim) Validate() error {
	_, err := claims.ParseKind(string(c.Claim.Kind))
	return err
}
