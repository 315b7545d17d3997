package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/claims"
	"ambientsaga/internal/command"
	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

const defaultTransactionLimit = 100

type SagaInput struct {
	AvatarID string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga     string `json:"saga" jsonschema:"saga name from the catalog"`
}

type ListTransactionsInput struct {
	AvatarID string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga     string `json:"saga" jsonschema:"saga name from the catalog"`
	AfterSeq uint64 `json:"after_seq,omitempty" jsonschema:"only return transactions after this sequence number"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of transactions, default 100"`
}

type ListAchievementsInput struct {
	AvatarID string `json:"avatar_id" jsonschema:"avatar identifier"`
}

type VisitDialogueNodeInput struct {
	AvatarID  string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga      string `json:"saga" jsonschema:"saga name from the catalog"`
	Character string `json:"character" jsonschema:"character whose dialogue tree is visited"`
	Node      string `json:"node" jsonschema:"dialogue node name"`
}

type SubmitClaimInput struct {
	AvatarID     string         `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga         string         `json:"saga" jsonschema:"saga name from the catalog"`
	Kind         string         `json:"kind" jsonschema:"mining, building, tool_wear, or movement"`
	Count        int            `json:"count" jsonschema:"number of units in the window"`
	ElapsedMS    int64          `json:"elapsed_ms" jsonschema:"length of the reporting window in milliseconds"`
	Distribution map[string]int `json:"distribution,omitempty" jsonschema:"mined blocks by block type"`
	RareCount    int            `json:"rare_count,omitempty" jsonschema:"rare blocks among count"`
	Materials    map[string]int `json:"materials,omitempty" jsonschema:"inventory consumed by a building claim"`
	Start        claims.Vec3    `json:"start" jsonschema:"position at the start of the window"`
	End          claims.Vec3    `json:"end" jsonschema:"position at the end of the window"`
}

type AddPartyMemberInput struct {
	AvatarID   string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga       string `json:"saga" jsonschema:"saga name from the catalog"`
	Character  string `json:"character" jsonschema:"character joining the party"`
	Reputation int    `json:"reputation" jsonschema:"avatar reputation with the character; its tier caps the party size"`
}

type StartBattleInput struct {
	AvatarID string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga     string `json:"saga" jsonschema:"saga name from the catalog"`
	Enemy    string `json:"enemy" jsonschema:"catalog character with a combat profile"`
	Seed     uint64 `json:"seed,omitempty" jsonschema:"seed for the battle's random rolls"`
}

type BattleActionInput struct {
	AvatarID string `json:"avatar_id" jsonschema:"avatar identifier"`
	Saga     string `json:"saga" jsonschema:"saga name from the catalog"`
	Action   string `json:"action" jsonschema:"Attack, Defend, Heal, or Flee"`
	Target   string `json:"target,omitempty" jsonschema:"combatant the action is aimed at; empty picks the default"`
	Power    int    `json:"power,omitempty" jsonschema:"overrides the computed attack damage when positive"`
}

type GetCatalogInput struct{}

type CommandOutput struct {
	Successful           bool     `json:"successful"`
	SagaInstanceID       string   `json:"saga_instance_id,omitempty"`
	TransactionIDs       []string `json:"transaction_ids,omitempty"`
	NewSequenceNumber    uint64   `json:"new_sequence_number"`
	UnlockedAchievements []string `json:"unlocked_achievements,omitempty"`
	Slot                 *int     `json:"slot,omitempty"`
	Message              string   `json:"message,omitempty"`
}

type CharacterOutput struct {
	Ref       string `json:"ref"`
	Health    int    `json:"health"`
	MaxHealth int    `json:"max_health"`
	Position  string `json:"position,omitempty"`
	Defeated  bool   `json:"defeated"`
}

type DialogueOutput struct {
	Character string   `json:"character"`
	Node      string   `json:"node"`
	Visited   []string `json:"visited"`
	Completed bool     `json:"completed"`
}

type QuestOutput struct {
	Ref        string         `json:"ref"`
	Completed  bool           `json:"completed"`
	Objectives map[string]int `json:"objectives"`
}

type PartyMemberOutput struct {
	Character  string `json:"character"`
	Slot       int    `json:"slot"`
	Reputation int    `json:"reputation"`
}

type BattleOutput struct {
	ID     string `json:"id"`
	Phase  string `json:"phase"`
	Turn   int    `json:"turn"`
	Enemy  string `json:"enemy"`
	Health int    `json:"enemy_health"`
}

type SagaStateOutput struct {
	InstanceID   string              `json:"instance_id,omitempty"`
	Saga         string              `json:"saga"`
	LastSeq      uint64              `json:"last_seq"`
	Currency     int                 `json:"currency"`
	Inventory    map[string]int      `json:"inventory"`
	Traits       map[string][]string `json:"traits"`
	Triggers     []string            `json:"triggers"`
	Characters   []CharacterOutput   `json:"characters"`
	Dialogue     []DialogueOutput    `json:"dialogue"`
	Quests       []QuestOutput       `json:"quests"`
	Party        []PartyMemberOutput `json:"party"`
	Battle       *BattleOutput       `json:"battle,omitempty"`
	BattlesWon   int                 `json:"battles_won"`
	BattlesLost  int                 `json:"battles_lost"`
	Achievements []string            `json:"achievements"`
}

type TransactionOutput struct {
	ID        string            `json:"id"`
	Seq       uint64            `json:"seq"`
	Kind      string            `json:"kind"`
	Timestamp string            `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

type ListTransactionsOutput struct {
	InstanceID   string              `json:"instance_id,omitempty"`
	Transactions []TransactionOutput `json:"transactions"`
}

type AchievementOutput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Criterion   string `json:"criterion"`
	Threshold   int    `json:"threshold"`
	Progress    int    `json:"progress"`
	Unlocked    bool   `json:"unlocked"`
}

type ListAchievementsOutput struct {
	Achievements []AchievementOutput `json:"achievements"`
}

type CatalogOutput struct {
	Sagas        []string `json:"sagas"`
	Items        []string `json:"items"`
	Characters   []string `json:"characters"`
	Merchants    []string `json:"merchants"`
	Quests       []string `json:"quests"`
	Triggers     []string `json:"triggers"`
	Achievements []string `json:"achievements"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_saga_state",
		Description: "Replay a saga instance and return its current state",
	}, s.handleGetSagaState)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_transactions",
		Description: "List the transactions recorded for a saga instance",
	}, s.handleListTransactions)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_achievements",
		Description: "List catalog achievements with an avatar's progress",
	}, s.handleListAchievements)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "visit_dialogue_node",
		Description: "Visit a dialogue node, granting its reward once",
	}, s.handleVisitDialogueNode)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "submit_claim",
		Description: "Submit a client activity claim for anti-cheat validation",
	}, s.handleSubmitClaim)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "add_party_member",
		Description: "Add a character to the party in the lowest free slot",
	}, s.handleAddPartyMember)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "start_battle",
		Description: "Start a battle against a catalog enemy with the current party",
	}, s.handleStartBattle)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "battle_action",
		Description: "Take the player's turn in the active battle",
	}, s.handleBattleAction)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_catalog",
		Description: "Return the names defined by the loaded catalog",
	}, s.handleGetCatalog)
}

func requireSaga(avatarID, saga string) error {
	if avatarID == "" {
		return fmt.Errorf("avatar_id is required")
	}
	if saga == "" {
		return fmt.Errorf("saga is required")
	}
	return nil
}

func (s *Server) handleGetSagaState(ctx context.Context, req *sdk.CallToolRequest, input SagaInput) (*sdk.CallToolResult, SagaStateOutput, error) {
	if err := requireSaga(input.AvatarID, input.Saga); err != nil {
		return nil, SagaStateOutput{}, err
	}
	state, err := s.states.State(ctx, input.AvatarID, input.Saga)
	if err != nil {
		return nil, SagaStateOutput{}, err
	}
	return nil, stateOutput(input.Saga, state), nil
}

func (s *Server) handleListTransactions(ctx context.Context, req *sdk.CallToolRequest, input ListTransactionsInput) (*sdk.CallToolResult, ListTransactionsOutput, error) {
	if err := requireSaga(input.AvatarID, input.Saga); err != nil {
		return nil, ListTransactionsOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultTransactionLimit
	}

	inst, err := s.log.ResolveInstance(ctx, input.AvatarID, input.Saga, false)
	if errors.Is(err, sagaerr.ErrNotFound) {
		return nil, ListTransactionsOutput{Transactions: []TransactionOutput{}}, nil
	}
	if err != nil {
		return nil, ListTransactionsOutput{}, err
	}
	txs, err := s.log.ReadAll(ctx, inst.InstanceID)
	if err != nil {
		return nil, ListTransactionsOutput{}, err
	}

	out := ListTransactionsOutput{InstanceID: inst.InstanceID, Transactions: make([]TransactionOutput, 0, limit)}
	for _, tx := range txs {
		if tx.Seq <= input.AfterSeq {
			continue
		}
		if len(out.Transactions) == limit {
			break
		}
		out.Transactions = append(out.Transactions, transactionOutput(tx))
	}
	return nil, out, nil
}

func (s *Server) handleListAchievements(ctx context.Context, req *sdk.CallToolRequest, input ListAchievementsInput) (*sdk.CallToolResult, ListAchievementsOutput, error) {
	if input.AvatarID == "" {
		return nil, ListAchievementsOutput{}, fmt.Errorf("avatar_id is required")
	}
	w, err := s.world.Current()
	if err != nil {
		return nil, ListAchievementsOutput{}, err
	}
	states, err := replay.FoldAvatar(ctx, s.log, s.cache, input.AvatarID)
	if err != nil {
		return nil, ListAchievementsOutput{}, err
	}

	unlocked := achievement.Recorded(states)
	for ref := range achievement.Evaluate(states, w.Catalog.Achievements) {
		unlocked[ref] = struct{}{}
	}
	progress := achievement.Progress(states)

	out := ListAchievementsOutput{Achievements: make([]AchievementOutput, 0, len(w.Catalog.Achievements))}
	for _, a := range w.Catalog.Achievements {
		out.Achievements = append(out.Achievements, AchievementOutput{
			Name:        a.Name,
			Description: a.Description,
			Criterion:   a.Criterion,
			Threshold:   a.Threshold,
			Progress:    progress[a.Criterion],
			Unlocked:    unlocked.Has(a.Name),
		})
	}
	return nil, out, nil
}

func (s *Server) handleVisitDialogueNode(ctx context.Context, req *sdk.CallToolRequest, input VisitDialogueNodeInput) (*sdk.CallToolResult, CommandOutput, error) {
	cmd := command.VisitDialogueNode{
		Target:    command.Target{AvatarID: input.AvatarID, SagaRef: input.Saga},
		Character: input.Character,
		Node:      input.Node,
	}
	return s.dispatch(ctx, cmd)
}

func (s *Server) handleSubmitClaim(ctx context.Context, req *sdk.CallToolRequest, input SubmitClaimInput) (*sdk.CallToolResult, CommandOutput, error) {
	cmd := command.SubmitClaim{
		Target: command.Target{AvatarID: input.AvatarID, SagaRef: input.Saga},
		Claim: claims.Claim{
			Kind:         claims.Kind(input.Kind),
			Count:        input.Count,
			Elapsed:      time.Duration(input.ElapsedMS) * time.Millisecond,
			Distribution: input.Distribution,
			RareCount:    input.RareCount,
			Materials:    input.Materials,
			Start:        input.Start,
			End:          input.End,
		},
	}
	return s.dispatch(ctx, cmd)
}

func (s *Server) handleAddPartyMember(ctx context.Context, req *sdk.CallToolRequest, input AddPartyMemberInput) (*sdk.CallToolResult, CommandOutput, error) {
	cmd := command.AddPartyMember{
		Target:     command.Target{AvatarID: input.AvatarID, SagaRef: input.Saga},
		Character:  input.Character,
		Reputation: input.Reputation,
	}
	return s.dispatch(ctx, cmd)
}

func (s *Server) handleStartBattle(ctx context.Context, req *sdk.CallToolRequest, input StartBattleInput) (*sdk.CallToolResult, CommandOutput, error) {
	cmd := command.StartBattle{
		Target: command.Target{AvatarID: input.AvatarID, SagaRef: input.Saga},
		Enemy:  input.Enemy,
		Seed:   input.Seed,
	}
	return s.dispatch(ctx, cmd)
}

func (s *Server) handleBattleAction(ctx context.Context, req *sdk.CallToolRequest, input BattleActionInput) (*sdk.CallToolResult, CommandOutput, error) {
	cmd := command.BattleAction{
		Target:    command.Target{AvatarID: input.AvatarID, SagaRef: input.Saga},
		Action:    input.Action,
		TargetRef: input.Target,
		Power:     input.Power,
	}
	return s.dispatch(ctx, cmd)
}

// dispatch runs cmd through the pipeline. A command that is refused
// without an error (no free party slot) comes back unsuccessful with its
// reason in Message.
func (s *Server) dispatch(ctx context.Context, cmd command.Command) (*sdk.CallToolResult, CommandOutput, error) {
	res, err := s.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		return nil, CommandOutput{}, err
	}
	out := CommandOutput{
		Successful:           res.Successful,
		SagaInstanceID:       res.SagaInstanceID,
		TransactionIDs:       res.TransactionIDs,
		NewSequenceNumber:    res.NewSequenceNumber,
		UnlockedAchievements: res.UnlockedAchievements,
		Slot:                 res.Slot,
	}
	if !res.Successful {
		out.Message = res.ErrorMessage
	}
	return nil, out, nil
}

func (s *Server) handleGetCatalog(ctx context.Context, req *sdk.CallToolRequest, input GetCatalogInput) (*sdk.CallToolResult, CatalogOutput, error) {
	w, err := s.world.Current()
	if err != nil {
		return nil, CatalogOutput{}, err
	}
	return nil, catalogOutput(w.Catalog), nil
}

func catalogOutput(c *config.Catalog) CatalogOutput {
	out := CatalogOutput{
		Sagas:        make([]string, 0, len(c.Sagas)),
		Items:        make([]string, 0, len(c.Items)),
		Characters:   make([]string, 0, len(c.Characters)),
		Merchants:    []string{},
		Quests:       make([]string, 0, len(c.Quests)),
		Triggers:     make([]string, 0, len(c.Triggers)),
		Achievements: make([]string, 0, len(c.Achievements)),
	}
	for _, saga := range c.Sagas {
		out.Sagas = append(out.Sagas, saga.Name)
	}
	for _, item := range c.Items {
		out.Items = append(out.Items, item.Name)
	}
	for _, ch := range c.Characters {
		out.Characters = append(out.Characters, ch.Name)
		if ch.Merchant {
			out.Merchants = append(out.Merchants, ch.Name)
		}
	}
	for _, q := range c.Quests {
		out.Quests = append(out.Quests, q.Name)
	}
	for _, t := range c.Triggers {
		out.Triggers = append(out.Triggers, t.Name)
	}
	for _, a := range c.Achievements {
		out.Achievements = append(out.Achievements, a.Name)
	}
	return out
}

func stateOutput(saga string, st replay.State) SagaStateOutput {
	out := SagaStateOutput{
		InstanceID:   st.InstanceID,
		Saga:         saga,
		LastSeq:      st.LastSeq,
		Currency:     st.Currency,
		Inventory:    map[string]int{},
		Traits:       map[string][]string{},
		Triggers:     sortedKeys(st.Triggers),
		Characters:   []CharacterOutput{},
		Dialogue:     []DialogueOutput{},
		Quests:       []QuestOutput{},
		Party:        []PartyMemberOutput{},
		BattlesWon:   st.BattlesWon,
		BattlesLost:  st.BattlesLost,
		Achievements: st.UnlockedAchievements(),
	}
	if st.SagaRef != "" {
		out.Saga = st.SagaRef
	}
	for item, n := range st.Inventory {
		out.Inventory[item] = n
	}
	for target, traits := range st.Traits {
		out.Traits[target] = append([]string{}, traits...)
	}
	for _, ref := range sortedKeys(st.Characters) {
		c := st.Characters[ref]
		out.Characters = append(out.Characters, CharacterOutput{
			Ref:       c.Ref,
			Health:    c.Health,
			MaxHealth: c.MaxHealth,
			Position:  c.Position,
			Defeated:  c.Defeated,
		})
	}
	for _, ref := range sortedKeys(st.Dialogue) {
		d := st.Dialogue[ref]
		out.Dialogue = append(out.Dialogue, DialogueOutput{
			Character: ref,
			Node:      d.Node,
			Visited:   append([]string{}, d.Visited...),
			Completed: d.Completed,
		})
	}
	for _, ref := range sortedKeys(st.Quests) {
		q := st.Quests[ref]
		objectives := make(map[string]int, len(q.Objectives))
		for k, v := range q.Objectives {
			objectives[k] = v
		}
		out.Quests = append(out.Quests, QuestOutput{Ref: ref, Completed: q.Completed, Objectives: objectives})
	}
	for _, m := range st.Party {
		out.Party = append(out.Party, PartyMemberOutput{Character: m.Character, Slot: m.Slot, Reputation: m.Reputation})
	}
	if b := st.Battle; b != nil {
		out.Battle = &BattleOutput{
			ID:     b.ID,
			Phase:  string(b.Phase),
			Turn:   b.Turn,
			Enemy:  b.Enemy.Ref,
			Health: b.Enemy.Health,
		}
	}
	return out
}

func transactionOutput(tx txn.Transaction) TransactionOutput {
	payload := make(map[string]string, len(tx.Payload))
	for k, v := range tx.Payload {
		payload[k] = v
	}
	return TransactionOutput{
		ID:        tx.ID,
		Seq:       tx.Seq,
		Kind:      string(tx.Kind),
		Timestamp: tx.Timestamp.Format(time.RFC3339Nano),
		Payload:   payload,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
