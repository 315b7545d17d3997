package mcp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/claims"
	"ambientsaga/internal/command"
	"ambientsaga/internal/config"
	"ambientsaga/internal/pipeline"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store/memory"
	"ambientsaga/internal/world"
)

const testCatalog = `
version: 1
sagas:
  - name: prologue
avatar:
  health: 100
  attack: 20
  defense: 4
  speed: 5
items:
  - name: potion
    price: 10
characters:
  - name: elder
    health: 30
    dialogue:
      - name: greet
        next: [farewell]
        reward:
          currency: 15
      - name: farewell
        terminal: true
  - name: merchant
    health: 40
    merchant: true
    stock:
      potion: 2
  - name: goblin
    health: 50
    combat:
      health: 50
      attack: 6
      speed: 3
  - name: ranger
    health: 60
    combat:
      health: 60
      attack: 10
      defense: 2
      speed: 6
achievements:
  - name: chatterbox
    criterion: dialogue_nodes_visited
    threshold: 2
  - name: miner
    criterion: blocks_mined
    threshold: 100
`

func newServer(t *testing.T) *Server {
	t.Helper()
	catalog, err := config.ParseCatalog([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse catalog: %v", err)
	}
	host := world.NewHost()
	host.Load(catalog)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	cache := replay.NewCache()
	svc := command.NewService(st, host, command.Options{
		Cache:  cache,
		Limits: claims.Limits{MiningRate: 10, BuildingRate: 10, ToolWearRate: 10, MaxSpeed: 10},
		Logger: logger,
	})
	d := pipeline.New(pipeline.Config{
		Store:   st,
		World:   host,
		Service: svc,
		Cache:   cache,
		Tracker: achievement.NewTracker(),
		Logger:  logger,
		Retries: 3,
	})
	return NewServer(Deps{
		Dispatcher: d,
		States:     svc,
		Log:        st,
		Cache:      cache,
		World:      host,
		Version:    "test",
	})
}

func TestVisitDialogueNodeAndState(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	_, out, err := server.handleVisitDialogueNode(ctx, nil, VisitDialogueNodeInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Node: "greet",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Successful || out.NewSequenceNumber == 0 {
		t.Fatalf("unexpected command output: %+v", out)
	}

	_, out, err = server.handleVisitDialogueNode(ctx, nil, VisitDialogueNodeInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Node: "farewell",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.UnlockedAchievements) != 1 || out.UnlockedAchievements[0] != "chatterbox" {
		t.Fatalf("expected chatterbox unlock, got %+v", out)
	}

	_, state, err := server.handleGetSagaState(ctx, nil, SagaInput{AvatarID: "avatar-1", Saga: "prologue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Currency != 15 {
		t.Fatalf("expected currency 15, got %d", state.Currency)
	}
	if len(state.Dialogue) != 1 || !state.Dialogue[0].Completed {
		t.Fatalf("expected completed dialogue, got %+v", state.Dialogue)
	}
	if len(state.Achievements) != 1 || state.Achievements[0] != "chatterbox" {
		t.Fatalf("unexpected achievements: %v", state.Achievements)
	}
}

func TestVisitDialogueNode_Invalid(t *testing.T) {
	server := newServer(t)
	_, _, err := server.handleVisitDialogueNode(context.Background(), nil, VisitDialogueNodeInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Node: "farewell",
	})
	if !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListTransactions(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	_, empty, err := server.handleListTransactions(ctx, nil, ListTransactionsInput{AvatarID: "nobody", Saga: "prologue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(empty.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %+v", empty)
	}

	if _, _, err := server.handleVisitDialogueNode(ctx, nil, VisitDialogueNodeInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Node: "greet",
	}); err != nil {
		t.Fatalf("visit: %v", err)
	}

	_, all, err := server.handleListTransactions(ctx, nil, ListTransactionsInput{AvatarID: "avatar-1", Saga: "prologue"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all.Transactions) < 2 || all.Transactions[0].Kind != "SagaStarted" {
		t.Fatalf("unexpected transactions: %+v", all.Transactions)
	}

	_, page, err := server.handleListTransactions(ctx, nil, ListTransactionsInput{AvatarID: "avatar-1", Saga: "prologue", AfterSeq: 1, Limit: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Transactions) != 1 || page.Transactions[0].Seq != 2 {
		t.Fatalf("unexpected page: %+v", page.Transactions)
	}
}

func TestSubmitClaim(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	_, out, err := server.handleSubmitClaim(ctx, nil, SubmitClaimInput{
		AvatarID: "avatar-1", Saga: "prologue", Kind: "mining", Count: 5, ElapsedMS: 1000,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Successful {
		t.Fatalf("unexpected output: %+v", out)
	}

	_, _, err = server.handleSubmitClaim(ctx, nil, SubmitClaimInput{
		AvatarID: "avatar-1", Saga: "prologue", Kind: "mining", Count: 500, ElapsedMS: 1000,
	})
	if !errors.Is(err, sagaerr.ErrAntiCheat) {
		t.Fatalf("expected anti-cheat error, got %v", err)
	}
}

func TestListAchievements(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()
	for _, node := range []string{"greet", "farewell"} {
		if _, _, err := server.handleVisitDialogueNode(ctx, nil, VisitDialogueNodeInput{
			AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Node: node,
		}); err != nil {
			t.Fatalf("visit %s: %v", node, err)
		}
	}

	_, out, err := server.handleListAchievements(ctx, nil, ListAchievementsInput{AvatarID: "avatar-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Achievements) != 2 {
		t.Fatalf("expected 2 achievements, got %+v", out.Achievements)
	}
	if a := out.Achievements[0]; a.Name != "chatterbox" || !a.Unlocked || a.Progress != 2 {
		t.Fatalf("unexpected chatterbox: %+v", a)
	}
	if a := out.Achievements[1]; a.Name != "miner" || a.Unlocked {
		t.Fatalf("unexpected miner: %+v", a)
	}
}

func TestGetCatalog(t *testing.T) {
	server := newServer(t)
	_, out, err := server.handleGetCatalog(context.Background(), nil, GetCatalogInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Sagas) != 1 || out.Sagas[0] != "prologue" {
		t.Fatalf("unexpected sagas: %v", out.Sagas)
	}
	if len(out.Merchants) != 1 || out.Merchants[0] != "merchant" {
		t.Fatalf("unexpected merchants: %v", out.Merchants)
	}
}

func TestGetSagaState_RequiresFields(t *testing.T) {
	server := newServer(t)
	if _, _, err := server.handleGetSagaState(context.Background(), nil, SagaInput{Saga: "prologue"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAddPartyMember(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	_, joined, err := server.handleAddPartyMember(ctx, nil, AddPartyMemberInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "ranger", Reputation: 10,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !joined.Successful || joined.Slot == nil || *joined.Slot != 0 {
		t.Fatalf("unexpected join: %+v", joined)
	}

	_, full, err := server.handleAddPartyMember(ctx, nil, AddPartyMemberInput{
		AvatarID: "avatar-1", Saga: "prologue", Character: "elder", Reputation: 10,
	})
	if err != nil {
		t.Fatalf("a full party is not a tool error: %v", err)
	}
	if full.Successful || full.Slot != nil || full.Message == "" {
		t.Fatalf("expected no slot, got %+v", full)
	}
	if full.NewSequenceNumber != joined.NewSequenceNumber {
		t.Fatalf("sequence moved %d -> %d", joined.NewSequenceNumber, full.NewSequenceNumber)
	}
}

func TestBattleTools(t *testing.T) {
	server := newServer(t)
	ctx := context.Background()

	if _, _, err := server.handleBattleAction(ctx, nil, BattleActionInput{
		AvatarID: "avatar-1", Saga: "prologue", Action: "Attack",
	}); !errors.Is(err, sagaerr.ErrValidation) {
		t.Fatalf("expected validation error without a battle, got %v", err)
	}

	_, started, err := server.handleStartBattle(ctx, nil, StartBattleInput{
		AvatarID: "avatar-1", Saga: "prologue", Enemy: "goblin", Seed: 1,
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !started.Successful {
		t.Fatalf("unexpected start output: %+v", started)
	}

	_, state, err := server.handleGetSagaState(ctx, nil, SagaInput{AvatarID: "avatar-1", Saga: "prologue"})
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Battle == nil || state.Battle.Enemy != "goblin" || state.Battle.Health != 50 {
		t.Fatalf("unexpected battle: %+v", state.Battle)
	}

	for turn := 0; state.Battle != nil; turn++ {
		if turn == 10 {
			t.Fatalf("battle did not finish: %+v", state.Battle)
		}
		if _, _, err := server.handleBattleAction(ctx, nil, BattleActionInput{
			AvatarID: "avatar-1", Saga: "prologue", Action: "Attack",
		}); err != nil {
			t.Fatalf("attack %d: %v", turn, err)
		}
		if _, state, err = server.handleGetSagaState(ctx, nil, SagaInput{AvatarID: "avatar-1", Saga: "prologue"}); err != nil {
			t.Fatalf("state: %v", err)
		}
	}
	if state.BattlesWon != 1 {
		t.Fatalf("battles won = %d, want 1", state.BattlesWon)
	}
}

func TestStartBattle_UnknownEnemy(t *testing.T) {
	server := newServer(t)
	_, _, err := server.handleStartBattle(context.Background(), nil, StartBattleInput{
		AvatarID: "avatar-1", Saga: "prologue", Enemy: "dragon",
	})
	if !errors.Is(err, sagaerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
