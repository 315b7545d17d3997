package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ambientsaga/internal/claims"
	"ambientsaga/internal/config"
	"ambientsaga/internal/observe"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
	"ambientsaga/internal/world"
)

type Options struct {
	Cache   *replay.Cache
	Limits  claims.Limits
	Logger  *slog.Logger
	Metrics *observe.Metrics

	// NewID generates battle ids. Defaults to uuid.NewString.
	NewID func() string
}

// Service executes commands against a store and the loaded world.
type Service struct {
	store   store.Store
	world   *world.Host
	cache   *replay.Cache
	claims  claims.Validator
	logger  *slog.Logger
	metrics *observe.Metrics
	newID   func() string
}

func NewService(st store.Store, host *world.Host, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Service{
		store:   st,
		world:   host,
		cache:   opts.Cache,
		claims:  claims.NewValidator(opts.Limits),
		logger:  opts.Logger,
		metrics: opts.Metrics,
		newID:   opts.NewID,
	}
}

// Execute runs one command. Domain failures (validation, not found,
// anti-cheat) come back as an unsuccessful Result together with the
// classified error; infrastructure failures carry only the error.
func (s *Service) Execute(ctx context.Context, cmd Command) (Result, error) {
	if v, ok := cmd.(Validator); ok {
		if err := v.Validate(); err != nil {
			return failed(nil, err)
		}
	}
	sess, err := s.open(ctx, cmd)
	if err != nil {
		return failed(sess, err)
	}

	switch c := cmd.(type) {
	case ActivateTrigger:
		err = s.activateTrigger(sess, c)
	case SpawnCharacter:
		err = s.spawnCharacter(sess, c)
	case DamageCharacter:
		err = s.damageCharacter(sess, c)
	case HealCharacter:
		err = s.healCharacter(sess, c)
	case VisitDialogueNode:
		err = s.visitDialogueNode(sess, c)
	case TradeItem:
		err = s.tradeItem(sess, c)
	case AcceptQuest:
		err = s.acceptQuest(sess, c)
	case AdvanceObjective:
		err = s.advanceObjective(sess, c)
	case AddPartyMember:
		err = s.addPartyMember(sess, c)
	case RemovePartyMember:
		err = s.removePartyMember(sess, c)
	case StartBattle:
		err = s.startBattle(sess, c)
	case BattleAction:
		err = s.battleAction(sess, c)
	case SubmitClaim:
		err = s.submitClaim(ctx, sess, c)
	default:
		err = sagaerr.Newf(sagaerr.CodeValidation, "unsupported command %s", cmd.Name())
	}
	if err != nil {
		return failed(sess, err)
	}
	return sess.commit(ctx, s.store)
}

// State replays the instance of (avatarID, sagaRef). An avatar that never
// touched the saga gets an empty state.
func (s *Service) State(ctx context.Context, avatarID, sagaRef string) (replay.State, error) {
	sess, err := s.load(ctx, avatarID, sagaRef)
	if err != nil {
		return replay.State{}, err
	}
	return sess.state, nil
}

func failed(sess *session, err error) (Result, error) {
	res := Result{ErrorMessage: err.Error()}
	if sess != nil {
		res.SagaInstanceID = sess.instanceID
		res.NewSequenceNumber = sess.state.LastSeq
	}
	return res, err
}

// session is the replayed view a single command works against.
type session struct {
	avatarID   string
	sagaRef    string
	catalog    *config.Catalog
	instanceID string
	log        []txn.Transaction
	state      replay.State
	pending    []txn.Transaction

	// noSlot carries the reason an AddPartyMember found no free slot.
	noSlot string
	slot   *int
}

func (s *Service) open(ctx context.Context, cmd Command) (*session, error) {
	return s.load(ctx, cmd.Avatar(), cmd.Saga())
}

func (s *Service) load(ctx context.Context, avatarID, sagaRef string) (*session, error) {
	wc, err := s.world.Current()
	if err != nil {
		return nil, err
	}
	saga, ok := wc.Catalog.SagaByName(sagaRef)
	if !ok {
		return nil, sagaerr.Newf(sagaerr.CodeNotFound, "saga %s not found", sagaRef)
	}

	sess := &session{
		avatarID: avatarID,
		sagaRef:  saga.Name,
		catalog:  wc.Catalog,
		state:    replay.NewState(),
	}
	sess.state.SagaRef = saga.Name
	sess.state.AvatarID = avatarID

	inst, err := s.store.ResolveInstance(ctx, avatarID, saga.Name, false)
	if errors.Is(err, sagaerr.ErrNotFound) {
		return sess, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving instance: %w", err)
	}
	sess.instanceID = inst.InstanceID

	log, err := s.store.ReadAll(ctx, inst.InstanceID)
	if err != nil && !errors.Is(err, sagaerr.ErrNotFound) {
		return nil, fmt.Errorf("reading log: %w", err)
	}
	state, mode, err := s.cache.FoldMode(inst.InstanceID, log)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordReplay(ctx, mode, 1)
	}
	if len(log) > 0 {
		sess.log = log
		sess.state = state
	}
	return sess, nil
}

func (sess *session) emit(kind txn.Kind, payload txn.Payload) {
	sess.pending = append(sess.pending, txn.New(kind, sess.avatarID, payload))
}

// commit appends the pending transactions after the replayed tail. The
// first write to an instance creates it and opens its log with
// SagaStarted.
func (sess *session) commit(ctx context.Context, st store.Store) (Result, error) {
	if sess.noSlot != "" {
		return Result{
			ErrorMessage:      sess.noSlot,
			SagaInstanceID:    sess.instanceID,
			NewSequenceNumber: sess.state.LastSeq,
		}, nil
	}
	if len(sess.pending) == 0 {
		return Result{
			Successful:        true,
			SagaInstanceID:    sess.instanceID,
			NewSequenceNumber: sess.state.LastSeq,
		}, nil
	}

	if sess.instanceID == "" {
		inst, err := st.ResolveInstance(ctx, sess.avatarID, sess.sagaRef, true)
		if err != nil {
			return failed(sess, fmt.Errorf("creating instance: %w", err))
		}
		sess.instanceID = inst.InstanceID
	}

	batch := sess.pending
	if sess.state.LastSeq == 0 {
		started := txn.New(txn.KindSagaStarted, sess.avatarID, txn.Payload{txn.KeySaga: sess.sagaRef})
		batch = append([]txn.Transaction{started}, batch...)
	}

	stored, err := st.Append(ctx, sess.instanceID, sess.state.LastSeq, batch...)
	if err != nil {
		return failed(sess, err)
	}
	res := Result{
		Successful:        true,
		SagaInstanceID:    sess.instanceID,
		NewSequenceNumber: stored[len(stored)-1].Seq,
		Slot:              sess.slot,
	}
	for _, tx := range stored {
		res.TransactionIDs = append(res.TransactionIDs, tx.ID)
	}
	return res, nil
}

func notFound(kind, name string) error {
	return sagaerr.Newf(sagaerr.CodeNotFound, "%s %s not found", kind, name)
}

func invalid(format string, args ...any) error {
	return sagaerr.Newf(sagaerr.CodeValidation, format, args...)
}
