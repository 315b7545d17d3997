package pipeline

import (
	"context"
	"log/slog"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/achievesync"
	"ambientsaga/internal/command"
	"ambientsaga/internal/observe"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
	"ambientsaga/internal/world"
)

// AchievementDeps are the collaborators of the Achievements middleware.
type AchievementDeps struct {
	Store      store.Store
	Cache      *replay.Cache
	World      *world.Host
	Tracker    *achievement.Tracker
	Dispatcher *achievesync.Dispatcher
	Logger     *slog.Logger
	Metrics    *observe.Metrics
}

// Achievements evaluates the avatar's achievements after every command that
// wrote transactions. Newly met achievements are appended to the instance
// the command touched and forwarded to the dispatcher. Failures here are
// logged and never fail the command.
func Achievements(deps AchievementDeps) Middleware {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Tracker == nil {
		deps.Tracker = achievement.NewTracker()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, cmd command.Command) (command.Result, error) {
			res, err := next(ctx, cmd)
			if err != nil || !res.Successful || len(res.TransactionIDs) == 0 {
				return res, err
			}
			return unlock(ctx, deps, cmd.Avatar(), res), nil
		}
	}
}

func unlock(ctx context.Context, deps AchievementDeps, avatarID string, res command.Result) command.Result {
	log := deps.Logger.With("avatar_id", avatarID, "instance_id", res.SagaInstanceID)

	wc, err := deps.World.Current()
	if err != nil || len(wc.Catalog.Achievements) == 0 {
		return res
	}
	states, err := replay.FoldAvatar(ctx, deps.Store, deps.Cache, avatarID)
	if err != nil {
		log.WarnContext(ctx, "achievement evaluation skipped", "err", err)
		return res
	}
	newly := deps.Tracker.Newly(avatarID, states, wc.Catalog.Achievements)
	if len(newly) == 0 {
		return res
	}

	var tail uint64
	for _, s := range states {
		if s.InstanceID == res.SagaInstanceID {
			tail = s.LastSeq
		}
	}
	txs := make([]txn.Transaction, 0, len(newly))
	for _, ref := range newly {
		txs = append(txs, txn.New(txn.KindAchievementUnlocked, avatarID, txn.Payload{txn.KeyAchievement: ref}))
	}
	stored, err := deps.Store.Append(ctx, res.SagaInstanceID, tail, txs...)
	if err != nil {
		deps.Tracker.Forget(avatarID)
		log.WarnContext(ctx, "recording achievements failed", "achievements", newly, "err", err)
		return res
	}

	for _, tx := range stored {
		res.TransactionIDs = append(res.TransactionIDs, tx.ID)
		res.NewSequenceNumber = tx.Seq
	}
	res.UnlockedAchievements = newly
	if deps.Metrics != nil {
		for _, ref := range newly {
			deps.Metrics.RecordUnlocked(ctx, ref)
		}
	}
	log.InfoContext(ctx, "achievements unlocked", "achievements", newly)
	deps.Dispatcher.Notify(ctx, avatarID, newly...)
	return res
}
