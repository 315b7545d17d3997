package command

import (
	"context"
	"errors"

	"ambientsaga/internal/claims"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

// submitClaim records a client activity claim once it passes the anti-cheat
// bounds. Rejections are logged for moderation and append nothing.
func (s *Service) submitClaim(ctx context.Context, sess *session, c SubmitClaim) error {
	err := s.claims.Validate(c.Claim, sess.state.Inventory)
	if err == nil {
		sess.emit(txn.KindActivityClaimed, claims.Summarize(c.Claim))
		return nil
	}
	if errors.Is(err, sagaerr.ErrAntiCheat) {
		meta := sagaerr.Metadata(err)
		s.logger.WarnContext(ctx, "activity claim rejected",
			"avatar_id", sess.avatarID,
			"saga", sess.sagaRef,
			"check", meta["check"],
			"kind", meta["kind"],
			"count", c.Claim.Count,
			"elapsed", c.Claim.Elapsed,
			"err", err,
		)
		if s.metrics != nil {
			s.metrics.RecordAntiCheat(ctx, meta["check"])
		}
	}
	return err
}
