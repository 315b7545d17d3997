package replay

import (
	"fmt"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

// Fold replays a complete log from an empty state.
func Fold(txs []txn.Transaction) (State, error) {
	return FoldFrom(NewState(), txs)
}

// FoldFrom applies txs on top of base, which must be the state folded up to
// base.LastSeq. base itself is left untouched.
func FoldFrom(base State, txs []txn.Transaction) (State, error) {
	s := base.Clone()
	for _, tx := range txs {
		if err := s.apply(tx); err != nil {
			return State{}, err
		}
	}
	return s, nil
}

func (s *State) apply(tx txn.Transaction) error {
	if tx.Seq != s.LastSeq+1 {
		return corruption(tx, fmt.Errorf("event sequence gap: expected %d got %d", s.LastSeq+1, tx.Seq))
	}
	if s.InstanceID == "" {
		s.InstanceID = tx.InstanceID
		s.AvatarID = tx.AvatarID
	} else if tx.InstanceID != s.InstanceID {
		return corruption(tx, fmt.Errorf("transaction belongs to instance %s, not %s", tx.InstanceID, s.InstanceID))
	}

	reduce, ok := reducers[tx.Kind]
	if !ok {
		return corruption(tx, fmt.Errorf("no reducer for kind %q", tx.Kind))
	}
	if err := reduce(s, tx); err != nil {
		return corruption(tx, err)
	}
	s.LastSeq = tx.Seq
	return nil
}

func corruption(tx txn.Transaction, cause error) error {
	return sagaerr.Wrap(sagaerr.CodeReplayCorruption,
		fmt.Sprintf("replaying seq %d (%s)", tx.Seq, tx.Kind), cause).
		WithMetadata("instance_id", tx.InstanceID, "seq", txn.Utoa(tx.Seq), "kind", string(tx.Kind))
}
