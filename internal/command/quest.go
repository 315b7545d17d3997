package command

import (
	"ambientsaga/internal/txn"
)

func (s *Service) acceptQuest(sess *session, c AcceptQuest) error {
	q, ok := sess.catalog.QuestByName(c.Quest)
	if !ok {
		return notFound("quest", c.Quest)
	}
	if st, ok := sess.state.Quests[q.Name]; ok && st.Accepted {
		return invalid("quest %s already accepted", q.Name)
	}
	sess.emit(txn.KindQuestAccepted, txn.Payload{txn.KeyQuest: q.Name})
	return nil
}

// advanceObjective records progress clamped to the objective's target and
// completes the quest once every objective is met. The completion reward is
// gated like dialogue rewards.
func (s *Service) advanceObjective(sess *session, c AdvanceObjective) error {
	q, ok := sess.catalog.QuestByName(c.Quest)
	if !ok {
		return notFound("quest", c.Quest)
	}
	st, ok := sess.state.Quests[q.Name]
	if !ok || !st.Accepted {
		return invalid("quest %s has not been accepted", q.Name)
	}
	if st.Completed {
		return invalid("quest %s is already completed", q.Name)
	}
	obj, ok := q.Objective(c.Objective)
	if !ok {
		return notFound("objective", q.Name+"/"+c.Objective)
	}
	current := st.Objectives[obj.Name]
	if current >= obj.Target {
		return invalid("objective %s of %s is already met", obj.Name, q.Name)
	}
	progress := min(obj.Target, current+c.Amount)
	sess.emit(txn.KindQuestObjectiveAdvanced, txn.Payload{
		txn.KeyQuest:     q.Name,
		txn.KeyObjective: obj.Name,
		txn.KeyProgress:  txn.Itoa(progress),
	})

	for _, o := range q.Objectives {
		got := st.Objectives[o.Name]
		if o.Name == obj.Name {
			got = progress
		}
		if got < o.Target {
			return nil
		}
	}
	sess.emit(txn.KindQuestCompleted, txn.Payload{txn.KeyQuest: q.Name})

	key := RewardKey(sess.avatarID, "quest", q.Name)
	if q.RewardCurrency != 0 && !RewardGranted(sess.log, sess.avatarID, key) {
		sess.emit(txn.KindCurrencyTransferred, txn.Payload{
			txn.KeyAmount:    txn.Itoa(q.RewardCurrency),
			txn.KeyReason:    "quest",
			txn.KeyQuest:     q.Name,
			txn.KeyRewardKey: key,
		})
	}
	return nil
}
