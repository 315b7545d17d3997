package command

import (
	"sort"

	"ambientsaga/internal/config"
	"ambientsaga/internal/txn"
)

// visitDialogueNode always records the visit. The node's reward is granted
// only if no earlier reward transaction carries the same reward key.
func (s *Service) visitDialogueNode(sess *session, c VisitDialogueNode) error {
	ch, ok := sess.catalog.CharacterByName(c.Character)
	if !ok {
		return notFound("character", c.Character)
	}
	node, ok := ch.Node(c.Node)
	if !ok {
		return notFound("dialogue node", ch.Name+"/"+c.Node)
	}
	if st, ok := sess.state.Characters[ch.Name]; ok && st.Defeated {
		return invalid("character %s is defeated", ch.Name)
	}

	entry, _ := ch.Entry()
	cursor := sess.state.Dialogue[ch.Name]
	if node.Name != entry.Name {
		current, ok := ch.Node(cursor.Node)
		if cursor.Node == "" || cursor.Completed || !ok || !current.Leads(node.Name) {
			return invalid("dialogue with %s cannot move from %q to %s", ch.Name, cursor.Node, node.Name)
		}
	}

	sess.emit(txn.KindDialogueNodeVisited, txn.Payload{
		txn.KeyCharacter: ch.Name,
		txn.KeyNode:      node.Name,
	})

	key := RewardKey(sess.avatarID, ch.Name, node.Name)
	if !node.Reward.Empty() && !RewardGranted(sess.log, sess.avatarID, key) {
		emitReward(sess, ch.Name, node.Reward, key, "dialogue")
	}

	if node.Terminal {
		sess.emit(txn.KindDialogueCompleted, txn.Payload{
			txn.KeyCharacter: ch.Name,
			txn.KeyNode:      node.Name,
		})
	}
	return nil
}

func emitReward(sess *session, character string, r *config.Reward, key, reason string) {
	items := make([]string, 0, len(r.Items))
	for item := range r.Items {
		items = append(items, item)
	}
	sort.Strings(items)
	for _, item := range items {
		name := item
		if def, ok := sess.catalog.ItemByName(item); ok {
			name = def.Name
		}
		sess.emit(txn.KindItemGranted, txn.Payload{
			txn.KeyItem:      name,
			txn.KeyQuantity:  txn.Itoa(r.Items[item]),
			txn.KeyRewardKey: key,
		})
	}
	if r.Currency != 0 {
		sess.emit(txn.KindCurrencyTransferred, txn.Payload{
			txn.KeyAmount:    txn.Itoa(r.Currency),
			txn.KeyReason:    reason,
			txn.KeyRewardKey: key,
		})
	}
	for _, trait := range r.Traits {
		sess.emit(txn.KindTraitAssigned, txn.Payload{
			txn.KeyCharacter: character,
			txn.KeyTrait:     trait,
			txn.KeyRewardKey: key,
		})
	}
}
