package command

import (
	"fmt"

	"ambientsaga/internal/replay"
	"ambientsaga/internal/txn"
)

// Tier buckets reputation. Higher tiers allow a larger party.
type Tier int

const (
	TierHostile Tier = iota
	TierNeutral
	TierFriendly
	TierHonored
)

func (t Tier) String() string {
	switch t {
	case TierHostile:
		return "Hostile"
	case TierNeutral:
		return "Neutral"
	case TierFriendly:
		return "Friendly"
	case TierHonored:
		return "Honored"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

func TierFor(reputation int) Tier {
	switch {
	case reputation < 0:
		return TierHostile
	case reputation < 50:
		return TierNeutral
	case reputation < 100:
		return TierFriendly
	default:
		return TierHonored
	}
}

// Capacity is the party size the tier allows: Hostile 0 up to Honored 3.
func (t Tier) Capacity() int { return int(t) }

func (s *Service) addPartyMember(sess *session, c AddPartyMember) error {
	ch, ok := sess.catalog.CharacterByName(c.Character)
	if !ok {
		return notFound("character", c.Character)
	}
	if st, ok := sess.state.Characters[ch.Name]; ok && st.Defeated {
		return invalid("character %s is defeated", ch.Name)
	}
	if held, in := sess.state.InParty(ch.Name); in {
		sess.noSlot = fmt.Sprintf("%s already holds party slot %d", ch.Name, held)
		return nil
	}

	tier := TierFor(c.Reputation)
	capacity := tier.Capacity()
	if len(sess.state.Party) >= capacity {
		sess.noSlot = fmt.Sprintf("party is full for tier %s: %d of %d slots taken", tier, len(sess.state.Party), capacity)
		return nil
	}
	slot := lowestFreeSlot(sess.state.Party)

	sess.emit(txn.KindPartyMemberJoined, txn.Payload{
		txn.KeyCharacter:  ch.Name,
		txn.KeySlot:       txn.Itoa(slot),
		txn.KeyReputation: txn.Itoa(c.Reputation),
	})
	sess.slot = &slot
	return nil
}

func (s *Service) removePartyMember(sess *session, c RemovePartyMember) error {
	ch, ok := sess.catalog.CharacterByName(c.Character)
	if !ok {
		return notFound("character", c.Character)
	}
	if _, in := sess.state.InParty(ch.Name); !in {
		return invalid("%s is not in the party", ch.Name)
	}
	if sess.state.Battle != nil {
		return invalid("party cannot change during battle %s", sess.state.Battle.ID)
	}
	sess.emit(txn.KindPartyMemberLeft, txn.Payload{txn.KeyCharacter: ch.Name})
	return nil
}

func lowestFreeSlot(party []replay.PartyMember) int {
	used := make(map[int]bool, len(party))
	for _, m := range party {
		used[m.Slot] = true
	}
	slot := 0
	for used[slot] {
		slot++
	}
	return slot
}
