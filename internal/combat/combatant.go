// Package combat resolves seeded, turn-based battles. Every random draw is
// derived from the battle seed and the turn counter, so the same seed, the
// same starting snapshots, and the same player actions always produce the
// same turn records.
package combat

type Side string

const (
	SidePlayer    Side = "Player"
	SideCompanion Side = "Companion"
	SideEnemy     Side = "Enemy"
)

type Stats struct {
	Attack   int `json:"attack"`
	Defense  int `json:"defense"`
	Speed    int `json:"speed"`
	Variance int `json:"variance"`
}

type Equipment struct {
	Weapon      string `json:"weapon,omitempty"`
	WeaponPower int    `json:"weapon_power,omitempty"`
	Armor       string `json:"armor,omitempty"`
	ArmorRating int    `json:"armor_rating,omitempty"`
	Accessory   string `json:"accessory,omitempty"`
}

// Combatant is the snapshot of one participant embedded in battle
// transactions.
type Combatant struct {
	Ref       string    `json:"ref"`
	Name      string    `json:"name"`
	Side      Side      `json:"side"`
	Slot      int       `json:"slot"`
	Health    int       `json:"health"`
	MaxHealth int       `json:"max_health"`
	Stats     Stats     `json:"stats"`
	Equipment Equipment `json:"equipment"`
	Affinity  string    `json:"affinity,omitempty"`
	Defending bool      `json:"defending,omitempty"`
}

func (c Combatant) Alive() bool { return c.Health > 0 }

func CopyStats(s Stats) Stats {
	return Stats{
		Attack:   s.Attack,
		Defense:  s.Defense,
		Speed:    s.Speed,
		Variance: s.Variance,
	}
}

func CopyEquipment(e Equipment) Equipment {
	return Equipment{
		Weapon:      e.Weapon,
		WeaponPower: e.WeaponPower,
		Armor:       e.Armor,
		ArmorRating: e.ArmorRating,
		Accessory:   e.Accessory,
	}
}

func CopyCombatant(c Combatant) Combatant {
	return Combatant{
		Ref:       c.Ref,
		Name:      c.Name,
		Side:      c.Side,
		Slot:      c.Slot,
		Health:    c.Health,
		MaxHealth: c.MaxHealth,
		Stats:     CopyStats(c.Stats),
		Equipment: CopyEquipment(c.Equipment),
		Affinity:  c.Affinity,
		Defending: c.Defending,
	}
}

// affinityBeats lists which affinity each one deals bonus damage to.
var affinityBeats = map[string]string{
	"fire":   "nature",
	"nature": "water",
	"water":  "fire",
}

func hasAdvantage(attacker, defender string) bool {
	if attacker == "" || defender == "" {
		return false
	}
	return affinityBeats[attacker] == defender
}
