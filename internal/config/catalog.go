package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog is the read-only reference data commands validate against.
type Catalog struct {
	Version      int           `yaml:"version"`
	Sagas        []Saga        `yaml:"sagas"`
	Avatar       CombatProfile `yaml:"avatar"`
	Items        []Item        `yaml:"items"`
	Characters   []Character   `yaml:"characters"`
	Quests       []Quest       `yaml:"quests"`
	Triggers     []Trigger     `yaml:"triggers"`
	Achievements []Achievement `yaml:"achievements"`

	sagaIndex      map[string]*Saga
	itemIndex      map[string]*Item
	characterIndex map[string]*Character
	questIndex     map[string]*Quest
	triggerIndex   map[string]*Trigger
}

type Saga struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Item struct {
	Name  string `yaml:"name"`
	Price int    `yaml:"price"`
	Rare  bool   `yaml:"rare"`
}

type Character struct {
	Name     string         `yaml:"name"`
	Health   int            `yaml:"health"`
	Position string         `yaml:"position"`
	Combat   *CombatProfile `yaml:"combat"`
	Merchant bool           `yaml:"merchant"`
	Stock    map[string]int `yaml:"stock"`
	Dialogue []DialogueNode `yaml:"dialogue"`
}

// CombatProfile seeds a combatant's stats when a battle starts.
type CombatProfile struct {
	Health      int    `yaml:"health"`
	Attack      int    `yaml:"attack"`
	Defense     int    `yaml:"defense"`
	Speed       int    `yaml:"speed"`
	Variance    int    `yaml:"variance"`
	Weapon      string `yaml:"weapon"`
	WeaponPower int    `yaml:"weapon_power"`
	Armor       string `yaml:"armor"`
	ArmorRating int    `yaml:"armor_rating"`
	Accessory   string `yaml:"accessory"`
	Affinity    string `yaml:"affinity"`
}

type DialogueNode struct {
	Name     string   `yaml:"name"`
	Next     []string `yaml:"next"`
	Terminal bool     `yaml:"terminal"`
	Reward   *Reward  `yaml:"reward"`
}

type Reward struct {
	Items    map[string]int `yaml:"items"`
	Currency int            `yaml:"currency"`
	Traits   []string       `yaml:"traits"`
}

func (r *Reward) Empty() bool {
	return r == nil || (len(r.Items) == 0 && r.Currency == 0 && len(r.Traits) == 0)
}

type Quest struct {
	Name           string      `yaml:"name"`
	Objectives     []Objective `yaml:"objectives"`
	RewardCurrency int         `yaml:"reward_currency"`
}

type Objective struct {
	Name   string `yaml:"name"`
	Target int    `yaml:"target"`
}

type Trigger struct {
	Name   string   `yaml:"name"`
	Spawns []string `yaml:"spawns"`
}

type Achievement struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Criterion   string `yaml:"criterion"`
	Threshold   int    `yaml:"threshold"`
}

// Achievement criteria understood by the evaluator.
const (
	CriterionBattlesWon           = "battles_won"
	CriterionQuestsCompleted      = "quests_completed"
	CriterionTriggersActivated    = "triggers_activated"
	CriterionBlocksMined          = "blocks_mined"
	CriterionBlocksPlaced         = "blocks_placed"
	CriterionDialogueNodesVisited = "dialogue_nodes_visited"
	CriterionCurrencyEarned       = "currency_earned"
	CriterionPartySize            = "party_size"
)

var knownCriteria = map[string]struct{}{
	CriterionBattlesWon:           {},
	CriterionQuestsCompleted:      {},
	CriterionTriggersActivated:    {},
	CriterionBlocksMined:          {},
	CriterionBlocksPlaced:         {},
	CriterionDialogueNodesVisited: {},
	CriterionCurrencyEarned:       {},
	CriterionPartySize:            {},
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	return catalog, nil
}

// ParseCatalog decodes, validates, and indexes catalog YAML.
func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, err
	}
	if err := validateCatalog(&catalog); err != nil {
		return nil, err
	}
	catalog.buildIndexes()
	return &catalog, nil
}

func (c *Catalog) buildIndexes() {
	c.sagaIndex = make(map[string]*Saga, len(c.Sagas))
	for i := range c.Sagas {
		c.sagaIndex[strings.ToLower(c.Sagas[i].Name)] = &c.Sagas[i]
	}
	c.itemIndex = make(map[string]*Item, len(c.Items))
	for i := range c.Items {
		c.itemIndex[strings.ToLower(c.Items[i].Name)] = &c.Items[i]
	}
	c.characterIndex = make(map[string]*Character, len(c.Characters))
	for i := range c.Characters {
		c.characterIndex[strings.ToLower(c.Characters[i].Name)] = &c.Characters[i]
	}
	c.questIndex = make(map[string]*Quest, len(c.Quests))
	for i := range c.Quests {
		c.questIndex[strings.ToLower(c.Quests[i].Name)] = &c.Quests[i]
	}
	c.triggerIndex = make(map[string]*Trigger, len(c.Triggers))
	for i := range c.Triggers {
		c.triggerIndex[strings.ToLower(c.Triggers[i].Name)] = &c.Triggers[i]
	}
}

func validateCatalog(c *Catalog) error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported version: %d", c.Version)
	}
	if len(c.Sagas) == 0 {
		return fmt.Errorf("at least one saga is required")
	}
	if err := uniqueNames("saga", len(c.Sagas), func(i int) string { return c.Sagas[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("item", len(c.Items), func(i int) string { return c.Items[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("character", len(c.Characters), func(i int) string { return c.Characters[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("quest", len(c.Quests), func(i int) string { return c.Quests[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("trigger", len(c.Triggers), func(i int) string { return c.Triggers[i].Name }); err != nil {
		return err
	}
	if err := uniqueNames("achievement", len(c.Achievements), func(i int) string { return c.Achievements[i].Name }); err != nil {
		return err
	}

	items := lowerSet(len(c.Items), func(i int) string { return c.Items[i].Name })
	characters := lowerSet(len(c.Characters), func(i int) string { return c.Characters[i].Name })

	for _, item := range c.Items {
		if item.Price < 0 {
			return fmt.Errorf("item %s: price must not be negative", item.Name)
		}
	}

	for _, ch := range c.Characters {
		if ch.Health <= 0 {
			return fmt.Errorf("character %s: health must be positive", ch.Name)
		}
		for item := range ch.Stock {
			if _, ok := items[strings.ToLower(item)]; !ok {
				return fmt.Errorf("character %s: stock references unknown item %s", ch.Name, item)
			}
		}
		nodes := lowerSet(len(ch.Dialogue), func(i int) string { return ch.Dialogue[i].Name })
		if err := uniqueNames("dialogue node of "+ch.Name, len(ch.Dialogue), func(i int) string { return ch.Dialogue[i].Name }); err != nil {
			return err
		}
		for _, node := range ch.Dialogue {
			for _, next := range node.Next {
				if _, ok := nodes[strings.ToLower(next)]; !ok {
					return fmt.Errorf("character %s: node %s links to unknown node %s", ch.Name, node.Name, next)
				}
			}
			if node.Reward != nil {
				for item, qty := range node.Reward.Items {
					if _, ok := items[strings.ToLower(item)]; !ok {
						return fmt.Errorf("character %s: node %s rewards unknown item %s", ch.Name, node.Name, item)
					}
					if qty <= 0 {
						return fmt.Errorf("character %s: node %s reward quantity must be positive", ch.Name, node.Name)
					}
				}
			}
		}
	}

	for _, q := range c.Quests {
		if len(q.Objectives) == 0 {
			return fmt.Errorf("quest %s: at least one objective is required", q.Name)
		}
		for _, obj := range q.Objectives {
			if strings.TrimSpace(obj.Name) == "" || obj.Target <= 0 {
				return fmt.Errorf("quest %s: objectives need a name and a positive target", q.Name)
			}
		}
	}

	for _, tr := range c.Triggers {
		for _, spawn := range tr.Spawns {
			if _, ok := characters[strings.ToLower(spawn)]; !ok {
				return fmt.Errorf("trigger %s: spawns unknown character %s", tr.Name, spawn)
			}
		}
	}

	for _, a := range c.Achievements {
		if _, ok := knownCriteria[a.Criterion]; !ok {
			return fmt.Errorf("achievement %s: unknown criterion %q", a.Name, a.Criterion)
		}
		if a.Threshold <= 0 {
			return fmt.Errorf("achievement %s: threshold must be positive", a.Name)
		}
	}
	return nil
}

func uniqueNames(kind string, n int, name func(int) string) error {
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		v := name(i)
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s %d name is required", kind, i)
		}
		key := strings.ToLower(v)
		if _, exists := seen[key]; exists {
			return fmt.Errorf("duplicate %s name: %s", kind, v)
		}
		seen[key] = struct{}{}
	}
	return nil
}

func lowerSet(n int, name func(int) string) map[string]struct{} {
	out := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		out[strings.ToLower(name(i))] = struct{}{}
	}
	return out
}

func (c *Catalog) SagaByName(name string) (*Saga, bool) {
	s, ok := c.sagaIndex[strings.ToLower(name)]
	return s, ok
}

func (c *Catalog) ItemByName(name string) (*Item, bool) {
	it, ok := c.itemIndex[strings.ToLower(name)]
	return it, ok
}

func (c *Catalog) CharacterByName(name string) (*Character, bool) {
	ch, ok := c.characterIndex[strings.ToLower(name)]
	return ch, ok
}

func (c *Catalog) QuestByName(name string) (*Quest, bool) {
	q, ok := c.questIndex[strings.ToLower(name)]
	return q, ok
}

func (c *Catalog) TriggerByName(name string) (*Trigger, bool) {
	tr, ok := c.triggerIndex[strings.ToLower(name)]
	return tr, ok
}

// Node looks up a dialogue node of the character.
func (ch *Character) Node(name string) (*DialogueNode, bool) {
	for i := range ch.Dialogue {
		if strings.EqualFold(ch.Dialogue[i].Name, name) {
			return &ch.Dialogue[i], true
		}
	}
	return nil, false
}

// Entry is the node every conversation with the character opens on.
func (ch *Character) Entry() (*DialogueNode, bool) {
	if len(ch.Dialogue) == 0 {
		return nil, false
	}
	return &ch.Dialogue[0], true
}

// Leads reports whether the conversation may move from node to next.
func (n *DialogueNode) Leads(next string) bool {
	for _, candidate := range n.Next {
		if strings.EqualFold(candidate, next) {
			return true
		}
	}
	return false
}

// Objective looks up a quest objective by name.
func (q *Quest) Objective(name string) (*Objective, bool) {
	for i := range q.Objectives {
		if strings.EqualFold(q.Objectives[i].Name, name) {
			return &q.Objectives[i], true
		}
	}
	return nil, false
}
