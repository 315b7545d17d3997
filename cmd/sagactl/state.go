package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
)

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state <avatar> <saga>",
		Short: "Replay a saga instance and print its current state",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(args[0], args[1])
		},
	}
}

func runState(avatarID, sagaRef string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	st, err := a.service.State(ctx, avatarID, sagaRef)
	if err != nil {
		return err
	}
	if st.LastSeq == 0 {
		fmt.Fprintf(os.Stdout, "No transactions for %q in saga %q.\n", avatarID, sagaRef)
		return nil
	}

	fmt.Fprintf(os.Stdout, "Instance: %s (seq %d)\n", st.InstanceID, st.LastSeq)
	fmt.Fprintf(os.Stdout, "Currency: %d\n\n", st.Currency)
	printCounts("Inventory", st.Inventory)

	if len(st.Characters) > 0 {
		fmt.Fprintln(os.Stdout, "Characters:")
		for _, ref := range sortedKeys(st.Characters) {
			c := st.Characters[ref]
			status := ""
			if c.Defeated {
				status = " defeated"
			}
			fmt.Fprintf(os.Stdout, "  %s: %d/%d%s\n", ref, c.Health, c.MaxHealth, status)
		}
		fmt.Fprintln(os.Stdout, "")
	}
	if len(st.Dialogue) > 0 {
		fmt.Fprintln(os.Stdout, "Dialogue:")
		for _, ref := range sortedKeys(st.Dialogue) {
			d := st.Dialogue[ref]
			fmt.Fprintf(os.Stdout, "  %s: at %s, visited %v, completed %t\n", ref, d.Node, d.Visited, d.Completed)
		}
		fmt.Fprintln(os.Stdout, "")
	}
	if len(st.Quests) > 0 {
		fmt.Fprintln(os.Stdout, "Quests:")
		for _, ref := range sortedKeys(st.Quests) {
			q := st.Quests[ref]
			fmt.Fprintf(os.Stdout, "  %s: completed %t\n", ref, q.Completed)
			for _, obj := range sortedKeys(q.Objectives) {
				fmt.Fprintf(os.Stdout, "    %s: %d\n", obj, q.Objectives[obj])
			}
		}
		fmt.Fprintln(os.Stdout, "")
	}
	if len(st.Party) > 0 {
		fmt.Fprintln(os.Stdout, "Party:")
		for _, m := range st.Party {
			fmt.Fprintf(os.Stdout, "  [%d] %s (reputation %d)\n", m.Slot, m.Character, m.Reputation)
		}
		fmt.Fprintln(os.Stdout, "")
	}
	if b := st.Battle; b != nil {
		fmt.Fprintf(os.Stdout, "Battle %s: %s, turn %d, %s at %d/%d\n\n",
			b.ID, b.Phase, b.Turn, b.Enemy.Ref, b.Enemy.Health, b.Enemy.MaxHealth)
	}
	fmt.Fprintf(os.Stdout, "Battles: %d won, %d lost, %d fled\n", st.BattlesWon, st.BattlesLost, st.BattlesFled)
	if refs := st.UnlockedAchievements(); len(refs) > 0 {
		fmt.Fprintf(os.Stdout, "Achievements: %v\n", refs)
	}
	return nil
}

func printCounts(title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "%s:\n", title)
	for _, key := range sortedKeys(counts) {
		fmt.Fprintf(os.Stdout, "  %s: %d\n", key, counts[key])
	}
	fmt.Fprintln(os.Stdout, "")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
