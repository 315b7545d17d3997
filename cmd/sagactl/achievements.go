package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ambientsaga/internal/achievement"
	"ambientsaga/internal/replay"
)

func achievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements <avatar>",
		Short: "List catalog achievements with an avatar's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAchievements(args[0])
		},
	}
}

func runAchievements(avatarID string) error {
	ctx := context.Background()

	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	states, err := replay.FoldAvatar(ctx, a.store, a.cache, avatarID)
	if err != nil {
		return err
	}
	unlocked := achievement.Recorded(states)
	for ref := range achievement.Evaluate(states, a.catalog.Achievements) {
		unlocked[ref] = struct{}{}
	}
	progress := achievement.Progress(states)

	if len(a.catalog.Achievements) == 0 {
		fmt.Fprintln(os.Stdout, "No achievements defined.")
		return nil
	}
	for _, ach := range a.catalog.Achievements {
		mark := " "
		if unlocked.Has(ach.Name) {
			mark = "x"
		}
		fmt.Fprintf(os.Stdout, "[%s] %s (%s %d/%d)\n", mark, ach.Name, ach.Criterion,
			min(progress[ach.Criterion], ach.Threshold), ach.Threshold)
	}
	return nil
}
