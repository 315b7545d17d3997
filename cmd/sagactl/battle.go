package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ambientsaga/internal/combat"
	"ambientsaga/internal/command"
	"ambientsaga/internal/config"
)

func battleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "battle",
		Short: "Battle tools",
	}
	cmd.AddCommand(battleSimulateCmd())
	return cmd
}

func battleSimulateCmd() *cobra.Command {
	var seed uint64
	var companions []string
	var actions []string
	cmd := &cobra.Command{
		Use:   "simulate <enemy>",
		Short: "Play a scripted battle against a catalog character without recording it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBattleSimulate(args[0], seed, companions, actions)
		},
	}
	cmd.Flags().Uint64Var(&seed, "seed", 1, "Battle seed")
	cmd.Flags().StringArrayVar(&companions, "companion", nil, "Companion character (repeatable, in slot order)")
	cmd.Flags().StringSliceVar(&actions, "action", []string{"Attack"}, "Player actions in order: Attack, Defend, Heal, Flee")
	return cmd
}

func runBattleSimulate(enemy string, seed uint64, companions, actionNames []string) error {
	cfg, err := config.LoadProjectConfig(configPath)
	if err != nil {
		return err
	}
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return err
	}

	actions := make([]combat.Action, 0, len(actionNames))
	for _, name := range actionNames {
		action, err := combat.ParseAction(name)
		if err != nil {
			return err
		}
		actions = append(actions, action)
	}

	script, err := command.SimulateBattle(catalog, seed, enemy, companions, actions)
	if err != nil {
		return err
	}

	for _, rec := range script.Records {
		line := fmt.Sprintf("turn %3d  %-14s %-10s %-7s", rec.Turn, rec.Phase, rec.Actor, rec.Action)
		if rec.Target != "" {
			line += fmt.Sprintf("  -> %s (%d hp)", rec.Target, rec.TargetHealth)
		}
		if rec.Damage > 0 {
			line += fmt.Sprintf("  damage %d", rec.Damage)
		}
		if rec.Healing > 0 {
			line += fmt.Sprintf("  healing %d", rec.Healing)
		}
		fmt.Fprintln(os.Stdout, line)
	}

	if victor, ok := script.Battle.Victor(); ok {
		fmt.Fprintf(os.Stdout, "\nOutcome: %s after %d turns.\n", victor, script.Battle.Turn)
	} else {
		fmt.Fprintf(os.Stdout, "\nBattle unfinished after %d turns; supply more --action values.\n", script.Battle.Turn)
	}
	if len(script.Unused) > 0 {
		fmt.Fprintf(os.Stdout, "Unused actions: %d\n", len(script.Unused))
	}
	return nil
}
