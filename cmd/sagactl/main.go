package main

import (
	"os"

	"github.com/spf13/cobra"

	"ambientsaga/internal/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "sagactl",
		Short:        "Event-sourced saga log for ambient game worlds",
		SilenceUsage: true,
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultConfigFile, "Project config file")
	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(stateCmd())
	root.AddCommand(logCmd())
	root.AddCommand(achievementsCmd())
	root.AddCommand(auditCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(importCmd())
	root.AddCommand(battleCmd())
	root.AddCommand(queryCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
