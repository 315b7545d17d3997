package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

//go:embed templates/catalog.yaml
var starterCatalog []byte

func initCmd() *cobra.Command {
	var projectName string
	var driver string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new ambientsaga project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName, driver)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	cmd.Flags().StringVar(&driver, "driver", "sqlite", "Database driver: memory, sqlite, or postgres")
	return cmd
}

func runInit(projectName, driver string) error {
	catalogPath := "catalog.yaml"
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if _, err := os.Stat(catalogPath); err == nil {
		return fmt.Errorf("%s already exists", catalogPath)
	}

	dsn := ""
	switch driver {
	case "memory":
	case "sqlite":
		dsn = "sqlite://./ambientsaga.db"
	case "postgres":
		dsn = "postgres://localhost:5432/ambientsaga?sslmode=disable"
	default:
		return fmt.Errorf("unknown driver %q", driver)
	}

	configContents := fmt.Sprintf("project: %s\nversion: 1\ncatalog: %s\n\ndatabase:\n  driver: %s\n  dsn: %q\n\nanticheat:\n  mining_rate: 10\n  building_rate: 8\n  tool_wear_rate: 20\n  max_speed: 12\n\npipeline:\n  retries: 3\n\nsync:\n  enabled: false\n\ntelemetry:\n  service_name: %s\n",
		projectName, catalogPath, driver, dsn, projectName)
	if err := os.WriteFile(configPath, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	if err := os.WriteFile(catalogPath, starterCatalog, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", catalogPath, err)
	}

	fmt.Fprintf(os.Stdout, "Created %s and %s.\n", configPath, catalogPath)
	return nil
}
