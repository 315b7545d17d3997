package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const DefaultConfigFile = "ambientsaga.yaml"

type ProjectConfig struct {
	Project   string          `yaml:"project"`
	Version   int             `yaml:"version"`
	Catalog   string          `yaml:"catalog" env:"AMBIENTSAGA_CATALOG"`
	Database  DatabaseConfig  `yaml:"database"`
	AntiCheat AntiCheatConfig `yaml:"anticheat"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Sync      SyncConfig      `yaml:"sync"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"AMBIENTSAGA_DATABASE_DRIVER"`
	DSN    string `yaml:"dsn" env:"AMBIENTSAGA_DATABASE_DSN"`
}

// AntiCheatConfig holds per-second ceilings for client activity claims.
type AntiCheatConfig struct {
	MiningRate   float64 `yaml:"mining_rate" env:"AMBIENTSAGA_ANTICHEAT_MINING_RATE"`
	BuildingRate float64 `yaml:"building_rate" env:"AMBIENTSAGA_ANTICHEAT_BUILDING_RATE"`
	ToolWearRate float64 `yaml:"tool_wear_rate" env:"AMBIENTSAGA_ANTICHEAT_TOOL_WEAR_RATE"`
	MaxSpeed     float64 `yaml:"max_speed" env:"AMBIENTSAGA_ANTICHEAT_MAX_SPEED"`
}

type PipelineConfig struct {
	Retries int `yaml:"retries" env:"AMBIENTSAGA_PIPELINE_RETRIES"`
}

type SyncConfig struct {
	Enabled      bool          `yaml:"enabled" env:"AMBIENTSAGA_SYNC_ENABLED"`
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TelemetryConfig struct {
	ServiceName string `yaml:"service_name" env:"AMBIENTSAGA_SERVICE_NAME"`
}

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	applyDefaults(&cfg)
	if err := validateProjectConfig(&cfg); err != nil {
		return nil, fmt.Errorf("loading project config: %w", err)
	}

	return &cfg, nil
}

// ParseEnv overlays environment variables onto target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func applyDefaults(cfg *ProjectConfig) {
	if cfg.Catalog == "" {
		cfg.Catalog = "catalog.yaml"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverSQLite
	}
	if cfg.Database.Driver == DriverSQLite && cfg.Database.DSN == "" {
		cfg.Database.DSN = "sqlite://ambientsaga.db"
	}
	if cfg.AntiCheat.MiningRate == 0 {
		cfg.AntiCheat.MiningRate = 10
	}
	if cfg.AntiCheat.BuildingRate == 0 {
		cfg.AntiCheat.BuildingRate = 8
	}
	if cfg.AntiCheat.ToolWearRate == 0 {
		cfg.AntiCheat.ToolWearRate = 20
	}
	if cfg.AntiCheat.MaxSpeed == 0 {
		cfg.AntiCheat.MaxSpeed = 12
	}
	if cfg.Pipeline.Retries == 0 {
		cfg.Pipeline.Retries = 3
	}
	if cfg.Sync.MaxFailures == 0 {
		cfg.Sync.MaxFailures = 5
	}
	if cfg.Sync.ResetTimeout == 0 {
		cfg.Sync.ResetTimeout = 30 * time.Second
	}
	if cfg.Sync.Timeout == 0 {
		cfg.Sync.Timeout = 5 * time.Second
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "ambientsaga"
	}
}

func validateProjectConfig(cfg *ProjectConfig) error {
	if strings.TrimSpace(cfg.Project) == "" {
		return fmt.Errorf("project name is required")
	}
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version: %d", cfg.Version)
	}

	switch cfg.Database.Driver {
	case DriverMemory:
	case DriverSQLite:
		if !strings.HasPrefix(cfg.Database.DSN, "sqlite://") {
			return fmt.Errorf("sqlite dsn must start with sqlite://")
		}
	case DriverPostgres:
		if strings.TrimSpace(cfg.Database.DSN) == "" {
			return fmt.Errorf("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	ac := cfg.AntiCheat
	if ac.MiningRate < 0 || ac.BuildingRate < 0 || ac.ToolWearRate < 0 || ac.MaxSpeed < 0 {
		return fmt.Errorf("anticheat limits must be positive")
	}
	if cfg.Pipeline.Retries < 0 {
		return fmt.Errorf("pipeline retries must not be negative")
	}
	if cfg.Sync.MaxFailures < 0 {
		return fmt.Errorf("sync max_failures must not be negative")
	}
	return nil
}
