package main

import (
	"path/filepath"
	"testing"

	"ambientsaga/internal/config"
)

func TestParseParamPairs(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty", pairs: nil, want: map[string]any{}},
		{name: "trimmed", pairs: []string{" avatar = a1 ", ""}, want: map[string]any{"avatar": "a1"}},
		{name: "value with equals", pairs: []string{"q=a=b"}, want: map[string]any{"q": "a=b"}},
		{name: "missing equals", pairs: []string{"avatar"}, wantErr: true},
		{name: "empty key", pairs: []string{"=x"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParamPairs(tt.pairs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Fatalf("param %s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestStarterCatalogParses(t *testing.T) {
	if _, err := config.ParseCatalog(starterCatalog); err != nil {
		t.Fatalf("starter catalog: %v", err)
	}
}

func TestRunInitWritesLoadableProject(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configPath = config.DefaultConfigFile
	if err := runInit("demo", "memory"); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.LoadProjectConfig(filepath.Join(dir, configPath))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Project != "demo" || cfg.Database.Driver != config.DriverMemory {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if err := runInit("demo", "memory"); err == nil {
		t.Fatalf("second init should refuse to overwrite")
	}
}
