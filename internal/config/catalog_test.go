package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCatalog(t *testing.T) {
	t.Run("valid catalog loads", func(t *testing.T) {
		catalog, err := LoadCatalog(filepath.Join("testdata", "catalog.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.Characters) != 4 {
			t.Fatalf("expected 4 characters, got %d", len(catalog.Characters))
		}
		if catalog.Avatar.Attack != 20 {
			t.Fatalf("expected avatar attack 20, got %d", catalog.Avatar.Attack)
		}
	})

	tests := []struct {
		name     string
		contents string
	}{
		{"unsupported version", "version: 2\nsagas:\n  - name: a\n"},
		{"no sagas", "version: 1\n"},
		{"duplicate saga", "version: 1\nsagas:\n  - name: a\n  - name: A\n"},
		{"character without health", "version: 1\nsagas:\n  - name: a\ncharacters:\n  - name: elder\n"},
		{"dangling dialogue link", "version: 1\nsagas:\n  - name: a\ncharacters:\n  - name: elder\n    health: 1\n    dialogue:\n      - name: greet\n        next: [nowhere]\n"},
		{"reward of unknown item", "version: 1\nsagas:\n  - name: a\ncharacters:\n  - name: elder\n    health: 1\n    dialogue:\n      - name: greet\n        reward:\n          items:\n            relic: 1\n"},
		{"stock of unknown item", "version: 1\nsagas:\n  - name: a\ncharacters:\n  - name: m\n    health: 1\n    stock:\n      relic: 1\n"},
		{"quest without objectives", "version: 1\nsagas:\n  - name: a\nquests:\n  - name: q\n"},
		{"trigger spawns unknown character", "version: 1\nsagas:\n  - name: a\ntriggers:\n  - name: t\n    spawns: [ghost]\n"},
		{"unknown criterion", "version: 1\nsagas:\n  - name: a\nachievements:\n  - name: x\n    criterion: jumps\n    threshold: 1\n"},
		{"zero threshold", "version: 1\nsagas:\n  - name: a\nachievements:\n  - name: x\n    criterion: battles_won\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempCatalog(t, tt.contents)
			if _, err := LoadCatalog(path); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestCatalogLookups(t *testing.T) {
	catalog, err := LoadCatalog(filepath.Join("testdata", "catalog.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if _, ok := catalog.SagaByName("PROLOGUE"); !ok {
		t.Fatalf("expected case-insensitive saga lookup")
	}
	elder, ok := catalog.CharacterByName("Elder")
	if !ok {
		t.Fatalf("expected elder")
	}
	entry, ok := elder.Entry()
	if !ok || entry.Name != "greet" {
		t.Fatalf("expected greet entry, got %+v", entry)
	}
	if !entry.Leads("quest_offer") || entry.Leads("greet") {
		t.Fatalf("unexpected dialogue links")
	}
	farewell, ok := elder.Node("farewell")
	if !ok || !farewell.Terminal {
		t.Fatalf("expected terminal farewell")
	}
	if !farewell.Reward.Empty() {
		t.Fatalf("expected empty reward on farewell")
	}

	quest, ok := catalog.QuestByName("clear_the_road")
	if !ok {
		t.Fatalf("expected quest")
	}
	if obj, ok := quest.Objective("goblins"); !ok || obj.Target != 2 {
		t.Fatalf("unexpected objective %+v", obj)
	}
	if item, ok := catalog.ItemByName("diamond"); !ok || !item.Rare {
		t.Fatalf("expected rare diamond")
	}
	if tr, ok := catalog.TriggerByName("mountain_gate"); !ok || len(tr.Spawns) != 1 {
		t.Fatalf("unexpected trigger %+v", tr)
	}
	if _, ok := catalog.CharacterByName("dragon"); ok {
		t.Fatalf("unexpected dragon")
	}
}

func writeTempCatalog(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp catalog: %v", err)
	}
	return path
}
