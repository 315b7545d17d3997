package claims

import (
	"errors"
	"testing"
	"time"

	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

var testLimits = Limits{MiningRate: 10, BuildingRate: 8, ToolWearRate: 20, MaxSpeed: 12}

func TestValidateRejections(t *testing.T) {
	v := NewValidator(testLimits)
	tests := []struct {
		name      string
		claim     Claim
		inventory map[string]int
		check     Check
	}{
		{
			name:  "500 blocks in one second",
			claim: Claim{Kind: KindMining, Count: 500, Elapsed: time.Second},
			check: CheckRate,
		},
		{
			name:  "zero window",
			claim: Claim{Kind: KindMining, Count: 1},
			check: CheckWindow,
		},
		{
			name:      "building beyond inventory",
			claim:     Claim{Kind: KindBuilding, Count: 4, Elapsed: time.Second, Materials: map[string]int{"plank": 4}},
			inventory: map[string]int{"plank": 3},
			check:     CheckMaterial,
		},
		{
			name:  "teleport",
			claim: Claim{Kind: KindMovement, Elapsed: time.Second, End: Vec3{X: 30, Y: 0, Z: 40}},
			check: CheckSpeed,
		},
		{
			name:  "tool wear rate",
			claim: Claim{Kind: KindToolWear, Count: 50, Elapsed: 2 * time.Second},
			check: CheckRate,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.claim, tt.inventory)
			if !errors.Is(err, sagaerr.ErrAntiCheat) {
				t.Fatalf("expected anti-cheat violation, got %v", err)
			}
			if got := sagaerr.Metadata(err)["check"]; got != string(tt.check) {
				t.Fatalf("expected check %s, got %s", tt.check, got)
			}
		})
	}
}

func TestValidateAccepts(t *testing.T) {
	v := NewValidator(testLimits)
	claims := []struct {
		claim     Claim
		inventory map[string]int
	}{
		{Claim{Kind: KindMining, Count: 100, Elapsed: 10 * time.Second, Distribution: map[string]int{"stone": 98, "diamond": 2}, RareCount: 2}, nil},
		{Claim{Kind: KindBuilding, Count: 3, Elapsed: time.Second, Materials: map[string]int{"plank": 3}}, map[string]int{"plank": 3}},
		{Claim{Kind: KindMovement, Elapsed: 10 * time.Second, Start: Vec3{X: 0}, End: Vec3{X: 60, Z: 80}}, nil},
	}
	for _, c := range claims {
		if err := v.Validate(c.claim, c.inventory); err != nil {
			t.Fatalf("expected %s claim to pass, got %v", c.claim.Kind, err)
		}
	}
}

func TestValidateMalformed(t *testing.T) {
	v := NewValidator(testLimits)
	tests := []Claim{
		{Kind: "flying", Count: 1, Elapsed: time.Second},
		{Kind: KindMining, Count: -1, Elapsed: time.Second},
		{Kind: KindMining, Count: 2, RareCount: 3, Elapsed: time.Second},
		{Kind: KindMining, Count: 5, Elapsed: time.Second, Distribution: map[string]int{"stone": 4}},
	}
	for _, c := range tests {
		if err := v.Validate(c, nil); !errors.Is(err, sagaerr.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", c, err)
		}
	}
}

func TestSummarize(t *testing.T) {
	c := Claim{
		Kind:         KindMining,
		Count:        400,
		Elapsed:      50 * time.Second,
		Distribution: map[string]int{"stone": 390, "diamond": 10},
		RareCount:    10,
		Start:        Vec3{X: 1, Y: 2, Z: 3},
		End:          Vec3{X: 4, Y: 6, Z: 3},
	}
	p := Summarize(c)
	want := txn.Payload{
		txn.KeyClaimKind: "mining",
		txn.KeyCount:     "400",
		txn.KeyElapsedMS: "50000",
		txn.KeyRarePct:   "2.50",
		txn.KeyDistance:  "5.00",
		txn.KeyDistrib:   "diamond=10,stone=390",
	}
	if len(p) != len(want) {
		t.Fatalf("unexpected payload %v", p)
	}
	for k, v := range want {
		if p[k] != v {
			t.Fatalf("payload[%s] = %q, want %q", k, p[k], v)
		}
	}
}
