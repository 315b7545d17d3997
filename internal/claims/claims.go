// Package claims checks client-reported activity against physical bounds
// before it is recorded.
package claims

import (
	"fmt"
	"math"
	"time"

	"ambientsaga/internal/config"
	"ambientsaga/internal/sagaerr"
	"ambientsaga/internal/txn"
)

type Kind string

const (
	KindMining   Kind = "mining"
	KindBuilding Kind = "building"
	KindToolWear Kind = "tool_wear"
	KindMovement Kind = "movement"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindMining, KindBuilding, KindToolWear, KindMovement:
		return k, nil
	}
	return "", sagaerr.Newf(sagaerr.CodeValidation, "unknown claim kind %q", s)
}

// Check identifies which bound a rejected claim broke.
type Check string

const (
	CheckRate     Check = "RATE_EXCEEDED"
	CheckMaterial Check = "MATERIAL_EXCEEDED"
	CheckSpeed    Check = "SPEED_EXCEEDED"
	CheckWindow   Check = "INVALID_WINDOW"
)

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Distance(o Vec3) float64 {
	dx, dy, dz := o.X-v.X, o.Y-v.Y, o.Z-v.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Claim is one batch of activity reported by a client over a time window.
type Claim struct {
	Kind    Kind
	Count   int
	Elapsed time.Duration
	// Distribution breaks mined blocks down by block type.
	Distribution map[string]int
	RareCount    int
	// Materials is what a building claim consumed from the inventory.
	Materials map[string]int
	Start     Vec3
	End       Vec3
}

// Limits are per-second ceilings.
type Limits struct {
	MiningRate   float64
	BuildingRate float64
	ToolWearRate float64
	MaxSpeed     float64
}

func LimitsFromConfig(cfg config.AntiCheatConfig) Limits {
	return Limits{
		MiningRate:   cfg.MiningRate,
		BuildingRate: cfg.BuildingRate,
		ToolWearRate: cfg.ToolWearRate,
		MaxSpeed:     cfg.MaxSpeed,
	}
}

type Validator struct {
	limits Limits
}

func NewValidator(limits Limits) Validator {
	return Validator{limits: limits}
}

func (v Validator) rateLimit(kind Kind) (float64, bool) {
	switch kind {
	case KindMining:
		return v.limits.MiningRate, true
	case KindBuilding:
		return v.limits.BuildingRate, true
	case KindToolWear:
		return v.limits.ToolWearRate, true
	}
	return 0, false
}

// Validate checks a claim against the rate, material, and speed bounds.
// inventory is the avatar's last-known inventory. Violations are returned
// as anti-cheat errors whose metadata names the failed check.
func (v Validator) Validate(c Claim, inventory map[string]int) error {
	if _, err := ParseKind(string(c.Kind)); err != nil {
		return err
	}
	if c.Count < 0 || c.RareCount < 0 || c.RareCount > c.Count {
		return sagaerr.Newf(sagaerr.CodeValidation, "claim counts out of range: count=%d rare=%d", c.Count, c.RareCount)
	}
	if len(c.Distribution) > 0 {
		total := 0
		for _, n := range c.Distribution {
			if n < 0 {
				return sagaerr.New(sagaerr.CodeValidation, "distribution counts must not be negative")
			}
			total += n
		}
		if total != c.Count {
			return sagaerr.Newf(sagaerr.CodeValidation, "distribution totals %d, claim count is %d", total, c.Count)
		}
	}
	if c.Elapsed <= 0 {
		return violation(CheckWindow, c.Kind, "elapsed window must be positive, got %s", c.Elapsed)
	}
	seconds := c.Elapsed.Seconds()

	if limit, ok := v.rateLimit(c.Kind); ok {
		rate := float64(c.Count) / seconds
		if rate > limit {
			return violation(CheckRate, c.Kind, "%.2f per second exceeds %.2f", rate, limit).
				WithMetadata("observed", txn.FormatFloat(rate), "limit", txn.FormatFloat(limit))
		}
	}

	if c.Kind == KindBuilding {
		for _, item := range sortedKeys(c.Materials) {
			need := c.Materials[item]
			if have := inventory[item]; need > have {
				return violation(CheckMaterial, c.Kind, "consumed %d %s, inventory holds %d", need, item, have).
					WithMetadata("item", item)
			}
		}
	}

	speed := c.Start.Distance(c.End) / seconds
	if speed > v.limits.MaxSpeed {
		return violation(CheckSpeed, c.Kind, "moved %.2f blocks per second, limit %.2f", speed, v.limits.MaxSpeed).
			WithMetadata("observed", txn.FormatFloat(speed), "limit", txn.FormatFloat(v.limits.MaxSpeed))
	}
	return nil
}

func violation(check Check, kind Kind, format string, args ...any) *sagaerr.Error {
	return sagaerr.Newf(sagaerr.CodeAntiCheat, "%s: %s", check, fmt.Sprintf(format, args...)).
		WithMetadata("check", string(check), "kind", string(kind))
}

// Summarize renders an accepted claim as an ActivityClaimed payload.
func Summarize(c Claim) txn.Payload {
	rarePct := 0.0
	if c.Count > 0 {
		rarePct = float64(c.RareCount) * 100 / float64(c.Count)
	}
	p := txn.Payload{
		txn.KeyClaimKind: string(c.Kind),
		txn.KeyCount:     txn.Itoa(c.Count),
		txn.KeyElapsedMS: txn.Itoa(int(c.Elapsed.Milliseconds())),
		txn.KeyRarePct:   txn.FormatFloat(rarePct),
		txn.KeyDistance:  txn.FormatFloat(c.Start.Distance(c.End)),
	}
	if len(c.Distribution) > 0 {
		p[txn.KeyDistrib] = txn.EncodeCounts(c.Distribution)
	}
	if c.Kind == KindBuilding && len(c.Materials) > 0 {
		p[txn.KeyMaterials] = txn.EncodeCounts(c.Materials)
	}
	return p
}
