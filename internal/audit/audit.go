// Package audit inspects stored saga logs for integrity problems without
// modifying them.
package audit

import (
	"context"
	"fmt"

	"ambientsaga/internal/config"
	"ambientsaga/internal/replay"
	"ambientsaga/internal/store"
	"ambientsaga/internal/txn"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeSequenceGap         = "sequence_gap"
	codeUnknownKind         = "unknown_kind"
	codeForeignTransaction  = "foreign_transaction"
	codeTimestampRegression = "timestamp_regression"
	codeMissingSagaStarted  = "missing_saga_started"
	codeUnknownReference    = "unknown_reference"
	codeDuplicateReward     = "duplicate_reward"
	codeReplayFailed        = "replay_failed"
)

type Issue struct {
	Severity   Severity
	Code       string
	Message    string
	InstanceID string
	Seq        uint64
	Kind       txn.Kind
}

type Report struct {
	Instances    int
	Transactions int
	Issues       []Issue
}

func (r *Report) HasErrors() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return true
		}
	}
	return false
}

// LogReader is the part of the store an audit needs.
type LogReader interface {
	ListInstances(ctx context.Context, avatarID string) ([]store.Instance, error)
	ReadAll(ctx context.Context, instanceID string) ([]txn.Transaction, error)
}

// Run audits every saga instance of an avatar. catalog may be nil, which
// skips reference checks.
func Run(ctx context.Context, r LogReader, catalog *config.Catalog, avatarID string) (*Report, error) {
	if r == nil {
		return nil, fmt.Errorf("log reader is required")
	}
	instances, err := r.ListInstances(ctx, avatarID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}

	report := &Report{}
	for _, inst := range instances {
		txs, err := r.ReadAll(ctx, inst.InstanceID)
		if err != nil {
			return nil, fmt.Errorf("read instance %s: %w", inst.InstanceID, err)
		}
		report.Instances++
		report.Transactions += len(txs)
		report.Issues = append(report.Issues, Check(inst, txs, catalog)...)
	}
	return report, nil
}

// Check audits one instance log.
func Check(inst store.Instance, txs []txn.Transaction, catalog *config.Catalog) []Issue {
	var issues []Issue
	add := func(severity Severity, code string, tx txn.Transaction, format string, args ...any) {
		issues = append(issues, Issue{
			Severity:   severity,
			Code:       code,
			Message:    fmt.Sprintf(format, args...),
			InstanceID: inst.InstanceID,
			Seq:        tx.Seq,
			Kind:       tx.Kind,
		})
	}

	if len(txs) > 0 && txs[0].Kind != txn.KindSagaStarted {
		add(SeverityWarn, codeMissingSagaStarted, txs[0], "log opens with %s", txs[0].Kind)
	}

	rewards := make(map[string]uint64)
	for i, tx := range txs {
		if want := uint64(i) + 1; tx.Seq != want {
			add(SeverityError, codeSequenceGap, tx, "expected seq %d, found %d", want, tx.Seq)
		}
		if !tx.Kind.Known() {
			add(SeverityError, codeUnknownKind, tx, "unknown kind %q", tx.Kind)
		}
		if tx.InstanceID != inst.InstanceID {
			add(SeverityError, codeForeignTransaction, tx, "belongs to instance %s", tx.InstanceID)
		}
		if inst.AvatarID != "" && tx.AvatarID != inst.AvatarID {
			add(SeverityWarn, codeForeignTransaction, tx, "written by avatar %s, instance belongs to %s", tx.AvatarID, inst.AvatarID)
		}
		if i > 0 && tx.Timestamp.Before(txs[i-1].Timestamp) {
			add(SeverityWarn, codeTimestampRegression, tx, "timestamp %s precedes seq %d", tx.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), txs[i-1].Seq)
		}

		if key := tx.Payload[txn.KeyRewardKey]; key != "" && tx.Kind.GrantsReward() {
			grant := string(tx.Kind) + "|" + key + "|" + tx.Payload[txn.KeyItem] + "|" + tx.Payload[txn.KeyTrait]
			if first, dup := rewards[grant]; dup {
				add(SeverityError, codeDuplicateReward, tx, "reward %s already granted at seq %d", key, first)
			} else {
				rewards[grant] = tx.Seq
			}
		}

		if catalog != nil {
			for _, ref := range unknownReferences(tx, catalog) {
				add(SeverityWarn, codeUnknownReference, tx, "%s", ref)
			}
		}
	}

	if _, err := replay.Fold(txs); err != nil {
		issues = append(issues, Issue{
			Severity:   SeverityError,
			Code:       codeReplayFailed,
			Message:    err.Error(),
			InstanceID: inst.InstanceID,
		})
	}
	return issues
}

func unknownReferences(tx txn.Transaction, catalog *config.Catalog) []string {
	var out []string
	if ref, ok := tx.Payload[txn.KeyCharacter]; ok {
		if _, found := catalog.CharacterByName(ref); !found {
			out = append(out, "unknown character "+ref)
		}
	}
	if ref, ok := tx.Payload[txn.KeyItem]; ok {
		if _, found := catalog.ItemByName(ref); !found {
			out = append(out, "unknown item "+ref)
		}
	}
	if ref, ok := tx.Payload[txn.KeyQuest]; ok {
		if _, found := catalog.QuestByName(ref); !found {
			out = append(out, "unknown quest "+ref)
		}
	}
	if ref, ok := tx.Payload[txn.KeyTrigger]; ok {
		if _, found := catalog.TriggerByName(ref); !found {
			out = append(out, "unknown trigger "+ref)
		}
	}
	if ref, ok := tx.Payload[txn.KeySaga]; ok {
		if _, found := catalog.SagaByName(ref); !found {
			out = append(out, "unknown saga "+ref)
		}
	}
	return out
}
