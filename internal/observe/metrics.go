// Package observe holds the OpenTelemetry instruments and tracing helpers
// shared by the command pipeline and the CLI.
//
// Tests should build their own [Metrics] with [NewMetrics] and a manual
// reader instead of relying on [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "ambientsaga"

// Metrics holds the metric instruments recorded while executing commands.
type Metrics struct {
	// CommandDuration tracks command latency by command name and status.
	CommandDuration metric.Float64Histogram

	// Commands counts executed commands by name and status.
	Commands metric.Int64Counter

	// AntiCheatRejections counts rejected activity claims by check.
	AntiCheatRejections metric.Int64Counter

	// Replays counts folds by mode (full or incremental).
	Replays metric.Int64Counter

	// AchievementsUnlocked counts AchievementUnlocked transactions appended.
	AchievementsUnlocked metric.Int64Counter

	// SyncFailures counts failed achievement notifications.
	SyncFailures metric.Int64Counter
}

var latencyBuckets = []float64{
	0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.CommandDuration, err = m.Float64Histogram("ambientsaga.command.duration",
		metric.WithDescription("Latency of command execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("ambientsaga.commands",
		metric.WithDescription("Total commands by name and status."),
	); err != nil {
		return nil, err
	}
	if met.AntiCheatRejections, err = m.Int64Counter("ambientsaga.anticheat.rejections",
		metric.WithDescription("Total rejected activity claims by check."),
	); err != nil {
		return nil, err
	}
	if met.Replays, err = m.Int64Counter("ambientsaga.replays",
		metric.WithDescription("Total replays by mode."),
	); err != nil {
		return nil, err
	}
	if met.AchievementsUnlocked, err = m.Int64Counter("ambientsaga.achievements.unlocked",
		metric.WithDescription("Total achievements unlocked."),
	); err != nil {
		return nil, err
	}
	if met.SyncFailures, err = m.Int64Counter("ambientsaga.sync.failures",
		metric.WithDescription("Total failed achievement notifications."),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns metrics bound to the global meter provider.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordCommand records one command execution.
func (m *Metrics) RecordCommand(ctx context.Context, name, status string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("command", name),
		attribute.String("status", status),
	)
	m.CommandDuration.Record(ctx, elapsed.Seconds(), attrs)
	m.Commands.Add(ctx, 1, attrs)
}

func (m *Metrics) RecordAntiCheat(ctx context.Context, check string) {
	m.AntiCheatRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("check", check)))
}

func (m *Metrics) RecordReplay(ctx context.Context, mode string, n int64) {
	if n <= 0 {
		return
	}
	m.Replays.Add(ctx, n, metric.WithAttributes(attribute.String("mode", mode)))
}

func (m *Metrics) RecordUnlocked(ctx context.Context, achievement string) {
	m.AchievementsUnlocked.Add(ctx, 1, metric.WithAttributes(attribute.String("achievement", achievement)))
}

func (m *Metrics) RecordSyncFailure(ctx context.Context) {
	m.SyncFailures.Add(ctx, 1)
}
