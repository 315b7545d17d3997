// Package achievesync forwards newly unlocked achievements to an external
// achievement platform. Delivery is best-effort: failures are logged and
// counted, never returned to the command that caused the unlock.
package achievesync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ambientsaga/internal/config"
	"ambientsaga/internal/observe"
)

// Notifier is the achievement platform collaborator.
type Notifier interface {
	NotifyUnlocked(ctx context.Context, avatarID, achievementRef string) error
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(ctx context.Context, avatarID, achievementRef string) error

func (f NotifierFunc) NotifyUnlocked(ctx context.Context, avatarID, achievementRef string) error {
	return f(ctx, avatarID, achievementRef)
}

// LogNotifier records unlocks in the log. It is used when no platform is
// configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyUnlocked(ctx context.Context, avatarID, achievementRef string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "achievement unlocked", "avatar_id", avatarID, "achievement", achievementRef)
	return nil
}

type Options struct {
	Logger  *slog.Logger
	Metrics *observe.Metrics
	Breaker *Breaker
	// Timeout bounds each notification. Default: 5s.
	Timeout time.Duration
}

// Dispatcher delivers notifications on background goroutines.
type Dispatcher struct {
	notifier Notifier
	logger   *slog.Logger
	metrics  *observe.Metrics
	breaker  *Breaker
	timeout  time.Duration

	wg sync.WaitGroup
}

func NewDispatcher(n Notifier, opts Options) *Dispatcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Breaker == nil {
		opts.Breaker = NewBreaker(BreakerConfig{Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifier: n,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		breaker:  opts.Breaker,
		timeout:  opts.Timeout,
	}
}

// FromConfig builds a dispatcher from the sync section of the project
// config. It returns nil when sync is disabled; a nil *Dispatcher drops
// every notification.
func FromConfig(cfg config.SyncConfig, n Notifier, logger *slog.Logger, metrics *observe.Metrics) *Dispatcher {
	if !cfg.Enabled || n == nil {
		return nil
	}
	return NewDispatcher(n, Options{
		Logger:  logger,
		Metrics: metrics,
		Breaker: NewBreaker(BreakerConfig{
			MaxFailures:  cfg.MaxFailures,
			ResetTimeout: cfg.ResetTimeout,
			Logger:       logger,
		}),
		Timeout: cfg.Timeout,
	})
}

// Notify sends each ref on its own goroutine and returns immediately. The
// notifications are detached from ctx cancellation so an in-flight command
// finishing does not abort them.
func (d *Dispatcher) Notify(ctx context.Context, avatarID string, refs ...string) {
	if d == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, ref := range refs {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.send(base, avatarID, ref)
		}()
	}
}

func (d *Dispatcher) send(base context.Context, avatarID, ref string) {
	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	err := d.breaker.Execute(func() (err error) {
		// A panicking notifier counts as a failed delivery.
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("notifier panicked: %v", r)
			}
		}()
		return d.notifier.NotifyUnlocked(ctx, avatarID, ref)
	})
	if err == nil {
		return
	}
	d.logger.Warn("achievement sync failed", "avatar_id", avatarID, "achievement", ref, "err", err)
	if d.metrics != nil {
		d.metrics.RecordSyncFailure(ctx)
	}
}

// Wait blocks until every pending notification has finished.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
