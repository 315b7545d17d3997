package achievesync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"ambientsaga/internal/config"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recordingNotifier) NotifyUnlocked(_ context.Context, avatarID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, avatarID+"/"+ref)
	return r.err
}

func (r *recordingNotifier) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Clone(r.calls)
	slices.Sort(out)
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherDeliversAll(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(n, Options{Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	d.Notify(ctx, "avatar-1", "first_blood", "chatterbox")
	cancel()
	d.Wait()

	want := []string{"avatar-1/chatterbox", "avatar-1/first_blood"}
	if got := n.Calls(); !slices.Equal(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	n := &recordingNotifier{err: errors.New("platform down")}
	d := NewDispatcher(n, Options{Logger: quietLogger()})
	d.Notify(context.Background(), "avatar-1", "first_blood")
	d.Wait()
	if len(n.Calls()) != 1 {
		t.Fatalf("expected one attempt, got %v", n.Calls())
	}
}

func TestDispatcherRecoversNotifierPanic(t *testing.T) {
	breaker := NewBreaker(BreakerConfig{MaxFailures: 1, Logger: quietLogger()})
	var calls int
	n := NotifierFunc(func(context.Context, string, string) error {
		calls++
		panic("platform client bug")
	})
	d := NewDispatcher(n, Options{Logger: quietLogger(), Breaker: breaker})

	d.Notify(context.Background(), "avatar-1", "first_blood")
	d.Wait()

	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if breaker.State() != StateOpen {
		t.Fatalf("state = %v, want open after a panicking delivery", breaker.State())
	}
}

func TestNilDispatcherIsNoop(t *testing.T) {
	var d *Dispatcher
	d.Notify(context.Background(), "avatar-1", "x")
	d.Wait()
}

func TestFromConfigDisabled(t *testing.T) {
	if d := FromConfig(config.SyncConfig{Enabled: false}, &recordingNotifier{}, quietLogger(), nil); d != nil {
		t.Fatalf("expected nil dispatcher when sync disabled")
	}
	if d := FromConfig(config.SyncConfig{Enabled: true}, &recordingNotifier{}, quietLogger(), nil); d == nil {
		t.Fatalf("expected dispatcher when sync enabled")
	}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(BreakerConfig{
		MaxFailures:  2,
		ResetTimeout: 10 * time.Second,
		Logger:       quietLogger(),
		now:          func() time.Time { return now },
	})
	fail := func() error { return errors.New("boom") }
	ok := func() error { return nil }

	_ = b.Execute(fail)
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
	_ = b.Execute(fail)
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open", b.State())
	}

	called := false
	if err := b.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Fatalf("fn called while open")
	}

	now = now.Add(11 * time.Second)
	if b.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open", b.State())
	}
	if err := b.Execute(fail); err == nil {
		t.Fatalf("expected trial failure")
	}
	if b.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed trial", b.State())
	}

	now = now.Add(11 * time.Second)
	if err := b.Execute(ok); err != nil {
		t.Fatalf("trial call: %v", err)
	}
	if b.State() != StateClosed {
		t.Fatalf("state = %v, want closed", b.State())
	}
}
