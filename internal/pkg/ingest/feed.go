package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// State is the lifecycle of a Feed.
type State int32

const (
	StateIdle State = iota
	StateInFlight
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateInFlight:
		return "in-flight"
	case StateBackoff:
		return "backoff-waiting"
	default:
		return "idle"
	}
}

// FeedConfig wires a Feed. Load returns the value and the name of the source
// that produced it.
type FeedConfig[T any] struct {
	Name      string
	Load      func(ctx context.Context) (T, string, error)
	OnSuccess func(v T, source string)
	OnError   func(err error, nextRetry time.Time)
	BackOff   backoff.BackOff
	Clock     Clock
	Logger    *slog.Logger
}

// Feed polls one upstream resource. At most one load runs at a time: a
// Load issued while another is in flight is dropped, not queued. A failed
// load schedules exactly one retry; a newer failure replaces the pending
// retry and a success cancels it.
type Feed[T any] struct {
	cfg      FeedConfig[T]
	inFlight atomic.Bool
	state    atomic.Int32

	mu      sync.Mutex
	ctx     context.Context
	timer   Timer
	stopped bool
}

// NewFeed creates an idle Feed. A nil BackOff retries every 15s.
func NewFeed[T any](cfg FeedConfig[T]) *Feed[T] {
	if cfg.BackOff == nil {
		cfg.BackOff = backoff.NewConstantBackOff(15 * time.Second)
	}
	if cfg.Clock == nil {
		cfg.Clock = RealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.OnSuccess == nil {
		cfg.OnSuccess = func(T, string) {}
	}
	if cfg.OnError == nil {
		cfg.OnError = func(error, time.Time) {}
	}
	return &Feed[T]{cfg: cfg, ctx: context.Background()}
}

// Name returns the feed name used in logs and metrics.
func (f *Feed[T]) Name() string { return f.cfg.Name }

// State returns the current lifecycle state.
func (f *Feed[T]) State() State { return State(f.state.Load()) }

// Bind sets the context used by scheduled retries.
func (f *Feed[T]) Bind(ctx context.Context) {
	f.mu.Lock()
	f.ctx = ctx
	f.stopped = false
	f.mu.Unlock()
}

// Load runs one load. It reports false when the load was dropped because
// another one was in flight.
func (f *Feed[T]) Load(ctx context.Context) bool {
	if !f.inFlight.CompareAndSwap(false, true) {
		droppedLoads.WithLabelValues(f.cfg.Name).Inc()
		f.cfg.Logger.Debug("load dropped, already in flight", "feed", f.cfg.Name)
		return false
	}
	defer f.inFlight.Store(false)

	f.state.Store(int32(StateInFlight))

	v, source, err := f.cfg.Load(ctx)
	if err != nil {
		next, ok := f.scheduleRetry()
		if !ok {
			f.state.Store(int32(StateIdle))
		}
		f.cfg.Logger.Warn("load failed", "feed", f.cfg.Name, "err", err, "next_retry", next)
		f.cfg.OnError(err, next)
		return true
	}

	f.cancelRetry()
	f.cfg.BackOff.Reset()
	f.state.Store(int32(StateIdle))
	f.cfg.OnSuccess(v, source)
	return true
}

// Stop cancels a pending retry and prevents new ones.
func (f *Feed[T]) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

// RetryPending reports whether a retry timer is armed.
func (f *Feed[T]) RetryPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timer != nil
}

func (f *Feed[T]) scheduleRetry() (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.stopped {
		return time.Time{}, false
	}
	d := f.cfg.BackOff.NextBackOff()
	if d == backoff.Stop {
		return time.Time{}, false
	}

	var t Timer
	ctx := f.ctx
	t = f.cfg.Clock.AfterFunc(d, func() {
		f.mu.Lock()
		if f.timer == t {
			f.timer = nil
		}
		f.mu.Unlock()
		f.Load(ctx)
	})
	f.timer = t
	f.state.Store(int32(StateBackoff))
	retriesQueued.WithLabelValues(f.cfg.Name).Inc()
	return f.cfg.Clock.Now().Add(d), true
}

func (f *Feed[T]) cancelRetry() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}
