// Package resilience provides the circuit breaker and retry decorators that
// guard storage and upstream external-service calls.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seojun-park/sheetwise/internal/common"
)

// ErrOpen is returned when a call is rejected because the breaker is open.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// StateChangeHook observes breaker state transitions.
type StateChangeHook func(name string, from, to State)

// RejectHook observes rejected calls while the breaker is open.
type RejectHook func(name string)

type outcome struct {
	failure bool
	slow    bool
}

// Breaker is a rolling-window circuit breaker. It opens when the failure
// rate or the slow-call rate over the last WindowSize calls crosses its
// threshold, rejects calls for the cooldown period, then admits a bounded
// number of half-open trial calls before closing again.
type Breaker struct {
	name string
	cfg  common.BreakerConfig
	now  func() time.Time

	onStateChange StateChangeHook
	onReject      RejectHook

	mu       sync.Mutex
	state    State
	window   []outcome
	head     int
	count    int
	openedAt time.Time

	trialInFlight int
	trialSuccess  int
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

// WithStateChangeHook installs an observer for state transitions.
func WithStateChangeHook(hook StateChangeHook) Option {
	return func(b *Breaker) { b.onStateChange = hook }
}

// WithRejectHook installs an observer for rejected calls.
func WithRejectHook(hook RejectHook) Option {
	return func(b *Breaker) { b.onReject = hook }
}

// NewBreaker creates a closed breaker with the given settings.
func NewBreaker(name string, cfg common.BreakerConfig, opts ...Option) *Breaker {
	if cfg.WindowSize < 1 {
		cfg.WindowSize = 1
	}
	if cfg.HalfOpenCalls < 1 {
		cfg.HalfOpenCalls = 1
	}
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		window: make([]outcome, cfg.WindowSize),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the breaker's resource name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs fn under breaker accounting. A rejected call returns ErrOpen
// without invoking fn; otherwise fn's error and duration are recorded.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	start := b.now()
	err := fn(ctx)
	b.record(b.now().Sub(start), err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			b.reject()
			return ErrOpen
		}
		b.transition(StateHalfOpen)
		b.trialInFlight = 1
		b.trialSuccess = 0
		return nil
	default: // StateHalfOpen
		if b.trialInFlight >= b.cfg.HalfOpenCalls {
			b.reject()
			return ErrOpen
		}
		b.trialInFlight++
		return nil
	}
}

func (b *Breaker) record(elapsed time.Duration, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := outcome{
		failure: err != nil,
		slow:    b.cfg.SlowCallDuration > 0 && elapsed >= b.cfg.SlowCallDuration,
	}
	b.window[b.head] = o
	b.head = (b.head + 1) % b.cfg.WindowSize
	if b.count < b.cfg.WindowSize {
		b.count++
	}

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight--
		if o.failure {
			b.open()
			return
		}
		b.trialSuccess++
		if b.trialSuccess >= b.cfg.HalfOpenCalls {
			b.transition(StateClosed)
		}
	case StateClosed:
		// Rates are evaluated only on a full window.
		if b.count < b.cfg.WindowSize {
			return
		}
		failures, slow := 0, 0
		for _, w := range b.window {
			if w.failure {
				failures++
			}
			if w.slow {
				slow++
			}
		}
		n := float64(b.cfg.WindowSize)
		if float64(failures)/n >= b.cfg.FailureRate || float64(slow)/n >= b.cfg.SlowRate {
			b.open()
		}
	}
}

// open transitions to the open state and clears the window so the next
// closed period starts from fresh accounting.
func (b *Breaker) open() {
	b.transition(StateOpen)
	b.openedAt = b.now()
	b.window = make([]outcome, b.cfg.WindowSize)
	b.head = 0
	b.count = 0
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

func (b *Breaker) reject() {
	if b.onReject != nil {
		b.onReject(b.name)
	}
}

// Failures returns the failure count in the current window, for tests and
// degraded-quality reporting.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	failures := 0
	for i := 0; i < b.count; i++ {
		if b.window[i].failure {
			failures++
		}
	}
	return failures
}
