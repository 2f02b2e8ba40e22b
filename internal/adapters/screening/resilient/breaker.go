package resilient

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned without calling the provider while the breaker
// is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the circuit breaker state.
type State int

const (
	StateClosed   State = iota // calls flow
	StateOpen                  // calls fail fast
	StateHalfOpen              // one probe call is allowed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker opens after maxFailures consecutive failures and lets a single
// probe through once cooldown has elapsed. A successful probe closes it, a
// failed one reopens it.
type Breaker struct {
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker creates a breaker. maxFailures <= 0 disables it.
func NewBreaker(maxFailures int, cooldown time.Duration) *Breaker {
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow reports whether a call may proceed. Every allowed call must be
// followed by exactly one Done or Release.
func (b *Breaker) Allow() error {
	if b.maxFailures <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Done records the outcome of an allowed call and returns the states before
// and after it.
func (b *Breaker) Done(failed bool) (from, to State) {
	if b.maxFailures <= 0 {
		return StateClosed, StateClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	from = b.state
	switch {
	case b.state == StateHalfOpen:
		b.probing = false
		if failed {
			b.trip()
		} else {
			b.state = StateClosed
			b.failures = 0
		}
	case !failed:
		b.failures = 0
	default:
		b.failures++
		if b.failures >= b.maxFailures {
			b.trip()
		}
	}
	return from, b.state
}

// Release ends an allowed call without judging the upstream. A half-open
// probe is given back so the next call probes again; counters are untouched.
func (b *Breaker) Release() {
	if b.maxFailures <= 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.probing = false
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.failures = 0
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
