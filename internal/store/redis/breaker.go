package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned while the breaker rejects calls.
var ErrBreakerOpen = errors.New("redis circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls rejected until the cool-down elapses
	StateHalfOpen              // one probe call allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker stops hammering an unreachable Redis. After maxFailures
// consecutive errors it opens for coolDown, then lets one probe through;
// a successful probe closes it again.
type Breaker struct {
	mu          sync.Mutex
	state       State
	failures    int
	maxFailures int
	coolDown    time.Duration
	openedAt    time.Time
	now         func() time.Time

	// OnStateChange, if set, is called with the lock held.
	OnStateChange func(from, to State)
}

// NewBreaker creates a closed breaker.
func NewBreaker(maxFailures int, coolDown time.Duration) *Breaker {
	if maxFailures <= 0 {
		maxFailures = 3
	}
	return &Breaker{maxFailures: maxFailures, coolDown: coolDown, now: time.Now}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	b.mu.Lock()
	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.coolDown {
			b.mu.Unlock()
			return ErrBreakerOpen
		}
		b.setState(StateHalfOpen)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.failures = 0
		if b.state != StateClosed {
			b.setState(StateClosed)
		}
		return nil
	}
	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.maxFailures {
		b.openedAt = b.now()
		b.setState(StateOpen)
	}
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) setState(to State) {
	from := b.state
	b.state = to
	if b.OnStateChange != nil && from != to {
		b.OnStateChange(from, to)
	}
}
