package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned when the breaker rejects a call without running it.
var ErrOpen = errors.New("circuit breaker is open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Clock abstracts time so state transitions can be tested deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// Settings tunes the breaker. Zero values fall back to the defaults used for
// payment gateway calls.
type Settings struct {
	// WindowSize is the number of recent calls the closed state evaluates.
	WindowSize int
	// MinimumCalls must be recorded before failure rates are evaluated.
	MinimumCalls int
	// FailureRateThreshold opens the breaker when reached, e.g. 0.5 for 50%.
	FailureRateThreshold float64
	// SlowCallRateThreshold opens the breaker when reached.
	SlowCallRateThreshold float64
	// SlowCallDuration marks a call as slow once it takes at least this long.
	SlowCallDuration time.Duration
	// OpenStateWait is how long the breaker stays open before probing.
	OpenStateWait time.Duration
	// HalfOpenMaxCalls is the number of trial calls permitted while half open.
	HalfOpenMaxCalls int
	// Clock defaults to the system clock.
	Clock Clock
	// OnStateChange is invoked outside the hot path on every transition.
	OnStateChange func(from, to State)
}

func (s *Settings) applyDefaults() {
	if s.WindowSize <= 0 {
		s.WindowSize = 20
	}
	if s.MinimumCalls <= 0 {
		s.MinimumCalls = 5
	}
	if s.FailureRateThreshold <= 0 {
		s.FailureRateThreshold = 0.5
	}
	if s.SlowCallRateThreshold <= 0 {
		s.SlowCallRateThreshold = 0.5
	}
	if s.SlowCallDuration <= 0 {
		s.SlowCallDuration = 2 * time.Second
	}
	if s.OpenStateWait <= 0 {
		s.OpenStateWait = 10 * time.Second
	}
	if s.HalfOpenMaxCalls <= 0 {
		s.HalfOpenMaxCalls = 3
	}
	if s.Clock == nil {
		s.Clock = systemClock{}
	}
}

type outcome struct {
	failed bool
	slow   bool
}

// Breaker is an explicit three-state circuit breaker with a count-based
// sliding window. Slow calls count against the window even when they succeed.
type Breaker struct {
	mtx      sync.Mutex
	settings Settings

	state     State
	openUntil time.Time

	// closed-state ring buffer
	window []outcome
	cursor int
	filled int

	// half-open trial bookkeeping
	permits int
	trials  []outcome
}

// New builds a breaker starting in the closed state.
func New(settings Settings) *Breaker {
	settings.applyDefaults()
	return &Breaker{
		settings: settings,
		state:    StateClosed,
		window:   make([]outcome, settings.WindowSize),
		trials:   make([]outcome, 0, settings.HalfOpenMaxCalls),
	}
}

// State reports the current position, promoting open to half-open once the
// wait elapses.
func (b *Breaker) State() State {
	b.mtx.Lock()
	defer b.mtx.Unlock()
	if b.state == StateOpen && !b.settings.Clock.Now().Before(b.openUntil) {
		return StateHalfOpen
	}
	return b.state
}

// Execute runs fn under the breaker. When the breaker is open the call is
// rejected with ErrOpen without running fn. The call's duration and error
// feed the sliding window.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.acquire(); err != nil {
		return err
	}
	start := b.settings.Clock.Now()
	err := fn()
	elapsed := b.settings.Clock.Now().Sub(start)
	b.record(err, elapsed)
	return err
}

func (b *Breaker) acquire() error {
	b.mtx.Lock()

	if b.state == StateOpen {
		if b.settings.Clock.Now().Before(b.openUntil) {
			b.mtx.Unlock()
			return ErrOpen
		}
		b.transition(StateHalfOpen)
	}

	if b.state == StateHalfOpen {
		if b.permits <= 0 {
			b.mtx.Unlock()
			return ErrOpen
		}
		b.permits--
	}

	b.mtx.Unlock()
	return nil
}

func (b *Breaker) record(err error, elapsed time.Duration) {
	o := outcome{
		failed: err != nil,
		slow:   elapsed >= b.settings.SlowCallDuration,
	}

	b.mtx.Lock()

	switch b.state {
	case StateClosed:
		b.window[b.cursor] = o
		b.cursor = (b.cursor + 1) % len(b.window)
		if b.filled < len(b.window) {
			b.filled++
		}
		if b.filled >= b.settings.MinimumCalls && b.thresholdBreached(b.window[:b.filled]) {
			b.trip()
		}
	case StateHalfOpen:
		b.trials = append(b.trials, o)
		if len(b.trials) >= b.settings.HalfOpenMaxCalls {
			if b.thresholdBreached(b.trials) {
				b.trip()
			} else {
				b.transition(StateClosed)
			}
		}
	case StateOpen:
		// A call admitted just before the breaker tripped; its outcome no
		// longer changes the decision.
	}

	b.mtx.Unlock()
}

func (b *Breaker) thresholdBreached(outcomes []outcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	var failed, slow int
	for _, o := range outcomes {
		if o.failed {
			failed++
		}
		if o.slow {
			slow++
		}
	}
	total := float64(len(outcomes))
	if float64(failed)/total >= b.settings.FailureRateThreshold {
		return true
	}
	return float64(slow)/total >= b.settings.SlowCallRateThreshold
}

// trip moves to open and arms the probe timer. Callers hold the mutex.
func (b *Breaker) trip() {
	b.openUntil = b.settings.Clock.Now().Add(b.settings.OpenStateWait)
	b.transition(StateOpen)
}

// transition resets per-state bookkeeping. Callers hold the mutex.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to

	switch to {
	case StateClosed:
		b.window = make([]outcome, b.settings.WindowSize)
		b.cursor = 0
		b.filled = 0
	case StateHalfOpen:
		b.permits = b.settings.HalfOpenMaxCalls
		b.trials = b.trials[:0]
	}

	if b.settings.OnStateChange != nil {
		go b.settings.OnStateChange(from, to)
	}
}
