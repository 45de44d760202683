package cooldown

import (
	"sync"
	"time"
)

// DefaultWindow is the minimum time between two successful generations by one user.
const DefaultWindow = 60 * time.Second

// Decision is the outcome of an admission check.
type Decision struct {
	Admitted bool
	// Remaining is the wait left on the user's window when denied.
	Remaining time.Duration
	// InFlight is set when the user already has an admitted attempt that has not finished.
	InFlight bool
}

// RemainingSeconds is Remaining rounded down to whole seconds.
func (d Decision) RemainingSeconds() int64 {
	return int64(d.Remaining / time.Second)
}

// Limiter tracks the last successful use per user. Entries live for the whole process.
//
// Admit and the later RecordUse/Release form a reservation: while a user's attempt is in
// flight, further Admit calls for that user are denied, so two concurrent requests can never
// both pass the check before either records use.
type Limiter struct {
	window   time.Duration
	mu       sync.Mutex
	lastUse  map[string]time.Time
	inFlight map[string]bool
}

func New(window time.Duration) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		window:   window,
		lastUse:  make(map[string]time.Time),
		inFlight: make(map[string]bool),
	}
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

// Admit decides whether userID may start a generation at now. An admitted caller must
// finish with exactly one of RecordUse or Release.
func (l *Limiter) Admit(userID string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	if remaining := l.remainingLocked(userID, now); remaining > 0 {
		return Decision{Remaining: remaining}
	}
	if l.inFlight[userID] {
		return Decision{Remaining: l.window, InFlight: true}
	}

	l.inFlight[userID] = true
	return Decision{Admitted: true}
}

// RecordUse starts the user's window at now and ends the in-flight attempt. Timestamps are
// never moved backwards.
func (l *Limiter) RecordUse(userID string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.inFlight, userID)
	if last, ok := l.lastUse[userID]; ok && !now.After(last) {
		return
	}
	l.lastUse[userID] = now
}

// Release ends an in-flight attempt without consuming the user's window.
func (l *Limiter) Release(userID string) {
	l.mu.Lock()
	delete(l.inFlight, userID)
	l.mu.Unlock()
}

// Remaining reports the wait left for userID at now, zero when a request would be admitted
// on time alone.
func (l *Limiter) Remaining(userID string, now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remainingLocked(userID, now)
}

func (l *Limiter) remainingLocked(userID string, now time.Time) time.Duration {
	last, ok := l.lastUse[userID]
	if !ok {
		return 0
	}
	elapsed := now.Sub(last)
	if elapsed >= l.window {
		return 0
	}
	return l.window - elapsed
}

// Len is the number of users with a recorded use.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lastUse)
}
