package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RateLimitEntry is the failure state of a single user
type RateLimitEntry struct {
	FailureCount int
	LastFailure  time.Time
}

// RateLimiter guards password-based key unlocks against brute forcing.
// Check must be called before every decrypt attempt, RecordFailure after every
// failed one and Clear after every successful one.
type RateLimiter interface {
	// Check returns a *RateLimitedError if the user is currently locked out
	Check(userID string) error
	// RecordFailure records a failed attempt and returns the new failure count
	RecordFailure(userID string) int
	// Clear forgets all failures of the user
	Clear(userID string)
	// IsLockingCount reports whether failureCount puts the user into lockout
	IsLockingCount(failureCount int) bool
}

// RateLimitSettings holds the lockout policy
type RateLimitSettings struct {
	MaxAttempts     int           // failures that lock the user out
	LockoutDuration time.Duration // measured from the last failure
}

// DefaultRateLimitSettings returns 5 attempts and a 15 minute lockout.
func DefaultRateLimitSettings() RateLimitSettings {
	return RateLimitSettings{
		MaxAttempts:     5,
		LockoutDuration: 15 * time.Minute,
	}
}

// RateLimitedError is returned while a user is locked out
type RateLimitedError struct {
	UserID           string
	RemainingMinutes int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many failed attempts, try again in %d minutes", e.RemainingMinutes)
}

func IsRateLimitedError(err error) bool {
	var target *RateLimitedError
	return errors.As(err, &target)
}

func NewRateLimitedError(userID string, remainingMinutes int) error {
	return &RateLimitedError{UserID: userID, RemainingMinutes: remainingMinutes}
}

type nopRateLimiter struct{}

// NopRateLimiter never locks anybody out
var NopRateLimiter RateLimiter = &nopRateLimiter{}

func (n *nopRateLimiter) Check(userID string) error { return nil }
func (n *nopRateLimiter) RecordFailure(userID string) int { return 0 }
func (n *nopRateLimiter) Clear(userID string) {}
func (n *nopRateLimiter) IsLockingCount(failureCount int) bool { return false }

// MemoryRateLimiter keeps failure entries in process memory. Entries are not
// shared across processes; each daemon enforces its own lockout.
type MemoryRateLimiter struct {
	settings RateLimitSettings
	now      func() time.Time
	entries  map[string]*RateLimitEntry
	mu       sync.Mutex
}

// NewMemoryRateLimiter creates an in-memory limiter. A nil clock means time.Now.
func NewMemoryRateLimiter(settings RateLimitSettings, clock func() time.Time) *MemoryRateLimiter {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryRateLimiter{
		settings: settings,
		now:      clock,
		entries:  make(map[string]*RateLimitEntry),
	}
}

func (l *MemoryRateLimiter) IsLockingCount(failureCount int) bool {
	return l.settings.MaxAttempts > 0 && failureCount >= l.settings.MaxAttempts
}

// Check resets an expired lockout lazily; there is no timer.
func (l *MemoryRateLimiter) Check(userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[userID]
	if !ok {
		return nil
	}

	elapsed := l.now().Sub(entry.LastFailure)
	if elapsed >= l.settings.LockoutDuration {
		delete(l.entries, userID)
		return nil
	}

	if l.IsLockingCount(entry.FailureCount) {
		return NewRateLimitedError(userID, remainingMinutes(l.settings.LockoutDuration-elapsed))
	}

	return nil
}

// remainingMinutes rounds up to whole minutes
func remainingMinutes(remaining time.Duration) int {
	minutes := remaining / time.Minute
	if remaining%time.Minute != 0 {
		minutes++
	}
	return int(minutes)
}

func (l *MemoryRateLimiter) RecordFailure(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[userID]
	if !ok {
		entry = &RateLimitEntry{}
		l.entries[userID] = entry
	}

	entry.FailureCount++
	entry.LastFailure = l.now()

	return entry.FailureCount
}

func (l *MemoryRateLimiter) Clear(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, userID)
}

// Entry returns a copy of the user's entry, if any
func (l *MemoryRateLimiter) Entry(userID string) (RateLimitEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[userID]
	if !ok {
		return RateLimitEntry{}, false
	}
	return *entry, true
}
