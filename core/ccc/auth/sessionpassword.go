package auth

import (
	"context"
	"sync"
	"time"

	"github.com/awnumar/memguard"
)

// SessionPasswordStore holds the signed-in user's password for a limited time.
// The plaintext only exists in a memguard enclave between Set and Clear.
type SessionPasswordStore struct {
	enclave   *memguard.Enclave
	expiresAt time.Time
	now       func() time.Time
	mu        sync.Mutex
}

// NewSessionPasswordStore creates an empty store. A nil clock means time.Now.
func NewSessionPasswordStore(clock func() time.Time) *SessionPasswordStore {
	if clock == nil {
		clock = time.Now
	}
	return &SessionPasswordStore{now: clock}
}

// Set replaces the stored password. It expires ttl from now.
// An empty password clears the store.
func (s *SessionPasswordStore) Set(password string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if password == "" || ttl <= 0 {
		s.clearLocked()
		return
	}

	// NewEnclave wipes the source buffer
	s.enclave = memguard.NewEnclave([]byte(password))
	s.expiresAt = s.now().Add(ttl)
}

// Get returns the password if one is set and not expired.
// An expired password is purged on access.
func (s *SessionPasswordStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil {
		return "", false
	}
	if s.now().After(s.expiresAt) {
		s.clearLocked()
		return "", false
	}

	buf, err := s.enclave.Open()
	if err != nil {
		s.clearLocked()
		return "", false
	}
	defer buf.Destroy()

	// copy before the locked buffer is destroyed
	return string(buf.Bytes()), true
}

// ExpiresAt returns the expiry of the current password, or the zero time.
func (s *SessionPasswordStore) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil {
		return time.Time{}
	}
	return s.expiresAt
}

// Clear drops the password.
func (s *SessionPasswordStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clearLocked()
}

// Sweep purges an expired password and reports whether it did.
func (s *SessionPasswordStore) Sweep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enclave == nil || !s.now().After(s.expiresAt) {
		return false
	}
	s.clearLocked()
	return true
}

func (s *SessionPasswordStore) clearLocked() {
	s.enclave = nil
	s.expiresAt = time.Time{}
}

// RunExpirationSweeper calls store.Sweep every interval until ctx is done.
// onExpire runs after a sweep purged the password; it may be nil.
func RunExpirationSweeper(ctx context.Context, store *SessionPasswordStore, interval time.Duration, onExpire func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if store.Sweep() && onExpire != nil {
				onExpire()
			}
		}
	}
}
