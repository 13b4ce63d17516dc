package encryption

import "context"

// KeyRecordStore persists encrypted key records keyed by user id.
// The vault never hands plaintext key material to a store.
type KeyRecordStore interface {
	// GetKeyRecord returns nil if the user has no record (this is not an error)
	GetKeyRecord(ctx context.Context, userID string) (*EncryptedKeyRecord, error)
	// SaveKeyRecord overwrites any prior record. Implementations whose access
	// policy refuses the write return an error wrapping ErrPolicyRejected.
	SaveKeyRecord(ctx context.Context, userID string, record *EncryptedKeyRecord) error
}

// Auditor receives security relevant vault events
type Auditor interface {
	RecordSecurityEvent(ctx context.Context, userID string, eventType string, data map[string]any)
}

type nopAuditor struct{}

var NopAuditor Auditor = &nopAuditor{}

func (n *nopAuditor) RecordSecurityEvent(ctx context.Context, userID string, eventType string, data map[string]any) {
}

// LockoutNotifier is told when a user's failures reach the lockout threshold
type LockoutNotifier interface {
	NotifyLockout(ctx context.Context, userID string, failureCount int) error
}

type nopLockoutNotifier struct{}

var NopLockoutNotifier LockoutNotifier = &nopLockoutNotifier{}

func (n *nopLockoutNotifier) NotifyLockout(ctx context.Context, userID string, failureCount int) error {
	return nil
}

// audit event types emitted by the vault
const (
	EventLoginSuccess      = "LOGIN_SUCCESS"
	EventLoginFailure      = "LOGIN_FAILURE"
	EventKeyGeneration     = "KEY_GENERATION"
	EventDecryptionFailure = "DECRYPTION_FAILURE"
	EventRateLimitHit      = "RATE_LIMIT_HIT"
	EventPasswordChange    = "PASSWORD_CHANGE"
)
