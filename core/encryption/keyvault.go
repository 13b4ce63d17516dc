package encryption

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"sync"

	"github.com/yeti47/cryochat/core/ccc/auth"
	"github.com/yeti47/cryochat/core/ccc/logging"
)

// ErrNoStoredKeys is returned by operations that need an existing key record
var ErrNoStoredKeys = errors.New("no stored keys")

// KeyPairHolder gives read access to the session key pair
type KeyPairHolder interface {
	// CurrentKeyPair returns false if no pair is loaded. Callers must not block on it.
	CurrentKeyPair() (*KeyPair, bool)
}

type KeyVaultOptions struct {
	Logger          logging.Logger
	Store           KeyRecordStore
	Deriver         KeyDeriver
	RateLimiter     auth.RateLimiter
	Auditor         Auditor
	LockoutNotifier LockoutNotifier
}

// KeyVault owns the session key pair. Only its methods assign the pair.
type KeyVault struct {
	logger   logging.Logger
	store    KeyRecordStore
	deriver  KeyDeriver
	sealer   *AESGCMSealer
	limiter  auth.RateLimiter
	auditor  Auditor
	notifier LockoutNotifier

	pair *KeyPair
	mu   sync.RWMutex
}

func NewKeyVault(opts KeyVaultOptions) *KeyVault {
	if opts.Logger == nil {
		opts.Logger = logging.NopLogger
	}
	if opts.Deriver == nil {
		opts.Deriver = NewPBKDF2Deriver(DefaultIterations)
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = auth.NewMemoryRateLimiter(auth.DefaultRateLimitSettings(), nil)
	}
	if opts.Auditor == nil {
		opts.Auditor = NopAuditor
	}
	if opts.LockoutNotifier == nil {
		opts.LockoutNotifier = NopLockoutNotifier
	}

	return &KeyVault{
		logger:   opts.Logger,
		store:    opts.Store,
		deriver:  opts.Deriver,
		sealer:   NewAESGCMSealer(),
		limiter:  opts.RateLimiter,
		auditor:  opts.Auditor,
		notifier: opts.LockoutNotifier,
	}
}

// GenerateKeyPair creates a fresh RSA-2048 pair and makes it the session pair
func (v *KeyVault) GenerateKeyPair(ctx context.Context) (*KeyPair, error) {
	v.logger.Info("Generating key pair")

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		v.logger.Error("Failed to generate key pair", "error", err)
		return nil, NewKeyGenerationError(err)
	}

	pair := &KeyPair{PublicKey: &privateKey.PublicKey, PrivateKey: privateKey}
	v.setPair(pair)

	return pair, nil
}

// StoreEncryptedKeyPair wraps the private key under password and persists the
// record for userID. The session pair is only replaced once the write succeeded.
func (v *KeyVault) StoreEncryptedKeyPair(ctx context.Context, pair *KeyPair, password, userID string) error {
	v.logger.Info("Storing encrypted key pair", "user", userID)

	if err := v.persist(ctx, pair, password, userID); err != nil {
		return err
	}

	v.setPair(pair)
	v.auditor.RecordSecurityEvent(ctx, userID, EventKeyGeneration, map[string]any{"key_bits": pair.PublicKey.N.BitLen()})
	return nil
}

func (v *KeyVault) persist(ctx context.Context, pair *KeyPair, password, userID string) error {
	if pair == nil || pair.PublicKey == nil || pair.PrivateKey == nil {
		return NewKeyFormatError("key pair", errors.New("incomplete key pair"))
	}

	record, err := wrapKeyPair(pair, password, v.deriver, v.sealer)
	if err != nil {
		v.logger.Error("Failed to wrap private key", "user", userID, "error", err)
		return err
	}

	if err := v.store.SaveKeyRecord(ctx, userID, record); err != nil {
		perr := NewPersistenceError(err)
		v.logger.Error("Failed to save key record", "user", userID, "error", perr)
		return perr
	}
	return nil
}

// LoadAndDecryptKeyPair unlocks the stored pair of userID with password.
//
// A locked out user gets a *auth.RateLimitedError and the store is not read.
// A missing or incomplete record and every failed unlock return (nil, nil);
// failed unlocks count against the rate limit. Store read errors are returned
// and do not count, nor does a failed unlock once ctx is done.
func (v *KeyVault) LoadAndDecryptKeyPair(ctx context.Context, password, userID string) (*KeyPair, error) {
	if err := v.limiter.Check(userID); err != nil {
		v.logger.Warn("Key unlock rejected by rate limiter", "user", userID)
		v.auditor.RecordSecurityEvent(ctx, userID, EventRateLimitHit, nil)
		return nil, err
	}

	record, err := v.store.GetKeyRecord(ctx, userID)
	if err != nil {
		v.logger.Error("Failed to read key record", "user", userID, "error", err)
		return nil, err
	}
	if !record.Complete() {
		v.logger.Info("No stored keys", "user", userID)
		return nil, nil
	}

	pair, err := unwrapKeyPair(record, password, v.deriver, v.sealer)
	if err != nil {
		// a caller that already gave up does not pay for the attempt
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		v.recordFailure(ctx, userID)
		return nil, nil
	}

	if err := v.setPairUnlessDone(ctx, pair); err != nil {
		return nil, err
	}

	v.limiter.Clear(userID)
	v.auditor.RecordSecurityEvent(ctx, userID, EventLoginSuccess, nil)
	v.logger.Info("Key pair unlocked", "user", userID)
	return pair, nil
}

func (v *KeyVault) recordFailure(ctx context.Context, userID string) {
	count := v.limiter.RecordFailure(userID)
	v.logger.Warn("Failed to unlock key pair", "user", userID, "failures", count)
	v.auditor.RecordSecurityEvent(ctx, userID, EventDecryptionFailure, map[string]any{"failure_count": count})

	if v.limiter.IsLockingCount(count) {
		if err := v.notifier.NotifyLockout(ctx, userID, count); err != nil {
			v.logger.Error("Failed to send lockout notification", "user", userID, "error", err)
		}
	}
}

// HasStoredKeys checks for a complete record without decrypting anything
func (v *KeyVault) HasStoredKeys(ctx context.Context, userID string) (bool, error) {
	record, err := v.store.GetKeyRecord(ctx, userID)
	if err != nil {
		return false, err
	}
	return record.Complete(), nil
}

// InitializeWithPassword returns true right away if a pair is loaded.
// Otherwise it tries to unlock the stored pair. Only rate limit errors are
// returned; every other failure reports false.
func (v *KeyVault) InitializeWithPassword(ctx context.Context, password, userID string) (bool, error) {
	if _, ok := v.CurrentKeyPair(); ok {
		return true, nil
	}

	pair, err := v.LoadAndDecryptKeyPair(ctx, password, userID)
	if err != nil {
		if auth.IsRateLimitedError(err) {
			return false, err
		}
		v.logger.Warn("Key initialization failed", "user", userID, "error", err)
		return false, nil
	}

	return pair != nil, nil
}

// ChangePassword re-wraps the stored private key under newPassword.
// Unlocking with oldPassword is rate limited like any other unlock.
func (v *KeyVault) ChangePassword(ctx context.Context, oldPassword, newPassword, userID string) error {
	v.logger.Info("Changing key password", "user", userID)

	if err := v.limiter.Check(userID); err != nil {
		v.auditor.RecordSecurityEvent(ctx, userID, EventRateLimitHit, nil)
		return err
	}

	record, err := v.store.GetKeyRecord(ctx, userID)
	if err != nil {
		v.logger.Error("Failed to read key record", "user", userID, "error", err)
		return err
	}
	if !record.Complete() {
		return ErrNoStoredKeys
	}

	pair, err := unwrapKeyPair(record, oldPassword, v.deriver, v.sealer)
	if err != nil {
		v.recordFailure(ctx, userID)
		return NewDecryptionError(err)
	}
	v.limiter.Clear(userID)

	// the same pair under a fresh salt and nonce
	if err := v.persist(ctx, pair, newPassword, userID); err != nil {
		return err
	}

	v.setPair(pair)
	v.auditor.RecordSecurityEvent(ctx, userID, EventPasswordChange, nil)
	v.logger.Info("Key password changed", "user", userID)
	return nil
}

// ClearKeys drops the session pair
func (v *KeyVault) ClearKeys() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pair = nil
}

func (v *KeyVault) CurrentKeyPair() (*KeyPair, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.pair, v.pair != nil
}

func (v *KeyVault) setPair(pair *KeyPair) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.pair = pair
}

// setPairUnlessDone installs pair only while ctx is live. The check happens
// under the lock so a caller that gave up and called ClearKeys wins.
func (v *KeyVault) setPairUnlessDone(ctx context.Context, pair *KeyPair) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	v.pair = pair
	return nil
}
