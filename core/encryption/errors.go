package encryption

import (
	"errors"
	"fmt"
)

// ErrKeyUnavailable is returned when an operation needs the session key pair
// but the vault holds none.
var ErrKeyUnavailable = errors.New("no key pair loaded")

// KeyFormatError indicates malformed base64 or key material
type KeyFormatError struct {
	What  string
	Cause error
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.What, e.Cause)
}

func (e *KeyFormatError) Unwrap() error { return e.Cause }

// DerivationError indicates a failure of the password key derivation primitive.
// A wrong password never produces one.
type DerivationError struct {
	Cause error
}

func (e *DerivationError) Error() string {
	return fmt.Sprintf("key derivation failed: %v", e.Cause)
}

func (e *DerivationError) Unwrap() error { return e.Cause }

type KeyGenerationError struct {
	Cause error
}

func (e *KeyGenerationError) Error() string {
	return fmt.Sprintf("key generation failed: %v", e.Cause)
}

func (e *KeyGenerationError) Unwrap() error { return e.Cause }

type EncryptionError struct {
	Cause error
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %v", e.Cause)
}

func (e *EncryptionError) Unwrap() error { return e.Cause }

// DecryptionError carries no detail about why decryption failed. Wrong keys,
// corrupted ciphertext and tampering all look the same to the caller.
type DecryptionError struct {
	cause error
}

func (e *DecryptionError) Error() string {
	return "decryption failed"
}

func (e *DecryptionError) Unwrap() error { return e.cause }

// PersistenceKind tells a rejected write apart from a failed one
type PersistenceKind int

const (
	PersistenceIO PersistenceKind = iota
	PersistencePolicyRejected
)

func (k PersistenceKind) String() string {
	switch k {
	case PersistencePolicyRejected:
		return "policy rejected"
	default:
		return "io"
	}
}

// PersistenceError wraps a failed key record write
type PersistenceError struct {
	Kind  PersistenceKind
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist key record (%s): %v", e.Kind, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// ErrPolicyRejected is returned by KeyRecordStore implementations whose access
// policy refuses a write. Stores may wrap it.
var ErrPolicyRejected = errors.New("write rejected by access policy")

// helper functions for error handling
func IsKeyFormatError(err error) bool {
	var target *KeyFormatError
	return errors.As(err, &target)
}
func IsDerivationError(err error) bool {
	var target *DerivationError
	return errors.As(err, &target)
}
func IsKeyGenerationError(err error) bool {
	var target *KeyGenerationError
	return errors.As(err, &target)
}
func IsEncryptionError(err error) bool {
	var target *EncryptionError
	return errors.As(err, &target)
}
func IsDecryptionError(err error) bool {
	var target *DecryptionError
	return errors.As(err, &target)
}
func IsPersistenceError(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}

// IsPolicyRejected reports whether err is a persistence error caused by the store's access policy
func IsPolicyRejected(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target) && target.Kind == PersistencePolicyRejected
}

// factory functions
func NewKeyFormatError(what string, cause error) error {
	return &KeyFormatError{What: what, Cause: cause}
}
func NewDerivationError(cause error) error {
	return &DerivationError{Cause: cause}
}
func NewKeyGenerationError(cause error) error {
	return &KeyGenerationError{Cause: cause}
}
func NewEncryptionError(cause error) error {
	return &EncryptionError{Cause: cause}
}
func NewDecryptionError(cause error) error {
	return &DecryptionError{cause: cause}
}

// NewPersistenceError classifies cause by whether it wraps ErrPolicyRejected
func NewPersistenceError(cause error) error {
	kind := PersistenceIO
	if errors.Is(cause, ErrPolicyRejected) {
		kind = PersistencePolicyRejected
	}
	return &PersistenceError{Kind: kind, Cause: cause}
}
