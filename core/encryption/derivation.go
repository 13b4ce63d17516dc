package encryption

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Constants for key wrapping parameters
const (
	DefaultIterations = 60000 // PBKDF2 iterations
	keyLength         = 32    // 256 bits for AES-256
	saltLength        = 16    // 128 bits for salt
	nonceLength       = 12    // 96 bits for GCM nonce
)

// KeyDeriver derives a symmetric wrapping key from a password
type KeyDeriver interface {
	// Derive is deterministic for identical password, salt and settings.
	// It never fails because a password is wrong.
	Derive(password string, salt []byte) ([]byte, error)
}

// PBKDF2Deriver implements KeyDeriver with PBKDF2-HMAC-SHA256
type PBKDF2Deriver struct {
	iterations int
}

// NewPBKDF2Deriver creates a deriver. Non-positive iterations select the default.
func NewPBKDF2Deriver(iterations int) *PBKDF2Deriver {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &PBKDF2Deriver{iterations: iterations}
}

func (d *PBKDF2Deriver) Iterations() int {
	return d.iterations
}

func (d *PBKDF2Deriver) Derive(password string, salt []byte) ([]byte, error) {
	if len(salt) < saltLength {
		return nil, NewDerivationError(fmt.Errorf("salt must be at least %d bytes, got %d", saltLength, len(salt)))
	}

	return pbkdf2.Key([]byte(password), salt, d.iterations, keyLength, sha256.New), nil
}

// AESGCMSealer wraps and unwraps private keys with AES-256-GCM.
// Unlike a general purpose encryptor the nonce is supplied by the caller,
// because it is persisted next to the ciphertext.
type AESGCMSealer struct{}

func NewAESGCMSealer() *AESGCMSealer {
	return &AESGCMSealer{}
}

func (s *AESGCMSealer) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != keyLength {
		return nil, errors.New("invalid key length")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// Seal encrypts plaintext under key and nonce
func (s *AESGCMSealer) Seal(key, nonce, plaintext []byte) ([]byte, error) {
	gcm, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("invalid nonce length")
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open authenticates and decrypts ciphertext
func (s *AESGCMSealer) Open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.New("invalid nonce length")
	}

	return gcm.Open(nil, nonce, ciphertext, nil)
}

// GenerateSalt generates a new random salt
func (s *AESGCMSealer) GenerateSalt() ([]byte, error) {
	return randomBytes(saltLength)
}

// GenerateNonce generates a new random GCM nonce
func (s *AESGCMSealer) GenerateNonce() ([]byte, error) {
	return randomBytes(nonceLength)
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
