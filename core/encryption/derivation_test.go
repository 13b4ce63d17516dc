package encryption

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"golang.org/x/crypto/pbkdf2"
)

const testIterations = 1000

func TestNewPBKDF2Deriver_DefaultIterations(t *testing.T) {
	if got := NewPBKDF2Deriver(0).Iterations(); got != DefaultIterations {
		t.Errorf("Expected %d iterations, got %d", DefaultIterations, got)
	}
	if got := NewPBKDF2Deriver(-5).Iterations(); got != DefaultIterations {
		t.Errorf("Expected %d iterations, got %d", DefaultIterations, got)
	}
	if got := NewPBKDF2Deriver(1234).Iterations(); got != 1234 {
		t.Errorf("Expected 1234 iterations, got %d", got)
	}
}

func TestDerive(t *testing.T) {
	deriver := NewPBKDF2Deriver(testIterations)
	sealer := NewAESGCMSealer()

	salt, err := sealer.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() failed: %v", err)
	}

	key, err := deriver.Derive("Str0ng!Pw", salt)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	if len(key) != keyLength {
		t.Errorf("Expected key length %d, got %d", keyLength, len(key))
	}

	// Deterministic
	key2, err := deriver.Derive("Str0ng!Pw", salt)
	if err != nil {
		t.Fatalf("Derive() failed on second call: %v", err)
	}
	if !bytes.Equal(key, key2) {
		t.Error("Derive() should be deterministic for the same password and salt")
	}

	// Matches PBKDF2-HMAC-SHA256 directly
	expected := pbkdf2.Key([]byte("Str0ng!Pw"), salt, testIterations, keyLength, sha256.New)
	if !bytes.Equal(key, expected) {
		t.Error("Derive() does not match PBKDF2-HMAC-SHA256")
	}
}

func TestDerive_DifferentSaltsGiveDifferentKeys(t *testing.T) {
	deriver := NewPBKDF2Deriver(testIterations)
	sealer := NewAESGCMSealer()

	salt1, _ := sealer.GenerateSalt()
	salt2, _ := sealer.GenerateSalt()

	key1, err := deriver.Derive("Str0ng!Pw", salt1)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}
	key2, err := deriver.Derive("Str0ng!Pw", salt2)
	if err != nil {
		t.Fatalf("Derive() failed: %v", err)
	}

	if bytes.Equal(key1, key2) {
		t.Error("Different salts should yield different keys")
	}
}

func TestDerive_ShortSalt(t *testing.T) {
	deriver := NewPBKDF2Deriver(testIterations)

	_, err := deriver.Derive("Str0ng!Pw", []byte("short"))
	if err == nil {
		t.Fatal("Derive() should fail for a short salt")
	}
	if !IsDerivationError(err) {
		t.Errorf("Expected *DerivationError, got %T", err)
	}
}

func TestDerive_WrongPasswordStillSucceeds(t *testing.T) {
	deriver := NewPBKDF2Deriver(testIterations)
	salt, _ := NewAESGCMSealer().GenerateSalt()

	if _, err := deriver.Derive("wrong", salt); err != nil {
		t.Errorf("Derive() must not fail for any password, got %v", err)
	}
}

func TestGenerateSaltAndNonce(t *testing.T) {
	sealer := NewAESGCMSealer()

	salt, err := sealer.GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() failed: %v", err)
	}
	if len(salt) != saltLength {
		t.Errorf("Expected salt length %d, got %d", saltLength, len(salt))
	}

	nonce, err := sealer.GenerateNonce()
	if err != nil {
		t.Fatalf("GenerateNonce() failed: %v", err)
	}
	if len(nonce) != nonceLength {
		t.Errorf("Expected nonce length %d, got %d", nonceLength, len(nonce))
	}

	nonce2, _ := sealer.GenerateNonce()
	if bytes.Equal(nonce, nonce2) {
		t.Error("GenerateNonce() produced identical nonces, should be random")
	}
}

func TestSealOpen(t *testing.T) {
	sealer := NewAESGCMSealer()
	key := bytes.Repeat([]byte{7}, keyLength)
	nonce, _ := sealer.GenerateNonce()

	testData := []byte("private key material")

	sealed, err := sealer.Seal(key, nonce, testData)
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}
	if bytes.Contains(sealed, testData) {
		t.Error("Sealed data contains the plaintext")
	}

	opened, err := sealer.Open(key, nonce, sealed)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if !bytes.Equal(opened, testData) {
		t.Errorf("Expected %q, got %q", testData, opened)
	}
}

func TestOpen_Failures(t *testing.T) {
	sealer := NewAESGCMSealer()
	key := bytes.Repeat([]byte{7}, keyLength)
	nonce, _ := sealer.GenerateNonce()

	sealed, err := sealer.Seal(key, nonce, []byte("private key material"))
	if err != nil {
		t.Fatalf("Seal() failed: %v", err)
	}

	wrongKey := bytes.Repeat([]byte{8}, keyLength)
	if _, err := sealer.Open(wrongKey, nonce, sealed); err == nil {
		t.Error("Open() should fail with the wrong key")
	}

	tampered := append([]byte(nil), sealed...)
	tampered[0] ^= 0xFF
	if _, err := sealer.Open(key, nonce, tampered); err == nil {
		t.Error("Open() should fail for tampered data")
	}

	otherNonce, _ := sealer.GenerateNonce()
	if _, err := sealer.Open(key, otherNonce, sealed); err == nil {
		t.Error("Open() should fail with a different nonce")
	}

	if _, err := sealer.Open(key[:16], nonce, sealed); err == nil {
		t.Error("Open() should reject a short key")
	}
	if _, err := sealer.Seal(key, nonce[:8], []byte("x")); err == nil {
		t.Error("Seal() should reject a short nonce")
	}
}
