package messages

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/yeti47/cryochat/core/encryption"
)

// prefixDecrypter "decrypts" ciphertexts that start with its prefix
type prefixDecrypter struct {
	prefix string
	noKeys bool
}

func (d *prefixDecrypter) Decrypt(ciphertext string) (string, error) {
	if d.noKeys {
		return "", encryption.ErrKeyUnavailable
	}
	if !strings.HasPrefix(ciphertext, d.prefix) {
		return "", encryption.NewDecryptionError(errors.New("bad ciphertext"))
	}
	return strings.TrimPrefix(ciphertext, d.prefix), nil
}

func TestHistoryLoader_Load(t *testing.T) {
	repo, cleanup := setupTestMessageRepo(t)
	defer cleanup()

	ctx := context.Background()

	sent := createTestMessage("m1", "alice", "bob", 0)
	received := createTestMessage("m2", "bob", "alice", time.Second)
	legacy := createTestMessage("m3", "alice", "bob", 2*time.Second)
	legacy.EncryptedContentForSender = nil
	corrupted := createTestMessage("m4", "bob", "alice", 3*time.Second)
	corrupted.EncryptedContent = "garbage"

	for _, m := range []*Message{sent, received, legacy, corrupted} {
		if err := repo.Create(ctx, m); err != nil {
			t.Fatalf("Failed to create message: %v", err)
		}
	}

	// alice can only read her copies: the recipient copy of received
	// messages and the sender copy of sent ones
	decrypter := &prefixDecrypter{prefix: "recipient:"}
	loader := NewHistoryLoader(repo, decrypterFor("alice", decrypter), nil)

	history, err := loader.Load(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(history) != 4 {
		t.Fatalf("Expected 4 messages, got %d", len(history))
	}

	tests := []struct {
		content  string
		readable bool
	}{
		{"m1", true},
		{"m2", true},
		{UpgradePlaceholder, false},
		{UndecryptablePlaceholder, false},
	}
	for i, tt := range tests {
		if history[i].Content != tt.content {
			t.Errorf("Message %d: expected %q, got %q", i, tt.content, history[i].Content)
		}
		if history[i].Readable != tt.readable {
			t.Errorf("Message %d: expected readable=%v", i, tt.readable)
		}
	}
}

// decrypterFor accepts both copies addressed to user, standing in for
// a user who holds the matching private key
func decrypterFor(user string, inner *prefixDecrypter) Decrypter {
	return decryptFunc(func(ciphertext string) (string, error) {
		if inner.noKeys {
			return "", encryption.ErrKeyUnavailable
		}
		if strings.HasPrefix(ciphertext, "sender:") {
			return strings.TrimPrefix(ciphertext, "sender:"), nil
		}
		return inner.Decrypt(ciphertext)
	})
}

type decryptFunc func(string) (string, error)

func (f decryptFunc) Decrypt(ciphertext string) (string, error) { return f(ciphertext) }

func TestHistoryLoader_LegacyMessageForReceiverIsReadable(t *testing.T) {
	repo, cleanup := setupTestMessageRepo(t)
	defer cleanup()

	ctx := context.Background()
	legacy := createTestMessage("m1", "alice", "bob", 0)
	legacy.EncryptedContentForSender = nil
	if err := repo.Create(ctx, legacy); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	loader := NewHistoryLoader(repo, &prefixDecrypter{prefix: "recipient:"}, nil)
	history, err := loader.Load(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if len(history) != 1 || history[0].Content != "m1" {
		t.Errorf("Expected the receiver to read the legacy message, got %+v", history)
	}
}

func TestHistoryLoader_KeyUnavailable(t *testing.T) {
	repo, cleanup := setupTestMessageRepo(t)
	defer cleanup()

	ctx := context.Background()
	if err := repo.Create(ctx, createTestMessage("m1", "bob", "alice", 0)); err != nil {
		t.Fatalf("Failed to create message: %v", err)
	}

	loader := NewHistoryLoader(repo, &prefixDecrypter{noKeys: true}, nil)
	if _, err := loader.Load(ctx, "alice", "bob"); !errors.Is(err, encryption.ErrKeyUnavailable) {
		t.Errorf("Expected ErrKeyUnavailable, got %v", err)
	}
}

func TestHistoryLoader_EmptyConversation(t *testing.T) {
	repo, cleanup := setupTestMessageRepo(t)
	defer cleanup()

	loader := NewHistoryLoader(repo, &prefixDecrypter{}, nil)
	history, err := loader.Load(context.Background(), "alice", "bob")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if history == nil || len(history) != 0 {
		t.Errorf("Expected an empty, non-nil history, got %v", history)
	}
}

func TestHistoryLoader_DecryptForOutsider(t *testing.T) {
	loader := NewHistoryLoader(nil, &prefixDecrypter{}, nil)

	if _, err := loader.DecryptFor(createTestMessage("m1", "alice", "bob", 0), "mallory"); err == nil {
		t.Error("Expected an error for a user outside the conversation")
	}
}
