package encryption

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

// DualCiphertext holds the same plaintext encrypted for both conversation parties
type DualCiphertext struct {
	ForRecipient string
	ForSender    string
}

// MaxPlaintextSize is the largest RSA-OAEP-SHA256 plaintext for pub (190 bytes for 2048 bit keys)
func MaxPlaintextSize(pub *rsa.PublicKey) int {
	return pub.Size() - 2*sha256.Size - 2
}

// MessageCipher encrypts message bodies directly under RSA-OAEP-SHA256.
// There is no symmetric session layer, so message size is capped by the modulus.
type MessageCipher struct {
	keys   KeyPairHolder
	cache  PublicKeyCache
	logger logging.Logger
}

// NewMessageCipher creates a cipher decrypting with the pair held by keys.
// A nil cache gets a default sized one.
func NewMessageCipher(keys KeyPairHolder, cache PublicKeyCache, logger logging.Logger) *MessageCipher {
	if logger == nil {
		logger = logging.NopLogger
	}
	if cache == nil {
		cache = NewPublicKeyCache(defaultPublicKeyCacheSize, logger)
	}

	return &MessageCipher{
		keys:   keys,
		cache:  cache,
		logger: logger,
	}
}

// Encrypt encrypts plaintext for the holder of recipientPublicKey
func (c *MessageCipher) Encrypt(plaintext, recipientPublicKey string) (string, error) {
	pub, err := c.cache.Get(recipientPublicKey)
	if err != nil {
		return "", NewEncryptionError(err)
	}

	if limit := MaxPlaintextSize(pub); len(plaintext) > limit {
		return "", NewEncryptionError(fmt.Errorf("plaintext is %d bytes, maximum is %d", len(plaintext), limit))
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, []byte(plaintext), nil)
	if err != nil {
		return "", NewEncryptionError(err)
	}
	return EncodeBase64(ciphertext), nil
}

// Decrypt decrypts with the session private key
func (c *MessageCipher) Decrypt(ciphertext string) (string, error) {
	pair, ok := c.keys.CurrentKeyPair()
	if !ok {
		return "", ErrKeyUnavailable
	}

	raw, err := DecodeBase64(ciphertext)
	if err != nil {
		return "", NewDecryptionError(err)
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), nil, pair.PrivateKey, raw, nil)
	if err != nil {
		return "", NewDecryptionError(err)
	}
	return string(plaintext), nil
}

// EncryptDual encrypts plaintext once for the recipient and once for the sender,
// concurrently. Either failure fails the call.
func (c *MessageCipher) EncryptDual(ctx context.Context, plaintext, recipientPublicKey, senderPublicKey string) (*DualCiphertext, error) {
	var dual DualCiphertext

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ct, err := c.Encrypt(plaintext, recipientPublicKey)
		dual.ForRecipient = ct
		return err
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ct, err := c.Encrypt(plaintext, senderPublicKey)
		dual.ForSender = ct
		return err
	})

	if err := g.Wait(); err != nil {
		c.logger.Warn("Dual encryption failed", "error", err)
		if IsEncryptionError(err) {
			return nil, err
		}
		return nil, NewEncryptionError(err)
	}
	return &dual, nil
}
