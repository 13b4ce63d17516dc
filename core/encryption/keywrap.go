package encryption

import (
	"fmt"
)

// wrapKeyPair seals the private key under a key derived from password.
// Salt and nonce are freshly generated on every call.
func wrapKeyPair(pair *KeyPair, password string, deriver KeyDeriver, sealer *AESGCMSealer) (*EncryptedKeyRecord, error) {
	publicKey, err := ExportPublicKey(pair.PublicKey)
	if err != nil {
		return nil, err
	}

	privateDER, err := ExportPrivateKey(pair.PrivateKey)
	if err != nil {
		return nil, err
	}

	salt, err := sealer.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce, err := sealer.GenerateNonce()
	if err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	key, err := deriver.Derive(password, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := sealer.Seal(key, nonce, privateDER)
	if err != nil {
		return nil, NewEncryptionError(err)
	}

	return &EncryptedKeyRecord{
		PublicKey:           publicKey,
		EncryptedPrivateKey: EncodeBase64(sealed),
		Salt:                EncodeBase64(salt),
		IV:                  EncodeBase64(nonce),
	}, nil
}

// unwrapKeyPair re-derives the wrapping key from the stored salt and opens the
// private key. Every failure is reported as a *DecryptionError, except for
// derivation primitive failures.
func unwrapKeyPair(record *EncryptedKeyRecord, password string, deriver KeyDeriver, sealer *AESGCMSealer) (*KeyPair, error) {
	salt, err := DecodeBase64(record.Salt)
	if err != nil {
		return nil, NewDecryptionError(err)
	}
	nonce, err := DecodeBase64(record.IV)
	if err != nil {
		return nil, NewDecryptionError(err)
	}
	sealed, err := DecodeBase64(record.EncryptedPrivateKey)
	if err != nil {
		return nil, NewDecryptionError(err)
	}

	key, err := deriver.Derive(password, salt)
	if err != nil {
		return nil, err
	}

	privateDER, err := sealer.Open(key, nonce, sealed)
	if err != nil {
		return nil, NewDecryptionError(err)
	}

	privateKey, err := ImportPrivateKey(privateDER)
	if err != nil {
		return nil, NewDecryptionError(err)
	}
	publicKey, err := ImportPublicKey(record.PublicKey)
	if err != nil {
		return nil, NewDecryptionError(err)
	}
	if !privateKey.PublicKey.Equal(publicKey) {
		return nil, NewDecryptionError(fmt.Errorf("stored public key does not match private key"))
	}

	return &KeyPair{PublicKey: publicKey, PrivateKey: privateKey}, nil
}
