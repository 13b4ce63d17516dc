package encryption

import "crypto/rsa"

const rsaKeyBits = 2048

// KeyPair is the session's RSA-OAEP key pair
type KeyPair struct {
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

// PublicKeyB64 exports the public half
func (p *KeyPair) PublicKeyB64() (string, error) {
	return ExportPublicKey(p.PublicKey)
}

// EncryptedKeyRecord is what gets persisted per user. All fields are base64.
type EncryptedKeyRecord struct {
	PublicKey           string // SPKI DER
	EncryptedPrivateKey string // AES-GCM sealed PKCS#8 DER
	Salt                string // PBKDF2 salt, fresh on every write
	IV                  string // GCM nonce, fresh on every write
}

// Complete reports whether every field is set
func (r *EncryptedKeyRecord) Complete() bool {
	return r != nil &&
		r.PublicKey != "" &&
		r.EncryptedPrivateKey != "" &&
		r.Salt != "" &&
		r.IV != ""
}
