package encryption

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
)

// EncodeBase64 encodes with the standard padded alphabet
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 is the inverse of EncodeBase64
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, NewKeyFormatError("base64", err)
	}
	return data, nil
}

// ExportPublicKey serializes a public key as base64 SPKI DER
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", NewKeyFormatError("public key", errors.New("nil key"))
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", NewKeyFormatError("public key", err)
	}
	return EncodeBase64(der), nil
}

// ImportPublicKey parses a base64 SPKI DER public key
func ImportPublicKey(b64 string) (*rsa.PublicKey, error) {
	der, err := DecodeBase64(b64)
	if err != nil {
		return nil, err
	}

	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, NewKeyFormatError("public key", err)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, NewKeyFormatError("public key", fmt.Errorf("unsupported key type %T", parsed))
	}
	return pub, nil
}

// ExportPrivateKey serializes a private key as PKCS#8 DER
func ExportPrivateKey(priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, NewKeyFormatError("private key", errors.New("nil key"))
	}

	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, NewKeyFormatError("private key", err)
	}
	return der, nil
}

// ImportPrivateKey parses PKCS#8 DER
func ImportPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, NewKeyFormatError("private key", err)
	}

	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, NewKeyFormatError("private key", fmt.Errorf("unsupported key type %T", parsed))
	}
	return priv, nil
}
