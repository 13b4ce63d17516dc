package encryption

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"sync"
	"testing"
)

var (
	testPairOnce sync.Once
	testPairs    [2]*KeyPair
)

// testKeyPairs returns two RSA-2048 pairs shared by all tests of the package
func testKeyPairs(t *testing.T) (*KeyPair, *KeyPair) {
	t.Helper()

	testPairOnce.Do(func() {
		for i := range testPairs {
			priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
			if err != nil {
				panic(err)
			}
			testPairs[i] = &KeyPair{PublicKey: &priv.PublicKey, PrivateKey: priv}
		}
	})
	return testPairs[0], testPairs[1]
}

func TestPublicKeyRoundTrip(t *testing.T) {
	pair, _ := testKeyPairs(t)

	encoded, err := ExportPublicKey(pair.PublicKey)
	if err != nil {
		t.Fatalf("ExportPublicKey() failed: %v", err)
	}

	imported, err := ImportPublicKey(encoded)
	if err != nil {
		t.Fatalf("ImportPublicKey() failed: %v", err)
	}
	if !imported.Equal(pair.PublicKey) {
		t.Error("Imported public key differs from the exported one")
	}

	again, _ := ExportPublicKey(imported)
	if again != encoded {
		t.Error("Re-exporting an imported key should be lossless")
	}
}

func TestPrivateKeyRoundTrip(t *testing.T) {
	pair, _ := testKeyPairs(t)

	der, err := ExportPrivateKey(pair.PrivateKey)
	if err != nil {
		t.Fatalf("ExportPrivateKey() failed: %v", err)
	}

	imported, err := ImportPrivateKey(der)
	if err != nil {
		t.Fatalf("ImportPrivateKey() failed: %v", err)
	}
	if !imported.Equal(pair.PrivateKey) {
		t.Error("Imported private key differs from the exported one")
	}
}

func TestImportPublicKey_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"not DER", EncodeBase64([]byte("definitely not a key"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportPublicKey(tt.input)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !IsKeyFormatError(err) {
				t.Errorf("Expected *KeyFormatError, got %T", err)
			}
		})
	}
}

func TestImportPublicKey_NonRSA(t *testing.T) {
	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate EC key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&ecKey.PublicKey)
	if err != nil {
		t.Fatalf("failed to marshal EC key: %v", err)
	}

	if _, err := ImportPublicKey(EncodeBase64(der)); !IsKeyFormatError(err) {
		t.Errorf("Expected *KeyFormatError for a non-RSA key, got %v", err)
	}
}

func TestImportPrivateKey_Malformed(t *testing.T) {
	if _, err := ImportPrivateKey([]byte("garbage")); !IsKeyFormatError(err) {
		t.Errorf("Expected *KeyFormatError, got %v", err)
	}
}

func TestExport_NilKeys(t *testing.T) {
	if _, err := ExportPublicKey(nil); !IsKeyFormatError(err) {
		t.Errorf("Expected *KeyFormatError for nil public key, got %v", err)
	}
	if _, err := ExportPrivateKey(nil); !IsKeyFormatError(err) {
		t.Errorf("Expected *KeyFormatError for nil private key, got %v", err)
	}
}
