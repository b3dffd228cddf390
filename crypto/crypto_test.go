package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
	"testing"
)

func testKey(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return base64.StdEncoding.EncodeToString(key)
}

func TestNewAESEncryptorKeyValidation(t *testing.T) {
	if _, err := NewAESEncryptor(""); err == nil {
		t.Error("empty key accepted")
	}
	if _, err := NewAESEncryptor("not base64!!!"); err == nil {
		t.Error("non-base64 key accepted")
	}
	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	if _, err := NewAESEncryptor(short); err == nil {
		t.Error("short key accepted")
	}
	if _, err := NewAESEncryptor(testKey(t)); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	for _, plaintext := range []string{"oauth-access-token", "short", strings.Repeat("x", 4096)} {
		ct, err := enc.EncryptString(plaintext)
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		if ct == plaintext {
			t.Error("ciphertext equals plaintext")
		}
		got, err := enc.DecryptString(ct)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip = %q, want %q", got, plaintext)
		}
	}
}

func TestEmptyStringPassesThrough(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	ct, err := enc.EncryptString("")
	if err != nil || ct != "" {
		t.Errorf("EncryptString(\"\") = %q, %v", ct, err)
	}
	pt, err := enc.DecryptString("")
	if err != nil || pt != "" {
		t.Errorf("DecryptString(\"\") = %q, %v", pt, err)
	}
}

func TestNonceUniqueness(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	a, _ := enc.EncryptString("same plaintext")
	b, _ := enc.EncryptString("same plaintext")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestTamperDetection(t *testing.T) {
	enc, err := NewAESEncryptor(testKey(t))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	ct, err := enc.EncryptString("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(ct)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)
	if _, err := enc.DecryptString(tampered); err == nil {
		t.Error("tampered ciphertext decrypted without error")
	}

	if _, err := enc.DecryptString("AAAA"); err == nil {
		t.Error("truncated ciphertext decrypted without error")
	}
	if _, err := enc.DecryptString("%%%"); err == nil {
		t.Error("non-base64 ciphertext decrypted without error")
	}
}

func TestWrongKeyFails(t *testing.T) {
	enc1, _ := NewAESEncryptor(testKey(t))
	enc2, _ := NewAESEncryptor(testKey(t))
	ct, err := enc1.EncryptString("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := enc2.DecryptString(ct); err == nil {
		t.Error("ciphertext decrypted with the wrong key")
	}
}
