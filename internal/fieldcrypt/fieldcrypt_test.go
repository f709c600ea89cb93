package fieldcrypt

import (
	"testing"

	"github.com/jcopacetic/lumi/internal/logger"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	codec, err := NewWithKey(key, log)
	if err != nil {
		t.Fatalf("NewWithKey: %v", err)
	}
	return codec
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encrypt("123456789")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if token == "" || token == "123456789" {
		t.Fatalf("expected opaque token, got %q", token)
	}

	got := codec.Decrypt(token)
	if got != "123456789" {
		t.Fatalf("Decrypt: want=%q got=%q", "123456789", got)
	}
}

func TestEncryptEmptyStaysEmpty(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token, got %q", token)
	}
}

func TestDecryptGarbageReturnsEmpty(t *testing.T) {
	codec := newTestCodec(t)

	if got := codec.Decrypt("not-a-fernet-token"); got != "" {
		t.Fatalf("expected empty plaintext for bad token, got %q", got)
	}
}

func TestDecryptWithWrongKeyReturnsEmpty(t *testing.T) {
	codecA := newTestCodec(t)
	codecB := newTestCodec(t)

	token, err := codecA.Encrypt("87654321")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if got := codecB.Decrypt(token); got != "" {
		t.Fatalf("expected empty plaintext under wrong key, got %q", got)
	}
}

func TestNewWithKeyRejectsBadKey(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if _, err := NewWithKey("short", log); err == nil {
		t.Fatalf("expected error for invalid key")
	}
}
