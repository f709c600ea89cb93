package fieldcrypt

import (
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/utils"
)

// Codec encrypts and decrypts sensitive scalar fields (IRD numbers) with
// Fernet symmetric tokens, so values stored by earlier deployments remain
// readable.
type Codec struct {
	key *fernet.Key
	log *logger.Logger
}

// New builds a Codec from the FIELD_ENCRYPTION_KEY environment variable
// (base64 Fernet key).
func New(log *logger.Logger) (*Codec, error) {
	raw := utils.GetEnv("FIELD_ENCRYPTION_KEY", "", log)
	if raw == "" {
		return nil, fmt.Errorf("FIELD_ENCRYPTION_KEY not configured")
	}
	return NewWithKey(raw, log)
}

func NewWithKey(encoded string, log *logger.Logger) (*Codec, error) {
	key, err := fernet.DecodeKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid field encryption key: %w", err)
	}
	return &Codec{key: key, log: log}, nil
}

// GenerateKey returns a fresh base64 Fernet key suitable for
// FIELD_ENCRYPTION_KEY.
func GenerateKey() (string, error) {
	var key fernet.Key
	if err := key.Generate(); err != nil {
		return "", err
	}
	return key.Encode(), nil
}

// Encrypt returns the Fernet token for value. Empty input stays empty.
func (c *Codec) Encrypt(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	tok, err := fernet.EncryptAndSign([]byte(value), c.key)
	if err != nil {
		return "", fmt.Errorf("encrypt field: %w", err)
	}
	return string(tok), nil
}

// Decrypt returns the plaintext for a stored token. Tokens that fail
// verification decrypt to the empty string rather than erroring the request.
func (c *Codec) Decrypt(token string) string {
	if token == "" {
		return ""
	}
	plain := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{c.key})
	if plain == nil {
		if c.log != nil {
			c.log.Warn("field decryption failed, returning empty value")
		}
		return ""
	}
	return string(plain)
}
