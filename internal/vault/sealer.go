package vault

import (
	"context"
	"errors"
	"strings"
)

// Sealer protects questionnaire answers at rest
type Sealer interface {
	Seal(ctx context.Context, plaintext []byte) (string, error)
	Open(ctx context.Context, sealed string) ([]byte, error)
}

const transitPrefix = "vault:"

// ErrSealedValue is returned by PlainSealer for values sealed by Vault
var ErrSealedValue = errors.New("value is sealed by vault but vault is not configured")

// TransitSealer seals values with a Vault transit key
type TransitSealer struct {
	client  *Client
	keyName string
}

// NewTransitSealer ensures the key exists and returns a sealer bound to it
func NewTransitSealer(ctx context.Context, client *Client, keyName string) (*TransitSealer, error) {
	if err := client.EnsureKey(ctx, keyName); err != nil {
		return nil, err
	}
	return &TransitSealer{client: client, keyName: keyName}, nil
}

func (s *TransitSealer) Seal(ctx context.Context, plaintext []byte) (string, error) {
	return s.client.Encrypt(ctx, s.keyName, plaintext)
}

// Open decrypts transit ciphertext; values stored before Vault was enabled pass through
func (s *TransitSealer) Open(ctx context.Context, sealed string) ([]byte, error) {
	if !strings.HasPrefix(sealed, transitPrefix) {
		return []byte(sealed), nil
	}
	return s.client.Decrypt(ctx, s.keyName, sealed)
}

// PlainSealer stores values unchanged, for development without Vault
type PlainSealer struct{}

func (PlainSealer) Seal(_ context.Context, plaintext []byte) (string, error) {
	return string(plaintext), nil
}

func (PlainSealer) Open(_ context.Context, sealed string) ([]byte, error) {
	if strings.HasPrefix(sealed, transitPrefix) {
		return nil, ErrSealedValue
	}
	return []byte(sealed), nil
}
