package vault

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sintonia/internal/testutil"
)

func TestPlainSealer(t *testing.T) {
	ctx := context.Background()
	var s PlainSealer

	sealed, err := s.Seal(ctx, []byte(`{"q1":3}`))
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}
	if sealed != `{"q1":3}` {
		t.Errorf("expected value unchanged, got %q", sealed)
	}

	opened, err := s.Open(ctx, sealed)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if string(opened) != `{"q1":3}` {
		t.Errorf("unexpected plaintext %q", opened)
	}

	if _, err := s.Open(ctx, "vault:v1:abcdef"); !errors.Is(err, ErrSealedValue) {
		t.Errorf("expected ErrSealedValue, got %v", err)
	}
}

func TestTransitSealer(t *testing.T) {
	ctx := context.Background()
	addr := testutil.SetupVault(t)

	client, err := NewClient(ctx, &Config{Address: addr, Token: testutil.TestVaultToken, TransitMount: "transit"})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	if err := client.Health(ctx); err != nil {
		t.Fatalf("Vault not healthy: %v", err)
	}

	sealer, err := NewTransitSealer(ctx, client, "questionnaire-answers")
	if err != nil {
		t.Fatalf("Failed to create sealer: %v", err)
	}
	// Second call must not fail on the existing key
	if _, err := NewTransitSealer(ctx, client, "questionnaire-answers"); err != nil {
		t.Fatalf("EnsureKey should be idempotent: %v", err)
	}

	sealed, err := sealer.Seal(ctx, []byte(`{"q1":4}`))
	if err != nil {
		t.Fatalf("Seal returned error: %v", err)
	}
	if !strings.HasPrefix(sealed, "vault:v1:") {
		t.Errorf("expected transit ciphertext, got %q", sealed)
	}

	opened, err := sealer.Open(ctx, sealed)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if string(opened) != `{"q1":4}` {
		t.Errorf("unexpected plaintext %q", opened)
	}

	legacy, err := sealer.Open(ctx, `{"q1":1}`)
	if err != nil || string(legacy) != `{"q1":1}` {
		t.Errorf("expected unsealed value to pass through, got %q, %v", legacy, err)
	}
}
