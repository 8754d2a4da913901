package vault

import (
	"bytes"
	"testing"
)

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	sealed, err := sealer.Seal("credential-value")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	opened, err := sealer.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if opened != "credential-value" {
		t.Errorf("Open = %q, want %q", opened, "credential-value")
	}
}

func TestSealer_NonceVariesPerSeal(t *testing.T) {
	sealer, err := NewSealer(testKey)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}

	a, _ := sealer.Seal("same")
	b, _ := sealer.Seal("same")
	if bytes.Equal(a, b) {
		t.Error("two seals of the same plaintext produced identical ciphertexts")
	}
}

func TestSealer_WrongKeyFails(t *testing.T) {
	sealer, _ := NewSealer(testKey)
	other, _ := NewSealer([]byte("ffffffffffffffffffffffffffffffff"))

	sealed, _ := sealer.Seal("value")
	if _, err := other.Open(sealed); err == nil {
		t.Error("expected decrypt failure with a different key")
	}
}

func TestNewSealer_RejectsBadKeyLength(t *testing.T) {
	if _, err := NewSealer([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestNewSealerFromHex(t *testing.T) {
	if _, err := NewSealerFromHex("not-hex"); err == nil {
		t.Error("expected error for invalid hex")
	}

	hexKey := "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	if _, err := NewSealerFromHex(hexKey); err != nil {
		t.Errorf("unexpected error for valid key: %v", err)
	}
}
