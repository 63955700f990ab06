package auth

import (
	"crypto/ed25519"
	"encoding/hex"
	"strings"
	"testing"
)

func TestDeriveAddress_Shape(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("key generation: %v", err)
	}

	addr := DeriveAddress(pub)
	if !strings.HasPrefix(addr, "0x") {
		t.Fatalf("address must start with 0x, got %q", addr)
	}
	if len(addr) != 2+40 {
		t.Fatalf("address must be 20 bytes hex, got %q", addr)
	}
	if addr != DeriveAddress(pub) {
		t.Fatalf("derivation is not deterministic")
	}
}

func TestParsePublicKey_RoundTrip(t *testing.T) {
	t.Parallel()

	pub, _, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("key generation: %v", err)
	}

	parsed, err := ParsePublicKey(hex.EncodeToString(pub))
	if err != nil {
		t.Fatalf("ParsePublicKey error: %v", err)
	}
	if !parsed.Equal(pub) {
		t.Fatalf("parsed key differs from original")
	}

	// 0x-prefixed form is accepted too.
	if _, err := ParsePublicKey("0x" + hex.EncodeToString(pub)); err != nil {
		t.Fatalf("ParsePublicKey with prefix: %v", err)
	}
}

func TestParsePublicKey_Invalid(t *testing.T) {
	t.Parallel()

	if _, err := ParsePublicKey("zz"); err == nil {
		t.Fatalf("expected error for non-hex input")
	}
	if _, err := ParsePublicKey("aabb"); err == nil {
		t.Fatalf("expected error for wrong key size")
	}
}

func TestAddressesEqual_CaseInsensitive(t *testing.T) {
	t.Parallel()

	if !AddressesEqual("0xAABB", "0xaabb") {
		t.Fatalf("addresses must compare case-insensitively")
	}
	if AddressesEqual("0xaabb", "0xaabc") {
		t.Fatalf("different addresses must not be equal")
	}
}
