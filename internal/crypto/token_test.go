package crypto

import "testing"

func TestNewSessionToken(t *testing.T) {
	first, err := NewSessionToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	second, err := NewSessionToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct tokens")
	}
	// 32 bytes base64url without padding.
	if len(first) != 43 {
		t.Fatalf("unexpected token length %d", len(first))
	}
}

func TestHashToken(t *testing.T) {
	if HashToken("a") == HashToken("b") {
		t.Fatalf("expected distinct hashes")
	}
	if HashToken("a") != HashToken("a") {
		t.Fatalf("expected stable hash")
	}
	if HashToken("a") == "a" {
		t.Fatalf("hash must not equal the token")
	}
}
