package crypto

import "testing"

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if err := CheckPassword(hash, "secret"); err != nil {
		t.Fatalf("expected password to match")
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected password mismatch")
	}
}

func TestTokenHashing(t *testing.T) {
	token, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	other, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	if token == other {
		t.Fatalf("expected distinct tokens")
	}
	if HashToken(token) != HashToken(token) {
		t.Fatalf("expected stable hash")
	}
	if HashToken(token) == HashToken(other) {
		t.Fatalf("expected distinct hashes")
	}
}
