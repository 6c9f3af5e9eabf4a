package session

import "testing"

func TestHasherDeterministicPerSecret(t *testing.T) {
	h1 := NewHasher([]byte("secret-a"))
	h2 := NewHasher([]byte("secret-b"))

	raw, err := NewToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}

	if h1.Hash(raw) != h1.Hash(raw) {
		t.Fatalf("hash not deterministic")
	}
	if h1.Hash(raw) == h2.Hash(raw) {
		t.Fatalf("hash identical across secrets")
	}
	if h1.Hash(raw) == raw {
		t.Fatalf("hash equals raw token")
	}
}
