package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndMatch(t *testing.T) {
	t.Parallel()

	h := NewHasher(bcrypt.MinCost)
	hash, err := h.Hash("student123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if ok, err := h.Matches(hash, "student123"); err != nil || !ok {
		t.Fatalf("Matches(correct)=(%v,%v), want (true,nil)", ok, err)
	}
	if ok, err := h.Matches(hash, "wrong"); err != nil || ok {
		t.Fatalf("Matches(wrong)=(%v,%v), want (false,nil)", ok, err)
	}
	if _, err := h.Matches([]byte("not-a-hash"), "x"); err == nil {
		t.Fatalf("Matches(malformed) err=nil, want error")
	}
}
