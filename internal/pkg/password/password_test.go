package password

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := HashWithCost("correct horse", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !Verify("correct horse", hash) {
		t.Fatal("expected match")
	}
	if Verify("wrong", hash) {
		t.Fatal("expected mismatch")
	}
	if Verify("", hash) {
		t.Fatal("empty password must not match")
	}
	if Verify("correct horse", "not-a-hash") {
		t.Fatal("malformed hash must not match")
	}
}
