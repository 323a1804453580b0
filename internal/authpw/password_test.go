package authpw

import "testing"

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if hash == "correct horse battery" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !Verify("correct horse battery", hash) {
		t.Fatalf("expected matching password to verify")
	}
	if Verify("wrong password", hash) {
		t.Fatalf("expected non-matching password to fail")
	}
}

func TestHashRejectsShortPasswords(t *testing.T) {
	if _, err := Hash("short"); err != ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
}

func TestHashAnyAllowsShortGatePhrases(t *testing.T) {
	hash, err := HashAny("hunter2")
	if err != nil {
		t.Fatalf("HashAny() error = %v", err)
	}
	if !Verify("hunter2", hash) {
		t.Fatalf("expected gate phrase to verify")
	}
}

func TestVerifyRejectsMalformedHash(t *testing.T) {
	if Verify("anything", "not-a-bcrypt-hash") {
		t.Fatalf("expected malformed hash to fail verification")
	}
}
