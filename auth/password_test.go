package auth

import (
	"strings"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("correct-horse")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "correct-horse" || !strings.HasPrefix(hash, "$2") {
		t.Fatalf("hash %q does not look like bcrypt", hash)
	}

	ok, err := CheckPassword(hash, "correct-horse")
	if err != nil || !ok {
		t.Errorf("CheckPassword(right) = %v, %v", ok, err)
	}

	ok, err = CheckPassword(hash, "battery-staple")
	if err != nil || ok {
		t.Errorf("CheckPassword(wrong) = %v, %v", ok, err)
	}
}

func TestCheckPassword_MalformedHash(t *testing.T) {
	if _, err := CheckPassword("plaintext", "plaintext"); err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	if _, err := HashPassword(strings.Repeat("a", 73)); err == nil {
		t.Error("expected error for a password over 72 bytes")
	}
}
