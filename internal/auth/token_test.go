package auth

import (
	"testing"
	"time"
)

func TestIssueAndParseToken(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, "0xABCDEF", 80001, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	claims, err := ParseToken(secret, issued)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Address != "0xabcdef" || claims.ChainID != 80001 || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	secret := []byte("secret")
	issued, err := IssueToken(secret, "0xabc", 1, "jti-1", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken(secret, issued); err != ErrExpiredToken {
		t.Fatalf("ParseToken() error = %v, want ErrExpiredToken", err)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issued, err := IssueToken([]byte("secret"), "0xabc", 1, "jti-1", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	if _, err := ParseToken([]byte("other"), issued); err != ErrInvalidToken {
		t.Fatalf("ParseToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestIssueTokenRequiresAddress(t *testing.T) {
	if _, err := IssueToken([]byte("secret"), "", 1, "jti", time.Hour); err == nil {
		t.Fatal("expected IssueToken() to fail without an address")
	}
}
