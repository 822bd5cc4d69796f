package utils

import "testing"

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken("user-123", "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := VerifyToken(token, "secret")
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("user id = %s, want user-123", claims.UserID)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("user-123", "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := VerifyToken(token, "other-secret"); err == nil {
		t.Fatal("token signed with a different secret must be rejected")
	}
}

func TestTokenGarbage(t *testing.T) {
	if _, err := VerifyToken("not.a.token", "secret"); err == nil {
		t.Fatal("garbage token must be rejected")
	}
}
