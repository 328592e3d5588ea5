package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAuthService_IssueAndValidate(t *testing.T) {
	auth := NewAuthService("test-secret")

	token, err := auth.IssueAccessToken(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	userID, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if userID != 42 {
		t.Fatalf("want user 42, got %d", userID)
	}
}

func TestAuthService_RejectsInvalidTokens(t *testing.T) {
	auth := NewAuthService("test-secret")

	expired := NewAuthService("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	expiredToken, err := expired.IssueAccessToken(1)
	if err != nil {
		t.Fatalf("issue expired: %v", err)
	}

	otherSecret, err := NewAuthService("other-secret").IssueAccessToken(1)
	if err != nil {
		t.Fatalf("issue other: %v", err)
	}

	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  1,
		"type": "refresh",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign refresh: %v", err)
	}

	tests := map[string]string{
		"garbage":       "not-a-jwt",
		"expired":       expiredToken,
		"wrong secret":  otherSecret,
		"refresh token": refresh,
	}
	for name, token := range tests {
		if _, err := auth.ValidateToken(token); err == nil {
			t.Errorf("%s: expected rejection", name)
		}
	}
}
