package auth

import (
	"testing"
	"time"

	"github.com/Newrona-pi/Twilio-INPUT/internal/config"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		JWTIssuer:       "survey-api",
		JWTAudience:     "survey-admin",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "operator", "admin")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}

	claims, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.UserID != "operator" || claims.Role != "admin" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejectsRefreshAsAccess(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "operator", "admin")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, err := m.Verify(pair.RefreshToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatal("refresh token must not verify as access")
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	pair, err := m.IssuePair(now, "operator", "admin")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(16*time.Minute)); err == nil {
		t.Fatal("expired token must not verify")
	}
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	m := testManager(t)
	now := time.Now()

	other, err := NewManager(config.AuthConfig{
		JWTSecret:       "different-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	pair, err := other.IssuePair(now, "operator", "admin")
	if err != nil {
		t.Fatalf("issue pair: %v", err)
	}
	if _, err := m.Verify(pair.AccessToken, TokenTypeAccess, now.Add(time.Minute)); err == nil {
		t.Fatal("token signed with another secret must not verify")
	}
}

func TestCredentialChecker(t *testing.T) {
	cc := NewCredentialChecker(config.AuthConfig{
		AdminUser:     "operator",
		AdminPassword: "hunter2hunter2",
	})

	if !cc.Check("operator", "hunter2hunter2") {
		t.Fatal("expected correct credentials to pass")
	}
	if cc.Check("operator", "wrong") {
		t.Fatal("expected wrong password to fail")
	}
	if cc.Check("intruder", "hunter2hunter2") {
		t.Fatal("expected wrong user to fail")
	}
	if cc.Check("", "") {
		t.Fatal("expected empty credentials to fail")
	}
}
