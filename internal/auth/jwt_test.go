package auth

import (
	"os"
	"sync"
	"testing"
	"time"
)

// resetJWTSecret resets the package-level sync.Once so tests can set a fresh secret.
// This is only safe to call from test code.
func resetJWTSecret() {
	jwtSecret = ""
	jwtSecretOnce = sync.Once{}
	jwtSecretErr = nil
}

func TestMain(m *testing.M) {
	// Set a known test secret before any test runs.
	// The sync.Once captures this value on first call to InitJWTSecret.
	os.Setenv("MBP_AUTH_JWT_SECRET", "test-jwt-secret-that-is-32-chars!")
	os.Exit(m.Run())
}

func TestInitJWTSecret(t *testing.T) {
	t.Run("explicit secret from config", func(t *testing.T) {
		resetJWTSecret()
		if err := InitJWTSecret("exactly-32-char-secret-for-test!!"); err != nil {
			t.Errorf("InitJWTSecret() unexpected error: %v", err)
		}
		if GetJWTSecret() != "exactly-32-char-secret-for-test!!" {
			t.Error("GetJWTSecret() did not return the configured secret")
		}
	})

	t.Run("falls back to env var", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("MBP_AUTH_JWT_SECRET", "env-provided-secret-of-32-chars!!")
		if err := InitJWTSecret(""); err != nil {
			t.Errorf("InitJWTSecret() unexpected error: %v", err)
		}
		if GetJWTSecret() != "env-provided-secret-of-32-chars!!" {
			t.Error("GetJWTSecret() did not return the env secret")
		}
	})

	t.Run("production mode requires secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("MBP_AUTH_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "")
		t.Setenv("GIN_MODE", "release")
		if err := InitJWTSecret(""); err == nil {
			t.Error("InitJWTSecret() expected error in production mode without secret, got nil")
		}
	})

	t.Run("dev mode generates random secret", func(t *testing.T) {
		resetJWTSecret()
		t.Setenv("MBP_AUTH_JWT_SECRET", "")
		t.Setenv("DEV_MODE", "true")
		if err := InitJWTSecret(""); err != nil {
			t.Errorf("InitJWTSecret() unexpected error in dev mode: %v", err)
		}
		if GetJWTSecret() == "" {
			t.Error("GetJWTSecret() returned empty string after dev mode init")
		}
	})
}

func TestGenerateAndValidateJWT(t *testing.T) {
	resetJWTSecret()
	t.Setenv("MBP_AUTH_JWT_SECRET", "test-jwt-secret-that-is-32-chars!")

	t.Run("round trip", func(t *testing.T) {
		userID := "user-123"
		email := "test@example.com"

		token, err := GenerateJWT(userID, email, time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}
		if token == "" {
			t.Fatal("GenerateJWT() returned empty token")
		}

		claims, err := ValidateJWT(token)
		if err != nil {
			t.Fatalf("ValidateJWT() error: %v", err)
		}
		if claims.UserID != userID {
			t.Errorf("claims.UserID = %q, want %q", claims.UserID, userID)
		}
		if claims.Email != email {
			t.Errorf("claims.Email = %q, want %q", claims.Email, email)
		}
		if claims.Issuer != "member-portal" {
			t.Errorf("claims.Issuer = %q, want %q", claims.Issuer, "member-portal")
		}
	})

	t.Run("default expiry when zero duration", func(t *testing.T) {
		token, err := GenerateJWT("uid", "u@example.com", 0)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}
		claims, err := ValidateJWT(token)
		if err != nil {
			t.Fatalf("ValidateJWT() error: %v", err)
		}
		// Should expire roughly 24 hours from now
		remaining := time.Until(claims.ExpiresAt.Time)
		if remaining < 23*time.Hour || remaining > 25*time.Hour {
			t.Errorf("default expiry remaining = %v, want ~24h", remaining)
		}
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := GenerateJWT("uid", "u@example.com", -time.Second)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}
		_, err = ValidateJWT(token)
		if err == nil {
			t.Error("ValidateJWT() expected error for expired token, got nil")
		}
	})

	t.Run("invalid token string", func(t *testing.T) {
		_, err := ValidateJWT("not.a.valid.token")
		if err == nil {
			t.Error("ValidateJWT() expected error for garbage token, got nil")
		}
	})

	t.Run("empty token string", func(t *testing.T) {
		_, err := ValidateJWT("")
		if err == nil {
			t.Error("ValidateJWT() expected error for empty token, got nil")
		}
	})

	t.Run("token signed with different secret is rejected", func(t *testing.T) {
		token, err := GenerateJWT("uid", "u@example.com", time.Hour)
		if err != nil {
			t.Fatalf("GenerateJWT() error: %v", err)
		}

		resetJWTSecret()
		t.Setenv("MBP_AUTH_JWT_SECRET", "completely-different-secret-32ch!")

		_, err = ValidateJWT(token)
		if err == nil {
			t.Error("ValidateJWT() expected error for token signed with different secret, got nil")
		}

		// Restore for remaining tests
		resetJWTSecret()
		t.Setenv("MBP_AUTH_JWT_SECRET", "test-jwt-secret-that-is-32-chars!")
	})
}
