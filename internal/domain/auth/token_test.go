package auth

import (
	"errors"
	"testing"
	"time"
)

func newTestIssuer(accessTTL time.Duration) *TokenIssuer {
	return NewTokenIssuer([]byte("test-secret-key-32-bytes-long!!!"), "libris-test", accessTTL, 30*time.Minute)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer(time.Hour)

	raw, err := issuer.IssueAccessToken("user-123", "admin")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := issuer.VerifyAccessToken(raw)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.Subject != "user-123" {
		t.Errorf("Subject = %q, want user-123", claims.Subject)
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want admin", claims.Role)
	}
}

func TestAccessTokenExpired(t *testing.T) {
	issuer := newTestIssuer(-time.Minute)

	raw, err := issuer.IssueAccessToken("user-123", "member")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := issuer.VerifyAccessToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestAccessTokenWrongSecret(t *testing.T) {
	issuer := newTestIssuer(time.Hour)
	other := NewTokenIssuer([]byte("another-secret-key-entirely-!!!!"), "libris-test", time.Hour, time.Hour)

	raw, err := issuer.IssueAccessToken("user-123", "member")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	if _, err := other.VerifyAccessToken(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestResetTokenPurposeSeparation(t *testing.T) {
	issuer := newTestIssuer(time.Hour)

	reset, err := issuer.IssueResetToken("user-123")
	if err != nil {
		t.Fatalf("IssueResetToken: %v", err)
	}

	// a reset token is not an access token
	if _, err := issuer.VerifyAccessToken(reset); !errors.Is(err, ErrWrongPurpose) {
		t.Errorf("VerifyAccessToken(reset): err = %v, want ErrWrongPurpose", err)
	}

	// an access token is not a reset token
	access, err := issuer.IssueAccessToken("user-123", "member")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := issuer.VerifyResetToken(access); !errors.Is(err, ErrWrongPurpose) {
		t.Errorf("VerifyResetToken(access): err = %v, want ErrWrongPurpose", err)
	}

	subject, err := issuer.VerifyResetToken(reset)
	if err != nil {
		t.Fatalf("VerifyResetToken: %v", err)
	}
	if subject != "user-123" {
		t.Errorf("subject = %q, want user-123", subject)
	}
}
