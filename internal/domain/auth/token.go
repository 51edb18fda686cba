package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrWrongPurpose = errors.New("token issued for a different purpose")
)

const (
	claimRole    = "role"
	claimPurpose = "purpose"

	purposeReset = "password_reset"
)

// TokenClaims are the fields carried by an access token.
type TokenClaims struct {
	Subject string
	Role    string
}

// TokenIssuer issues and verifies HS256 tokens.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	resetTTL  time.Duration
}

func NewTokenIssuer(secret []byte, issuer string, accessTTL, resetTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:    secret,
		issuer:    issuer,
		accessTTL: accessTTL,
		resetTTL:  resetTTL,
	}
}

// IssueAccessToken creates a signed access token for a user.
func (t *TokenIssuer) IssueAccessToken(subject, role string) (string, error) {
	now := time.Now().UTC()
	tok, err := jwt.NewBuilder().
		Issuer(t.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(t.accessTTL)).
		Claim(claimRole, role).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// VerifyAccessToken validates a token and returns its claims.
func (t *TokenIssuer) VerifyAccessToken(raw string) (*TokenClaims, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256(), t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	var purpose string
	if err := tok.Get(claimPurpose, &purpose); err == nil && purpose != "" {
		return nil, ErrWrongPurpose
	}

	claims := &TokenClaims{}
	if err := tok.Get(jwt.SubjectKey, &claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	if err := tok.Get(claimRole, &claims.Role); err != nil {
		claims.Role = ""
	}
	return claims, nil
}

// IssueResetToken creates a short-lived password reset token.
func (t *TokenIssuer) IssueResetToken(subject string) (string, error) {
	now := time.Now().UTC()
	tok, err := jwt.NewBuilder().
		Issuer(t.issuer).
		Subject(subject).
		IssuedAt(now).
		Expiration(now.Add(t.resetTTL)).
		Claim(claimPurpose, purposeReset).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build reset token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), t.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign reset token: %w", err)
	}
	return string(signed), nil
}

// VerifyResetToken validates a reset token and returns its subject.
func (t *TokenIssuer) VerifyResetToken(raw string) (string, error) {
	tok, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256(), t.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(t.issuer),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	var purpose string
	if err := tok.Get(claimPurpose, &purpose); err != nil || purpose != purposeReset {
		return "", ErrWrongPurpose
	}

	var subject string
	if err := tok.Get(jwt.SubjectKey, &subject); err != nil {
		return "", ErrInvalidToken
	}
	return subject, nil
}
