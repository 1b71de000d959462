// Package tokens issues and validates the signed session tokens handed to
// dashboard clients after a password sign-in.
package tokens

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingClaim is returned when a required claim is missing
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims is the JWT body. Roles are deliberately absent: the server reads
// the role from the profile store on every request.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// ParsedClaims represents parsed and validated claims
type ParsedClaims struct {
	UserID    uuid.UUID
	SessionID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

func parseClaims(claims *Claims) (*ParsedClaims, error) {
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid sub UUID: %w", err)
	}

	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: sid", ErrMissingClaim)
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("invalid sid UUID: %w", err)
	}

	parsed := &ParsedClaims{
		UserID:    userID,
		SessionID: sessionID,
	}
	if claims.IssuedAt != nil {
		parsed.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		parsed.ExpiresAt = claims.ExpiresAt.Time
	}
	return parsed, nil
}

// PeekSessionID reads the sid claim without verifying the signature. It is
// only used to revoke a token that may already have expired.
func PeekSessionID(tokenString string) (uuid.UUID, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return uuid.Nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.SessionID == "" {
		return uuid.Nil, fmt.Errorf("%w: sid", ErrMissingClaim)
	}
	return uuid.Parse(claims.SessionID)
}
