// Package authn is the server-side authentication service: password sign-in,
// session lookup by token and sign-out.
package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/tokens"
)

// ErrSessionRevoked is returned for a well-formed token whose record is gone.
var ErrSessionRevoked = errors.New("session revoked")

// dummyHash is compared against when the email is unknown so both failure
// paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dealer-admin-placeholder"), bcrypt.DefaultCost)

// HashPassword returns the bcrypt hash stored in user_profiles.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// ClientInfo is request metadata recorded on the session.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Service signs staff in and out.
type Service struct {
	profiles repositories.ProfileRepository
	tokens   *tokens.Manager
	store    *SessionStore
	logger   *zap.Logger
}

// NewService creates an authentication service.
func NewService(profiles repositories.ProfileRepository, tm *tokens.Manager, store *SessionStore, logger *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		tokens:   tm,
		store:    store,
		logger:   logger,
	}
}

// SignInWithPassword checks credentials and opens a session. Every credential
// failure is reported as an *auth.CredentialError with the same message.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string, info ClientInfo) (*auth.Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, &auth.CredentialError{Err: errors.New("email and password are required")}
	}

	profile, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if repositories.IsNotFound(err) {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, &auth.CredentialError{Err: err}
		}
		return nil, fmt.Errorf("look up profile: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, &auth.CredentialError{Err: err}
	}

	sessionID := uuid.New()
	token, claims, err := s.tokens.Issue(profile.ID, sessionID)
	if err != nil {
		return nil, err
	}

	rec := Record{
		ID:        sessionID,
		UserID:    profile.ID,
		CreatedAt: claims.IssuedAt,
		ExpiresAt: claims.ExpiresAt,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Info("session opened",
		zap.String("user_id", profile.ID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Time("expires_at", claims.ExpiresAt))

	return &auth.Session{
		ID:          sessionID.String(),
		UserID:      profile.ID.String(),
		AccessToken: token,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

// GetSession returns the live session for token. Expired, malformed and
// revoked tokens all fail.
func (s *Service) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	rec, err := s.store.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, ErrSessionRevoked
		}
		return nil, err
	}
	if rec.UserID != claims.UserID {
		s.logger.Warn("session record does not match token subject",
			zap.String("session_id", claims.SessionID.String()))
		return nil, ErrSessionRevoked
	}

	return &auth.Session{
		ID:          rec.ID.String(),
		UserID:      rec.UserID.String(),
		AccessToken: token,
		ExpiresAt:   rec.ExpiresAt,
	}, nil
}

// SignOut revokes the session behind token. Unknown or already revoked
// sessions are not an error.
func (s *Service) SignOut(ctx context.Context, token string) (*auth.Session, error) {
	sessionID, err := tokens.PeekSessionID(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tokens.ErrInvalidToken, err)
	}

	rec, getErr := s.store.Get(ctx, sessionID)

	existed, err := s.store.Revoke(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !existed || getErr != nil {
		return nil, nil
	}

	s.logger.Info("session closed",
		zap.String("user_id", rec.UserID.String()),
		zap.String("session_id", sessionID.String()),
		zap.Duration("age", time.Since(rec.CreatedAt)))

	return &auth.Session{ID: rec.ID.String(), UserID: rec.UserID.String(), ExpiresAt: rec.ExpiresAt}, nil
}

// Ping checks the session backend.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
