package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/services/authn"
	"github.com/rtauto/dealer-admin/utils"
)

// AuthService is the server-side authentication service.
type AuthService interface {
	SignInWithPassword(ctx context.Context, email, password string, info authn.ClientInfo) (*auth.Session, error)
	GetSession(ctx context.Context, token string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) (*auth.Session, error)
}

// SessionAuditor records sign-in activity.
type SessionAuditor interface {
	LogSignIn(actor audit.Actor, sessionID uuid.UUID) error
	LogSignInFailed(actor audit.Actor, email string) error
	LogSignOut(actor audit.Actor, sessionID uuid.UUID) error
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse describes an open session. The token is only returned at login.
type SessionResponse struct {
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	AccessToken string    `json:"access_token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// AuthHandler handles sign-in, sign-out and session lookups
type AuthHandler struct {
	authn        AuthService
	audit        SessionAuditor
	secureCookie bool
	logger       *zap.Logger
}

// NewAuthHandler creates a new AuthHandler. secureCookie marks the session
// cookie Secure and should be set whenever the API is served over TLS.
func NewAuthHandler(authn AuthService, audit SessionAuditor, secureCookie bool, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authn:        authn,
		audit:        audit,
		secureCookie: secureCookie,
		logger:       logger,
	}
}

// HandleLogin handles POST /auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req LoginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	actor := middleware.ActorFromRequest(r)
	session, err := h.authn.SignInWithPassword(ctx, req.Email, req.Password, authn.ClientInfo{
		IPAddress: actor.IPAddress,
		UserAgent: actor.UserAgent,
	})
	if err != nil {
		if auth.IsCredentialError(err) {
			_ = h.audit.LogSignInFailed(actor, req.Email)
			_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse{
				Error:   "invalid_credentials",
				Message: err.Error(),
			})
			return
		}
		h.logger.Error("sign in failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "Sign in is temporarily unavailable")
		return
	}

	actor.UserID, _ = uuid.Parse(session.UserID)
	sessionID, _ := uuid.Parse(session.ID)
	_ = h.audit.LogSignIn(actor, sessionID)

	h.setSessionCookie(w, session.AccessToken, session.ExpiresAt)
	_ = utils.WriteOK(w, SessionResponse{
		SessionID:   session.ID,
		UserID:      session.UserID,
		AccessToken: session.AccessToken,
		ExpiresAt:   session.ExpiresAt,
	})
}

// HandleLogout handles POST /auth/logout. It always clears the cookie and
// succeeds, even when the session was already gone.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token := middleware.ExtractToken(r); token != "" {
		session, err := h.authn.SignOut(ctx, token)
		if err != nil {
			h.logger.Debug("sign out of unknown session",
				zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
				zap.Error(err))
		} else {
			actor := middleware.ActorFromRequest(r)
			actor.UserID, _ = uuid.Parse(session.UserID)
			sessionID, _ := uuid.Parse(session.ID)
			_ = h.audit.LogSignOut(actor, sessionID)
		}
	}

	h.clearSessionCookie(w)
	utils.WriteNoContent(w)
}

// HandleSession handles GET /auth/session
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	token := middleware.ExtractToken(r)
	if token == "" {
		_ = utils.WriteUnauthorized(w, "No active session")
		return
	}

	session, err := h.authn.GetSession(r.Context(), token)
	if err != nil {
		_ = utils.WriteUnauthorized(w, "No active session")
		return
	}

	_ = utils.WriteOK(w, SessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
	})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}
