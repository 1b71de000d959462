package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services/audit"
	"github.com/rtauto/dealer-admin/utils"
)

// SessionCookieName is the cookie the login handler sets. The Authorization
// header takes precedence when both are present.
const SessionCookieName = "session"

// LoginPath is where browser navigations are sent when signed out.
const LoginPath = "/login"

// retryAfter is advertised while a session is still resolving.
const retryAfter = time.Second

// SessionValidator resolves a bearer token to a live session.
type SessionValidator interface {
	GetSession(ctx context.Context, token string) (*auth.Session, error)
}

// ProfileGetter loads the stored profile behind a session.
type ProfileGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// DealershipGetter loads a profile's affiliation.
type DealershipGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dealership, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	sessions    SessionValidator
	profiles    ProfileGetter
	dealerships DealershipGetter
	logger      *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(sessions SessionValidator, profiles ProfileGetter, dealerships DealershipGetter, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions:    sessions,
		profiles:    profiles,
		dealerships: dealerships,
		logger:      logger,
	}
}

// RequireAuth validates the session and resolves the caller's profile and
// dealership into a per-request snapshot. The role always comes from the
// stored profile, never from the token. A profile that cannot be loaded
// rejects the request; a dealership that cannot be loaded does not.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := ExtractToken(r)
		if token == "" {
			m.logger.Debug("missing token", zap.String("request_id", requestID))
			m.unauthorized(w, r, "Missing or invalid authorization")
			return
		}

		session, err := m.sessions.GetSession(ctx, token)
		if err != nil {
			m.logger.Warn("session validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			m.unauthorized(w, r, "Invalid or expired session")
			return
		}

		userID, err := uuid.Parse(session.UserID)
		if err != nil {
			m.logger.Error("session carries malformed user id",
				zap.String("request_id", requestID),
				zap.String("user_id", session.UserID))
			m.unauthorized(w, r, "Invalid or expired session")
			return
		}

		profile, err := m.profiles.GetByID(ctx, userID)
		if err == nil && profile == nil {
			err = auth.ErrProfileNotFound
		}
		if err != nil {
			resolveErr := &auth.ProfileResolutionError{UserID: session.UserID, Err: err}
			m.logger.Warn("profile resolution failed",
				zap.String("request_id", requestID),
				zap.Error(resolveErr))
			m.unauthorized(w, r, "Profile not available")
			return
		}

		var dealership *auth.Dealership
		if profile.DealershipID != nil {
			d, err := m.dealerships.GetByID(ctx, *profile.DealershipID)
			if err != nil {
				m.logger.Warn("dealership fetch failed",
					zap.String("request_id", requestID),
					zap.String("dealership_id", profile.DealershipID.String()),
					zap.Error(err))
			} else {
				dealership = d.Summary()
			}
		}

		ctx = WithSession(ctx, session)
		ctx = WithProfile(ctx, profile)
		ctx = WithSnapshot(ctx, auth.AuthenticatedSnapshot(profile.Identity(), dealership))

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", profile.ID.String()),
			zap.String("role", string(profile.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole admits callers whose role meets min, deciding through an
// AccessGate over the request snapshot.
func (m *AuthMiddleware) RequireRole(min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			gate := auth.NewAccessGate(SnapshotFromContext(ctx))

			switch decision := gate.RequireAccess(min); decision {
			case auth.DecisionAllow:
				next.ServeHTTP(w, r)
			case auth.DecisionWait:
				_ = utils.WriteServiceUnavailable(w, "Session is still resolving", retryAfter)
			case auth.DecisionRedirect:
				m.unauthorized(w, r, "Authentication required")
			default:
				identity, _ := SnapshotFromContext(ctx).Identity()
				m.logger.Warn("insufficient permissions",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.String("required_role", string(min)),
					zap.String("role", string(identity.Role)))
				_ = utils.WriteForbidden(w, "You do not have permission to perform this action")
			}
		})
	}
}

// unauthorized writes 401. Browser navigations also get a Location header
// pointing at the sign-in page.
func (m *AuthMiddleware) unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Location", LoginPath)
	}
	_ = utils.WriteUnauthorized(w, message)
}

// ExtractToken returns the bearer token, else the session cookie, else "".
func ExtractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// ActorFromRequest describes the caller for audit records. Fields the
// request does not carry are left zero.
func ActorFromRequest(r *http.Request) audit.Actor {
	ctx := r.Context()
	return audit.Actor{
		UserID:       GetUserIDFromContext(ctx),
		DealershipID: GetDealershipIDFromContext(ctx),
		RequestID:    GetRequestIDFromContext(ctx),
		IPAddress:    ClientIP(r),
		UserAgent:    r.UserAgent(),
	}
}

// ClientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already applied X-Forwarded-For when it runs first.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
