package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// SnapshotKey is the context key for the per-request session snapshot
	SnapshotKey contextKey = "session_snapshot"

	// ProfileKey is the context key for the caller's stored profile
	ProfileKey contextKey = "profile"

	// SessionKey is the context key for the validated session
	SessionKey contextKey = "session"
)

// GetRequestIDFromContext retrieves the request ID from context, falling
// back to the id chi's RequestID middleware assigned.
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithSnapshot stores the request's session snapshot.
func WithSnapshot(ctx context.Context, snap auth.Snapshot) context.Context {
	return context.WithValue(ctx, SnapshotKey, snap)
}

// SnapshotFromContext returns the request's session snapshot. A request that
// never went through RequireAuth is unauthenticated.
func SnapshotFromContext(ctx context.Context) auth.Snapshot {
	if snap, ok := ctx.Value(SnapshotKey).(auth.Snapshot); ok {
		return snap
	}
	return auth.UnauthenticatedSnapshot()
}

// WithProfile stores the caller's profile.
func WithProfile(ctx context.Context, profile *models.Profile) context.Context {
	return context.WithValue(ctx, ProfileKey, profile)
}

// ProfileFromContext returns the caller's profile, or nil.
func ProfileFromContext(ctx context.Context) *models.Profile {
	profile, _ := ctx.Value(ProfileKey).(*models.Profile)
	return profile
}

// WithSession stores the validated session.
func WithSession(ctx context.Context, session *auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// SessionFromContext returns the validated session, or nil.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(SessionKey).(*auth.Session)
	return session
}

// GetUserIDFromContext returns the caller's user id, or uuid.Nil.
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	if profile := ProfileFromContext(ctx); profile != nil {
		return profile.ID
	}
	return uuid.Nil
}

// GetDealershipIDFromContext returns the caller's dealership, or uuid.Nil when
// the profile has no affiliation.
func GetDealershipIDFromContext(ctx context.Context) uuid.UUID {
	if profile := ProfileFromContext(ctx); profile != nil && profile.DealershipID != nil {
		return *profile.DealershipID
	}
	return uuid.Nil
}
