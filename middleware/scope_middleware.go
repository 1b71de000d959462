package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/utils"
)

// DealershipParam is the URL parameter RequireDealership checks.
const DealershipParam = "dealershipID"

// ScopeMiddleware keeps callers inside their own dealership.
type ScopeMiddleware struct {
	logger *zap.Logger
}

// NewScopeMiddleware creates a new ScopeMiddleware
func NewScopeMiddleware(logger *zap.Logger) *ScopeMiddleware {
	return &ScopeMiddleware{logger: logger}
}

// RequireDealership rejects requests whose {dealershipID} is not the caller's
// affiliation. Owners may address any dealership. Must run after RequireAuth.
func (m *ScopeMiddleware) RequireDealership(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		identity, ok := SnapshotFromContext(ctx).Identity()
		if !ok {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		target, err := uuid.Parse(chi.URLParam(r, DealershipParam))
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid dealership ID", nil)
			return
		}

		if identity.Role == auth.RoleOwner || identity.DealershipID == target.String() {
			next.ServeHTTP(w, r)
			return
		}

		m.logger.Warn("cross-dealership access denied",
			zap.String("request_id", requestID),
			zap.String("user_id", identity.ID),
			zap.String("dealership_id", target.String()))
		_ = utils.WriteForbidden(w, "You do not have access to this dealership")
	})
}
