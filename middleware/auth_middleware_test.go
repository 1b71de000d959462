package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/repositories"
	"github.com/rtauto/dealer-admin/repositories/mocks"
)

// MockSessionValidator is a mock implementation of SessionValidator
type MockSessionValidator struct {
	mock.Mock
}

func (m *MockSessionValidator) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Session), args.Error(1)
}

type authFixture struct {
	sessions    *MockSessionValidator
	profiles    *mocks.ProfileRepository
	dealerships *mocks.DealershipRepository
	middleware  *AuthMiddleware
	profile     *models.Profile
	dealership  *models.Dealership
}

func newAuthFixture(role auth.Role) *authFixture {
	dealership := models.NewDealership("Riverside Toyota", "riverside-toyota")
	profile := models.NewProfile("maria@riverside.example", "", dealership.ID, role)
	profile.FirstName, profile.LastName = "Maria", "Lopez"

	f := &authFixture{
		sessions:    &MockSessionValidator{},
		profiles:    &mocks.ProfileRepository{},
		dealerships: &mocks.DealershipRepository{},
		profile:     profile,
		dealership:  dealership,
	}
	f.middleware = NewAuthMiddleware(f.sessions, f.profiles, f.dealerships, zap.NewNop())
	return f
}

func (f *authFixture) session() *auth.Session {
	return &auth.Session{ID: uuid.NewString(), UserID: f.profile.ID.String(), AccessToken: "valid-token"}
}

func TestRequireAuth(t *testing.T) {
	t.Run("bearer token resolves profile and dealership", func(t *testing.T) {
		f := newAuthFixture(auth.RoleManager)
		f.sessions.On("GetSession", mock.Anything, "valid-token").Return(f.session(), nil)
		f.profiles.On("GetByID", mock.Anything, f.profile.ID).Return(f.profile, nil)
		f.dealerships.On("GetByID", mock.Anything, f.dealership.ID).Return(f.dealership, nil)

		handler := f.middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := SnapshotFromContext(r.Context())
			assert.Equal(t, auth.StateAuthenticated, snap.State())
			identity, _ := snap.Identity()
			assert.Equal(t, auth.RoleManager, identity.Role)
			d, ok := snap.Dealership()
			assert.True(t, ok)
			assert.Equal(t, "Riverside Toyota", d.Name)
			assert.Equal(t, f.profile.ID, GetUserIDFromContext(r.Context()))
			assert.Equal(t, f.dealership.ID, GetDealershipIDFromContext(r.Context()))
			assert.NotNil(t, SessionFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		f.sessions.AssertExpectations(t)
		f.profiles.AssertExpectations(t)
	})

	t.Run("session cookie is accepted", func(t *testing.T) {
		f := newAuthFixture(auth.RoleViewer)
		f.sessions.On("GetSession", mock.Anything, "cookie-token").Return(f.session(), nil)
		f.profiles.On("GetByID", mock.Anything, f.profile.ID).Return(f.profile, nil)
		f.dealerships.On("GetByID", mock.Anything, f.dealership.ID).Return(f.dealership, nil)

		handler := f.middleware.RequireAuth(okHandler())
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing token returns 401", func(t *testing.T) {
		f := newAuthFixture(auth.RoleViewer)
		handler := f.middleware.RequireAuth(failHandler(t))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
		f.sessions.AssertNotCalled(t, "GetSession")
	})

	t.Run("browser navigation is pointed at login", func(t *testing.T) {
		f := newAuthFixture(auth.RoleViewer)
		handler := f.middleware.RequireAuth(failHandler(t))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, LoginPath, w.Header().Get("Location"))
	})

	t.Run("revoked session returns 401", func(t *testing.T) {
		f := newAuthFixture(auth.RoleViewer)
		f.sessions.On("GetSession", mock.Anything, "old-token").Return(nil, errors.New("session revoked"))

		handler := f.middleware.RequireAuth(failHandler(t))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer old-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		f.profiles.AssertNotCalled(t, "GetByID")
	})

	t.Run("profile failure fails closed", func(t *testing.T) {
		f := newAuthFixture(auth.RoleOwner)
		f.sessions.On("GetSession", mock.Anything, "valid-token").Return(f.session(), nil)
		f.profiles.On("GetByID", mock.Anything, f.profile.ID).Return(nil, repositories.ErrNotFound)

		handler := f.middleware.RequireAuth(failHandler(t))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		f.dealerships.AssertNotCalled(t, "GetByID")
	})

	t.Run("dealership failure keeps the caller authenticated", func(t *testing.T) {
		f := newAuthFixture(auth.RoleSalesperson)
		f.sessions.On("GetSession", mock.Anything, "valid-token").Return(f.session(), nil)
		f.profiles.On("GetByID", mock.Anything, f.profile.ID).Return(f.profile, nil)
		f.dealerships.On("GetByID", mock.Anything, f.dealership.ID).Return(nil, errors.New("connection reset"))

		handler := f.middleware.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := SnapshotFromContext(r.Context())
			assert.Equal(t, auth.StateAuthenticated, snap.State())
			_, ok := snap.Dealership()
			assert.False(t, ok)
			w.WriteHeader(http.StatusOK)
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer valid-token")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(nil, nil, nil, zap.NewNop())

	tests := []struct {
		name     string
		snapshot *auth.Snapshot
		want     int
	}{
		{"no snapshot", nil, http.StatusUnauthorized},
		{"initializing", ptr(auth.InitializingSnapshot()), http.StatusServiceUnavailable},
		{"unauthenticated", ptr(auth.UnauthenticatedSnapshot()), http.StatusUnauthorized},
		{"salesperson below manager", ptr(authenticated(auth.RoleSalesperson)), http.StatusForbidden},
		{"manager meets manager", ptr(authenticated(auth.RoleManager)), http.StatusOK},
		{"owner above manager", ptr(authenticated(auth.RoleOwner)), http.StatusOK},
		{"unknown stored role", ptr(authenticated(auth.Role("intern"))), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/vehicles/1", nil)
			if tt.snapshot != nil {
				req = req.WithContext(WithSnapshot(req.Context(), *tt.snapshot))
			}
			w := httptest.NewRecorder()
			m.RequireRole(auth.RoleManager)(okHandler()).ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusServiceUnavailable {
				assert.Equal(t, "1", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	assert.Equal(t, "header-token", ExtractToken(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, ExtractToken(req))
}

func TestActorFromRequest(t *testing.T) {
	f := newAuthFixture(auth.RoleAdmin)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "203.0.113.9:52144"
	req.Header.Set("User-Agent", "dealerctl/1.0")
	ctx := WithRequestID(req.Context(), "req-1")
	req = req.WithContext(WithProfile(ctx, f.profile))

	actor := ActorFromRequest(req)
	require.Equal(t, f.profile.ID, actor.UserID)
	assert.Equal(t, f.dealership.ID, actor.DealershipID)
	assert.Equal(t, "req-1", actor.RequestID)
	assert.Equal(t, "203.0.113.9", actor.IPAddress)
	assert.Equal(t, "dealerctl/1.0", actor.UserAgent)
}

func authenticated(role auth.Role) auth.Snapshot {
	return auth.AuthenticatedSnapshot(auth.Identity{ID: uuid.NewString(), Role: role, DealershipID: uuid.NewString()}, nil)
}

func ptr(s auth.Snapshot) *auth.Snapshot { return &s }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func failHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	})
}
