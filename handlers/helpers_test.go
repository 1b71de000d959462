package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rtauto/dealer-admin/internal/auth"
	"github.com/rtauto/dealer-admin/middleware"
	"github.com/rtauto/dealer-admin/models"
	"github.com/rtauto/dealer-admin/services/audit"
)

// recordingAuditor satisfies every auditor interface and remembers what it saw.
type recordingAuditor struct {
	mu      sync.Mutex
	actions []string
	actors  []audit.Actor
}

func (a *recordingAuditor) record(action string, actor audit.Actor) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	a.actors = append(a.actors, actor)
	return nil
}

func (a *recordingAuditor) LogSignIn(actor audit.Actor, _ uuid.UUID) error {
	return a.record(string(models.AuditActionSignIn), actor)
}

func (a *recordingAuditor) LogSignInFailed(actor audit.Actor, _ string) error {
	return a.record(string(models.AuditActionSignInFailed), actor)
}

func (a *recordingAuditor) LogSignOut(actor audit.Actor, _ uuid.UUID) error {
	return a.record(string(models.AuditActionSignOut), actor)
}

func (a *recordingAuditor) LogVehicleChange(actor audit.Actor, action models.AuditAction, _ *models.Vehicle) error {
	return a.record(string(action), actor)
}

func (a *recordingAuditor) LogPhotoChange(actor audit.Actor, action models.AuditAction, _ *models.VehiclePhoto) error {
	return a.record(string(action), actor)
}

func (a *recordingAuditor) LogRoleChange(actor audit.Actor, _ uuid.UUID, _, _ auth.Role) error {
	return a.record(string(models.AuditActionRoleChanged), actor)
}

func (a *recordingAuditor) LogDealershipUpdated(actor audit.Actor, _ uuid.UUID, _ map[string]interface{}) error {
	return a.record(string(models.AuditActionDealershipEdit), actor)
}

func (a *recordingAuditor) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

func newCaller(role auth.Role) (*models.Profile, *models.Dealership) {
	dealership := models.NewDealership("Riverside Toyota", "riverside-toyota")
	profile := models.NewProfile("staff@riverside.example", "", dealership.ID, role)
	profile.FirstName, profile.LastName = "Jordan", "Reyes"
	return profile, dealership
}

// asCaller attaches what RequireAuth would have put on the request.
func asCaller(req *http.Request, profile *models.Profile, dealership *models.Dealership) *http.Request {
	var summary *auth.Dealership
	if dealership != nil {
		summary = dealership.Summary()
	}
	ctx := middleware.WithProfile(req.Context(), profile)
	ctx = middleware.WithSnapshot(ctx, auth.AuthenticatedSnapshot(profile.Identity(), summary))
	return req.WithContext(ctx)
}

// withURLParams sets chi route parameters without routing.
func withURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}
