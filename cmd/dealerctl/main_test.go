package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtauto/dealer-admin/client"
	"github.com/rtauto/dealer-admin/internal/auth"
)

const (
	userID       = "2b1f5d36-6f0e-4d49-a3c5-1b1c9a0f3e11"
	dealershipID = "8d0c4f6e-1f7a-4a3e-9d55-0f9b7e6c2a10"
	vehicleID    = "0b8f1e4a-3c1d-4c59-9a58-2f7d1c3b9e01"
	token        = "signed.jwt.token"
)

type fakeServer struct {
	role       string
	deletes    atomic.Int32
	lastStatus atomic.Value
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) handler() http.Handler {
	expires := time.Now().Add(time.Hour).UTC()
	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer "+token {
				respond(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next(w, r)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "hunter2" {
			respond(w, http.StatusUnauthorized, map[string]string{"error": "invalid_credentials", "message": "invalid email or password"})
			return
		}
		respond(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"session_id": "s-1", "user_id": userID, "access_token": token, "expires_at": expires,
		}})
	})
	mux.HandleFunc("/api/v1/auth/session", authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"session_id": "s-1", "user_id": userID, "expires_at": expires,
		}})
	}))
	mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/api/v1/me", authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{"data": map[string]interface{}{
			"profile": map[string]interface{}{
				"id": userID, "email": "pat@example.com", "dealership_id": dealershipID,
				"role": f.role, "first_name": "Pat", "last_name": "Lee",
			},
			"role": f.role,
		}})
	}))
	mux.HandleFunc("/api/v1/dealerships/"+dealershipID, authed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{"data": map[string]string{"id": dealershipID, "name": "RT Auto"}})
	}))
	mux.HandleFunc("/api/v1/vehicles", authed(func(w http.ResponseWriter, r *http.Request) {
		f.lastStatus.Store(r.URL.Query().Get("status"))
		respond(w, http.StatusOK, map[string]interface{}{
			"data": []map[string]interface{}{{
				"id": vehicleID, "stock_number": "A1001", "year": 2021, "make": "Toyota", "model": "Camry",
				"trim": "SE", "status": "sold", "asking_price": 24500,
			}},
			"page": 0, "page_size": 25, "total": 1, "total_pages": 1,
		})
	}))
	mux.HandleFunc("/api/v1/vehicles/"+vehicleID, authed(func(w http.ResponseWriter, r *http.Request) {
		f.deletes.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	return mux
}

type harness struct {
	t      *testing.T
	server *fakeServer
	url    string
	tokens *client.MemoryTokenStore
}

func newHarness(t *testing.T, role string) *harness {
	f := &fakeServer{role: role}
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	return &harness{t: t, server: f, url: srv.URL, tokens: client.NewMemoryTokenStore()}
}

func (h *harness) run(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	c := &cli{
		stdin:  strings.NewReader(""),
		stdout: &stdout,
		stderr: &stderr,
		getenv: func(string) string { return "" },
		tokens: h.tokens,
	}
	code := c.run(context.Background(), append([]string{"--server", h.url}, args...))
	return code, stdout.String(), stderr.String()
}

func (h *harness) signIn() {
	h.t.Helper()
	require.NoError(h.t, h.tokens.Save(&auth.Session{
		ID: "s-1", UserID: userID, AccessToken: token, ExpiresAt: time.Now().Add(time.Hour),
	}))
}

func TestUsage(t *testing.T) {
	h := newHarness(t, "viewer")

	code, _, stderr := h.run()
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, "usage: dealerctl")

	code, _, stderr = h.run("bogus")
	assert.Equal(t, exitError, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)
}

func TestWhoami_NotSignedIn(t *testing.T) {
	h := newHarness(t, "viewer")

	code, _, stderr := h.run("whoami")
	assert.Equal(t, exitNotSignedIn, code)
	assert.Contains(t, stderr, "not signed in")
}

func TestLoginThenWhoami(t *testing.T) {
	h := newHarness(t, "manager")

	code, stdout, stderr := h.run("login", "--email", "pat@example.com", "--password", "hunter2")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "Signed in as Pat Lee (Manager)")

	stored, err := h.tokens.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, token, stored.AccessToken)

	code, stdout, _ = h.run("whoami")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Pat Lee")
	assert.Contains(t, stdout, "PL")
	assert.Contains(t, stdout, "Manager")
	assert.Contains(t, stdout, "RT Auto")
}

func TestLogin_BadPassword(t *testing.T) {
	h := newHarness(t, "manager")

	code, _, stderr := h.run("login", "--email", "pat@example.com", "--password", "nope")
	assert.Equal(t, exitNotSignedIn, code)
	assert.Contains(t, stderr, "invalid email or password")

	stored, _ := h.tokens.Load()
	assert.Nil(t, stored)
}

func TestLogout(t *testing.T) {
	h := newHarness(t, "manager")
	h.signIn()

	code, stdout, _ := h.run("logout")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Signed out")

	stored, _ := h.tokens.Load()
	assert.Nil(t, stored)
}

func TestVehicles(t *testing.T) {
	t.Run("viewer lists inventory", func(t *testing.T) {
		h := newHarness(t, "viewer")
		h.signIn()

		code, stdout, stderr := h.run("vehicles", "--status", "sold")
		require.Equal(t, exitOK, code, stderr)
		assert.Contains(t, stdout, "2021 Toyota Camry SE")
		assert.Contains(t, stdout, "Sold")
		assert.Contains(t, stdout, "24500.00")
		assert.Equal(t, "sold", h.server.lastStatus.Load())
	})

	t.Run("signed out", func(t *testing.T) {
		h := newHarness(t, "viewer")

		code, _, stderr := h.run("vehicles")
		assert.Equal(t, exitNotSignedIn, code)
		assert.Contains(t, stderr, "not signed in")
	})

	t.Run("viewer may not delete", func(t *testing.T) {
		h := newHarness(t, "viewer")
		h.signIn()

		code, _, stderr := h.run("vehicles", "delete", vehicleID)
		assert.Equal(t, exitForbidden, code)
		assert.Contains(t, stderr, "not permitted")
		assert.Equal(t, int32(0), h.server.deletes.Load())
	})

	t.Run("manager deletes", func(t *testing.T) {
		h := newHarness(t, "manager")
		h.signIn()

		code, stdout, stderr := h.run("vehicles", "delete", vehicleID)
		require.Equal(t, exitOK, code, stderr)
		assert.Contains(t, stdout, "Deleted vehicle "+vehicleID)
		assert.Equal(t, int32(1), h.server.deletes.Load())
	})

	t.Run("delete needs an id", func(t *testing.T) {
		h := newHarness(t, "manager")
		h.signIn()

		code, _, stderr := h.run("vehicles", "delete")
		assert.Equal(t, exitError, code)
		assert.Contains(t, stderr, "usage: dealerctl vehicles delete")
	})
}
