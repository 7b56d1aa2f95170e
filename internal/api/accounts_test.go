package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/auth"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/notification"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// newAuthedMux builds a mux with authentication and RBAC enabled.
func newAuthedMux(t *testing.T) *http.ServeMux {
	t.Helper()
	st := storage.NewMemory()
	authSvc, err := auth.NewService(st)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	return NewMux(Options{
		Store:        st,
		Assessment:   assessment.NewServiceWithStorage(assessment.Config{Provider: "apifixture"}, st),
		Auth:         authSvc,
		Notification: notification.NewService(st),
		BatchWorkers: 2,
	})
}

func doAuthJSON(t *testing.T, mux *http.ServeMux, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

// bootstrapAdmin registers the first user and logs in, returning the raw
// API token.
func bootstrapAdmin(t *testing.T, mux *http.ServeMux) string {
	t.Helper()
	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "collector", "password": "monsoon#1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("bootstrap register: status = %d, body %q", w.Code, w.Body.String())
	}

	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "collector", "password": "monsoon#1"})
	if w.Code != http.StatusOK {
		t.Fatalf("bootstrap login: status = %d, body %q", w.Code, w.Body.String())
	}
	var res loginResponse
	decodeBody(t, w, &res)
	if res.Token == "" {
		t.Fatal("bootstrap login: empty token")
	}
	return res.Token
}

func TestRegistrationBootstrap(t *testing.T) {
	mux := newAuthedMux(t)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "collector", "password": "monsoon#1", "role": "viewer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	var user storage.User
	decodeBody(t, w, &user)
	// The requested role is ignored for the first account.
	if user.Role != "admin" {
		t.Errorf("first user role = %q, want admin", user.Role)
	}

	// Later anonymous registrations are rejected.
	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "walkin", "password": "pw"})
	if w.Code != http.StatusForbidden {
		t.Errorf("anonymous second register: status = %d, want 403", w.Code)
	}
}

func TestAdminRegistersUsers(t *testing.T) {
	mux := newAuthedMux(t)
	adminToken := bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", adminToken,
		map[string]string{"username": "field-officer", "password": "pw", "role": "officer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	var user storage.User
	decodeBody(t, w, &user)
	if user.Role != "officer" {
		t.Errorf("role = %q, want officer", user.Role)
	}

	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", adminToken,
		map[string]string{"username": "root", "password": "pw", "role": "superuser"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid role: status = %d, want 400", w.Code)
	}

	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", adminToken,
		map[string]string{"username": "field-officer", "password": "pw"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate username: status = %d, want 400", w.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	mux := newAuthedMux(t)
	adminToken := bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "collector", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status = %d, want 401", w.Code)
	}

	// The token opens protected routes; without it reads are forbidden.
	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/installers", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("authed list: status = %d, want 200", w.Code)
	}
	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/installers", "", nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("anonymous list: status = %d, want 403", w.Code)
	}
	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/installers", "forged-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("forged token: status = %d, want 401", w.Code)
	}
}

func TestLoginRejectsBadExpiry(t *testing.T) {
	mux := newAuthedMux(t)
	bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "collector", "password": "monsoon#1", "expires_in": "someday"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestTokenManagement(t *testing.T) {
	mux := newAuthedMux(t)
	adminToken := bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/tokens", adminToken,
		map[string]string{"name": "ci", "expires_in": "30d"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create token: status = %d, body %q", w.Code, w.Body.String())
	}
	var created tokenResponse
	decodeBody(t, w, &created)
	if created.Token == "" || created.Info == nil || created.Info.Name != "ci" {
		t.Fatalf("token response = %+v", created)
	}
	if created.Info.ExpiresAt == nil {
		t.Fatal("expiry not set")
	}
	want := time.Now().Add(30 * 24 * time.Hour)
	if d := created.Info.ExpiresAt.Sub(want); d < -time.Minute || d > time.Minute {
		t.Errorf("expiry = %v, want about %v", created.Info.ExpiresAt, want)
	}

	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/auth/tokens", adminToken, nil)
	var tokens []storage.Token
	decodeBody(t, w, &tokens)
	if len(tokens) != 2 {
		t.Fatalf("tokens = %d, want login + ci", len(tokens))
	}

	w = doAuthJSON(t, mux, http.MethodDelete, "/api/v1/auth/tokens/"+created.Info.ID, adminToken, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", w.Code)
	}

	// The revoked token no longer authenticates.
	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/auth/tokens", created.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: status = %d, want 401", w.Code)
	}

	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/auth/tokens", adminToken, nil)
	decodeBody(t, w, &tokens)
	if len(tokens) != 1 {
		t.Errorf("tokens after revoke = %d, want 1", len(tokens))
	}
}

func TestTokensRequireAuth(t *testing.T) {
	mux := newAuthedMux(t)
	bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodGet, "/api/v1/auth/tokens", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestViewerPermissionsOverHTTP(t *testing.T) {
	mux := newAuthedMux(t)
	adminToken := bootstrapAdmin(t, mux)

	w := doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/register", adminToken,
		map[string]string{"username": "observer", "password": "pw", "role": "viewer"})
	if w.Code != http.StatusCreated {
		t.Fatalf("register viewer: status = %d", w.Code)
	}
	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "observer", "password": "pw"})
	var res loginResponse
	decodeBody(t, w, &res)

	w = doAuthJSON(t, mux, http.MethodGet, "/api/v1/installers", res.Token, nil)
	if w.Code != http.StatusOK {
		t.Errorf("viewer read: status = %d, want 200", w.Code)
	}
	w = doAuthJSON(t, mux, http.MethodPost, "/api/v1/installers", res.Token,
		storage.Installer{Name: "Sneaky Installs", MaxJobs: 2})
	if w.Code != http.StatusForbidden {
		t.Errorf("viewer write: status = %d, want 403", w.Code)
	}
}
