package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

func TestMiddlewareAnonymousPassthrough(t *testing.T) {
	svc := newTestService(t)

	var sawToken bool
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawToken = r.Context().Value(TokenContextKey).(*storage.Token)
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if sawToken {
		t.Fatal("anonymous request should not carry a token")
	}
}

func TestMiddlewareRejectsMalformedHeader(t *testing.T) {
	svc := newTestService(t)

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	for _, header := range []string{"Basic abc123", "Bearer", "Bearer a b"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/installers", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}

func TestMiddlewareRejectsUnknownToken(t *testing.T) {
	svc := newTestService(t)

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/installers", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareAttachesToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "asha", "pw", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, raw, err := svc.CreateToken(ctx, u.ID, "cli", u.Role, nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	var gotUser, gotRole string
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok, ok := r.Context().Value(TokenContextKey).(*storage.Token); ok {
			gotUser = tok.UserID
		}
		gotRole, _ = r.Context().Value(RoleContextKey).(string)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/installers", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotUser != u.ID {
		t.Fatalf("expected user %s in context, got %q", u.ID, gotUser)
	}
	if gotRole != "officer" {
		t.Fatalf("expected role officer in context, got %q", gotRole)
	}
}

func TestRequirePermission(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	officer, err := svc.Register(ctx, "officer", "pw", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	viewer, err := svc.Register(ctx, "viewer", "pw", "viewer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	protected := svc.RequirePermission("installers", "write",
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	send := func(tok *storage.Token) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/installers", nil)
		if tok != nil {
			req = req.WithContext(context.WithValue(req.Context(), TokenContextKey, tok))
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send(nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", code)
	}
	if code := send(&storage.Token{UserID: viewer.ID, Role: "viewer"}); code != http.StatusForbidden {
		t.Fatalf("viewer: expected 403, got %d", code)
	}
	if code := send(&storage.Token{UserID: officer.ID, Role: "officer"}); code != http.StatusOK {
		t.Fatalf("officer: expected 200, got %d", code)
	}
}
