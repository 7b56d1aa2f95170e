package auth

import (
	"context"
	"testing"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(storage.NewMemory())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "asha", "monsoon-2026", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated user ID")
	}
	if u.Role != "officer" {
		t.Fatalf("expected role officer, got %q", u.Role)
	}
	if u.PasswordHash == "monsoon-2026" {
		t.Fatal("password stored in cleartext")
	}

	got, err := svc.Authenticate(ctx, "asha", "monsoon-2026")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.ID)
	}

	if _, err := svc.Authenticate(ctx, "asha", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	if _, err := svc.Authenticate(ctx, "nobody", "monsoon-2026"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Register(ctx, "asha", "pw1", "viewer"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "asha", "pw2", "admin"); err == nil {
		t.Fatal("expected error for duplicate username")
	}
}

func TestCountUsers(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	n, err := svc.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 users on fresh store, got %d", n)
	}

	if _, err := svc.Register(ctx, "first", "pw", "admin"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	n, err = svc.CountUsers(ctx)
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 user, got %d", n)
	}
}

func TestTokenLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "asha", "pw", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	tok, raw, err := svc.CreateToken(ctx, u.ID, "cli", u.Role, nil)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if raw == "" {
		t.Fatal("expected raw token")
	}
	if tok.TokenHash == raw {
		t.Fatal("raw token stored instead of hash")
	}

	got, err := svc.ValidateToken(ctx, raw)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if got.UserID != u.ID {
		t.Fatalf("expected user %s on token, got %s", u.ID, got.UserID)
	}
	if got.Role != "officer" {
		t.Fatalf("expected role officer on token, got %q", got.Role)
	}

	if _, err := svc.ValidateToken(ctx, "not-a-token"); err == nil {
		t.Fatal("expected error for unknown token")
	}
}

func TestValidateTokenExpired(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	u, err := svc.Register(ctx, "asha", "pw", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	_, raw, err := svc.CreateToken(ctx, u.ID, "stale", u.Role, &past)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}

	if _, err := svc.ValidateToken(ctx, raw); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestEnforceRoles(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	admin, err := svc.Register(ctx, "admin", "pw", "admin")
	if err != nil {
		t.Fatalf("Register admin: %v", err)
	}
	officer, err := svc.Register(ctx, "officer", "pw", "officer")
	if err != nil {
		t.Fatalf("Register officer: %v", err)
	}
	viewer, err := svc.Register(ctx, "viewer", "pw", "viewer")
	if err != nil {
		t.Fatalf("Register viewer: %v", err)
	}

	tests := []struct {
		sub  string
		obj  string
		act  string
		want bool
	}{
		{admin.ID, "installers", "write", true},
		{admin.ID, "settings", "write", true},
		{officer.ID, "assessments", "write", true},
		{officer.ID, "batches", "write", true},
		{officer.ID, "installers", "write", true},
		{officer.ID, "settings", "read", true},
		{officer.ID, "settings", "write", false},
		{viewer.ID, "assessments", "read", true},
		{viewer.ID, "installers", "read", true},
		{viewer.ID, "batches", "write", false},
		{viewer.ID, "installers", "write", false},
		{"stranger", "assessments", "read", false},
	}

	for _, tt := range tests {
		got, err := svc.Enforce(tt.sub, tt.obj, tt.act)
		if err != nil {
			t.Fatalf("Enforce(%s, %s, %s): %v", tt.sub, tt.obj, tt.act, err)
		}
		if got != tt.want {
			t.Errorf("Enforce(%s, %s, %s) = %v, want %v", tt.sub, tt.obj, tt.act, got, tt.want)
		}
	}
}

func TestPoliciesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	svc, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	u, err := svc.Register(ctx, "asha", "pw", "officer")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A second service over the same store should see the persisted
	// grouping policy.
	svc2, err := NewService(store)
	if err != nil {
		t.Fatalf("NewService again: %v", err)
	}
	ok, err := svc2.Enforce(u.ID, "assessments", "write")
	if err != nil {
		t.Fatalf("Enforce: %v", err)
	}
	if !ok {
		t.Fatal("expected grouping policy to survive a service restart")
	}
}
