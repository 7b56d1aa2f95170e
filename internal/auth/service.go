// Package auth provides user accounts, opaque API tokens and role-based
// access control for the HTTP layer. Roles are admin, officer and viewer;
// objects are the five API resource groups.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (r.obj == p.obj || p.obj == "*") && (r.act == p.act || p.act == "*")
`

// defaultPolicies seeds the role permissions. Admins hold the wildcard;
// officers run assessments and batches and maintain the installer
// marketplace; viewers only read.
var defaultPolicies = [][3]string{
	{"admin", "*", "*"},

	{"officer", "assessments", "read"},
	{"officer", "assessments", "write"},
	{"officer", "batches", "read"},
	{"officer", "batches", "write"},
	{"officer", "installers", "read"},
	{"officer", "installers", "write"},
	{"officer", "providers", "read"},
	{"officer", "settings", "read"},

	{"viewer", "assessments", "read"},
	{"viewer", "batches", "read"},
	{"viewer", "installers", "read"},
	{"viewer", "providers", "read"},
}

type Service struct {
	storage  storage.Storage
	enforcer *casbin.Enforcer
}

func NewService(s storage.Storage) (*Service, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, err
	}

	// Rules persist through the storage adapter; seeding below is a no-op
	// for policies already loaded.
	e, err := casbin.NewEnforcer(m, NewAdapter(s))
	if err != nil {
		return nil, err
	}
	for _, p := range defaultPolicies {
		e.AddPolicy(p[0], p[1], p[2])
	}

	return &Service{storage: s, enforcer: e}, nil
}

// hashToken is the storage form of a raw token. Only the hash is ever
// persisted; the raw value is shown to the caller once.
func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func (s *Service) Authenticate(ctx context.Context, username, password string) (*storage.User, error) {
	u, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *Service) Register(ctx context.Context, username, password, role string) (*storage.User, error) {
	existing, err := s.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	u := storage.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.storage.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.enforcer.AddGroupingPolicy(u.ID, role)
	return &u, nil
}

// CountUsers reports how many users exist, so the API can allow an
// unauthenticated first registration on a fresh deployment.
func (s *Service) CountUsers(ctx context.Context) (int, error) {
	users, err := s.storage.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	return len(users), nil
}

func (s *Service) CreateToken(ctx context.Context, userID, name, role string, expiresAt *time.Time) (*storage.Token, string, error) {
	raw := uuid.New().String() + uuid.New().String()

	t := storage.Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		TokenHash: hashToken(raw),
		Role:      role,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	if err := s.storage.CreateToken(ctx, t); err != nil {
		return nil, "", err
	}
	return &t, raw, nil
}

func (s *Service) ValidateToken(ctx context.Context, rawToken string) (*storage.Token, error) {
	t, err := s.storage.GetTokenByHash(ctx, hashToken(rawToken))
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, errors.New("invalid token")
	}
	if t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}

	// Last-used is advisory; never block or fail validation on it.
	go s.storage.UpdateTokenLastUsed(context.Background(), t.ID)

	return t, nil
}

// ListTokens returns the tokens a user owns. Hashes stay private to the
// storage layer; the JSON encoding never includes them.
func (s *Service) ListTokens(ctx context.Context, userID string) ([]storage.Token, error) {
	return s.storage.ListTokens(ctx, userID)
}

// GetTokenInfo looks a token up by id, (nil, nil) when absent.
func (s *Service) GetTokenInfo(ctx context.Context, id string) (*storage.Token, error) {
	return s.storage.GetToken(ctx, id)
}

// DeleteToken revokes a token by id.
func (s *Service) DeleteToken(ctx context.Context, id string) error {
	return s.storage.DeleteToken(ctx, id)
}

func (s *Service) Enforce(sub, obj, act string) (bool, error) {
	return s.enforcer.Enforce(sub, obj, act)
}
