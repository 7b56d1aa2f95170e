package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// contextKey keeps request-scoped auth values off the string keyspace.
type contextKey string

const (
	TokenContextKey contextKey = "token"
	RoleContextKey  contextKey = "role"
)

const bearerPrefix = "Bearer "

// bearerToken extracts the raw token from an Authorization header value.
// Anything other than a single-word Bearer credential is malformed.
func bearerToken(header string) (string, bool) {
	raw, found := strings.CutPrefix(header, bearerPrefix)
	if !found || raw == "" || strings.ContainsRune(raw, ' ') {
		return "", false
	}
	return raw, true
}

func tokenFrom(ctx context.Context) (*storage.Token, bool) {
	tok, ok := ctx.Value(TokenContextKey).(*storage.Token)
	return tok, ok
}

// Middleware attaches the validated token to the request context. Requests
// without an Authorization header pass through anonymously; permission
// checks downstream reject them.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		raw, ok := bearerToken(header)
		if !ok {
			http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
			return
		}
		token, err := s.ValidateToken(r.Context(), raw)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), TokenContextKey, token)
		ctx = context.WithValue(ctx, RoleContextKey, token.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission guards a route with a single object/action check.
// It expects Middleware to have run first; an anonymous request is 401,
// a token without the permission 403.
func (s *Service) RequirePermission(obj, act string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := tokenFrom(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch allowed, err := s.Enforce(token.UserID, obj, act); {
		case err != nil:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		case !allowed:
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
