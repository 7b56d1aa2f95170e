package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/auth"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// loginResponse carries the one-time raw token; only its hash is stored.
type loginResponse struct {
	Token     string        `json:"token"`
	TokenID   string        `json:"token_id"`
	ExpiresAt *time.Time    `json:"expires_at,omitempty"`
	User      *storage.User `json:"user"`
}

type tokenResponse struct {
	Token string         `json:"token"`
	Info  *storage.Token `json:"info"`
}

// registerAccountRoutes exposes registration, login and token management.
// With auth disabled there are no accounts, so nothing is registered.
func registerAccountRoutes(mux *http.ServeMux, authSvc *auth.Service) {
	if authSvc == nil {
		return
	}

	// The middleware passes anonymous requests through, which registration
	// and login need; the handlers decide who may proceed.
	mux.Handle("/api/v1/auth/register", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/auth/register", start)

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password are required", http.StatusBadRequest)
			return
		}

		count, err := authSvc.CountUsers(r.Context())
		if err != nil {
			writeError(w, "/api/v1/auth/register", err)
			return
		}

		role := req.Role
		if count == 0 {
			// First registration on a fresh deployment bootstraps the
			// admin account.
			role = "admin"
		} else {
			if allowed, err := authSvc.Enforce(getUserID(r), "users", "write"); err != nil || !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			if role == "" {
				role = "viewer"
			}
			if !validRole(role) {
				http.Error(w, "role must be admin, officer or viewer", http.StatusBadRequest)
				return
			}
		}

		user, err := authSvc.Register(r.Context(), req.Username, req.Password, role)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, user)
	})))

	mux.Handle("/api/v1/auth/login", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/auth/login", start)

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			TokenName string `json:"token_name"`
			ExpiresIn string `json:"expires_in"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req.Username, req.Password)
		if err != nil {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		name := req.TokenName
		if name == "" {
			name = "login"
		}

		info, raw, err := authSvc.CreateToken(r.Context(), user.ID, name, user.Role, expiresAt)
		if err != nil {
			writeError(w, "/api/v1/auth/login", err)
			return
		}

		writeJSON(w, loginResponse{Token: raw, TokenID: info.ID, ExpiresAt: info.ExpiresAt, User: user})
	})))

	mux.Handle("/api/v1/auth/tokens", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/auth/tokens", start)

		userID := getUserID(r)
		if userID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		switch r.Method {
		case http.MethodGet:
			tokens, err := authSvc.ListTokens(r.Context(), userID)
			if err != nil {
				writeError(w, "/api/v1/auth/tokens", err)
				return
			}
			if tokens == nil {
				tokens = []storage.Token{}
			}
			writeJSON(w, tokens)

		case http.MethodPost:
			var req struct {
				Name      string `json:"name"`
				ExpiresIn string `json:"expires_in"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if req.Name == "" {
				http.Error(w, "name is required", http.StatusBadRequest)
				return
			}

			expiresAt, err := auth.ParseExpirationDuration(req.ExpiresIn)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			info, raw, err := authSvc.CreateToken(r.Context(), userID, req.Name, token.Role, expiresAt)
			if err != nil {
				writeError(w, "/api/v1/auth/tokens", err)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, tokenResponse{Token: raw, Info: info})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))

	mux.Handle("/api/v1/auth/tokens/", authSvc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/auth/tokens/{id}", start)

		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		userID := getUserID(r)
		if userID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		id := strings.TrimPrefix(r.URL.Path, "/api/v1/auth/tokens/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}

		info, err := authSvc.GetTokenInfo(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/auth/tokens/{id}", err)
			return
		}
		if info == nil {
			http.NotFound(w, r)
			return
		}

		// Owners revoke their own tokens; admins may revoke anyone's.
		if info.UserID != userID {
			if allowed, err := authSvc.Enforce(userID, "users", "write"); err != nil || !allowed {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
		}

		if err := authSvc.DeleteToken(r.Context(), id); err != nil {
			writeError(w, "/api/v1/auth/tokens/{id}", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})))
}

func validRole(role string) bool {
	switch role {
	case "admin", "officer", "viewer":
		return true
	}
	return false
}
