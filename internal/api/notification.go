package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/auth"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/notification"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// registerNotificationRoutes exposes the email settings used for batch
// report delivery. With auth disabled the routes are open, matching the
// rest of the API.
func registerNotificationRoutes(mux *http.ServeMux, authSvc *auth.Service, notifSvc *notification.Service) {
	if notifSvc == nil {
		return
	}

	withAuth := func(handler http.HandlerFunc) http.Handler {
		if authSvc == nil {
			return handler
		}
		return authSvc.Middleware(handler)
	}
	allowed := func(r *http.Request, act string) bool {
		if authSvc == nil {
			return true
		}
		ok, err := authSvc.Enforce(getUserID(r), "settings", act)
		return err == nil && ok
	}

	mux.Handle("/api/v1/settings/email", withAuth(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/settings/email", start)

		switch r.Method {
		case http.MethodGet:
			if !allowed(r, "read") {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			cfg, err := notifSvc.GetConfig(r.Context())
			if err != nil {
				writeError(w, "/api/v1/settings/email", err)
				return
			}
			if cfg == nil {
				cfg = &storage.EmailConfig{}
			}
			writeJSON(w, cfg)

		case http.MethodPut:
			if !allowed(r, "write") {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			var req storage.EmailConfig
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "Invalid request body", http.StatusBadRequest)
				return
			}
			if err := notifSvc.SaveConfig(r.Context(), req); err != nil {
				writeError(w, "/api/v1/settings/email", err)
				return
			}
			w.WriteHeader(http.StatusOK)

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	mux.Handle("/api/v1/settings/email/test", withAuth(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		defer observe("/api/v1/settings/email/test", start)

		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !allowed(r, "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var req struct {
			Config storage.EmailConfig `json:"config"`
			To     string              `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		// A failed test delivery is a caller problem (bad host, bad
		// credentials), not a server fault.
		if err := notifSvc.TestConfig(r.Context(), req.Config, req.To); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
}
