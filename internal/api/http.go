package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/alerting"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/api/swagger"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/auth"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/metrics"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/notification"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/scoring"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/sizing"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

// Options wires the services the HTTP layer exposes. Store and Assessment
// are required. A nil Auth disables authentication entirely; a nil
// Notification or Alerter disables the matching side effects.
type Options struct {
	Store        storage.Storage
	Assessment   *assessment.Service
	Auth         *auth.Service
	Notification *notification.Service
	Alerter      *alerting.Alerter
	BatchWorkers int
}

// Handler holds the wired services behind the route handlers.
type Handler struct {
	st      storage.Storage
	assess  *assessment.Service
	authSvc *auth.Service
	notif   *notification.Service
	alerter *alerting.Alerter
	workers int
}

// NewMux constructs the HTTP mux: assessment, batch, marketplace, provider
// and account routes plus metrics, health endpoints and the API docs.
func NewMux(opts Options) *http.ServeMux {
	h := &Handler{
		st:      opts.Store,
		assess:  opts.Assessment,
		authSvc: opts.Auth,
		notif:   opts.Notification,
		alerter: opts.Alerter,
		workers: opts.BatchWorkers,
	}

	mux := http.NewServeMux()

	// Metrics endpoint.
	mux.Handle("/metrics", promhttp.Handler())

	// Health / readiness / liveness.
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if h.st != nil {
			if err := h.st.Ping(r.Context()); err != nil {
				log.Printf("readyz: db ping failed: %v", err)
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("live"))
	})

	// Wrap a handler with the auth middleware when auth is enabled.
	withAuth := func(handler http.HandlerFunc) http.Handler {
		if opts.Auth == nil {
			return handler
		}
		return opts.Auth.Middleware(handler)
	}

	// Assessment API.
	mux.Handle("/api/v1/assessments", withAuth(h.HandleAssess))
	mux.Handle("/api/v1/assessments/compare", withAuth(h.HandleCompare))

	// Batch API. The mux prefers the longer literal patterns, so /csv does
	// not fall through to the by-id handler.
	mux.Handle("/api/v1/batches", withAuth(h.HandleBatches))
	mux.Handle("/api/v1/batches/csv", withAuth(h.HandleBatchCSV))
	mux.Handle("/api/v1/batches/", withAuth(h.HandleBatchByID))

	// Installer marketplace API.
	mux.Handle("/api/v1/installers", withAuth(h.HandleInstallers))
	mux.Handle("/api/v1/installers/", withAuth(h.HandleInstallerByID))
	mux.Handle("/api/v1/scoring/bids", withAuth(h.HandleBidRanking))
	mux.Handle("/api/v1/scoring/allocations", withAuth(h.HandleAllocationRanking))

	// Rainfall provider API.
	mux.Handle("/api/v1/providers", withAuth(h.HandleProviders))
	mux.Handle("/api/v1/providers/", withAuth(h.HandleProviderByKey))

	registerNotificationRoutes(mux, opts.Auth, opts.Notification)
	registerAccountRoutes(mux, opts.Auth)

	// API docs.
	mux.Handle("/swagger/", http.StripPrefix("/swagger", swagger.Handler()))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/swagger/", http.StatusFound)
	})

	return mux
}

// allowed checks the caller's permission when auth is enabled. With auth
// disabled every request passes.
func (h *Handler) allowed(r *http.Request, obj, act string) bool {
	if h.authSvc == nil {
		return true
	}
	ok, err := h.authSvc.Enforce(getUserID(r), obj, act)
	return err == nil && ok
}

func getUserID(r *http.Request) string {
	token, ok := r.Context().Value(auth.TokenContextKey).(*storage.Token)
	if !ok {
		return ""
	}
	return token.UserID
}

// observe records the request count and latency for one logical route.
func observe(path string, start time.Time) {
	metrics.RequestsTotal.WithLabelValues(path).Inc()
	metrics.RequestDurationSeconds.WithLabelValues(path).Observe(time.Since(start).Seconds())
}

// writeError maps domain errors onto status codes: validation problems are
// 400, unknown lookups 404, out-of-coverage coordinates 422, anything else
// a logged 500 with a generic body.
func writeError(w http.ResponseWriter, path string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, hydrology.ErrInvalidInput),
		errors.Is(err, hydrology.ErrUnknownMaterial),
		errors.Is(err, sizing.ErrUnknownScenario),
		errors.Is(err, scoring.ErrInvalidWeights):
		code = http.StatusBadRequest
	case errors.Is(err, rainfall.ErrProviderNotFound):
		code = http.StatusNotFound
	case errors.Is(err, rainfall.ErrNoCoverage):
		code = http.StatusUnprocessableEntity
	}

	metrics.RequestErrorsTotal.WithLabelValues(path, strconv.Itoa(code)).Inc()
	if code == http.StatusInternalServerError {
		log.Printf("api: %s failed: %v", path, err)
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response failed: %v", err)
	}
}
