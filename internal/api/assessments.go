package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/metrics"
)

// HandleAssess runs the full pipeline for one roof: rainfall lookup, yield
// simulation and tank sizing under the requested scenario.
// POST /api/v1/assessments
func (h *Handler) HandleAssess(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/assessments", start)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "assessments", "write") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req assessment.SiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.assess.AssessSite(r.Context(), req)
	if err != nil {
		writeError(w, "/api/v1/assessments", err)
		return
	}

	metrics.ObserveAssessment(string(res.Recommendation.Scenario), h.assess.ProviderKey(req.Provider))
	writeJSON(w, res)
}

// HandleCompare sizes the tank under every scenario for one roof.
// POST /api/v1/assessments/compare
func (h *Handler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/assessments/compare", start)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "assessments", "write") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req assessment.SiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.assess.CompareScenarios(r.Context(), req)
	if err != nil {
		writeError(w, "/api/v1/assessments/compare", err)
		return
	}

	writeJSON(w, res)
}
