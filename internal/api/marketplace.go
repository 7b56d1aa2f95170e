package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/metrics"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/scoring"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

// HandleInstallers lists empanelled installers or registers a new one.
// GET /api/v1/installers, POST /api/v1/installers
func (h *Handler) HandleInstallers(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/installers", start)

	switch r.Method {
	case http.MethodGet:
		if !h.allowed(r, "installers", "read") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		installers, err := h.st.ListInstallers(r.Context())
		if err != nil {
			writeError(w, "/api/v1/installers", err)
			return
		}
		if installers == nil {
			installers = []storage.Installer{}
		}
		writeJSON(w, installers)

	case http.MethodPost:
		if !h.allowed(r, "installers", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var in storage.Installer
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if in.CostBand == 0 {
			in.CostBand = scoring.CostBandStandard
		}
		if err := validateInstaller(in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if in.ID == "" {
			in.ID = uuid.New().String()
		}
		now := time.Now()
		in.CreatedAt = now
		in.UpdatedAt = now
		if err := h.st.UpsertInstaller(r.Context(), in); err != nil {
			writeError(w, "/api/v1/installers", err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, in)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleInstallerByID serves one installer and its subresources.
// GET/PUT/DELETE /api/v1/installers/{id}
// GET /api/v1/installers/{id}/rpi
// GET/POST /api/v1/installers/{id}/jobs
func (h *Handler) HandleInstallerByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/installers/{id}", start)

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/installers/")
	parts := strings.Split(rest, "/")
	if len(parts) < 1 || parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	if len(parts) == 2 {
		switch parts[1] {
		case "rpi":
			h.handleInstallerRPI(w, r, id)
		case "jobs":
			h.handleInstallerJobs(w, r, id)
		default:
			http.NotFound(w, r)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !h.allowed(r, "installers", "read") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		inst, err := h.st.GetInstaller(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		if inst == nil {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, inst)

	case http.MethodPut:
		if !h.allowed(r, "installers", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		existing, err := h.st.GetInstaller(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		if existing == nil {
			http.NotFound(w, r)
			return
		}
		var in storage.Installer
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		in.ID = id
		if in.CostBand == 0 {
			in.CostBand = scoring.CostBandStandard
		}
		if err := validateInstaller(in); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.CreatedAt = existing.CreatedAt
		in.UpdatedAt = time.Now()
		if err := h.st.UpsertInstaller(r.Context(), in); err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		writeJSON(w, in)

	case http.MethodDelete:
		if !h.allowed(r, "installers", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		existing, err := h.st.GetInstaller(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		if existing == nil {
			http.NotFound(w, r)
			return
		}
		if err := h.st.DeleteInstaller(r.Context(), id); err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// rpiResponse is the live Reliability Performance Index for one installer.
type rpiResponse struct {
	InstallerID string                `json:"installer_id"`
	JobsCounted int                   `json:"jobs_counted"`
	Components  scoring.RPIComponents `json:"components"`
	Score       float64               `json:"score"`
	Grade       string                `json:"grade"`
	Breakdown   scoring.RPIBreakdown  `json:"breakdown"`
}

// handleInstallerRPI recomputes the index from the full job history rather
// than serving the cached score on the installer row.
func (h *Handler) handleInstallerRPI(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "installers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	inst, err := h.st.GetInstaller(r.Context(), id)
	if err != nil {
		writeError(w, "/api/v1/installers/{id}", err)
		return
	}
	if inst == nil {
		http.NotFound(w, r)
		return
	}

	jobs, err := h.st.ListInstallerJobs(r.Context(), id)
	if err != nil {
		writeError(w, "/api/v1/installers/{id}", err)
		return
	}

	comps := scoring.ComponentsFromJobHistory(toJobRecords(jobs))
	res, err := scoring.CalculateRPI(comps, scoring.DefaultRPIWeights())
	if err != nil {
		writeError(w, "/api/v1/installers/{id}", err)
		return
	}
	metrics.InstallerRPIScore.WithLabelValues(id).Set(res.Score)

	writeJSON(w, rpiResponse{
		InstallerID: id,
		JobsCounted: len(jobs),
		Components:  comps,
		Score:       res.Score,
		Grade:       res.Grade,
		Breakdown:   res.Breakdown,
	})
}

func (h *Handler) handleInstallerJobs(w http.ResponseWriter, r *http.Request, id string) {
	inst, err := h.st.GetInstaller(r.Context(), id)
	if err != nil {
		writeError(w, "/api/v1/installers/{id}", err)
		return
	}
	if inst == nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !h.allowed(r, "installers", "read") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		jobs, err := h.st.ListInstallerJobs(r.Context(), id)
		if err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		if jobs == nil {
			jobs = []storage.InstallerJob{}
		}
		writeJSON(w, jobs)

	case http.MethodPost:
		if !h.allowed(r, "installers", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		var job storage.InstallerJob
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		job.InstallerID = id
		if job.ID == "" {
			job.ID = uuid.New().String()
		}
		job.CreatedAt = time.Now()
		if err := h.st.SaveInstallerJob(r.Context(), job); err != nil {
			writeError(w, "/api/v1/installers/{id}", err)
			return
		}
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, job)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBidRanking scores a set of bids. Omitted weights fall back to the
// platform defaults.
// POST /api/v1/scoring/bids
func (h *Handler) HandleBidRanking(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/scoring/bids", start)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "installers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		Candidates []scoring.BidCandidate `json:"candidates"`
		Weights    *scoring.BidWeights    `json:"weights,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	weights := scoring.DefaultBidWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}

	ranked, err := scoring.RankBids(req.Candidates, weights)
	if err != nil {
		writeError(w, "/api/v1/scoring/bids", err)
		return
	}
	writeJSON(w, ranked)
}

// allocationRequest describes a job to allocate. Inline candidates take
// precedence; otherwise candidates are built from stored installers and
// the site coordinates.
type allocationRequest struct {
	Job  scoring.AllocationJob `json:"job"`
	Site *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"site,omitempty"`
	Candidates []scoring.AllocationCandidate `json:"candidates,omitempty"`
	Weights    *scoring.AllocationWeights    `json:"weights,omitempty"`
}

// HandleAllocationRanking ranks installers for a job allocation.
// POST /api/v1/scoring/allocations
func (h *Handler) HandleAllocationRanking(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/scoring/allocations", start)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "installers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req allocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	candidates := req.Candidates
	if len(candidates) == 0 {
		if req.Site == nil {
			http.Error(w, "site coordinates or inline candidates required", http.StatusBadRequest)
			return
		}
		var err error
		candidates, err = h.allocationCandidates(r.Context(), req.Site.Lat, req.Site.Lng)
		if err != nil {
			writeError(w, "/api/v1/scoring/allocations", err)
			return
		}
	}

	weights := scoring.DefaultAllocationWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}

	ranked, err := scoring.RankAllocations(req.Job, candidates, weights)
	if err != nil {
		writeError(w, "/api/v1/scoring/allocations", err)
		return
	}
	writeJSON(w, ranked)
}

// allocationCandidates builds the candidate set from stored installers.
// Suspended rows and rows that cannot form a valid candidate are skipped
// rather than failing the whole ranking.
func (h *Handler) allocationCandidates(ctx context.Context, siteLat, siteLng float64) ([]scoring.AllocationCandidate, error) {
	installers, err := h.st.ListInstallers(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]scoring.AllocationCandidate, 0, len(installers))
	for _, inst := range installers {
		if inst.Suspended || inst.MaxJobs < 1 || inst.ActiveJobs < 0 || inst.ActiveJobs > inst.MaxJobs {
			continue
		}
		if inst.CostBand < scoring.CostBandEconomy || inst.CostBand > scoring.CostBandPremium {
			continue
		}
		candidates = append(candidates, scoring.AllocationCandidate{
			InstallerID: inst.ID,
			ActiveJobs:  inst.ActiveJobs,
			MaxJobs:     inst.MaxJobs,
			DistanceKM:  scoring.DistanceKM(siteLat, siteLng, inst.Lat, inst.Lng),
			CostBand:    inst.CostBand,
			OnTimePct:   inst.OnTimePct,
			RPIScore:    inst.RPIScore,
		})
	}
	return candidates, nil
}

func validateInstaller(in storage.Installer) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if in.MaxJobs < 1 {
		return fmt.Errorf("max_jobs must be at least 1, got %d", in.MaxJobs)
	}
	if in.ActiveJobs < 0 || in.ActiveJobs > in.MaxJobs {
		return fmt.Errorf("active_jobs must be within 0-%d, got %d", in.MaxJobs, in.ActiveJobs)
	}
	if in.CostBand < scoring.CostBandEconomy || in.CostBand > scoring.CostBandPremium {
		return fmt.Errorf("cost_band must be 1-3, got %d", in.CostBand)
	}
	return nil
}

func toJobRecords(jobs []storage.InstallerJob) []scoring.JobRecord {
	out := make([]scoring.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, scoring.JobRecord{
			JobID:                j.ID,
			DesignMatchPct:       j.DesignMatchPct,
			PredictedYieldLiters: j.PredictedYieldLiters,
			ActualYieldLiters:    j.ActualYieldLiters,
			Completed:            j.Completed,
			OnTime:               j.OnTime,
			Complaints:           j.Complaints,
			MaintenanceDone:      j.MaintenanceDone,
			MaintenanceDue:       j.MaintenanceDue,
		})
	}
	return out
}
