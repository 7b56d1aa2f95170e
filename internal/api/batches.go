package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/alerting"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/batch"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/metrics"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

// maxCSVUploadBytes bounds a batch CSV upload. 10 MB holds roughly a
// hundred thousand sites, far past the practical batch size.
const maxCSVUploadBytes = 10 << 20

// csvBatchResponse wraps a batch result with any per-row parse warnings
// from the uploaded file.
type csvBatchResponse struct {
	Warnings []string      `json:"warnings,omitempty"`
	Result   *batch.Result `json:"result"`
}

// HandleBatches creates a batch from a JSON site list or lists past runs.
// POST /api/v1/batches, GET /api/v1/batches?limit=N
func (h *Handler) HandleBatches(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/batches", start)

	switch r.Method {
	case http.MethodPost:
		if !h.allowed(r, "batches", "write") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		var req batch.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		result, err := h.runBatch(r.Context(), req)
		if err != nil {
			writeError(w, "/api/v1/batches", err)
			return
		}
		writeJSON(w, result)

	case http.MethodGet:
		if !h.allowed(r, "batches", "read") {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		limit := 50
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = n
		}

		recs, err := h.st.ListBatchRecords(r.Context(), limit)
		if err != nil {
			writeError(w, "/api/v1/batches", err)
			return
		}
		// The listing carries counts only; full payloads come from the
		// by-id endpoint.
		for i := range recs {
			recs[i].Payload = nil
		}
		writeJSON(w, recs)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBatchCSV creates a batch from an uploaded CSV site list.
// POST /api/v1/batches/csv (multipart form: file, name, scenario)
func (h *Handler) HandleBatchCSV(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/batches/csv", start)

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "batches", "write") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCSVUploadBytes)
	if err := r.ParseMultipartForm(maxCSVUploadBytes); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	sites, warnings, err := batch.ParseSitesCSV(file)
	if err != nil {
		writeError(w, "/api/v1/batches/csv", err)
		return
	}

	result, err := h.runBatch(r.Context(), batch.Request{
		Name:     r.FormValue("name"),
		Scenario: r.FormValue("scenario"),
		Sites:    sites,
	})
	if err != nil {
		writeError(w, "/api/v1/batches/csv", err)
		return
	}

	writeJSON(w, csvBatchResponse{Warnings: warnings, Result: result})
}

// HandleBatchByID serves a stored batch result, its heatmap slice, or
// emails its report.
// GET /api/v1/batches/{id}, GET /api/v1/batches/{id}/heatmap,
// POST /api/v1/batches/{id}/report
func (h *Handler) HandleBatchByID(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/batches/{id}", start)

	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/batches/")
	parts := strings.Split(rest, "/")
	if len(parts) < 1 || parts[0] == "" || len(parts) > 2 {
		http.NotFound(w, r)
		return
	}
	id := parts[0]
	sub := ""
	if len(parts) == 2 {
		sub = parts[1]
	}

	switch sub {
	case "report":
		h.handleBatchReport(w, r, id)
		return
	case "", "heatmap":
	default:
		http.NotFound(w, r)
		return
	}

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "batches", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	result, err := h.loadBatchResult(r.Context(), id)
	if err != nil {
		writeError(w, "/api/v1/batches/{id}", err)
		return
	}
	if result == nil {
		http.NotFound(w, r)
		return
	}

	if sub == "heatmap" {
		points := result.HeatmapData
		if points == nil {
			points = []batch.HeatmapPoint{}
		}
		writeJSON(w, points)
		return
	}
	writeJSON(w, result)
}

// handleBatchReport emails the stored batch report to one recipient.
func (h *Handler) handleBatchReport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "batches", "write") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if h.notif == nil {
		http.Error(w, "notifications not available", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		To string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		http.Error(w, "to is required", http.StatusBadRequest)
		return
	}

	result, err := h.loadBatchResult(r.Context(), id)
	if err != nil {
		writeError(w, "/api/v1/batches/{id}", err)
		return
	}
	if result == nil {
		http.NotFound(w, r)
		return
	}

	if err := h.notif.SendBatchReport(r.Context(), req.To, result); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// loadBatchResult unmarshals a stored batch payload, (nil, nil) when the
// record does not exist.
func (h *Handler) loadBatchResult(ctx context.Context, id string) (*batch.Result, error) {
	rec, err := h.st.GetBatchRecord(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	var result batch.Result
	if err := json.Unmarshal(rec.Payload, &result); err != nil {
		log.Printf("api: batch %s payload corrupt: %v", id, err)
		return nil, fmt.Errorf("batch %s payload corrupt: %w", id, err)
	}
	return &result, nil
}

// runBatch processes the request through the orchestrator, persists the
// result and fires metrics and failure alerts.
func (h *Handler) runBatch(ctx context.Context, req batch.Request) (*batch.Result, error) {
	source := func(ctx context.Context, lat, lng float64) (*rainfall.Profile, error) {
		return h.assess.Rainfall(ctx, "", lat, lng)
	}

	orch := batch.NewOrchestrator(source, h.workers)
	result, err := orch.Process(ctx, req)
	if err != nil {
		return nil, err
	}

	h.persistBatch(ctx, result)
	metrics.ObserveBatch(string(result.Scenario), result.ProcessedSites, result.FailedSites,
		time.Duration(result.DurationMS)*time.Millisecond)
	h.alertBatch(result)

	return result, nil
}

func (h *Handler) persistBatch(ctx context.Context, result *batch.Result) {
	if h.st == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		log.Printf("api: marshal batch result failed: %v", err)
		return
	}
	rec := storage.BatchRecord{
		ID:             result.BatchID,
		Name:           result.Name,
		Scenario:       string(result.Scenario),
		TotalSites:     result.TotalSites,
		ProcessedSites: result.ProcessedSites,
		FailedSites:    result.FailedSites,
		Payload:        payload,
		CreatedAt:      result.StartedAt,
	}
	if err := h.st.SaveBatchRecord(ctx, rec); err != nil {
		log.Printf("api: save batch record %s failed: %v", result.BatchID, err)
	}
}

// alertBatch notifies the configured webhook about failed sites without
// holding up the response.
func (h *Handler) alertBatch(result *batch.Result) {
	if h.alerter == nil || result.FailedSites == 0 {
		return
	}

	alert := alerting.BatchAlert{
		BatchName:      result.Name,
		TotalSites:     result.TotalSites,
		ProcessedSites: result.ProcessedSites,
		FailedSites:    result.FailedSites,
		Duration:       time.Duration(result.DurationMS) * time.Millisecond,
		Timestamp:      time.Now(),
	}
	for _, f := range result.FailedResults {
		alert.FailedDetails = append(alert.FailedDetails, alerting.SiteFailure{SiteID: f.SiteID, Error: f.Reason})
	}

	go func() {
		if err := h.alerter.SendBatchAlert(context.Background(), alert); err != nil {
			log.Printf("api: batch alert for %s failed: %v", result.BatchID, err)
		}
	}()
}
