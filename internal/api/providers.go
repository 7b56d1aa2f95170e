package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall/imdpdf"
)

// ProviderDTO describes a rainfall provider in the API.
type ProviderDTO struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
}

// HandleProviders lists the registered rainfall providers.
// GET /api/v1/providers
func (h *Handler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/providers", start)

	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "providers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	list := make([]ProviderDTO, 0)
	for _, p := range rainfall.GetAll() {
		list = append(list, ProviderDTO{Key: p.Key(), Name: p.Name(), SourceURL: p.SourceURL()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	writeJSON(w, list)
}

// HandleProviderByKey serves one provider's rainfall data operations.
// GET /api/v1/providers/{key}/normals?lat=&lng=
// POST /api/v1/providers/{key}/refresh?lat=&lng=
// POST /api/v1/providers/{key}/document
func (h *Handler) HandleProviderByKey(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer observe("/api/v1/providers/{key}", start)

	// Expected paths: /api/v1/providers/{key}/{normals|refresh|document}
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/providers/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	key := strings.ToLower(parts[0])

	switch parts[1] {
	case "normals":
		h.handleProviderNormals(w, r, key)
	case "refresh":
		h.handleProviderRefresh(w, r, key)
	case "document":
		h.handleProviderDocument(w, r, key)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleProviderNormals(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "providers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	lat, lng, err := parseCoords(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prof, err := h.assess.Rainfall(r.Context(), key, lat, lng)
	if err != nil {
		writeError(w, "/api/v1/providers/{key}", err)
		return
	}
	writeJSON(w, prof)
}

// handleProviderRefresh refetches the profile from the provider even when
// a fresh snapshot is cached.
func (h *Handler) handleProviderRefresh(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "providers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	lat, lng, err := parseCoords(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	prof, err := h.assess.Refresh(r.Context(), key, lat, lng)
	if err != nil {
		writeError(w, "/api/v1/providers/{key}", err)
		return
	}
	writeJSON(w, prof)
}

// documentResponse reports the outcome of a normals document download.
type documentResponse struct {
	Provider string `json:"provider"`
	Path     string `json:"path"`
	Stations int    `json:"stations"`
}

// handleProviderDocument downloads a normals document for a file-backed
// provider, writes it into place and validates that it parses.
func (h *Handler) handleProviderDocument(w http.ResponseWriter, r *http.Request, key string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.allowed(r, "providers", "read") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	p, ok := rainfall.Get(key)
	if !ok {
		writeError(w, "/api/v1/providers/{key}", fmt.Errorf("%w: %q", rainfall.ErrProviderNotFound, key))
		return
	}
	doc, ok := p.(*imdpdf.Provider)
	if !ok {
		http.Error(w, "provider does not use a local normals document", http.StatusBadRequest)
		return
	}

	httpReq, err := http.NewRequestWithContext(r.Context(), http.MethodGet, req.URL, nil)
	if err != nil {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}
	// Government portals routinely present certificates that fail chain
	// validation, so the download client skips verification.
	resp, err := rainfall.InsecureHTTPClient().Do(httpReq)
	if err != nil {
		log.Printf("api: document download from %s failed: %v", req.URL, err)
		http.Error(w, "document download failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		http.Error(w, fmt.Sprintf("document download returned status %d", resp.StatusCode), http.StatusBadGateway)
		return
	}

	if err := rainfall.WriteFileAtomically(doc.PDFPath, resp.Body); err != nil {
		log.Printf("api: write document %s failed: %v", doc.PDFPath, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	rows, err := doc.ParsePDF(doc.PDFPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("document parse failed: %v", err), http.StatusUnprocessableEntity)
		return
	}

	log.Printf("api: provider %s normals document updated, %d stations", key, len(rows))
	writeJSON(w, documentResponse{Provider: key, Path: doc.PDFPath, Stations: len(rows)})
}

func parseCoords(q url.Values) (float64, float64, error) {
	lat, err := parseCoord(q, "lat")
	if err != nil {
		return 0, 0, err
	}
	lng, err := parseCoord(q, "lng")
	if err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

func parseCoord(q url.Values, name string) (float64, error) {
	s := q.Get(name)
	if s == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number", name)
	}
	return v, nil
}
