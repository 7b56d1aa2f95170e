package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/batch"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
)

func ptr(v float64) *float64 { return &v }

func TestBatchLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	req := batch.Request{
		Name:     "delhi-schools",
		Scenario: "cost_optimized",
		Sites: []batch.SiteInput{
			{SiteID: "s1", RoofAreaSqm: 100, RoofMaterial: "concrete", Lat: ptr(28.61), Lng: ptr(77.21)},
			{SiteID: "s2", RoofAreaSqm: 250, RoofMaterial: "metal", Lat: ptr(28.70), Lng: ptr(77.10)},
			{SiteID: "s3", RoofAreaSqm: 80, RoofMaterial: "marble"},
		},
	}

	w := doJSON(t, mux, http.MethodPost, "/api/v1/batches", req)
	if w.Code != http.StatusOK {
		t.Fatalf("create: status = %d, body %q", w.Code, w.Body.String())
	}
	var result batch.Result
	decodeBody(t, w, &result)
	if result.ProcessedSites != 2 || result.FailedSites != 1 {
		t.Fatalf("processed/failed = %d/%d, want 2/1", result.ProcessedSites, result.FailedSites)
	}
	if result.BatchID == "" {
		t.Fatal("batch id missing")
	}

	// The listing strips payloads.
	w = doJSON(t, mux, http.MethodGet, "/api/v1/batches", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: status = %d", w.Code)
	}
	var recs []storage.BatchRecord
	decodeBody(t, w, &recs)
	if len(recs) != 1 {
		t.Fatalf("list = %d records, want 1", len(recs))
	}
	if recs[0].ID != result.BatchID || recs[0].FailedSites != 1 {
		t.Errorf("listed record = %+v, want counts from the run", recs[0])
	}
	if len(recs[0].Payload) != 0 {
		t.Errorf("listing carries a payload, want counts only")
	}

	// Fetch by id returns the full result.
	w = doJSON(t, mux, http.MethodGet, "/api/v1/batches/"+result.BatchID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status = %d", w.Code)
	}
	var stored batch.Result
	decodeBody(t, w, &stored)
	if len(stored.SiteResults) != 2 || len(stored.FailedResults) != 1 {
		t.Fatalf("stored results = %d/%d, want 2/1", len(stored.SiteResults), len(stored.FailedResults))
	}

	// Heatmap serves the sites with usable coordinates.
	w = doJSON(t, mux, http.MethodGet, "/api/v1/batches/"+result.BatchID+"/heatmap", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("heatmap: status = %d", w.Code)
	}
	var points []batch.HeatmapPoint
	decodeBody(t, w, &points)
	if len(points) != 2 {
		t.Fatalf("heatmap = %d points, want 2", len(points))
	}
}

func TestBatchRejectsBadScenario(t *testing.T) {
	mux, _ := newTestMux(t)

	req := batch.Request{
		Scenario: "luxurious",
		Sites:    []batch.SiteInput{{SiteID: "s1", RoofAreaSqm: 100}},
	}
	w := doJSON(t, mux, http.MethodPost, "/api/v1/batches", req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBatchByIDUnknown(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodGet, "/api/v1/batches/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestBatchListLimitValidation(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodGet, "/api/v1/batches?limit=zero", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBatchCSVUpload(t *testing.T) {
	mux, _ := newTestMux(t)

	csv := strings.Join([]string{
		"site_id,roof_area_sqm,roof_material,lat,lng",
		"school-1,150,concrete,28.61,77.21",
		"school-2,oops,metal,28.70,77.10",
	}, "\n")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "sites.csv")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(csv)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	if err := mw.WriteField("name", "csv-upload"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.WriteField("scenario", "max_capture"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	var res csvBatchResponse
	decodeBody(t, w, &res)
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one for the unparseable area", res.Warnings)
	}
	if res.Result == nil || res.Result.TotalSites != 2 {
		t.Fatalf("result = %+v, want 2 sites", res.Result)
	}
	// The bad-area row falls back to the default area and still assesses.
	if res.Result.ProcessedSites != 2 || res.Result.FailedSites != 0 {
		t.Errorf("processed/failed = %d/%d, want 2/0", res.Result.ProcessedSites, res.Result.FailedSites)
	}
	if res.Result.Name != "csv-upload" || string(res.Result.Scenario) != "max_capture" {
		t.Errorf("name/scenario = %q/%q, want form values", res.Result.Name, res.Result.Scenario)
	}
}

func TestBatchCSVMissingFile(t *testing.T) {
	mux, _ := newTestMux(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("name", "no-file"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBatchReportWithoutEmailConfig(t *testing.T) {
	mux, _ := newTestMux(t)

	req := batch.Request{
		Name:     "report-me",
		Scenario: "cost_optimized",
		Sites:    []batch.SiteInput{{SiteID: "s1", RoofAreaSqm: 100, RoofMaterial: "concrete"}},
	}
	w := doJSON(t, mux, http.MethodPost, "/api/v1/batches", req)
	if w.Code != http.StatusOK {
		t.Fatalf("create: status = %d", w.Code)
	}
	var result batch.Result
	decodeBody(t, w, &result)

	// No email configuration saved, so delivery fails as a caller problem.
	w = doJSON(t, mux, http.MethodPost, "/api/v1/batches/"+result.BatchID+"/report", map[string]string{"to": "officer@example.in"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 (body %q)", w.Code, w.Body.String())
	}

	w = doJSON(t, mux, http.MethodPost, "/api/v1/batches/"+result.BatchID+"/report", map[string]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing to: status = %d, want 400", w.Code)
	}
}

func TestBatchReportWithoutNotifier(t *testing.T) {
	st := storage.NewMemory()
	mux := NewMux(Options{
		Store:      st,
		Assessment: assessment.NewServiceWithStorage(assessment.Config{Provider: "apifixture"}, st),
	})

	w := doJSON(t, mux, http.MethodPost, "/api/v1/batches/whatever/report", map[string]string{"to": "a@b.in"})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
