package api

import (
	"net/http"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/assessment"
)

func TestAssessEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := assessment.SiteRequest{
		Lat:          12.97,
		Lng:          77.59,
		RoofAreaSqm:  120,
		RoofMaterial: "concrete",
		Scenario:     "cost_optimized",
	}
	w := doJSON(t, mux, http.MethodPost, "/api/v1/assessments", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	var res assessment.SiteAssessment
	decodeBody(t, w, &res)
	if res.Rainfall == nil || res.Rainfall.Source != "API test fixture" {
		t.Fatalf("rainfall = %+v, want fixture profile", res.Rainfall)
	}
	if res.Yield == nil || res.Yield.TotalLiters <= 0 {
		t.Errorf("yield = %+v, want positive annual liters", res.Yield)
	}
	if res.Recommendation == nil || res.Recommendation.TankCapacityLiters <= 0 {
		t.Errorf("recommendation = %+v, want sized tank", res.Recommendation)
	}
	if res.Recommendation != nil && string(res.Recommendation.Scenario) != "cost_optimized" {
		t.Errorf("scenario = %q, want cost_optimized", res.Recommendation.Scenario)
	}
}

func TestAssessRejectsNonPost(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodGet, "/api/v1/assessments", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", w.Code)
	}
}

func TestAssessRejectsGarbageBody(t *testing.T) {
	mux, _ := newTestMux(t)

	w := doJSON(t, mux, http.MethodPost, "/api/v1/assessments", "not a site")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCompareEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	req := assessment.SiteRequest{
		Lat:         12.97,
		Lng:         77.59,
		RoofAreaSqm: 120,
	}
	w := doJSON(t, mux, http.MethodPost, "/api/v1/assessments/compare", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	var res assessment.SiteComparison
	decodeBody(t, w, &res)
	if len(res.Comparisons) != 3 {
		t.Fatalf("comparisons = %d, want one per scenario", len(res.Comparisons))
	}
	seen := map[string]bool{}
	for _, c := range res.Comparisons {
		seen[string(c.Scenario)] = true
	}
	for _, s := range []string{"cost_optimized", "max_capture", "dry_season"} {
		if !seen[s] {
			t.Errorf("missing scenario %s in comparison", s)
		}
	}
}
