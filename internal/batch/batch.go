// Package batch runs rainwater harvesting assessments across many roof
// sites through a bounded worker pool and aggregates the results into a
// planning report.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/sizing"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

// Defaults applied when a site record omits a value.
const (
	DefaultRoofAreaSqm  = 100.0
	DefaultRoofMaterial = "concrete"
	// Default reference point (central Delhi) used when a site carries no
	// coordinates.
	DefaultLat = 28.6
	DefaultLng = 77.2
)

const defaultWorkers = 10

// maxFailureDetails caps the failed_results list. FailedSites stays exact
// even when details are dropped.
const maxFailureDetails = 100

// RainfallSource resolves coordinates to a monthly rainfall profile.
// Provider method values (e.g. imd.Provider.Normals) satisfy it directly.
type RainfallSource func(ctx context.Context, lat, lng float64) (*rainfall.Profile, error)

// SiteInput is one roof site in a batch request.
type SiteInput struct {
	SiteID            string   `json:"site_id"`
	Address           string   `json:"address,omitempty"`
	RoofAreaSqm       float64  `json:"roof_area_sqm"`
	RoofMaterial      string   `json:"roof_material"`
	Lat               *float64 `json:"lat,omitempty"`
	Lng               *float64 `json:"lng,omitempty"`
	DailyDemandLiters *float64 `json:"daily_demand_liters,omitempty"`
}

// Request is a batch assessment job.
type Request struct {
	Name     string      `json:"name"`
	Scenario string      `json:"scenario"`
	Sites    []SiteInput `json:"sites"`
}

// SiteResult is the outcome for one successfully assessed site.
type SiteResult struct {
	SiteID             string                 `json:"site_id"`
	Address            string                 `json:"address,omitempty"`
	AnnualYieldLiters  float64                `json:"annual_yield_liters"`
	MonthlyYieldLiters [12]float64            `json:"monthly_yield_liters"`
	RainfallSource     string                 `json:"rainfall_source,omitempty"`
	Recommendation     *sizing.Recommendation `json:"recommendation"`
}

// SiteFailure records why one site could not be assessed.
type SiteFailure struct {
	SiteID string `json:"site_id"`
	Reason string `json:"reason"`
}

// HeatmapPoint is one map-ready row for a successfully assessed site with
// usable coordinates.
type HeatmapPoint struct {
	SiteID            string  `json:"site_id"`
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	AnnualYieldLiters float64 `json:"annual_yield_liters"`
	ReliabilityPct    float64 `json:"reliability_pct"`
}

// Result is the aggregated outcome of a batch run. Aggregates cover
// successful sites only; ProcessedSites+FailedSites always equals TotalSites.
type Result struct {
	BatchID            string          `json:"batch_id"`
	Name               string          `json:"name"`
	Scenario           sizing.Scenario `json:"scenario"`
	TotalSites         int             `json:"total_sites"`
	ProcessedSites     int             `json:"processed_sites"`
	FailedSites        int             `json:"failed_sites"`
	TotalCaptureLiters float64         `json:"total_capture_liters"`
	TotalCostINR       float64         `json:"total_cost_inr"`
	AvgPaybackYears    *float64        `json:"avg_payback_years"`
	SiteResults        []SiteResult    `json:"site_results"`
	FailedResults      []SiteFailure   `json:"failed_results"`
	HeatmapData        []HeatmapPoint  `json:"heatmap_data"`
	StartedAt          time.Time       `json:"started_at"`
	DurationMS         int64           `json:"duration_ms"`
}

// Orchestrator fans site assessments out across a worker pool.
type Orchestrator struct {
	source  RainfallSource
	workers int
}

// NewOrchestrator creates an orchestrator resolving rainfall through source.
// workers <= 0 selects the default pool size of 10.
func NewOrchestrator(source RainfallSource, workers int) *Orchestrator {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Orchestrator{source: source, workers: workers}
}

// Process assesses every site in the request and aggregates the outcomes.
// An unknown scenario fails the whole batch before any site work; per-site
// errors are collected into FailedResults and never abort the run.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	scenario, err := sizing.ParseScenario(req.Scenario)
	if err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	res := &Result{
		BatchID:    uuid.NewString(),
		Name:       req.Name,
		Scenario:   scenario,
		TotalSites: len(req.Sites),
		StartedAt:  started,
	}

	for _, oc := range o.assessAll(ctx, scenario, req.Sites) {
		if oc.err != nil {
			res.FailedSites++
			if len(res.FailedResults) < maxFailureDetails {
				res.FailedResults = append(res.FailedResults, SiteFailure{
					SiteID: oc.siteID,
					Reason: oc.err.Error(),
				})
			}
			continue
		}
		res.ProcessedSites++
		res.SiteResults = append(res.SiteResults, *oc.result)
		res.TotalCaptureLiters += oc.result.AnnualYieldLiters
		if rec := oc.result.Recommendation; rec != nil {
			res.TotalCostINR += rec.NetCostINR
		}
		if oc.heat != nil {
			res.HeatmapData = append(res.HeatmapData, *oc.heat)
		}
	}

	var paybacks []float64
	for _, sr := range res.SiteResults {
		if sr.Recommendation != nil && sr.Recommendation.PaybackYears != nil {
			paybacks = append(paybacks, *sr.Recommendation.PaybackYears)
		}
	}
	if len(paybacks) > 0 {
		avg := stat.Mean(paybacks, nil)
		res.AvgPaybackYears = &avg
	}

	res.DurationMS = time.Since(started).Milliseconds()
	return res, nil
}

type siteOutcome struct {
	siteID string
	result *SiteResult
	heat   *HeatmapPoint
	err    error
}

type siteJob struct {
	index int
	site  SiteInput
}

type indexedOutcome struct {
	index   int
	outcome siteOutcome
}

// assessAll distributes sites across the pool and collects outcomes back
// into input order so aggregation stays deterministic.
func (o *Orchestrator) assessAll(ctx context.Context, scenario sizing.Scenario, sites []SiteInput) []siteOutcome {
	n := len(sites)
	if n == 0 {
		return nil
	}

	jobs := make(chan siteJob, n)
	results := make(chan indexedOutcome, n)

	workers := o.workers
	if n < workers {
		workers = n
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				results <- indexedOutcome{
					index:   job.index,
					outcome: o.assessSite(ctx, scenario, job.site, job.index),
				}
			}
		}()
	}

	for idx, site := range sites {
		jobs <- siteJob{index: idx, site: site}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]siteOutcome, n)
	for r := range results {
		out[r.index] = r.outcome
	}
	return out
}

func (o *Orchestrator) assessSite(ctx context.Context, scenario sizing.Scenario, site SiteInput, pos int) siteOutcome {
	siteID := site.SiteID
	if siteID == "" {
		siteID = fmt.Sprintf("site-%d", pos+1)
	}
	oc := siteOutcome{siteID: siteID}

	if site.RoofAreaSqm <= 0 {
		oc.err = fmt.Errorf("roof_area_sqm must be positive, got %g: %w", site.RoofAreaSqm, hydrology.ErrInvalidInput)
		return oc
	}
	materialName := site.RoofMaterial
	if materialName == "" {
		materialName = DefaultRoofMaterial
	}
	material, err := hydrology.ParseMaterial(materialName)
	if err != nil {
		oc.err = err
		return oc
	}

	lat, lng := DefaultLat, DefaultLng
	hasCoords := site.Lat != nil && site.Lng != nil
	if hasCoords {
		lat, lng = *site.Lat, *site.Lng
	}

	profile, err := o.source(ctx, lat, lng)
	if err != nil {
		oc.err = fmt.Errorf("resolve rainfall: %w", err)
		return oc
	}

	sim, err := hydrology.SimulateYearlyYield(site.RoofAreaSqm, profile.MonthlyMM, material, string(scenario))
	if err != nil {
		oc.err = err
		return oc
	}

	demand := sizing.DefaultDailyDemandLiters
	if site.DailyDemandLiters != nil {
		demand = *site.DailyDemandLiters
	}
	rec, err := sizing.CalculateStorageRequirement(sim.MonthlyLiters, demand, scenario)
	if err != nil {
		oc.err = err
		return oc
	}

	oc.result = &SiteResult{
		SiteID:             siteID,
		Address:            site.Address,
		AnnualYieldLiters:  sim.TotalLiters,
		MonthlyYieldLiters: sim.MonthlyLiters,
		RainfallSource:     profile.Source,
		Recommendation:     rec,
	}

	// NaN coordinates fail the range checks and stay off the map.
	if hasCoords && lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180 {
		oc.heat = &HeatmapPoint{
			SiteID:            siteID,
			Lat:               lat,
			Lng:               lng,
			AnnualYieldLiters: sim.TotalLiters,
			ReliabilityPct:    rec.ReliabilityPct,
		}
	}
	return oc
}
