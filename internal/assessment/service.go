package assessment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/sizing"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/storage"
	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

// DefaultProvider is the rainfall provider used when neither the request nor
// the service configuration names one.
const DefaultProvider = "imd"

// Config controls how the assessment service behaves.
type Config struct {
	// Provider is the rainfall provider key used when a request leaves the
	// provider blank.
	Provider string
	// SnapshotTTL bounds how old a cached rainfall snapshot may be before a
	// location is refetched. Zero or negative means snapshots never expire.
	SnapshotTTL time.Duration
}

// Service coordinates rainfall resolution, yield simulation and tank sizing.
type Service struct {
	cfg   Config
	store storage.Storage // may be nil for uncached mode
}

// NewService returns a Service without snapshot caching.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// NewServiceWithStorage returns a Service that caches rainfall profiles in
// the given storage backend.
func NewServiceWithStorage(cfg Config, st storage.Storage) *Service {
	return &Service{cfg: cfg, store: st}
}

// SiteRequest describes a single roof to assess.
type SiteRequest struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	RoofAreaSqm       float64 `json:"roof_area_sqm"`
	RoofMaterial      string  `json:"roof_material"`
	Scenario          string  `json:"scenario"`
	DailyDemandLiters float64 `json:"daily_demand_liters,omitempty"`
	Provider          string  `json:"provider,omitempty"`
}

// SiteAssessment is the full pipeline output for one roof and one scenario.
type SiteAssessment struct {
	Rainfall       *rainfall.Profile          `json:"rainfall"`
	Yield          *hydrology.YieldSimulation `json:"yield"`
	Recommendation *sizing.Recommendation     `json:"recommendation"`
}

// SiteComparison carries sizing recommendations for every scenario.
type SiteComparison struct {
	Rainfall    *rainfall.Profile           `json:"rainfall"`
	Yield       *hydrology.YieldSimulation  `json:"yield"`
	Comparisons []sizing.ScenarioComparison `json:"comparisons"`
}

// LocationKey rounds coordinates to two decimals (about a kilometre) so
// nearby requests share one cached rainfall snapshot.
func LocationKey(lat, lng float64) string {
	return fmt.Sprintf("%.2f,%.2f", lat, lng)
}

// Rainfall resolves the monthly rainfall profile for a location. It consults
// the snapshot cache first; on a miss it asks the provider and writes the
// result back best-effort.
func (s *Service) Rainfall(ctx context.Context, providerKey string, lat, lng float64) (*rainfall.Profile, error) {
	key := s.resolveKey(providerKey)
	p, ok := rainfall.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rainfall.ErrProviderNotFound, key)
	}

	if s.store != nil {
		snap, err := s.store.GetRainfallSnapshot(ctx, key, LocationKey(lat, lng))
		if err == nil && snap != nil && len(snap.Payload) > 0 && s.fresh(snap.FetchedAt) {
			var prof rainfall.Profile
			if err := json.Unmarshal(snap.Payload, &prof); err == nil {
				return &prof, nil
			}
			// Undecodable snapshot: fall through and refetch.
		}
	}

	return s.fetchAndStore(ctx, p, key, lat, lng)
}

// Refresh refetches the profile from the provider, bypassing the cache, and
// rewrites the stored snapshot.
func (s *Service) Refresh(ctx context.Context, providerKey string, lat, lng float64) (*rainfall.Profile, error) {
	key := s.resolveKey(providerKey)
	p, ok := rainfall.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", rainfall.ErrProviderNotFound, key)
	}
	return s.fetchAndStore(ctx, p, key, lat, lng)
}

// ProviderKey reports which provider a request with the given provider
// field resolves to, for metric labels and logs.
func (s *Service) ProviderKey(requested string) string {
	return s.resolveKey(requested)
}

func (s *Service) resolveKey(providerKey string) string {
	if providerKey != "" {
		return providerKey
	}
	if s.cfg.Provider != "" {
		return s.cfg.Provider
	}
	return DefaultProvider
}

func (s *Service) fetchAndStore(ctx context.Context, p rainfall.Provider, key string, lat, lng float64) (*rainfall.Profile, error) {
	prof, err := p.Normals(ctx, lat, lng)
	if err != nil {
		return nil, err
	}
	if prof.FetchedAt.IsZero() {
		prof.FetchedAt = time.Now()
	}

	// Best-effort write-back.
	if s.store != nil {
		if payload, err := json.Marshal(prof); err == nil {
			_ = s.store.SaveRainfallSnapshot(ctx, storage.RainfallSnapshot{
				Provider:    key,
				LocationKey: LocationKey(lat, lng),
				Payload:     payload,
				FetchedAt:   prof.FetchedAt,
			})
		}
	}

	return prof, nil
}

func (s *Service) fresh(fetchedAt time.Time) bool {
	if s.cfg.SnapshotTTL <= 0 {
		return true
	}
	return time.Since(fetchedAt) < s.cfg.SnapshotTTL
}

// AssessSite runs the full pipeline for one roof: rainfall, yearly yield,
// tank sizing under the requested scenario.
func (s *Service) AssessSite(ctx context.Context, req SiteRequest) (*SiteAssessment, error) {
	scenario, err := sizing.ParseScenario(req.Scenario)
	if err != nil {
		return nil, err
	}
	material, area, demand, err := normalizeSite(req)
	if err != nil {
		return nil, err
	}

	prof, err := s.Rainfall(ctx, req.Provider, req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}

	yield, err := hydrology.SimulateYearlyYield(area, prof.MonthlyMM, material, string(scenario))
	if err != nil {
		return nil, err
	}

	rec, err := sizing.CalculateStorageRequirement(yield.MonthlyLiters, demand, scenario)
	if err != nil {
		return nil, err
	}

	return &SiteAssessment{Rainfall: prof, Yield: yield, Recommendation: rec}, nil
}

// CompareScenarios runs the pipeline once and sizes the tank under every
// scenario.
func (s *Service) CompareScenarios(ctx context.Context, req SiteRequest) (*SiteComparison, error) {
	material, area, demand, err := normalizeSite(req)
	if err != nil {
		return nil, err
	}

	prof, err := s.Rainfall(ctx, req.Provider, req.Lat, req.Lng)
	if err != nil {
		return nil, err
	}

	yield, err := hydrology.SimulateYearlyYield(area, prof.MonthlyMM, material, "")
	if err != nil {
		return nil, err
	}

	comparisons, err := sizing.CompareScenarios(yield.MonthlyLiters, demand)
	if err != nil {
		return nil, err
	}

	return &SiteComparison{Rainfall: prof, Yield: yield, Comparisons: comparisons}, nil
}

// normalizeSite applies the site record defaults and validates the scalars.
func normalizeSite(req SiteRequest) (hydrology.Material, float64, float64, error) {
	if req.RoofAreaSqm <= 0 {
		return "", 0, 0, fmt.Errorf("roof_area_sqm must be positive, got %g: %w", req.RoofAreaSqm, hydrology.ErrInvalidInput)
	}
	name := req.RoofMaterial
	if name == "" {
		name = "concrete"
	}
	material, err := hydrology.ParseMaterial(name)
	if err != nil {
		return "", 0, 0, err
	}
	demand := req.DailyDemandLiters
	if demand == 0 {
		demand = sizing.DefaultDailyDemandLiters
	}
	return material, req.RoofAreaSqm, demand, nil
}
