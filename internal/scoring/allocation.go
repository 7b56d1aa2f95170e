package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
)

// MaxServiceRadiusKM is the distance at which the distance sub-score
// reaches zero.
const MaxServiceRadiusKM = 150.0

// Cost bands: 1 economy, 2 standard, 3 premium.
const (
	CostBandEconomy  = 1
	CostBandStandard = 2
	CostBandPremium  = 3
)

// AllocationJob describes the job being allocated; candidates are scored
// against it.
type AllocationJob struct {
	CostBand int `json:"cost_band"`
}

// AllocationCandidate is one installer considered for a job allocation.
type AllocationCandidate struct {
	InstallerID string  `json:"installer_id"`
	ActiveJobs  int     `json:"active_jobs"`
	MaxJobs     int     `json:"max_jobs"`
	DistanceKM  float64 `json:"distance_km"`
	CostBand    int     `json:"cost_band"`
	OnTimePct   float64 `json:"on_time_pct"`
	RPIScore    float64 `json:"rpi_score"`
}

// AllocationBreakdown holds the normalized 0-100 sub-scores.
type AllocationBreakdown struct {
	CapacityScore float64 `json:"capacity_score"`
	RPIScore      float64 `json:"rpi_score"`
	CostBandScore float64 `json:"cost_band_score"`
	DistanceScore float64 `json:"distance_score"`
	SLAScore      float64 `json:"sla_score"`
}

// RankedAllocation is one row of an allocation ranking, 1-based.
type RankedAllocation struct {
	Rank      int                 `json:"rank"`
	Candidate AllocationCandidate `json:"candidate"`
	Score     float64             `json:"score"`
	Breakdown AllocationBreakdown `json:"breakdown"`
}

func validateCostBand(band int, who string) error {
	if band < CostBandEconomy || band > CostBandPremium {
		return fmt.Errorf("%w: %s cost band must be 1-3, got %d", hydrology.ErrInvalidInput, who, band)
	}
	return nil
}

func validateAllocationCandidate(c AllocationCandidate) error {
	if c.InstallerID == "" {
		return fmt.Errorf("%w: allocation candidate missing installer id", hydrology.ErrInvalidInput)
	}
	if c.MaxJobs < 1 {
		return fmt.Errorf("%w: max jobs for %s must be at least 1, got %d", hydrology.ErrInvalidInput, c.InstallerID, c.MaxJobs)
	}
	if c.ActiveJobs < 0 || c.ActiveJobs > c.MaxJobs {
		return fmt.Errorf("%w: active jobs for %s must be within 0-%d, got %d", hydrology.ErrInvalidInput, c.InstallerID, c.MaxJobs, c.ActiveJobs)
	}
	if c.DistanceKM < 0 {
		return fmt.Errorf("%w: distance for %s must not be negative, got %.2f", hydrology.ErrInvalidInput, c.InstallerID, c.DistanceKM)
	}
	return validateCostBand(c.CostBand, "candidate "+c.InstallerID)
}

func scoreAllocation(job AllocationJob, c AllocationCandidate, nw AllocationWeights) (float64, AllocationBreakdown) {
	b := AllocationBreakdown{
		CapacityScore: 100 * float64(c.MaxJobs-c.ActiveJobs) / float64(c.MaxJobs),
		RPIScore:      clamp100(c.RPIScore),
		CostBandScore: costBandScore(job.CostBand, c.CostBand),
		DistanceScore: clamp100(100 * (1 - c.DistanceKM/MaxServiceRadiusKM)),
		SLAScore:      clamp100(c.OnTimePct),
	}
	score := nw.Capacity*b.CapacityScore +
		nw.RPI*b.RPIScore +
		nw.CostBand*b.CostBandScore +
		nw.Distance*b.DistanceScore +
		nw.SLAHistory*b.SLAScore
	return clamp100(score), b
}

// costBandScore rewards matching the job's band: exact 100, one band off
// 60, otherwise 30.
func costBandScore(want, got int) float64 {
	switch int(math.Abs(float64(want - got))) {
	case 0:
		return 100
	case 1:
		return 60
	default:
		return 30
	}
}

const earthRadiusKM = 6371.0

// DistanceKM is the haversine distance between two coordinates, for
// callers that hold installer locations rather than precomputed distances.
func DistanceKM(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// RankAllocations scores every candidate against the job and orders them
// by descending score, breaking ties by lowest distance and then lowest
// installer id. The input slice is never mutated; an invalid candidate,
// job or weight set fails the whole call.
func RankAllocations(job AllocationJob, candidates []AllocationCandidate, w AllocationWeights) ([]RankedAllocation, error) {
	if err := validateCostBand(job.CostBand, "job"); err != nil {
		return nil, err
	}
	nw, err := w.Normalize()
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedAllocation, 0, len(candidates))
	for _, c := range candidates {
		if err := validateAllocationCandidate(c); err != nil {
			return nil, err
		}
		score, b := scoreAllocation(job, c, nw)
		ranked = append(ranked, RankedAllocation{Candidate: c, Score: score, Breakdown: b})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Candidate.DistanceKM != ranked[j].Candidate.DistanceKM {
			return ranked[i].Candidate.DistanceKM < ranked[j].Candidate.DistanceKM
		}
		return ranked[i].Candidate.InstallerID < ranked[j].Candidate.InstallerID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}
