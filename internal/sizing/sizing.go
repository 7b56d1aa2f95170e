// Package sizing turns a monthly yield profile and a demand figure into a
// tank recommendation: capacity, cost, subsidy, savings, payback and a
// running-balance reliability estimate. Sizing policy is selected by a
// closed Scenario enum.
package sizing

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
)

// ErrUnknownScenario indicates a scenario string outside the supported set.
var ErrUnknownScenario = errors.New("unknown scenario")

// Scenario selects a sizing policy. The set is closed; every switch over it
// is exhaustive so a new scenario is a compile-visible change.
type Scenario string

const (
	ScenarioCostOptimized Scenario = "cost_optimized"
	ScenarioMaxCapture    Scenario = "max_capture"
	ScenarioDrySeason     Scenario = "dry_season"
)

// Scenarios returns the three scenarios in their fixed comparison order.
func Scenarios() []Scenario {
	return []Scenario{ScenarioCostOptimized, ScenarioMaxCapture, ScenarioDrySeason}
}

// ParseScenario maps a boundary string onto a Scenario. Unrecognized values
// fail with ErrUnknownScenario; they are never coerced to a default.
func ParseScenario(s string) (Scenario, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(ScenarioCostOptimized):
		return ScenarioCostOptimized, nil
	case string(ScenarioMaxCapture):
		return ScenarioMaxCapture, nil
	case string(ScenarioDrySeason):
		return ScenarioDrySeason, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownScenario, s)
	}
}

// Cost model and demand constants. Costs are cumulative marginal tiers so
// the capacity-to-cost function stays strictly monotone.
const (
	baseSystemCostINR    = 15000.0
	tier1LimitLiters     = 5000.0
	tier2LimitLiters     = 20000.0
	tier1RateINRPerLiter = 18.0
	tier2RateINRPerLiter = 14.0
	tier3RateINRPerLiter = 11.0

	subsidyRate   = 0.30
	subsidyCapINR = 25000.0

	// WaterPriceINRPerLiter is the blended municipal/tanker price used to
	// value harvested water.
	WaterPriceINRPerLiter = 0.25

	// DefaultDailyDemandLiters is the household default (135 L/person/day
	// for a four-person household, per CPHEEO norms).
	DefaultDailyDemandLiters = 540.0

	demandDaysPerYear = 365.0
)

// monthDays is the non-leap calendar used for demand-day accounting.
var monthDays = [12]float64{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

// policy is the fixed parameter set a scenario maps to. capMonths is the
// storage-to-demand ratio: capacity never exceeds capMonths 30-day months
// of demand.
type policy struct {
	capMonths         float64
	reliabilityTarget float64
	costCeilingINR    float64
}

func policyFor(s Scenario) (policy, error) {
	switch s {
	case ScenarioCostOptimized:
		return policy{capMonths: 1, reliabilityTarget: 60, costCeilingINR: 75000}, nil
	case ScenarioMaxCapture:
		return policy{capMonths: 12, reliabilityTarget: 85, costCeilingINR: 500000}, nil
	case ScenarioDrySeason:
		return policy{capMonths: 6, reliabilityTarget: 75, costCeilingINR: 250000}, nil
	default:
		return policy{}, fmt.Errorf("%w: %q", ErrUnknownScenario, string(s))
	}
}

// Recommendation is the sizing result for one scenario. A zero-capacity
// tank is a valid, reportable outcome, not an error. PaybackYears is nil
// when annual savings are zero against a positive net cost.
type Recommendation struct {
	Scenario               Scenario `json:"scenario"`
	TankCapacityLiters     float64  `json:"tank_capacity_liters"`
	GrossCostINR           float64  `json:"gross_cost_inr"`
	SubsidyINR             float64  `json:"subsidy_inr"`
	NetCostINR             float64  `json:"net_cost_inr"`
	AnnualSavingsINR       float64  `json:"annual_savings_inr"`
	PaybackYears           *float64 `json:"payback_years"`
	ReliabilityPct         float64  `json:"reliability_pct"`
	MeetsReliabilityTarget bool     `json:"meets_reliability_target"`
	WithinCostCeiling      bool     `json:"within_cost_ceiling"`
}

// CalculateStorageRequirement sizes a tank for the given yield profile,
// daily demand and scenario.
//
// Capacity rules per scenario:
//   - cost_optimized: smallest capacity covering the median monthly yield.
//   - max_capture: the peak month's yield.
//   - dry_season: the yield deficit across the longest cyclic run of
//     below-average months, so surplus accumulated in the preceding wet
//     months can bridge it.
//
// Demand must be positive. Negative monthly yields are treated as caller
// bugs and fail immediately rather than being clamped.
func CalculateStorageRequirement(monthlyYield [12]float64, dailyDemandLiters float64, s Scenario) (*Recommendation, error) {
	if dailyDemandLiters <= 0 {
		return nil, fmt.Errorf("%w: daily demand must be positive, got %.2f", hydrology.ErrInvalidInput, dailyDemandLiters)
	}
	for i, y := range monthlyYield {
		if y < 0 {
			return nil, fmt.Errorf("%w: negative yield %.2f in month %d", hydrology.ErrInvalidInput, y, i+1)
		}
	}
	pol, err := policyFor(s)
	if err != nil {
		return nil, err
	}

	capacity := baseCapacity(s, monthlyYield)
	if maxCap := pol.capMonths * 30 * dailyDemandLiters; capacity > maxCap {
		capacity = maxCap
	}

	gross := SystemCostINR(capacity)
	subsidy := math.Min(gross*subsidyRate, subsidyCapINR)
	net := gross - subsidy

	savings := annualSavings(monthlyYield, dailyDemandLiters)

	rec := &Recommendation{
		Scenario:           s,
		TankCapacityLiters: capacity,
		GrossCostINR:       gross,
		SubsidyINR:         subsidy,
		NetCostINR:         net,
		AnnualSavingsINR:   savings,
		ReliabilityPct:     simulateReliability(monthlyYield, dailyDemandLiters, capacity),
	}
	if savings > 0 {
		p := net / savings
		rec.PaybackYears = &p
	} else if net == 0 {
		p := 0.0
		rec.PaybackYears = &p
	}
	rec.MeetsReliabilityTarget = rec.ReliabilityPct >= pol.reliabilityTarget
	rec.WithinCostCeiling = net <= pol.costCeilingINR
	return rec, nil
}

func baseCapacity(s Scenario, monthly [12]float64) float64 {
	switch s {
	case ScenarioCostOptimized:
		return medianYield(monthly)
	case ScenarioMaxCapture:
		peak := 0.0
		for _, y := range monthly {
			if y > peak {
				peak = y
			}
		}
		return peak
	case ScenarioDrySeason:
		return dryRunDeficit(monthly)
	}
	return 0
}

// medianYield is the conventional median: the mean of the two middle
// values for the even-length month vector.
func medianYield(monthly [12]float64) float64 {
	sorted := make([]float64, 12)
	copy(sorted, monthly[:])
	sort.Float64s(sorted)
	return (sorted[5] + sorted[6]) / 2
}

// dryRunDeficit finds the longest run of strictly below-average months on
// the cyclic month sequence (December wraps into January) and returns the
// total shortfall against the average across that run. Equal-length runs
// tie-break on the larger shortfall. A flat profile has no below-average
// month and sizes to zero.
func dryRunDeficit(monthly [12]float64) float64 {
	mean := stat.Mean(monthly[:], nil)

	bestLen, bestDeficit := 0, 0.0
	runLen, runDeficit := 0, 0.0
	for i := 0; i < 24; i++ {
		y := monthly[i%12]
		if y < mean {
			runLen++
			runDeficit += mean - y
			if runLen > bestLen || (runLen == bestLen && runDeficit > bestDeficit) {
				bestLen, bestDeficit = runLen, runDeficit
			}
		} else {
			runLen, runDeficit = 0, 0
		}
	}
	return bestDeficit
}

// SystemCostINR prices a tank of the given capacity: a fixed base plus
// cumulative per-liter tiers. Zero capacity costs nothing.
func SystemCostINR(capacityLiters float64) float64 {
	if capacityLiters <= 0 {
		return 0
	}
	cost := baseSystemCostINR
	cost += tier1RateINRPerLiter * math.Min(capacityLiters, tier1LimitLiters)
	if capacityLiters > tier1LimitLiters {
		cost += tier2RateINRPerLiter * (math.Min(capacityLiters, tier2LimitLiters) - tier1LimitLiters)
	}
	if capacityLiters > tier2LimitLiters {
		cost += tier3RateINRPerLiter * (capacityLiters - tier2LimitLiters)
	}
	return cost
}

// annualSavings values the yield actually usable against demand. Supply
// beyond a month's demand is overflow, not savings.
func annualSavings(monthly [12]float64, daily float64) float64 {
	usable := 0.0
	for m, y := range monthly {
		usable += math.Min(y, daily*monthDays[m])
	}
	return usable * WaterPriceINRPerLiter
}

// simulateReliability runs the year as a month-by-month water balance:
// inflow tops the balance up to capacity (excess spills), then demand
// drains it. A month that runs dry satisfies only the whole days its
// stored water covers. Returns the percentage of the year's demand-days
// satisfied.
func simulateReliability(monthly [12]float64, daily, capacity float64) float64 {
	balance := 0.0
	satisfied := 0.0
	for m := 0; m < 12; m++ {
		days := monthDays[m]
		stored := balance + monthly[m]
		if stored > capacity {
			stored = capacity
		}
		demand := daily * days
		if stored >= demand {
			satisfied += days
			balance = stored - demand
		} else {
			satisfied += math.Floor(stored / daily)
			balance = 0
		}
	}
	pct := satisfied / demandDaysPerYear * 100
	return math.Max(0, math.Min(100, pct))
}
