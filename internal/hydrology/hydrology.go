// Package hydrology implements the rooftop runoff and yield calculations
// used by the assessment pipeline. All functions here are pure: no I/O,
// no shared state, safe for concurrent use.
package hydrology

import (
	"errors"
	"fmt"
	"strings"
)

// CollectionEfficiency is the system-wide loss factor for first-flush
// diversion, conveyance and filtration, applied uniformly regardless of
// roof material.
const CollectionEfficiency = 0.90

var (
	// ErrInvalidInput indicates a malformed or out-of-range scalar input
	// (negative area, negative rainfall, non-positive demand).
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownMaterial indicates a roof material outside the supported set.
	ErrUnknownMaterial = errors.New("unknown roof material")
)

// Material identifies a roof surface type. Each material carries a fixed
// runoff coefficient: the fraction of incident rainfall converted to
// collectible runoff.
type Material string

const (
	MaterialConcrete Material = "concrete"
	MaterialMetal    Material = "metal"
	MaterialTiles    Material = "tiles"
	MaterialThatched Material = "thatched"
)

// Coefficient returns the runoff coefficient for the material.
func (m Material) Coefficient() (float64, error) {
	switch m {
	case MaterialConcrete:
		return 0.85, nil
	case MaterialMetal:
		return 0.90, nil
	case MaterialTiles:
		return 0.75, nil
	case MaterialThatched:
		return 0.60, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMaterial, string(m))
	}
}

// ParseMaterial maps a boundary string onto a Material. Matching is
// case-insensitive and tolerates surrounding whitespace. "asphalt" and
// "thatched/asphalt" are accepted spellings of the thatched category.
// Unrecognized values fail with ErrUnknownMaterial; there is no fallback
// coefficient.
func ParseMaterial(s string) (Material, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "concrete", "rcc":
		return MaterialConcrete, nil
	case "metal", "gi", "metal_sheet":
		return MaterialMetal, nil
	case "tiles", "tile", "clay_tiles":
		return MaterialTiles, nil
	case "thatched", "asphalt", "thatched/asphalt":
		return MaterialThatched, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMaterial, s)
	}
}

// Materials returns the supported materials in a fixed order.
func Materials() []Material {
	return []Material{MaterialConcrete, MaterialMetal, MaterialTiles, MaterialThatched}
}

// CalculateRunoff converts rainfall over a roof into collectible liters:
//
//	liters = area_sqm * rainfall_mm * material_coefficient * CollectionEfficiency
//
// (1 mm of rain over 1 m² is 1 liter.) Zero area or zero rainfall yields
// exactly zero. Negative area or rainfall fails with ErrInvalidInput.
func CalculateRunoff(areaSqm, rainfallMM float64, m Material) (float64, error) {
	if areaSqm < 0 {
		return 0, fmt.Errorf("%w: roof area must not be negative, got %.2f", ErrInvalidInput, areaSqm)
	}
	if rainfallMM < 0 {
		return 0, fmt.Errorf("%w: rainfall must not be negative, got %.2f", ErrInvalidInput, rainfallMM)
	}
	coeff, err := m.Coefficient()
	if err != nil {
		return 0, err
	}
	return areaSqm * rainfallMM * coeff * CollectionEfficiency, nil
}

// YieldSimulation is the result of applying the runoff formula across a
// twelve-month rainfall profile. TotalLiters is the exact sum of
// MonthlyLiters; callers may cache the result but it is recomputed on
// every request and never treated as authoritative.
type YieldSimulation struct {
	AreaSqm       float64     `json:"area_sqm"`
	Material      Material    `json:"material"`
	Scenario      string      `json:"scenario,omitempty"`
	MonthlyLiters [12]float64 `json:"monthly_yield_liters"`
	TotalLiters   float64     `json:"total_yield_liters"`
}

// SimulateYearlyYield applies CalculateRunoff to each month of the profile.
// The scenario string is attribution only; it does not change the arithmetic.
func SimulateYearlyYield(areaSqm float64, monthlyMM [12]float64, m Material, scenario string) (*YieldSimulation, error) {
	sim := &YieldSimulation{
		AreaSqm:  areaSqm,
		Material: m,
		Scenario: scenario,
	}
	for i, mm := range monthlyMM {
		liters, err := CalculateRunoff(areaSqm, mm, m)
		if err != nil {
			return nil, fmt.Errorf("month %d: %w", i+1, err)
		}
		sim.MonthlyLiters[i] = liters
		sim.TotalLiters += liters
	}
	return sim, nil
}
