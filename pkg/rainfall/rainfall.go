// Package rainfall defines the monthly rainfall data model shared by the
// assessment engine and the provider registry that resolves coordinates to
// rainfall normals.
package rainfall

import (
	"context"
	"errors"
	"time"
)

// Profile holds one year of monthly rainfall depths for a location.
type Profile struct {
	MonthlyMM [12]float64 `json:"monthly_mm"`
	AnnualMM  float64     `json:"annual_mm"`
	Source    string      `json:"source"`
	Station   string      `json:"station,omitempty"`
	FetchedAt time.Time   `json:"fetched_at"`
}

// AnnualTotal sums a monthly depth vector.
func AnnualTotal(monthly [12]float64) float64 {
	var total float64
	for _, mm := range monthly {
		total += mm
	}
	return total
}

// Provider is the interface that all rainfall data providers must implement.
type Provider interface {
	// Key returns the unique identifier for the provider (e.g., "imd", "openmeteo").
	Key() string
	// Name returns the human-readable name of the data source.
	Name() string
	// SourceURL returns the URL of the upstream data source.
	SourceURL() string
	// Normals returns the monthly rainfall profile for the given coordinates.
	Normals(ctx context.Context, lat, lng float64) (*Profile, error)
}

// Common errors shared across providers.
var (
	ErrProviderNotFound = errors.New("rainfall provider not found")
	ErrNoCoverage       = errors.New("no rainfall coverage for location")
	ErrParseFailed      = errors.New("failed to parse rainfall data")
)
