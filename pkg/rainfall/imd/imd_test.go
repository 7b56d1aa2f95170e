package imd

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/pkg/rainfall"
)

func TestNormalsNearestStation(t *testing.T) {
	p := &Provider{}

	profile, err := p.Normals(context.Background(), 28.61, 77.21)
	if err != nil {
		t.Fatalf("Normals returned error: %v", err)
	}
	if profile.Station != "New Delhi (Safdarjung)" {
		t.Errorf("Station = %q", profile.Station)
	}
	if profile.Source == "" {
		t.Error("Source not set")
	}
	if profile.FetchedAt.IsZero() {
		t.Error("FetchedAt not set")
	}

	var sum float64
	for _, mm := range profile.MonthlyMM {
		sum += mm
	}
	if math.Abs(profile.AnnualMM-sum) > 1e-9 {
		t.Errorf("AnnualMM = %g, monthly sum = %g", profile.AnnualMM, sum)
	}
	// Delhi's July normal dominates the winter months.
	if profile.MonthlyMM[6] <= profile.MonthlyMM[0] {
		t.Errorf("July %g should exceed January %g", profile.MonthlyMM[6], profile.MonthlyMM[0])
	}
}

func TestNormalsSelectsDistinctStations(t *testing.T) {
	p := &Provider{}

	cases := []struct {
		lat, lng float64
		station  string
	}{
		{19.0760, 72.8777, "Mumbai (Santacruz)"},
		{13.0827, 80.2707, "Chennai (Nungambakkam)"},
		{12.9716, 77.5946, "Bengaluru"},
		{34.0, 74.9, "Srinagar"},
	}
	for _, tc := range cases {
		profile, err := p.Normals(context.Background(), tc.lat, tc.lng)
		if err != nil {
			t.Fatalf("Normals(%g, %g) returned error: %v", tc.lat, tc.lng, err)
		}
		if profile.Station != tc.station {
			t.Errorf("Normals(%g, %g) station = %q, want %q", tc.lat, tc.lng, profile.Station, tc.station)
		}
	}
}

func TestNormalsOutsideCoverage(t *testing.T) {
	p := &Provider{}

	// Oslo is several thousand km from every station.
	if _, err := p.Normals(context.Background(), 59.91, 10.75); !errors.Is(err, rainfall.ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage, got %v", err)
	}
	if _, err := p.Normals(context.Background(), math.NaN(), math.NaN()); !errors.Is(err, rainfall.ErrNoCoverage) {
		t.Fatalf("expected ErrNoCoverage for NaN coordinates, got %v", err)
	}
}

func TestStationTableSane(t *testing.T) {
	for _, st := range stations {
		annual := rainfall.AnnualTotal(st.monthlyMM)
		if annual < 300 || annual > 3000 {
			t.Errorf("%s: annual normal %g mm out of plausible range", st.name, annual)
		}
		for m, mm := range st.monthlyMM {
			if mm < 0 {
				t.Errorf("%s: month %d negative normal %g", st.name, m+1, mm)
			}
		}
		if st.lat < 8 || st.lat > 37 || st.lng < 68 || st.lng > 98 {
			t.Errorf("%s: coordinates (%g, %g) outside India", st.name, st.lat, st.lng)
		}
	}
}

func TestHaversineKnownDistance(t *testing.T) {
	// Delhi to Mumbai is roughly 1150 km great-circle.
	d := haversineKM(28.58, 77.20, 19.09, 72.85)
	if d < 1100 || d > 1200 {
		t.Errorf("haversineKM = %g, want ~1150", d)
	}
	if z := haversineKM(28.58, 77.20, 28.58, 77.20); z > 1e-9 {
		t.Errorf("zero distance = %g", z)
	}
}

func TestProviderRegistered(t *testing.T) {
	p, ok := rainfall.Get("imd")
	if !ok {
		t.Fatal("imd provider not registered")
	}
	if p.Key() != "imd" {
		t.Errorf("Key = %q", p.Key())
	}
}
