package sizing

import (
	"errors"
	"math"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
)

// flatYield is the profile of a 100 m² concrete roof under 10 mm/month.
var flatYield = [12]float64{765, 765, 765, 765, 765, 765, 765, 765, 765, 765, 765, 765}

// monsoonYield concentrates the year's capture in June through September.
var monsoonYield = [12]float64{0, 0, 0, 0, 0, 1200, 1200, 1200, 1200, 0, 0, 0}

func TestParseScenario(t *testing.T) {
	for _, s := range []string{"cost_optimized", "max_capture", "dry_season"} {
		got, err := ParseScenario(s)
		if err != nil {
			t.Errorf("ParseScenario(%q) failed: %v", s, err)
		}
		if string(got) != s {
			t.Errorf("ParseScenario(%q) = %q", s, got)
		}
	}
	if _, err := ParseScenario(" Max_Capture "); err != nil {
		t.Errorf("case/space tolerance: %v", err)
	}
	if _, err := ParseScenario("wet_season"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
	if _, err := ParseScenario(""); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("empty scenario: expected ErrUnknownScenario, got %v", err)
	}
}

func TestCostOptimizedSizesToMedian(t *testing.T) {
	rec, err := CalculateStorageRequirement(flatYield, 540, ScenarioCostOptimized)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	if rec.TankCapacityLiters != 765 {
		t.Errorf("expected capacity 765 (median), got %v", rec.TankCapacityLiters)
	}

	// Gross: 15000 base + 18/L * 765 = 28770; subsidy 30% = 8631; net 20139.
	if math.Abs(rec.GrossCostINR-28770) > 0.01 {
		t.Errorf("expected gross 28770, got %v", rec.GrossCostINR)
	}
	if math.Abs(rec.SubsidyINR-8631) > 0.01 {
		t.Errorf("expected subsidy 8631, got %v", rec.SubsidyINR)
	}
	if math.Abs(rec.NetCostINR-20139) > 0.01 {
		t.Errorf("expected net 20139, got %v", rec.NetCostINR)
	}

	// Savings: every month's yield is below demand, so all 9180 L are
	// usable: 9180 * 0.25 = 2295 INR/year.
	if math.Abs(rec.AnnualSavingsINR-2295) > 0.01 {
		t.Errorf("expected savings 2295, got %v", rec.AnnualSavingsINR)
	}
	if rec.PaybackYears == nil {
		t.Fatal("expected defined payback")
	}
	wantPayback := 20139.0 / 2295.0
	if math.Abs(*rec.PaybackYears-wantPayback) > 1e-6 {
		t.Errorf("expected payback %v, got %v", wantPayback, *rec.PaybackYears)
	}
}

func TestMaxCaptureSizesToPeak(t *testing.T) {
	rec, err := CalculateStorageRequirement(monsoonYield, 540, ScenarioMaxCapture)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	if rec.TankCapacityLiters != 1200 {
		t.Errorf("expected capacity 1200 (peak month), got %v", rec.TankCapacityLiters)
	}
}

func TestDrySeasonBridgesLongestRun(t *testing.T) {
	// Mean is 400. Below-average months run Oct through May across the
	// year boundary: 8 months, each 400 short, so the tank must carry
	// 3200 L of wet-season surplus.
	rec, err := CalculateStorageRequirement(monsoonYield, 540, ScenarioDrySeason)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	if math.Abs(rec.TankCapacityLiters-3200) > 1e-9 {
		t.Errorf("expected capacity 3200, got %v", rec.TankCapacityLiters)
	}
}

func TestDrySeasonFlatProfileSizesToZero(t *testing.T) {
	rec, err := CalculateStorageRequirement(flatYield, 540, ScenarioDrySeason)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	if rec.TankCapacityLiters != 0 {
		t.Errorf("flat profile has no below-average run, expected 0, got %v", rec.TankCapacityLiters)
	}
	if rec.GrossCostINR != 0 || rec.NetCostINR != 0 {
		t.Errorf("zero tank should cost nothing, got gross %v net %v", rec.GrossCostINR, rec.NetCostINR)
	}
}

func TestZeroYieldProfileIsReportable(t *testing.T) {
	var zero [12]float64
	for _, s := range Scenarios() {
		rec, err := CalculateStorageRequirement(zero, 540, s)
		if err != nil {
			t.Fatalf("%s: zero profile should not error: %v", s, err)
		}
		if rec.TankCapacityLiters != 0 {
			t.Errorf("%s: expected zero capacity, got %v", s, rec.TankCapacityLiters)
		}
		if rec.PaybackYears == nil || *rec.PaybackYears != 0 {
			t.Errorf("%s: zero cost against zero savings should report payback 0, got %v", s, rec.PaybackYears)
		}
		if rec.ReliabilityPct != 0 {
			t.Errorf("%s: expected reliability 0, got %v", s, rec.ReliabilityPct)
		}
	}
}

func TestCapacityCappedByDemandRatio(t *testing.T) {
	var big [12]float64
	for i := range big {
		big[i] = 20000
	}
	// cost_optimized caps at one 30-day month of demand: 30 * 540 = 16200.
	rec, err := CalculateStorageRequirement(big, 540, ScenarioCostOptimized)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	if rec.TankCapacityLiters != 16200 {
		t.Errorf("expected capped capacity 16200, got %v", rec.TankCapacityLiters)
	}
}

func TestCapacityMonotonicInYieldScale(t *testing.T) {
	for _, s := range Scenarios() {
		prev := -1.0
		for _, scale := range []float64{0.5, 1, 2, 4} {
			var scaled [12]float64
			for i, y := range monsoonYield {
				scaled[i] = y * scale
			}
			rec, err := CalculateStorageRequirement(scaled, 5000, s)
			if err != nil {
				t.Fatalf("%s at scale %v: %v", s, scale, err)
			}
			if rec.TankCapacityLiters < prev {
				t.Errorf("%s: capacity decreased with yield: %v after %v", s, rec.TankCapacityLiters, prev)
			}
			prev = rec.TankCapacityLiters
		}
	}
}

func TestSystemCostTiers(t *testing.T) {
	cases := []struct {
		capacity float64
		want     float64
	}{
		{0, 0},
		{1000, 15000 + 18*1000},
		{5000, 15000 + 18*5000},
		{10000, 15000 + 18*5000 + 14*5000},
		{25000, 15000 + 18*5000 + 14*15000 + 11*5000},
	}
	for _, c := range cases {
		got := SystemCostINR(c.capacity)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SystemCostINR(%v) = %v, want %v", c.capacity, got, c.want)
		}
	}

	// Strictly monotone above zero.
	prev := SystemCostINR(1)
	for _, c := range []float64{100, 4999, 5001, 19999, 20001, 100000} {
		cost := SystemCostINR(c)
		if cost <= prev {
			t.Errorf("cost not increasing at %v: %v <= %v", c, cost, prev)
		}
		prev = cost
	}
}

func TestSavingsCappedAtDemand(t *testing.T) {
	// 50 L/day demand: monthly demand 1400-1550 L, far below the wet
	// months' yield. Only the demand-capped share counts as savings.
	rec, err := CalculateStorageRequirement(monsoonYield, 50, ScenarioMaxCapture)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	// Jun 50*30=1500, Jul 50*31=1550, Aug 1550, Sep 1500; dry months 0.
	wantUsable := 1500.0 + 1550 + 1550 + 1500
	want := wantUsable * WaterPriceINRPerLiter
	if math.Abs(rec.AnnualSavingsINR-want) > 0.01 {
		t.Errorf("expected savings %v, got %v", want, rec.AnnualSavingsINR)
	}
}

func TestReliabilityCarriesSurplusAcrossMonths(t *testing.T) {
	monthly := [12]float64{0, 0, 0, 0, 0, 5000, 20000, 20000, 5000, 0, 0, 0}
	got := simulateReliability(monthly, 100, 20000)

	// Hand-walked balance: Jun 30 days, Jul-Sep full, then the stored
	// surplus covers Oct, Nov and Dec entirely: 214 of 365 days.
	want := 214.0 / 365.0 * 100
	if math.Abs(got-want) > 0.01 {
		t.Errorf("expected reliability %.4f, got %.4f", want, got)
	}
}

func TestReliabilityZeroCapacity(t *testing.T) {
	if got := simulateReliability(flatYield, 540, 0); got != 0 {
		t.Errorf("zero-capacity tank should satisfy no demand-days, got %v", got)
	}
}

func TestReliabilityBounds(t *testing.T) {
	var huge [12]float64
	for i := range huge {
		huge[i] = 1e9
	}
	got := simulateReliability(huge, 10, 1e9)
	if got != 100 {
		t.Errorf("oversized system should reach exactly 100, got %v", got)
	}
}

func TestInvalidDemand(t *testing.T) {
	if _, err := CalculateStorageRequirement(flatYield, 0, ScenarioCostOptimized); !errors.Is(err, hydrology.ErrInvalidInput) {
		t.Errorf("zero demand: expected ErrInvalidInput, got %v", err)
	}
	if _, err := CalculateStorageRequirement(flatYield, -10, ScenarioCostOptimized); !errors.Is(err, hydrology.ErrInvalidInput) {
		t.Errorf("negative demand: expected ErrInvalidInput, got %v", err)
	}
}

func TestNegativeYieldFailsFast(t *testing.T) {
	bad := flatYield
	bad[4] = -1
	if _, err := CalculateStorageRequirement(bad, 540, ScenarioMaxCapture); !errors.Is(err, hydrology.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative yield, got %v", err)
	}
}

func TestUnknownScenarioRejected(t *testing.T) {
	if _, err := CalculateStorageRequirement(flatYield, 540, Scenario("wet_season")); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
}

func TestPolicyFlags(t *testing.T) {
	rec, err := CalculateStorageRequirement(flatYield, 540, ScenarioCostOptimized)
	if err != nil {
		t.Fatalf("CalculateStorageRequirement failed: %v", err)
	}
	// 765 L against 540 L/day demand: roughly one stored day per month.
	if rec.MeetsReliabilityTarget {
		t.Error("small tank against large demand should miss the 60% target")
	}
	if !rec.WithinCostCeiling {
		t.Errorf("net %v should sit inside the 75000 ceiling", rec.NetCostINR)
	}
}
