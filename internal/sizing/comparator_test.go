package sizing

import (
	"errors"
	"testing"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
)

func TestCompareScenariosAlwaysThreeRows(t *testing.T) {
	rows, err := CompareScenarios(monsoonYield, 540)
	if err != nil {
		t.Fatalf("CompareScenarios failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	wantOrder := []Scenario{ScenarioCostOptimized, ScenarioMaxCapture, ScenarioDrySeason}
	for i, row := range rows {
		if row.Scenario != wantOrder[i] {
			t.Errorf("row %d: expected %s, got %s", i, wantOrder[i], row.Scenario)
		}
		if row.Recommendation == nil {
			t.Fatalf("row %d: missing recommendation", i)
		}
		if row.Recommendation.Scenario != row.Scenario {
			t.Errorf("row %d: recommendation attributed to %s", i, row.Recommendation.Scenario)
		}
	}
}

func TestCompareScenariosReportsDegenerateRows(t *testing.T) {
	// All-zero yield produces a zero-capacity recommendation for every
	// scenario; none of the rows may be dropped.
	var zero [12]float64
	rows, err := CompareScenarios(zero, 540)
	if err != nil {
		t.Fatalf("CompareScenarios failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows for degenerate input, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Recommendation.TankCapacityLiters != 0 {
			t.Errorf("%s: expected zero capacity, got %v", row.Scenario, row.Recommendation.TankCapacityLiters)
		}
	}
}

func TestCompareScenariosStableAcrossCalls(t *testing.T) {
	first, err := CompareScenarios(monsoonYield, 540)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := CompareScenarios(monsoonYield, 540)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	for i := range first {
		if first[i].Scenario != second[i].Scenario {
			t.Errorf("row %d: order changed between calls", i)
		}
		if first[i].Recommendation.TankCapacityLiters != second[i].Recommendation.TankCapacityLiters {
			t.Errorf("row %d: capacity changed between calls", i)
		}
	}
}

func TestCompareScenariosPropagatesInputError(t *testing.T) {
	if _, err := CompareScenarios(monsoonYield, 0); !errors.Is(err, hydrology.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}
