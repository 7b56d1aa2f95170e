package sizing

// ScenarioComparison is one row of the three-scenario comparison table.
type ScenarioComparison struct {
	Scenario       Scenario        `json:"scenario"`
	Recommendation *Recommendation `json:"recommendation"`
}

// CompareScenarios runs the sizing engine once per scenario over the same
// yield profile and demand, in the fixed order cost_optimized, max_capture,
// dry_season. The result always has exactly three rows; a degenerate
// recommendation (zero-capacity tank) is reported, never skipped. Input
// errors fail the whole comparison before any row is produced.
func CompareScenarios(monthlyYield [12]float64, dailyDemandLiters float64) ([]ScenarioComparison, error) {
	rows := make([]ScenarioComparison, 0, 3)
	for _, s := range Scenarios() {
		rec, err := CalculateStorageRequirement(monthlyYield, dailyDemandLiters, s)
		if err != nil {
			return nil, err
		}
		rows = append(rows, ScenarioComparison{Scenario: s, Recommendation: rec})
	}
	return rows, nil
}
