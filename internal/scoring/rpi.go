package scoring

import (
	"math"
)

// Defaults used by ComponentsFromJobHistory when a metric has no data to
// average. Explicit constants, never derived.
const (
	DefaultDesignMatchPct   = 80.0
	DefaultYieldAccuracyPct = 80.0
	DefaultTimelinessScore  = 70.0
	DefaultComplaintRate    = 5.0
	DefaultMaintenancePct   = 75.0
)

// complaintPenaltyPerUnit is the linear penalty applied to the complaint
// rate before inversion: one complaint per ten jobs costs ten points.
const complaintPenaltyPerUnit = 10.0

// RPIComponents are the five sub-metrics feeding the index. All are 0-100
// percentages except ComplaintRate, an unbounded non-negative rate
// (complaints per ten jobs) that the calculator inverts.
type RPIComponents struct {
	DesignMatchPct   float64 `json:"design_match_pct"`
	YieldAccuracyPct float64 `json:"yield_accuracy_pct"`
	TimelinessScore  float64 `json:"timeliness_score"`
	ComplaintRate    float64 `json:"complaint_rate"`
	MaintenancePct   float64 `json:"maintenance_pct"`
}

// RPIBreakdown holds the clamped 0-100 sub-scores that were weighted.
type RPIBreakdown struct {
	DesignScore      float64 `json:"design_score"`
	YieldScore       float64 `json:"yield_score"`
	TimelinessScore  float64 `json:"timeliness_score"`
	ComplaintScore   float64 `json:"complaint_score"`
	MaintenanceScore float64 `json:"maintenance_score"`
}

// RPIResult is the Reliability Performance Index for one installer.
type RPIResult struct {
	Score     float64      `json:"score"`
	Grade     string       `json:"grade"`
	Breakdown RPIBreakdown `json:"breakdown"`
}

// CalculateRPI combines the components under the given weights. The
// complaint rate is inverted with a saturating linear penalty:
//
//	complaint_score = max(0, 100 - complaint_rate * 10)
//
// Out-of-range component values are clamped rather than rejected; the
// final score is always within [0, 100].
func CalculateRPI(c RPIComponents, w RPIWeights) (*RPIResult, error) {
	nw, err := w.Normalize()
	if err != nil {
		return nil, err
	}

	b := RPIBreakdown{
		DesignScore:      clamp100(c.DesignMatchPct),
		YieldScore:       clamp100(c.YieldAccuracyPct),
		TimelinessScore:  clamp100(c.TimelinessScore),
		ComplaintScore:   math.Max(0, 100-math.Max(0, c.ComplaintRate)*complaintPenaltyPerUnit),
		MaintenanceScore: clamp100(c.MaintenancePct),
	}
	score := nw.DesignMatch*b.DesignScore +
		nw.YieldAccuracy*b.YieldScore +
		nw.Timeliness*b.TimelinessScore +
		nw.Complaints*b.ComplaintScore +
		nw.Maintenance*b.MaintenanceScore

	score = clamp100(score)
	return &RPIResult{Score: score, Grade: GradeFor(score), Breakdown: b}, nil
}

// GradeFor maps a score onto the fixed letter-grade bands. Thresholds are
// inclusive at the lower bound of each band.
func GradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

// JobRecord is one completed (or in-flight) installation job in an
// installer's history. The calculator treats the slice as an injected
// read-only collection.
type JobRecord struct {
	JobID                string   `json:"job_id"`
	DesignMatchPct       *float64 `json:"design_match_pct,omitempty"`
	PredictedYieldLiters float64  `json:"predicted_yield_liters"`
	ActualYieldLiters    float64  `json:"actual_yield_liters"`
	Completed            bool     `json:"completed"`
	OnTime               bool     `json:"on_time"`
	Complaints           int      `json:"complaints"`
	MaintenanceDone      int      `json:"maintenance_done"`
	MaintenanceDue       int      `json:"maintenance_due"`
}

// ComponentsFromJobHistory averages raw job records into RPIComponents.
// Metrics with no contributing jobs fall back to the documented defaults:
// an installer with no history scores as an unknown quantity, not a
// perfect one.
func ComponentsFromJobHistory(jobs []JobRecord) RPIComponents {
	comp := RPIComponents{
		DesignMatchPct:   DefaultDesignMatchPct,
		YieldAccuracyPct: DefaultYieldAccuracyPct,
		TimelinessScore:  DefaultTimelinessScore,
		ComplaintRate:    DefaultComplaintRate,
		MaintenancePct:   DefaultMaintenancePct,
	}
	if len(jobs) == 0 {
		return comp
	}

	var designSum float64
	var designN int
	var accSum float64
	var accN int
	var completed, onTime int
	var complaints int
	var maintDone, maintDue int

	for _, j := range jobs {
		if j.DesignMatchPct != nil {
			designSum += clamp100(*j.DesignMatchPct)
			designN++
		}
		if j.PredictedYieldLiters > 0 {
			acc := 100 * (1 - math.Abs(j.ActualYieldLiters-j.PredictedYieldLiters)/j.PredictedYieldLiters)
			accSum += math.Max(0, acc)
			accN++
		}
		if j.Completed {
			completed++
			if j.OnTime {
				onTime++
			}
		}
		complaints += j.Complaints
		maintDone += j.MaintenanceDone
		maintDue += j.MaintenanceDue
	}

	if designN > 0 {
		comp.DesignMatchPct = designSum / float64(designN)
	}
	if accN > 0 {
		comp.YieldAccuracyPct = accSum / float64(accN)
	}
	if completed > 0 {
		comp.TimelinessScore = 100 * float64(onTime) / float64(completed)
	}
	comp.ComplaintRate = float64(complaints) / float64(len(jobs)) * 10
	if maintDue > 0 {
		comp.MaintenancePct = clamp100(100 * float64(maintDone) / float64(maintDue))
	}
	return comp
}
