// Package scoring ranks installer bids and allocation candidates with
// multi-criteria weighted scores, and aggregates installer job history
// into the Reliability Performance Index (RPI). Everything here is pure
// and side-effect free; candidate slices are never mutated.
package scoring

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidWeights indicates a weight set that cannot be normalized:
// a zero sum, or a negative member.
var ErrInvalidWeights = errors.New("invalid weights")

// weightEpsilon bounds the allowed drift of a normalized weight sum from 1.
const weightEpsilon = 1e-9

// BidWeights weighs the four bid criteria. Callers may supply any
// non-negative set; it is normalized before use so scores stay comparable
// across requests.
type BidWeights struct {
	Price    float64 `json:"price_weight"`
	Timeline float64 `json:"timeline_weight"`
	Warranty float64 `json:"warranty_weight"`
	RPI      float64 `json:"rpi_weight"`
}

// DefaultBidWeights is the documented default bid weight set.
func DefaultBidWeights() BidWeights {
	return BidWeights{Price: 0.40, Timeline: 0.20, Warranty: 0.10, RPI: 0.30}
}

func (w BidWeights) Sum() float64 {
	return w.Price + w.Timeline + w.Warranty + w.RPI
}

// Normalize returns a copy scaled to sum to 1.0.
func (w BidWeights) Normalize() (BidWeights, error) {
	sum, err := checkWeights("bid", w.Sum(), w.Price, w.Timeline, w.Warranty, w.RPI)
	if err != nil {
		return BidWeights{}, err
	}
	return BidWeights{
		Price:    w.Price / sum,
		Timeline: w.Timeline / sum,
		Warranty: w.Warranty / sum,
		RPI:      w.RPI / sum,
	}, nil
}

// AllocationWeights weighs the five allocation criteria.
type AllocationWeights struct {
	Capacity   float64 `json:"capacity"`
	RPI        float64 `json:"rpi"`
	CostBand   float64 `json:"cost_band"`
	Distance   float64 `json:"distance"`
	SLAHistory float64 `json:"sla_history"`
}

// DefaultAllocationWeights is the documented default allocation weight set.
func DefaultAllocationWeights() AllocationWeights {
	return AllocationWeights{Capacity: 0.25, RPI: 0.30, CostBand: 0.15, Distance: 0.15, SLAHistory: 0.15}
}

func (w AllocationWeights) Sum() float64 {
	return w.Capacity + w.RPI + w.CostBand + w.Distance + w.SLAHistory
}

// Normalize returns a copy scaled to sum to 1.0.
func (w AllocationWeights) Normalize() (AllocationWeights, error) {
	sum, err := checkWeights("allocation", w.Sum(), w.Capacity, w.RPI, w.CostBand, w.Distance, w.SLAHistory)
	if err != nil {
		return AllocationWeights{}, err
	}
	return AllocationWeights{
		Capacity:   w.Capacity / sum,
		RPI:        w.RPI / sum,
		CostBand:   w.CostBand / sum,
		Distance:   w.Distance / sum,
		SLAHistory: w.SLAHistory / sum,
	}, nil
}

// RPIWeights weighs the five RPI components.
type RPIWeights struct {
	DesignMatch   float64 `json:"design_match"`
	YieldAccuracy float64 `json:"yield_accuracy"`
	Timeliness    float64 `json:"timeliness"`
	Complaints    float64 `json:"complaints"`
	Maintenance   float64 `json:"maintenance"`
}

// DefaultRPIWeights is the documented default RPI weight set.
func DefaultRPIWeights() RPIWeights {
	return RPIWeights{DesignMatch: 0.25, YieldAccuracy: 0.25, Timeliness: 0.20, Complaints: 0.15, Maintenance: 0.15}
}

func (w RPIWeights) Sum() float64 {
	return w.DesignMatch + w.YieldAccuracy + w.Timeliness + w.Complaints + w.Maintenance
}

// Normalize returns a copy scaled to sum to 1.0.
func (w RPIWeights) Normalize() (RPIWeights, error) {
	sum, err := checkWeights("rpi", w.Sum(), w.DesignMatch, w.YieldAccuracy, w.Timeliness, w.Complaints, w.Maintenance)
	if err != nil {
		return RPIWeights{}, err
	}
	return RPIWeights{
		DesignMatch:   w.DesignMatch / sum,
		YieldAccuracy: w.YieldAccuracy / sum,
		Timeliness:    w.Timeliness / sum,
		Complaints:    w.Complaints / sum,
		Maintenance:   w.Maintenance / sum,
	}, nil
}

func checkWeights(kind string, sum float64, members ...float64) (float64, error) {
	for _, m := range members {
		if m < 0 {
			return 0, fmt.Errorf("%w: negative %s weight %v", ErrInvalidWeights, kind, m)
		}
	}
	if sum == 0 {
		return 0, fmt.Errorf("%w: %s weights sum to zero", ErrInvalidWeights, kind)
	}
	return sum, nil
}

// clamp100 bounds a sub-score to [0, 100].
func clamp100(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
