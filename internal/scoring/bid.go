package scoring

import (
	"fmt"
	"sort"

	"github.com/kumarmishraprashant8-bot/rainforge-sub002/internal/hydrology"
)

// WarrantyCapMonths is where the warranty sub-score saturates: ten years
// of warranty scores 100, anything longer earns no extra credit.
const WarrantyCapMonths = 120.0

// BidCandidate is one installer's bid for a job. Ownership is external;
// the scorer only reads it.
type BidCandidate struct {
	InstallerID    string  `json:"installer_id"`
	PriceINR       float64 `json:"price_inr"`
	TimelineDays   int     `json:"timeline_days"`
	WarrantyMonths int     `json:"warranty_months"`
	RPIScore       float64 `json:"rpi_score"`
}

// BidBreakdown holds the normalized 0-100 sub-scores before weighting.
type BidBreakdown struct {
	PriceScore    float64 `json:"price_score"`
	TimelineScore float64 `json:"timeline_score"`
	WarrantyScore float64 `json:"warranty_score"`
	RPIScore      float64 `json:"rpi_score"`
}

// BidScore is the weighted result for one candidate.
type BidScore struct {
	InstallerID string       `json:"installer_id"`
	Score       float64      `json:"score"`
	Breakdown   BidBreakdown `json:"breakdown"`
}

// RankedBid is one row of a ranking, 1-based.
type RankedBid struct {
	Rank      int          `json:"rank"`
	Candidate BidCandidate `json:"candidate"`
	Score     float64      `json:"score"`
	Breakdown BidBreakdown `json:"breakdown"`
}

func validateBidCandidate(c BidCandidate) error {
	if c.InstallerID == "" {
		return fmt.Errorf("%w: bid candidate missing installer id", hydrology.ErrInvalidInput)
	}
	if c.PriceINR <= 0 {
		return fmt.Errorf("%w: bid price for %s must be positive, got %.2f", hydrology.ErrInvalidInput, c.InstallerID, c.PriceINR)
	}
	if c.TimelineDays < 1 {
		return fmt.Errorf("%w: bid timeline for %s must be at least 1 day, got %d", hydrology.ErrInvalidInput, c.InstallerID, c.TimelineDays)
	}
	if c.WarrantyMonths < 0 {
		return fmt.Errorf("%w: bid warranty for %s must not be negative, got %d", hydrology.ErrInvalidInput, c.InstallerID, c.WarrantyMonths)
	}
	return nil
}

// ScoreBid scores one candidate against the reference set that supplies
// the price and timeline normalization context (the cheapest candidate in
// the set scores 100 on price, the fastest 100 on timeline). A nil or
// empty set scores the candidate against itself.
func ScoreBid(c BidCandidate, set []BidCandidate, w BidWeights) (*BidScore, error) {
	if err := validateBidCandidate(c); err != nil {
		return nil, err
	}
	nw, err := w.Normalize()
	if err != nil {
		return nil, err
	}

	minPrice, minDays := c.PriceINR, c.TimelineDays
	for _, other := range set {
		if err := validateBidCandidate(other); err != nil {
			return nil, err
		}
		if other.PriceINR < minPrice {
			minPrice = other.PriceINR
		}
		if other.TimelineDays < minDays {
			minDays = other.TimelineDays
		}
	}

	b := BidBreakdown{
		PriceScore:    100 * minPrice / c.PriceINR,
		TimelineScore: 100 * float64(minDays) / float64(c.TimelineDays),
		WarrantyScore: clamp100(float64(c.WarrantyMonths) / WarrantyCapMonths * 100),
		RPIScore:      clamp100(c.RPIScore),
	}
	score := nw.Price*b.PriceScore +
		nw.Timeline*b.TimelineScore +
		nw.Warranty*b.WarrantyScore +
		nw.RPI*b.RPIScore

	return &BidScore{InstallerID: c.InstallerID, Score: clamp100(score), Breakdown: b}, nil
}

// RankBids scores every candidate against the full set and orders them by
// descending score, breaking ties by lowest price and then lowest
// installer id. The ordering is a deterministic total order; the input
// slice is left untouched. An invalid candidate or weight set fails the
// whole call.
func RankBids(candidates []BidCandidate, w BidWeights) ([]RankedBid, error) {
	if _, err := w.Normalize(); err != nil {
		return nil, err
	}

	ranked := make([]RankedBid, 0, len(candidates))
	for _, c := range candidates {
		s, err := ScoreBid(c, candidates, w)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedBid{Candidate: c, Score: s.Score, Breakdown: s.Breakdown})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Candidate.PriceINR != ranked[j].Candidate.PriceINR {
			return ranked[i].Candidate.PriceINR < ranked[j].Candidate.PriceINR
		}
		return ranked[i].Candidate.InstallerID < ranked[j].Candidate.InstallerID
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked, nil
}
