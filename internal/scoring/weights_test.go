package scoring

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultWeightSetsSumToOne(t *testing.T) {
	if s := DefaultBidWeights().Sum(); math.Abs(s-1.0) > weightEpsilon {
		t.Errorf("bid defaults sum to %v", s)
	}
	if s := DefaultAllocationWeights().Sum(); math.Abs(s-1.0) > weightEpsilon {
		t.Errorf("allocation defaults sum to %v", s)
	}
	if s := DefaultRPIWeights().Sum(); math.Abs(s-1.0) > weightEpsilon {
		t.Errorf("rpi defaults sum to %v", s)
	}
}

func TestNormalizeScalesToUnitSum(t *testing.T) {
	w := BidWeights{Price: 4, Timeline: 2, Warranty: 1, RPI: 3}
	nw, err := w.Normalize()
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if math.Abs(nw.Sum()-1.0) > weightEpsilon {
		t.Errorf("normalized sum %v", nw.Sum())
	}
	def := DefaultBidWeights()
	if math.Abs(nw.Price-def.Price) > 1e-12 || math.Abs(nw.RPI-def.RPI) > 1e-12 {
		t.Errorf("4:2:1:3 should normalize to the default ratios, got %+v", nw)
	}
}

func TestNormalizeRejectsZeroSum(t *testing.T) {
	if _, err := (BidWeights{}).Normalize(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("bid zero sum: expected ErrInvalidWeights, got %v", err)
	}
	if _, err := (AllocationWeights{}).Normalize(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("allocation zero sum: expected ErrInvalidWeights, got %v", err)
	}
	if _, err := (RPIWeights{}).Normalize(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("rpi zero sum: expected ErrInvalidWeights, got %v", err)
	}
}

func TestNormalizeRejectsNegativeMember(t *testing.T) {
	w := BidWeights{Price: 0.5, Timeline: -0.1, Warranty: 0.3, RPI: 0.3}
	if _, err := w.Normalize(); !errors.Is(err, ErrInvalidWeights) {
		t.Errorf("expected ErrInvalidWeights, got %v", err)
	}
}
