package services

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"tws-options/interfaces"
)

const (
	// assumedRiskFreeRate is the flat annual rate used for the inversion.
	assumedRiskFreeRate = 0.05

	// DefaultImpliedVol is the coarse IV assumption used when estimating a
	// strike band. It is a pre-filter input, not a pricing model.
	DefaultImpliedVol = 0.30

	// bandBuffer widens the estimated band by +-25% to absorb the gap
	// between DefaultImpliedVol and the true market IV.
	bandBuffer = 0.25
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// StrikeEstimator inverts the Black-Scholes delta relation to translate a
// target delta into a strike, and a delta range into a strike band.
type StrikeEstimator struct{}

// NewStrikeEstimator creates a new strike estimator.
func NewStrikeEstimator() *StrikeEstimator {
	return &StrikeEstimator{}
}

// StrikeFromDelta returns the strike implied by a target delta.
//
// Call delta = N(d1) and put delta = N(d1) - 1, so d1 is recovered with the
// standard normal quantile and the d1 relation is solved for K:
//
//	K = S * exp(-(d1*sigma*sqrt(T) - (r + sigma^2/2)*T))
//
// Callers pass the signed delta for puts (negative). The quantile argument
// must land strictly inside (0, 1); anything else is rejected up front.
func (e *StrikeEstimator) StrikeFromDelta(stockPrice, targetDelta float64, daysToExp int, iv float64, isCall bool) (float64, error) {
	if daysToExp < 1 {
		daysToExp = 1
	}

	p := targetDelta
	if !isCall {
		p = targetDelta + 1
	}
	if p <= 0 || p >= 1 || math.IsNaN(p) {
		return 0, fmt.Errorf("delta %v out of range for %s inversion", targetDelta, rightName(isCall))
	}

	T := float64(daysToExp) / 365.0
	d1 := stdNormal.Quantile(p)

	sqrtT := math.Sqrt(T)
	return stockPrice * math.Exp(-(d1*iv*sqrtT - (assumedRiskFreeRate+iv*iv/2)*T)), nil
}

// StrikeBandForDeltaRange estimates the strike band covering [minDelta,
// maxDelta] and widens it by the fixed buffer.
//
// Call delta falls as strike rises, so the band low comes from maxDelta and
// the high from minDelta. Put deltas are negated before inversion; put
// |delta| rises with strike, so low corresponds to minDelta and high to
// maxDelta.
func (e *StrikeEstimator) StrikeBandForDeltaRange(stockPrice, minDelta, maxDelta float64, daysToExp int, iv float64, isCall bool) (interfaces.StrikeBand, error) {
	var low, high float64
	var err error

	if isCall {
		if low, err = e.StrikeFromDelta(stockPrice, maxDelta, daysToExp, iv, true); err != nil {
			return interfaces.StrikeBand{}, err
		}
		if high, err = e.StrikeFromDelta(stockPrice, minDelta, daysToExp, iv, true); err != nil {
			return interfaces.StrikeBand{}, err
		}
	} else {
		if low, err = e.StrikeFromDelta(stockPrice, -maxDelta, daysToExp, iv, false); err != nil {
			return interfaces.StrikeBand{}, err
		}
		if high, err = e.StrikeFromDelta(stockPrice, -minDelta, daysToExp, iv, false); err != nil {
			return interfaces.StrikeBand{}, err
		}
	}

	low *= 1 - bandBuffer
	high *= 1 + bandBuffer

	// The raw put inversion can order the pair either way for extreme delta
	// ranges; the band contract is Low <= High.
	if low > high {
		low, high = high, low
	}

	return interfaces.StrikeBand{Low: low, High: high}, nil
}

func rightName(isCall bool) string {
	if isCall {
		return "call"
	}
	return "put"
}
