package services

import (
	"math"

	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// fallbackHalfWidth is the ATM half-window used when a delta filter matches
// no strikes.
const fallbackHalfWidth = 15

// SelectionRequest captures the strike-selection inputs of one chain request.
type SelectionRequest struct {
	Strikes            []float64 // explicit list, bypasses all other policies
	NumStrikes         int       // 0 = all strikes
	DeltaFilterEnabled bool
	MinDelta           float64
	MaxDelta           float64
	OptionType         string // "all", "call", "put"
	DaysToExpiration   int
}

// StrikeSelector decides which strikes to query for a chain request. Policy
// order: explicit list, delta-filtered band (with a mandatory ATM fallback),
// all strikes, ATM window.
type StrikeSelector struct {
	estimator *StrikeEstimator
	logger    *logrus.Logger
}

// NewStrikeSelector creates a new strike selector.
func NewStrikeSelector(estimator *StrikeEstimator) *StrikeSelector {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &StrikeSelector{
		estimator: estimator,
		logger:    logger,
	}
}

// SelectStrikes returns the strikes to query. sortedStrikes must be sorted
// ascending. A non-empty universe with a delta filter never yields an empty
// result: the ATM fallback kicks in instead.
func (s *StrikeSelector) SelectStrikes(sortedStrikes []float64, refPrice float64, req SelectionRequest) ([]float64, error) {
	if len(req.Strikes) > 0 {
		return req.Strikes, nil
	}
	if len(sortedStrikes) == 0 {
		return nil, nil
	}

	if req.DeltaFilterEnabled {
		band, err := s.deltaBand(refPrice, req)
		if err != nil {
			return nil, err
		}

		selected := strikesWithin(sortedStrikes, band)
		s.logger.WithFields(logrus.Fields{
			"low":      band.Low,
			"high":     band.High,
			"selected": len(selected),
			"type":     req.OptionType,
		}).Debug("Delta filter band computed")

		if len(selected) > 0 {
			return selected, nil
		}

		// Band missed every listed strike; fall back to an ATM window so a
		// filtered request still returns data.
		s.logger.Debug("Delta filter matched no strikes, falling back to ATM window")
		return atmWindow(sortedStrikes, refPrice, fallbackHalfWidth), nil
	}

	if req.NumStrikes == 0 {
		return sortedStrikes, nil
	}

	return atmWindow(sortedStrikes, refPrice, req.NumStrikes/2), nil
}

// deltaBand computes the strike band for the requested option side; "all"
// takes the union of the call and put bands.
func (s *StrikeSelector) deltaBand(refPrice float64, req SelectionRequest) (interfaces.StrikeBand, error) {
	switch req.OptionType {
	case "call":
		return s.estimator.StrikeBandForDeltaRange(refPrice, req.MinDelta, req.MaxDelta, req.DaysToExpiration, DefaultImpliedVol, true)
	case "put":
		return s.estimator.StrikeBandForDeltaRange(refPrice, req.MinDelta, req.MaxDelta, req.DaysToExpiration, DefaultImpliedVol, false)
	default:
		callBand, err := s.estimator.StrikeBandForDeltaRange(refPrice, req.MinDelta, req.MaxDelta, req.DaysToExpiration, DefaultImpliedVol, true)
		if err != nil {
			return interfaces.StrikeBand{}, err
		}
		putBand, err := s.estimator.StrikeBandForDeltaRange(refPrice, req.MinDelta, req.MaxDelta, req.DaysToExpiration, DefaultImpliedVol, false)
		if err != nil {
			return interfaces.StrikeBand{}, err
		}
		return interfaces.StrikeBand{
			Low:  math.Min(callBand.Low, putBand.Low),
			High: math.Max(callBand.High, putBand.High),
		}, nil
	}
}

func strikesWithin(sortedStrikes []float64, band interfaces.StrikeBand) []float64 {
	var out []float64
	for _, strike := range sortedStrikes {
		if strike >= band.Low && strike <= band.High {
			out = append(out, strike)
		}
	}
	return out
}

// atmWindow takes half strikes on each side of the strike nearest the
// reference price, clamped to the universe bounds.
func atmWindow(sortedStrikes []float64, refPrice float64, half int) []float64 {
	atm := nearestStrikeIndex(sortedStrikes, refPrice)
	start := atm - half
	if start < 0 {
		start = 0
	}
	end := atm + half + 1
	if end > len(sortedStrikes) {
		end = len(sortedStrikes)
	}
	return sortedStrikes[start:end]
}

// nearestStrikeIndex returns the index of the strike closest to price, the
// lowest index winning ties.
func nearestStrikeIndex(sortedStrikes []float64, price float64) int {
	best := 0
	bestDiff := math.Abs(sortedStrikes[0] - price)
	for i, strike := range sortedStrikes[1:] {
		diff := math.Abs(strike - price)
		if diff < bestDiff {
			best = i + 1
			bestDiff = diff
		}
	}
	return best
}
