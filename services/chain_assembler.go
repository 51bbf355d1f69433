package services

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// ChainAssembler turns collected tickers into the sorted, classified chain
// result. All feed sentinels are normalized here so magic numbers never
// reach serialization.
type ChainAssembler struct {
	logger *logrus.Logger
}

// NewChainAssembler creates a new chain assembler.
func NewChainAssembler() *ChainAssembler {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ChainAssembler{logger: logger}
}

// Assemble merges each contract's ticker state into an OptionRecord,
// classifies ITM against the reference price, partitions by right, and
// sorts both sides ascending by strike.
func (a *ChainAssembler) Assemble(symbol, expiration string, refPrice float64, pairs []ContractTicker) *interfaces.ChainResult {
	calls := make([]interfaces.OptionRecord, 0, len(pairs)/2)
	puts := make([]interfaces.OptionRecord, 0, len(pairs)/2)

	for _, pair := range pairs {
		record := a.buildRecord(refPrice, pair)
		if pair.Spec.Right == interfaces.RightCall {
			calls = append(calls, record)
		} else {
			puts = append(puts, record)
		}
	}

	sort.Slice(calls, func(i, j int) bool { return calls[i].Strike < calls[j].Strike })
	sort.Slice(puts, func(i, j int) bool { return puts[i].Strike < puts[j].Strike })

	a.logger.WithFields(logrus.Fields{
		"symbol": symbol,
		"calls":  len(calls),
		"puts":   len(puts),
	}).Debug("Chain assembled")

	return &interfaces.ChainResult{
		Symbol:     symbol,
		StockPrice: refPrice,
		Expiration: expiration,
		Calls:      calls,
		Puts:       puts,
	}
}

// EmptyChain returns the designated response for a symbol/expiration with no
// listed strikes.
func (a *ChainAssembler) EmptyChain(symbol, expiration string, refPrice float64) *interfaces.ChainResult {
	return &interfaces.ChainResult{
		Symbol:     symbol,
		StockPrice: refPrice,
		Expiration: expiration,
		Calls:      []interfaces.OptionRecord{},
		Puts:       []interfaces.OptionRecord{},
		Error:      "No strikes found",
	}
}

func (a *ChainAssembler) buildRecord(refPrice float64, pair ContractTicker) interfaces.OptionRecord {
	spec := pair.Spec
	ticker := pair.Ticker

	record := interfaces.OptionRecord{
		Strike:     spec.Strike,
		Expiration: spec.Expiration,
		Quote: interfaces.Quote{
			Bid:          sentinelFloat(ticker.Bid()),
			Ask:          sentinelFloat(ticker.Ask()),
			Last:         sentinelFloat(ticker.Last()),
			Volume:       volumeValue(ticker.Volume()),
			OpenInterest: safeFloat(ticker.OpenInterest(spec.Right)),
		},
		Right: spec.Right,
		ITM: (spec.Right == interfaces.RightCall && refPrice > spec.Strike) ||
			(spec.Right == interfaces.RightPut && refPrice < spec.Strike),
	}

	if g := ticker.ModelGreeks(); g != nil {
		record.Greeks = &interfaces.Greeks{
			Delta: safeFloat(g.Delta),
			Gamma: safeFloat(g.Gamma),
			Theta: safeFloat(g.Theta),
			Vega:  safeFloat(g.Vega),
			IV:    safeFloat(g.ImpliedVol),
		}
	}

	return record
}

// safeFloat maps NaN and +-Inf to nil so the value stays JSON-serializable.
func safeFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// sentinelFloat additionally treats the feed's -1 no-data marker as nil.
func sentinelFloat(v float64) *float64 {
	if v == interfaces.NoData {
		return nil
	}
	return safeFloat(v)
}

// volumeValue reports the no-data marker as an explicit zero volume.
func volumeValue(v float64) *float64 {
	if v == interfaces.NoData {
		zero := 0.0
		return &zero
	}
	return safeFloat(v)
}
