package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// ChainService orchestrates one option-chain retrieval: qualify the
// underlying, resolve a reference price, select strikes, collect market
// data, and assemble the result. The gateway session is held explicitly and
// passed down each request path; there is no package-level connection.
type ChainService struct {
	gateway   interfaces.MarketDataGateway
	collector *MarketDataCollector
	selector  *StrikeSelector
	assembler *ChainAssembler
	activity  *ActivityLogger
	logger    *logrus.Logger
}

// NewChainService creates a new chain service. activity may be nil.
func NewChainService(
	gateway interfaces.MarketDataGateway,
	collector *MarketDataCollector,
	selector *StrikeSelector,
	assembler *ChainAssembler,
	activity *ActivityLogger,
) *ChainService {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ChainService{
		gateway:   gateway,
		collector: collector,
		selector:  selector,
		assembler: assembler,
		activity:  activity,
		logger:    logger,
	}
}

// GetOptionChain retrieves the normalized chain for one symbol/expiration.
func (s *ChainService) GetOptionChain(ctx context.Context, req interfaces.ChainRequest) (*interfaces.ChainResult, error) {
	if !s.gateway.IsConnected() {
		return nil, interfaces.ErrNotConnected
	}
	if req.DeltaFilterEnabled {
		if req.MinDelta <= 0 || req.MaxDelta > 1 || req.MinDelta > req.MaxDelta {
			return nil, interfaces.ErrInvalidDeltaRange
		}
	}

	days, err := daysToExpiration(req.Expiration)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()

	stock, err := s.gateway.QualifyStock(ctx, req.Symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSymbolNotFound, req.Symbol)
	}

	sortedStrikes, _, err := s.optionUniverse(ctx, req.Symbol, stock.ConID)
	if err != nil {
		return nil, err
	}

	underlying, err := s.collector.CollectUnderlyingQuote(ctx, stock)
	if err != nil {
		return nil, err
	}
	refPrice, priceSource := ResolveReferencePrice(underlying, sortedStrikes)

	s.logger.WithFields(logrus.Fields{
		"symbol":      req.Symbol,
		"refPrice":    refPrice,
		"priceSource": priceSource,
		"strikes":     len(sortedStrikes),
	}).Info("Chain request resolved underlying")

	if len(sortedStrikes) == 0 && len(req.Strikes) == 0 {
		chain := s.assembler.EmptyChain(req.Symbol, req.Expiration, refPrice)
		s.recordActivity(requestID, req, "empty-universe", 0, nil, start)
		return chain, nil
	}

	strikes, err := s.selector.SelectStrikes(sortedStrikes, refPrice, SelectionRequest{
		Strikes:            req.Strikes,
		NumStrikes:         req.NumStrikes,
		DeltaFilterEnabled: req.DeltaFilterEnabled,
		MinDelta:           req.MinDelta,
		MaxDelta:           req.MaxDelta,
		OptionType:         req.OptionType,
		DaysToExpiration:   days,
	})
	if err != nil {
		return nil, err
	}

	specs := buildContractSpecs(req.Symbol, req.Expiration, strikes)
	pairs, err := s.collector.Collect(ctx, specs, req.NeedGreeks)
	if err != nil {
		return nil, err
	}

	chain := s.assembler.Assemble(req.Symbol, req.Expiration, refPrice, pairs)
	s.recordActivity(requestID, req, selectionPolicy(req), len(strikes), pairs, start)
	return chain, nil
}

// GetExpirations returns the reference price plus the sorted expiration and
// strike universe for a symbol.
func (s *ChainService) GetExpirations(ctx context.Context, symbol string) (*interfaces.ExpirationsResult, error) {
	if !s.gateway.IsConnected() {
		return nil, interfaces.ErrNotConnected
	}

	stock, err := s.gateway.QualifyStock(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSymbolNotFound, symbol)
	}

	strikes, expirations, err := s.optionUniverse(ctx, symbol, stock.ConID)
	if err != nil {
		return nil, err
	}

	underlying, err := s.collector.CollectUnderlyingQuote(ctx, stock)
	if err != nil {
		return nil, err
	}
	refPrice, _ := ResolveReferencePrice(underlying, nil)

	return &interfaces.ExpirationsResult{
		Symbol:      symbol,
		StockPrice:  refPrice,
		Expirations: expirations,
		Strikes:     strikes,
	}, nil
}

// SearchContract resolves one tradable contract and a brief quote snapshot.
func (s *ChainService) SearchContract(ctx context.Context, symbol string) (*interfaces.SearchResult, error) {
	if !s.gateway.IsConnected() {
		return nil, interfaces.ErrNotConnected
	}

	stock, err := s.gateway.QualifyStock(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrSymbolNotFound, symbol)
	}

	quote, err := s.collector.CollectUnderlyingQuote(ctx, stock)
	if err != nil {
		return nil, err
	}

	return &interfaces.SearchResult{
		ConID:   stock.ConID,
		Symbol:  stock.Symbol,
		SecType: stock.SecType,
		Last:    quote.Last,
		Bid:     quote.Bid,
		Ask:     quote.Ask,
		Close:   quote.Close,
	}, nil
}

// optionUniverse merges the gateway's per-exchange option parameters into
// one sorted strike and expiration set. SMART is preferred; any exchange is
// accepted when SMART lists nothing.
func (s *ChainService) optionUniverse(ctx context.Context, symbol string, conID int64) ([]float64, []string, error) {
	params, err := s.gateway.OptionParameters(ctx, symbol, conID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch option parameters: %w", err)
	}

	strikes := make(map[float64]struct{})
	expirations := make(map[string]struct{})
	merge := func(smartOnly bool) {
		for _, p := range params {
			if smartOnly && p.Exchange != "SMART" {
				continue
			}
			for _, k := range p.Strikes {
				strikes[k] = struct{}{}
			}
			for _, e := range p.Expirations {
				expirations[e] = struct{}{}
			}
		}
	}

	merge(true)
	if len(expirations) == 0 && len(strikes) == 0 {
		merge(false)
	}

	sortedStrikes := make([]float64, 0, len(strikes))
	for k := range strikes {
		sortedStrikes = append(sortedStrikes, k)
	}
	sort.Float64s(sortedStrikes)

	sortedExpirations := make([]string, 0, len(expirations))
	for e := range expirations {
		sortedExpirations = append(sortedExpirations, e)
	}
	sort.Strings(sortedExpirations)

	return sortedStrikes, sortedExpirations, nil
}

func (s *ChainService) recordActivity(requestID string, req interfaces.ChainRequest, policy string, selected int, pairs []ContractTicker, start time.Time) {
	if s.activity == nil {
		return
	}
	s.activity.RecordChainRequest(ChainRequestActivity{
		RequestID:          requestID,
		Symbol:             req.Symbol,
		Expiration:         req.Expiration,
		Policy:             policy,
		NeedGreeks:         req.NeedGreeks,
		StrikesSelected:    selected,
		ContractsQualified: len(pairs),
		GreeksReceived:     countGreeks(pairs),
		Elapsed:            time.Since(start),
	})
}

// buildContractSpecs expands each strike into a call and a put spec.
func buildContractSpecs(symbol, expiration string, strikes []float64) []interfaces.ContractSpec {
	specs := make([]interfaces.ContractSpec, 0, 2*len(strikes))
	for _, strike := range strikes {
		for _, right := range []interfaces.Right{interfaces.RightCall, interfaces.RightPut} {
			specs = append(specs, interfaces.ContractSpec{
				Symbol:     symbol,
				Expiration: expiration,
				Strike:     strike,
				Right:      right,
			})
		}
	}
	return specs
}

// daysToExpiration parses a YYYYMMDD expiration and returns the calendar-day
// difference from today, clamped to at least one day (the estimator's T
// floor). Calendar dates, not elapsed hours: an expiration 30 dates away is
// 30 days all day long.
func daysToExpiration(expiration string) (int, error) {
	expDate, err := time.Parse("20060102", expiration)
	if err != nil {
		return 0, interfaces.ErrInvalidExpiration
	}
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := int(expDate.Sub(today).Hours() / 24)
	if days < 1 {
		days = 1
	}
	return days, nil
}

func selectionPolicy(req interfaces.ChainRequest) string {
	switch {
	case len(req.Strikes) > 0:
		return "explicit"
	case req.DeltaFilterEnabled:
		return "delta-filter"
	case req.NumStrikes == 0:
		return "all"
	default:
		return "atm-window"
	}
}
