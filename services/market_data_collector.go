package services

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// optionGenericTicks requests impliedVol, option volume and open interest
// ticks alongside the default quote fields.
const optionGenericTicks = "106,100,101"

// CollectorConfig holds the wait-loop thresholds. Streaming collection runs
// until the hard cap, or once the minimum wait has passed and enough
// subscriptions carry model Greeks. Snapshot collection stops at its cap or
// once enough contracts have a usable bid.
type CollectorConfig struct {
	StreamingRecheck     time.Duration
	StreamingMaxWait     time.Duration
	StreamingMinWait     time.Duration
	StreamingGreeksRatio float64

	SnapshotRecheck    time.Duration
	SnapshotMaxWait    time.Duration
	SnapshotReadyRatio float64

	UnderlyingWait time.Duration
}

// DefaultCollectorConfig returns the production thresholds.
func DefaultCollectorConfig() CollectorConfig {
	return CollectorConfig{
		StreamingRecheck:     500 * time.Millisecond,
		StreamingMaxWait:     30 * time.Second,
		StreamingMinWait:     3 * time.Second,
		StreamingGreeksRatio: 0.5,

		SnapshotRecheck:    300 * time.Millisecond,
		SnapshotMaxWait:    3 * time.Second,
		SnapshotReadyRatio: 0.8,

		UnderlyingWait: time.Second,
	}
}

// ContractTicker pairs a qualified contract with its live ticker.
type ContractTicker struct {
	Spec   interfaces.ContractSpec
	Ticker *interfaces.Ticker
}

// MarketDataCollector qualifies contracts, subscribes them, and waits for
// enough data to arrive. Each Collect call owns its subscription set, so
// concurrent requests never share ticker state.
type MarketDataCollector struct {
	gateway interfaces.MarketDataGateway
	cfg     CollectorConfig
	logger  *logrus.Logger
}

// NewMarketDataCollector creates a new market data collector.
func NewMarketDataCollector(gateway interfaces.MarketDataGateway, cfg CollectorConfig) *MarketDataCollector {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &MarketDataCollector{
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
	}
}

// Collect qualifies the specs in one batch, subscribes the resolved
// contracts, and blocks until the mode's completeness threshold or hard cap
// is hit. Contracts that fail qualification are skipped, never fatal.
// Streaming subscriptions are always released before returning.
func (c *MarketDataCollector) Collect(ctx context.Context, specs []interfaces.ContractSpec, needGreeks bool) ([]ContractTicker, error) {
	qualified, err := c.gateway.QualifyOptions(ctx, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to qualify contracts: %w", err)
	}

	valid := make([]interfaces.ContractSpec, 0, len(qualified))
	for _, spec := range qualified {
		if spec.ConID != 0 {
			valid = append(valid, spec)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(specs),
		"qualified": len(valid),
		"skipped":   len(specs) - len(valid),
	}).Info("Contracts qualified")

	if len(valid) == 0 {
		return nil, nil
	}

	notify := make(chan struct{}, 1)
	opts := interfaces.SubscribeOptions{
		Snapshot: !needGreeks,
		Notify:   notify,
	}
	if needGreeks {
		opts.GenericTicks = optionGenericTicks
	}

	pairs := make([]ContractTicker, 0, len(valid))
	subs := make([]*interfaces.Subscription, 0, len(valid))
	for _, spec := range valid {
		sub, err := c.gateway.Subscribe(ctx, spec.ConID, opts)
		if err != nil {
			c.logger.WithError(err).WithField("conId", spec.ConID).Warn("Subscription failed, skipping contract")
			continue
		}
		subs = append(subs, sub)
		pairs = append(pairs, ContractTicker{Spec: spec, Ticker: sub.Ticker})
	}

	// Live feed slots leak without an explicit cancel; snapshot handles only
	// drop gateway-side tracking.
	defer func() {
		for _, sub := range subs {
			if err := c.gateway.Unsubscribe(sub); err != nil {
				c.logger.WithError(err).WithField("conId", sub.ConID).Warn("Failed to release subscription")
			}
		}
	}()

	if err := c.wait(ctx, pairs, needGreeks, notify); err != nil {
		return pairs, err
	}
	return pairs, nil
}

// wait blocks until the collection threshold for the mode is met. The loop
// wakes on tick arrival (notify), on a coarse recheck interval, and on the
// hard cap; thresholds are only evaluated on wakeups.
func (c *MarketDataCollector) wait(ctx context.Context, pairs []ContractTicker, needGreeks bool, notify <-chan struct{}) error {
	recheckEvery := c.cfg.SnapshotRecheck
	maxWait := c.cfg.SnapshotMaxWait
	if needGreeks {
		recheckEvery = c.cfg.StreamingRecheck
		maxWait = c.cfg.StreamingMaxWait
	}

	start := time.Now()
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	recheck := time.NewTicker(recheckEvery)
	defer recheck.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			c.logCompleteness(pairs, needGreeks, start, "hard cap")
			return nil
		case <-notify:
		case <-recheck.C:
		}

		if c.thresholdMet(pairs, needGreeks, time.Since(start)) {
			c.logCompleteness(pairs, needGreeks, start, "threshold")
			return nil
		}
	}
}

func (c *MarketDataCollector) thresholdMet(pairs []ContractTicker, needGreeks bool, elapsed time.Duration) bool {
	total := float64(len(pairs))
	if needGreeks {
		if elapsed < c.cfg.StreamingMinWait {
			return false
		}
		return float64(countGreeks(pairs)) >= total*c.cfg.StreamingGreeksRatio
	}
	return float64(countBidReady(pairs)) >= total*c.cfg.SnapshotReadyRatio
}

func (c *MarketDataCollector) logCompleteness(pairs []ContractTicker, needGreeks bool, start time.Time, reason string) {
	c.logger.WithFields(logrus.Fields{
		"elapsed":    time.Since(start).Round(100 * time.Millisecond).String(),
		"bidReady":   countBidReady(pairs),
		"greeks":     countGreeks(pairs),
		"total":      len(pairs),
		"reason":     reason,
		"greeksMode": needGreeks,
	}).Info("Data collection complete")
}

// CollectUnderlyingQuote takes a short bounded snapshot of the underlying,
// used to resolve the reference price.
func (c *MarketDataCollector) CollectUnderlyingQuote(ctx context.Context, contract *interfaces.StockContract) (interfaces.UnderlyingQuote, error) {
	quote := interfaces.UnderlyingQuote{Symbol: contract.Symbol}

	notify := make(chan struct{}, 1)
	sub, err := c.gateway.Subscribe(ctx, contract.ConID, interfaces.SubscribeOptions{
		Snapshot: true,
		Notify:   notify,
	})
	if err != nil {
		return quote, fmt.Errorf("failed to subscribe underlying: %w", err)
	}
	defer func() {
		if err := c.gateway.Unsubscribe(sub); err != nil {
			c.logger.WithError(err).Warn("Failed to release underlying subscription")
		}
	}()
	ticker := sub.Ticker

	deadline := time.NewTimer(c.cfg.UnderlyingWait)
	defer deadline.Stop()

wait:
	for {
		select {
		case <-ctx.Done():
			return quote, ctx.Err()
		case <-deadline.C:
			break wait
		case <-notify:
			if !math.IsNaN(ticker.Last()) || !math.IsNaN(ticker.Close()) {
				break wait
			}
		}
	}

	quote.Last = safeFloat(ticker.Last())
	quote.Close = safeFloat(ticker.Close())
	quote.Bid = safeFloat(ticker.Bid())
	quote.Ask = safeFloat(ticker.Ask())
	return quote, nil
}

func countBidReady(pairs []ContractTicker) int {
	n := 0
	for _, pair := range pairs {
		if pair.Ticker.HasBid() {
			n++
		}
	}
	return n
}

func countGreeks(pairs []ContractTicker) int {
	n := 0
	for _, pair := range pairs {
		if pair.Ticker.HasModelGreeks() {
			n++
		}
	}
	return n
}
