package services

import (
	"context"
	"sync"

	"tws-options/interfaces"
)

// fakeGateway is an in-memory MarketDataGateway for collector and service
// tests. Ticks configured via stockTick/optionTick are applied as soon as
// the contract is subscribed.
type fakeGateway struct {
	mu           sync.Mutex
	connected    bool
	stock        *interfaces.StockContract
	params       []interfaces.OptionChainParams
	qualifyFail  func(spec interfaces.ContractSpec) bool
	stockTick    *interfaces.TickUpdate
	optionTick   func(spec interfaces.ContractSpec) *interfaces.TickUpdate
	nextConID    int64
	nextSubID    int64
	specsByConID map[int64]interfaces.ContractSpec
	subscribed   []int64 // conIDs, in subscribe order
	unsubscribed []int64 // conIDs whose streaming feed was cancelled
	released     []int64 // sub IDs released, snapshot handles included
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		connected:    true,
		stock:        &interfaces.StockContract{Symbol: "AAPL", ConID: 1, SecType: "STK", Exchange: "SMART", Currency: "USD"},
		nextConID:    100,
		specsByConID: make(map[int64]interfaces.ContractSpec),
	}
}

func (g *fakeGateway) Connect(ctx context.Context, host string, port int, clientID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = true
	return nil
}

func (g *fakeGateway) Disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.connected = false
	return nil
}

func (g *fakeGateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

func (g *fakeGateway) QualifyStock(ctx context.Context, symbol string) (*interfaces.StockContract, error) {
	if g.stock == nil {
		return nil, interfaces.ErrSymbolNotFound
	}
	return g.stock, nil
}

func (g *fakeGateway) QualifyOptions(ctx context.Context, specs []interfaces.ContractSpec) ([]interfaces.ContractSpec, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]interfaces.ContractSpec, len(specs))
	for i, spec := range specs {
		if g.qualifyFail != nil && g.qualifyFail(spec) {
			out[i] = spec // ConID stays zero
			continue
		}
		g.nextConID++
		spec.ConID = g.nextConID
		g.specsByConID[spec.ConID] = spec
		out[i] = spec
	}
	return out, nil
}

func (g *fakeGateway) OptionParameters(ctx context.Context, symbol string, conID int64) ([]interfaces.OptionChainParams, error) {
	return g.params, nil
}

func (g *fakeGateway) Subscribe(ctx context.Context, conID int64, opts interfaces.SubscribeOptions) (*interfaces.Subscription, error) {
	ticker := interfaces.NewTicker(opts.Notify)

	g.mu.Lock()
	g.nextSubID++
	sub := &interfaces.Subscription{
		ID:       g.nextSubID,
		ConID:    conID,
		Snapshot: opts.Snapshot,
		Ticker:   ticker,
	}
	g.subscribed = append(g.subscribed, conID)
	spec, isOption := g.specsByConID[conID]
	stockTick := g.stockTick
	optionTick := g.optionTick
	g.mu.Unlock()

	if isOption {
		if optionTick != nil {
			if update := optionTick(spec); update != nil {
				ticker.Apply(*update)
			}
		}
	} else if stockTick != nil {
		ticker.Apply(*stockTick)
	}
	return sub, nil
}

func (g *fakeGateway) Unsubscribe(sub *interfaces.Subscription) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = append(g.released, sub.ID)
	if !sub.Snapshot {
		g.unsubscribed = append(g.unsubscribed, sub.ConID)
	}
	return nil
}
