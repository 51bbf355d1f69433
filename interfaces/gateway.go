package interfaces

import (
	"context"
	"errors"
	"math"
	"sync"
)

// Sentinel errors surfaced to the HTTP layer.
var (
	ErrNotConnected      = errors.New("not connected to market-data gateway")
	ErrSymbolNotFound    = errors.New("symbol not found")
	ErrInvalidDeltaRange = errors.New("delta range must satisfy 0 < min_delta <= max_delta <= 1")
	ErrInvalidExpiration = errors.New("expiration must be in YYYYMMDD format")
)

// NoData is the feed's "no data yet" sentinel for bid/ask/last/volume.
const NoData = -1.0

// SubscribeOptions controls one market-data subscription.
// GenericTicks follows the feed's tick-type list convention
// (106=impliedVol, 100=optionVolume, 101=optionOpenInterest).
type SubscribeOptions struct {
	GenericTicks string
	Snapshot     bool
	// Notify, when non-nil, receives a non-blocking nudge after every tick
	// applied to the returned Ticker.
	Notify chan<- struct{}
}

// MarketDataGateway is the brokerage session the chain engine talks to.
// One gateway instance owns one transport connection; each request keeps its
// own subscription set so concurrent requests never share ticker state.
type MarketDataGateway interface {
	Connect(ctx context.Context, host string, port int, clientID int) error
	Disconnect() error
	IsConnected() bool

	// QualifyStock resolves an underlying symbol to a tradable contract.
	QualifyStock(ctx context.Context, symbol string) (*StockContract, error)

	// QualifyOptions resolves option specs in one batch. Specs that cannot be
	// resolved come back with ConID zero; this is not an error.
	QualifyOptions(ctx context.Context, specs []ContractSpec) ([]ContractSpec, error)

	// OptionParameters returns the per-exchange expiration/strike universe.
	OptionParameters(ctx context.Context, symbol string, conID int64) ([]OptionChainParams, error)

	// Subscribe starts market data for a qualified contract and returns a
	// per-request subscription handle. Two subscribers to the same contract
	// hold distinct handles and tickers.
	Subscribe(ctx context.Context, conID int64, opts SubscribeOptions) (*Subscription, error)

	// Unsubscribe releases a handle. Streaming subscriptions are cancelled
	// on the feed side; snapshot handles only drop gateway-side tracking
	// (the feed self-terminates them).
	Unsubscribe(sub *Subscription) error
}

// Subscription is one live market-data subscription handle. Every Subscribe
// call gets its own handle and ticker, so concurrent requests touching the
// same contract never share state. Callers release handles with Unsubscribe
// when collection ends.
type Subscription struct {
	ID       int64
	ConID    int64
	Snapshot bool
	Ticker   *Ticker
}

// TickGreeks is the model-Greeks payload attached to a tick.
type TickGreeks struct {
	Delta      float64 `json:"delta"`
	Gamma      float64 `json:"gamma"`
	Theta      float64 `json:"theta"`
	Vega       float64 `json:"vega"`
	ImpliedVol float64 `json:"impliedVol"`
}

// TickUpdate carries the fields of one incoming tick. Nil fields are left
// untouched on the ticker.
type TickUpdate struct {
	Bid              *float64    `json:"bid,omitempty"`
	Ask              *float64    `json:"ask,omitempty"`
	Last             *float64    `json:"last,omitempty"`
	Close            *float64    `json:"close,omitempty"`
	Volume           *float64    `json:"volume,omitempty"`
	CallOpenInterest *float64    `json:"callOpenInterest,omitempty"`
	PutOpenInterest  *float64    `json:"putOpenInterest,omitempty"`
	Greeks           *TickGreeks `json:"greeks,omitempty"`
}

// Ticker is the mutable per-subscription market-data state. The gateway's
// reader goroutine writes through Apply; collectors read through the
// accessors after their wait loop exits, so readers never observe a torn
// update. Numeric fields start as NaN (nothing received yet).
type Ticker struct {
	mu     sync.RWMutex
	bid    float64
	ask    float64
	last   float64
	close  float64
	volume float64
	callOI float64
	putOI  float64
	greeks *TickGreeks
	notify chan<- struct{}
}

// NewTicker returns a ticker with all fields unset. notify may be nil.
func NewTicker(notify chan<- struct{}) *Ticker {
	nan := math.NaN()
	return &Ticker{
		bid:    nan,
		ask:    nan,
		last:   nan,
		close:  nan,
		volume: nan,
		callOI: nan,
		putOI:  nan,
		notify: notify,
	}
}

// Apply merges one tick into the ticker and nudges the subscriber.
func (t *Ticker) Apply(u TickUpdate) {
	t.mu.Lock()
	if u.Bid != nil {
		t.bid = *u.Bid
	}
	if u.Ask != nil {
		t.ask = *u.Ask
	}
	if u.Last != nil {
		t.last = *u.Last
	}
	if u.Close != nil {
		t.close = *u.Close
	}
	if u.Volume != nil {
		t.volume = *u.Volume
	}
	if u.CallOpenInterest != nil {
		t.callOI = *u.CallOpenInterest
	}
	if u.PutOpenInterest != nil {
		t.putOI = *u.PutOpenInterest
	}
	if u.Greeks != nil {
		g := *u.Greeks
		t.greeks = &g
	}
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		select {
		case notify <- struct{}{}:
		default:
		}
	}
}

func (t *Ticker) Bid() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.bid
}

func (t *Ticker) Ask() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ask
}

func (t *Ticker) Last() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func (t *Ticker) Close() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.close
}

func (t *Ticker) Volume() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.volume
}

// OpenInterest returns the side-specific open interest for the given right.
func (t *Ticker) OpenInterest(right Right) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if right == RightCall {
		return t.callOI
	}
	return t.putOI
}

// HasBid reports whether a usable bid has arrived: present and not the
// feed's no-data sentinel.
func (t *Ticker) HasBid() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !math.IsNaN(t.bid) && t.bid != NoData
}

// ModelGreeks returns a copy of the model-Greeks payload, or nil if the feed
// never delivered one.
func (t *Ticker) ModelGreeks() *TickGreeks {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.greeks == nil {
		return nil
	}
	g := *t.greeks
	return &g
}

// HasModelGreeks reports whether a model-Greeks payload has arrived.
func (t *Ticker) HasModelGreeks() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.greeks != nil
}
