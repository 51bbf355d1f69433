package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// disconnectTimeout bounds fire-and-forget control calls (disconnect,
// unsubscribe) that run outside a request context.
const disconnectTimeout = 5 * time.Second

// TWSGateway implements interfaces.MarketDataGateway over a websocket to the
// TWS bridge. Requests are correlated JSON frames; tick data arrives as push
// frames keyed by contract id and is fanned out to every subscription of
// that contract by the reader goroutine. One gateway holds one transport
// connection; each subscription handle owns its own ticker, so concurrent
// requests touching the same contract never share state.
type TWSGateway struct {
	url    string
	logger *logrus.Logger

	mu        sync.Mutex // guards conn, connected, dialing, nextID, nextSubID, pending, subs
	writeMu   sync.Mutex // gorilla allows a single concurrent writer
	conn      *websocket.Conn
	connected bool
	dialing   bool
	nextID    int64
	nextSubID int64
	pending   map[int64]chan wireFrame
	subs      map[int64]map[int64]*interfaces.Ticker // conID -> subID -> ticker
}

type wireRequest struct {
	ID      int64       `json:"id"`
	Op      string      `json:"op"`
	Payload interface{} `json:"payload,omitempty"`
}

type wireFrame struct {
	Type  string                 `json:"type,omitempty"` // "tick" for pushes
	ID    int64                  `json:"id,omitempty"`
	OK    bool                   `json:"ok,omitempty"`
	Error string                 `json:"error,omitempty"`
	Data  json.RawMessage        `json:"data,omitempty"`
	ConID int64                  `json:"conId,omitempty"`
	Tick  *interfaces.TickUpdate `json:"tick,omitempty"`
}

// NewTWSGateway creates a gateway client for the given bridge websocket URL.
func NewTWSGateway(url string) *TWSGateway {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &TWSGateway{
		url:     url,
		logger:  logger,
		pending: make(map[int64]chan wireFrame),
		subs:    make(map[int64]map[int64]*interfaces.Ticker),
	}
}

// Connect dials the bridge and opens a TWS session on it. Only one dial runs
// at a time; a second Connect while one is in flight is rejected instead of
// leaking a connection.
func (g *TWSGateway) Connect(ctx context.Context, host string, port int, clientID int) error {
	g.mu.Lock()
	if g.connected {
		g.mu.Unlock()
		return nil
	}
	if g.dialing {
		g.mu.Unlock()
		return fmt.Errorf("connection attempt already in progress")
	}
	g.dialing = true
	g.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, g.url, nil)

	g.mu.Lock()
	g.dialing = false
	if err != nil {
		g.mu.Unlock()
		return fmt.Errorf("failed to dial gateway bridge: %w", err)
	}
	g.conn = conn
	g.connected = true
	g.mu.Unlock()

	go g.readLoop(conn)

	payload := struct {
		Host     string `json:"host"`
		Port     int    `json:"port"`
		ClientID int    `json:"clientId"`
	}{host, port, clientID}

	if err := g.call(ctx, "connect", payload, nil); err != nil {
		g.teardown(err)
		return fmt.Errorf("failed to open TWS session: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"host":     host,
		"port":     port,
		"clientId": clientID,
	}).Info("Connected to TWS")
	return nil
}

// Disconnect closes the TWS session and the bridge connection.
func (g *TWSGateway) Disconnect() error {
	g.mu.Lock()
	if !g.connected {
		g.mu.Unlock()
		return nil
	}
	g.mu.Unlock()

	// Best effort: the transport is going away regardless.
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	if err := g.call(ctx, "disconnect", nil, nil); err != nil {
		g.logger.WithError(err).Warn("Disconnect request failed")
	}

	g.teardown(interfaces.ErrNotConnected)
	g.logger.Info("Disconnected from TWS")
	return nil
}

// IsConnected reports whether a session is open.
func (g *TWSGateway) IsConnected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.connected
}

// QualifyStock resolves an underlying symbol to a tradable contract.
func (g *TWSGateway) QualifyStock(ctx context.Context, symbol string) (*interfaces.StockContract, error) {
	payload := struct {
		Symbol string `json:"symbol"`
	}{symbol}

	var contract interfaces.StockContract
	if err := g.call(ctx, "qualifyStock", payload, &contract); err != nil {
		return nil, err
	}
	if contract.ConID == 0 {
		return nil, interfaces.ErrSymbolNotFound
	}
	return &contract, nil
}

// QualifyOptions resolves option specs in one batch; unresolved specs come
// back with ConID zero.
func (g *TWSGateway) QualifyOptions(ctx context.Context, specs []interfaces.ContractSpec) ([]interfaces.ContractSpec, error) {
	payload := struct {
		Contracts []interfaces.ContractSpec `json:"contracts"`
	}{specs}

	var qualified []interfaces.ContractSpec
	if err := g.call(ctx, "qualifyOptions", payload, &qualified); err != nil {
		return nil, err
	}
	return qualified, nil
}

// OptionParameters returns the per-exchange expiration/strike universe.
func (g *TWSGateway) OptionParameters(ctx context.Context, symbol string, conID int64) ([]interfaces.OptionChainParams, error) {
	payload := struct {
		Symbol string `json:"symbol"`
		ConID  int64  `json:"conId"`
	}{symbol, conID}

	var params []interfaces.OptionChainParams
	if err := g.call(ctx, "optionParams", payload, &params); err != nil {
		return nil, err
	}
	return params, nil
}

// Subscribe starts market data for a contract and returns a per-request
// subscription handle with its own ticker.
func (g *TWSGateway) Subscribe(ctx context.Context, conID int64, opts interfaces.SubscribeOptions) (*interfaces.Subscription, error) {
	ticker := interfaces.NewTicker(opts.Notify)

	g.mu.Lock()
	g.nextSubID++
	sub := &interfaces.Subscription{
		ID:       g.nextSubID,
		ConID:    conID,
		Snapshot: opts.Snapshot,
		Ticker:   ticker,
	}
	if g.subs[conID] == nil {
		g.subs[conID] = make(map[int64]*interfaces.Ticker)
	}
	g.subs[conID][sub.ID] = ticker
	g.mu.Unlock()

	payload := struct {
		SubID        int64  `json:"subId"`
		ConID        int64  `json:"conId"`
		GenericTicks string `json:"genericTicks,omitempty"`
		Snapshot     bool   `json:"snapshot"`
	}{sub.ID, conID, opts.GenericTicks, opts.Snapshot}

	if err := g.call(ctx, "subscribe", payload, nil); err != nil {
		g.dropSub(sub)
		return nil, err
	}
	return sub, nil
}

// Unsubscribe releases a subscription handle. Streaming subscriptions are
// cancelled on the feed side; snapshot handles only drop local tracking, so
// snapshot-heavy workloads cannot grow the subscription table.
func (g *TWSGateway) Unsubscribe(sub *interfaces.Subscription) error {
	g.dropSub(sub)
	if sub.Snapshot {
		return nil
	}

	payload := struct {
		SubID int64 `json:"subId"`
		ConID int64 `json:"conId"`
	}{sub.ID, sub.ConID}

	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return g.call(ctx, "unsubscribe", payload, nil)
}

func (g *TWSGateway) dropSub(sub *interfaces.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if byID := g.subs[sub.ConID]; byID != nil {
		delete(byID, sub.ID)
		if len(byID) == 0 {
			delete(g.subs, sub.ConID)
		}
	}
}

// call sends one correlated request and decodes the response data into out.
func (g *TWSGateway) call(ctx context.Context, op string, payload interface{}, out interface{}) error {
	g.mu.Lock()
	if g.conn == nil {
		g.mu.Unlock()
		return interfaces.ErrNotConnected
	}
	conn := g.conn
	g.nextID++
	id := g.nextID
	ch := make(chan wireFrame, 1)
	g.pending[id] = ch
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		delete(g.pending, id)
		g.mu.Unlock()
	}()

	g.writeMu.Lock()
	err := conn.WriteJSON(wireRequest{ID: id, Op: op, Payload: payload})
	g.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("gateway write failed: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case frame := <-ch:
		if !frame.OK {
			return fmt.Errorf("gateway %s failed: %s", op, frame.Error)
		}
		if out != nil && len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, out); err != nil {
				return fmt.Errorf("gateway %s returned malformed data: %w", op, err)
			}
		}
		return nil
	}
}

// readLoop dispatches incoming frames: ticks fan out to every ticker
// subscribed to the contract, responses go to their waiting callers. It runs
// until the connection dies.
func (g *TWSGateway) readLoop(conn *websocket.Conn) {
	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			g.teardown(err)
			return
		}

		if frame.Type == "tick" {
			g.mu.Lock()
			tickers := make([]*interfaces.Ticker, 0, len(g.subs[frame.ConID]))
			for _, ticker := range g.subs[frame.ConID] {
				tickers = append(tickers, ticker)
			}
			g.mu.Unlock()
			if frame.Tick != nil {
				for _, ticker := range tickers {
					ticker.Apply(*frame.Tick)
				}
			}
			continue
		}

		g.mu.Lock()
		ch := g.pending[frame.ID]
		g.mu.Unlock()
		if ch != nil {
			// Buffered, one response per id; dropped if teardown already
			// failed the call.
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

// teardown drops the connection and fails every in-flight call. Pending
// channels are never closed, only written to, so a response racing in from
// readLoop cannot panic the process.
func (g *TWSGateway) teardown(cause error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn != nil {
		g.conn.Close()
		g.conn = nil
	}
	if g.connected {
		g.logger.WithError(cause).Warn("Gateway connection closed")
	}
	g.connected = false

	for id, ch := range g.pending {
		select {
		case ch <- wireFrame{Error: "connection closed"}:
		default:
		}
		delete(g.pending, id)
	}
	g.subs = make(map[int64]map[int64]*interfaces.Ticker)
}
