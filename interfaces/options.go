package interfaces

import "context"

// Right identifies the option side of a contract.
type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

// ContractSpec identifies a single option contract to qualify and query.
// ConID is zero until the gateway resolves the spec to a tradable contract.
type ContractSpec struct {
	Symbol     string  `json:"symbol"`
	Expiration string  `json:"expiration"` // YYYYMMDD
	Strike     float64 `json:"strike"`
	Right      Right   `json:"right"`
	ConID      int64   `json:"conId"`
}

// StockContract is a qualified underlying contract.
type StockContract struct {
	Symbol   string `json:"symbol"`
	ConID    int64  `json:"conId"`
	SecType  string `json:"secType"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
}

// OptionChainParams holds the per-exchange option universe for an underlying.
type OptionChainParams struct {
	Exchange    string    `json:"exchange"`
	Expirations []string  `json:"expirations"`
	Strikes     []float64 `json:"strikes"`
}

// UnderlyingQuote is a brief snapshot of the underlying used to resolve a
// reference price. Fields are nil when the feed returned no usable value.
type UnderlyingQuote struct {
	Symbol string
	Last   *float64
	Bid    *float64
	Ask    *float64
	Close  *float64
}

// StrikeBand is an inclusive strike interval used to pre-filter which strikes
// to query. Low <= High after buffering.
type StrikeBand struct {
	Low  float64
	High float64
}

// Quote holds normalized market data for one contract. Feed sentinels
// (-1, NaN, +-Inf) are converted to nil before the quote leaves the core.
type Quote struct {
	Bid          *float64 `json:"bid"`
	Ask          *float64 `json:"ask"`
	Last         *float64 `json:"last"`
	Volume       *float64 `json:"volume"`
	OpenInterest *float64 `json:"openInterest"`
}

// Greeks carries the model Greeks for one contract. The whole struct is nil
// on an OptionRecord when the feed never delivered a model payload.
type Greeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
	IV    *float64 `json:"iv"`
}

// OptionRecord is one assembled row of the chain. ITM is computed once at
// assembly time against the resolved reference price.
type OptionRecord struct {
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"`
	Quote
	Greeks *Greeks `json:"greeks"`
	Right  Right   `json:"right"`
	ITM    bool    `json:"itm"`
}

// ChainResult is the assembled chain for one symbol/expiration. Calls and
// Puts are sorted ascending by strike. Error is set (with empty slices) when
// the strike universe was empty.
type ChainResult struct {
	Symbol     string         `json:"symbol"`
	StockPrice float64        `json:"stockPrice"`
	Expiration string         `json:"expiration"`
	Calls      []OptionRecord `json:"calls"`
	Puts       []OptionRecord `json:"puts"`
	Error      string         `json:"error,omitempty"`
}

// ChainRequest is the request body for POST /options/chain.
type ChainRequest struct {
	Symbol             string    `json:"symbol" binding:"required"`
	Expiration         string    `json:"expiration" binding:"required"` // YYYYMMDD
	Strikes            []float64 `json:"strikes,omitempty"`
	NumStrikes         int       `json:"num_strikes"` // 0 = all strikes
	NeedGreeks         bool      `json:"need_greeks"`
	DeltaFilterEnabled bool      `json:"delta_filter_enabled"`
	MinDelta           float64   `json:"min_delta"`
	MaxDelta           float64   `json:"max_delta"`
	OptionType         string    `json:"option_type"` // "all", "call", "put"
}

// ExpirationsResult is the response for GET /options/expirations/:symbol.
type ExpirationsResult struct {
	Symbol      string    `json:"symbol"`
	StockPrice  float64   `json:"stockPrice"`
	Expirations []string  `json:"expirations"`
	Strikes     []float64 `json:"strikes"`
}

// SearchResult is the response for GET /search/:symbol.
type SearchResult struct {
	ConID   int64    `json:"conId"`
	Symbol  string   `json:"symbol"`
	SecType string   `json:"secType"`
	Last    *float64 `json:"last"`
	Bid     *float64 `json:"bid"`
	Ask     *float64 `json:"ask"`
	Close   *float64 `json:"close"`
}

// OptionChainService defines the chain retrieval operations consumed by the
// HTTP controllers.
type OptionChainService interface {
	GetOptionChain(ctx context.Context, req ChainRequest) (*ChainResult, error)
	GetExpirations(ctx context.Context, symbol string) (*ExpirationsResult, error)
	SearchContract(ctx context.Context, symbol string) (*SearchResult, error)
}
