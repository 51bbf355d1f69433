package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tws-options/interfaces"
)

// stubChainService returns canned results for controller tests.
type stubChainService struct {
	chain       *interfaces.ChainResult
	expirations *interfaces.ExpirationsResult
	search      *interfaces.SearchResult
	err         error

	lastChainReq interfaces.ChainRequest
}

func (s *stubChainService) GetOptionChain(ctx context.Context, req interfaces.ChainRequest) (*interfaces.ChainResult, error) {
	s.lastChainReq = req
	return s.chain, s.err
}

func (s *stubChainService) GetExpirations(ctx context.Context, symbol string) (*interfaces.ExpirationsResult, error) {
	return s.expirations, s.err
}

func (s *stubChainService) SearchContract(ctx context.Context, symbol string) (*interfaces.SearchResult, error) {
	return s.search, s.err
}

func newTestRouter(svc interfaces.OptionChainService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cc := NewChainController(svc)

	router := gin.New()
	router.POST("/options/chain", cc.HandleGetChain)
	router.GET("/options/expirations/:symbol", cc.HandleGetExpirations)
	router.GET("/search/:symbol", cc.HandleSearch)
	return router
}

func postChain(t *testing.T, router *gin.Engine, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/options/chain", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHandleGetChainSuccess(t *testing.T) {
	svc := &stubChainService{
		chain: &interfaces.ChainResult{
			Symbol:     "AAPL",
			StockPrice: 100,
			Expiration: "20260918",
			Calls:      []interfaces.OptionRecord{},
			Puts:       []interfaces.OptionRecord{},
		},
	}
	router := newTestRouter(svc)

	w := postChain(t, router, map[string]interface{}{
		"symbol":     "AAPL",
		"expiration": "20260918",
	})

	assert.Equal(t, 200, w.Code)

	var chain interfaces.ChainResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chain))
	assert.Equal(t, "AAPL", chain.Symbol)

	// Empty option_type defaults to "all" before the service sees it.
	assert.Equal(t, "all", svc.lastChainReq.OptionType)
}

func TestHandleGetChainRejectsMissingFields(t *testing.T) {
	router := newTestRouter(&stubChainService{})

	w := postChain(t, router, map[string]interface{}{"symbol": "AAPL"})
	assert.Equal(t, 400, w.Code)
}

func TestHandleGetChainErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"not connected", interfaces.ErrNotConnected, 400},
		{"invalid delta", interfaces.ErrInvalidDeltaRange, 400},
		{"invalid expiration", interfaces.ErrInvalidExpiration, 400},
		{"symbol not found", interfaces.ErrSymbolNotFound, 404},
		{"other", assert.AnError, 500},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&stubChainService{err: tc.err})

			w := postChain(t, router, map[string]interface{}{
				"symbol":     "AAPL",
				"expiration": "20260918",
			})
			assert.Equal(t, tc.status, w.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHandleGetExpirations(t *testing.T) {
	svc := &stubChainService{
		expirations: &interfaces.ExpirationsResult{
			Symbol:      "AAPL",
			StockPrice:  187.3,
			Expirations: []string{"20260918", "20261218"},
			Strikes:     []float64{90, 100, 110},
		},
	}
	router := newTestRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/options/expirations/AAPL", nil))

	assert.Equal(t, 200, w.Code)

	var result interfaces.ExpirationsResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, []string{"20260918", "20261218"}, result.Expirations)
}

func TestHandleSearchNotFound(t *testing.T) {
	router := newTestRouter(&stubChainService{err: interfaces.ErrSymbolNotFound})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/search/NOPE", nil))

	assert.Equal(t, 404, w.Code)
}
