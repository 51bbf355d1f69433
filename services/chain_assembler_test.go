package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tws-options/interfaces"
)

func pairFor(strike float64, right interfaces.Right, update *interfaces.TickUpdate) ContractTicker {
	ticker := interfaces.NewTicker(nil)
	if update != nil {
		ticker.Apply(*update)
	}
	return ContractTicker{
		Spec: interfaces.ContractSpec{
			Symbol:     "AAPL",
			Expiration: "20260918",
			Strike:     strike,
			Right:      right,
			ConID:      1,
		},
		Ticker: ticker,
	}
}

func TestAssembleSortsBothSidesByStrike(t *testing.T) {
	a := NewChainAssembler()

	pairs := []ContractTicker{
		pairFor(110, interfaces.RightCall, nil),
		pairFor(90, interfaces.RightCall, nil),
		pairFor(100, interfaces.RightCall, nil),
		pairFor(105, interfaces.RightPut, nil),
		pairFor(95, interfaces.RightPut, nil),
	}

	chain := a.Assemble("AAPL", "20260918", 100, pairs)

	require.Len(t, chain.Calls, 3)
	require.Len(t, chain.Puts, 2)
	assert.Equal(t, []float64{90, 100, 110}, []float64{chain.Calls[0].Strike, chain.Calls[1].Strike, chain.Calls[2].Strike})
	assert.Equal(t, []float64{95, 105}, []float64{chain.Puts[0].Strike, chain.Puts[1].Strike})
}

func TestAssembleITMClassification(t *testing.T) {
	a := NewChainAssembler()

	pairs := []ContractTicker{
		pairFor(95, interfaces.RightCall, nil),  // ref > strike: ITM
		pairFor(100, interfaces.RightCall, nil), // ref == strike: not ITM
		pairFor(105, interfaces.RightCall, nil),
		pairFor(95, interfaces.RightPut, nil),
		pairFor(100, interfaces.RightPut, nil), // ref == strike: not ITM
		pairFor(105, interfaces.RightPut, nil), // ref < strike: ITM
	}

	chain := a.Assemble("AAPL", "20260918", 100, pairs)

	assert.True(t, chain.Calls[0].ITM)
	assert.False(t, chain.Calls[1].ITM)
	assert.False(t, chain.Calls[2].ITM)
	assert.False(t, chain.Puts[0].ITM)
	assert.False(t, chain.Puts[1].ITM)
	assert.True(t, chain.Puts[2].ITM)
}

func TestAssembleNormalizesSentinels(t *testing.T) {
	a := NewChainAssembler()

	update := &interfaces.TickUpdate{
		Bid:              fptr(interfaces.NoData),
		Ask:              fptr(math.NaN()),
		Last:             fptr(math.Inf(1)),
		Volume:           fptr(interfaces.NoData),
		CallOpenInterest: fptr(1234),
		PutOpenInterest:  fptr(4321),
	}

	chain := a.Assemble("AAPL", "20260918", 100, []ContractTicker{
		pairFor(100, interfaces.RightCall, update),
	})

	record := chain.Calls[0]
	assert.Nil(t, record.Bid)
	assert.Nil(t, record.Ask)
	assert.Nil(t, record.Last)
	require.NotNil(t, record.Volume)
	assert.Equal(t, 0.0, *record.Volume)
	require.NotNil(t, record.OpenInterest)
	assert.Equal(t, 1234.0, *record.OpenInterest)
}

func TestAssembleOpenInterestFollowsRight(t *testing.T) {
	a := NewChainAssembler()

	update := &interfaces.TickUpdate{
		CallOpenInterest: fptr(10),
		PutOpenInterest:  fptr(20),
	}

	chain := a.Assemble("AAPL", "20260918", 100, []ContractTicker{
		pairFor(100, interfaces.RightCall, update),
		pairFor(100, interfaces.RightPut, update),
	})

	require.NotNil(t, chain.Calls[0].OpenInterest)
	assert.Equal(t, 10.0, *chain.Calls[0].OpenInterest)
	require.NotNil(t, chain.Puts[0].OpenInterest)
	assert.Equal(t, 20.0, *chain.Puts[0].OpenInterest)
}

func TestAssembleGreeksOnlyWhenDelivered(t *testing.T) {
	a := NewChainAssembler()

	withGreeks := &interfaces.TickUpdate{
		Bid: fptr(1.25),
		Greeks: &interfaces.TickGreeks{
			Delta:      0.45,
			Gamma:      0.03,
			Theta:      -0.02,
			Vega:       0.11,
			ImpliedVol: 0.32,
		},
	}

	chain := a.Assemble("AAPL", "20260918", 100, []ContractTicker{
		pairFor(100, interfaces.RightCall, withGreeks),
		pairFor(105, interfaces.RightCall, &interfaces.TickUpdate{Bid: fptr(0.80)}),
	})

	require.NotNil(t, chain.Calls[0].Greeks)
	assert.Equal(t, 0.45, *chain.Calls[0].Greeks.Delta)
	assert.Equal(t, 0.32, *chain.Calls[0].Greeks.IV)
	assert.Nil(t, chain.Calls[1].Greeks)
}

func TestAssembleNaNGreekFieldsBecomeNil(t *testing.T) {
	a := NewChainAssembler()

	update := &interfaces.TickUpdate{
		Greeks: &interfaces.TickGreeks{
			Delta:      0.5,
			Gamma:      math.NaN(),
			ImpliedVol: math.Inf(-1),
		},
	}

	chain := a.Assemble("AAPL", "20260918", 100, []ContractTicker{
		pairFor(100, interfaces.RightCall, update),
	})

	greeks := chain.Calls[0].Greeks
	require.NotNil(t, greeks)
	assert.Equal(t, 0.5, *greeks.Delta)
	assert.Nil(t, greeks.Gamma)
	assert.Nil(t, greeks.IV)
}

func TestEmptyChain(t *testing.T) {
	a := NewChainAssembler()

	chain := a.EmptyChain("XYZ", "20260918", 0)

	assert.Equal(t, "No strikes found", chain.Error)
	assert.NotNil(t, chain.Calls)
	assert.NotNil(t, chain.Puts)
	assert.Empty(t, chain.Calls)
	assert.Empty(t, chain.Puts)
}
