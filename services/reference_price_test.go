package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"tws-options/interfaces"
)

func fptr(v float64) *float64 { return &v }

func TestResolveReferencePricePriority(t *testing.T) {
	strikes := []float64{90, 95, 100, 105, 110}

	t.Run("last wins", func(t *testing.T) {
		price, source := ResolveReferencePrice(interfaces.UnderlyingQuote{
			Last:  fptr(101.5),
			Close: fptr(99),
			Bid:   fptr(101),
			Ask:   fptr(102),
		}, strikes)
		assert.Equal(t, 101.5, price)
		assert.Equal(t, "last", source)
	})

	t.Run("zero last falls through to close", func(t *testing.T) {
		price, source := ResolveReferencePrice(interfaces.UnderlyingQuote{
			Last:  fptr(0),
			Close: fptr(99),
		}, strikes)
		assert.Equal(t, 99.0, price)
		assert.Equal(t, "close", source)
	})

	t.Run("non-finite values are skipped", func(t *testing.T) {
		price, source := ResolveReferencePrice(interfaces.UnderlyingQuote{
			Last:  fptr(math.NaN()),
			Close: fptr(math.Inf(1)),
			Bid:   fptr(100.25),
		}, strikes)
		assert.Equal(t, 100.25, price)
		assert.Equal(t, "bid", source)
	})
}

func TestResolveReferencePriceMedianStrikeFallback(t *testing.T) {
	price, source := ResolveReferencePrice(interfaces.UnderlyingQuote{}, []float64{90, 95, 100, 105, 110})
	assert.Equal(t, 100.0, price)
	assert.Equal(t, "median-strike", source)
}

func TestResolveReferencePriceNoSources(t *testing.T) {
	price, source := ResolveReferencePrice(interfaces.UnderlyingQuote{}, nil)
	assert.Equal(t, 0.0, price)
	assert.Equal(t, "none", source)
}
