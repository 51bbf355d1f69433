package services

import (
	"math"

	"tws-options/interfaces"
)

// priceStep is one named step of the reference-price resolution chain. Steps
// are tried in order; a step wins when it yields a finite non-zero value.
type priceStep struct {
	name  string
	value *float64
}

// ResolveReferencePrice derives the single reference price for a request
// from the underlying snapshot, walking last -> close -> bid -> ask, then
// falling back to the median listed strike, then zero. The winning step's
// name is returned for logging.
func ResolveReferencePrice(q interfaces.UnderlyingQuote, sortedStrikes []float64) (float64, string) {
	steps := []priceStep{
		{"last", q.Last},
		{"close", q.Close},
		{"bid", q.Bid},
		{"ask", q.Ask},
	}

	for _, step := range steps {
		if step.value == nil {
			continue
		}
		v := *step.value
		if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		return v, step.name
	}

	if len(sortedStrikes) > 0 {
		return sortedStrikes[len(sortedStrikes)/2], "median-strike"
	}

	return 0, "none"
}
