package classify

import (
	"math"

	"profitcalc/internal/core"
)

// Merge sums per-source aggregates into one. Every period starts with the
// base buckets at zero; source-specific buckets are carried through.
// Inputs are not modified.
func Merge(aggs ...core.Aggregate) core.Aggregate {
	out := core.Aggregate{}
	for _, agg := range aggs {
		for period, buckets := range agg {
			merged, ok := out[period]
			if !ok {
				merged = make(core.PeriodAggregate, len(buckets)+9)
				for _, b := range core.BaseBuckets() {
					merged[b] = 0
				}
				out[period] = merged
			}
			for k, v := range buckets {
				merged[k] = addSaturating(merged[k], v)
			}
		}
	}
	return out
}

// addSaturating adds without wrapping past the int64 bounds.
func addSaturating(a, b int64) int64 {
	sum := a + b
	switch {
	case a > 0 && b > 0 && sum < 0:
		return math.MaxInt64
	case a < 0 && b < 0 && sum >= 0:
		return math.MinInt64
	}
	return sum
}
