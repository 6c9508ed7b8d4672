package classify

import (
	"math"

	"profitcalc/internal/core"
)

// Project flattens a merged aggregate into report rows ordered by period,
// with month-over-month changes of sales and gross profit.
func Project(unified core.Aggregate) []core.ReportRow {
	periods := unified.Periods()
	rows := make([]core.ReportRow, 0, len(periods))
	base := map[string]bool{}
	for _, b := range core.BaseBuckets() {
		base[b] = true
	}

	for i, p := range periods {
		b := unified[p]
		row := core.ReportRow{
			Display:      p.Display(),
			Period:       p,
			AmazonAM:     b[core.BucketAmazon],
			AmazonOAA:    b[core.BucketAmazon2],
			MercariShops: b[core.BucketMercariShops],
			FeeAmazon:    b[core.BucketFeeAmazon],
			FeeAmazon2:   b[core.BucketFeeAmazon2],
			FeeMercari:   b[core.BucketFeeMercari],
			Shipping:     b[core.BucketShipping],
			GrossProfit:  b[core.BucketGrossProfit],
			TotalSales:   b[core.BucketTotalSales],
		}
		for k, v := range b {
			if base[k] {
				continue
			}
			if row.Extra == nil {
				row.Extra = map[string]int64{}
			}
			row.Extra[k] = v
		}
		if i > 0 {
			prev := rows[i-1]
			row.SalesChange = ChangePercent(prev.TotalSales, row.TotalSales)
			row.ProfitChange = ChangePercent(prev.GrossProfit, row.GrossProfit)
		}
		rows = append(rows, row)
	}
	return rows
}

// ChangePercent is the percentage change from prev to cur. Growth from
// zero reads as 100, no growth from zero as 0, and non-finite results as 0.
func ChangePercent(prev, cur int64) float64 {
	if prev == 0 {
		if cur > 0 {
			return 100
		}
		return 0
	}
	v := float64(cur-prev) / float64(prev) * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
