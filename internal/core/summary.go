package core

// Summary condenses a unified aggregate into headline totals.
type Summary struct {
	TotalMonths       int      `json:"total_months"`
	MonthsProcessed   []Period `json:"months_processed"`
	TotalSales        int64    `json:"total_sales"`
	TotalProfit       int64    `json:"total_profit"`
	AverageProfitRate float64  `json:"average_profit_rate"`
}

// Summarize totals sales and gross profit over every period.
func Summarize(agg Aggregate) Summary {
	s := Summary{
		TotalMonths:     len(agg),
		MonthsProcessed: agg.Periods(),
	}
	for _, buckets := range agg {
		s.TotalSales += buckets[BucketTotalSales]
		s.TotalProfit += buckets[BucketGrossProfit]
	}
	if s.TotalSales > 0 {
		s.AverageProfitRate = float64(s.TotalProfit) / float64(s.TotalSales) * 100
	}
	return s
}
