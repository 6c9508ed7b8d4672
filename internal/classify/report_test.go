package classify

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profitcalc/internal/core"
)

func TestMergeSumsAndInitialisesBaseBuckets(t *testing.T) {
	ledger := core.Aggregate{"2025-07": {core.BucketAmazon: 1000, core.BucketTotalSales: 1000}}
	shop := core.Aggregate{
		"2025-07": {core.BucketMercariShops: 500, core.BucketTotalSales: 500},
		"2025-08": {core.BucketMercariShops: 10, core.BucketTotalSales: 10},
	}
	expense := core.Aggregate{"2025-08": {"経費合計_A-M": 70}}

	merged := Merge(ledger, shop, expense)
	require.Len(t, merged, 2)
	assert.EqualValues(t, 1500, merged["2025-07"][core.BucketTotalSales])
	assert.EqualValues(t, 70, merged["2025-08"]["経費合計_A-M"])
	for _, b := range core.BaseBuckets() {
		assert.Contains(t, merged["2025-08"], b)
	}

	// inputs untouched and order independent
	assert.EqualValues(t, 1000, ledger["2025-07"][core.BucketTotalSales])
	assert.Equal(t, merged, Merge(expense, shop, ledger))
}

func TestMergeEmpty(t *testing.T) {
	assert.Empty(t, Merge())
	assert.Empty(t, Merge(core.Aggregate{}, nil))
}

func TestChangePercent(t *testing.T) {
	cases := []struct {
		prev, cur int64
		want      float64
	}{
		{0, 0, 0},
		{0, -5, 0},
		{0, 10, 100},
		{100, 150, 50},
		{200, 100, -50},
		{-100, 100, -200},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, ChangePercent(tc.prev, tc.cur), 1e-9, "prev=%d cur=%d", tc.prev, tc.cur)
	}
}

func TestProject(t *testing.T) {
	unified := Merge(core.Aggregate{
		"2025-08": {core.BucketTotalSales: 1500, core.BucketGrossProfit: 300, core.BucketAmazon2: 1500},
		"2025-07": {core.BucketTotalSales: 1000, core.BucketGrossProfit: 0, core.BucketAmazon: 1000},
		"2025-09": {core.BucketTotalSales: 0, core.BucketGrossProfit: 150, "広告費合計_O-AA": 40},
	})

	rows := Project(unified)
	require.Len(t, rows, 3)

	assert.Equal(t, "2025年7月", rows[0].Display)
	assert.Equal(t, core.Period("2025-07"), rows[0].Period)
	assert.EqualValues(t, 1000, rows[0].AmazonAM)
	assert.Zero(t, rows[0].SalesChange)
	assert.Zero(t, rows[0].ProfitChange)

	assert.EqualValues(t, 1500, rows[1].AmazonOAA)
	assert.InDelta(t, 50, rows[1].SalesChange, 1e-9)
	assert.InDelta(t, 100, rows[1].ProfitChange, 1e-9)

	assert.InDelta(t, -100, rows[2].SalesChange, 1e-9)
	assert.InDelta(t, -50, rows[2].ProfitChange, 1e-9)
	assert.Equal(t, map[string]int64{"広告費合計_O-AA": 40}, rows[2].Extra)
	assert.Nil(t, rows[0].Extra)
}

func TestProjectEmpty(t *testing.T) {
	assert.Empty(t, Project(core.Aggregate{}))
}

func TestSanitize(t *testing.T) {
	in := map[string]any{
		"a": math.NaN(),
		"b": []any{1.5, math.Inf(1), "x", map[string]any{"c": math.Inf(-1)}},
		"d": map[string]float64{"e": math.NaN(), "f": 2},
		"g": []float64{math.Inf(1), 3},
		"h": float32(math.NaN()),
		"i": int64(7),
	}
	out := Sanitize(in).(map[string]any)

	assert.Equal(t, 0.0, out["a"])
	b := out["b"].([]any)
	assert.Equal(t, 1.5, b[0])
	assert.Equal(t, 0.0, b[1])
	assert.Equal(t, "x", b[2])
	assert.Equal(t, 0.0, b[3].(map[string]any)["c"])
	assert.Equal(t, map[string]float64{"e": 0, "f": 2}, out["d"])
	assert.Equal(t, []float64{0, 3}, out["g"])
	assert.Equal(t, float32(0), out["h"])
	assert.Equal(t, int64(7), out["i"])

	// original is left alone
	assert.True(t, math.IsNaN(in["a"].(float64)))
}

func TestSanitizeReportRows(t *testing.T) {
	rows := []core.ReportRow{{SalesChange: math.Inf(1), ProfitChange: math.NaN()}}
	out := Sanitize(rows).([]core.ReportRow)
	assert.Zero(t, out[0].SalesChange)
	assert.Zero(t, out[0].ProfitChange)
}

func TestInspectNotes(t *testing.T) {
	records := table([]string{"日付", "手数料", "費用", "ID"},
		[]string{"2025/07/01", "-10", "30", "9999999"},
		[]string{"2025/07/02", "-20", "40", "1"},
	)
	neg := inspectNegative(records)
	require.Len(t, neg, 1)
	assert.Equal(t, "手数料", neg[0].Column)
	assert.Equal(t, []float64{-10, -20}, neg[0].Samples)

	spend := inspectSpend(records)
	require.Len(t, spend, 1)
	assert.Equal(t, "費用", spend[0].Column)
}

func TestMergeSingleAggregateKeepsValues(t *testing.T) {
	a := core.Aggregate{
		"2025-07": {core.BucketAmazon: 1000, core.BucketTotalSales: 1000, "経費合計_A-M": 70},
		"2025-08": {core.BucketMercariShops: -5, "広告費合計_O-AA": 40},
	}

	merged := Merge(a)
	require.Len(t, merged, len(a))
	base := map[string]bool{}
	for _, b := range core.BaseBuckets() {
		base[b] = true
	}
	for period, buckets := range a {
		got := merged[period]
		for k, v := range buckets {
			assert.Equal(t, v, got[k], "%s %s", period, k)
		}
		for k, v := range got {
			if _, ok := buckets[k]; ok {
				continue
			}
			assert.True(t, base[k], "unexpected bucket %s in %s", k, period)
			assert.Zero(t, v, "%s %s", period, k)
		}
	}
}

func TestMergeSaturatesInsteadOfWrapping(t *testing.T) {
	big := core.Aggregate{"2025-07": {core.BucketTotalSales: math.MaxInt64, core.BucketFeeAmazon: math.MinInt64}}
	more := core.Aggregate{"2025-07": {core.BucketTotalSales: 1, core.BucketFeeAmazon: -1}}

	merged := Merge(big, more)
	assert.EqualValues(t, int64(math.MaxInt64), merged["2025-07"][core.BucketTotalSales])
	assert.EqualValues(t, int64(math.MinInt64), merged["2025-07"][core.BucketFeeAmazon])
}
