package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestParseFileKey(t *testing.T) {
	cases := []struct {
		key     string
		source  Source
		account Account
	}{
		{"makad_a_m", SourceLedger, AccountAM},
		{"makad_o_aa", SourceLedger, AccountOAA},
		{"mercari", SourceShop, AccountAM},
		{"hanro_o_aa", SourceRoute, AccountOAA},
		{"expense_a_m", SourceExpense, AccountAM},
		{"ad_o_aa", SourceAd, AccountOAA},
	}
	for _, tc := range cases {
		src, acct, err := ParseFileKey(tc.key)
		if err != nil {
			t.Fatalf("%s unexpected error %v", tc.key, err)
		}
		if src != tc.source || acct != tc.account {
			t.Fatalf("%s expected %s/%s, got %s/%s", tc.key, tc.source, tc.account, src, acct)
		}
	}
	if _, _, err := ParseFileKey("makad_x"); !errors.Is(err, ErrUnknownFileKey) {
		t.Fatalf("expected ErrUnknownFileKey, got %v", err)
	}
}

func TestAccountBuckets(t *testing.T) {
	if AccountAM.AmazonBucket() != BucketAmazon || AccountOAA.AmazonBucket() != BucketAmazon2 {
		t.Fatalf("unexpected amazon buckets")
	}
	if AccountOAA.AmazonFeeBucket() != BucketFeeAmazon2 {
		t.Fatalf("unexpected fee bucket")
	}
	if got := AccountOAA.ExpenseTotalBucket(); got != "経費合計_O-AA" {
		t.Fatalf("unexpected expense total bucket %q", got)
	}
	if got := AccountAM.SponsoredAdBucket(); got != "スポンサープロダクト広告_A-M" {
		t.Fatalf("unexpected ad bucket %q", got)
	}
}

func TestRecordGetIgnoresBOM(t *testing.T) {
	r := NewRecord([]string{"\ufeff日付", "金額"}, []string{"2025/07/01"})
	v, ok := r.Get("日付")
	if !ok || v != "2025/07/01" {
		t.Fatalf("expected BOM-tolerant lookup, got %q %v", v, ok)
	}
	if v, _ := r.Get("金額"); v != "" {
		t.Fatalf("missing value should read empty, got %q", v)
	}
	if r.IsEmpty() {
		t.Fatalf("record is not empty")
	}
	if !RecordFromPairs("a", "", "b", "").IsEmpty() {
		t.Fatalf("expected empty record")
	}
}

func TestAggregatePeriodsSortedAndClone(t *testing.T) {
	agg := Aggregate{
		"2025-09": {BucketTotalSales: 1},
		"2025-07": {BucketTotalSales: 2},
	}
	ps := agg.Periods()
	if ps[0] != "2025-07" || ps[1] != "2025-09" {
		t.Fatalf("unexpected order %v", ps)
	}
	cp := agg.Clone()
	cp["2025-07"][BucketTotalSales] = 99
	if agg.Get("2025-07", BucketTotalSales) != 2 {
		t.Fatalf("clone must not alias")
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(Aggregate{
		"2025-07": {BucketTotalSales: 1000, BucketGrossProfit: 200},
		"2025-08": {BucketTotalSales: 1000, BucketGrossProfit: 300},
	})
	if s.TotalMonths != 2 || s.TotalSales != 2000 || s.TotalProfit != 500 {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.AverageProfitRate != 25 {
		t.Fatalf("expected 25%%, got %v", s.AverageProfitRate)
	}
	if Summarize(Aggregate{}).AverageProfitRate != 0 {
		t.Fatalf("empty aggregate must have zero rate")
	}
}

func TestReportRowJSONOrder(t *testing.T) {
	row := ReportRow{
		Display:     "2025年7月",
		Period:      "2025-07",
		AmazonAM:    1000,
		TotalSales:  1000,
		SalesChange: 12.5,
		Extra:       map[string]int64{"経費合計_A-M": 40, "広告費合計_A-M": 10},
	}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if !strings.HasPrefix(s, `{"年月":"2025年7月","期間":"2025-07","Amazon（A-M）":1000`) {
		t.Fatalf("unexpected prefix %s", s)
	}
	if strings.Index(s, "利益前月比") > strings.Index(s, "広告費合計_A-M") {
		t.Fatalf("extra buckets must follow fixed columns: %s", s)
	}

	var back ReportRow
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.AmazonAM != 1000 || back.SalesChange != 12.5 || back.Extra["経費合計_A-M"] != 40 {
		t.Fatalf("unexpected round trip %+v", back)
	}
}

func TestReportTableUnionsExtras(t *testing.T) {
	rows := []ReportRow{
		{Display: "2025年7月", Period: "2025-07", TotalSales: 100, Extra: map[string]int64{"広告費": 5}},
		{Display: "2025年8月", Period: "2025-08", TotalSales: 200, Extra: map[string]int64{"経費合計": 7}},
	}
	header, values := ReportTable(rows)

	fixed := len(ReportLabels())
	if len(header) != fixed+2 {
		t.Fatalf("header len = %d, want %d", len(header), fixed+2)
	}
	if header[fixed] != "広告費" || header[fixed+1] != "経費合計" {
		t.Errorf("extra headers = %v", header[fixed:])
	}
	if len(values) != 2 {
		t.Fatalf("values len = %d", len(values))
	}
	if values[0][0] != "2025年7月" || values[1][fixed+1] != int64(7) || values[0][fixed+1] != int64(0) {
		t.Errorf("values = %v", values)
	}
}
