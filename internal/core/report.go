package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Display labels of the report columns.
const (
	LabelYearMonth    = "年月"
	LabelPeriod       = "期間"
	LabelAmazonAM     = "Amazon（A-M）"
	LabelAmazonOAA    = "Amazon2（O-AA）"
	LabelSalesChange  = "売上前月比"
	LabelProfitChange = "利益前月比"
)

// ReportRow is one period of the unified aggregate flattened for display.
//
// Rows marshal to a JSON object whose keys are the display labels, in
// column order, followed by any source-specific buckets in Extra.
type ReportRow struct {
	Display      string
	Period       Period
	AmazonAM     int64
	AmazonOAA    int64
	MercariShops int64
	FeeAmazon    int64
	FeeAmazon2   int64
	FeeMercari   int64
	Shipping     int64
	GrossProfit  int64
	TotalSales   int64
	SalesChange  float64
	ProfitChange float64
	// Extra holds expense and ad buckets that have no fixed column.
	Extra map[string]int64
}

// Cell is one labelled value of a report row.
type Cell struct {
	Label string
	Value any
}

// ReportLabels returns the fixed column labels in order.
func ReportLabels() []string {
	return []string{
		LabelYearMonth, LabelPeriod,
		LabelAmazonAM, LabelAmazonOAA, BucketMercariShops,
		BucketFeeAmazon, BucketFeeAmazon2, BucketFeeMercari, BucketShipping,
		BucketGrossProfit, BucketTotalSales,
		LabelSalesChange, LabelProfitChange,
	}
}

// Cells returns the row's fixed columns followed by Extra sorted by name.
func (r ReportRow) Cells() []Cell {
	cells := []Cell{
		{LabelYearMonth, r.Display},
		{LabelPeriod, string(r.Period)},
		{LabelAmazonAM, r.AmazonAM},
		{LabelAmazonOAA, r.AmazonOAA},
		{BucketMercariShops, r.MercariShops},
		{BucketFeeAmazon, r.FeeAmazon},
		{BucketFeeAmazon2, r.FeeAmazon2},
		{BucketFeeMercari, r.FeeMercari},
		{BucketShipping, r.Shipping},
		{BucketGrossProfit, r.GrossProfit},
		{BucketTotalSales, r.TotalSales},
		{LabelSalesChange, r.SalesChange},
		{LabelProfitChange, r.ProfitChange},
	}
	for _, name := range r.ExtraNames() {
		cells = append(cells, Cell{name, r.Extra[name]})
	}
	return cells
}

// ExtraNames returns the Extra bucket names sorted.
func (r ReportRow) ExtraNames() []string {
	names := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (r ReportRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.Cells() {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(c.Value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", c.Label, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *ReportRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ints := map[string]*int64{
		LabelAmazonAM:      &r.AmazonAM,
		LabelAmazonOAA:     &r.AmazonOAA,
		BucketMercariShops: &r.MercariShops,
		BucketFeeAmazon:    &r.FeeAmazon,
		BucketFeeAmazon2:   &r.FeeAmazon2,
		BucketFeeMercari:   &r.FeeMercari,
		BucketShipping:     &r.Shipping,
		BucketGrossProfit:  &r.GrossProfit,
		BucketTotalSales:   &r.TotalSales,
	}
	for key, msg := range raw {
		var err error
		switch key {
		case LabelYearMonth:
			err = json.Unmarshal(msg, &r.Display)
		case LabelPeriod:
			err = json.Unmarshal(msg, &r.Period)
		case LabelSalesChange:
			err = json.Unmarshal(msg, &r.SalesChange)
		case LabelProfitChange:
			err = json.Unmarshal(msg, &r.ProfitChange)
		default:
			if dst, ok := ints[key]; ok {
				err = json.Unmarshal(msg, dst)
				break
			}
			var v int64
			if err = json.Unmarshal(msg, &v); err == nil {
				if r.Extra == nil {
					r.Extra = map[string]int64{}
				}
				r.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("report field %s: %w", key, err)
		}
	}
	return nil
}

// ReportTable lays rows out as a grid: the fixed labels followed by every
// Extra bucket seen in any row, sorted. Rows lacking a bucket get 0.
func ReportTable(rows []ReportRow) ([]string, [][]any) {
	extraSet := map[string]struct{}{}
	for _, r := range rows {
		for k := range r.Extra {
			extraSet[k] = struct{}{}
		}
	}
	extras := make([]string, 0, len(extraSet))
	for k := range extraSet {
		extras = append(extras, k)
	}
	sort.Strings(extras)

	fixed := ReportLabels()
	header := append(fixed, extras...)
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		line := make([]any, 0, len(header))
		for _, c := range r.Cells()[:len(fixed)] {
			line = append(line, c.Value)
		}
		for _, k := range extras {
			line = append(line, r.Extra[k])
		}
		values = append(values, line)
	}
	return header, values
}
