package classify

import (
	"math"
	"strings"

	"profitcalc/internal/core"
)

// Expense transaction categories, checked in order.
var (
	fulfillmentTerms = []string{"fba", "フルフィルメント", "在庫", "保管", "出荷"}
	commissionTerms  = []string{"成約", "リファーラル", "販売手数料", "commission"}
	shippingTerms    = []string{"配送", "shipping", "送料", "発送"}
	pointTerms       = []string{"ポイント", "point"}
)

// Expense row fields that describe the transaction.
const (
	expenseTypeColumn        = "トランザクションの種類"
	expenseDescriptionColumn = "商品の説明"
	expensePointMarker       = "ポイントの費用"
)

// Ad spend column vocabulary.
var (
	adSpendColumn     = Contains("支出", "Spend", "費用", "Cost", "広告費", "Ad").Except("日付", "Date", "率", "Rate", "%", "ID", "インプレッション", "クリック数", "売上")
	adConvertedColumn = Contains("換算", "Converted")
)

// Builtin returns the profiles of every supported source.
func Builtin() map[core.Source]Profile {
	return map[core.Source]Profile{
		core.SourceLedger:  LedgerProfile(),
		core.SourceShop:    ShopProfile(),
		core.SourceRoute:   RouteProfile(),
		core.SourceExpense: ExpenseProfile(),
		core.SourceAd:      AdProfile(),
	}
}

func salesDate() DateLocator {
	return DateLocator{Match: Contains("日").Or(ContainsFold("date"))}
}

// LedgerProfile classifies the makad sales ledger.
func LedgerProfile() Profile {
	total := Bucket(core.BucketTotalSales)
	return Profile{
		Source: core.SourceLedger,
		Date:   salesDate(),
		Buckets: func(a core.Account) []string {
			return []string{
				a.AmazonBucket(),
				core.BucketMercariShops,
				a.AmazonFeeBucket(),
				core.BucketFeeMercari,
				core.BucketShipping,
				core.BucketGrossProfit,
				core.BucketTotalSales,
			}
		},
		Rules: []ColumnRule{
			{Name: "price", Match: Contains("販売価格"), To: []Contribution{Add(AccountAmazon), Add(total)}},
			{Name: "shipping", Match: Contains("送料"), To: []Contribution{Add(AccountAmazon), Add(Bucket(core.BucketShipping)), Add(total)}},
			{Name: "discount", Match: Contains("ポイント", "割引"), To: []Contribution{Sub(AccountAmazon), Sub(total)}},
			{Name: "fee", Match: Contains("手数料").And(Contains("Amazon")), To: []Contribution{Add(AccountAmazonFee)}},
			{Name: "profit", Match: Contains("利益", "粗利"), To: []Contribution{Add(Bucket(core.BucketGrossProfit))}},
		},
	}
}

// ShopProfile classifies the mercari shop export. The account is ignored.
func ShopProfile() Profile {
	return Profile{
		Source:  core.SourceShop,
		Date:    salesDate(),
		Buckets: func(core.Account) []string { return core.BaseBuckets() },
		Rules: []ColumnRule{
			{Name: "sales", Match: Contains("売上").And(Contains("税込")), To: []Contribution{Add(Bucket(core.BucketMercariShops)), Add(Bucket(core.BucketTotalSales))}},
			{Name: "fee", Match: Contains("販売手数料").And(Contains("税込")), To: []Contribution{Add(Bucket(core.BucketFeeMercari))}},
			{Name: "profit", Match: Contains("販売利益", "利益"), To: []Contribution{Add(Bucket(core.BucketGrossProfit))}},
			{Name: "shipping", Match: Contains("送料"), To: []Contribution{Add(Bucket(core.BucketShipping))}},
		},
	}
}

// routeRevenue sends revenue to the shop bucket for mercari rows and to the
// account's marketplace bucket otherwise.
func routeRevenue(r Row) string {
	mall, _ := r.Record.Get("mall")
	if strings.ToLower(mall) == "mercari" {
		return core.BucketMercariShops
	}
	return r.Account.AmazonBucket()
}

// RouteProfile classifies the hanro sales-route export.
func RouteProfile() Profile {
	return Profile{
		Source:  core.SourceRoute,
		Date:    DateLocator{Match: Contains("At", "日")},
		Buckets: func(core.Account) []string { return core.BaseBuckets() },
		Rules: []ColumnRule{
			{Name: "revenue", Match: Contains("netPrice", "価格", "売上"), To: []Contribution{Add(routeRevenue), Add(Bucket(core.BucketTotalSales))}},
			{Name: "profit", Match: Contains("profit", "利益"), To: []Contribution{Add(Bucket(core.BucketGrossProfit))}},
			{Name: "shipping", Match: Contains("送料").Or(ContainsFold("shipping")), To: []Contribution{Add(Bucket(core.BucketShipping))}},
		},
	}
}

// ExpenseProfile classifies the marketplace transaction report.
func ExpenseProfile() Profile {
	return Profile{
		Source: core.SourceExpense,
		Date:   DateLocator{Match: Contains("日付", "時間", "date", "Date", "Time"), RequireValue: true},
		Buckets: func(a core.Account) []string {
			return []string{
				a.MarketplaceFeeBucket(),
				a.FulfillmentFeeBucket(),
				a.ShippingFeeBucket(),
				a.PointCostBucket(),
				a.OtherExpenseBucket(),
				a.ExpenseTotalBucket(),
			}
		},
		Hook:    expenseRow,
		Inspect: inspectNegative,
	}
}

// ExpenseCategory returns the bucket a negative amount in column is charged to.
func ExpenseCategory(a core.Account, column, txType, description string) string {
	combined := strings.ToLower(column + " " + txType + " " + description)
	switch {
	case containsAny(combined, fulfillmentTerms):
		return a.FulfillmentFeeBucket()
	case containsAny(combined, commissionTerms):
		return a.MarketplaceFeeBucket()
	case containsAny(combined, shippingTerms):
		return a.ShippingFeeBucket()
	case containsAny(combined, pointTerms):
		return a.PointCostBucket()
	default:
		return a.OtherExpenseBucket()
	}
}

func expenseRow(row Row, sums Sums) error {
	a := row.Account
	txType, _ := row.Record.Get(expenseTypeColumn)
	desc, _ := row.Record.Get(expenseDescriptionColumn)

	for i := 0; i < row.Record.Len(); i++ {
		name, raw := row.Record.Field(i)
		if raw == "" {
			continue
		}
		column := core.CleanColumn(name)
		v := core.NormalizeAmount(raw)

		if strings.Contains(column, expensePointMarker) {
			if v != 0 {
				sums.Add(a.PointCostBucket(), math.Abs(v))
				sums.Add(a.ExpenseTotalBucket(), math.Abs(v))
			}
			continue
		}
		if v >= 0 {
			continue
		}
		sums.Add(ExpenseCategory(a, column, txType, desc), -v)
		sums.Add(a.ExpenseTotalBucket(), -v)
	}
	return nil
}

// AdProfile classifies the sponsored-products advertising report.
func AdProfile() Profile {
	return Profile{
		Source: core.SourceAd,
		Date: DateLocator{
			Match:         Contains("日付", "開始", "終了", "date", "Date", "Start", "End"),
			RequireValue:  true,
			ShapeFallback: true,
		},
		Buckets: func(a core.Account) []string {
			return []string{a.SponsoredAdBucket(), a.AdTotalBucket()}
		},
		Hook:    adRow,
		Inspect: inspectSpend,
	}
}

// AdSpend returns the spend of one ad row: the first strictly positive
// value among spend columns, converted-currency columns first.
func AdSpend(rec core.Record) (float64, string, bool) {
	var converted, plain []int
	for i := 0; i < rec.Len(); i++ {
		name, _ := rec.Field(i)
		column := core.CleanColumn(name)
		if !adSpendColumn(column) {
			continue
		}
		if adConvertedColumn(column) {
			converted = append(converted, i)
		} else {
			plain = append(plain, i)
		}
	}
	if v, column, ok := firstPositive(rec, converted); ok {
		return v, column, true
	}
	return firstPositive(rec, plain)
}

func firstPositive(rec core.Record, idx []int) (float64, string, bool) {
	for _, i := range idx {
		name, raw := rec.Field(i)
		if raw == "" {
			continue
		}
		if v := core.NormalizeAmount(raw); v > 0 {
			return v, core.CleanColumn(name), true
		}
	}
	return 0, "", false
}

func adRow(row Row, sums Sums) error {
	v, _, ok := AdSpend(row.Record)
	if !ok {
		return nil
	}
	sums.Add(row.Account.SponsoredAdBucket(), v)
	sums.Add(row.Account.AdTotalBucket(), v)
	return nil
}
