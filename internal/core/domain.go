package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Source identifies one vendor export format.
type Source string

const (
	SourceLedger  Source = "makad"
	SourceShop    Source = "mercari"
	SourceRoute   Source = "hanro"
	SourceExpense Source = "expense"
	SourceAd      Source = "ad"
)

// Account selects which of the two seller accounts a file belongs to.
type Account string

const (
	AccountAM  Account = "a_m"
	AccountOAA Account = "o_aa"
)

// Base bucket names shared by the sales sources and the merged report.
const (
	BucketAmazon       = "Amazon"
	BucketAmazon2      = "Amazon2"
	BucketMercariShops = "メルカリShops"
	BucketFeeAmazon    = "プラットフォーム手数料_Amazon"
	BucketFeeAmazon2   = "プラットフォーム手数料_Amazon2"
	BucketFeeMercari   = "プラットフォーム手数料_メルカリ"
	BucketShipping     = "運送費（送料）"
	BucketGrossProfit  = "売上総利益"
	BucketTotalSales   = "売上高合計"
)

var (
	ErrUnknownSource  = errors.New("unknown source")
	ErrUnknownFileKey = errors.New("unknown file key")
)

// BaseBuckets returns the buckets every merged period starts with, in report order.
func BaseBuckets() []string {
	return []string{
		BucketAmazon,
		BucketAmazon2,
		BucketMercariShops,
		BucketFeeAmazon,
		BucketFeeAmazon2,
		BucketFeeMercari,
		BucketShipping,
		BucketGrossProfit,
		BucketTotalSales,
	}
}

func (s Source) Valid() bool {
	switch s {
	case SourceLedger, SourceShop, SourceRoute, SourceExpense, SourceAd:
		return true
	default:
		return false
	}
}

func (s Source) String() string { return string(s) }

// ParseAccount maps anything mentioning o_aa to the second account and
// everything else to the first one.
func ParseAccount(s string) Account {
	if strings.Contains(strings.ToLower(s), string(AccountOAA)) {
		return AccountOAA
	}
	return AccountAM
}

func (a Account) Valid() bool {
	return a == AccountAM || a == AccountOAA
}

// Suffix is the tag appended to per-account expense and ad buckets.
func (a Account) Suffix() string {
	if a == AccountOAA {
		return "O-AA"
	}
	return "A-M"
}

// AmazonBucket is the marketplace revenue bucket of the account.
func (a Account) AmazonBucket() string {
	if a == AccountOAA {
		return BucketAmazon2
	}
	return BucketAmazon
}

// AmazonFeeBucket is the marketplace platform-fee bucket of the account.
func (a Account) AmazonFeeBucket() string {
	if a == AccountOAA {
		return BucketFeeAmazon2
	}
	return BucketFeeAmazon
}

// Expense and ad bucket names for an account.
func (a Account) MarketplaceFeeBucket() string { return "Amazon手数料_" + a.Suffix() }
func (a Account) FulfillmentFeeBucket() string { return "FBA手数料_" + a.Suffix() }
func (a Account) ShippingFeeBucket() string    { return "配送料_" + a.Suffix() }
func (a Account) PointCostBucket() string      { return "ポイント費用_" + a.Suffix() }
func (a Account) OtherExpenseBucket() string   { return "その他経費_" + a.Suffix() }
func (a Account) ExpenseTotalBucket() string   { return "経費合計_" + a.Suffix() }
func (a Account) SponsoredAdBucket() string    { return "スポンサープロダクト広告_" + a.Suffix() }
func (a Account) AdTotalBucket() string        { return "広告費合計_" + a.Suffix() }

// FileKey is the upload field name of one CSV, e.g. "makad_a_m".
type FileKey string

const (
	FileKeyMakadAM    FileKey = "makad_a_m"
	FileKeyHanroAM    FileKey = "hanro_a_m"
	FileKeyExpenseAM  FileKey = "expense_a_m"
	FileKeyAdAM       FileKey = "ad_a_m"
	FileKeyMercari    FileKey = "mercari"
	FileKeyMakadOAA   FileKey = "makad_o_aa"
	FileKeyHanroOAA   FileKey = "hanro_o_aa"
	FileKeyExpenseOAA FileKey = "expense_o_aa"
	FileKeyAdOAA      FileKey = "ad_o_aa"
)

// UploadKeys lists every accepted upload field in processing order.
func UploadKeys() []FileKey {
	return []FileKey{
		FileKeyMakadAM, FileKeyHanroAM, FileKeyExpenseAM, FileKeyAdAM,
		FileKeyMercari,
		FileKeyMakadOAA, FileKeyHanroOAA, FileKeyExpenseOAA, FileKeyAdOAA,
	}
}

// ParseFileKey resolves an upload field to its source and account.
func ParseFileKey(key string) (Source, Account, error) {
	known := false
	for _, k := range UploadKeys() {
		if string(k) == key {
			known = true
			break
		}
	}
	if !known {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownFileKey, key)
	}
	account := ParseAccount(key)
	switch {
	case strings.HasPrefix(key, "makad"):
		return SourceLedger, account, nil
	case strings.HasPrefix(key, "mercari"):
		return SourceShop, account, nil
	case strings.HasPrefix(key, "hanro"):
		return SourceRoute, account, nil
	case strings.HasPrefix(key, "expense"):
		return SourceExpense, account, nil
	case strings.HasPrefix(key, "ad"):
		return SourceAd, account, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownSource, key)
}

// Record is one CSV row: column names in file order with their raw values.
// Records share the header slice of their table and must not be mutated.
type Record struct {
	columns []string
	values  []string
}

// NewRecord pairs columns with values. Missing values read as empty and
// surplus values are dropped.
func NewRecord(columns, values []string) Record {
	vals := make([]string, len(columns))
	copy(vals, values)
	return Record{columns: columns, values: vals}
}

// RecordFromPairs builds a record from alternating name, value arguments.
func RecordFromPairs(pairs ...string) Record {
	cols := make([]string, 0, len(pairs)/2)
	vals := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		cols = append(cols, pairs[i])
		vals = append(vals, pairs[i+1])
	}
	return Record{columns: cols, values: vals}
}

func (r Record) Len() int { return len(r.columns) }

// Field returns the i-th column name and value.
func (r Record) Field(i int) (string, string) {
	return r.columns[i], r.values[i]
}

func (r Record) Columns() []string {
	return append([]string(nil), r.columns...)
}

// Get looks a value up by column name, ignoring a leading byte-order mark.
func (r Record) Get(name string) (string, bool) {
	for i, c := range r.columns {
		if c == name || CleanColumn(c) == name {
			return r.values[i], true
		}
	}
	return "", false
}

// IsEmpty reports whether every value of the row is blank.
func (r Record) IsEmpty() bool {
	for _, v := range r.values {
		if v != "" {
			return false
		}
	}
	return true
}

// CleanColumn strips byte-order-mark artifacts and surrounding space from a column name.
func CleanColumn(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, "\ufeff", ""))
}

// PeriodAggregate maps bucket names to whole currency units.
type PeriodAggregate map[string]int64

// Aggregate maps a period to its buckets.
type Aggregate map[Period]PeriodAggregate

// Periods returns the aggregate's periods in ascending order.
func (a Aggregate) Periods() []Period {
	out := make([]Period, 0, len(a))
	for p := range a {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clone returns a deep copy.
func (a Aggregate) Clone() Aggregate {
	out := make(Aggregate, len(a))
	for p, buckets := range a {
		cp := make(PeriodAggregate, len(buckets))
		for k, v := range buckets {
			cp[k] = v
		}
		out[p] = cp
	}
	return out
}

// Get returns a bucket value, zero when the period or bucket is absent.
func (a Aggregate) Get(p Period, bucket string) int64 {
	return a[p][bucket]
}
