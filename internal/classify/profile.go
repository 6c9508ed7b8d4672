package classify

import (
	"strings"

	"profitcalc/internal/core"
)

// DateLocator finds the value that dates a row.
type DateLocator struct {
	Match Matcher
	// RequireValue keeps scanning past matching columns whose value is empty.
	// Without it the first matching column decides, and an empty value skips the row.
	RequireValue bool
	// ShapeFallback accepts the first value that looks like a date and
	// resolves to a real period when no column matches.
	ShapeFallback bool
}

// Locate returns the raw date value of r, or false when the row has none.
func (d DateLocator) Locate(r core.Record) (string, bool) {
	for i := 0; i < r.Len(); i++ {
		name, value := r.Field(i)
		if !d.Match(core.CleanColumn(name)) {
			continue
		}
		if strings.TrimSpace(value) != "" {
			return value, true
		}
		if !d.RequireValue {
			return "", false
		}
	}
	if !d.ShapeFallback {
		return "", false
	}
	for i := 0; i < r.Len(); i++ {
		_, value := r.Field(i)
		if value == "" || !strings.ContainsAny(value, "/-") {
			continue
		}
		if core.ResolvePeriod(value) != core.FallbackPeriod {
			return value, true
		}
	}
	return "", false
}

// Row is what rules and hooks see of the row being classified.
type Row struct {
	Index   int
	Account core.Account
	Record  core.Record
}

// Target names the bucket a contribution lands in.
type Target func(Row) string

// Bucket targets a fixed bucket.
func Bucket(name string) Target {
	return func(Row) string { return name }
}

// AccountAmazon targets the marketplace revenue bucket of the row's account.
func AccountAmazon(r Row) string { return r.Account.AmazonBucket() }

// AccountAmazonFee targets the marketplace fee bucket of the row's account.
func AccountAmazonFee(r Row) string { return r.Account.AmazonFeeBucket() }

// Contribution adds Sign times the column value to Target.
type Contribution struct {
	Target Target
	Sign   float64
}

func Add(t Target) Contribution { return Contribution{Target: t, Sign: 1} }
func Sub(t Target) Contribution { return Contribution{Target: t, Sign: -1} }

// ColumnRule routes the value of every column it matches.
// Within a profile the first matching rule wins for each column.
type ColumnRule struct {
	Name  string
	Match Matcher
	To    []Contribution
}

// Sums accumulates raw values for one period.
type Sums map[string]float64

// Add accumulates v into bucket.
func (s Sums) Add(bucket string, v float64) { s[bucket] += v }

// RowHook classifies a whole row when routing depends on more than one column.
type RowHook func(row Row, sums Sums) error

// Profile describes how one source is classified.
type Profile struct {
	Source core.Source
	Date   DateLocator
	// Buckets lists every bucket a period of this source starts with.
	Buckets func(core.Account) []string
	Rules   []ColumnRule
	// Hook replaces Rules when set.
	Hook RowHook
	// Inspect runs once over the first rows for diagnostic logging.
	Inspect func(records []core.Record) []ColumnNote
}

// apply runs the profile's rules over a row.
func (p Profile) apply(row Row, sums Sums) error {
	if p.Hook != nil {
		return p.Hook(row, sums)
	}
	for i := 0; i < row.Record.Len(); i++ {
		name, raw := row.Record.Field(i)
		column := core.CleanColumn(name)
		for _, rule := range p.Rules {
			if !rule.Match(column) {
				continue
			}
			v := core.NormalizeAmount(raw)
			for _, c := range rule.To {
				sums.Add(c.Target(row), c.Sign*v)
			}
			break
		}
	}
	return nil
}
