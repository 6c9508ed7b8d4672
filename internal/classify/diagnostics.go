package classify

import (
	"profitcalc/internal/core"
)

const (
	inspectRows    = 10
	inspectColumns = 10
	inspectSamples = 3
	// positive values at or above this are treated as ids, not spend
	spendCeiling = 1_000_000
)

// ColumnNote flags a column that looks relevant in the first rows of a file.
type ColumnNote struct {
	Column  string    `json:"column"`
	Reason  string    `json:"reason"`
	Samples []float64 `json:"samples"`
}

// inspectNegative lists columns holding negative values, the shape of
// fees and charges in transaction reports.
func inspectNegative(records []core.Record) []ColumnNote {
	return scanColumns(records, "negative", func(string) bool { return true }, func(v float64) bool {
		return v < 0
	})
}

// inspectSpend lists spend-like columns holding plausible positive amounts.
func inspectSpend(records []core.Record) []ColumnNote {
	named := Contains("支出", "Spend", "費用", "Cost", "広告")
	return scanColumns(records, "spend", named, func(v float64) bool {
		return v > 0 && v < spendCeiling
	})
}

func scanColumns(records []core.Record, reason string, name Matcher, keep func(float64) bool) []ColumnNote {
	var notes []ColumnNote
	index := map[string]int{}
	for r, rec := range records {
		if r >= inspectRows {
			break
		}
		for i := 0; i < rec.Len(); i++ {
			col, raw := rec.Field(i)
			col = core.CleanColumn(col)
			if !name(col) {
				continue
			}
			v := core.NormalizeAmount(raw)
			if !keep(v) {
				continue
			}
			n, seen := index[col]
			if !seen {
				if len(notes) >= inspectColumns {
					continue
				}
				notes = append(notes, ColumnNote{Column: col, Reason: reason})
				n = len(notes) - 1
				index[col] = n
			}
			if len(notes[n].Samples) < inspectSamples {
				notes[n].Samples = append(notes[n].Samples, v)
			}
		}
	}
	return notes
}
