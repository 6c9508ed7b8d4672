package classify

import (
	"math"

	"profitcalc/internal/core"
)

// Sanitize returns v with every NaN or infinite float replaced by 0.
// Maps and slices are copied; other values pass through unchanged.
func Sanitize(v any) any {
	switch t := v.(type) {
	case float64:
		return finite(t)
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return float32(0)
		}
		return t
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = Sanitize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = Sanitize(e)
		}
		return out
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, e := range t {
			out[k] = finite(e)
		}
		return out
	case []float64:
		out := make([]float64, len(t))
		for i, e := range t {
			out[i] = finite(e)
		}
		return out
	case core.ReportRow:
		return SanitizeRow(t)
	case []core.ReportRow:
		out := make([]core.ReportRow, len(t))
		for i, r := range t {
			out[i] = SanitizeRow(r)
		}
		return out
	case core.Summary:
		t.AverageProfitRate = finite(t.AverageProfitRate)
		return t
	default:
		return v
	}
}

// SanitizeRow clears non-finite change fields of a report row.
func SanitizeRow(r core.ReportRow) core.ReportRow {
	r.SalesChange = finite(r.SalesChange)
	r.ProfitChange = finite(r.ProfitChange)
	return r
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
