package google

import (
	"fmt"
	"strings"
)

// sheetTitle is the tab name a month is written to, e.g. "Profit 2025-07".
func sheetTitle(prefix, month string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return month
	}
	return prefix + " " + month
}

// quoteSheet quotes a tab title for A1 notation.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnLetter converts a 1-based column index to its A1 letters.
func columnLetter(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// gridRange returns the A1 range covering rows x cols from A1.
func gridRange(title string, rows, cols int) string {
	if rows < 1 || cols < 1 {
		return quoteSheet(title) + "!A1"
	}
	return fmt.Sprintf("%s!A1:%s%d", quoteSheet(title), columnLetter(cols), rows)
}

// toCells converts report values for the Sheets API. Floats keep at most
// two decimals so percentages stay readable with USER_ENTERED parsing.
func toCells(header []string, values [][]any) [][]interface{} {
	out := make([][]interface{}, 0, len(values)+1)
	h := make([]interface{}, len(header))
	for i, v := range header {
		h[i] = v
	}
	out = append(out, h)
	for _, row := range values {
		line := make([]interface{}, len(row))
		for i, v := range row {
			if f, ok := v.(float64); ok {
				line[i] = fmt.Sprintf("%.2f", f)
				continue
			}
			line[i] = v
		}
		out = append(out, line)
	}
	return out
}
