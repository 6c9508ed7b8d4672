package google

import (
	"testing"
)

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "A"},
		{13, "M"},
		{26, "Z"},
		{27, "AA"},
		{52, "AZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		if got := columnLetter(tt.n); got != tt.want {
			t.Errorf("columnLetter(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSheetTitleAndRange(t *testing.T) {
	if got := sheetTitle("Profit", "2025-07"); got != "Profit 2025-07" {
		t.Errorf("sheetTitle = %q", got)
	}
	if got := sheetTitle("  ", "2025-07"); got != "2025-07" {
		t.Errorf("sheetTitle empty prefix = %q", got)
	}
	if got := gridRange("Bob's 2025-07", 3, 13); got != "'Bob''s 2025-07'!A1:M3" {
		t.Errorf("gridRange = %q", got)
	}
	if got := gridRange("X", 0, 0); got != "'X'!A1" {
		t.Errorf("gridRange empty = %q", got)
	}
}

func TestToCells(t *testing.T) {
	cells := toCells([]string{"年月", "売上前月比"}, [][]any{{"2025年7月", 12.346}})
	if len(cells) != 2 {
		t.Fatalf("len = %d", len(cells))
	}
	if cells[0][0] != "年月" {
		t.Errorf("header = %v", cells[0])
	}
	if cells[1][1] != "12.35" {
		t.Errorf("float cell = %v", cells[1][1])
	}
}
