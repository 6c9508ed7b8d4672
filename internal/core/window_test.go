package core

import "testing"

func TestDefaultMonthWindow(t *testing.T) {
	w := DefaultMonthWindow()
	months := w.Months()
	if len(months) != 13 {
		t.Fatalf("expected 13 months, got %d", len(months))
	}
	if months[0].Key != "2025-07" || months[12].Key != "2026-07" {
		t.Fatalf("unexpected bounds %s..%s", months[0].Key, months[12].Key)
	}
	if months[6].Display != "2026年1月" || months[6].Year != 2026 || months[6].Month != 1 {
		t.Fatalf("unexpected month info %+v", months[6])
	}
}

func TestMonthWindowContains(t *testing.T) {
	w := DefaultMonthWindow()
	cases := map[Period]bool{
		"2025-06": false,
		"2025-07": true,
		"2026-07": true,
		"2026-08": false,
		"bogus":   false,
	}
	for p, want := range cases {
		if got := w.Contains(p); got != want {
			t.Fatalf("%s expected %v", p, want)
		}
	}
	if _, ok := w.Lookup("2025-10"); !ok {
		t.Fatalf("expected lookup hit")
	}
	if _, ok := w.Lookup("2024-10"); ok {
		t.Fatalf("expected lookup miss")
	}
}

func TestNewMonthWindow(t *testing.T) {
	if _, err := NewMonthWindow("2025-08", "2025-07"); err == nil {
		t.Fatalf("expected order error")
	}
	if _, err := NewMonthWindow("2025-13", "2026-01"); err == nil {
		t.Fatalf("expected invalid start error")
	}
	w, err := NewMonthWindow("2025-01", "2025-03")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(w.Months()) != 3 {
		t.Fatalf("expected 3 months")
	}
}
