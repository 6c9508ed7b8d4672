package core

import "fmt"

// MonthInfo describes one selectable month.
type MonthInfo struct {
	Key     Period `json:"key"`
	Display string `json:"display"`
	Year    int    `json:"year"`
	Month   int    `json:"month"`
}

// MonthWindow is the inclusive range of months uploads can target.
type MonthWindow struct {
	start Period
	end   Period
}

// Default window bounds.
const (
	DefaultWindowStart Period = "2025-07"
	DefaultWindowEnd   Period = "2026-07"
)

// NewMonthWindow validates both bounds and their order.
func NewMonthWindow(start, end Period) (MonthWindow, error) {
	if !start.Valid() {
		return MonthWindow{}, fmt.Errorf("window start: %w: %q", ErrInvalidPeriod, start)
	}
	if !end.Valid() {
		return MonthWindow{}, fmt.Errorf("window end: %w: %q", ErrInvalidPeriod, end)
	}
	if end < start {
		return MonthWindow{}, fmt.Errorf("window end %s before start %s", end, start)
	}
	return MonthWindow{start: start, end: end}, nil
}

// DefaultMonthWindow returns the 2025-07..2026-07 window.
func DefaultMonthWindow() MonthWindow {
	return MonthWindow{start: DefaultWindowStart, end: DefaultWindowEnd}
}

func (w MonthWindow) Start() Period { return w.start }
func (w MonthWindow) End() Period   { return w.end }

// Months lists every month of the window in order.
func (w MonthWindow) Months() []MonthInfo {
	var out []MonthInfo
	for p := w.start; p <= w.end; p = p.Next() {
		out = append(out, MonthInfo{Key: p, Display: p.Display(), Year: p.Year(), Month: p.Month()})
	}
	return out
}

func (w MonthWindow) Contains(p Period) bool {
	return p.Valid() && p >= w.start && p <= w.end
}

// Lookup returns the month info for a key inside the window.
func (w MonthWindow) Lookup(key string) (MonthInfo, bool) {
	p := Period(key)
	if !w.Contains(p) {
		return MonthInfo{}, false
	}
	return MonthInfo{Key: p, Display: p.Display(), Year: p.Year(), Month: p.Month()}, true
}
