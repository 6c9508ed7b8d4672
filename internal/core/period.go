package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Period is a canonical YYYY-MM aggregation key.
type Period string

// FallbackPeriod receives every row whose date cannot be resolved.
const FallbackPeriod Period = "2025-06"

const (
	minYear = 2020
	maxYear = 2030
)

var ErrInvalidPeriod = errors.New("invalid period")

// ParsePeriod is the strict form of ResolvePeriod.
//
// Strings containing "/" are read as YYYY/MM[/DD], MM/DD/YYYY or YY/MM
// depending on token lengths; strings containing "-" as YYYY-MM[-DD].
func ParsePeriod(raw string) (Period, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPeriod)
	}

	var yearTok, monthTok string
	switch {
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
		}
		switch {
		case len(parts[0]) == 4:
			yearTok, monthTok = parts[0], parts[1]
		case len(parts) == 3 && len(parts[2]) == 4:
			yearTok, monthTok = parts[2], parts[0]
		default:
			yearTok, monthTok = "20"+parts[0], parts[1]
		}
	case strings.Contains(s, "-"):
		parts := strings.Split(s, "-")
		if len(parts) < 2 {
			return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, raw)
		}
		yearTok, monthTok = parts[0], parts[1]
	default:
		return "", fmt.Errorf("%w: no separator in %q", ErrInvalidPeriod, raw)
	}

	year, err := strconv.Atoi(strings.TrimSpace(yearTok))
	if err != nil {
		return "", fmt.Errorf("%w: year %q", ErrInvalidPeriod, yearTok)
	}
	month, err := strconv.Atoi(strings.TrimSpace(monthTok))
	if err != nil {
		return "", fmt.Errorf("%w: month %q", ErrInvalidPeriod, monthTok)
	}
	return NewPeriod(year, month)
}

// ResolvePeriod never fails: anything ParsePeriod rejects maps to FallbackPeriod.
func ResolvePeriod(raw string) Period {
	p, err := ParsePeriod(raw)
	if err != nil {
		return FallbackPeriod
	}
	return p
}

// NewPeriod builds a period after range checking year and month.
func NewPeriod(year, month int) (Period, error) {
	if year < minYear || year > maxYear {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidPeriod, year)
	}
	if month < 1 || month > 12 {
		return "", fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}
	return Period(fmt.Sprintf("%04d-%02d", year, month)), nil
}

// Valid reports whether p is a well-formed, in-range key.
func (p Period) Valid() bool {
	if len(p) != 7 || p[4] != '-' {
		return false
	}
	y, err := strconv.Atoi(string(p[:4]))
	if err != nil {
		return false
	}
	m, err := strconv.Atoi(string(p[5:]))
	if err != nil {
		return false
	}
	_, err = NewPeriod(y, m)
	return err == nil
}

func (p Period) Year() int {
	y, _ := strconv.Atoi(string(p[:min(4, len(p))]))
	return y
}

func (p Period) Month() int {
	if len(p) < 7 {
		return 0
	}
	m, _ := strconv.Atoi(string(p[5:]))
	return m
}

// Next returns the following month. The result is not range checked.
func (p Period) Next() Period {
	y, m := p.Year(), p.Month()+1
	if m > 12 {
		y, m = y+1, 1
	}
	return Period(fmt.Sprintf("%04d-%02d", y, m))
}

// Display renders the period as shown in reports, e.g. "2025年7月".
// Malformed keys are returned unchanged.
func (p Period) Display() string {
	if len(p) != 7 || p[4] != '-' {
		return string(p)
	}
	m, err := strconv.Atoi(string(p[5:]))
	if err != nil {
		return string(p)
	}
	return fmt.Sprintf("%s年%d月", p[:4], m)
}

func (p Period) String() string { return string(p) }
