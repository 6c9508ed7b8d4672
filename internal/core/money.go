// Package core provides the domain model and the parsing primitives the
// classifiers build on.
//
// This file contains the monetary value normalizer. Vendor exports carry
// thousands separators, yen glyphs and placeholder tokens; all of them
// collapse to a plain float64.
package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var (
	ErrEmptyAmount   = errors.New("empty amount")
	ErrInvalidAmount = errors.New("invalid amount")
)

var amountNoise = strings.NewReplacer(",", "", "¥", "", "円", "", "￥", "")

var nullTokens = map[string]struct{}{
	"none": {},
	"null": {},
	"nan":  {},
	"-":    {},
	"":     {},
}

// ParseAmount is the strict form of NormalizeAmount.
//
// Blank input and placeholder tokens return ErrEmptyAmount; anything that
// is not a finite decimal after cleaning returns ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("¥1,234")  -> 1234, nil
//	ParseAmount("-")       -> 0, ErrEmptyAmount
//	ParseAmount("abc")     -> 0, ErrInvalidAmount
func ParseAmount(raw string) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, ErrEmptyAmount
	}
	cleaned := strings.TrimSpace(amountNoise.Replace(raw))
	if _, ok := nullTokens[strings.ToLower(cleaned)]; ok {
		return 0, ErrEmptyAmount
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// NormalizeAmount converts a raw cell into a number and never fails:
// every input ParseAmount rejects yields 0.
func NormalizeAmount(raw string) float64 {
	v, err := ParseAmount(raw)
	if err != nil {
		return 0
	}
	return v
}
