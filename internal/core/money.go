// Package core provides the loan record model and its text parsers.
//
// This file contains functions for parsing amounts, interest rates and dates
// as they appear in the ledger sheet.
package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var dateLayouts = []string{"2006-1-2", "2/1/2006"}

const (
	// maxNumberLen bounds the digits of a cell, which bounds both its
	// magnitude and its scale.
	maxNumberLen = 24

	// MaxAmount is the largest amount accepted from a cell.
	MaxAmount = 1_000_000_000_000_000
)

var maxAmount = decimal.NewFromInt(MaxAmount)

// ParseDate accepts YYYY-MM-DD and DD/MM/YYYY, in that order.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseAmount converts a ledger amount into a non-negative decimal.
//
// Thousands separators and whitespace are removed before parsing. Anything
// unparseable, exponent notation, any negative value and anything above
// MaxAmount yield zero.
//
// Examples:
//
//	ParseAmount("1,50,000") -> 150000
//	ParseAmount(" 2500.50 ") -> 2500.5
//	ParseAmount("abc") -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, ",", "")), "")
	if s == "" {
		return decimal.Zero
	}
	d, ok := parseNumber(s)
	if !ok {
		return decimal.Zero
	}
	return d
}

// ParseRate parses a monthly interest percentage such as "3", "2.5%" or
// "3 %". It reports false for empty, "NA", "Not mentioned", negative,
// oversized or unparseable input so the caller can substitute its default.
func ParseRate(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, "%", ""))
	switch strings.ToUpper(s) {
	case "", "NA", "N/A", strings.ToUpper(NotMentioned):
		return decimal.Zero, false
	}
	return parseNumber(strings.ReplaceAll(s, ",", ""))
}

// parseNumber accepts plain non-negative decimals no larger than MaxAmount.
func parseNumber(s string) (decimal.Decimal, bool) {
	if len(s) > maxNumberLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.GreaterThan(maxAmount) {
		return decimal.Zero, false
	}
	return d, true
}
