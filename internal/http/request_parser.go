// Package http serves the loan ledger as a JSON API.
//
// This file implements utilities for parsing and validating request data:
// loan bodies in JSON or form encoding and the query parameters that tune
// the analytics views.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"kuberx/internal/analytics"
	"kuberx/internal/core"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

var errEmptyBody = errors.New("empty request body")

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON objects and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body once and stores it for parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.err = errEmptyBody
		return p.err
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = fmt.Errorf("invalid JSON body: %w", err)
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a trimmed string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
		return ""
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters, which have no place in a sheet cell.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// ParseLoan reads a loan from the body, keyed by the sheet header names.
// The status is never taken from the request.
func ParseLoan(p *RequestBodyParser) (core.Loan, error) {
	if err := p.Parse(); err != nil {
		return core.Loan{}, err
	}
	row := make([]string, core.NumColumns)
	for i, key := range core.Header {
		row[i] = p.Get(key)
	}
	row[core.ColStatus] = ""
	return core.LoanFromRow(row), nil
}

// ParseOptions maps query parameters onto analytics options. Missing
// parameters stay zero so the service defaults apply.
func ParseOptions(query url.Values) (analytics.Options, error) {
	var opts analytics.Options
	var err error

	if opts.RecentDays, err = positiveInt(query, "days"); err != nil {
		return opts, err
	}
	if opts.TopN, err = positiveInt(query, "top"); err != nil {
		return opts, err
	}
	if v, ok, err := nonNegativeFloat(query, "rate"); err != nil {
		return opts, err
	} else if ok {
		opts = opts.WithRate(v)
	}
	if v, ok, err := nonNegativeFloat(query, "threshold"); err != nil {
		return opts, err
	} else if ok {
		opts = opts.WithThreshold(v)
	}
	if v := strings.TrimSpace(query.Get("order")); v != "" {
		if opts.RecentOrder, err = analytics.ParseRecentOrder(v); err != nil {
			return opts, err
		}
	}
	if v := strings.TrimSpace(query.Get("ranges")); v != "" {
		if opts.AmountRanges, err = analytics.ParseAmountRanges(v); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func positiveInt(query url.Values, key string) (int, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	return n, nil
}

// nonNegativeFloat reports whether key was present; zero is a valid value.
func nonNegativeFloat(query url.Values, key string) (float64, bool, error) {
	v := strings.TrimSpace(query.Get(key))
	if v == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false, fmt.Errorf("invalid %s %q: must be a non-negative number", key, v)
	}
	return f, true, nil
}

// parseRow reads a sheet row number. Row 1 is the header.
func parseRow(s string) (int, error) {
	row, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || row < 2 {
		return 0, fmt.Errorf("invalid row %q", s)
	}
	return row, nil
}
