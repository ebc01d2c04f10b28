package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Granularity names a calendar period size.
type Granularity string

const (
	Monthly   Granularity = "monthly"
	Quarterly Granularity = "quarterly"
	Yearly    Granularity = "yearly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Monthly, Quarterly, Yearly:
		return g, nil
	}
	return "", fmt.Errorf("unknown granularity %q", s)
}

// Bucket accumulates the loans disbursed in one period. Key sorts
// chronologically ("2024-03", "2024-Q1", "2024"); Label is for display.
type Bucket struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`

	sum decimal.Decimal
}

// YearSummary extends a yearly bucket with its still-active share.
type YearSummary struct {
	Bucket
	ActiveLoans  int     `json:"active_loans"`
	ActiveAmount float64 `json:"active_amount"`
}

type periodKey struct {
	key, label string
}

func monthKey(t time.Time) periodKey {
	return periodKey{t.Format("2006-01"), t.Format("Jan 2006")}
}

func quarterKey(t time.Time) periodKey {
	q := (int(t.Month())-1)/3 + 1
	return periodKey{fmt.Sprintf("%04d-Q%d", t.Year(), q), fmt.Sprintf("Q%d %d", q, t.Year())}
}

func yearKey(t time.Time) periodKey {
	y := t.Format("2006")
	return periodKey{y, y}
}

func keyFunc(g Granularity) func(time.Time) periodKey {
	switch g {
	case Quarterly:
		return quarterKey
	case Yearly:
		return yearKey
	default:
		return monthKey
	}
}

// Trend buckets the dated rows of t by g, ascending by key.
func Trend(t Table, g Granularity) []Bucket {
	key := keyFunc(g)
	acc := make(map[string]*Bucket)
	for _, r := range t.Records {
		if !r.dated() {
			continue
		}
		k := key(r.Date)
		b, ok := acc[k.key]
		if !ok {
			b = &Bucket{Key: k.key, Label: k.label}
			acc[k.key] = b
		}
		b.Count++
		b.sum = b.sum.Add(r.Amount)
	}
	return sortedBuckets(acc)
}

func MonthlyTrend(t Table) []Bucket   { return Trend(t, Monthly) }
func QuarterlyTrend(t Table) []Bucket { return Trend(t, Quarterly) }

// YearlySummary is the yearly trend split into all vs still-active loans.
func YearlySummary(t Table) []YearSummary {
	acc := make(map[string]*YearSummary)
	active := make(map[string]decimal.Decimal)
	for _, r := range t.Records {
		if !r.dated() {
			continue
		}
		k := yearKey(r.Date)
		y, ok := acc[k.key]
		if !ok {
			y = &YearSummary{Bucket: Bucket{Key: k.key, Label: k.label}}
			acc[k.key] = y
		}
		y.Count++
		y.sum = y.sum.Add(r.Amount)
		if r.Active() {
			y.ActiveLoans++
			active[k.key] = active[k.key].Add(r.Amount)
		}
	}
	out := make([]YearSummary, 0, len(acc))
	for k, y := range acc {
		y.Amount = round2(y.sum)
		y.ActiveAmount = round2(active[k])
		out = append(out, *y)
	}
	slices.SortFunc(out, func(a, b YearSummary) int { return strings.Compare(a.Key, b.Key) })
	return out
}

func sortedBuckets(acc map[string]*Bucket) []Bucket {
	out := make([]Bucket, 0, len(acc))
	for _, b := range acc {
		b.Amount = round2(b.sum)
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Bucket) int { return strings.Compare(a.Key, b.Key) })
	return out
}
