package analytics

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PlaceStat aggregates the loans of one ward or village.
type PlaceStat struct {
	Place       string  `json:"place"`
	TotalLoans  int     `json:"total_loans"`
	ActiveLoans int     `json:"active_loans"`
	TotalAmount float64 `json:"total_amount"`

	sum decimal.Decimal
}

// PlaceDistribution groups complete rows by their trimmed place, largest
// total amount first.
func PlaceDistribution(t Table) []PlaceStat {
	acc := make(map[string]*PlaceStat)
	for _, r := range t.Records {
		place := strings.TrimSpace(r.Loan.Ward)
		if !r.Complete() || place == "" {
			continue
		}
		p, ok := acc[place]
		if !ok {
			p = &PlaceStat{Place: place}
			acc[place] = p
		}
		p.TotalLoans++
		p.sum = p.sum.Add(r.Amount)
		if r.Active() {
			p.ActiveLoans++
		}
	}
	out := make([]PlaceStat, 0, len(acc))
	for _, p := range acc {
		p.TotalAmount = round2(p.sum)
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b PlaceStat) int {
		if c := b.sum.Cmp(a.sum); c != 0 {
			return c
		}
		return strings.Compare(a.Place, b.Place)
	})
	return out
}

// AmountRange is a half-open [Min, Max) interval. A zero Max leaves the
// range unbounded above.
type AmountRange struct {
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max,omitempty"`
}

func (r AmountRange) contains(amount decimal.Decimal) bool {
	if amount.LessThan(decimal.NewFromFloat(r.Min)) {
		return false
	}
	return r.Max == 0 || amount.LessThan(decimal.NewFromFloat(r.Max))
}

// DefaultAmountRanges is the histogram used when the caller supplies none.
func DefaultAmountRanges() []AmountRange {
	return []AmountRange{
		{Label: "0-2K", Min: 0, Max: 2000},
		{Label: "2K-5K", Min: 2000, Max: 5000},
		{Label: "5K-10K", Min: 5000, Max: 10000},
		{Label: "10K-25K", Min: 10000, Max: 25000},
		{Label: "25K-50K", Min: 25000, Max: 50000},
		{Label: "50K-100K", Min: 50000, Max: 100000},
		{Label: "100K+", Min: 100000},
	}
}

// ParseAmountRanges reads boundaries such as "0,2000,5000" into consecutive
// ranges, the last one open-ended.
func ParseAmountRanges(s string) ([]AmountRange, error) {
	parts := strings.Split(s, ",")
	bounds := make([]float64, 0, len(parts))
	for _, p := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid range boundary %q: %w", p, err)
		}
		f := d.InexactFloat64()
		if len(bounds) > 0 && f <= bounds[len(bounds)-1] {
			return nil, fmt.Errorf("range boundaries must increase: %v after %v", f, bounds[len(bounds)-1])
		}
		bounds = append(bounds, f)
	}
	out := make([]AmountRange, 0, len(bounds))
	for i, lo := range bounds {
		r := AmountRange{Min: lo}
		if i+1 < len(bounds) {
			r.Max = bounds[i+1]
			r.Label = fmt.Sprintf("%s-%s", shortAmount(lo), shortAmount(r.Max))
		} else {
			r.Label = shortAmount(lo) + "+"
		}
		out = append(out, r)
	}
	return out, nil
}

func shortAmount(f float64) string {
	if f >= 1000 && int64(f)%1000 == 0 {
		return fmt.Sprintf("%dK", int64(f)/1000)
	}
	return decimal.NewFromFloat(f).String()
}

// RangeCount is one histogram bar.
type RangeCount struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// AmountHistogram places each complete row in the first range containing its
// amount. Ranges keep their order, including empty ones.
func AmountHistogram(t Table, ranges []AmountRange) []RangeCount {
	if len(ranges) == 0 {
		ranges = DefaultAmountRanges()
	}
	out := make([]RangeCount, len(ranges))
	for i, r := range ranges {
		out[i].Range = r.Label
	}
	for _, rec := range t.Records {
		if !rec.Complete() {
			continue
		}
		for i, r := range ranges {
			if r.contains(rec.Amount) {
				out[i].Count++
				break
			}
		}
	}
	return out
}

// Borrower aggregates all loans under one English name.
type Borrower struct {
	Name        string  `json:"name"`
	TotalLoans  int     `json:"total_loans"`
	TotalAmount float64 `json:"total_amount"`
	ActiveLoans int     `json:"active_loans"`

	sum decimal.Decimal
}

const defaultTopN = 10

// TopBorrowers ranks borrowers by total amount and keeps the first limit.
// A non-positive limit means ten.
func TopBorrowers(t Table, limit int) []Borrower {
	if limit <= 0 {
		limit = defaultTopN
	}
	acc := make(map[string]*Borrower)
	for _, r := range t.Records {
		name := strings.TrimSpace(r.Loan.NameEnglish)
		if !r.Complete() || name == "" {
			continue
		}
		b, ok := acc[name]
		if !ok {
			b = &Borrower{Name: name}
			acc[name] = b
		}
		b.TotalLoans++
		b.sum = b.sum.Add(r.Amount)
		if r.Active() {
			b.ActiveLoans++
		}
	}
	out := make([]Borrower, 0, len(acc))
	for _, b := range acc {
		b.TotalAmount = round2(b.sum)
		out = append(out, *b)
	}
	slices.SortFunc(out, func(a, b Borrower) int {
		if c := b.sum.Cmp(a.sum); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RecentLoan is a row of the recent activity list. Date is the raw sheet text.
type RecentLoan struct {
	Row    int     `json:"row"`
	Date   string  `json:"date"`
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
	Place  string  `json:"place"`

	parsed time.Time
}

// RecentOrder selects how the recent activity list is sorted.
type RecentOrder string

const (
	// OrderRawDateDesc sorts on the date text exactly as stored, newest
	// string first. DD/MM/YYYY dates therefore sort by day of month.
	OrderRawDateDesc RecentOrder = "raw"
	// OrderParsedDateDesc sorts chronologically, newest first.
	OrderParsedDateDesc RecentOrder = "parsed"
)

func ParseRecentOrder(s string) (RecentOrder, error) {
	switch o := RecentOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OrderRawDateDesc, nil
	case OrderRawDateDesc, OrderParsedDateDesc:
		return o, nil
	}
	return "", fmt.Errorf("unknown recent order %q", s)
}

func (o RecentOrder) compare(a, b RecentLoan) int {
	if o == OrderParsedDateDesc {
		return b.parsed.Compare(a.parsed)
	}
	return strings.Compare(b.Date, a.Date)
}

const defaultRecentDays = 30

// RecentActivity lists complete rows dated within the last days before now.
// A non-positive window means thirty days. Ties keep sheet order.
func RecentActivity(t Table, now time.Time, days int, order RecentOrder) []RecentLoan {
	if days <= 0 {
		days = defaultRecentDays
	}
	cutoff := now.Add(-time.Duration(days) * 24 * time.Hour)
	out := make([]RecentLoan, 0)
	for _, r := range t.Records {
		if !r.dated() || r.Date.Before(cutoff) {
			continue
		}
		out = append(out, RecentLoan{
			Row:    r.Row,
			Date:   r.Loan.Date,
			Name:   r.Loan.NameEnglish,
			Amount: round2(r.Amount),
			Place:  r.Loan.Ward,
			parsed: r.Date,
		})
	}
	slices.SortStableFunc(out, order.compare)
	return out
}
