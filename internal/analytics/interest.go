package analytics

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"kuberx/internal/core"
)

var (
	thirty = decimal.NewFromInt(30)
	two    = decimal.NewFromInt(2)
)

// Accrual is the simple interest owed on a loan at a given date.
type Accrual struct {
	MonthsElapsed   decimal.Decimal
	InterestAccrued decimal.Decimal
	TotalDue        decimal.Decimal
	IsDoubled       bool
}

// Accrue computes simple interest at a monthly percentage rate.
//
// Elapsed time is whole calendar months between start and asOf plus the
// leftover day difference divided by 30 when that difference is positive.
// Loans dated after asOf accrue nothing.
func Accrue(principal, monthlyRate decimal.Decimal, start, asOf time.Time) Accrual {
	months := decimal.NewFromInt(int64((asOf.Year()-start.Year())*12 + int(asOf.Month()) - int(start.Month())))
	if days := asOf.Day() - start.Day(); days > 0 {
		months = months.Add(decimal.NewFromInt(int64(days)).Div(thirty))
	}
	if months.IsNegative() {
		months = decimal.Zero
	}
	interest := principal.Mul(monthlyRate).Div(hundred).Mul(months)
	return Accrual{
		MonthsElapsed:   months,
		InterestAccrued: interest,
		TotalDue:        principal.Add(interest),
		IsDoubled:       principal.IsPositive() && interest.GreaterThanOrEqual(principal.Mul(two)),
	}
}

// AnalyzedLoan is a loan with its accrued interest as of the report date.
// Computable is false when the principal is not positive; such loans carry
// no ratio and never appear in a risk list.
type AnalyzedLoan struct {
	Row              int     `json:"row"`
	RecordID         string  `json:"record_id"`
	Name             string  `json:"name"`
	Place            string  `json:"place"`
	Mobile           string  `json:"mobile"`
	Date             string  `json:"date"`
	Status           string  `json:"status"`
	Principal        float64 `json:"principal"`
	Rate             float64 `json:"rate"`
	RateDefaulted    bool    `json:"rate_defaulted"`
	MonthsElapsed    float64 `json:"months_elapsed"`
	InterestAccrued  float64 `json:"interest_accrued"`
	TotalDue         float64 `json:"total_due"`
	IsDoubled        bool    `json:"is_doubled"`
	ExceedsPrincipal bool    `json:"exceeds_principal"`
	RatioPercent     float64 `json:"ratio_percent"`
	Computable       bool    `json:"computable"`

	principal decimal.Decimal
	accrued   decimal.Decimal
	ratio     decimal.Decimal
	totalDue  decimal.Decimal
}

// AnalyzeInterest accrues interest for every row with a parseable date and a
// non-empty amount. Rows whose rate is missing or unreadable use defaultRate.
func AnalyzeInterest(t Table, asOf time.Time, defaultRate float64) []AnalyzedLoan {
	fallback := decimal.NewFromFloat(defaultRate)
	out := make([]AnalyzedLoan, 0, len(t.Records))
	for _, r := range t.Records {
		if !r.HasDate || isBlank(r.Loan.Amount) {
			continue
		}
		rate, ok := core.ParseRate(r.Loan.Interest)
		if !ok {
			rate = fallback
		}
		acc := Accrue(r.Amount, rate, r.Date, asOf)
		a := AnalyzedLoan{
			Row:             r.Row,
			RecordID:        r.Loan.RecordID,
			Name:            r.Loan.DisplayName(),
			Place:           r.Loan.Ward,
			Mobile:          r.Loan.Mobile,
			Date:            r.Loan.Date,
			Status:          string(r.Loan.Status),
			Principal:       round2(r.Amount),
			Rate:            round2(rate),
			RateDefaulted:   !ok,
			MonthsElapsed:   round2(acc.MonthsElapsed),
			InterestAccrued: round2(acc.InterestAccrued),
			TotalDue:        round2(acc.TotalDue),
			IsDoubled:       acc.IsDoubled,
			Computable:      r.Amount.IsPositive(),
			principal:       r.Amount,
			accrued:         acc.InterestAccrued,
			totalDue:        acc.TotalDue,
		}
		if a.Computable {
			a.ratio = acc.InterestAccrued.Div(r.Amount).Mul(hundred)
			a.RatioPercent = round2(a.ratio)
			a.ExceedsPrincipal = acc.InterestAccrued.GreaterThan(r.Amount)
		}
		out = append(out, a)
	}
	return out
}

// Defaulters are loans whose accrued interest exceeds the principal, highest
// ratio first.
func Defaulters(loans []AnalyzedLoan) []AnalyzedLoan {
	out := selectLoans(loans, func(a AnalyzedLoan) bool { return a.ExceedsPrincipal })
	slices.SortStableFunc(out, byRatioDesc)
	return out
}

// DoubledAlerts are loans whose interest reached twice the principal,
// largest amount due first.
func DoubledAlerts(loans []AnalyzedLoan) []AnalyzedLoan {
	out := selectLoans(loans, func(a AnalyzedLoan) bool { return a.IsDoubled })
	slices.SortStableFunc(out, func(a, b AnalyzedLoan) int { return b.totalDue.Cmp(a.totalDue) })
	return out
}

// AboveThreshold keeps loans whose interest is at least thresholdPercent of
// the principal, highest ratio first.
func AboveThreshold(loans []AnalyzedLoan, thresholdPercent float64) []AnalyzedLoan {
	limit := decimal.NewFromFloat(thresholdPercent)
	out := selectLoans(loans, func(a AnalyzedLoan) bool { return a.ratio.GreaterThanOrEqual(limit) })
	slices.SortStableFunc(out, byRatioDesc)
	return out
}

func selectLoans(loans []AnalyzedLoan, keep func(AnalyzedLoan) bool) []AnalyzedLoan {
	out := make([]AnalyzedLoan, 0)
	for _, a := range loans {
		if a.Computable && keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func byRatioDesc(a, b AnalyzedLoan) int { return b.ratio.Cmp(a.ratio) }

// InterestReport gathers the accrual views for one as-of date.
type InterestReport struct {
	AsOf             time.Time      `json:"as_of"`
	DefaultRate      float64        `json:"default_rate"`
	ThresholdPercent float64        `json:"threshold_percent"`
	Loans            []AnalyzedLoan `json:"loans"`
	Defaulters       []AnalyzedLoan `json:"defaulters"`
	Doubled          []AnalyzedLoan `json:"doubled"`
	AboveThreshold   []AnalyzedLoan `json:"above_threshold"`
	TotalPrincipal   float64        `json:"total_principal"`
	TotalAccrued     float64        `json:"total_accrued"`
	TotalDue         float64        `json:"total_due"`
	NotComputable    int            `json:"not_computable"`
}

func BuildInterestReport(t Table, opts Options) InterestReport {
	opts = opts.withDefaults()
	loans := AnalyzeInterest(t, opts.Now, opts.DefaultRate)
	rep := InterestReport{
		AsOf:             opts.Now,
		DefaultRate:      opts.DefaultRate,
		ThresholdPercent: opts.ThresholdPercent,
		Loans:            loans,
		Defaulters:       Defaulters(loans),
		Doubled:          DoubledAlerts(loans),
		AboveThreshold:   AboveThreshold(loans, opts.ThresholdPercent),
	}
	var principal, accrued, due decimal.Decimal
	for _, a := range loans {
		if !a.Computable {
			rep.NotComputable++
		}
		principal = principal.Add(a.principal)
		accrued = accrued.Add(a.accrued)
		due = due.Add(a.totalDue)
	}
	rep.TotalPrincipal = round2(principal)
	rep.TotalAccrued = round2(accrued)
	rep.TotalDue = round2(due)
	return rep
}

func isBlank(s string) bool {
	return s == "" || s == core.NotMentioned
}
