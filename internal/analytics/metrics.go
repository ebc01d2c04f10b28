package analytics

import (
	"github.com/shopspring/decimal"

	"kuberx/internal/core"
)

// Metrics summarises the whole portfolio.
type Metrics struct {
	TotalLoans            int     `json:"total_loans"`
	ActiveLoans           int     `json:"active_loans"`
	ClosedLoans           int     `json:"closed_loans"`
	TotalAmountDisbursed  float64 `json:"total_amount_disbursed"`
	ActiveAmount          float64 `json:"active_amount"`
	AvgLoanAmount         float64 `json:"avg_loan_amount"`
	TotalInterestExpected float64 `json:"total_interest_expected"`
	ClosureRate           float64 `json:"closure_rate"`
}

// BasicMetrics counts every data row. Rows too short to carry an amount
// still count towards the totals with a zero amount.
func BasicMetrics(t Table) Metrics {
	var (
		m                       Metrics
		total, active, interest decimal.Decimal
	)
	for _, r := range t.Records {
		m.TotalLoans++
		total = total.Add(r.Amount)
		interest = interest.Add(r.Interest)
		if r.Active() {
			m.ActiveLoans++
			active = active.Add(r.Amount)
		} else {
			m.ClosedLoans++
		}
	}
	m.TotalAmountDisbursed = round2(total)
	m.ActiveAmount = round2(active)
	m.TotalInterestExpected = round2(interest)
	if m.TotalLoans > 0 {
		n := decimal.NewFromInt(int64(m.TotalLoans))
		m.AvgLoanAmount = round2(total.Div(n))
		m.ClosureRate = round2(percentOf(decimal.NewFromInt(int64(m.ClosedLoans)), n))
	}
	return m
}

// InterestSummary relates the recorded interest column to principal.
type InterestSummary struct {
	TotalInterestExpected float64            `json:"total_interest_expected"`
	AvgInterestRate       float64            `json:"avg_interest_rate"`
	ActiveInterest        float64            `json:"active_interest"`
	ClosedInterest        float64            `json:"closed_interest"`
	ByStatus              map[string]float64 `json:"interest_by_status"`
}

// SummarizeInterest only looks at rows that reach the interest column.
func SummarizeInterest(t Table) InterestSummary {
	var principal, total, active, closed decimal.Decimal
	for _, r := range t.Records {
		if r.Fields <= core.ColInterest {
			continue
		}
		principal = principal.Add(r.Amount)
		total = total.Add(r.Interest)
		if r.Active() {
			active = active.Add(r.Interest)
		} else {
			closed = closed.Add(r.Interest)
		}
	}
	return InterestSummary{
		TotalInterestExpected: round2(total),
		AvgInterestRate:       round2(percentOf(total, principal)),
		ActiveInterest:        round2(active),
		ClosedInterest:        round2(closed),
		ByStatus: map[string]float64{
			"Active": round2(active),
			"Closed": round2(closed),
		},
	}
}
