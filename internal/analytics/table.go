// Package analytics aggregates a snapshot of loan rows into portfolio views.
//
// Every function here is pure: it reads a Table and returns plain values.
// Nothing touches the network, the clock or package state, so any number of
// callers may aggregate independent snapshots at the same time. Malformed
// rows never cause an error: unparseable dates drop out of date-keyed views,
// unparseable amounts count as zero and short rows are left out of the views
// that need their missing fields.
package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"kuberx/internal/core"
)

// Record is one decoded data row.
type Record struct {
	// Row is the 1-based sheet row; the header occupies row 1.
	Row      int
	Loan     core.Loan
	Fields   int
	Date     time.Time
	HasDate  bool
	Amount   decimal.Decimal
	Interest decimal.Decimal
}

// Complete reports whether the row is long enough to carry an amount.
func (r Record) Complete() bool { return r.Fields >= core.MinCompleteFields }

// Active reports whether the loan is still open. Rows without a status are.
func (r Record) Active() bool { return r.Loan.Status == core.StatusActive }

// dated reports whether the row takes part in date-keyed aggregations.
func (r Record) dated() bool { return r.Complete() && r.HasDate }

// Table is a decoded snapshot of the loan sheet without its header.
type Table struct {
	Records []Record
}

// Decode converts raw sheet rows into a Table. rows[0] is the header and is
// skipped; a nil or header-only input yields an empty table.
func Decode(rows [][]string) Table {
	if len(rows) <= 1 {
		return Table{Records: []Record{}}
	}
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		loan := core.LoanFromRow(row)
		date, ok := core.ParseDate(loan.Date)
		records = append(records, Record{
			Row:      i + 2,
			Loan:     loan,
			Fields:   len(row),
			Date:     date,
			HasDate:  ok,
			Amount:   core.ParseAmount(loan.Amount),
			Interest: core.ParseAmount(loan.Interest),
		})
	}
	return Table{Records: records}
}

// Len is the number of data rows.
func (t Table) Len() int { return len(t.Records) }

// Active returns the open loans in sheet order.
func (t Table) Active() []Record {
	return t.filter(func(r Record) bool { return r.Active() })
}

// Closed returns every loan whose status is not Active.
func (t Table) Closed() []Record {
	return t.filter(func(r Record) bool { return !r.Active() })
}

// Recent returns the last n records in sheet order.
func (t Table) Recent(n int) []Record {
	if n <= 0 || n >= len(t.Records) {
		return append([]Record{}, t.Records...)
	}
	return append([]Record{}, t.Records[len(t.Records)-n:]...)
}

// Find returns the record stored at the given sheet row.
func (t Table) Find(row int) (Record, bool) {
	i := row - 2
	if i < 0 || i >= len(t.Records) {
		return Record{}, false
	}
	return t.Records[i], true
}

func (t Table) filter(keep func(Record) bool) []Record {
	out := make([]Record, 0, len(t.Records))
	for _, r := range t.Records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Stats is the quick count shown on the landing page.
type Stats struct {
	Total   int  `json:"total"`
	Active  int  `json:"active"`
	Closed  int  `json:"closed"`
	HasData bool `json:"has_data"`
}

func QuickStats(t Table) Stats {
	s := Stats{Total: t.Len(), HasData: t.Len() > 0}
	for _, r := range t.Records {
		if r.Active() {
			s.Active++
		} else {
			s.Closed++
		}
	}
	return s
}

func round2(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// percentOf returns part/whole*100, or zero when whole is not positive.
func percentOf(part, whole decimal.Decimal) decimal.Decimal {
	if !whole.IsPositive() {
		return decimal.Zero
	}
	return part.Div(whole).Mul(hundred)
}

var hundred = decimal.NewFromInt(100)
