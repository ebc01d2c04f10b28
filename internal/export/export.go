// Package export writes portfolio reports as Excel workbooks.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"kuberx/internal/analytics"
)

// Sheet names, in workbook order.
const (
	SheetSummary    = "Summary"
	SheetMonthly    = "Monthly"
	SheetQuarterly  = "Quarterly"
	SheetYearly     = "Yearly"
	SheetPlaces     = "Places"
	SheetRanges     = "Ranges"
	SheetBorrowers  = "Top Borrowers"
	SheetDefaulters = "Defaulters"
)

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Workbook builds the report for a dashboard and its interest report.
func Workbook(d analytics.Dashboard, rep analytics.InterestReport) (*excelize.File, error) {
	f := excelize.NewFile()
	w := &writer{f: f}

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	w.summary(d, rep)
	w.table(SheetMonthly, []string{"Month", "Loans", "Amount"}, len(d.Monthly), func(i int) []any {
		b := d.Monthly[i]
		return []any{b.Label, b.Count, b.Amount}
	})
	w.table(SheetQuarterly, []string{"Quarter", "Loans", "Amount"}, len(d.Quarterly), func(i int) []any {
		b := d.Quarterly[i]
		return []any{b.Label, b.Count, b.Amount}
	})
	w.table(SheetYearly, []string{"Year", "Loans", "Amount", "Active Loans", "Active Amount"}, len(d.Yearly), func(i int) []any {
		y := d.Yearly[i]
		return []any{y.Label, y.Count, y.Amount, y.ActiveLoans, y.ActiveAmount}
	})
	w.table(SheetPlaces, []string{"Place", "Loans", "Active Loans", "Amount"}, len(d.Places), func(i int) []any {
		p := d.Places[i]
		return []any{p.Place, p.TotalLoans, p.ActiveLoans, p.TotalAmount}
	})
	w.table(SheetRanges, []string{"Range", "Loans"}, len(d.Ranges), func(i int) []any {
		r := d.Ranges[i]
		return []any{r.Range, r.Count}
	})
	w.table(SheetBorrowers, []string{"Name", "Loans", "Active Loans", "Amount"}, len(d.TopBorrowers), func(i int) []any {
		b := d.TopBorrowers[i]
		return []any{b.Name, b.TotalLoans, b.ActiveLoans, b.TotalAmount}
	})
	w.table(SheetDefaulters, []string{"Row", "Record ID", "Name", "Place", "Mobile", "Date", "Principal", "Rate %", "Months", "Interest", "Total Due", "Interest/Principal %", "Doubled"},
		len(rep.Defaulters), func(i int) []any {
			a := rep.Defaulters[i]
			doubled := "No"
			if a.IsDoubled {
				doubled = "Yes"
			}
			return []any{a.Row, a.RecordID, a.Name, a.Place, a.Mobile, a.Date, a.Principal, a.Rate,
				a.MonthsElapsed, a.InterestAccrued, a.TotalDue, a.RatioPercent, doubled}
		})

	if w.err != nil {
		_ = f.Close()
		return nil, w.err
	}
	return f, nil
}

// Write renders the workbook to out.
func Write(out io.Writer, d analytics.Dashboard, rep analytics.InterestReport) error {
	f, err := Workbook(d, rep)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// writer keeps the first error so the sheet builders stay linear.
type writer struct {
	f   *excelize.File
	err error
}

func (w *writer) set(sheet string, col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellValue(sheet, cell, v); err != nil {
		w.err = fmt.Errorf("%s!%s: %w", sheet, cell, err)
	}
}

func (w *writer) header(sheet string, titles []string) {
	for i, t := range titles {
		w.set(sheet, i+1, 1, t)
	}
	if w.err != nil || len(titles) == 0 {
		return
	}
	last, _ := excelize.ColumnNumberToName(len(titles))
	if err := w.f.SetColWidth(sheet, "A", last, 16); err != nil {
		w.err = err
		return
	}
	style, err := w.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		w.err = err
		return
	}
	if err := w.f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		w.err = err
	}
}

func (w *writer) table(sheet string, titles []string, n int, row func(int) []any) {
	if w.err != nil {
		return
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		w.err = fmt.Errorf("new sheet %s: %w", sheet, err)
		return
	}
	w.header(sheet, titles)
	for i := range n {
		for j, v := range row(i) {
			w.set(sheet, j+1, i+2, v)
		}
	}
}

func (w *writer) summary(d analytics.Dashboard, rep analytics.InterestReport) {
	m := d.Metrics
	rows := [][2]any{
		{"Generated", d.GeneratedAt.Format("02/01/2006 15:04")},
		{"Total Loans", m.TotalLoans},
		{"Active Loans", m.ActiveLoans},
		{"Closed Loans", m.ClosedLoans},
		{"Total Disbursed", m.TotalAmountDisbursed},
		{"Active Amount", m.ActiveAmount},
		{"Average Loan", m.AvgLoanAmount},
		{"Closure Rate %", m.ClosureRate},
		{"Expected Interest", m.TotalInterestExpected},
		{"Average Interest Rate %", d.Interest.AvgInterestRate},
		{"Accrued Interest", rep.TotalAccrued},
		{"Total Due", rep.TotalDue},
		{"Defaulters", len(rep.Defaulters)},
		{"Doubled", len(rep.Doubled)},
		{"Month over Month %", d.Growth.MonthOverMonth.AmountGrowth},
		{"Year over Year %", d.Growth.YearOverYear.AmountGrowth},
	}
	w.header(SheetSummary, []string{"Metric", "Value"})
	for i, r := range rows {
		w.set(SheetSummary, 1, i+2, r[0])
		w.set(SheetSummary, 2, i+2, r[1])
	}
}
