package analytics

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuberx/internal/core"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// loanRow builds a full 15-column row.
func loanRow(id, date, name, ward, amount, rate, status string) []string {
	return []string{id, date, "", name, "", "", ward, "9999999999", "d2", "1", amount, rate, "12", "self", status}
}

func table(rows ...[]string) Table {
	return Decode(append([][]string{core.Header}, rows...))
}

func portfolio() Table {
	return table(
		loanRow("id1", "2024-01-10", "Ramesh", "Ward 1", "10,000", "3", "Active"),
		loanRow("id2", "15/02/2024", "Sita", "Ward 2", "5000", "2", "Closed"),
		loanRow("id3", "2024-03-05", "Ramesh", " Ward 1 ", "2,500.50", "NA", ""),
		[]string{"id4", "2024-03-06", "", "Mohan"},
	)
}

func TestDecode(t *testing.T) {
	tbl := portfolio()
	require.Equal(t, 4, tbl.Len())

	r := tbl.Records[0]
	assert.Equal(t, 2, r.Row)
	assert.True(t, r.HasDate)
	assert.True(t, r.Complete())
	assert.Equal(t, "10000", r.Amount.String())

	short := tbl.Records[3]
	assert.False(t, short.Complete())
	assert.True(t, short.Active(), "short rows default to Active")

	found, ok := tbl.Find(4)
	require.True(t, ok)
	assert.Equal(t, "id3", found.Loan.RecordID)
	_, ok = tbl.Find(1)
	assert.False(t, ok)
}

func TestDecodeAmounts(t *testing.T) {
	tbl := table(
		loanRow("a", "2024-01-01", "A", "W", "1,234.50", "", ""),
		loanRow("b", "2024-01-01", "B", "W", "abc", "", ""),
	)
	assert.Equal(t, 1234.50, tbl.Records[0].Amount.InexactFloat64())
	assert.True(t, tbl.Records[1].Amount.IsZero())
}

func TestEmptyTable(t *testing.T) {
	for _, tbl := range []Table{Decode(nil), Decode([][]string{core.Header})} {
		d := Build(tbl, DefaultOptions(now))
		assert.Equal(t, Metrics{}, d.Metrics)
		assert.Empty(t, d.Monthly)
		assert.NotNil(t, d.Monthly)
		assert.Empty(t, d.Quarterly)
		assert.Empty(t, d.Yearly)
		assert.Empty(t, d.Places)
		assert.Empty(t, d.Recent)
		assert.NotNil(t, d.Recent)
		assert.Empty(t, d.TopBorrowers)
		assert.False(t, d.Growth.MonthOverMonth.Available)
		assert.Equal(t, Stable, d.Growth.YearOverYear.Trend)
		require.Len(t, d.Ranges, 7)
		for _, rc := range d.Ranges {
			assert.Zero(t, rc.Count)
		}

		rep := BuildInterestReport(tbl, DefaultOptions(now))
		assert.Empty(t, rep.Loans)
		assert.NotNil(t, rep.Defaulters)
		assert.Zero(t, rep.TotalDue)
	}
}

func TestBasicMetrics(t *testing.T) {
	m := BasicMetrics(portfolio())

	assert.Equal(t, 4, m.TotalLoans)
	assert.Equal(t, 3, m.ActiveLoans)
	assert.Equal(t, 1, m.ClosedLoans)
	assert.Equal(t, m.TotalLoans, m.ActiveLoans+m.ClosedLoans)
	assert.Equal(t, 17500.50, m.TotalAmountDisbursed)
	assert.Equal(t, 12500.50, m.ActiveAmount)
	assert.Equal(t, 4375.13, m.AvgLoanAmount)
	assert.Equal(t, 5.0, m.TotalInterestExpected)
	assert.Equal(t, 25.0, m.ClosureRate)
}

func TestBasicMetricsUnknownStatusCountsAsClosed(t *testing.T) {
	m := BasicMetrics(table(
		loanRow("a", "2024-01-01", "A", "W", "100", "", "Written off"),
		loanRow("b", "2024-01-01", "B", "W", "100", "", "active"),
	))
	assert.Equal(t, 1, m.ActiveLoans)
	assert.Equal(t, 1, m.ClosedLoans)
}

func TestMonthlyTrend(t *testing.T) {
	tbl := table(
		loanRow("a", "2024-04-02", "A", "W", "300", "", ""),
		loanRow("b", "2024-03-10", "B", "W", "100", "", ""),
		loanRow("c", "12/03/2024", "C", "W", "50.25", "", ""),
		loanRow("d", "not a date", "D", "W", "999", "", ""),
	)
	buckets := MonthlyTrend(tbl)
	require.Len(t, buckets, 2)
	assert.Equal(t, "2024-03", buckets[0].Key)
	assert.Equal(t, "Mar 2024", buckets[0].Label)
	assert.Equal(t, 2, buckets[0].Count)
	assert.Equal(t, 150.25, buckets[0].Amount)
	assert.Equal(t, "Apr 2024", buckets[1].Label)
}

func TestQuarterKeysSortChronologically(t *testing.T) {
	tbl := table(
		loanRow("a", "2024-02-01", "A", "W", "10", "", ""),
		loanRow("b", "2023-11-01", "B", "W", "20", "", ""),
		loanRow("c", "2023-12-31", "C", "W", "30", "", ""),
	)
	q := QuarterlyTrend(tbl)
	require.Len(t, q, 2)
	assert.Equal(t, "2023-Q4", q[0].Key)
	assert.Equal(t, "Q4 2023", q[0].Label)
	assert.Equal(t, 2, q[0].Count)
	assert.Equal(t, "Q1 2024", q[1].Label)
}

func TestBucketSumConservation(t *testing.T) {
	tbl := portfolio()
	var datedCount int
	var datedAmount float64
	for _, r := range tbl.Records {
		if r.Complete() && r.HasDate {
			datedCount++
			datedAmount += r.Amount.InexactFloat64()
		}
	}
	for _, g := range []Granularity{Monthly, Quarterly, Yearly} {
		var count int
		var amount float64
		for _, b := range Trend(tbl, g) {
			count += b.Count
			amount += b.Amount
		}
		assert.Equal(t, datedCount, count, g)
		assert.InDelta(t, datedAmount, amount, 0.001, g)
	}
}

func TestYearlySummary(t *testing.T) {
	tbl := table(
		loanRow("a", "2023-05-01", "A", "W", "100", "", "Active"),
		loanRow("b", "2023-06-01", "B", "W", "200", "", "Closed"),
		loanRow("c", "2024-01-01", "C", "W", "400", "", ""),
	)
	years := YearlySummary(tbl)
	require.Len(t, years, 2)
	assert.Equal(t, "2023", years[0].Key)
	assert.Equal(t, 2, years[0].Count)
	assert.Equal(t, 300.0, years[0].Amount)
	assert.Equal(t, 1, years[0].ActiveLoans)
	assert.Equal(t, 100.0, years[0].ActiveAmount)
	assert.Equal(t, 400.0, years[1].ActiveAmount)

	yoy := YearOverYear(tbl)
	require.True(t, yoy.Available)
	assert.Equal(t, 300.0, yoy.Previous.Amount)
	assert.Equal(t, 400.0, yoy.Current.Amount)
	assert.Equal(t, 33.33, yoy.AmountGrowth)
	assert.Equal(t, -50.0, yoy.CountGrowth)
	assert.Equal(t, Growing, yoy.Trend)
}

func TestMonthOverMonth(t *testing.T) {
	g := MonthOverMonth(portfolio())
	require.True(t, g.Available)
	assert.Equal(t, "Mar 2024", g.Current.Label)
	assert.Equal(t, "Feb 2024", g.Previous.Label)
	assert.Equal(t, 1, g.Current.Count)
	assert.Equal(t, 5000.0, g.Previous.Amount)
	assert.Equal(t, -49.99, g.AmountGrowth)
	assert.Equal(t, 0.0, g.CountGrowth)
	assert.Equal(t, Declining, g.Trend)
}

func TestGrowthUsesLastTwoBucketsWithData(t *testing.T) {
	g := MonthOverMonth(table(
		loanRow("a", "2023-01-15", "A", "W", "100", "", ""),
		loanRow("b", "2023-07-15", "B", "W", "200", "", ""),
	))
	require.True(t, g.Available)
	assert.Equal(t, "2023-01", g.Previous.Key)
	assert.Equal(t, 100.0, g.AmountGrowth)
}

func TestGrowthTrendBands(t *testing.T) {
	cases := []struct {
		prev, cur string
		want      TrendLabel
	}{
		{"100", "106", Growing},
		{"100", "105", Stable},
		{"100", "95", Stable},
		{"100", "94", Declining},
		{"1000", "1000", Stable},
		{"0", "500", Stable},
	}
	for _, tc := range cases {
		g := MonthOverMonth(table(
			loanRow("a", "2024-01-01", "A", "W", tc.prev, "", ""),
			loanRow("b", "2024-02-01", "B", "W", tc.cur, "", ""),
		))
		assert.Equal(t, tc.want, g.Trend, "%s -> %s", tc.prev, tc.cur)
	}
}

func TestGrowthZeroPrevious(t *testing.T) {
	g := MonthOverMonth(table(
		loanRow("a", "2024-01-01", "A", "W", "0", "", ""),
		loanRow("b", "2024-02-01", "B", "W", "500", "", ""),
	))
	assert.True(t, g.Available)
	assert.Zero(t, g.AmountGrowth)
	assert.Equal(t, 0.0, g.Previous.Amount)
	assert.Equal(t, 500.0, g.Current.Amount)
}

func TestYearOverYearQuarter(t *testing.T) {
	rows := [][]string{
		loanRow("a", "2023-02-01", "A", "W", "1000", "", ""),
		loanRow("b", "2023-05-01", "B", "W", "1200", "", ""),
		loanRow("c", "2023-08-01", "C", "W", "1300", "", ""),
		loanRow("d", "2023-11-01", "D", "W", "1500", "", ""),
		loanRow("e", "2024-02-01", "E", "W", "1500", "", ""),
	}
	g := YearOverYearQuarter(table(rows...))
	require.True(t, g.Available)
	assert.Equal(t, "2024-Q1", g.Current.Key)
	assert.Equal(t, "2023-Q1", g.Previous.Key)
	assert.Equal(t, 50.0, g.AmountGrowth)
	assert.Equal(t, Growing, g.Trend)

	qoq := QuarterOverQuarter(table(rows...))
	assert.Equal(t, "2023-Q4", qoq.Previous.Key)
	assert.Equal(t, Stable, qoq.Trend)

	short := append(append([][]string{}, rows[:2]...), rows[3:]...)
	assert.False(t, YearOverYearQuarter(table(short...)).Available, "needs five quarters")

	gap := append(append([][]string{}, rows[1:]...), loanRow("f", "2022-12-01", "F", "W", "10", "", ""))
	assert.False(t, YearOverYearQuarter(table(gap...)).Available, "no matching quarter a year earlier")
}

func TestPlaceDistribution(t *testing.T) {
	places := PlaceDistribution(portfolio())
	require.Len(t, places, 2)
	assert.Equal(t, PlaceStat{Place: "Ward 1", TotalLoans: 2, ActiveLoans: 2, TotalAmount: 12500.50}, stripPlace(places[0]))
	assert.Equal(t, "Ward 2", places[1].Place)
	assert.Equal(t, 0, places[1].ActiveLoans)

	tied := PlaceDistribution(table(
		loanRow("a", "2024-01-01", "A", "Zeta", "100", "", ""),
		loanRow("b", "2024-01-01", "B", "Alpha", "100", "", ""),
		loanRow("c", "2024-01-01", "C", "  ", "100", "", ""),
	))
	require.Len(t, tied, 2)
	assert.Equal(t, "Alpha", tied[0].Place)
}

func stripPlace(p PlaceStat) PlaceStat {
	return PlaceStat{Place: p.Place, TotalLoans: p.TotalLoans, ActiveLoans: p.ActiveLoans, TotalAmount: p.TotalAmount}
}

func TestAmountHistogram(t *testing.T) {
	tbl := table(
		loanRow("a", "", "A", "W", "0", "", ""),
		loanRow("b", "", "B", "W", "1999.99", "", ""),
		loanRow("c", "", "C", "W", "2000", "", ""),
		loanRow("d", "", "D", "W", "25,000", "", ""),
		loanRow("e", "", "E", "W", "100000", "", ""),
		loanRow("f", "", "F", "W", "5,00,000", "", ""),
		loanRow("g", "", "G", "W", "oops", "", ""),
		[]string{"h", "", "H"},
	)
	got := AmountHistogram(tbl, nil)
	want := []RangeCount{
		{"0-2K", 3}, {"2K-5K", 1}, {"5K-10K", 0}, {"10K-25K", 0},
		{"25K-50K", 1}, {"50K-100K", 0}, {"100K+", 2},
	}
	assert.Equal(t, want, got)

	var total int
	for _, rc := range got {
		total += rc.Count
	}
	assert.Equal(t, 7, total, "every complete row lands in exactly one bucket")
}

func TestParseAmountRanges(t *testing.T) {
	ranges, err := ParseAmountRanges("0, 1000, 2500, 10000")
	require.NoError(t, err)
	require.Len(t, ranges, 4)
	assert.Equal(t, "0-1K", ranges[0].Label)
	assert.Equal(t, "1K-2500", ranges[1].Label)
	assert.Equal(t, "10K+", ranges[3].Label)

	_, err = ParseAmountRanges("0,500,200")
	assert.Error(t, err)
	_, err = ParseAmountRanges("0,x")
	assert.Error(t, err)
}

func TestTopBorrowers(t *testing.T) {
	top := TopBorrowers(portfolio(), 0)
	require.Len(t, top, 2)
	assert.Equal(t, "Ramesh", top[0].Name)
	assert.Equal(t, 2, top[0].TotalLoans)
	assert.Equal(t, 2, top[0].ActiveLoans)
	assert.Equal(t, 12500.50, top[0].TotalAmount)

	var rows [][]string
	for i, name := range []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L"} {
		rows = append(rows, loanRow(name, "2024-01-01", name, "W", strconv.Itoa(100*(i+1)), "", ""))
	}
	assert.Len(t, TopBorrowers(table(rows...), 0), 10)
	three := TopBorrowers(table(rows...), 3)
	require.Len(t, three, 3)
	assert.Equal(t, "L", three[0].Name)
	assert.Equal(t, "J", three[2].Name)
}

func TestRecentActivityOrdering(t *testing.T) {
	tbl := table(
		loanRow("r1", "2024-06-01", "R1", "W", "1", "", ""),
		loanRow("r2", "10/06/2024", "R2", "W", "2", "", ""),
		loanRow("r3", "2024-06-14", "R3", "W", "3", "", ""),
		loanRow("old", "01/04/2024", "Old", "W", "4", "", ""),
		loanRow("r4", "2024-05-20", "R4", "W", "5", "", ""),
		loanRow("edge", "2024-05-16", "Edge", "W", "6", "", ""),
	)

	names := func(list []RecentLoan) []string {
		out := make([]string, len(list))
		for i, r := range list {
			out[i] = r.Name
		}
		return out
	}

	raw := RecentActivity(tbl, now, 30, OrderRawDateDesc)
	assert.Equal(t, []string{"R3", "R1", "R4", "R2"}, names(raw))

	parsed := RecentActivity(tbl, now, 30, OrderParsedDateDesc)
	assert.Equal(t, []string{"R3", "R2", "R1", "R4"}, names(parsed))

	assert.Len(t, RecentActivity(tbl, now, 0, OrderRawDateDesc), 4, "zero window means thirty days")
	assert.Len(t, RecentActivity(tbl, now, 2, OrderRawDateDesc), 1)
}

func TestParseRecentOrder(t *testing.T) {
	o, err := ParseRecentOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderRawDateDesc, o)
	o, err = ParseRecentOrder("Parsed")
	require.NoError(t, err)
	assert.Equal(t, OrderParsedDateDesc, o)
	_, err = ParseRecentOrder("random")
	assert.Error(t, err)
}

func TestTableViews(t *testing.T) {
	tbl := portfolio()
	assert.Len(t, tbl.Active(), 3)
	assert.Len(t, tbl.Closed(), 1)

	short := table(
		[]string{"s1", "2024-01-01", "", "Short"},
		loanRow("c1", "2024-01-01", "C", "W", "100", "", "Closed"),
	)
	require.Len(t, short.Active(), 1)
	assert.Equal(t, "s1", short.Active()[0].Loan.RecordID)
	assert.Len(t, short.Closed(), 1)

	recent := tbl.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "id3", recent[0].Loan.RecordID)
	assert.Len(t, tbl.Recent(50), 4)

	s := QuickStats(tbl)
	assert.Equal(t, Stats{Total: 4, Active: 3, Closed: 1, HasData: true}, s)
}

func TestSummarizeInterest(t *testing.T) {
	s := SummarizeInterest(portfolio())
	assert.Equal(t, 5.0, s.TotalInterestExpected)
	assert.Equal(t, 3.0, s.ActiveInterest)
	assert.Equal(t, 2.0, s.ClosedInterest)
	assert.Equal(t, 0.03, s.AvgInterestRate)
	assert.Equal(t, 3.0, s.ByStatus["Active"])
}

func TestBuildIsIdempotent(t *testing.T) {
	tbl := portfolio()
	opts := DefaultOptions(now)
	first, err := json.Marshal(Build(tbl, opts))
	require.NoError(t, err)
	second, err := json.Marshal(Build(tbl, opts))
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(second))

	r1, _ := json.Marshal(BuildInterestReport(tbl, opts))
	r2, _ := json.Marshal(BuildInterestReport(tbl, opts))
	assert.JSONEq(t, string(r1), string(r2))
}

func TestOversizedAmountsDoNotBreakReports(t *testing.T) {
	tbl := table(
		loanRow("a", "2024-01-10", "A", "W", "1e400", "3", "Active"),
		loanRow("b", "2024-02-10", "B", "W", "1e9999999", "1e9999999", "Active"),
		loanRow("c", "2024-03-10", "C", "W", "1"+strings.Repeat("0", 400), "3", "Active"),
		loanRow("d", "2024-03-10", "D", "W", "2000", "3", "Active"),
	)
	opts := DefaultOptions(now)

	start := time.Now()
	d := Build(tbl, opts)
	rep := BuildInterestReport(tbl, opts)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, 4, d.Metrics.TotalLoans)
	assert.Equal(t, 2000.0, d.Metrics.TotalAmountDisbursed)
	_, err := json.Marshal(d)
	require.NoError(t, err)
	_, err = json.Marshal(rep)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.NotComputable)
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity(" Quarterly ")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, g)
	_, err = ParseGranularity("weekly")
	assert.Error(t, err)
}
