package analytics

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

type TrendLabel string

const (
	Growing   TrendLabel = "growing"
	Stable    TrendLabel = "stable"
	Declining TrendLabel = "declining"
)

// trendBand is the amount growth, in percent, beyond which a trend is no
// longer stable.
var trendBand = decimal.NewFromInt(5)

// PeriodPoint is one side of a comparison.
type PeriodPoint struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

// Growth compares the current period with an earlier one. Available is false
// when the data does not contain both periods; all other fields are then zero
// and the trend is stable.
type Growth struct {
	Available    bool        `json:"available"`
	Current      PeriodPoint `json:"current"`
	Previous     PeriodPoint `json:"previous"`
	CountGrowth  float64     `json:"count_growth"`
	AmountGrowth float64     `json:"amount_growth"`
	Trend        TrendLabel  `json:"trend"`
}

// GrowthSet holds every comparison the dashboard shows.
type GrowthSet struct {
	MonthOverMonth     Growth `json:"month_over_month"`
	QuarterOverQuarter Growth `json:"quarter_over_quarter"`
	YearOverYearQtr    Growth `json:"year_over_year_quarter"`
	YearOverYear       Growth `json:"year_over_year"`
}

// minQuartersForYoY is how much quarterly history the year-over-year quarter
// comparison needs before it is reported.
const minQuartersForYoY = 5

// Compare builds the growth of cur over prev. Growth is zero whenever the
// previous value is zero.
func Compare(cur, prev Bucket) Growth {
	amountGrowth := growth(cur.sum, prev.sum)
	return Growth{
		Available:    true,
		Current:      point(cur),
		Previous:     point(prev),
		CountGrowth:  round2(growth(decimal.NewFromInt(int64(cur.Count)), decimal.NewFromInt(int64(prev.Count)))),
		AmountGrowth: round2(amountGrowth),
		Trend:        classify(amountGrowth),
	}
}

// LastTwo compares the two most recent buckets of an ascending sequence.
func LastTwo(buckets []Bucket) Growth {
	if len(buckets) < 2 {
		return unavailable()
	}
	return Compare(buckets[len(buckets)-1], buckets[len(buckets)-2])
}

func MonthOverMonth(t Table) Growth     { return LastTwo(MonthlyTrend(t)) }
func QuarterOverQuarter(t Table) Growth { return LastTwo(QuarterlyTrend(t)) }
func YearOverYear(t Table) Growth       { return LastTwo(Trend(t, Yearly)) }

// YearOverYearQuarter compares the latest quarter with the same quarter one
// year earlier.
func YearOverYearQuarter(t Table) Growth {
	return sameQuarterLastYear(QuarterlyTrend(t))
}

func sameQuarterLastYear(quarters []Bucket) Growth {
	if len(quarters) < minQuartersForYoY {
		return unavailable()
	}
	cur := quarters[len(quarters)-1]
	year, q, ok := splitQuarterKey(cur.Key)
	if !ok {
		return unavailable()
	}
	want := fmt.Sprintf("%04d-%s", year-1, q)
	for _, b := range quarters[:len(quarters)-1] {
		if b.Key == want {
			return Compare(cur, b)
		}
	}
	return unavailable()
}

// Growths computes every comparison from one pass over the buckets.
func Growths(monthly, quarterly []Bucket, yearly []YearSummary) GrowthSet {
	years := make([]Bucket, len(yearly))
	for i, y := range yearly {
		years[i] = y.Bucket
	}
	return GrowthSet{
		MonthOverMonth:     LastTwo(monthly),
		QuarterOverQuarter: LastTwo(quarterly),
		YearOverYearQtr:    sameQuarterLastYear(quarterly),
		YearOverYear:       LastTwo(years),
	}
}

func splitQuarterKey(key string) (int, string, bool) {
	y, q, ok := strings.Cut(key, "-")
	if !ok {
		return 0, "", false
	}
	year, err := strconv.Atoi(y)
	if err != nil {
		return 0, "", false
	}
	return year, q, true
}

func growth(cur, prev decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred)
}

func classify(amountGrowth decimal.Decimal) TrendLabel {
	switch {
	case amountGrowth.GreaterThan(trendBand):
		return Growing
	case amountGrowth.LessThan(trendBand.Neg()):
		return Declining
	}
	return Stable
}

func point(b Bucket) PeriodPoint {
	return PeriodPoint{Key: b.Key, Label: b.Label, Count: b.Count, Amount: b.Amount}
}

func unavailable() Growth {
	return Growth{Trend: Stable}
}
