package analytics

import "time"

// Options tunes the views that depend on a window, a limit or a rate.
// Zero fields take the defaults of DefaultOptions. A zero rate or threshold
// is only honoured when RateSet or ThresholdSet says so.
type Options struct {
	Now              time.Time
	RecentDays       int
	TopN             int
	DefaultRate      float64
	ThresholdPercent float64
	AmountRanges     []AmountRange
	RecentOrder      RecentOrder

	RateSet      bool
	ThresholdSet bool
}

// WithRate sets the default monthly rate, zero included.
func (o Options) WithRate(pct float64) Options {
	o.DefaultRate, o.RateSet = pct, true
	return o
}

// WithThreshold sets the ratio threshold, zero included.
func (o Options) WithThreshold(pct float64) Options {
	o.ThresholdPercent, o.ThresholdSet = pct, true
	return o
}

// HasRate reports whether the default rate was given, explicitly or as a
// positive value.
func (o Options) HasRate() bool { return o.RateSet || o.DefaultRate > 0 }

// HasThreshold is HasRate for the threshold.
func (o Options) HasThreshold() bool { return o.ThresholdSet || o.ThresholdPercent > 0 }

const (
	DefaultMonthlyRate      = 3.0
	DefaultThresholdPercent = 100.0
)

func DefaultOptions(now time.Time) Options {
	return Options{
		Now:              now,
		RecentDays:       defaultRecentDays,
		TopN:             defaultTopN,
		DefaultRate:      DefaultMonthlyRate,
		ThresholdPercent: DefaultThresholdPercent,
		AmountRanges:     DefaultAmountRanges(),
		RecentOrder:      OrderRawDateDesc,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Now)
	if o.RecentDays <= 0 {
		o.RecentDays = d.RecentDays
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if !o.HasRate() {
		o.DefaultRate = d.DefaultRate
	}
	if !o.HasThreshold() {
		o.ThresholdPercent = d.ThresholdPercent
	}
	if len(o.AmountRanges) == 0 {
		o.AmountRanges = d.AmountRanges
	}
	if o.RecentOrder == "" {
		o.RecentOrder = d.RecentOrder
	}
	return o
}

// Dashboard bundles every portfolio view computed from one snapshot.
type Dashboard struct {
	GeneratedAt  time.Time       `json:"generated_at"`
	Stats        Stats           `json:"stats"`
	Metrics      Metrics         `json:"basic_metrics"`
	Monthly      []Bucket        `json:"monthly_trend"`
	Quarterly    []Bucket        `json:"quarterly_trend"`
	Yearly       []YearSummary   `json:"yearly_summary"`
	Growth       GrowthSet       `json:"growth"`
	Places       []PlaceStat     `json:"ward_distribution"`
	Ranges       []RangeCount    `json:"loan_ranges"`
	Recent       []RecentLoan    `json:"recent_activity"`
	TopBorrowers []Borrower      `json:"top_borrowers"`
	Interest     InterestSummary `json:"interest_analysis"`
}

func Build(t Table, opts Options) Dashboard {
	opts = opts.withDefaults()
	monthly := MonthlyTrend(t)
	quarterly := QuarterlyTrend(t)
	yearly := YearlySummary(t)
	return Dashboard{
		GeneratedAt:  opts.Now,
		Stats:        QuickStats(t),
		Metrics:      BasicMetrics(t),
		Monthly:      monthly,
		Quarterly:    quarterly,
		Yearly:       yearly,
		Growth:       Growths(monthly, quarterly, yearly),
		Places:       PlaceDistribution(t),
		Ranges:       AmountHistogram(t, opts.AmountRanges),
		Recent:       RecentActivity(t, opts.Now, opts.RecentDays, opts.RecentOrder),
		TopBorrowers: TopBorrowers(t, opts.TopN),
		Interest:     SummarizeInterest(t),
	}
}
