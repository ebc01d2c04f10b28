// Package services coordinates the loan store, the analytics engine and the
// language-model helpers behind the HTTP handlers and the CLI.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"kuberx/internal/analytics"
	"kuberx/internal/cache"
	"kuberx/internal/core"
	"kuberx/internal/llm"
	"kuberx/internal/search"
	"kuberx/internal/sheets"
)

var (
	ErrNotFound              = errors.New("loan not found")
	ErrExtractionUnavailable = errors.New("extraction unavailable: no language model configured")
	ErrSearchUnavailable     = errors.New("search mode unavailable: no language model configured")
	ErrAlreadyClosed         = errors.New("loan already closed")
)

const snapshotKey = "snapshot"

// LoanServiceConfig carries the tunables read from configuration.
type LoanServiceConfig struct {
	SnapshotTTL time.Duration
	Defaults    analytics.Options
}

// LoanService serves portfolio views from a cached snapshot of the store and
// records new loans and closures.
type LoanService struct {
	store     sheets.LoanStore
	snapshots *cache.LRUCache[analytics.Table]
	group     singleflight.Group
	// generation changes on every write so reads started earlier are not cached
	generation atomic.Uint64
	defaults   analytics.Options

	extractor *llm.Extractor
	generator llm.Generator
	embedder  llm.Embedder

	now func() time.Time
	rng *rand.Rand
}

// Option configures optional collaborators of a LoanService.
type Option func(*LoanService)

// WithGenerator enables extraction and deep search.
func WithGenerator(g llm.Generator) Option {
	return func(s *LoanService) {
		s.generator = g
		s.extractor = llm.NewExtractor(g)
	}
}

// WithEmbedder enables semantic search.
func WithEmbedder(e llm.Embedder) Option {
	return func(s *LoanService) { s.embedder = e }
}

// WithClock fixes the clock and the record id source, for tests.
func WithClock(now func() time.Time, rng *rand.Rand) Option {
	return func(s *LoanService) {
		s.now = now
		s.rng = rng
	}
}

func NewLoanService(store sheets.LoanStore, cfg LoanServiceConfig, opts ...Option) *LoanService {
	s := &LoanService{
		store:     store,
		snapshots: cache.NewLRUCache[analytics.Table](1, cfg.SnapshotTTL),
		defaults:  cfg.Defaults,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Cache exposes the snapshot cache so it can be swept by a cache.Manager.
func (s *LoanService) Cache() cache.Cleaner { return s.snapshots }

// Snapshot returns the decoded ledger. Concurrent callers share one read and
// the result is reused until the TTL passes or a write lands.
func (s *LoanService) Snapshot(ctx context.Context) (analytics.Table, error) {
	if t, ok := s.snapshots.Get(snapshotKey); ok {
		return t, nil
	}
	v, err, _ := s.group.Do(snapshotKey, func() (any, error) {
		gen := s.generation.Load()
		rows, err := s.store.ReadAll(ctx)
		if err != nil {
			return analytics.Table{}, fmt.Errorf("read ledger: %w", err)
		}
		t := analytics.Decode(rows)
		if s.generation.Load() == gen {
			s.snapshots.Set(snapshotKey, t)
		}
		return t, nil
	})
	if err != nil {
		return analytics.Table{}, err
	}
	return v.(analytics.Table), nil
}

// Invalidate drops the cached snapshot.
func (s *LoanService) Invalidate() {
	s.generation.Add(1)
	s.snapshots.Delete(snapshotKey)
	s.group.Forget(snapshotKey)
}

// Options fills the zero fields of o from the configured defaults and sets
// Now to the current time when unset.
func (s *LoanService) Options(o analytics.Options) analytics.Options {
	d := s.defaults
	if o.Now.IsZero() {
		o.Now = s.now()
	}
	if o.RecentDays <= 0 {
		o.RecentDays = d.RecentDays
	}
	if o.TopN <= 0 {
		o.TopN = d.TopN
	}
	if !o.HasRate() {
		o.DefaultRate, o.RateSet = d.DefaultRate, d.RateSet
	}
	if !o.HasThreshold() {
		o.ThresholdPercent, o.ThresholdSet = d.ThresholdPercent, d.ThresholdSet
	}
	if len(o.AmountRanges) == 0 {
		o.AmountRanges = d.AmountRanges
	}
	if o.RecentOrder == "" {
		o.RecentOrder = d.RecentOrder
	}
	return o
}

func (s *LoanService) Dashboard(ctx context.Context, opts analytics.Options) (analytics.Dashboard, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return analytics.Dashboard{}, err
	}
	return analytics.Build(t, s.Options(opts)), nil
}

func (s *LoanService) Interest(ctx context.Context, opts analytics.Options) (analytics.InterestReport, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return analytics.InterestReport{}, err
	}
	return analytics.BuildInterestReport(t, s.Options(opts)), nil
}

func (s *LoanService) Trend(ctx context.Context, g analytics.Granularity) ([]analytics.Bucket, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return analytics.Trend(t, g), nil
}

func (s *LoanService) Growth(ctx context.Context) (analytics.GrowthSet, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return analytics.GrowthSet{}, err
	}
	return analytics.Growths(analytics.MonthlyTrend(t), analytics.QuarterlyTrend(t), analytics.YearlySummary(t)), nil
}

// StatusFilter selects loans by status in Records.
type StatusFilter string

const (
	StatusAll    StatusFilter = "all"
	StatusActive StatusFilter = "active"
	StatusClosed StatusFilter = "closed"
)

func ParseStatusFilter(s string) (StatusFilter, error) {
	switch f := StatusFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return StatusAll, nil
	case StatusAll, StatusActive, StatusClosed:
		return f, nil
	}
	return "", fmt.Errorf("unknown status filter %q", s)
}

// RecordFilter narrows Records. Limit keeps the last n matches.
type RecordFilter struct {
	Status StatusFilter
	Query  string
	Field  search.Field
	Limit  int
}

// Records lists loans in sheet order.
func (s *LoanService) Records(ctx context.Context, f RecordFilter) ([]analytics.Record, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var recs []analytics.Record
	switch f.Status {
	case StatusActive:
		recs = t.Active()
	case StatusClosed:
		recs = t.Closed()
	default:
		recs = t.Records
	}
	if strings.TrimSpace(f.Query) != "" {
		recs, err = search.ByField(analytics.Table{Records: recs}, f.Query, f.Field)
		if err != nil {
			return nil, err
		}
	}
	out := analytics.Table{Records: recs}.Recent(f.Limit)
	return out, nil
}

// Record returns the loan at a sheet row.
func (s *LoanService) Record(ctx context.Context, row int) (analytics.Record, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return analytics.Record{}, err
	}
	r, ok := t.Find(row)
	if !ok {
		return analytics.Record{}, ErrNotFound
	}
	return r, nil
}

// Created is the outcome of CreateLoan.
type Created struct {
	RecordID string `json:"record_id"`
	Ref      string `json:"ref"`
}

// CreateLoan normalizes the date, assigns a record id when missing,
// validates and appends the loan as Active.
func (s *LoanService) CreateLoan(ctx context.Context, l core.Loan) (Created, error) {
	l.Date = core.NormalizeDate(l.Date)
	if strings.TrimSpace(l.RecordID) == "" {
		name := l.NameEnglish
		if strings.TrimSpace(name) == "" {
			name = l.NameHindi
		}
		l.RecordID = core.NewRecordID(name, l.Date, s.now(), s.rng)
	}
	l.Status = core.StatusActive
	if err := l.Validate(); err != nil {
		return Created{}, err
	}
	ref, err := s.store.Append(ctx, l)
	if err != nil {
		return Created{}, fmt.Errorf("append loan: %w", err)
	}
	s.Invalidate()
	slog.InfoContext(ctx, "Loan created", "record_id", l.RecordID, "ref", ref, "amount", l.Amount)
	return Created{RecordID: l.RecordID, Ref: ref}, nil
}

// CloseLoan marks the loan at a sheet row as Closed.
func (s *LoanService) CloseLoan(ctx context.Context, row int) error {
	r, err := s.Record(ctx, row)
	if err != nil {
		return err
	}
	if !r.Active() {
		return ErrAlreadyClosed
	}
	if err := s.store.UpdateStatus(ctx, row, core.StatusClosed); err != nil {
		if errors.Is(err, sheets.ErrRowNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("close loan: %w", err)
	}
	s.Invalidate()
	slog.InfoContext(ctx, "Loan closed", "row", row, "record_id", r.Loan.RecordID)
	return nil
}

// Extract drafts a loan from free text with the language model.
func (s *LoanService) Extract(ctx context.Context, text string) (core.Loan, error) {
	if s.extractor == nil {
		return core.Loan{}, ErrExtractionUnavailable
	}
	l, err := s.extractor.Extract(ctx, text)
	if errors.Is(err, llm.ErrNotConfigured) {
		return core.Loan{}, ErrExtractionUnavailable
	}
	return l, err
}

// Hit is one search result. Score is set by semantic search only.
type Hit struct {
	Record analytics.Record
	Score  float64
}

// SearchRequest describes one search. Field applies to basic mode only:
// when set, every loan is filtered on that field instead of the text
// search over active loans.
type SearchRequest struct {
	Query string
	Mode  search.Mode
	Field search.Field
	TopK  int
}

func (s *LoanService) Search(ctx context.Context, req SearchRequest) ([]Hit, error) {
	t, err := s.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	switch req.Mode {
	case search.ModeSemantic:
		if s.embedder == nil {
			return nil, ErrSearchUnavailable
		}
		scored, err := search.Semantic(ctx, s.embedder, t, req.Query, req.TopK)
		if err != nil {
			return nil, err
		}
		hits := make([]Hit, len(scored))
		for i, sc := range scored {
			hits[i] = Hit{Record: sc.Record, Score: sc.Score}
		}
		return hits, nil
	case search.ModeDeep:
		if s.generator == nil {
			return nil, ErrSearchUnavailable
		}
		recs, err := search.Deep(ctx, s.generator, t, req.Query, search.DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		return toHits(recs), nil
	case search.ModeBasic, "":
		if req.Field != "" {
			recs, err := search.ByField(t, req.Query, req.Field)
			if err != nil {
				return nil, err
			}
			return toHits(recs), nil
		}
		return toHits(search.Basic(t, req.Query)), nil
	}
	return nil, search.ErrUnknownMode
}

func toHits(recs []analytics.Record) []Hit {
	hits := make([]Hit, len(recs))
	for i, r := range recs {
		hits[i] = Hit{Record: r}
	}
	return hits
}
