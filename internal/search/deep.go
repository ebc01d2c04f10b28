package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"kuberx/internal/analytics"
	"kuberx/internal/llm"
)

const (
	DefaultBatchSize = 20
	maxDeepResults   = 10
	deepConcurrency  = 4
)

const deepPrompt = `You are a search expert. Find the most relevant records that match this query: %q

Records to search:
%s

Return ONLY a JSON object with the relevant row numbers, ordered by relevance.
Format: {"matches": [row_number1, row_number2, ...]}

If no good matches, return: {"matches": []}`

// Deep sends the active loans to the model in batches and keeps the rows it
// names. Batches run concurrently; results keep batch order and the model's
// order within a batch, capped at ten. A batch whose answer cannot be used
// is skipped; the search fails only when every batch does.
func Deep(ctx context.Context, gen llm.Generator, t analytics.Table, q string, batchSize int) ([]analytics.Record, error) {
	if gen == nil {
		return nil, llm.ErrNotConfigured
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	q = strings.TrimSpace(q)
	active := t.Active()
	if q == "" || len(active) == 0 {
		return []analytics.Record{}, nil
	}

	var batches [][]analytics.Record
	for start := 0; start < len(active); start += batchSize {
		batches = append(batches, active[start:min(start+batchSize, len(active))])
	}
	found := make([][]analytics.Record, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deepConcurrency)
	for i, batch := range batches {
		g.Go(func() error {
			found[i], errs[i] = deepBatch(gctx, gen, batch, q)
			if errs[i] != nil {
				slog.WarnContext(gctx, "Deep search batch failed", "batch", i, "error", errs[i])
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]analytics.Record, 0, maxDeepResults)
	failed := 0
	for i := range batches {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, found[i]...)
	}
	if failed == len(batches) {
		return nil, fmt.Errorf("deep search: %w", errs[0])
	}
	if len(out) > maxDeepResults {
		out = out[:maxDeepResults]
	}
	return out, nil
}

func deepBatch(ctx context.Context, gen llm.Generator, batch []analytics.Record, q string) ([]analytics.Record, error) {
	lines := make([]string, len(batch))
	byRow := make(map[int]analytics.Record, len(batch))
	for i, r := range batch {
		l := r.Loan
		lines[i] = fmt.Sprintf("Record %d: ID: %s, Name: %s / %s, Address: %s / %s, Ward: %s, Mobile: %s, Amount: %s, Relationship: %s",
			r.Row, l.RecordID, l.NameHindi, l.NameEnglish, l.AddressHindi, l.AddressEnglish,
			l.Ward, l.Mobile, l.Amount, l.Relationship)
		byRow[r.Row] = r
	}
	out, err := gen.Generate(ctx, llm.Request{
		Prompt: fmt.Sprintf(deepPrompt, q, strings.Join(lines, "\n\n")),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}
	obj, err := llm.ParseObject(out)
	if err != nil {
		return nil, err
	}
	matches, _ := obj["matches"].([]any)
	picked := make([]analytics.Record, 0, len(matches))
	seen := make(map[int]bool, len(matches))
	for _, m := range matches {
		row, ok := rowNumber(m)
		if !ok || seen[row] {
			continue
		}
		if r, ok := byRow[row]; ok {
			seen[row] = true
			picked = append(picked, r)
		}
	}
	return picked, nil
}

func rowNumber(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	case string:
		var row int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &row); err != nil {
			return 0, false
		}
		return row, true
	}
	return 0, false
}
