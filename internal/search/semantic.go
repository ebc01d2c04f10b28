package search

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"kuberx/internal/analytics"
	"kuberx/internal/llm"
)

const DefaultTopK = 5

// Scored is a record with its similarity to the query.
type Scored struct {
	Record analytics.Record
	Score  float64
}

// Semantic ranks active loans by cosine similarity between the query
// embedding and each record's text embedding and keeps the best topK.
func Semantic(ctx context.Context, emb llm.Embedder, t analytics.Table, q string, topK int) ([]Scored, error) {
	if emb == nil {
		return nil, llm.ErrNotConfigured
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	q = strings.TrimSpace(q)
	active := t.Active()
	if q == "" || len(active) == 0 {
		return []Scored{}, nil
	}

	texts := make([]string, 0, len(active)+1)
	texts = append(texts, q)
	for _, r := range active {
		texts = append(texts, recordText(r))
	}
	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(texts))
	}

	query := vectors[0]
	out := make([]Scored, 0, len(active))
	for i, r := range active {
		v := vectors[i+1]
		if len(v) == 0 {
			continue
		}
		out = append(out, Scored{Record: r, Score: Cosine(query, v)})
	}
	slices.SortStableFunc(out, func(a, b Scored) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Cosine is the cosine similarity of a and b, or 0 when either has no
// length or their sizes differ.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func recordText(r analytics.Record) string {
	l := r.Loan
	return strings.Join([]string{
		l.RecordID, l.NameHindi, l.NameEnglish, l.AddressHindi, l.AddressEnglish,
		l.Ward, l.Mobile, l.Date, l.Amount, l.Relationship,
	}, " ")
}
