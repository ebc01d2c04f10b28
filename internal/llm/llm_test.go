package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGen struct {
	out   string
	err   error
	calls int
	last  Request
}

func (s *stubGen) Generate(_ context.Context, req Request) (string, error) {
	s.calls++
	s.last = req
	return s.out, s.err
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	primary := &stubGen{out: "p"}
	secondary := &stubGen{out: "s"}
	out, err := Fallback{Primary: primary, Secondary: secondary}.Generate(ctx, Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "p", out)
	assert.Zero(t, secondary.calls)

	primary.err = errors.New("quota")
	out, err = Fallback{Primary: primary, Secondary: secondary}.Generate(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, "s", out)

	secondary.err = errors.New("down")
	_, err = Fallback{Primary: primary, Secondary: secondary}.Generate(ctx, Request{})
	assert.ErrorContains(t, err, "quota")
	assert.ErrorContains(t, err, "down")

	out, err = Fallback{Secondary: &stubGen{out: "only"}}.Generate(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, "only", out)

	_, err = Fallback{}.Generate(ctx, Request{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseObject(t *testing.T) {
	cases := []struct {
		name string
		in   string
		key  string
		want any
	}{
		{"plain", `{"amount": "5000"}`, "amount", "5000"},
		{"fenced", "```json\n{\"amount\": \"5000\"}\n```", "amount", "5000"},
		{"prose around", `Here you go: {"matches": [2, 5]} hope it helps`, "matches", []any{2.0, 5.0}},
		{"nested braces in strings", `{"name": "a {b} c", "x": {"y": 1}}`, "name", "a {b} c"},
		{"trailing comma", `{"amount": "10",}`, "amount", "10"},
		{"single quotes", `{'amount': '20'}`, "amount", "20"},
		{"unclosed", `{"amount": "30"`, "amount", "30"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseObject(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got[tc.key])
		})
	}

	_, err := ParseObject("   ")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestExtractor(t *testing.T) {
	gen := &stubGen{out: "```json\n" + `{
		"date": "5-3-24",
		"nameHindi": "रमेश",
		"nameEnglish": "Ramesh",
		"addressHindi": "Not mentioned",
		"wardArea": "वार्ड 5",
		"mobile": 9876543210,
		"amount": "5000",
		"interest": "3%",
		"guarantee": "12",
		"relationship": "पिता राम लाल"
	}` + "\n```"}
	x := NewExtractor(gen)
	x.now = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }

	loan, err := x.Extract(context.Background(), "रमेश वार्ड 5 5000 रुपये")
	require.NoError(t, err)
	assert.Equal(t, "05/03/2024", loan.Date)
	assert.Equal(t, "Ramesh", loan.NameEnglish)
	assert.Equal(t, "", loan.AddressHindi)
	assert.Equal(t, "", loan.AddressEnglish)
	assert.Equal(t, "9876543210", loan.Mobile)
	assert.Equal(t, "d2", loan.DairyNumber, "missing dairy number takes the default")
	assert.Equal(t, "3%", loan.Interest)
	assert.Empty(t, loan.RecordID)

	assert.True(t, gen.last.JSON)
	assert.Contains(t, gen.last.Prompt, "use 2025")
	assert.Contains(t, gen.last.Prompt, "5000 रुपये")
	assert.Contains(t, gen.last.Prompt, `"5%" or "250"`)
}

func TestExtractorErrors(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewExtractor(&stubGen{out: "{}"}).Extract(context.Background(), "  ")
	assert.Error(t, err)

	_, err = NewExtractor(&stubGen{err: errors.New("boom")}).Extract(context.Background(), "x")
	assert.ErrorContains(t, err, "boom")
}

func TestOpenAICompatProvider(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	p, err := NewGroq("key", srv.URL, "")
	require.NoError(t, err)
	out, err := p.Generate(context.Background(), Request{System: "sys", Prompt: "hi", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)

	assert.Equal(t, "llama-3.3-70b-versatile", got.Model)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "hi", got.Messages[1].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
}

func TestOpenAICompatProviderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/empty") {
			_, _ = w.Write([]byte(`{"choices":[]}`))
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, err := NewGroq("key", srv.URL+"/limited", "m")
	require.NoError(t, err)
	_, err = p.Generate(context.Background(), Request{Prompt: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusTooManyRequests, se.Code)

	p.URL = srv.URL + "/empty"
	_, err = p.Generate(context.Background(), Request{Prompt: "x"})
	assert.ErrorContains(t, err, "no choices")

	_, err = NewGroq("", "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), " ", "", "")
	assert.ErrorIs(t, err, ErrNotConfigured)
}
