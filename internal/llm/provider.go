// Package llm talks to hosted language models: Gemini through the GenAI SDK
// and any OpenAI-compatible chat endpoint (Groq) over HTTP.
package llm

import (
	"context"
	"errors"
	"log/slog"
)

var ErrNotConfigured = errors.New("llm provider not configured")

// Request is one single-turn completion.
type Request struct {
	System    string
	Prompt    string
	JSON      bool
	MaxTokens int
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1024
)

// Fallback asks Primary first and Secondary when Primary fails or is unset.
type Fallback struct {
	Primary   Generator
	Secondary Generator
}

var _ Generator = Fallback{}

func (f Fallback) Generate(ctx context.Context, req Request) (string, error) {
	if f.Primary == nil && f.Secondary == nil {
		return "", ErrNotConfigured
	}
	if f.Primary == nil {
		return f.Secondary.Generate(ctx, req)
	}
	out, err := f.Primary.Generate(ctx, req)
	if err == nil {
		return out, nil
	}
	if f.Secondary == nil || ctx.Err() != nil {
		return "", err
	}
	slog.WarnContext(ctx, "Primary model failed, using fallback", "error", err)
	out, err2 := f.Secondary.Generate(ctx, req)
	if err2 != nil {
		return "", errors.Join(err, err2)
	}
	return out, nil
}
