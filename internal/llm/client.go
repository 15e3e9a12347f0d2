package llm

import (
	"context"
)

// Request is a single completion call to a provider.
type Request struct {
	System      string
	Prompt      string
	Model       string
	MaxTokens   int
	Temperature float32
}

// Response carries the completion text along with token usage for cost
// accounting.
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}
