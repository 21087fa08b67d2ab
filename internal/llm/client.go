// Package llm is the single place that knows about the concrete LLM
// provider. Every other package talks to a Client interface so tests can
// substitute fakes (§4.5).
package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kolipakulaharsha/guardian/internal/core"
)

// ChatRequest bundles the knobs every caller needs. Temperature defaults are
// normative per §4.5: 0 for planning/synthesis, 0–0.3 for auditor analysis.
type ChatRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Client is the minimal interface needed by core logic to call a chat model
// and an embedding model. Guardian's Legal Analyst, Code Auditor
// (compliance/hybrid), and Repository QA all need vector embeddings in
// addition to chat completions.
type Client interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// OpenAIClient adapts *openai.Client to Client. It is the only file under
// internal/ that imports the concrete provider SDK; cmd/guardian imports it
// only to name the embedding model, and everything else depends on the
// Client interface.
type OpenAIClient struct {
	Inner *openai.Client
	// EmbeddingModel names the embedding model to use for Embed calls.
	// Fixed per run, per §4.2 step 3 ("a fixed text-embedding model").
	EmbeddingModel openai.EmbeddingModel
}

// New constructs an OpenAIClient against an OpenAI-compatible endpoint. An
// empty baseURL uses the provider's default; a non-empty one lets the same
// code talk to any OpenAI-compatible proxy, including one fronting
// GOOGLE_API_KEY-authenticated models per §6.
func New(apiKey, baseURL string, embeddingModel openai.EmbeddingModel) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if embeddingModel == "" {
		embeddingModel = openai.AdaEmbeddingV2
	}
	return &OpenAIClient{Inner: openai.NewClientWithConfig(cfg), EmbeddingModel: embeddingModel}
}

func (c *OpenAIClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c == nil || c.Inner == nil {
		return "", fmt.Errorf("llm client not configured")
	}
	maxTokens := req.MaxTokens
	resp, err := c.Inner.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		MaxTokens:   maxTokens,
		N:           1,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", classifyErr(err))
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// classifyErr tags a rate-limited provider response with core.ErrRateLimit so
// codescan.Pool's backoff (§5, §7 RateLimitError) recognizes it; every other
// error passes through wrapped in core.ErrTransport.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", core.ErrRateLimit, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == 429 {
		return fmt.Errorf("%w: %v", core.ErrRateLimit, err)
	}
	return fmt.Errorf("%w: %v", core.ErrTransport, err)
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c == nil || c.Inner == nil {
		return nil, fmt.Errorf("llm client not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := c.Inner.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", classifyErr(err))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		out[i] = d.Embedding
	}
	return out, nil
}
