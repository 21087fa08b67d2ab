// Package synth is the shared, cache-backed "ask the model for prose"
// primitive used by both the Legal Analyst's brief synthesis (§4.2 step 5)
// and the Orchestrator's final-answer synthesis (§4.1 "Synthesis"): callers
// supply their own system/user prompts, this package owns the caching and
// the empty-output failure contract.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/llm"
)

// Synthesizer issues a single chat completion, caching by model+prompt so
// repeated runs over the same inputs are deterministic and free.
type Synthesizer struct {
	Client  llm.Client
	Cache   *cache.LLMCache
	Verbose bool
}

// Synthesize returns the model's trimmed text response for the given
// system/user prompt pair. An empty response after trimming is an error —
// the caller is expected to fall back to its own deterministic text.
func (s *Synthesizer) Synthesize(ctx context.Context, model, system, user string) (string, error) {
	if s.Client == nil || strings.TrimSpace(model) == "" {
		return "", errors.New("synthesizer not configured")
	}

	key := ""
	if s.Cache != nil {
		key = cache.KeyFrom(model, system+"\n\n"+user)
		if raw, ok, _ := s.Cache.Get(ctx, key); ok {
			var out struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Text) != "" {
				return out.Text, nil
			}
		}
	}

	text, err := s.Client.Chat(ctx, llm.ChatRequest{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("empty synthesis output")
	}

	if s.Cache != nil {
		if payload, err := json.Marshal(map[string]string{"text": text}); err == nil {
			_ = s.Cache.Save(ctx, key, payload)
		}
	}
	return text, nil
}
