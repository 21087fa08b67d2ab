package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/cache"
)

// CacheClient decorates a Client with a content-hash LLM cache, applied
// uniformly to both chat and embedding calls. Re-running the same
// prompt against the same model is then a cache hit, which keeps repeated
// runs cheap during iteration. Ingest idempotence itself (§4.2, §8) comes
// from legal.Analyst's chunk-hash dedup, not from this cache.
type CacheClient struct {
	Inner Client
	Cache *cache.LLMCache
}

func (c *CacheClient) Chat(ctx context.Context, req ChatRequest) (string, error) {
	if c.Cache == nil {
		return c.Inner.Chat(ctx, req)
	}
	key := cache.KeyFrom(req.Model, req.System+"\n\n"+req.User)
	if raw, ok, _ := c.Cache.Get(ctx, key); ok {
		var out struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal(raw, &out); err == nil && strings.TrimSpace(out.Text) != "" {
			return out.Text, nil
		}
	}
	text, err := c.Inner.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	if payload, err := json.Marshal(struct {
		Text string `json:"text"`
	}{Text: text}); err == nil {
		_ = c.Cache.Save(ctx, key, payload)
	}
	return text, nil
}

func (c *CacheClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.Cache == nil || len(texts) == 0 {
		return c.Inner.Embed(ctx, texts)
	}
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = cache.KeyFrom("embed", t)
		if raw, ok, _ := c.Cache.Get(ctx, keys[i]); ok {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil && len(vec) > 0 {
				out[i] = vec
				continue
			}
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	fresh, err := c.Inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = fresh[j]
		if payload, err := json.Marshal(fresh[j]); err == nil {
			_ = c.Cache.Save(ctx, keys[idx], payload)
		}
	}
	return out, nil
}
