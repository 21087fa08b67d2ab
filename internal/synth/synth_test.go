package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/llm"
)

type fakeClient struct {
	calls    int
	response string
	err      error
	lastReq  llm.ChatRequest
}

func (f *fakeClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	f.calls++
	f.lastReq = req
	return f.response, f.err
}

func (f *fakeClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not implemented")
}

func TestSynthesizer_ReturnsTrimmedText(t *testing.T) {
	c := &fakeClient{response: "  hello world  \n"}
	s := &Synthesizer{Client: c}
	out, err := s.Synthesize(context.Background(), "test-model", "system", "user")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "hello world" {
		t.Fatalf("expected trimmed text, got %q", out)
	}
	if c.lastReq.System != "system" || c.lastReq.User != "user" {
		t.Fatalf("unexpected request: %+v", c.lastReq)
	}
}

func TestSynthesizer_EmptyResponseIsError(t *testing.T) {
	c := &fakeClient{response: "   "}
	s := &Synthesizer{Client: c}
	if _, err := s.Synthesize(context.Background(), "test-model", "system", "user"); err == nil {
		t.Fatal("expected error for empty synthesis output")
	}
}

func TestSynthesizer_CachesByModelAndPrompt(t *testing.T) {
	dir := t.TempDir()
	c := &fakeClient{response: "cached answer"}
	s := &Synthesizer{Client: c, Cache: &cache.LLMCache{Dir: dir}}

	out1, err := s.Synthesize(context.Background(), "test-model", "sys", "usr")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected 1 client call, got %d", c.calls)
	}

	out2, err := s.Synthesize(context.Background(), "test-model", "sys", "usr")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if c.calls != 1 {
		t.Fatalf("expected cache hit to avoid a second client call, got %d calls", c.calls)
	}
	if out1 != out2 {
		t.Fatalf("expected identical cached output, got %q vs %q", out1, out2)
	}
}

func TestSynthesizer_NotConfiguredError(t *testing.T) {
	s := &Synthesizer{}
	if _, err := s.Synthesize(context.Background(), "", "sys", "usr"); err == nil {
		t.Fatal("expected error when model is empty")
	}
}
