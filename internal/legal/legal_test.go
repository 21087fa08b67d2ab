package legal

import (
	"context"
	"strings"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/synth"
)

type fakeLoader struct {
	pages []PageText
	err   error
}

func (f fakeLoader) Load(path string) ([]PageText, error) { return f.pages, f.err }

type fakeChatClient struct {
	reply string
}

func (f *fakeChatClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return f.reply, nil
}

func (f *fakeChatClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		// Deterministic toy embedding: length and first-byte based, so
		// similar-looking text yields similar vectors in tests.
		var first float32
		if len(t) > 0 {
			first = float32(t[0])
		}
		out[i] = []float32{float32(len(t)), first}
	}
	return out, nil
}

func newTestAnalyst(chat string) *Analyst {
	client := &fakeChatClient{reply: chat}
	return &Analyst{
		Client: client,
		Model:  "test-model",
		Loader: fakeLoader{pages: []PageText{{Page: 1, Text: "No hardcoded credentials are permitted in source code."}}},
		Synth:  &synth.Synthesizer{Client: client},
	}
}

func TestIngestIsIdempotent(t *testing.T) {
	a := newTestAnalyst("- no hardcoded credentials")
	count1, fresh1, err := a.Ingest(context.Background(), "rules.pdf")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if count1 == 0 || fresh1 != count1 {
		t.Fatalf("expected first ingest to add chunks, got count=%d fresh=%d", count1, fresh1)
	}

	count2, fresh2, err := a.Ingest(context.Background(), "rules.pdf")
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if count2 != count1 {
		t.Fatalf("expected chunk count unchanged on re-ingest, got %d vs %d", count2, count1)
	}
	if fresh2 != 0 {
		t.Fatalf("expected zero new chunks on re-ingest, got %d", fresh2)
	}
}

func TestBriefOnEmptyDocument(t *testing.T) {
	a := newTestAnalyst("irrelevant")
	a.Loader = fakeLoader{pages: nil}
	if _, _, err := a.Ingest(context.Background(), "empty.pdf"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	brief, err := a.Brief(context.Background(), "empty.pdf")
	if err != nil {
		t.Fatalf("brief: %v", err)
	}
	if !strings.Contains(string(brief), "no extractable text") {
		t.Fatalf("expected empty-document brief text, got %q", brief)
	}
}

func TestBriefAfterIngest(t *testing.T) {
	a := newTestAnalyst("- No hardcoded credentials allowed")
	if _, _, err := a.Ingest(context.Background(), "rules.pdf"); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	brief, err := a.Brief(context.Background(), "rules.pdf")
	if err != nil {
		t.Fatalf("brief: %v", err)
	}
	if !strings.Contains(string(brief), "hardcoded credentials") {
		t.Fatalf("expected brief to reflect synthesized text, got %q", brief)
	}
}

func TestQuerySingleScopeFiltersBySource(t *testing.T) {
	a := newTestAnalyst("answer text")
	if _, _, err := a.Ingest(context.Background(), "a.pdf"); err != nil {
		t.Fatal(err)
	}
	a.Loader = fakeLoader{pages: []PageText{{Page: 1, Text: "Different rules entirely about accessibility."}}}
	if _, _, err := a.Ingest(context.Background(), "b.pdf"); err != nil {
		t.Fatal(err)
	}

	ans, err := a.Query(context.Background(), ScopeSinglePDF, "a.pdf", "what are the rules?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if ans.Text == "" {
		t.Fatal("expected non-empty answer")
	}
}

func TestQueryAllPDFsWithSources(t *testing.T) {
	a := newTestAnalyst("answer text")
	if _, _, err := a.Ingest(context.Background(), "a.pdf"); err != nil {
		t.Fatal(err)
	}
	a.Loader = fakeLoader{pages: []PageText{{Page: 1, Text: "Second document about accessibility and alt text for images."}}}
	if _, _, err := a.Ingest(context.Background(), "b.pdf"); err != nil {
		t.Fatal(err)
	}

	ans, err := a.Query(context.Background(), ScopeAllPDFsWithSources, "", "summarize all rules")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ans.ChunkDistributionBySource) == 0 {
		t.Fatal("expected a non-empty chunk distribution by source")
	}
}

func TestIngestWithVectorCachePersistsAndDedups(t *testing.T) {
	dir := t.TempDir()
	a := newTestAnalyst("- rule")
	a.VectorCache = &cache.VectorCache{Dir: dir}
	count1, fresh1, err := a.Ingest(context.Background(), "rules.pdf")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if fresh1 != count1 || count1 == 0 {
		t.Fatalf("expected first ingest to persist chunks, got count=%d fresh=%d", count1, fresh1)
	}

	// A brand-new Analyst backed by the same VectorCache dir should see the
	// chunks as already-known and add zero new ones.
	b := newTestAnalyst("- rule")
	b.VectorCache = a.VectorCache
	// Pre-seed b.known as empty; Ingest should consult the VectorCache, not
	// just in-memory state, to detect the existing chunks.
	_, fresh2, err := b.Ingest(context.Background(), "rules.pdf")
	if err != nil {
		t.Fatalf("re-ingest via fresh analyst: %v", err)
	}
	if fresh2 != 0 {
		t.Fatalf("expected zero new chunks when VectorCache already has them, got %d", fresh2)
	}
}
