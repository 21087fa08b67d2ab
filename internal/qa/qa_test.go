package qa

import (
	"context"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/repofetch"
	"github.com/kolipakulaharsha/guardian/internal/synth"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

type fakeClient struct {
	chatReply string
}

func (f *fakeClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return f.chatReply, nil
}

func (f *fakeClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func newManagerWithSession(t *testing.T, reply string) *Manager {
	t.Helper()
	client := &fakeClient{chatReply: reply}
	idx := &vectorstore.Index{}
	idx.Add("doc1", []float32{1, 0}, vectorstore.Metadata{FilePath: "main.go", Text: "func main() {}"})

	m := &Manager{Client: client, Model: "test-model", Synth: &synth.Synthesizer{Client: client}}
	m.cur = &session{
		repoURL: "https://github.com/example/repo",
		repo:    &repofetch.ClonedRepo{URL: "https://github.com/example/repo", Path: t.TempDir()},
		index:   idx,
		info:    core.QASessionInfo{RepoURL: "https://github.com/example/repo"},
	}
	return m
}

func TestAskReturnsAnswerWithSources(t *testing.T) {
	m := newManagerWithSession(t, "main.go defines the entry point.")
	ans, err := m.Ask(context.Background(), "where is the entry point?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer == "" {
		t.Fatal("expected non-empty answer")
	}
	if len(ans.Sources) != 1 || ans.Sources[0] != "main.go" {
		t.Fatalf("expected sources=[main.go], got %v", ans.Sources)
	}
}

func TestAskWithoutSessionErrors(t *testing.T) {
	m := &Manager{}
	if _, err := m.Ask(context.Background(), "anything"); err == nil {
		t.Fatal("expected error asking without an active session")
	}
}

func TestAskWithEmptyRetrievalReturnsNoContextAnswer(t *testing.T) {
	m := newManagerWithSession(t, "irrelevant")
	m.cur.index = &vectorstore.Index{} // empty index -> TopK returns nothing
	ans, err := m.Ask(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Answer != noRelevantContext {
		t.Fatalf("expected no-context fallback, got %q", ans.Answer)
	}
}

func TestEnsureSessionIsNoOpForSameRepo(t *testing.T) {
	m := newManagerWithSession(t, "irrelevant")
	before := m.cur
	info, err := m.EnsureSession(context.Background(), "https://github.com/example/repo")
	if err != nil {
		t.Fatalf("EnsureSession: %v", err)
	}
	if info.RepoURL != "https://github.com/example/repo" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if m.cur != before {
		t.Fatal("expected EnsureSession to be a no-op for the same repo URL")
	}
}

func TestEndSessionClearsCurrentSession(t *testing.T) {
	m := newManagerWithSession(t, "irrelevant")
	if err := m.EndSession(); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, ok := m.Info(); ok {
		t.Fatal("expected no session info after EndSession")
	}
	if err := m.EndSession(); err != nil {
		t.Fatalf("EndSession should be idempotent, got: %v", err)
	}
}
