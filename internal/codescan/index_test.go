package codescan

import (
	"context"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/llm"
)

type fakeEmbedClient struct{}

func (fakeEmbedClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	return "", nil
}

func (fakeEmbedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 0, 0}
	}
	return out, nil
}

func TestBuildIndexChunksAndEmbedsEveryFile(t *testing.T) {
	files := []ScannedFile{
		{RelPath: "a.go", Lines: []string{"package a", "func A() {}"}},
		{RelPath: "b.py", Lines: []string{"def b(): pass"}},
	}
	idx, count, err := BuildIndex(context.Background(), fakeEmbedClient{}, files, 1000, 200)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 chunks (one per small file), got %d", count)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed entries, got %d", idx.Len())
	}
	hits := idx.TopK([]float32{9, 0, 0}, 5, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
}
