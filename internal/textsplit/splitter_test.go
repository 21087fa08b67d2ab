package textsplit

import (
	"strings"
	"testing"
)

func TestSplitRespectsChunkSize(t *testing.T) {
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 60)
	chunks := Split(text, 200, 40)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 200+40 {
			t.Errorf("chunk exceeds budget: %d bytes", len(c))
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	text := strings.Repeat("a", 50) + "\n\n" + strings.Repeat("b", 50)
	chunks := Split(text, 60, 20)
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[1], "a") {
		t.Errorf("expected overlap to carry trailing 'a' characters into chunk 2, got %q", chunks[1])
	}
}

func TestSplitEmptyInput(t *testing.T) {
	if chunks := Split("   ", 100, 10); chunks != nil {
		t.Errorf("expected nil for blank input, got %v", chunks)
	}
}

func TestSplitSmallInputSingleChunk(t *testing.T) {
	chunks := Split("short text", 1000, 200)
	if len(chunks) != 1 || chunks[0] != "short text" {
		t.Fatalf("expected a single unchanged chunk, got %v", chunks)
	}
}

func TestSplitDefaults(t *testing.T) {
	text := strings.Repeat("word ", 1000)
	chunks := Split(text, 0, -1)
	if len(chunks) == 0 {
		t.Fatal("expected chunks with default sizing")
	}
	for _, c := range chunks {
		if len(c) > DefaultChunkChars+DefaultOverlapChars {
			t.Errorf("chunk exceeds default budget: %d bytes", len(c))
		}
	}
}
