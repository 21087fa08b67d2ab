package verify

import (
	"context"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/core"
)

func TestVerifyEvidence_LiteralContainmentGrounded(t *testing.T) {
	v := &Verifier{}
	evidence := []core.Evidence{
		{FilePath: "app.py", Snippet: "API_KEY = \"abc123\""},
	}
	files := map[string]string{"app.py": "import os\nAPI_KEY = \"abc123\"\nprint(API_KEY)\n"}

	results, err := v.VerifyEvidence(context.Background(), evidence, files)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || !results[0].Grounded {
		t.Fatalf("expected grounded evidence, got %+v", results)
	}
}

func TestVerifyEvidence_MissingFileUngrounded(t *testing.T) {
	v := &Verifier{}
	evidence := []core.Evidence{{FilePath: "missing.py", Snippet: "x = 1"}}
	results, err := v.VerifyEvidence(context.Background(), evidence, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Grounded {
		t.Fatal("expected ungrounded result for missing file")
	}
}

func TestVerifyEvidence_EmptySnippetUngrounded(t *testing.T) {
	v := &Verifier{}
	evidence := []core.Evidence{{FilePath: "app.py", Snippet: "  "}}
	results, _ := v.VerifyEvidence(context.Background(), evidence, map[string]string{"app.py": "content"})
	if results[0].Grounded {
		t.Fatal("expected ungrounded result for empty snippet")
	}
}

func TestVerifyEvidence_NoClientLeavesFallbackVerdict(t *testing.T) {
	v := &Verifier{}
	evidence := []core.Evidence{{FilePath: "a.py", Snippet: "not present"}}
	results, err := v.VerifyEvidence(context.Background(), evidence, map[string]string{"a.py": "totally different content"})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Grounded {
		t.Fatal("expected ungrounded fallback verdict without an LLM client")
	}
}

func TestSortByFilePath(t *testing.T) {
	results := []GroundingResult{
		{Evidence: core.Evidence{FilePath: "b.py"}},
		{Evidence: core.Evidence{FilePath: "a.py"}},
	}
	SortByFilePath(results)
	if results[0].Evidence.FilePath != "a.py" {
		t.Fatalf("expected sorted order, got %+v", results)
	}
}
