package auditor

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// scriptedClient replies with canned chat responses in call order and a
// trivial embedding, enough to drive the auditor's prompt/parse contracts
// without a real model. The worker pool calls Chat concurrently, so calls is
// mutex-guarded.
type scriptedClient struct {
	replies []string

	mu    sync.Mutex
	calls int
}

func (c *scriptedClient) Chat(ctx context.Context, req llm.ChatRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls >= len(c.replies) {
		return "[]", nil
	}
	r := c.replies[c.calls]
	c.calls++
	return r, nil
}

func (c *scriptedClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestExtractGuidelinesBulletsAndNumbers(t *testing.T) {
	brief := "- No hardcoded credentials\n2. Validate all user input\nsome prose that is not a bullet\n* Use parameterized queries"
	got := extractGuidelines(brief)
	want := []string{"No hardcoded credentials", "Validate all user input", "Use parameterized queries"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%q want %q", i, got[i], want[i])
		}
	}
}

func TestExtractGuidelinesFallsBackToWholeBrief(t *testing.T) {
	brief := "Just a single paragraph of prose with no list markers."
	got := extractGuidelines(brief)
	if len(got) != 1 || got[0] != brief {
		t.Fatalf("expected whole brief as one guideline, got %v", got)
	}
}

func TestAnalyzeChunkParsesViolationsWithDefaultSeverity(t *testing.T) {
	a := &Auditor{Client: &scriptedClient{replies: []string{
		`[{"line": 3, "code": "password = \"hunter2\"", "explanation": "hardcoded secret", "rule_violated": "no hardcoded credentials"}]`,
	}}, Model: "test-model"}

	item := codescan.WorkItem{
		FilePath: "app.py", ChunkIndex: 0,
		Chunk: codescan.Chunk{StartLine: 1, Lines: []string{"a", "b", "password = \"hunter2\""}},
	}
	vs, err := a.analyzeChunk(context.Background(), item, core.TechnicalBrief("no hardcoded credentials"))
	if err != nil {
		t.Fatalf("analyzeChunk: %v", err)
	}
	if len(vs) != 1 {
		t.Fatalf("expected 1 violation, got %d", len(vs))
	}
	if vs[0].Severity != core.SeverityMedium {
		t.Fatalf("expected default medium severity, got %q", vs[0].Severity)
	}
	if vs[0].LineNumber == nil || *vs[0].LineNumber != 3 {
		t.Fatalf("expected line 3, got %v", vs[0].LineNumber)
	}
}

func TestScanFilesDedupesAndPreservesDiscoveryOrder(t *testing.T) {
	reply := `[{"line": 1, "code": "x", "explanation": "bad", "rule_violated": "R1", "severity": "high"}]`
	a := &Auditor{
		Client: &scriptedClient{replies: []string{reply, reply}},
		Model:  "test-model",
	}
	files := []codescan.ScannedFile{
		{RelPath: "a.py", Lines: []string{"line one"}},
		{RelPath: "b.py", Lines: []string{"line one"}},
	}
	violations, stats, err := a.scanFiles(context.Background(), files, core.TechnicalBrief("brief"))
	if err != nil {
		t.Fatalf("scanFiles: %v", err)
	}
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations (one per file), got %d", len(violations))
	}
	if violations[0].FilePath != "a.py" || violations[1].FilePath != "b.py" {
		t.Fatalf("expected discovery order a.py then b.py, got %v", violations)
	}
	if stats.ChunksScanned != 2 {
		t.Fatalf("expected 2 chunks scanned, got %d", stats.ChunksScanned)
	}
}

func TestAssessGuidelineParsesStatus(t *testing.T) {
	idx := &vectorstore.Index{}
	idx.Add("doc1", []float32{1, 0}, vectorstore.Metadata{FilePath: "accessibility.py", Text: "no alt text handling here"})

	a := &Auditor{
		Client: &scriptedClient{replies: []string{
			`{"status": "not_applicable", "assessment": "backend-only service", "confidence": "high", "evidence": []}`,
		}},
		Model: "test-model",
	}
	assessment, err := a.assessGuideline(context.Background(), idx, "Images must have alt text")
	if err != nil {
		t.Fatalf("assessGuideline: %v", err)
	}
	if assessment.Status != core.StatusNotApplicable {
		t.Fatalf("expected not_applicable, got %q", assessment.Status)
	}
}

func TestTranslateGuidelinesFallsBackOnUnparseableResponse(t *testing.T) {
	a := &Auditor{Client: &scriptedClient{replies: []string{"not json at all"}}, Model: "test-model"}
	out := a.translateGuidelines(context.Background(), []string{"No hardcoded credentials"})
	tr, ok := out["No hardcoded credentials"]
	if !ok {
		t.Fatal("expected a translation entry even on parse failure")
	}
	if len(tr.Keywords) == 0 {
		t.Fatal("expected degenerate keyword tokenization fallback")
	}
}

func TestMergePromotesInconclusiveWithGroundedEvidence(t *testing.T) {
	a := &Auditor{}
	fileContents := map[string]string{"app.py": "password = \"hunter2\"\nother line"}
	pass1 := map[string]core.ComplianceAssessment{
		"No hardcoded credentials": {Guideline: "No hardcoded credentials", Status: core.StatusInconclusive, Confidence: core.ConfidenceMedium},
	}
	violations := []core.Violation{
		{FilePath: "app.py", RuleViolated: "no hardcoded credentials", CodeSnippet: "password = \"hunter2\""},
	}
	guidelinesByFile := map[string][]string{"app.py": {"No hardcoded credentials"}}

	merged := a.mergePassResults(context.Background(), []string{"No hardcoded credentials"}, pass1, violations, guidelinesByFile, fileContents)
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged assessment, got %d", len(merged))
	}
	if merged[0].Status != core.StatusFail {
		t.Fatalf("expected promotion to fail, got %q", merged[0].Status)
	}
	if len(merged[0].Evidence) != 1 {
		t.Fatalf("expected 1 grounded evidence entry, got %d", len(merged[0].Evidence))
	}
}

func TestMergeDowngradesFailWithNoGroundedEvidence(t *testing.T) {
	a := &Auditor{}
	pass1 := map[string]core.ComplianceAssessment{
		"Use parameterized queries": {Guideline: "Use parameterized queries", Status: core.StatusFail, Confidence: core.ConfidenceMedium, Assessment: "likely sql injection"},
	}
	merged := a.mergePassResults(context.Background(), []string{"Use parameterized queries"}, pass1, nil, nil, nil)
	if merged[0].Status != core.StatusInconclusive {
		t.Fatalf("expected downgrade to inconclusive, got %q", merged[0].Status)
	}
	if !strings.Contains(merged[0].Assessment, "semantic only") {
		t.Fatalf("expected assessment annotated semantic only, got %q", merged[0].Assessment)
	}
}
