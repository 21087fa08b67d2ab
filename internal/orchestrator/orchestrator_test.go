package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/legal"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/qa"
)

type fakePlanner struct {
	plan core.Plan
	err  error
}

func (f fakePlanner) Plan(context.Context, string, string) (core.Plan, error) {
	return f.plan, f.err
}

type fakeChat struct {
	reply string
}

func (f *fakeChat) Chat(context.Context, llm.ChatRequest) (string, error) {
	return f.reply, nil
}

func (f *fakeChat) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

type fakeLoader struct{ text string }

func (l fakeLoader) Load(string) ([]legal.PageText, error) {
	return []legal.PageText{{Page: 1, Text: l.text}}, nil
}

func newTestOrchestrator(t *testing.T, plan core.Plan) (*Orchestrator, *fakeChat) {
	t.Helper()
	client := &fakeChat{reply: "Do not hardcode credentials in source files."}
	an := &legal.Analyst{Client: client, Model: "test-model", Loader: fakeLoader{text: "Section 1: no hardcoded credentials allowed."}}
	mgr := &qa.Manager{Client: client, Model: "test-model"}
	log := &events.Log{}

	o := &Orchestrator{
		Planner: fakePlanner{plan: plan},
		Legal:   an,
		QA:      mgr,
		Client:  client,
		Model:   "test-model",
		Log:     log,
	}
	return o, client
}

func TestRunLegalAnalystOnlyPopulatesBriefAndSynthesizes(t *testing.T) {
	plan := core.Plan{
		ToolsNeeded:    []core.ToolName{core.ToolLegalAnalyst},
		ExecutionOrder: []core.ToolName{core.ToolLegalAnalyst},
		PDFPath:        "policy.pdf",
	}
	o, _ := newTestOrchestrator(t, plan)

	report, err := o.Run(context.Background(), "summarize the compliance policy")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ToolResults.LegalBrief == nil {
		t.Fatalf("expected a legal brief in tool results")
	}
	if !strings.Contains(*report.ToolResults.LegalBrief, "credentials") {
		t.Fatalf("brief missing expected content: %q", *report.ToolResults.LegalBrief)
	}
	if report.FinalAnswer == "" {
		t.Fatalf("expected a non-empty final answer")
	}
	if report.Metadata.Version != reportVersion {
		t.Fatalf("unexpected metadata version: %q", report.Metadata.Version)
	}
}

func TestRunCodeAuditorWithoutRepoURLEmitsToolFailedAndContinues(t *testing.T) {
	plan := core.Plan{
		ToolsNeeded:    []core.ToolName{core.ToolCodeAuditor},
		ExecutionOrder: []core.ToolName{core.ToolCodeAuditor},
	}
	o, _ := newTestOrchestrator(t, plan)

	report, err := o.Run(context.Background(), "audit the repo")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ToolResults.Audit != nil {
		t.Fatalf("expected no audit result when repo_url is missing")
	}
	found := false
	for _, ev := range o.SessionHistory() {
		if ev.Stage == events.KindToolFailed {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a tool_failed event to have been recorded")
	}
}

func TestRunQAWithoutSessionEmitsToolFailed(t *testing.T) {
	plan := core.Plan{
		ToolsNeeded:    []core.ToolName{core.ToolQA},
		ExecutionOrder: []core.ToolName{core.ToolQA},
		Question:       "what does this repo do?",
	}
	o, _ := newTestOrchestrator(t, plan)

	report, err := o.Run(context.Background(), "what does this repo do?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.ToolResults.QAAnswer != nil {
		t.Fatalf("expected no qa answer without a live or planned session")
	}
}

func TestPlanFallsBackWhenPlannerErrors(t *testing.T) {
	o, _ := newTestOrchestrator(t, core.Plan{})
	o.Planner = fakePlanner{err: context.DeadlineExceeded}

	plan, err := o.plan(context.Background(), "https://github.com/example/repo what does it do")
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if plan.RepoURL == "" {
		t.Fatalf("expected fallback planner to extract a repo url")
	}
}

func TestClearHistoryDropsEvents(t *testing.T) {
	plan := core.Plan{
		ToolsNeeded:    []core.ToolName{core.ToolCodeAuditor},
		ExecutionOrder: []core.ToolName{core.ToolCodeAuditor},
	}
	o, _ := newTestOrchestrator(t, plan)
	if _, err := o.Run(context.Background(), "audit it"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(o.SessionHistory()) == 0 {
		t.Fatalf("expected some history before clearing")
	}
	o.ClearHistory()
	if len(o.SessionHistory()) != 0 {
		t.Fatalf("expected history to be empty after ClearHistory")
	}
}
