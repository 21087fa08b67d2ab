package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/kolipakulaharsha/guardian/internal/auditor"
	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/legal"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/qa"
	"github.com/kolipakulaharsha/guardian/internal/synth"
)

// reportVersion is the Report.Metadata.Version stamped on every run (§6
// "Report JSON shape").
const reportVersion = "1"

// Orchestrator ties the Planner to the three tools and owns the single
// piece of state that outlives a single Run: the live QA session, which
// qa.Manager itself guards with a mutex. It holds its collaborators as plain
// fields and keeps session state in one place rather than threading it
// through every call (§3 Orchestrator, §4.1).
type Orchestrator struct {
	Planner Planner
	Legal   *legal.Analyst
	Auditor *auditor.Auditor
	QA      *qa.Manager

	Client llm.Client
	Cache  *cache.LLMCache
	Model  string

	Log *events.Log

	synth *synth.Synthesizer
}

func (o *Orchestrator) synthesizer() *synth.Synthesizer {
	if o.synth == nil {
		o.synth = &synth.Synthesizer{Client: o.Client, Cache: o.Cache}
	}
	return o.synth
}

func (o *Orchestrator) emit(stage events.Kind, message string, payload map[string]interface{}) {
	if o.Log == nil {
		return
	}
	o.Log.Emit(stage, message, payload)
}

// Run plans and executes a single query end to end, producing the
// normative Report shape (§6). A tool that fails does not abort the run: its
// failure is recorded as a tool_failed event and execution continues with
// whatever tools remain, so a bad PDF path doesn't also sink an otherwise
// independent QA question in the same plan.
func (o *Orchestrator) Run(ctx context.Context, query string) (core.Report, error) {
	plan, err := o.plan(ctx, query)
	if err != nil {
		return core.Report{}, fmt.Errorf("planning: %w", err)
	}
	o.emit(events.KindPlanning, "plan ready", map[string]interface{}{
		"tools_needed":    plan.ToolsNeeded,
		"execution_order": plan.ExecutionOrder,
	})

	results := o.execute(ctx, query, plan)

	final := o.synthesizeFinalAnswer(ctx, query, plan, results)

	report := core.Report{
		Timestamp:   time.Now().UTC(),
		Query:       query,
		Model:       o.Model,
		Plan:        plan,
		ToolResults: results,
		FinalAnswer: final,
		Metadata:    core.ReportMetadata{Version: reportVersion, Mode: string(plan.AuditMode)},
	}
	o.emit(events.KindDone, "run complete", nil)
	return report, nil
}

// plan calls the configured Planner, falling back to FallbackPlanner when
// the primary planner errors (§4.1 rule 3 "if the LLM planner's output fails
// to parse, apply the deterministic fallback planner").
func (o *Orchestrator) plan(ctx context.Context, query string) (core.Plan, error) {
	primary := o.Planner
	if primary == nil {
		primary = &LLMPlanner{Client: o.Client, Model: o.Model, Cache: o.Cache}
	}
	p, err := primary.Plan(ctx, query, o.QA.CurrentRepoURL())
	if err == nil {
		return p, nil
	}
	o.emit(events.KindToolFailed, "planner failed, using fallback", map[string]interface{}{"error": err.Error()})
	return (FallbackPlanner{}).Plan(ctx, query, o.QA.CurrentRepoURL())
}

// execute runs each planned tool in order, isolating failures per step.
func (o *Orchestrator) execute(ctx context.Context, query string, plan core.Plan) core.ToolResults {
	var results core.ToolResults

	for _, tool := range plan.ExecutionOrder {
		switch tool {
		case core.ToolLegalAnalyst:
			o.runLegalAnalyst(ctx, plan, &results)
		case core.ToolCodeAuditor:
			o.runCodeAuditor(ctx, plan, &results)
		case core.ToolQA:
			o.runQA(ctx, query, plan, &results)
		default:
			o.emit(events.KindToolFailed, "unknown tool in execution order", map[string]interface{}{"tool": string(tool)})
		}
	}
	return results
}

func (o *Orchestrator) runLegalAnalyst(ctx context.Context, plan core.Plan, results *core.ToolResults) {
	if plan.PDFPath == "" {
		o.emit(events.KindToolFailed, "LegalAnalyst planned without a pdf_path", nil)
		return
	}
	if _, _, err := o.Legal.Ingest(ctx, plan.PDFPath); err != nil {
		o.emit(events.KindToolFailed, "legal ingest failed", map[string]interface{}{"error": err.Error()})
		return
	}
	brief, err := o.Legal.Brief(ctx, plan.PDFPath)
	if err != nil {
		o.emit(events.KindToolFailed, "legal brief failed", map[string]interface{}{"error": err.Error()})
		return
	}
	s := string(brief)
	results.LegalBrief = &s
	o.emit(events.KindLegalBriefReady, "legal brief ready", map[string]interface{}{"pdf_path": plan.PDFPath})
}

func (o *Orchestrator) runCodeAuditor(ctx context.Context, plan core.Plan, results *core.ToolResults) {
	if plan.RepoURL == "" {
		o.emit(events.KindToolFailed, "CodeAuditor planned without a repo_url", nil)
		return
	}
	brief := core.TechnicalBrief("")
	if results.LegalBrief != nil {
		brief = core.TechnicalBrief(*results.LegalBrief)
	}

	mode := plan.AuditMode
	if mode == "" {
		mode = core.ModeHybrid
	}

	var (
		result core.AuditResult
		err    error
	)
	switch mode {
	case core.ModeAudit:
		result, err = o.Auditor.RunAudit(ctx, plan.RepoURL, brief)
	case core.ModeCompliance:
		result, err = o.Auditor.RunCompliance(ctx, plan.RepoURL, brief, nil)
	default:
		result, err = o.Auditor.RunHybrid(ctx, plan.RepoURL, brief)
	}
	if err != nil {
		o.emit(events.KindToolFailed, "code auditor failed", map[string]interface{}{"error": err.Error(), "mode": string(mode)})
		return
	}
	results.Audit = &result
	results.ComplianceChecks = result.ComplianceChecks
}

func (o *Orchestrator) runQA(ctx context.Context, query string, plan core.Plan, results *core.ToolResults) {
	if plan.RepoURL != "" {
		if _, err := o.QA.EnsureSession(ctx, plan.RepoURL); err != nil {
			o.emit(events.KindToolFailed, "qa session setup failed", map[string]interface{}{"error": err.Error()})
			return
		}
	}
	question := plan.Question
	if question == "" {
		question = query
	}
	answer, err := o.QA.Ask(ctx, question)
	if err != nil {
		o.emit(events.KindToolFailed, "qa ask failed", map[string]interface{}{"error": err.Error()})
		return
	}
	results.QAAnswer = &answer
}

// StreamEvents installs fn as the live listener on the shared SessionLog, so
// a caller (e.g. the interactive CLI shell) can render each stage as it
// happens instead of waiting for Run to return (§9 redesign note on
// separating run() from its streaming adapter).
func (o *Orchestrator) StreamEvents(fn events.Listener) {
	if o.Log == nil {
		return
	}
	o.Log.SetListener(fn)
}

// SetQARepo explicitly starts (or switches) a QA session outside of a
// planned run, backing the interactive shell's set_qa command (§4.4).
func (o *Orchestrator) SetQARepo(ctx context.Context, repoURL string) (core.QASessionInfo, error) {
	return o.QA.EnsureSession(ctx, repoURL)
}

// EndQA tears down the live QA session, backing the interactive shell's
// end_qa command (§4.4).
func (o *Orchestrator) EndQA() error {
	return o.QA.EndSession()
}

// SessionInfo reports the live QA session, if any.
func (o *Orchestrator) SessionInfo() (core.QASessionInfo, bool) {
	return o.QA.Info()
}

// SessionHistory returns the retained SessionLog events (§4.1 session_history()).
func (o *Orchestrator) SessionHistory() []events.Event {
	if o.Log == nil {
		return nil
	}
	return o.Log.Events()
}

// ClearHistory drops the retained SessionLog events (§4.1 clear_history()).
func (o *Orchestrator) ClearHistory() {
	if o.Log == nil {
		return
	}
	o.Log.Clear()
}
