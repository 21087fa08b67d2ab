package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/budget"
	"github.com/kolipakulaharsha/guardian/internal/core"
)

// reservedOutputTokens is the headroom reserved for the model's own answer
// when budgeting the synthesis prompt (§4.1 Synthesis).
const reservedOutputTokens = 1024

// synthesizeFinalAnswer builds the Orchestrator's final natural-language
// answer from whatever tool_results are present, truncating oversized
// fields with internal/budget to bound the synthesis prompt against the
// model's context window. If the model call itself fails,
// the raw tool results are dumped instead of failing the whole run, so a
// single LLM hiccup at the last step doesn't discard already-collected work.
func (o *Orchestrator) synthesizeFinalAnswer(ctx context.Context, query string, plan core.Plan, results core.ToolResults) string {
	user := buildSynthesisPrompt(query, plan, results, o.Model)
	system := "You are the final-answer synthesizer for a compliance-auditing assistant. Using only the tool " +
		"results provided, answer the user's query directly and concisely. Reference concrete file paths and " +
		"line numbers where available. Do not invent findings not present in the tool results."

	text, err := o.synthesizer().Synthesize(ctx, o.Model, system, user)
	if err != nil {
		return rawDumpFallback(results, err)
	}
	return text
}

func buildSynthesisPrompt(query string, plan core.Plan, results core.ToolResults, model string) string {
	var sb strings.Builder
	sb.WriteString("User query: ")
	sb.WriteString(query)
	sb.WriteString("\n\n")

	maxChars := budget.RemainingContextWithHeadroom(model, reservedOutputTokens, 0) * 4
	if maxChars < 2000 {
		maxChars = 2000
	}
	// Split the remaining budget evenly across whichever tool results are
	// present rather than letting one field starve the others.
	sections := activeSections(results)
	perSection := maxChars
	if len(sections) > 0 {
		perSection = maxChars / len(sections)
	}

	if results.LegalBrief != nil {
		sb.WriteString("Legal brief:\n")
		sb.WriteString(truncateChars(*results.LegalBrief, perSection))
		sb.WriteString("\n\n")
	}
	if results.Audit != nil {
		sb.WriteString("Audit result (mode=")
		sb.WriteString(string(results.Audit.Mode))
		sb.WriteString("):\n")
		sb.WriteString(truncateChars(marshalCompact(results.Audit), perSection))
		sb.WriteString("\n\n")
	}
	if results.QAAnswer != nil {
		sb.WriteString("QA answer:\n")
		sb.WriteString(truncateChars(marshalCompact(results.QAAnswer), perSection))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func activeSections(results core.ToolResults) []string {
	var out []string
	if results.LegalBrief != nil {
		out = append(out, "legal")
	}
	if results.Audit != nil {
		out = append(out, "audit")
	}
	if results.QAAnswer != nil {
		out = append(out, "qa")
	}
	return out
}

func truncateChars(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	return s[:maxChars] + "\n...(truncated)"
}

func marshalCompact(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// rawDumpFallback is the degraded final answer used when synthesis itself
// fails: the caller still gets every tool's raw output plus an explicit
// warning, rather than an empty report (§7 "synthesis failure is not fatal
// to the overall run").
func rawDumpFallback(results core.ToolResults, synthErr error) string {
	var sb strings.Builder
	sb.WriteString("Warning: final-answer synthesis failed (")
	sb.WriteString(synthErr.Error())
	sb.WriteString("); returning raw tool results.\n\n")
	if results.LegalBrief != nil {
		sb.WriteString("Legal brief:\n")
		sb.WriteString(*results.LegalBrief)
		sb.WriteString("\n\n")
	}
	if results.Audit != nil {
		sb.WriteString("Audit result:\n")
		sb.WriteString(marshalCompact(results.Audit))
		sb.WriteString("\n\n")
	}
	if results.QAAnswer != nil {
		sb.WriteString("QA answer:\n")
		sb.WriteString(marshalCompact(results.QAAnswer))
		sb.WriteString("\n\n")
	}
	return sb.String()
}
