package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/llm"
)

// Planner turns a natural-language query into a core.Plan (§4.1).
type Planner interface {
	Plan(ctx context.Context, query string, qaRepoURL string) (core.Plan, error)
}

// LLMPlanner calls the chat model with a prompt enumerating the three tools
// and the live QA session URL (if any), enforcing a JSON-only contract over
// Guardian's tools_needed/execution_order/pdf_path/repo_url/question/audit_mode
// schema (§4.1 "Planning contract").
type LLMPlanner struct {
	Client  llm.Client
	Model   string
	Cache   *cache.LLMCache
	Verbose bool
}

func (p *LLMPlanner) buildSystemMessage() string {
	return "You are a planning assistant for a compliance-auditing pipeline with three tools: " +
		"LegalAnalyst (reads a PDF at pdf_path and produces a technical brief), " +
		"CodeAuditor (audits a repository at repo_url in mode audit|compliance|hybrid using a technical brief), and " +
		"QA (answers a question about a repository at repo_url, reusing its index across turns). " +
		"Respond with strict JSON only, no narration. The JSON schema is " +
		`{"tools_needed": string[], "execution_order": string[], "pdf_path": string, "repo_url": string, "question": string, "audit_mode": "audit"|"compliance"|"hybrid", "reasoning": string}. ` +
		"tools_needed and execution_order entries are drawn from {LegalAnalyst, CodeAuditor, QA}. " +
		"If CodeAuditor appears and no technical brief already exists, LegalAnalyst must run first. " +
		"audit_mode defaults to hybrid when CodeAuditor appears."
}

func buildUserPrompt(query, qaRepoURL string) string {
	var sb strings.Builder
	sb.WriteString("User query: ")
	sb.WriteString(query)
	if qaRepoURL != "" {
		sb.WriteString("\n\nA QA session is currently live for repository ")
		sb.WriteString(qaRepoURL)
		sb.WriteString(". The user's phrases like 'the repo', 'this project', or 'it' refer to this repository.")
	}
	return sb.String()
}

// Plan implements Planner using the chat completions API. On any parse
// failure the caller is expected to fall back to FallbackPlanner (§4.1 rule 3).
func (p *LLMPlanner) Plan(ctx context.Context, query, qaRepoURL string) (core.Plan, error) {
	if p.Client == nil || p.Model == "" {
		return core.Plan{}, errors.New("planner not configured")
	}

	system := p.buildSystemMessage()
	user := buildUserPrompt(query, qaRepoURL)

	if p.Cache != nil {
		key := cache.KeyFrom(p.Model, system+"\n\n"+user)
		if raw, ok, _ := p.Cache.Get(ctx, key); ok {
			if plan, err := parsePlanJSON(raw); err == nil {
				return plan, nil
			}
		}
	}

	if p.Verbose {
		log.Debug().Str("stage", "planning").Str("model", p.Model).Int("system_len", len(system)).Int("user_len", len(user)).Msg("planner prompt")
	}

	text, err := p.Client.Chat(ctx, llm.ChatRequest{Model: p.Model, System: system, User: user, Temperature: 0})
	if err != nil {
		return core.Plan{}, err
	}

	plan, err := parsePlanJSON([]byte(text))
	if err != nil {
		return core.Plan{}, err
	}
	if plan.AuditMode == "" && containsTool(plan.ToolsNeeded, core.ToolCodeAuditor) {
		plan.AuditMode = core.ModeHybrid
	}

	if p.Cache != nil {
		if raw, err := json.Marshal(plan); err == nil {
			_ = p.Cache.Save(ctx, cache.KeyFrom(p.Model, system+"\n\n"+user), raw)
		}
	}
	return plan, nil
}

// parsePlanJSON applies the planner's JSON robustness rules (§4.1): strip
// code-fence wrappers, then accept the first complete JSON object found in
// the response.
func parsePlanJSON(raw []byte) (core.Plan, error) {
	text := stripCodeFence(string(raw))
	obj := firstJSONObject(text)
	if obj == "" {
		return core.Plan{}, errors.New("no JSON object found in planner response")
	}
	var plan core.Plan
	if err := json.Unmarshal([]byte(obj), &plan); err != nil {
		return core.Plan{}, err
	}
	return plan, nil
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
	}
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced {...} substring of s, honoring
// string literals so braces inside quoted text don't throw off the balance.
func firstJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

func containsTool(tools []core.ToolName, want core.ToolName) bool {
	for _, t := range tools {
		if t == want {
			return true
		}
	}
	return false
}

var (
	githubURLRe = regexp.MustCompile(`https?://github\.com/[\w.-]+/[\w.-]+`)
	pdfPathRe   = regexp.MustCompile(`\S+\.pdf\b`)
)

// FallbackPlanner is the deterministic rule-based planner applied when the
// LLM planner is unavailable or its output fails to parse (§4.1 "Deterministic
// fallback planner").
type FallbackPlanner struct{}

// Plan implements the six ordered rules of §4.1 exactly.
func (FallbackPlanner) Plan(_ context.Context, query, qaRepoURL string) (core.Plan, error) {
	repoURL := githubURLRe.FindString(query)
	if repoURL == "" && qaRepoURL != "" {
		repoURL = qaRepoURL
	}
	pdfPath := pdfPathRe.FindString(query)

	switch {
	case pdfPath != "" && repoURL != "":
		return core.Plan{
			ToolsNeeded:    []core.ToolName{core.ToolLegalAnalyst, core.ToolCodeAuditor},
			ExecutionOrder: []core.ToolName{core.ToolLegalAnalyst, core.ToolCodeAuditor},
			PDFPath:        pdfPath,
			RepoURL:        repoURL,
			AuditMode:      core.ModeHybrid,
			Reasoning:      "fallback planner: pdf and repo url both present",
		}, nil
	case pdfPath != "":
		return core.Plan{
			ToolsNeeded:    []core.ToolName{core.ToolLegalAnalyst},
			ExecutionOrder: []core.ToolName{core.ToolLegalAnalyst},
			PDFPath:        pdfPath,
			Reasoning:      "fallback planner: only a pdf path present",
		}, nil
	case repoURL != "":
		return core.Plan{
			ToolsNeeded:    []core.ToolName{core.ToolQA},
			ExecutionOrder: []core.ToolName{core.ToolQA},
			RepoURL:        repoURL,
			Question:       query,
			Reasoning:      "fallback planner: repo url or live QA session present",
		}, nil
	default:
		return core.Plan{
			Reasoning: "fallback planner: cannot determine intent",
		}, nil
	}
}
