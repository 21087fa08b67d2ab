// Package verify implements the hybrid auditor's evidence-grounding pass:
// before a ComplianceAssessment or Violation is reported, its cited snippet
// is checked against the actual file content it claims to come from — does
// this claim actually trace to a cited source, narrowed from citation-index
// matching to literal snippet containment.
package verify

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/llm"
)

// GroundingResult pairs one piece of evidence with whether it was found to
// be grounded in the source text it cites.
type GroundingResult struct {
	Evidence core.Evidence `json:"evidence"`
	Grounded bool          `json:"grounded"`
}

// Verifier checks evidence against file contents, with an optional LLM pass
// for near-miss snippets (paraphrased rather than verbatim) backed by the
// same cache-then-call idiom used for every LLM call in this module.
type Verifier struct {
	Client llm.Client
	Cache  *cache.LLMCache
	Model  string
}

// VerifyEvidence checks each evidence entry's Snippet for literal
// containment in fileContents[evidence.FilePath]. A missing file or empty
// snippet is treated as ungrounded. When the Verifier has no Client
// configured, this is the final answer (the deterministic fallback used
// when the LLM path is unavailable); otherwise
// near-misses are escalated to a single batched LLM call that may upgrade a
// snippet to grounded if it is a faithful paraphrase of nearby text.
func (v *Verifier) VerifyEvidence(ctx context.Context, evidence []core.Evidence, fileContents map[string]string) ([]GroundingResult, error) {
	results := make([]GroundingResult, len(evidence))
	var uncertain []int
	for i, e := range evidence {
		grounded := literalMatch(e, fileContents)
		results[i] = GroundingResult{Evidence: e, Grounded: grounded}
		if !grounded {
			uncertain = append(uncertain, i)
		}
	}

	if v.Client == nil || strings.TrimSpace(v.Model) == "" || len(uncertain) == 0 {
		return results, nil
	}

	upgrades, err := v.escalate(ctx, results, uncertain, fileContents)
	if err != nil {
		// LLM escalation failing is not fatal: the deterministic verdicts stand.
		return results, nil
	}
	for idx, grounded := range upgrades {
		results[idx].Grounded = grounded
	}
	return results, nil
}

func literalMatch(e core.Evidence, fileContents map[string]string) bool {
	snippet := strings.TrimSpace(e.Snippet)
	if snippet == "" {
		return false
	}
	content, ok := fileContents[e.FilePath]
	if !ok {
		return false
	}
	return strings.Contains(content, snippet)
}

func (v *Verifier) escalate(ctx context.Context, results []GroundingResult, uncertain []int, fileContents map[string]string) (map[int]bool, error) {
	var sb strings.Builder
	sb.WriteString("For each numbered item, answer true if the snippet is a faithful paraphrase of content actually present in the cited file, false otherwise. Respond with strict JSON: {\"verdicts\": bool[]} in the same order as the items.\n\n")
	for n, idx := range uncertain {
		r := results[idx]
		sb.WriteString(formatItem(n+1, r.Evidence, fileContents[r.Evidence.FilePath]))
	}

	system := "You are a precise fact-grounding checker. Output strict JSON only."
	user := sb.String()

	key := ""
	if v.Cache != nil {
		key = cache.KeyFrom(v.Model, system+"\n\n"+user)
		if raw, ok, _ := v.Cache.Get(ctx, key); ok {
			if verdicts, ok := parseVerdicts(raw, uncertain); ok {
				return verdicts, nil
			}
		}
	}

	text, err := v.Client.Chat(ctx, llm.ChatRequest{Model: v.Model, System: system, User: user, Temperature: 0})
	if err != nil {
		return nil, err
	}
	raw := []byte(strings.TrimSpace(stripCodeFence(text)))
	verdicts, ok := parseVerdicts(raw, uncertain)
	if !ok {
		return nil, errNoVerdicts
	}
	if v.Cache != nil {
		_ = v.Cache.Save(ctx, key, raw)
	}
	return verdicts, nil
}

var errNoVerdicts = jsonParseError("could not parse verdicts")

type jsonParseError string

func (e jsonParseError) Error() string { return string(e) }

func formatItem(n int, e core.Evidence, content string) string {
	var sb strings.Builder
	sb.WriteString("Item ")
	sb.WriteString(itoa(n))
	sb.WriteString("\nFile: ")
	sb.WriteString(e.FilePath)
	sb.WriteString("\nSnippet: ")
	sb.WriteString(e.Snippet)
	sb.WriteString("\nFile content (truncated):\n")
	if len(content) > 2000 {
		content = content[:2000]
	}
	sb.WriteString(content)
	sb.WriteString("\n\n")
	return sb.String()
}

func parseVerdicts(raw []byte, uncertain []int) (map[int]bool, bool) {
	var out struct {
		Verdicts []bool `json:"verdicts"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Verdicts) != len(uncertain) {
		return nil, false
	}
	verdicts := make(map[int]bool, len(uncertain))
	for i, idx := range uncertain {
		verdicts[idx] = out.Verdicts[i]
	}
	return verdicts, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// SortByFilePath orders grounding results deterministically for snapshot
// tests and reports (§8 deterministic-emission property).
func SortByFilePath(results []GroundingResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Evidence.FilePath < results[j].Evidence.FilePath
	})
}
