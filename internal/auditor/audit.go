package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/llm"
)

// RunAudit executes the exhaustive line-by-line audit (§4.3.1): every
// included file is chunked and scanned by the model against brief, and every
// reported violation is converted to an absolute repository line.
func (a *Auditor) RunAudit(ctx context.Context, repoURL string, brief core.TechnicalBrief) (core.AuditResult, error) {
	clone, err := a.Fetcher.Clone(ctx, repoURL)
	if err != nil {
		return core.AuditResult{Mode: core.ModeAudit, Repository: repoURL}, err
	}
	defer clone.Close()
	a.emit(events.KindRepoFetchDone, "repository cloned", map[string]interface{}{"repo_url": repoURL})

	files, skipped, err := codescan.Walk(clone.Path, codescan.Options{})
	if err != nil {
		return core.AuditResult{Mode: core.ModeAudit, Repository: repoURL}, fmt.Errorf("%w: walk repository: %v", core.ErrIngest, err)
	}

	violations, stats, err := a.scanFiles(ctx, files, brief)
	stats.FilesSkipped += skipped
	if err != nil {
		return core.AuditResult{
			Mode: core.ModeAudit, Repository: repoURL, FilesScanned: len(files),
			Violations: violations, TotalViolations: len(violations), ScanStatistics: stats,
		}, err
	}

	result := core.AuditResult{
		Mode:            core.ModeAudit,
		Repository:      repoURL,
		Violations:      violations,
		TotalViolations: len(violations),
		FilesScanned:    len(files),
		FilesAnalyzed:   len(files),
		ScanStatistics:  stats,
	}
	a.emit(events.KindDone, "audit complete", map[string]interface{}{"violations": len(violations)})
	return result, nil
}

// scanFiles runs the line-by-line scan over files, preserving discovery
// order (file order, then chunk order, then line order within chunk as
// analyzeChunk sorts it), and deduplicating on (file_path, line_number,
// rule_violated).
func (a *Auditor) scanFiles(ctx context.Context, files []codescan.ScannedFile, brief core.TechnicalBrief) ([]core.Violation, core.ScanStatistics, error) {
	type keyedChunk struct {
		filePath string
		item     codescan.WorkItem
	}
	var ordered []keyedChunk
	for _, f := range files {
		chunks := codescan.SplitChunks(f.Lines, a.chunkSize(), a.overlap())
		for i, c := range chunks {
			ordered = append(ordered, keyedChunk{
				filePath: f.RelPath,
				item:     codescan.WorkItem{FilePath: f.RelPath, ChunkIndex: i, Chunk: c},
			})
		}
	}
	if len(ordered) == 0 {
		return nil, core.ScanStatistics{}, nil
	}

	items := make([]codescan.WorkItem, len(ordered))
	for i, oc := range ordered {
		items[i] = oc.item
	}

	analyze := func(ctx context.Context, item codescan.WorkItem) (interface{}, error) {
		return a.analyzeChunk(ctx, item, brief)
	}

	byKey := make(map[string]codescan.Result, len(items))
	for r := range a.pool().Run(ctx, items, analyze) {
		byKey[r.Item.FilePath+"#"+strconv.Itoa(r.Item.ChunkIndex)] = r
	}

	var stats core.ScanStatistics
	seen := map[string]bool{}
	var out []core.Violation
	for _, oc := range ordered {
		key := oc.item.FilePath + "#" + strconv.Itoa(oc.item.ChunkIndex)
		r := byKey[key]
		stats.ChunksScanned++
		if r.Failed {
			stats.ChunksFailed++
			continue
		}
		vs, _ := r.Value.([]core.Violation)
		for _, v := range vs {
			dedupKey := v.FilePath + "|" + lineKey(v.LineNumber) + "|" + v.RuleViolated
			if seen[dedupKey] {
				continue
			}
			seen[dedupKey] = true
			out = append(out, v)
		}
		a.emit(events.KindFileAnalyzed, "chunk analyzed", map[string]interface{}{
			"file_path": oc.item.FilePath, "chunk_index": oc.item.ChunkIndex,
		})
	}
	return out, stats, nil
}

func lineKey(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

type rawViolation struct {
	Line         *int   `json:"line"`
	Code         string `json:"code"`
	Explanation  string `json:"explanation"`
	RuleViolated string `json:"rule_violated"`
	Severity     string `json:"severity"`
}

// analyzeChunk issues the per-chunk audit call and returns the reported
// violations sorted by line. The excerpt it sends is numbered with absolute
// repository lines, so the model's line numbers are used as they come
// (§4.3.1 steps 3-5).
func (a *Auditor) analyzeChunk(ctx context.Context, item codescan.WorkItem, brief core.TechnicalBrief) ([]core.Violation, error) {
	system := "You are a meticulous code auditor. Given a technical brief of requirements and a numbered " +
		"code excerpt, report every concrete violation as a strict JSON array of objects: " +
		`[{"line": int, "code": string, "explanation": string, "rule_violated": string, "severity": "critical"|"high"|"medium"|"low"}]. ` +
		"Line numbers refer to the line numbers already present in the excerpt. Return [] if the excerpt is clean. JSON only, no narration."
	user := fmt.Sprintf("Technical brief:\n%s\n\nFile: %s\n\nExcerpt:\n%s", string(brief), item.FilePath, item.Chunk.Text())

	text, err := a.Client.Chat(ctx, llm.ChatRequest{Model: a.Model, System: system, User: user, Temperature: 0.1})
	if err != nil {
		return nil, err
	}

	arr := firstJSONArray(stripCodeFence(text))
	if arr == "" {
		return nil, fmt.Errorf("%w: no JSON array in chunk response", core.ErrParse)
	}
	var raw []rawViolation
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrParse, err)
	}

	out := make([]core.Violation, 0, len(raw))
	for _, rv := range raw {
		sev := core.Severity(strings.ToLower(strings.TrimSpace(rv.Severity)))
		switch sev {
		case core.SeverityCritical, core.SeverityHigh, core.SeverityMedium, core.SeverityLow:
		default:
			sev = core.SeverityMedium // §9 Open Question 1 default
		}
		// Chunk.Text() already prefixes each line with its absolute
		// repository line number, so the model's "line" field needs no
		// further offset (§4.3.1 step 5).
		var abs *int
		if rv.Line != nil {
			n := *rv.Line
			abs = &n
		}
		out = append(out, core.Violation{
			FilePath:     item.FilePath,
			LineNumber:   abs,
			RuleViolated: rv.RuleViolated,
			Explanation:  rv.Explanation,
			CodeSnippet:  rv.Code,
			Severity:     sev,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LineNumber == nil || out[j].LineNumber == nil {
			return false
		}
		return *out[i].LineNumber < *out[j].LineNumber
	})
	return out, nil
}
