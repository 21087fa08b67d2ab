package auditor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/aggregate"
	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	selecter "github.com/kolipakulaharsha/guardian/internal/select"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// patternTranslation is the per-guideline output of hybrid step 1: what
// evidence of a violation of this guideline looks like in code (§4.3.3 step 1).
type patternTranslation struct {
	Keywords     []string `json:"keywords"`
	CodePatterns []string `json:"code_patterns"`
	FileGlobs    []string `json:"file_globs"`
}

type rawPass1 struct {
	Status         string   `json:"status"`
	Assessment     string   `json:"assessment"`
	Confidence     string   `json:"confidence"`
	CandidateFiles []string `json:"candidate_files"`
}

// RunHybrid executes the seven-step hybrid pipeline (§4.3.3): translate
// guidelines into searchable patterns, index the repository, run a fast
// semantic triage per guideline, select a bounded candidate set, deep-scan
// just those candidates line-by-line, then merge pass-2 evidence back into
// the pass-1 assessments.
func (a *Auditor) RunHybrid(ctx context.Context, repoURL string, brief core.TechnicalBrief) (core.AuditResult, error) {
	clone, err := a.Fetcher.Clone(ctx, repoURL)
	if err != nil {
		return core.AuditResult{Mode: core.ModeHybrid, Repository: repoURL}, err
	}
	defer clone.Close()
	a.emit(events.KindRepoFetchDone, "repository cloned", map[string]interface{}{"repo_url": repoURL})

	files, skipped, err := codescan.Walk(clone.Path, codescan.Options{})
	if err != nil {
		return core.AuditResult{Mode: core.ModeHybrid, Repository: repoURL}, fmt.Errorf("%w: walk repository: %v", core.ErrIngest, err)
	}

	guidelines := extractGuidelines(string(brief))

	// Step 1: translate guidelines into searchable patterns.
	translations := a.translateGuidelines(ctx, guidelines)
	a.emit(events.KindPatternTranslateDone, "guideline patterns translated", map[string]interface{}{"guidelines": len(translations)})

	// Step 2: index the repository for RAG.
	idx, chunkCount, err := codescan.BuildIndex(ctx, a.Client, files, a.indexChunkChars(), a.indexOverlapChars())
	if err != nil {
		return core.AuditResult{Mode: core.ModeHybrid, Repository: repoURL, FilesScanned: len(files)},
			fmt.Errorf("%w: build hybrid index: %v", core.ErrTransport, err)
	}
	a.emit(events.KindIndexBuildDone, "hybrid index built", map[string]interface{}{"chunks": chunkCount})

	// Step 3: guideline-level triage.
	pass1 := make(map[string]core.ComplianceAssessment, len(guidelines))
	var nominationGroups [][]aggregate.Nomination
	var allGlobs []string
	for _, g := range guidelines {
		t := translations[g]
		allGlobs = append(allGlobs, t.FileGlobs...)
		assessment, candidates, err := a.triageGuideline(ctx, idx, g, t)
		if err != nil {
			assessment = core.ComplianceAssessment{Guideline: g, Status: core.StatusInconclusive, Assessment: "triage failed: " + err.Error(), Confidence: core.ConfidenceLow}
		}
		pass1[g] = assessment
		var noms []aggregate.Nomination
		for _, f := range candidates {
			noms = append(noms, aggregate.Nomination{FilePath: f, Guideline: g})
		}
		nominationGroups = append(nominationGroups, noms)
	}
	a.emit(events.KindPass1Complete, "pass 1 triage complete", map[string]interface{}{"guidelines": len(pass1)})

	// Step 4: candidate file selection.
	candidates := aggregate.MergeNominations(nominationGroups)
	sizeOf := fileSizeIndex(files)
	selected := selecter.Select(candidates, selecter.Options{
		MaxCandidates: a.maxCandidates(),
		FileGlobs:     dedupStrings(allGlobs),
		FileSize:      sizeOf,
	})
	a.emit(events.KindCandidatesSelected, "pass 2 candidates selected", map[string]interface{}{"candidates": len(selected)})

	candidateSet := make(map[string]bool, len(selected))
	guidelinesByFile := make(map[string][]string, len(selected))
	var candidateFiles []codescan.ScannedFile
	for _, c := range selected {
		candidateSet[c.FilePath] = true
		guidelinesByFile[c.FilePath] = c.Guidelines
	}
	for _, f := range files {
		if candidateSet[f.RelPath] {
			candidateFiles = append(candidateFiles, f)
		}
	}

	// Step 5: deep scan candidates.
	violations, stats, _ := a.scanFiles(ctx, candidateFiles, brief)
	stats.FilesSkipped += skipped
	a.emit(events.KindPass2Complete, "pass 2 deep scan complete", map[string]interface{}{"violations": len(violations)})

	// Step 6: merge pass-2 evidence back into pass-1 assessments.
	fileContents := make(map[string]string, len(files))
	for _, f := range files {
		fileContents[f.RelPath] = strings.Join(f.Lines, "\n")
	}
	merged := a.mergePassResults(ctx, guidelines, pass1, violations, guidelinesByFile, fileContents)
	a.emit(events.KindMergeDone, "pass results merged", map[string]interface{}{"guidelines": len(merged)})

	// Step 7: emit.
	result := core.AuditResult{
		Mode:             core.ModeHybrid,
		Repository:       repoURL,
		Violations:       violations,
		TotalViolations:  len(violations),
		FilesScanned:     len(files),
		FilesAnalyzed:    len(candidateFiles),
		ScanStatistics:   stats,
		ComplianceChecks: merged,
	}
	a.emit(events.KindDone, "hybrid audit complete", map[string]interface{}{
		"guidelines": len(merged), "violations": len(violations),
	})
	return result, nil
}

// translateGuidelines issues the single pattern-translation call (§4.3.3
// step 1). A guideline missing from the model's response, or any failure of
// the call itself, falls back to the degenerate keyword tokenization.
func (a *Auditor) translateGuidelines(ctx context.Context, guidelines []string) map[string]patternTranslation {
	out := make(map[string]patternTranslation, len(guidelines))
	if len(guidelines) == 0 {
		return out
	}

	system := "You translate compliance guidelines into searchable code evidence. Respond with strict JSON: " +
		`{"<guideline text>": {"keywords": string[], "code_patterns": string[], "file_globs": string[]}, ...} ` +
		"one entry per guideline given, verbatim as the key. JSON only, no narration."
	var sb strings.Builder
	sb.WriteString("Guidelines:\n")
	for _, g := range guidelines {
		sb.WriteString("- ")
		sb.WriteString(g)
		sb.WriteString("\n")
	}

	translated := map[string]patternTranslation{}
	if text, err := a.Client.Chat(ctx, llm.ChatRequest{Model: a.Model, System: system, User: sb.String(), Temperature: 0.1}); err == nil {
		if obj := firstJSONObject(stripCodeFence(text)); obj != "" {
			_ = json.Unmarshal([]byte(obj), &translated)
		}
	}

	for _, g := range guidelines {
		if t, ok := translated[g]; ok && len(t.Keywords) > 0 {
			out[g] = t
			continue
		}
		out[g] = patternTranslation{Keywords: strings.Fields(g)}
	}
	return out
}

// triageGuideline runs pass 1 for a single guideline: retrieve, ask for a
// verdict plus candidate files worth a deep scan (§4.3.3 step 3).
func (a *Auditor) triageGuideline(ctx context.Context, idx *vectorstore.Index, guideline string, t patternTranslation) (core.ComplianceAssessment, []string, error) {
	query := guideline
	if len(t.Keywords) > 0 {
		query = guideline + " " + strings.Join(t.Keywords, " ")
	}
	vec, err := a.Client.Embed(ctx, []string{query})
	if err != nil {
		return core.ComplianceAssessment{}, nil, err
	}
	hits := idx.TopK(vec[0], 5, nil)

	system := "You are triaging a guideline against retrieved code excerpts, fast and approximate. Respond with " +
		"strict JSON: " +
		`{"status": "pass"|"fail"|"inconclusive"|"not_applicable", "assessment": string, "confidence": "high"|"medium"|"low", "candidate_files": string[]}. ` +
		"candidate_files lists file paths worth a deeper, line-by-line inspection. JSON only, no narration."
	user := fmt.Sprintf("Guideline: %s\n\n%s", guideline, buildChunkPrompt(hits))

	text, err := a.Client.Chat(ctx, llm.ChatRequest{Model: a.Model, System: system, User: user, Temperature: 0.1})
	if err != nil {
		return core.ComplianceAssessment{}, nil, err
	}
	obj := firstJSONObject(stripCodeFence(text))
	if obj == "" {
		return core.ComplianceAssessment{}, nil, fmt.Errorf("%w: no JSON object in triage response", core.ErrParse)
	}
	var raw rawPass1
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return core.ComplianceAssessment{}, nil, fmt.Errorf("%w: %v", core.ErrParse, err)
	}

	status := core.ComplianceStatus(raw.Status)
	if status == "" {
		status = core.StatusInconclusive
	}
	confidence := core.Confidence(raw.Confidence)
	if confidence == "" {
		confidence = core.ConfidenceMedium
	}
	assessment := core.ComplianceAssessment{Guideline: guideline, Status: status, Assessment: raw.Assessment, Confidence: confidence}

	candidates := raw.CandidateFiles
	if len(candidates) == 0 {
		for _, h := range hits {
			if h.Metadata.FilePath != "" {
				candidates = append(candidates, h.Metadata.FilePath)
			}
		}
	}
	return assessment, candidates, nil
}

// mergePassResults implements §4.3.3 step 6: evidence grounded against the
// actual file content (internal/verify) is attached to the guideline(s) that
// nominated its file; a pass-1 inconclusive guideline acquiring grounded
// evidence is promoted to fail, and a pass-1 fail acquiring none is
// downgraded to inconclusive and marked "semantic only".
func (a *Auditor) mergePassResults(
	ctx context.Context,
	guidelines []string,
	pass1 map[string]core.ComplianceAssessment,
	violations []core.Violation,
	guidelinesByFile map[string][]string,
	fileContents map[string]string,
) []core.ComplianceAssessment {
	evidenceByGuideline := make(map[string][]core.Evidence, len(guidelines))
	for _, v := range violations {
		ev := core.Evidence{FilePath: v.FilePath, LineNumber: v.LineNumber, Snippet: v.CodeSnippet, Relevance: v.Explanation}
		for _, g := range guidelinesByFile[v.FilePath] {
			evidenceByGuideline[g] = append(evidenceByGuideline[g], ev)
		}
	}

	out := make([]core.ComplianceAssessment, 0, len(guidelines))
	for _, g := range guidelines {
		assessment := pass1[g]
		candidateEvidence := evidenceByGuideline[g]
		grounded := a.groundEvidence(ctx, candidateEvidence, fileContents)

		assessment.Evidence = grounded
		switch {
		case assessment.Status == core.StatusInconclusive && len(grounded) > 0:
			assessment.Status = core.StatusFail
		case assessment.Status == core.StatusFail && len(grounded) == 0:
			assessment.Status = core.StatusInconclusive
			if !strings.Contains(assessment.Assessment, "semantic only") {
				assessment.Assessment = strings.TrimSpace(assessment.Assessment + " (semantic only)")
			}
		}
		out = append(out, assessment)
	}
	return out
}

// groundEvidence filters candidateEvidence down to entries internal/verify
// confirms actually trace to the file content they cite.
func (a *Auditor) groundEvidence(ctx context.Context, candidateEvidence []core.Evidence, fileContents map[string]string) []core.Evidence {
	if len(candidateEvidence) == 0 {
		return nil
	}
	results, err := a.groundingVerifier().VerifyEvidence(ctx, candidateEvidence, fileContents)
	if err != nil {
		return candidateEvidence
	}
	out := make([]core.Evidence, 0, len(results))
	for _, r := range results {
		if r.Grounded {
			out = append(out, r.Evidence)
		}
	}
	return out
}

func fileSizeIndex(files []codescan.ScannedFile) func(string) (int64, bool) {
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		var n int64
		for _, line := range f.Lines {
			n += int64(len(line)) + 1
		}
		sizes[f.RelPath] = n
	}
	return func(path string) (int64, bool) {
		n, ok := sizes[path]
		return n, ok
	}
}

func dedupStrings(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	var out []string
	for _, s := range ss {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
