package auditor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kolipakulaharsha/guardian/internal/codescan"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/events"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// RunCompliance executes the guideline-wise semantic check (§4.3.2): build
// one RAG index over the repository, then assess each guideline
// independently against its top-k retrieved chunks. guidelines, when
// non-empty, overrides the bullets extracted from brief (§4.3.2 "either
// user-supplied list or bullets extracted from a technical brief").
func (a *Auditor) RunCompliance(ctx context.Context, repoURL string, brief core.TechnicalBrief, guidelines []string) (core.AuditResult, error) {
	clone, err := a.Fetcher.Clone(ctx, repoURL)
	if err != nil {
		return core.AuditResult{Mode: core.ModeCompliance, Repository: repoURL}, err
	}
	defer clone.Close()
	a.emit(events.KindRepoFetchDone, "repository cloned", map[string]interface{}{"repo_url": repoURL})

	files, skipped, err := codescan.Walk(clone.Path, codescan.Options{})
	if err != nil {
		return core.AuditResult{Mode: core.ModeCompliance, Repository: repoURL}, fmt.Errorf("%w: walk repository: %v", core.ErrIngest, err)
	}

	idx, chunkCount, err := codescan.BuildIndex(ctx, a.Client, files, a.indexChunkChars(), a.indexOverlapChars())
	if err != nil {
		return core.AuditResult{Mode: core.ModeCompliance, Repository: repoURL, FilesScanned: len(files)},
			fmt.Errorf("%w: build compliance index: %v", core.ErrTransport, err)
	}
	a.emit(events.KindIndexBuildDone, "compliance index built", map[string]interface{}{"chunks": chunkCount})

	if len(guidelines) == 0 {
		guidelines = extractGuidelines(string(brief))
	}

	assessments := make([]core.ComplianceAssessment, 0, len(guidelines))
	for _, g := range guidelines {
		assessment, err := a.assessGuideline(ctx, idx, g)
		if err != nil {
			assessment = core.ComplianceAssessment{
				Guideline: g, Status: core.StatusInconclusive,
				Assessment: "assessment failed: " + err.Error(), Confidence: core.ConfidenceLow,
			}
		}
		assessments = append(assessments, assessment)
	}

	result := core.AuditResult{
		Mode:             core.ModeCompliance,
		Repository:       repoURL,
		FilesScanned:     len(files),
		FilesAnalyzed:    len(files),
		ScanStatistics:   core.ScanStatistics{FilesSkipped: skipped},
		ComplianceChecks: assessments,
	}
	a.emit(events.KindDone, "compliance assessment complete", map[string]interface{}{"guidelines": len(assessments)})
	return result, nil
}

type rawAssessment struct {
	Status     string          `json:"status"`
	Assessment string          `json:"assessment"`
	Confidence string          `json:"confidence"`
	Evidence   []core.Evidence `json:"evidence"`
}

// assessGuideline retrieves the top-k chunks for one guideline and asks the
// model for a verdict (§4.3.2 step 2).
func (a *Auditor) assessGuideline(ctx context.Context, idx *vectorstore.Index, guideline string) (core.ComplianceAssessment, error) {
	vec, err := a.Client.Embed(ctx, []string{guideline})
	if err != nil {
		return core.ComplianceAssessment{}, err
	}
	hits := idx.TopK(vec[0], 5, nil)

	system := "You are a compliance auditor. Given a guideline and retrieved code excerpts, decide whether the " +
		"codebase satisfies the guideline. Respond with strict JSON: " +
		`{"status": "pass"|"fail"|"inconclusive"|"not_applicable", "assessment": string, "confidence": "high"|"medium"|"low", ` +
		`"evidence": [{"file_path": string, "line_number": int, "snippet": string, "relevance": string}]}. ` +
		"Use not_applicable when the guideline's subject matter is absent from the excerpts (e.g. an accessibility " +
		"rule against a backend-only codebase). JSON only, no narration."
	user := fmt.Sprintf("Guideline: %s\n\n%s", guideline, buildChunkPrompt(hits))

	text, err := a.Client.Chat(ctx, llm.ChatRequest{Model: a.Model, System: system, User: user, Temperature: 0.1})
	if err != nil {
		return core.ComplianceAssessment{}, err
	}
	obj := firstJSONObject(stripCodeFence(text))
	if obj == "" {
		return core.ComplianceAssessment{}, fmt.Errorf("%w: no JSON object in assessment response", core.ErrParse)
	}
	var raw rawAssessment
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return core.ComplianceAssessment{}, fmt.Errorf("%w: %v", core.ErrParse, err)
	}

	status := core.ComplianceStatus(raw.Status)
	if status == "" {
		status = core.StatusInconclusive
	}
	confidence := core.Confidence(raw.Confidence)
	if confidence == "" {
		confidence = core.ConfidenceMedium
	}
	return core.ComplianceAssessment{
		Guideline: guideline, Status: status, Assessment: raw.Assessment,
		Confidence: confidence, Evidence: raw.Evidence,
	}, nil
}

func buildChunkPrompt(hits []vectorstore.Hit) string {
	out := "Excerpts:\n"
	for _, h := range hits {
		out += fmt.Sprintf("\n[file: %s]\n%s\n", h.Metadata.FilePath, h.Metadata.Text)
	}
	return out
}
