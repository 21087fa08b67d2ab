// Package core defines the shared value types passed between the
// Orchestrator and its three tools: the technical brief, the plan, and the
// audit/compliance/QA result shapes. Keeping these as sum types rather than
// free-form maps lets every boundary that talks to an LLM validate against a
// concrete schema instead of trusting whatever JSON comes back.
package core

import "time"

// Tool names as they appear in a Plan's tools_needed/execution_order lists.
type ToolName string

const (
	ToolLegalAnalyst ToolName = "LegalAnalyst"
	ToolCodeAuditor  ToolName = "CodeAuditor"
	ToolQA           ToolName = "QA"
)

// AuditMode selects which of the Code Auditor's three strategies to run.
type AuditMode string

const (
	ModeAudit      AuditMode = "audit"
	ModeCompliance AuditMode = "compliance"
	ModeHybrid     AuditMode = "hybrid"
)

// Severity is the normalized severity of a single Violation. The auditor's
// JSON contract always carries severity; SeverityMedium is the defined
// default when the model omits or mangles the field (Open Question 1).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// ComplianceStatus is the verdict of a single guideline assessment.
type ComplianceStatus string

const (
	StatusPass         ComplianceStatus = "pass"
	StatusFail         ComplianceStatus = "fail"
	StatusInconclusive ComplianceStatus = "inconclusive"
	StatusNotApplicable ComplianceStatus = "not_applicable"
)

// Confidence levels attached to a ComplianceAssessment.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TechnicalBrief is a plain-English, bullet-oriented list of
// developer-checkable requirements. It is a named type, not a bare string, so
// that it is opaque to the auditor except as LLM prompt context (§4.3) and so
// a caller cannot accidentally pass an arbitrary string where a brief that
// went through the Legal Analyst (or was explicitly supplied) is expected.
type TechnicalBrief string

// Plan is the structured result of the planner step (§3 Plan, §4.1).
type Plan struct {
	ToolsNeeded     []ToolName `json:"tools_needed"`
	ExecutionOrder  []ToolName `json:"execution_order"`
	PDFPath         string     `json:"pdf_path,omitempty"`
	RepoURL         string     `json:"repo_url,omitempty"`
	Question        string     `json:"question,omitempty"`
	AuditMode       AuditMode  `json:"audit_mode,omitempty"`
	Reasoning       string     `json:"reasoning,omitempty"`
}

// Violation is a single concrete rule breach located at a file and, ideally,
// a line (§3 Violation). FilePath is always repository-relative and never
// absolute or containing "..": callers must construct Violation only through
// code that has already enforced this (see internal/codescan).
type Violation struct {
	FilePath      string   `json:"file_path"`
	LineNumber    *int     `json:"line_number"`
	RuleViolated  string   `json:"rule_violated"`
	Explanation   string   `json:"explanation"`
	CodeSnippet   string   `json:"code_snippet"`
	Severity      Severity `json:"severity"`
}

// ScanStatistics records counters accumulated during a scan, surfaced in both
// AuditResult and the session log for observability (§5 rate-limit handling).
type ScanStatistics struct {
	ChunksScanned int `json:"chunks_scanned"`
	ChunksFailed  int `json:"chunks_failed"`
	FilesSkipped  int `json:"files_skipped"`
}

// AuditResult is the output of any of the three Code Auditor modes (§3).
type AuditResult struct {
	Mode             AuditMode              `json:"mode"`
	Repository       string                 `json:"repository"`
	TotalViolations  int                    `json:"total_violations"`
	Violations       []Violation            `json:"violations"`
	FilesScanned     int                    `json:"files_scanned"`
	FilesAnalyzed    int                    `json:"files_analyzed"`
	ScanStatistics   ScanStatistics         `json:"scan_statistics"`
	ComplianceChecks []ComplianceAssessment `json:"compliance_checks,omitempty"`
}

// Evidence backs a single ComplianceAssessment with a located source.
type Evidence struct {
	FilePath   string `json:"file_path"`
	LineNumber *int   `json:"line_number,omitempty"`
	Snippet    string `json:"snippet"`
	Relevance  string `json:"relevance"`
}

// ComplianceAssessment is a per-guideline verdict (§3).
type ComplianceAssessment struct {
	Guideline  string           `json:"guideline"`
	Status     ComplianceStatus `json:"status"`
	Assessment string           `json:"assessment"`
	Confidence Confidence       `json:"confidence"`
	Evidence   []Evidence       `json:"evidence"`
}

// QASessionInfo is the observable shape of a live QA session (§3 QASession).
type QASessionInfo struct {
	RepoURL       string    `json:"repo_url"`
	RepoLocalPath string    `json:"repo_local_path"`
	ChunkCount    int       `json:"chunk_count"`
	DocCount      int       `json:"doc_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// QAAnswer is the result of a single QA question (§4.4).
type QAAnswer struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

// ToolResults bundles whatever each tool in the plan produced, with absence
// of a field meaning that tool either was not planned or failed (§6).
type ToolResults struct {
	LegalBrief       *string                `json:"legal_brief,omitempty"`
	Audit            *AuditResult           `json:"audit,omitempty"`
	ComplianceChecks []ComplianceAssessment `json:"compliance_checks,omitempty"`
	QAAnswer         *QAAnswer              `json:"qa_answer,omitempty"`
}

// ReportMetadata carries the small amount of bookkeeping the Report JSON
// shape demands in addition to the tool outputs (§6).
type ReportMetadata struct {
	Version string `json:"version"`
	Mode    string `json:"mode"`
}

// Report is the final, normative output shape of a single Orchestrator.Run
// (§6 Report JSON shape).
type Report struct {
	Timestamp   time.Time      `json:"timestamp"`
	Query       string         `json:"query"`
	Model       string         `json:"model"`
	Plan        Plan           `json:"plan"`
	ToolResults ToolResults    `json:"tool_results"`
	FinalAnswer string         `json:"final_answer"`
	Metadata    ReportMetadata `json:"metadata"`
}
