// Package legal implements the Legal Analyst: PDF ingestion, chunking,
// embedding, and retrieval-augmented answering over a regulatory document
// (§4.2). It follows a plan -> select -> synthesize RAG shape generalized
// from "web search results" to "PDF chunks", with content-hash chunk dedup
// (kept in memory, and optionally persisted through internal/cache's
// VectorCache) supplying the idempotent-ingest guarantee of §4.2/§8.
package legal

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"

	"github.com/kolipakulaharsha/guardian/internal/cache"
	"github.com/kolipakulaharsha/guardian/internal/core"
	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/synth"
	"github.com/kolipakulaharsha/guardian/internal/textsplit"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// PageText is one page of a loaded PDF, with its page number preserved as
// metadata (§4.2 step 1).
type PageText struct {
	Page int
	Text string
}

// PageLoader parses a PDF into per-page text. Loader is the production
// implementation; tests substitute a fake to avoid real PDF files.
type PageLoader interface {
	Load(path string) ([]PageText, error)
}

// Loader parses a PDF into per-page text.
type Loader struct{}

// Load opens path and extracts plain text from every page. A page that
// fails to decode is skipped rather than failing the whole document,
// matching the "empty extracted text" failure mode of §4.2 being reserved
// for the whole-document case.
func (Loader) Load(path string) ([]PageText, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", core.ErrIngest, path, err)
	}
	defer f.Close()

	total := r.NumPage()
	pages := make([]PageText, 0, total)
	for i := 1; i <= total; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, PageText{Page: i, Text: text})
	}
	return pages, nil
}

// QueryScope selects one of the three retrieval scopes of §4.2.
type QueryScope string

const (
	ScopeSinglePDF          QueryScope = "single_pdf"
	ScopeAllPDFs            QueryScope = "all_pdfs"
	ScopeAllPDFsWithSources QueryScope = "all_pdfs_with_sources"
)

// DefaultTopK and SourcesTopK implement the default k=5 / k=10 retrieval
// depths of §4.2.
const (
	DefaultTopK = 5
	SourcesTopK = 10
)

// Answer is the result of Analyst.Query (§4.2 "all-PDFs-with-sources... the
// result includes {sources, chunk_distribution_by_source}").
type Answer struct {
	Text                       string
	Sources                    []string
	ChunkDistributionBySource  map[string]int
}

// Analyst is the Legal Analyst tool (§4.2). It holds an in-process
// vectorstore.Index covering every PDF ingested during the Orchestrator's
// lifetime, optionally backed by a persistent cache.VectorCache corpus
// (§3 LegalCorpus, §9 Open Question 2: default off, opt-in via a non-nil
// VectorCache).
type Analyst struct {
	Client      llm.Client
	Cache       *cache.LLMCache
	VectorCache *cache.VectorCache
	Model       string
	TopK        int
	Loader      PageLoader
	Synth       *synth.Synthesizer

	mu      sync.Mutex
	index   vectorstore.Index
	known   map[string]map[string]bool // sourcePDF -> chunk hash -> seen
}

func (a *Analyst) topK() int {
	if a.TopK <= 0 {
		return DefaultTopK
	}
	return a.TopK
}

func (a *Analyst) synthesizer() *synth.Synthesizer {
	if a.Synth == nil {
		return &synth.Synthesizer{Client: a.Client, Cache: a.Cache}
	}
	return a.Synth
}

// Ingest loads, splits, embeds, and indexes pdfPath, returning the total
// number of distinct chunks now known for this source and how many of those
// are new in this call. Re-ingesting the same file leaves chunkCount
// unchanged on the second call (§4.2 idempotence, §8).
func (a *Analyst) Ingest(ctx context.Context, pdfPath string) (chunkCount int, newChunks int, err error) {
	pages, err := a.Loader.Load(pdfPath)
	if err != nil {
		return 0, 0, err
	}
	chunks := splitPages(pdfPath, pages, textsplit.DefaultChunkChars, textsplit.DefaultOverlapChars)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.known == nil {
		a.known = make(map[string]map[string]bool)
	}
	seen, ok := a.known[pdfPath]
	if !ok {
		seen = make(map[string]bool)
		a.known[pdfPath] = seen
	}

	var texts []string
	var fresh []chunk
	for _, c := range chunks {
		if a.VectorCache != nil && a.VectorCache.Has(cache.ChunkKey(pdfPath, c.Text)) {
			seen[c.Hash] = true
			continue
		}
		if seen[c.Hash] {
			continue
		}
		texts = append(texts, c.Text)
		fresh = append(fresh, c)
	}

	if len(texts) > 0 {
		vectors, embedErr := a.Client.Embed(ctx, texts)
		if embedErr != nil {
			return len(seen), 0, fmt.Errorf("%w: embed pdf chunks: %v", core.ErrTransport, embedErr)
		}
		for i, c := range fresh {
			a.index.Add(pdfPath+"#"+c.Hash, vectors[i], vectorstore.Metadata{
				SourcePDF: pdfPath, Page: c.Page, Text: c.Text,
			})
			seen[c.Hash] = true
			newChunks++
			if a.VectorCache != nil {
				_ = a.VectorCache.Save(ctx, cache.ChunkKey(pdfPath, c.Text), cache.VectorEntry{
					SourcePDF: pdfPath, Page: c.Page, Text: c.Text, Vector: vectors[i],
				})
			}
		}
	}
	return len(seen), newChunks, nil
}

// Brief produces the plain-English, bullet-oriented technical brief for
// pdfPath (§4.2 step 5). If the document yielded no indexed chunks, the
// literal failure-mode string of §4.2 is returned instead of calling the
// model.
func (a *Analyst) Brief(ctx context.Context, pdfPath string) (core.TechnicalBrief, error) {
	a.mu.Lock()
	chunkCount := len(a.known[pdfPath])
	a.mu.Unlock()
	if chunkCount == 0 {
		return core.TechnicalBrief("document yielded no extractable text."), nil
	}

	overview := "List every developer-checkable requirement in this regulatory document, as concise bullets."
	vec, err := a.Client.Embed(ctx, []string{overview})
	if err != nil {
		return "", fmt.Errorf("%w: embed brief query: %v", core.ErrTransport, err)
	}
	hits := a.index.TopK(vec[0], a.topK(), func(m vectorstore.Metadata) bool { return m.SourcePDF == pdfPath })

	system := "You are a compliance analyst. Read the regulatory excerpts and produce a plain-English, " +
		"bullet-oriented technical brief: a list of concrete, developer-checkable requirements. " +
		"One bullet per requirement. No preamble, no commentary, bullets only."
	user := buildExcerptPrompt(hits)

	text, err := a.synthesizer().Synthesize(ctx, a.Model, system, user)
	if err != nil {
		return "", fmt.Errorf("%w: synthesize brief: %v", core.ErrTransport, err)
	}
	return core.TechnicalBrief(text), nil
}

// Query answers a free-form question against the ingested corpus under one
// of the three scopes of §4.2.
func (a *Analyst) Query(ctx context.Context, scope QueryScope, pdfPath, question string) (Answer, error) {
	vec, err := a.Client.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("%w: embed question: %v", core.ErrTransport, err)
	}

	k := a.topK()
	var filter func(vectorstore.Metadata) bool
	switch scope {
	case ScopeSinglePDF:
		filter = func(m vectorstore.Metadata) bool { return m.SourcePDF == pdfPath }
	case ScopeAllPDFsWithSources:
		k = SourcesTopK
	case ScopeAllPDFs:
	default:
		filter = func(m vectorstore.Metadata) bool { return m.SourcePDF == pdfPath }
	}
	hits := a.index.TopK(vec[0], k, filter)

	system := "You are a compliance analyst answering a question using only the provided regulatory excerpts. " +
		"Be concise and bullet-oriented where appropriate."
	user := fmt.Sprintf("Question: %s\n\n%s", question, buildExcerptPrompt(hits))
	text, err := a.synthesizer().Synthesize(ctx, a.Model, system, user)
	if err != nil {
		return Answer{}, fmt.Errorf("%w: synthesize answer: %v", core.ErrTransport, err)
	}

	ans := Answer{Text: text}
	if scope == ScopeAllPDFsWithSources {
		ans.ChunkDistributionBySource = vectorstore.SourceDistribution(hits)
		for src := range ans.ChunkDistributionBySource {
			ans.Sources = append(ans.Sources, src)
		}
	}
	return ans, nil
}

func buildExcerptPrompt(hits []vectorstore.Hit) string {
	var sb strings.Builder
	sb.WriteString("Excerpts:\n")
	for _, h := range hits {
		sb.WriteString(fmt.Sprintf("\n[source: %s, page %d]\n%s\n", h.Metadata.SourcePDF, h.Metadata.Page, h.Metadata.Text))
	}
	return sb.String()
}
