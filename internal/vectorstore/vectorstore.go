// Package vectorstore is a minimal, dependency-free in-process embedding
// index with a cosine-similarity top-k retriever (§3 "RAG index"). The
// repositories and PDFs this system audits are small enough, per the
// implementation budget's own reasoning, that a flat scan beats the
// operational cost of an external ANN service; see DESIGN.md for why this is
// the one place Guardian leans on the standard library instead of a
// third-party vector database.
package vectorstore

import (
	"math"
	"sort"
)

// Metadata is attached to every indexed chunk. Callers populate whichever
// fields are relevant to their domain (PDF page vs. repository file path).
type Metadata struct {
	SourcePDF string
	Page      int
	FilePath  string
	FileName  string
	Extension string
	Text      string
}

type entry struct {
	docID  string
	vector []float32
	meta   Metadata
}

// Index is a single-writer, flat in-memory vector store. It is not safe for
// concurrent writes; concurrent reads after indexing completes are fine.
type Index struct {
	entries []entry
}

// Add inserts or replaces (by docID) a single embedded chunk.
func (idx *Index) Add(docID string, vector []float32, meta Metadata) {
	for i := range idx.entries {
		if idx.entries[i].docID == docID {
			idx.entries[i].vector = vector
			idx.entries[i].meta = meta
			return
		}
	}
	idx.entries = append(idx.entries, entry{docID: docID, vector: vector, meta: meta})
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Hit is a single retrieval result, ordered by descending similarity.
type Hit struct {
	DocID      string
	Score      float32
	Metadata   Metadata
}

// TopK returns up to k entries most similar to query by cosine similarity.
// filter, when non-nil, excludes entries whose Metadata doesn't match —
// this implements the single-PDF query scope of §4.2 ("filtered to
// source_pdf == current_pdf").
func (idx *Index) TopK(query []float32, k int, filter func(Metadata) bool) []Hit {
	if idx == nil || k <= 0 || len(query) == 0 {
		return nil
	}
	hits := make([]Hit, 0, len(idx.entries))
	for _, e := range idx.entries {
		if filter != nil && !filter(e.meta) {
			continue
		}
		score := cosineSimilarity(query, e.vector)
		hits = append(hits, Hit{DocID: e.docID, Score: score, Metadata: e.meta})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// SourceDistribution counts retrieved hits per SourcePDF, backing the
// all-PDFs-with-sources query scope's chunk_distribution_by_source (§4.2).
func SourceDistribution(hits []Hit) map[string]int {
	dist := make(map[string]int)
	for _, h := range hits {
		if h.Metadata.SourcePDF == "" {
			continue
		}
		dist[h.Metadata.SourcePDF]++
	}
	return dist
}

func cosineSimilarity(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, magA, magB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(magA) * math.Sqrt(magB)))
}
