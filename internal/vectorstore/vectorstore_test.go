package vectorstore

import "testing"

func TestIndex_TopKOrdersBySimilarity(t *testing.T) {
	idx := &Index{}
	idx.Add("a", []float32{1, 0}, Metadata{FilePath: "a.go"})
	idx.Add("b", []float32{0, 1}, Metadata{FilePath: "b.go"})
	idx.Add("c", []float32{0.9, 0.1}, Metadata{FilePath: "c.go"})

	hits := idx.TopK([]float32{1, 0}, 2, nil)
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].DocID != "a" || hits[1].DocID != "c" {
		t.Fatalf("unexpected order: %+v", hits)
	}
}

func TestIndex_TopKFilter(t *testing.T) {
	idx := &Index{}
	idx.Add("x", []float32{1, 0}, Metadata{SourcePDF: "a.pdf"})
	idx.Add("y", []float32{1, 0}, Metadata{SourcePDF: "b.pdf"})

	hits := idx.TopK([]float32{1, 0}, 5, func(m Metadata) bool { return m.SourcePDF == "a.pdf" })
	if len(hits) != 1 || hits[0].DocID != "x" {
		t.Fatalf("expected only a.pdf hit, got %+v", hits)
	}
}

func TestIndex_AddReplacesByDocID(t *testing.T) {
	idx := &Index{}
	idx.Add("a", []float32{1, 0}, Metadata{FilePath: "first"})
	idx.Add("a", []float32{0, 1}, Metadata{FilePath: "second"})
	if idx.Len() != 1 {
		t.Fatalf("expected replace not append, len=%d", idx.Len())
	}
	hits := idx.TopK([]float32{0, 1}, 1, nil)
	if len(hits) != 1 || hits[0].Metadata.FilePath != "second" {
		t.Fatalf("expected updated entry, got %+v", hits)
	}
}
