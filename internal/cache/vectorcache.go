package cache

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// VectorEntry is a single persisted chunk of the optional on-disk legal
// corpus (§3 LegalCorpus, §4.2 step 4): the embedding vector plus enough
// metadata to filter by source PDF and report the originating page.
type VectorEntry struct {
	SourcePDF string    `json:"source_pdf"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
}

// VectorCache stores embedded chunks on disk keyed by a content hash of
// (sourcePDF, text), exactly the content-hash-keyed layout LLMCache already
// uses for chat/embedding responses. Because the key is derived from the
// content itself, re-ingesting the same PDF writes the same filenames and
// therefore adds no new chunks — this is the dedup-by-hash idempotence
// invariant of §4.2 and §8.
//
// Writes are published via write-to-temp-then-rename so that a reader never
// observes a partially written entry, satisfying the "append-only, safe
// under concurrent ingest" requirement of §5 and §9 (Open Question 2)
// without needing a separate lock file.
type VectorCache struct {
	Dir string
	// StrictPerms mirrors LLMCache's at-rest permission tightening.
	StrictPerms bool
}

func (c *VectorCache) ensureDir() error {
	if c == nil || c.Dir == "" {
		return errors.New("vector cache dir not configured")
	}
	perm := os.FileMode(0o755)
	if c.StrictPerms {
		perm = 0o700
	}
	return os.MkdirAll(c.Dir, perm)
}

func (c *VectorCache) pathFor(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

// ChunkKey derives the content-hash key for a PDF chunk, shared by Save/Get
// and by callers that need to check presence without reading the payload.
func ChunkKey(sourcePDF, text string) string {
	return KeyFrom("chunk", sourcePDF+"\x00"+text)
}

// Has reports whether a chunk is already present, without allocating the
// decoded payload. Used to implement the idempotent-ingest count check.
func (c *VectorCache) Has(key string) bool {
	if c == nil || c.Dir == "" {
		return false
	}
	_, err := os.Stat(c.pathFor(key))
	return err == nil
}

// Save writes (or overwrites, with identical bytes, since the key is
// content-derived) a VectorEntry atomically via rename.
func (c *VectorCache) Save(_ context.Context, key string, entry VectorEntry) error {
	if err := c.ensureDir(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	final := c.pathFor(key)
	tmp := final + ".tmp"
	mode := os.FileMode(0o644)
	if c.StrictPerms {
		mode = 0o600
	}
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return err
	}
	return os.Rename(tmp, final)
}

// All loads every entry currently on disk, optionally filtered by
// sourcePDF (empty string matches all sources). This backs the all-PDFs and
// single-PDF query scopes of §4.2.
func (c *VectorCache) All(sourcePDF string) ([]VectorEntry, error) {
	if c == nil || c.Dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]VectorEntry, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) < 6 || name[len(name)-5:] != ".json" {
			continue
		}
		b, err := os.ReadFile(filepath.Join(c.Dir, name))
		if err != nil {
			continue
		}
		var v VectorEntry
		if err := json.Unmarshal(b, &v); err != nil {
			continue
		}
		if sourcePDF != "" && v.SourcePDF != sourcePDF {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
