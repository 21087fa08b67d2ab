package codescan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/kolipakulaharsha/guardian/internal/llm"
	"github.com/kolipakulaharsha/guardian/internal/textsplit"
	"github.com/kolipakulaharsha/guardian/internal/vectorstore"
)

// embedBatchSize bounds how many chunks go into a single Embed call,
// batching outbound network calls rather than issuing one round trip per
// chunk.
const embedBatchSize = 64

// BuildIndex chunks every scanned file's text at ~1000 chars / 200 overlap
// (§4.3.2 step 1, §4.4 "Indexing") and embeds the chunks into a fresh
// vectorstore.Index, the RAG index shared by compliance mode, hybrid mode,
// and Repository QA. It returns the index and the total chunk count.
func BuildIndex(ctx context.Context, client llm.Client, files []ScannedFile, chunkSize, overlap int) (*vectorstore.Index, int, error) {
	idx := &vectorstore.Index{}
	type pending struct {
		docID string
		meta  vectorstore.Metadata
	}
	var batch []string
	var metas []pending

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		vectors, err := client.Embed(ctx, batch)
		if err != nil {
			return err
		}
		for i, v := range vectors {
			idx.Add(metas[i].docID, v, metas[i].meta)
		}
		batch = batch[:0]
		metas = metas[:0]
		return nil
	}

	chunkCount := 0
	for _, f := range files {
		text := strings.Join(f.Lines, "\n")
		ext := strings.ToLower(filepath.Ext(f.RelPath))
		for i, chunkText := range textsplit.Split(text, chunkSize, overlap) {
			chunkCount++
			docID := chunkDocID(f.RelPath, i, chunkText)
			batch = append(batch, chunkText)
			metas = append(metas, pending{docID: docID, meta: vectorstore.Metadata{
				FilePath:  f.RelPath,
				FileName:  filepath.Base(f.RelPath),
				Extension: ext,
				Text:      chunkText,
			}})
			if len(batch) >= embedBatchSize {
				if err := flush(); err != nil {
					return nil, 0, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return nil, 0, err
	}
	return idx, chunkCount, nil
}

func chunkDocID(filePath string, index int, text string) string {
	h := sha256.Sum256([]byte(text))
	return filePath + "#" + hex.EncodeToString(h[:8]) + "#" + itoa(index)
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
