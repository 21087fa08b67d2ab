package legal

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/kolipakulaharsha/guardian/internal/textsplit"
)

// chunk is one embeddable slice of a PDF, tagged with the page it came from
// and a content hash used both as the cache key (§4.2 step 3 "chunks are
// keyed by a stable content hash to deduplicate across repeated ingests")
// and as the in-memory index's doc ID.
type chunk struct {
	Page int
	Text string
	Hash string
}

// splitPages runs the shared recursive character splitter per page and
// stamps every resulting chunk with that page's number and a content hash
// (§4.2 steps 2-3).
func splitPages(sourcePDF string, pages []PageText, chunkSize, overlap int) []chunk {
	var out []chunk
	for _, p := range pages {
		for _, text := range textsplit.Split(p.Text, chunkSize, overlap) {
			out = append(out, chunk{Page: p.Page, Text: text, Hash: hashChunk(sourcePDF, text)})
		}
	}
	return out
}

func hashChunk(sourcePDF, text string) string {
	h := sha256.Sum256([]byte(sourcePDF + "\x00" + text))
	return hex.EncodeToString(h[:])
}
