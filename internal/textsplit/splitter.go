// Package textsplit implements the recursive character splitter used to
// chunk both regulatory PDF text (§4.2 step 2) and repository file text
// (§4.3.2, §4.3.3, §4.4 "chunk size ~1000 chars, overlap 200") before
// embedding, cascading through paragraph, sentence, and word boundaries
// before falling back to a hard character cut (§4.2 "splitting first on
// paragraph then sentence then word boundaries").
package textsplit

import "strings"

// DefaultChunkChars and DefaultOverlapChars implement the ~1000/~200
// defaults used everywhere a character-based (as opposed to line-based,
// see internal/codescan) chunker is specified.
const (
	DefaultChunkChars   = 1000
	DefaultOverlapChars = 200
)

// separators are tried in order: paragraph break, line break, sentence end,
// word boundary, then "" signals a hard character split.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// Split breaks text into chunks of up to chunkSize bytes of new text (never
// splitting mid-rune, since all separators below are themselves ASCII), each
// chunk after the first also starting with up to overlap bytes carried from
// the previous one, so a chunk can reach chunkSize+overlap bytes.
// chunkSize <= 0 and overlap < 0 fall back to the package defaults.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkChars
	}
	if overlap < 0 {
		overlap = DefaultOverlapChars
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	pieces := recursiveSplit(text, chunkSize, separators)
	return mergeWithOverlap(pieces, chunkSize, overlap)
}

// recursiveSplit divides text on the first separator that actually shortens
// every resulting piece below chunkSize, recursing into any piece that is
// still too large using the remaining, finer-grained separators.
func recursiveSplit(text string, chunkSize int, seps []string) []string {
	if len(text) <= chunkSize || len(seps) == 0 {
		return hardSplit(text, chunkSize)
	}
	sep := seps[0]
	rest := seps[1:]

	var raw []string
	if sep == "" {
		return hardSplit(text, chunkSize)
	}
	raw = strings.Split(text, sep)
	if len(raw) <= 1 {
		return recursiveSplit(text, chunkSize, rest)
	}

	var out []string
	for i, piece := range raw {
		if i < len(raw)-1 {
			piece += sep
		}
		if piece == "" {
			continue
		}
		if len(piece) > chunkSize {
			out = append(out, recursiveSplit(piece, chunkSize, rest)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// hardSplit is the last-resort fallback: a flat cut every chunkSize bytes,
// never splitting inside a multi-byte UTF-8 rune.
func hardSplit(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			out = append(out, text)
			break
		}
		cut := chunkSize
		for cut > 0 && !isRuneStart(text[cut]) {
			cut--
		}
		if cut == 0 {
			cut = chunkSize
		}
		out = append(out, text[:cut])
		text = text[cut:]
	}
	return out
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// mergeWithOverlap greedily packs small pieces together up to chunkSize,
// then carries the trailing `overlap` characters of each emitted chunk
// forward as a prefix of the next one, so a requirement spanning a split
// point is not lost from either chunk's context.
func mergeWithOverlap(pieces []string, chunkSize, overlap int) []string {
	if len(pieces) == 0 {
		return nil
	}
	var chunks []string
	var cur strings.Builder
	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > chunkSize {
			chunks = append(chunks, strings.TrimSpace(cur.String()))
			tail := tailChars(cur.String(), overlap)
			cur.Reset()
			cur.WriteString(tail)
		}
		cur.WriteString(p)
	}
	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, strings.TrimSpace(cur.String()))
	}
	return chunks
}

func tailChars(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !isRuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
