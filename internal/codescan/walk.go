// Package codescan implements the Code Auditor's shared file-inclusion
// policy, line-chunking, and the bounded worker pool used by the
// line-by-line engine (§4.3, §4.3.1, §5).
package codescan

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxFileBytes is the default per-file size guard against generated
// files (§4.3, default 1 MiB).
const DefaultMaxFileBytes = 1 << 20

var includedExtensions = map[string]bool{
	".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".cpp": true, ".c": true, ".h": true, ".cs": true,
	".go": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".html": true, ".css": true, ".md": true, ".rst": true, ".txt": true,
	".json": true, ".yaml": true, ".yml": true, ".toml": true, ".xml": true,
}

var excludedDirs = map[string]bool{
	".git": true, "node_modules": true, "venv": true, ".venv": true,
	"__pycache__": true, "build": true, "dist": true, "target": true,
	"vendor": true,
}

// ScannedFile is one file that passed the inclusion policy, with its text
// content split into 1-based lines.
type ScannedFile struct {
	// RelPath is repository-relative, using forward slashes regardless of
	// OS, and is guaranteed to contain no ".." segment (§3 Violation
	// invariant on file_path).
	RelPath string
	Lines   []string
}

// Options configures Walk's inclusion policy. Zero values fall back to the
// package defaults (§4.3).
type Options struct {
	MaxFileBytes int64
	// OnlyPaths, when non-empty, restricts the walk to these
	// repository-relative paths. The hybrid engine's pass-2 deep scan does
	// not use it; it filters the already-walked files itself.
	OnlyPaths map[string]bool
}

// Walk traverses root applying the shared inclusion/exclusion policy and
// returns every qualifying file with its line-split text, in deterministic
// directory-walk order (§4.3.1 "file order as returned by directory walk").
func Walk(root string, opt Options) ([]ScannedFile, int, error) {
	maxBytes := opt.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxFileBytes
	}
	var out []ScannedFile
	skipped := 0
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			if excludedDirs[info.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !includedExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if opt.OnlyPaths != nil && !opt.OnlyPaths[rel] {
			return nil
		}
		if info.Size() > maxBytes {
			skipped++
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			skipped++
			return nil
		}
		out = append(out, ScannedFile{RelPath: rel, Lines: splitLinesUTF8(data)})
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, skipped, nil
}

// splitLinesUTF8 reads content as UTF-8 with replacement of invalid byte
// sequences (§4.3.1 step 1), preserving exactly one entry per physical line
// (no trailing newline). Valid text is normalized to NFC first, so files
// saved under different Unicode decompositions (e.g. a precomposed vs.
// combining-mark accented identifier) chunk and dedup consistently.
func splitLinesUTF8(data []byte) []string {
	valid := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			valid = append(valid, []byte(string(utf8.RuneError))...)
			data = data[1:]
			continue
		}
		valid = append(valid, data[:size]...)
		data = data[size:]
	}
	valid = norm.NFC.Bytes(valid)
	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(valid))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// IsRepoRelative reports whether p is a safe, repository-relative path: not
// absolute and containing no ".." segment. Every Violation.FilePath must
// satisfy this (§3 invariant, §8 property test).
func IsRepoRelative(p string) bool {
	if p == "" || filepath.IsAbs(p) {
		return false
	}
	for _, seg := range strings.Split(filepath.ToSlash(p), "/") {
		if seg == ".." {
			return false
		}
	}
	return true
}
