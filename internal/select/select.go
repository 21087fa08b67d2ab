// Package selecter applies the hybrid auditor's pass-1-to-pass-2 candidate
// cap: intersect nominated files with the technical brief's file globs, then
// keep the top N ordered by nomination count (most guidelines first) and
// file size (smallest first) (§4.3.3 step 4).
package selecter

import (
	"path/filepath"
	"sort"

	"github.com/kolipakulaharsha/guardian/internal/aggregate"
)

// Options configures candidate-file selection.
type Options struct {
	// MaxCandidates caps the number of files selected for pass 2. Default 50.
	MaxCandidates int
	// FileGlobs, when non-empty, restricts selection to files matching at
	// least one glob (the technical brief's file_globs, §4.1).
	FileGlobs []string
	// FileSize returns a file's size in bytes for the size-ascending
	// tiebreak; files missing from it sort last.
	FileSize func(filePath string) (int64, bool)
}

// Select filters candidates to those matching FileGlobs (when set) and
// returns up to MaxCandidates, ordered by nomination count descending then
// file size ascending.
func Select(candidates []aggregate.CandidateFile, opt Options) []aggregate.CandidateFile {
	max := opt.MaxCandidates
	if max <= 0 {
		max = 50
	}

	filtered := make([]aggregate.CandidateFile, 0, len(candidates))
	for _, c := range candidates {
		if len(opt.FileGlobs) > 0 && !matchesAny(c.FilePath, opt.FileGlobs) {
			continue
		}
		filtered = append(filtered, c)
	}

	sizeOf := func(path string) (int64, bool) {
		if opt.FileSize == nil {
			return 0, false
		}
		return opt.FileSize(path)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ci, cj := filtered[i], filtered[j]
		if len(ci.Guidelines) != len(cj.Guidelines) {
			return len(ci.Guidelines) > len(cj.Guidelines)
		}
		si, iOK := sizeOf(ci.FilePath)
		sj, jOK := sizeOf(cj.FilePath)
		if iOK != jOK {
			return iOK
		}
		if si != sj {
			return si < sj
		}
		return ci.FilePath < cj.FilePath
	})

	if len(filtered) > max {
		filtered = filtered[:max]
	}
	return filtered
}

func matchesAny(path string, globs []string) bool {
	for _, g := range globs {
		if ok, err := filepath.Match(g, path); err == nil && ok {
			return true
		}
		if matchesAnySuffixGlob(path, g) {
			return true
		}
	}
	return false
}

// matchesAnySuffixGlob supports the common "**/*.py"-style recursive glob
// that filepath.Match alone can't express, by matching on the base name
// when the pattern is of the form "**/<pattern>".
func matchesAnySuffixGlob(path, pattern string) bool {
	const recursivePrefix = "**/"
	if len(pattern) <= len(recursivePrefix) || pattern[:len(recursivePrefix)] != recursivePrefix {
		return false
	}
	ok, err := filepath.Match(pattern[len(recursivePrefix):], filepath.Base(path))
	return err == nil && ok
}
