// Package aggregate merges the per-guideline candidate-file nominations the
// hybrid auditor's pass-1 triage produces into a single deduplicated set,
// merging and deduplicating per-guideline nomination sets before selection
// (§4.3.3 step 4).
package aggregate

import "sort"

// Nomination is one guideline's vote that filePath deserves a pass-2 deep
// scan.
type Nomination struct {
	FilePath  string
	Guideline string
}

// CandidateFile is a deduplicated file nominated by one or more guidelines,
// carrying the guidelines that nominated it so selection can order by
// nomination count (§4.3.3 step 4).
type CandidateFile struct {
	FilePath   string
	Guidelines []string
}

// MergeNominations unions nominations across guidelines, deduplicating by
// file path and recording every guideline that nominated each file. Input
// order of groups does not affect the output, which is sorted by file path
// for determinism.
func MergeNominations(groups [][]Nomination) []CandidateFile {
	byPath := map[string]*CandidateFile{}
	var order []string
	for _, g := range groups {
		for _, n := range g {
			if n.FilePath == "" {
				continue
			}
			cf, ok := byPath[n.FilePath]
			if !ok {
				cf = &CandidateFile{FilePath: n.FilePath}
				byPath[n.FilePath] = cf
				order = append(order, n.FilePath)
			}
			if n.Guideline != "" && !contains(cf.Guidelines, n.Guideline) {
				cf.Guidelines = append(cf.Guidelines, n.Guideline)
			}
		}
	}
	sort.Strings(order)
	out := make([]CandidateFile, 0, len(order))
	for _, p := range order {
		out = append(out, *byPath[p])
	}
	return out
}

func contains(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}
