package aggregate

import "testing"

func TestMergeNominations_DedupAndUnion(t *testing.T) {
	groups := [][]Nomination{
		{
			{FilePath: "app.py", Guideline: "no hardcoded credentials"},
		},
		{
			{FilePath: "app.py", Guideline: "input validation"},
			{FilePath: "config.py", Guideline: "no hardcoded credentials"},
		},
	}
	out := MergeNominations(groups)
	if len(out) != 2 {
		t.Fatalf("expected 2 candidate files, got %d", len(out))
	}
	if out[0].FilePath != "app.py" || out[1].FilePath != "config.py" {
		t.Fatalf("expected sorted file order, got %+v", out)
	}
	if len(out[0].Guidelines) != 2 {
		t.Fatalf("expected app.py nominated by 2 guidelines, got %v", out[0].Guidelines)
	}
}

func TestMergeNominations_IgnoresEmptyPaths(t *testing.T) {
	groups := [][]Nomination{
		{{FilePath: "", Guideline: "x"}},
	}
	out := MergeNominations(groups)
	if len(out) != 0 {
		t.Fatalf("expected no candidates for empty path, got %+v", out)
	}
}
