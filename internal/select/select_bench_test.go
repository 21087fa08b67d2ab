package selecter

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/kolipakulaharsha/guardian/internal/aggregate"
)

func BenchmarkSelect(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	makeCandidates := func(n int) []aggregate.CandidateFile {
		out := make([]aggregate.CandidateFile, n)
		for i := 0; i < n; i++ {
			guidelineCount := rng.Intn(4) + 1
			guidelines := make([]string, guidelineCount)
			for g := range guidelines {
				guidelines[g] = fmt.Sprintf("guideline-%d", g)
			}
			out[i] = aggregate.CandidateFile{
				FilePath:   fmt.Sprintf("pkg%02d/file_%d.py", rng.Intn(20), i),
				Guidelines: guidelines,
			}
		}
		return out
	}

	cases := []struct {
		name string
		n    int
		opt  Options
	}{
		{"n=50, default", 50, Options{}},
		{"n=200, default", 200, Options{}},
		{"n=200, capped", 200, Options{MaxCandidates: 20}},
		{"n=200, globbed", 200, Options{FileGlobs: []string{"**/*.py"}}},
	}

	for _, cs := range cases {
		b.Run(cs.name, func(b *testing.B) {
			res := makeCandidates(cs.n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = Select(res, cs.opt)
			}
		})
	}
}
